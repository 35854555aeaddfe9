package services

import (
	"context"
	"errors"
	"strings"

	"github.com/inkpost/apiserver/internal/store"
	"github.com/inkpost/apiserver/types"
	"github.com/microcosm-cc/bluemonday"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	List(ctx context.Context, q types.PostQuery) ([]types.Post, error)
	Get(ctx context.Context, id string) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, post types.Post) (types.Post, error)
	Delete(ctx context.Context, id string) error
}

// PostInput holds the fields of a new post. Slug is derived from Title when
// empty and Status defaults to active.
type PostInput struct {
	Title         string           `json:"title"`
	Slug          string           `json:"slug"`
	Content       string           `json:"content"`
	FeaturedImage string           `json:"featuredImage"`
	Status        types.PostStatus `json:"status"`
}

// PostPatch holds the fields to change on a post. Nil fields are left as
// they are.
type PostPatch struct {
	Title         *string           `json:"title,omitempty"`
	Slug          *string           `json:"slug,omitempty"`
	Content       *string           `json:"content,omitempty"`
	FeaturedImage *string           `json:"featuredImage,omitempty"`
	Status        *types.PostStatus `json:"status,omitempty"`
	UserName      *string           `json:"userName,omitempty"`
	UserEmail     *string           `json:"userEmail,omitempty"`
}

// PostService encapsulates post use-cases.
type PostService struct {
	repo   PostRepository
	files  FileRepository
	policy *bluemonday.Policy
}

func NewPostService(repo PostRepository, files FileRepository) *PostService {
	return &PostService{
		repo:   repo,
		files:  files,
		policy: bluemonday.UGCPolicy(),
	}
}

func (s *PostService) List(ctx context.Context, q types.PostQuery) ([]types.Post, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, invalidf("unknown status %q", q.Status)
	}
	return s.repo.List(ctx, q)
}

func (s *PostService) Get(ctx context.Context, id string) (types.Post, error) {
	return s.repo.Get(ctx, id)
}

func (s *PostService) checkImage(ctx context.Context, fileID string) error {
	if strings.TrimSpace(fileID) == "" {
		return invalidf("featured image is required")
	}
	if _, err := s.files.Get(ctx, fileID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalidf("featured image %s does not exist", fileID)
		}
		return err
	}
	return nil
}

func normalizeSlug(slug, title string) (string, error) {
	if strings.TrimSpace(slug) == "" {
		slug = title
	}
	slug = Slugify(slug)
	if slug == "" {
		return "", invalidf("slug must contain letters or digits")
	}
	return slug, nil
}

// Create stores a post written by author. The author's name and email are
// copied onto the post and are not kept in sync afterwards.
func (s *PostService) Create(ctx context.Context, author types.User, in PostInput) (types.Post, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return types.Post{}, invalidf("title is required")
	}
	slug, err := normalizeSlug(in.Slug, title)
	if err != nil {
		return types.Post{}, err
	}
	status := in.Status
	if status == "" {
		status = types.PostStatusActive
	}
	if !status.Valid() {
		return types.Post{}, invalidf("unknown status %q", status)
	}
	if err := s.checkImage(ctx, in.FeaturedImage); err != nil {
		return types.Post{}, err
	}

	return s.repo.Create(ctx, types.Post{
		Slug:          slug,
		Title:         title,
		Content:       s.policy.Sanitize(in.Content),
		FeaturedImage: in.FeaturedImage,
		Status:        status,
		UserID:        author.ID,
		UserName:      author.Name,
		UserEmail:     author.Email,
	})
}

// Update applies patch to a post owned by actorID.
func (s *PostService) Update(ctx context.Context, actorID, id string, patch PostPatch) (types.Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Post{}, err
	}
	if post.UserID != actorID {
		return types.Post{}, ErrForbidden
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return types.Post{}, invalidf("title is required")
		}
		post.Title = title
	}
	if patch.Slug != nil {
		if post.Slug, err = normalizeSlug(*patch.Slug, post.Title); err != nil {
			return types.Post{}, err
		}
	}
	if patch.Content != nil {
		post.Content = s.policy.Sanitize(*patch.Content)
	}
	if patch.FeaturedImage != nil && *patch.FeaturedImage != post.FeaturedImage {
		if err := s.checkImage(ctx, *patch.FeaturedImage); err != nil {
			return types.Post{}, err
		}
		post.FeaturedImage = *patch.FeaturedImage
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return types.Post{}, invalidf("unknown status %q", *patch.Status)
		}
		post.Status = *patch.Status
	}
	if patch.UserName != nil {
		post.UserName = *patch.UserName
	}
	if patch.UserEmail != nil {
		post.UserEmail = *patch.UserEmail
	}

	return s.repo.Update(ctx, post)
}

// Delete removes a post owned by actorID. The featured image is left in the
// bucket.
func (s *PostService) Delete(ctx context.Context, actorID, id string) error {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if post.UserID != actorID {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}
