package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/inkpost/apiserver/internal/localstore"
	"github.com/inkpost/apiserver/types"
	"github.com/rs/zerolog/log"
)

// MaxUploadSize is the largest file UploadFile accepts.
const MaxUploadSize = 5 << 20

// PostFields are the writable fields of a new post.
type PostFields struct {
	Title         string           `json:"title"`
	Slug          string           `json:"slug,omitempty"`
	Content       string           `json:"content"`
	FeaturedImage string           `json:"featuredImage"`
	Status        types.PostStatus `json:"status,omitempty"`
}

// PostUpdate is a partial update. Nil fields are left untouched, including
// the author snapshot fields.
type PostUpdate struct {
	Title         *string           `json:"title,omitempty"`
	Slug          *string           `json:"slug,omitempty"`
	Content       *string           `json:"content,omitempty"`
	FeaturedImage *string           `json:"featuredImage,omitempty"`
	Status        *types.PostStatus `json:"status,omitempty"`
	UserName      *string           `json:"userName,omitempty"`
	UserEmail     *string           `json:"userEmail,omitempty"`
}

// Content wraps the post and file endpoints of the content backend. Reads
// return nil on any failure; writes return errors.
type Content struct {
	t *transport
}

func NewContent(baseURL string, kv localstore.KV, httpClient *http.Client) *Content {
	return &Content{t: newTransport(baseURL, kv, httpClient)}
}

func logRead(err error, what string) {
	if isCanceled(err) {
		return
	}
	log.Debug().Err(err).Msg(what)
}

// GetPost returns the first post whose slug equals slug, or nil.
func (c *Content) GetPost(ctx context.Context, slug string) *types.Post {
	if strings.TrimSpace(slug) == "" {
		return nil
	}
	posts := c.GetPosts(ctx, &types.PostQuery{Slug: slug})
	if len(posts) == 0 {
		return nil
	}
	return &posts[0]
}

func (c *Content) GetPostByID(ctx context.Context, id string) *types.Post {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	var post types.Post
	if err := c.t.doJSON(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), nil, &post); err != nil {
		logRead(err, "get post")
		return nil
	}
	return &post
}

// GetPosts lists posts. A nil query lists active posts; a zero query lists
// every post.
func (c *Content) GetPosts(ctx context.Context, query *types.PostQuery) []types.Post {
	q := types.DefaultPostQuery()
	if query != nil {
		q = *query
	}
	values := url.Values{}
	if q.Status != "" {
		values.Set("status", string(q.Status))
	}
	if q.UserID != "" {
		values.Set("userId", q.UserID)
	}
	if q.Slug != "" {
		values.Set("slug", q.Slug)
	}
	path := "/posts"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}

	var list types.PostList
	if err := c.t.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		logRead(err, "list posts")
		return nil
	}
	if list.Documents == nil {
		return []types.Post{}
	}
	return list.Documents
}

func (c *Content) CreatePost(ctx context.Context, fields PostFields) (*types.Post, error) {
	var post types.Post
	if err := c.t.doJSON(ctx, http.MethodPost, "/posts", fields, &post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &post, nil
}

func (c *Content) UpdatePost(ctx context.Context, id string, update PostUpdate) (*types.Post, error) {
	var post types.Post
	if err := c.t.doJSON(ctx, http.MethodPatch, "/posts/"+url.PathEscape(id), update, &post); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return &post, nil
}

func (c *Content) DeletePost(ctx context.Context, id string) error {
	if err := c.t.doJSON(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// DeletePostCascade deletes post and then, best effort, its featured image.
func (c *Content) DeletePostCascade(ctx context.Context, post types.Post) error {
	if err := c.DeletePost(ctx, post.ID); err != nil {
		return err
	}
	if post.FeaturedImage != "" && !c.DeleteFile(ctx, post.FeaturedImage) {
		log.Warn().Str("post_id", post.ID).Str("file_id", post.FeaturedImage).Msg("featured image not deleted")
	}
	return nil
}

// UploadFile stores an image. Files over MaxUploadSize and non image MIME
// types are rejected without a request.
func (c *Content) UploadFile(ctx context.Context, name, mimeType string, data []byte) (*types.File, error) {
	if len(data) == 0 {
		return nil, validationf("file is empty")
	}
	if len(data) > MaxUploadSize {
		return nil, validationf("file size must be less than %d MB", MaxUploadSize>>20)
	}
	if !strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return nil, validationf("only image files are allowed")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.t.newRequest(ctx, http.MethodPost, "/files", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var file types.File
	if err := c.t.send(req, &file); err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	return &file, nil
}

// CheckFileExists reports whether the backend has metadata for id.
func (c *Content) CheckFileExists(ctx context.Context, id string) bool {
	exists, err := c.statFile(ctx, id)
	if err != nil {
		logRead(err, "check file")
	}
	return exists
}

// statFile tells a missing file (false, nil) apart from a failed lookup.
func (c *Content) statFile(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, nil
	}
	var file types.File
	err := c.t.doJSON(ctx, http.MethodGet, "/files/"+url.PathEscape(id), nil, &file)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// DeleteFile removes id. A file that is already gone counts as deleted; any
// other failure reports false.
func (c *Content) DeleteFile(ctx context.Context, id string) bool {
	exists, err := c.statFile(ctx, id)
	if err != nil {
		log.Debug().Err(err).Str("file_id", id).Msg("delete file: lookup")
		return false
	}
	if !exists {
		return true
	}
	err = c.t.doJSON(ctx, http.MethodDelete, "/files/"+url.PathEscape(id), nil, nil)
	if err != nil && !isNotFound(err) {
		log.Debug().Err(err).Str("file_id", id).Msg("delete file")
		return false
	}
	return true
}

func (c *Content) fileURL(id, variant string) string {
	if strings.TrimSpace(id) == "" {
		return ""
	}
	return c.t.baseURL + "/files/" + url.PathEscape(id) + "/" + variant
}

func (c *Content) FilePreviewURL(id string) string { return c.fileURL(id, "preview") }

func (c *Content) FileViewURL(id string) string { return c.fileURL(id, "view") }

func (c *Content) FileDownloadURL(id string) string { return c.fileURL(id, "download") }
