package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/inkpost/apiserver/types"
)

// PostRepository handles persistence for posts.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

const postColumns = `id, slug, title, content, featured_image, status, user_id, user_name, user_email, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (types.Post, error) {
	var post types.Post
	err := row.Scan(
		&post.ID,
		&post.Slug,
		&post.Title,
		&post.Content,
		&post.FeaturedImage,
		&post.Status,
		&post.UserID,
		&post.UserName,
		&post.UserEmail,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

// List returns the posts matching every non-empty field of q, newest first.
func (r *PostRepository) List(ctx context.Context, q types.PostQuery) ([]types.Post, error) {
	var (
		conditions []string
		args       []any
	)
	addFilter := func(column, value string) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if q.Status != "" {
		addFilter("status", string(q.Status))
	}
	if q.UserID != "" {
		if _, err := uuid.Parse(q.UserID); err != nil {
			return []types.Post{}, nil
		}
		addFilter("user_id", q.UserID)
	}
	if q.Slug != "" {
		addFilter("slug", q.Slug)
	}

	query := `SELECT ` + postColumns + ` FROM posts`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]types.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostRepository) Get(ctx context.Context, id string) (types.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Post{}, ErrNotFound
	}
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return scanPost(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	now := time.Now().UTC()
	post.ID = uuid.NewString()
	post.CreatedAt = now
	post.UpdatedAt = now

	const query = `
		INSERT INTO posts (id, slug, title, content, featured_image, status, user_id, user_name, user_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		post.ID,
		post.Slug,
		post.Title,
		post.Content,
		post.FeaturedImage,
		post.Status,
		post.UserID,
		post.UserName,
		post.UserEmail,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return types.Post{}, translateError(err)
	}
	return post, nil
}

func (r *PostRepository) Update(ctx context.Context, post types.Post) (types.Post, error) {
	post.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE posts
		SET slug = $1,
			title = $2,
			content = $3,
			featured_image = $4,
			status = $5,
			user_id = $6,
			user_name = $7,
			user_email = $8,
			updated_at = $9
		WHERE id = $10`
	result, err := r.db.ExecContext(
		ctx,
		query,
		post.Slug,
		post.Title,
		post.Content,
		post.FeaturedImage,
		post.Status,
		post.UserID,
		post.UserName,
		post.UserEmail,
		post.UpdatedAt,
		post.ID,
	)
	if err != nil {
		return types.Post{}, translateError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Post{}, err
	}
	if affected == 0 {
		return types.Post{}, ErrNotFound
	}
	return post, nil
}

func (r *PostRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	const query = `DELETE FROM posts WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
