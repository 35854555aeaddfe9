package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/inkpost/apiserver/types"
)

// FileRepository handles persistence for file metadata. Object bytes live in
// the storage backend.
type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Get(ctx context.Context, id string) (types.File, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.File{}, ErrNotFound
	}
	const query = `
		SELECT id, name, mime_type, size_bytes, owner_id, object_key, created_at
		FROM files
		WHERE id = $1`
	var file types.File
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&file.ID,
		&file.Name,
		&file.MimeType,
		&file.SizeBytes,
		&file.OwnerID,
		&file.ObjectKey,
		&file.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.File{}, ErrNotFound
		}
		return types.File{}, err
	}
	return file, nil
}

// Create stores metadata for a file whose ID and ObjectKey were already
// assigned by the caller.
func (r *FileRepository) Create(ctx context.Context, file types.File) (types.File, error) {
	file.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO files (id, name, mime_type, size_bytes, owner_id, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		file.ID,
		file.Name,
		file.MimeType,
		file.SizeBytes,
		file.OwnerID,
		file.ObjectKey,
		file.CreatedAt,
	)
	if err != nil {
		return types.File{}, translateError(err)
	}
	return file, nil
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	const query = `DELETE FROM files WHERE id = $1`
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
