package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/inkpost/apiserver/internal/storage"
	"github.com/inkpost/apiserver/internal/store"
	"github.com/inkpost/apiserver/types"
	"github.com/rs/zerolog/log"
)

// MaxFileSize is the largest accepted upload, 5 MiB.
const MaxFileSize = 5 << 20

// FileRepository defines persistence operations for file metadata.
type FileRepository interface {
	Get(ctx context.Context, id string) (types.File, error)
	Create(ctx context.Context, file types.File) (types.File, error)
	Delete(ctx context.Context, id string) error
}

// ObjectStore is the subset of the file bucket used by FileService.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// FileService stores images in the bucket and their metadata in the
// database.
type FileService struct {
	repo    FileRepository
	objects ObjectStore
}

func NewFileService(repo FileRepository, objects ObjectStore) *FileService {
	return &FileService{repo: repo, objects: objects}
}

func objectKey(id string) string {
	return path.Join("files", id)
}

// Upload reads at most MaxFileSize bytes from r and stores them when the
// sniffed content type is an image.
func (s *FileService) Upload(ctx context.Context, ownerID, name string, r io.Reader) (types.File, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return types.File{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return types.File{}, invalidf("file is empty")
	}
	if len(data) > MaxFileSize {
		return types.File{}, invalidf("file size exceeds %d MiB", MaxFileSize>>20)
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return types.File{}, invalidf("file type %s is not an image", mimeType)
	}

	id := uuid.NewString()
	file := types.File{
		ID:        id,
		Name:      path.Base(strings.TrimSpace(name)),
		MimeType:  mimeType,
		SizeBytes: int64(len(data)),
		OwnerID:   ownerID,
		ObjectKey: objectKey(id),
	}
	if err := s.objects.Put(ctx, file.ObjectKey, bytes.NewReader(data), file.SizeBytes, mimeType); err != nil {
		return types.File{}, fmt.Errorf("store object: %w", err)
	}

	created, err := s.repo.Create(ctx, file)
	if err != nil {
		if delErr := s.objects.Delete(ctx, file.ObjectKey); delErr != nil {
			log.Ctx(ctx).Warn().Err(delErr).Str("key", file.ObjectKey).Msg("orphaned object after failed upload")
		}
		return types.File{}, err
	}
	return created, nil
}

func (s *FileService) Get(ctx context.Context, id string) (types.File, error) {
	return s.repo.Get(ctx, id)
}

// Open returns the file metadata and a reader over its bytes. The caller
// closes the reader.
func (s *FileService) Open(ctx context.Context, id string) (types.File, io.ReadCloser, error) {
	file, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.File{}, nil, err
	}
	body, err := s.objects.Get(ctx, file.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return types.File{}, nil, store.ErrNotFound
		}
		return types.File{}, nil, err
	}
	return file, body, nil
}

// Delete removes a file owned by actorID.
func (s *FileService) Delete(ctx context.Context, actorID, id string) error {
	file, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if file.OwnerID != actorID {
		return ErrForbidden
	}
	if err := s.objects.Delete(ctx, file.ObjectKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("delete object: %w", err)
	}
	return s.repo.Delete(ctx, id)
}
