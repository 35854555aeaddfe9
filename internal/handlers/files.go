package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/inkpost/apiserver/internal/services"
	"github.com/inkpost/apiserver/types"
	"github.com/rs/zerolog/hlog"
)

const (
	maxMultipartMemory = 8 << 20
	formFieldFile      = "file"
)

// Files is the file bucket surface served over HTTP.
type Files interface {
	Upload(ctx context.Context, ownerID, name string, r io.Reader) (types.File, error)
	Get(ctx context.Context, id string) (types.File, error)
	Open(ctx context.Context, id string) (types.File, io.ReadCloser, error)
	Delete(ctx context.Context, actorID, id string) error
}

// FileHandler provides HTTP handlers for the file bucket.
type FileHandler struct {
	files Files
}

func NewFileHandler(files Files) *FileHandler {
	return &FileHandler{files: files}
}

// FileRouter registers file routes on the given router.
func FileRouter(r chi.Router, files Files, authMiddleware func(http.Handler) http.Handler) {
	handler := NewFileHandler(files)

	r.With(authMiddleware).Post("/", handler.Upload)
	r.Route("/{fileID}", func(r chi.Router) {
		r.Get("/", handler.Metadata)
		r.Get("/view", handler.serve("inline", "no-cache"))
		r.Get("/preview", handler.serve("inline", "public, max-age=86400"))
		r.Get("/download", handler.serve("attachment", "no-cache"))
		r.With(authMiddleware).Delete("/", handler.Delete)
	})
}

// Upload accepts a multipart form with one image in the "file" field.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("file size exceeds %d MiB", services.MaxFileSize>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	part, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer part.Close()

	file, err := h.files.Upload(r.Context(), userID, header.Filename, part)
	if err != nil {
		writeServiceError(w, r, err, "file")
		return
	}
	writeJSON(w, http.StatusCreated, file)
}

func (h *FileHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	file, err := h.files.Get(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		writeServiceError(w, r, err, "file")
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (h *FileHandler) serve(disposition, cacheControl string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, body, err := h.files.Open(r.Context(), chi.URLParam(r, "fileID"))
		if err != nil {
			writeServiceError(w, r, err, "file")
			return
		}
		defer body.Close()

		w.Header().Set("Content-Type", file.MimeType)
		w.Header().Set("Content-Length", strconv.FormatInt(file.SizeBytes, 10))
		w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": file.Name}))
		w.Header().Set("Cache-Control", cacheControl)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, body); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("file_id", file.ID).Msg("file stream interrupted")
		}
	}
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.files.Delete(r.Context(), userID, chi.URLParam(r, "fileID")); err != nil {
		writeServiceError(w, r, err, "file")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
