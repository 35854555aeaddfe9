package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/inkpost/apiserver/internal/services"
	"github.com/inkpost/apiserver/internal/store"
	"github.com/inkpost/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFiles struct {
	files map[string]types.File
	data  map[string][]byte
}

func (s *stubFiles) Upload(ctx context.Context, ownerID, name string, r io.Reader) (types.File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return types.File{}, err
	}
	mimeType := http.DetectContentType(data)
	if mimeType != "image/png" {
		return types.File{}, services.ErrInvalid
	}
	file := types.File{ID: uuid.NewString(), Name: name, MimeType: mimeType, SizeBytes: int64(len(data)), OwnerID: ownerID}
	s.files[file.ID] = file
	s.data[file.ID] = data
	return file, nil
}

func (s *stubFiles) Get(ctx context.Context, id string) (types.File, error) {
	file, ok := s.files[id]
	if !ok {
		return types.File{}, store.ErrNotFound
	}
	return file, nil
}

func (s *stubFiles) Open(ctx context.Context, id string) (types.File, io.ReadCloser, error) {
	file, err := s.Get(ctx, id)
	if err != nil {
		return types.File{}, nil, err
	}
	return file, io.NopCloser(bytes.NewReader(s.data[id])), nil
}

func (s *stubFiles) Delete(ctx context.Context, actorID, id string) error {
	file, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if file.OwnerID != actorID {
		return services.ErrForbidden
	}
	delete(s.files, id)
	return nil
}

var testPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartBody(t *testing.T, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(formFieldFile, name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func upload(t *testing.T, url, token, name string, data []byte) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, name, data)
	req, err := http.NewRequest(http.MethodPost, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestFileRoutes(t *testing.T) {
	accounts := newStubAccounts()
	files := &stubFiles{files: map[string]types.File{}, data: map[string][]byte{}}
	router := chi.NewRouter()
	router.Route("/account", func(r chi.Router) {
		AccountRouter(r, accounts, testSecret, nil)
	})
	router.Route("/files", func(r chi.Router) {
		FileRouter(r, files, RequireAuth(accounts, testSecret))
	})
	srv := httptest.NewServer(router)
	defer srv.Close()
	f := postFixture{srv: srv, accounts: accounts}
	owner := f.login(t, "owner@example.com")
	other := f.login(t, "other@example.com")

	resp := upload(t, srv.URL+"/files", "", "a.png", testPNG)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = upload(t, srv.URL+"/files", owner, "a.txt", []byte("hello"))
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, contentType := multipartBody(t, "big.png", make([]byte, services.MaxFileSize+(2<<20)))
	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+owner)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp = upload(t, srv.URL+"/files", owner, "a.png", testPNG)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var file types.File
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&file))
	resp.Body.Close()

	resp, data := doJSON(t, http.MethodGet, srv.URL+"/files/"+file.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"mimeType":"image/png"`)

	resp, data = doJSON(t, http.MethodGet, srv.URL+"/files/"+file.ID+"/view", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "inline")
	assert.Equal(t, testPNG, data)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/files/"+file.ID+"/download", "", nil)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/files/missing/preview", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/files/"+file.ID, other, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/files/"+file.ID, owner, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
