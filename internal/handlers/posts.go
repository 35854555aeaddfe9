package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/inkpost/apiserver/internal/services"
	"github.com/inkpost/apiserver/types"
)

// Posts is the post use-case surface served over HTTP.
type Posts interface {
	List(ctx context.Context, q types.PostQuery) ([]types.Post, error)
	Get(ctx context.Context, id string) (types.Post, error)
	Create(ctx context.Context, author types.User, in services.PostInput) (types.Post, error)
	Update(ctx context.Context, actorID, id string, patch services.PostPatch) (types.Post, error)
	Delete(ctx context.Context, actorID, id string) error
}

// UserLookup resolves the author of a new post.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (types.User, error)
}

// PostHandler provides HTTP handlers for posts.
type PostHandler struct {
	posts Posts
	users UserLookup
}

func NewPostHandler(posts Posts, users UserLookup) *PostHandler {
	return &PostHandler{posts: posts, users: users}
}

// PostRouter registers post routes on the given router.
func PostRouter(r chi.Router, posts Posts, users UserLookup, authMiddleware func(http.Handler) http.Handler) {
	handler := NewPostHandler(posts, users)

	r.Get("/", handler.ListPosts)
	r.With(authMiddleware).Post("/", handler.CreatePost)
	r.Route("/{postID}", func(r chi.Router) {
		r.Get("/", handler.GetPost)
		r.With(authMiddleware).Patch("/", handler.UpdatePost)
		r.With(authMiddleware).Delete("/", handler.DeletePost)
	})
}

// ListPosts filters by the status, userId and slug query parameters. Without
// parameters every post is returned.
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := types.PostQuery{
		Status: types.PostStatus(strings.TrimSpace(values.Get("status"))),
		UserID: strings.TrimSpace(values.Get("userId")),
		Slug:   strings.TrimSpace(values.Get("slug")),
	}

	posts, err := h.posts.List(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err, "posts")
		return
	}
	writeJSON(w, http.StatusOK, types.PostList{Total: len(posts), Documents: posts})
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		writeServiceError(w, r, err, "post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req services.PostInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	author, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "user")
		return
	}
	post, err := h.posts.Create(r.Context(), author, req)
	if err != nil {
		writeServiceError(w, r, err, "post")
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req services.PostPatch
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.posts.Update(r.Context(), userID, chi.URLParam(r, "postID"), req)
	if err != nil {
		writeServiceError(w, r, err, "post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.posts.Delete(r.Context(), userID, chi.URLParam(r, "postID")); err != nil {
		writeServiceError(w, r, err, "post")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
