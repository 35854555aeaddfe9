package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/inkpost/apiserver/types"
)

// Accounts is the account use-case surface served over HTTP.
type Accounts interface {
	SessionValidator
	Register(ctx context.Context, name, email, password string) (types.User, error)
	Login(ctx context.Context, email, password string) (types.Session, error)
	Logout(ctx context.Context, userID string) error
	CurrentUser(ctx context.Context, userID string) (types.User, error)
	RequestRecovery(ctx context.Context, email, redirectURL string) error
	CompleteRecovery(ctx context.Context, userID, secret, password string) error
	SetProfilePicture(ctx context.Context, userID, fileID string) (types.User, error)
	LoginExternal(ctx context.Context, provider, name, email string) (types.User, types.Session, error)
}

// AccountHandler serves sign-up, sessions, recovery and preferences.
type AccountHandler struct {
	accounts Accounts
	secret   []byte
}

func NewAccountHandler(accounts Accounts, jwtSecret string) *AccountHandler {
	return &AccountHandler{accounts: accounts, secret: []byte(jwtSecret)}
}

// AccountRouter registers account routes on the given router. google may be
// nil when OAuth is not configured.
func AccountRouter(r chi.Router, accounts Accounts, jwtSecret string, google *GoogleOAuth) {
	handler := NewAccountHandler(accounts, jwtSecret)
	authMiddleware := RequireAuth(accounts, jwtSecret)

	r.Post("/", handler.Register)
	r.With(authMiddleware).Get("/", handler.Me)
	r.Post("/sessions", handler.Login)
	r.With(authMiddleware).Delete("/sessions", handler.Logout)
	r.Post("/recovery", handler.RequestRecovery)
	r.Put("/recovery", handler.CompleteRecovery)
	r.With(authMiddleware).Put("/prefs/avatar", handler.SetAvatar)

	oauth := &oauthHandler{accounts: accounts, google: google, secret: handler.secret}
	r.Get("/oauth2/google", oauth.Start)
	r.Get("/oauth2/google/callback", oauth.Callback)
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse carries the bearer secret for a new session.
type SessionResponse struct {
	Secret  string        `json:"secret"`
	Session types.Session `json:"session"`
}

type RecoveryRequest struct {
	Email string `json:"email"`
	URL   string `json:"url"`
}

type RecoveryConfirmRequest struct {
	UserID   string `json:"userId"`
	Secret   string `json:"secret"`
	Password string `json:"password"`
}

type AvatarRequest struct {
	FileID string `json:"fileId"`
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	session, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "user")
		return
	}
	h.writeSession(w, r, session)
}

func (h *AccountHandler) writeSession(w http.ResponseWriter, r *http.Request, session types.Session) {
	token, err := issueToken(session, h.secret)
	if err != nil {
		writeServiceError(w, r, err, "session")
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{Secret: token, Session: session})
}

// Me returns the current authenticated user.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.accounts.CurrentUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout deletes every session of the current user.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.accounts.Logout(r.Context(), userID); err != nil {
		writeServiceError(w, r, err, "session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) RequestRecovery(w http.ResponseWriter, r *http.Request) {
	var req RecoveryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "missing required fields: email")
		return
	}
	if err := h.accounts.RequestRecovery(r.Context(), req.Email, req.URL); err != nil {
		writeServiceError(w, r, err, "user")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "sent"})
}

func (h *AccountHandler) CompleteRecovery(w http.ResponseWriter, r *http.Request) {
	var req RecoveryConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.accounts.CompleteRecovery(r.Context(), req.UserID, req.Secret, req.Password); err != nil {
		writeServiceError(w, r, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *AccountHandler) SetAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req AvatarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.accounts.SetProfilePicture(r.Context(), userID, req.FileID)
	if err != nil {
		writeServiceError(w, r, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
