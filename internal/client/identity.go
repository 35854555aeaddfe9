package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/inkpost/apiserver/internal/localstore"
	"github.com/inkpost/apiserver/types"
	"github.com/rs/zerolog/log"
)

// MinPasswordLength mirrors the backend rule and is checked before any call.
const MinPasswordLength = 8

// LoginResult is the outcome of a login. Error is set when Success is false.
type LoginResult struct {
	Success  bool
	UserData *types.User
	Error    string
}

// Identity wraps the account endpoints of the content backend.
type Identity struct {
	t *transport
}

func NewIdentity(baseURL string, kv localstore.KV, httpClient *http.Client) *Identity {
	return &Identity{t: newTransport(baseURL, kv, httpClient)}
}

type sessionResponse struct {
	Secret string `json:"secret"`
}

// CreateAccount registers the account and logs into it.
func (g *Identity) CreateAccount(ctx context.Context, email, password, name string) (*types.User, error) {
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := g.t.doJSON(ctx, http.MethodPost, "/account", body, nil); err != nil {
		return nil, wrap(OpCreateAccount, err)
	}
	res := g.Login(ctx, email, password)
	if !res.Success {
		return nil, &Error{Op: OpLogin, Message: res.Error}
	}
	return res.UserData, nil
}

// Login creates a session and fetches the user behind it. It never returns
// an error; failures are reported through the result.
func (g *Identity) Login(ctx context.Context, email, password string) LoginResult {
	var session sessionResponse
	body := map[string]string{"email": email, "password": password}
	if err := g.t.doJSON(ctx, http.MethodPost, "/account/sessions", body, &session); err != nil {
		log.Debug().Err(err).Str("email", email).Msg("login failed")
		return LoginResult{Error: Describe(OpLogin, err)}
	}
	return g.adoptSession(ctx, session.Secret)
}

// CompleteOAuthLogin adopts the session secret delivered to the OAuth success
// URL.
func (g *Identity) CompleteOAuthLogin(ctx context.Context, secret string) LoginResult {
	if strings.TrimSpace(secret) == "" {
		return LoginResult{Error: "Login failed. Please check your credentials."}
	}
	return g.adoptSession(ctx, strings.TrimSpace(secret))
}

func (g *Identity) adoptSession(ctx context.Context, secret string) LoginResult {
	if err := g.t.kv.Set(ctx, SessionKey, secret); err != nil {
		return LoginResult{Error: Describe(OpLogin, err)}
	}
	var user types.User
	if err := g.t.doJSON(ctx, http.MethodGet, "/account", nil, &user); err != nil {
		_ = g.t.kv.Delete(ctx, SessionKey)
		log.Debug().Err(err).Msg("fetch user after login failed")
		return LoginResult{Error: Describe(OpLogin, err)}
	}
	return LoginResult{Success: true, UserData: &user}
}

// Logout deletes every session of the current user. The local secret is
// dropped when the backend confirms, or when it no longer knows the session.
func (g *Identity) Logout(ctx context.Context) bool {
	err := g.t.doJSON(ctx, http.MethodDelete, "/account/sessions", nil, nil)
	if err != nil && StatusOf(err) != http.StatusUnauthorized {
		log.Debug().Err(err).Msg("logout failed")
		return false
	}
	if err := g.t.kv.Delete(ctx, SessionKey); err != nil {
		log.Warn().Err(err).Msg("clear local session")
	}
	return true
}

// GetCurrentUser returns the user of the live session, or nil.
func (g *Identity) GetCurrentUser(ctx context.Context) *types.User {
	if g.t.token(ctx) == "" {
		return nil
	}
	var user types.User
	if err := g.t.doJSON(ctx, http.MethodGet, "/account", nil, &user); err != nil {
		log.Debug().Err(err).Msg("get current user")
		return nil
	}
	return &user
}

// ForgotPassword asks the backend to send a recovery link that points at
// redirectURL.
func (g *Identity) ForgotPassword(ctx context.Context, email, redirectURL string) error {
	if strings.TrimSpace(email) == "" {
		return wrap(OpForgotPassword, validationf("email is required"))
	}
	body := map[string]string{"email": strings.TrimSpace(email), "url": redirectURL}
	return wrap(OpForgotPassword, g.t.doJSON(ctx, http.MethodPost, "/account/recovery", body, nil))
}

// UpdatePassword completes a recovery. Inputs are validated before any call.
func (g *Identity) UpdatePassword(ctx context.Context, userID, secret, newPassword string) error {
	userID = strings.TrimSpace(userID)
	secret = strings.TrimSpace(secret)
	switch {
	case userID == "" || secret == "":
		return wrap(OpUpdatePassword, validationf("invalid or expired reset link"))
	case len(newPassword) < MinPasswordLength:
		return wrap(OpUpdatePassword, validationf("password must be at least %d characters", MinPasswordLength))
	}
	body := map[string]string{"userId": userID, "secret": secret, "password": newPassword}
	return wrap(OpUpdatePassword, g.t.doJSON(ctx, http.MethodPut, "/account/recovery", body, nil))
}

// GoogleLoginURL is the backend URL that starts the Google OAuth flow. The
// browser is sent back to successURL with userId and secret parameters.
func (g *Identity) GoogleLoginURL(successURL, failureURL string) string {
	q := url.Values{}
	q.Set("success", successURL)
	q.Set("failure", failureURL)
	return g.t.baseURL + "/account/oauth2/google?" + q.Encode()
}

// UpdateProfilePicture points the remote account record at fileID. An empty
// fileID clears it.
func (g *Identity) UpdateProfilePicture(ctx context.Context, fileID string) (*types.User, error) {
	var user types.User
	if err := g.t.doJSON(ctx, http.MethodPut, "/account/prefs/avatar", map[string]string{"fileId": fileID}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// HasSession reports whether a session secret is stored locally.
func (g *Identity) HasSession(ctx context.Context) bool {
	return g.t.token(ctx) != ""
}
