package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/inkpost/apiserver/config"
	"github.com/inkpost/apiserver/internal/services"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthStateTTL     = 10 * time.Minute
)

// GoogleOAuth holds the OAuth2 client configuration for Google sign-in.
type GoogleOAuth struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleOAuth returns nil when no client ID is configured.
func NewGoogleOAuth(cfg config.OAuthConfig) *GoogleOAuth {
	if cfg.GoogleClientID == "" {
		return nil
	}
	return &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

type googleUser struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	VerifiedEmail bool   `json:"verified_email"`
}

func (g *GoogleOAuth) fetchUser(ctx context.Context, code string) (googleUser, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return googleUser{}, fmt.Errorf("exchange code: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return googleUser{}, err
	}
	resp, err := g.config.Client(ctx, token).Do(req)
	if err != nil {
		return googleUser{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return googleUser{}, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}
	var user googleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return googleUser{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if !user.VerifiedEmail {
		return googleUser{}, errors.New("google email is not verified")
	}
	return user, nil
}

// oauthState is signed so the callback only redirects to URLs chosen at the
// start of the flow.
type oauthState struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	jwt.RegisteredClaims
}

type oauthHandler struct {
	accounts Accounts
	google   *GoogleOAuth
	secret   []byte
}

func absoluteURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid redirect url %q", raw)
	}
	return u, nil
}

// Start redirects to Google. Query parameters success and failure are the
// URLs the browser returns to.
func (h *oauthHandler) Start(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusNotImplemented, "google login is not configured")
		return
	}
	success, err := absoluteURL(r.URL.Query().Get("success"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	failure, err := absoluteURL(r.URL.Query().Get("failure"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, oauthState{
		Success: success.String(),
		Failure: failure.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(oauthStateTTL)),
		},
	}).SignedString(h.secret)
	if err != nil {
		writeServiceError(w, r, err, "oauth state")
		return
	}
	http.Redirect(w, r, h.google.config.AuthCodeURL(state), http.StatusFound)
}

// Callback finishes the flow and redirects to the success URL with userId
// and secret query parameters.
func (h *oauthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusNotImplemented, "google login is not configured")
		return
	}
	var state oauthState
	_, err := jwt.ParseWithClaims(r.URL.Query().Get("state"), &state, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return h.secret, nil
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}

	fail := func(reason string) {
		u, _ := url.Parse(state.Failure)
		q := u.Query()
		q.Set("error", reason)
		u.RawQuery = q.Encode()
		http.Redirect(w, r, u.String(), http.StatusFound)
	}

	if denied := r.URL.Query().Get("error"); denied != "" {
		fail(denied)
		return
	}
	profile, err := h.google.fetchUser(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("google login failed")
		fail("oauth_failed")
		return
	}
	user, session, err := h.accounts.LoginExternal(r.Context(), services.ProviderGoogle, profile.Name, profile.Email)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("google login failed")
		fail("login_failed")
		return
	}
	token, err := issueToken(session, h.secret)
	if err != nil {
		fail("login_failed")
		return
	}

	u, _ := url.Parse(state.Success)
	q := u.Query()
	q.Set("userId", user.ID)
	q.Set("secret", token)
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}
