package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/inkpost/apiserver/internal/localstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginStoresSessionAndFetchesUser(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodPost, "/account/sessions", replyWith(http.StatusCreated, map[string]any{"secret": "tok-1"}))
	fb.on(http.MethodGet, "/account", replyWith(http.StatusOK, alice))
	identity, kv := newIdentity(fb)
	ctx := context.Background()

	res := identity.Login(ctx, "alice@example.com", "password1")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, alice.ID, res.UserData.ID)
	assert.Equal(t, "Bearer tok-1", fb.authOf("GET /account"))

	token, err := kv.Get(ctx, SessionKey)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.True(t, identity.HasSession(ctx))
}

func TestLoginFailureLeavesNoSession(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodPost, "/account/sessions", replyWith(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"}))
	identity, kv := newIdentity(fb)

	res := identity.Login(context.Background(), "alice@example.com", "nope")
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid email or password.", res.Error)
	_, err := kv.Get(context.Background(), SessionKey)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestLoginUserFetchFailureClearsSession(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodPost, "/account/sessions", replyWith(http.StatusCreated, map[string]any{"secret": "tok-1"}))
	fb.on(http.MethodGet, "/account", replyWith(http.StatusInternalServerError, map[string]string{"error": "internal server error"}))
	identity, kv := newIdentity(fb)

	res := identity.Login(context.Background(), "alice@example.com", "password1")
	assert.False(t, res.Success)
	assert.Equal(t, "Server error. Please try again later.", res.Error)
	_, err := kv.Get(context.Background(), SessionKey)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestCreateAccountLogsIn(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodPost, "/account", replyWith(http.StatusCreated, alice))
	fb.on(http.MethodPost, "/account/sessions", replyWith(http.StatusCreated, map[string]any{"secret": "tok-1"}))
	fb.on(http.MethodGet, "/account", replyWith(http.StatusOK, alice))
	identity, _ := newIdentity(fb)

	user, err := identity.CreateAccount(context.Background(), alice.Email, "password1", alice.Name)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)
	assert.JSONEq(t, `{"email":"alice@example.com","password":"password1","name":"Alice Doe"}`, fb.bodyOf("POST /account"))
}

func TestCreateAccountConflict(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodPost, "/account", replyWith(http.StatusConflict, map[string]string{"error": "email already registered"}))
	identity, _ := newIdentity(fb)

	_, err := identity.CreateAccount(context.Background(), alice.Email, "password1", alice.Name)
	require.Error(t, err)
	assert.Equal(t, "An account with this email already exists. Please login instead.", err.Error())

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, OpCreateAccount, gwErr.Op)
	assert.Equal(t, http.StatusConflict, StatusOf(err))
	assert.False(t, fb.called("POST /account/sessions"))
}

func TestUpdatePasswordValidatesBeforeAnyCall(t *testing.T) {
	fb := newFakeBackend(t)
	identity, _ := newIdentity(fb)
	ctx := context.Background()

	err := identity.UpdatePassword(ctx, "u-alice", "   ", "password1")
	assert.ErrorIs(t, err, ErrValidation)
	err = identity.UpdatePassword(ctx, " ", "secret", "password1")
	assert.ErrorIs(t, err, ErrValidation)
	err = identity.UpdatePassword(ctx, "u-alice", "secret", "short")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, fb.callCount())
}

func TestUpdatePasswordFailure(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodPut, "/account/recovery", replyWith(http.StatusNotFound, map[string]string{"error": "user not found"}))
	identity, _ := newIdentity(fb)

	err := identity.UpdatePassword(context.Background(), " u-alice ", " secret ", "password1")
	require.Error(t, err)
	assert.Equal(t, "Password update failed", err.Error())
	assert.JSONEq(t, `{"userId":"u-alice","secret":"secret","password":"password1"}`, fb.bodyOf("PUT /account/recovery"))
}

func TestForgotPassword(t *testing.T) {
	fb := newFakeBackend(t)
	identity, _ := newIdentity(fb)
	ctx := context.Background()

	fb.on(http.MethodPost, "/account/recovery", replyWith(http.StatusNotFound, map[string]string{"error": "user not found"}))
	err := identity.ForgotPassword(ctx, "ghost@example.com", "http://localhost:5173/reset-password")
	require.Error(t, err)
	assert.Equal(t, "Email not found. Please register first.", err.Error())

	fb.on(http.MethodPost, "/account/recovery", replyWith(http.StatusCreated, map[string]string{"status": "sent"}))
	require.NoError(t, identity.ForgotPassword(ctx, "alice@example.com", "http://localhost:5173/reset-password"))
}

func TestLogout(t *testing.T) {
	fb := newFakeBackend(t)
	identity, kv := newIdentity(fb)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, SessionKey, "tok-1"))

	fb.on(http.MethodDelete, "/account/sessions", replyWith(http.StatusInternalServerError, map[string]string{"error": "boom"}))
	assert.False(t, identity.Logout(ctx))
	assert.True(t, identity.HasSession(ctx))

	fb.on(http.MethodDelete, "/account/sessions", noContent)
	assert.True(t, identity.Logout(ctx))
	assert.False(t, identity.HasSession(ctx))
	assert.Equal(t, "Bearer tok-1", fb.authOf("DELETE /account/sessions"))
}

func TestGetCurrentUser(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodGet, "/account", replyWith(http.StatusOK, alice))
	identity, kv := newIdentity(fb)
	ctx := context.Background()

	assert.Nil(t, identity.GetCurrentUser(ctx))
	assert.Zero(t, fb.callCount())

	require.NoError(t, kv.Set(ctx, SessionKey, "tok-1"))
	user := identity.GetCurrentUser(ctx)
	require.NotNil(t, user)
	assert.Equal(t, alice.ID, user.ID)

	fb.on(http.MethodGet, "/account", replyWith(http.StatusUnauthorized, map[string]string{"error": "unauthorized"}))
	assert.Nil(t, identity.GetCurrentUser(ctx))
}

func TestCompleteOAuthLogin(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodGet, "/account", replyWith(http.StatusOK, alice))
	identity, _ := newIdentity(fb)

	assert.False(t, identity.CompleteOAuthLogin(context.Background(), " ").Success)

	res := identity.CompleteOAuthLogin(context.Background(), "oauth-token")
	require.True(t, res.Success)
	assert.Equal(t, "Bearer oauth-token", fb.authOf("GET /account"))
}

func TestGoogleLoginURL(t *testing.T) {
	identity := NewIdentity("http://api.local/", localstore.NewMemory(), nil)

	raw := identity.GoogleLoginURL("http://app.local/ok", "http://app.local/fail")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/account/oauth2/google", u.Path)
	assert.Equal(t, "http://app.local/ok", u.Query().Get("success"))
	assert.Equal(t, "http://app.local/fail", u.Query().Get("failure"))
}

func TestUpdateProfilePicture(t *testing.T) {
	fb := newFakeBackend(t)
	updated := alice
	updated.ProfilePicture = "file-9"
	fb.on(http.MethodPut, "/account/prefs/avatar", replyWith(http.StatusOK, updated))
	identity, _ := newIdentity(fb)

	user, err := identity.UpdateProfilePicture(context.Background(), "file-9")
	require.NoError(t, err)
	assert.Equal(t, "file-9", user.ProfilePicture)
	assert.JSONEq(t, `{"fileId":"file-9"}`, fb.bodyOf("PUT /account/prefs/avatar"))
}
