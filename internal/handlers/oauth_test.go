package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/inkpost/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func noRedirectClient() *http.Client {
	return &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func TestNewGoogleOAuthDisabled(t *testing.T) {
	assert.Nil(t, NewGoogleOAuth(config.OAuthConfig{}))
	assert.NotNil(t, NewGoogleOAuth(config.OAuthConfig{GoogleClientID: "id"}))
}

func TestGoogleOAuthNotConfigured(t *testing.T) {
	srv := newAccountServer(t, newStubAccounts(), nil)
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/account/oauth2/google?success=http://a/s&failure=http://a/f", "", nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestGoogleOAuthFlow(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			require.NoError(t, r.ParseForm())
			if r.PostForm.Get("code") != "good-code" {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "access",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		case "/userinfo":
			assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(googleUser{Email: "grace@example.com", Name: "Grace", VerifiedEmail: true})
		default:
			http.NotFound(w, r)
		}
	}))
	defer provider.Close()

	google := &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURL:  "http://localhost/account/oauth2/google/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:   provider.URL + "/auth",
				TokenURL:  provider.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: provider.URL + "/userinfo",
	}
	accounts := newStubAccounts()
	srv := newAccountServer(t, accounts, google)
	client := noRedirectClient()

	resp, err := client.Get(srv.URL + "/account/oauth2/google?success=" + url.QueryEscape("http://app.local/ok") + "&failure=" + url.QueryEscape("http://app.local/fail"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	authURL, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth", authURL.Path)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)

	callback := srv.URL + "/account/oauth2/google/callback?state=" + url.QueryEscape(state)

	resp, err = client.Get(callback + "&code=bad-code")
	require.NoError(t, err)
	resp.Body.Close()
	failed, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/fail", failed.Path)
	assert.Equal(t, "oauth_failed", failed.Query().Get("error"))

	resp, err = client.Get(callback + "&code=good-code")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	done, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/ok", done.Path)
	secret := done.Query().Get("secret")
	require.NotEmpty(t, secret)

	meResp, data := doJSON(t, http.MethodGet, srv.URL+"/account", secret, nil)
	require.Equal(t, http.StatusOK, meResp.StatusCode)
	assert.Contains(t, string(data), "grace@example.com")
	assert.Equal(t, done.Query().Get("userId"), jsonField(t, data, "id"))

	resp, err = client.Get(srv.URL + "/account/oauth2/google/callback?state=forged&code=good-code")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = client.Get(srv.URL + "/account/oauth2/google?success=javascript:alert(1)&failure=http://a/f")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func jsonField(t *testing.T, data []byte, key string) string {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	value, _ := payload[key].(string)
	return value
}
