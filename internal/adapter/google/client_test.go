package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsemetrics/insights-auth/internal/config"
)

func testConfig() config.GoogleConfig {
	return config.GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.test/api/auth/google/callback",
	}
}

func TestAuthorizationURL(t *testing.T) {
	c := NewHTTPProviderClient(testConfig(), nil)

	rawURL := c.AuthorizationURL("state-123")
	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)

	q := parsed.Query()
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Equal(t, "https://app.test/api/auth/google/callback", q.Get("redirect_uri"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "state-123", q.Get("state"))
	require.Equal(t, "offline", q.Get("access_type"))
	require.Equal(t, "consent", q.Get("prompt"))
	require.Contains(t, q.Get("scope"), "analytics.readonly")
	require.Contains(t, q.Get("scope"), "userinfo.email")
}

func TestExchangeCode(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "ya29.fresh",
			"refresh_token": "1//refresh",
			"expires_in":    3599,
		})
	}))
	defer srv.Close()

	c := NewHTTPProviderClient(testConfig(), srv.Client(), WithEndpoints(srv.URL, srv.URL))

	tokens, err := c.ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)
	require.Equal(t, "ya29.fresh", tokens.AccessToken)
	require.Equal(t, "1//refresh", tokens.RefreshToken)
	require.WithinDuration(t, time.Now().Add(3599*time.Second), tokens.ExpiresAt, 5*time.Second)

	require.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	require.Equal(t, "auth-code", gotForm.Get("code"))
	require.Equal(t, "client-id", gotForm.Get("client_id"))
	require.Equal(t, "client-secret", gotForm.Get("client_secret"))
	require.Equal(t, testConfig().RedirectURI, gotForm.Get("redirect_uri"))
}

func TestRefreshAccessToken(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		// Google omits refresh_token and sometimes expires_in here.
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "ya29.renewed",
		})
	}))
	defer srv.Close()

	c := NewHTTPProviderClient(testConfig(), srv.Client(), WithEndpoints(srv.URL, srv.URL))

	tokens, err := c.RefreshAccessToken(context.Background(), "1//stored")
	require.NoError(t, err)
	require.Equal(t, "ya29.renewed", tokens.AccessToken)
	require.Empty(t, tokens.RefreshToken)
	require.WithinDuration(t, time.Now().Add(defaultTokenLifetime), tokens.ExpiresAt, 5*time.Second)

	require.Equal(t, "refresh_token", gotForm.Get("grant_type"))
	require.Equal(t, "1//stored", gotForm.Get("refresh_token"))
}

func TestPostToken_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	}))
	defer srv.Close()

	c := NewHTTPProviderClient(testConfig(), srv.Client(), WithEndpoints(srv.URL, srv.URL))

	_, err := c.ExchangeCode(context.Background(), "expired-code")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=400")
}
