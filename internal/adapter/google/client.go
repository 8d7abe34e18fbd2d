// Package google implements the outbound OAuth 2.0 client for Google.
// The client is stateless: credentials are passed per call rather than held
// on a mutable client object.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pulsemetrics/insights-auth/internal/config"
	"github.com/pulsemetrics/insights-auth/internal/domain/oauth"
)

const (
	authEndpoint  = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenEndpoint = "https://oauth2.googleapis.com/token"

	// Fallback when the token response omits expires_in.
	defaultTokenLifetime = time.Hour
)

// Scopes requested on every authorization: read-only Analytics plus the
// user's email for account display.
var Scopes = []string{
	"https://www.googleapis.com/auth/analytics.readonly",
	"https://www.googleapis.com/auth/userinfo.email",
}

// ProviderClient encapsulates the provider's authorization and token endpoints.
type ProviderClient interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth.ProviderTokens, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*oauth.ProviderTokens, error)
}

// HTTPProviderClient is the default HTTP implementation.
type HTTPProviderClient struct {
	cfg        config.GoogleConfig
	httpClient *http.Client
	tokenURL   string
	authURL    string
}

var _ ProviderClient = (*HTTPProviderClient)(nil)

// Option customizes the client, used by tests to point at a stub server.
type Option func(*HTTPProviderClient)

// WithEndpoints overrides the provider endpoints.
func WithEndpoints(authURL, tokenURL string) Option {
	return func(c *HTTPProviderClient) {
		c.authURL = authURL
		c.tokenURL = tokenURL
	}
}

// NewHTTPProviderClient constructs the default ProviderClient.
func NewHTTPProviderClient(cfg config.GoogleConfig, client *http.Client, opts ...Option) *HTTPProviderClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	c := &HTTPProviderClient{
		cfg:        cfg,
		httpClient: client,
		tokenURL:   tokenEndpoint,
		authURL:    authEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthorizationURL builds the consent URL for the given state.
// access_type=offline and prompt=consent force Google to return a refresh
// token even on repeat authorizations.
func (c *HTTPProviderClient) AuthorizationURL(state string) string {
	params := url.Values{}
	params.Set("client_id", c.cfg.ClientID)
	params.Set("redirect_uri", c.cfg.RedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(Scopes, " "))
	params.Set("state", state)
	params.Set("access_type", "offline")
	params.Set("prompt", "consent")
	return c.authURL + "?" + params.Encode()
}

// ExchangeCode swaps an authorization code for provider tokens.
func (c *HTTPProviderClient) ExchangeCode(ctx context.Context, code string) (*oauth.ProviderTokens, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", c.cfg.ClientID)
	data.Set("client_secret", c.cfg.ClientSecret)
	data.Set("redirect_uri", c.cfg.RedirectURI)
	return c.postToken(ctx, data)
}

// RefreshAccessToken mints a new access token from a refresh token. Google
// typically omits the refresh token in this response; callers keep the one
// they already hold.
func (c *HTTPProviderClient) RefreshAccessToken(ctx context.Context, refreshToken string) (*oauth.ProviderTokens, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", c.cfg.ClientID)
	data.Set("client_secret", c.cfg.ClientSecret)
	return c.postToken(ctx, data)
}

func (c *HTTPProviderClient) postToken(ctx context.Context, data url.Values) (*oauth.ProviderTokens, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token endpoint failed: status=%d", resp.StatusCode)
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	lifetime := defaultTokenLifetime
	if payload.ExpiresIn > 0 {
		lifetime = time.Duration(payload.ExpiresIn) * time.Second
	}

	return &oauth.ProviderTokens{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    time.Now().Add(lifetime),
	}, nil
}
