package auth

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulsemetrics/insights-auth/internal/domain/oauth"
)

type googleServiceFixture struct {
	service  OAuthService
	broker   *StateBroker
	creds    *CredentialStore
	repo     *memoryCredentialRepo
	provider *fakeProvider
}

func newGoogleServiceFixture(t *testing.T, provider *fakeProvider) *googleServiceFixture {
	t.Helper()
	repo := newMemoryCredentialRepo()
	creds := NewCredentialStore(repo, newTestCipher(t))
	broker := NewStateBroker(newMemoryStateStore(), 10*time.Minute)
	return &googleServiceFixture{
		service:  NewGoogleService(broker, creds, provider, 5*time.Minute, zap.NewNop()),
		broker:   broker,
		creds:    creds,
		repo:     repo,
		provider: provider,
	}
}

func stateFromAuthURL(t *testing.T, rawURL string) string {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestGoogleService_FullConnectFlow(t *testing.T) {
	provider := &fakeProvider{
		exchangeTokens: &oauth.ProviderTokens{
			AccessToken:  "ya29.fresh",
			RefreshToken: "1//keepme",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
	}
	f := newGoogleServiceFixture(t, provider)
	ctx := context.Background()

	authURL, err := f.service.AuthorizationURL(ctx, 42)
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	result, err := f.service.HandleCallback(ctx, "auth-code", state)
	require.NoError(t, err)
	require.Equal(t, int64(42), result.UserID)
	require.Equal(t, "ya29.fresh", result.Tokens.AccessToken)

	// Stored credentials round-trip through the cipher.
	record, err := f.creds.Load(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "ya29.fresh", record.AccessToken)
	require.Equal(t, "1//keepme", record.RefreshToken)

	// A fresh token resolves without another provider round trip.
	token, err := f.service.ValidAccessToken(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "ya29.fresh", token)
	require.Equal(t, 0, f.provider.refreshCalls)
}

func TestGoogleService_CallbackRejectsUnknownState(t *testing.T) {
	f := newGoogleServiceFixture(t, &fakeProvider{})
	ctx := context.Background()

	_, err := f.service.HandleCallback(ctx, "auth-code", strings.Repeat("ab", 32))
	require.ErrorIs(t, err, oauth.ErrInvalidState)
	require.Equal(t, 0, f.provider.exchangeCalls)
	require.Equal(t, 0, f.repo.upserts)
}

func TestGoogleService_CallbackStateIsSingleUse(t *testing.T) {
	provider := &fakeProvider{
		exchangeTokens: &oauth.ProviderTokens{
			AccessToken:  "a",
			RefreshToken: "r",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
	}
	f := newGoogleServiceFixture(t, provider)
	ctx := context.Background()

	authURL, err := f.service.AuthorizationURL(ctx, 42)
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	_, err = f.service.HandleCallback(ctx, "auth-code", state)
	require.NoError(t, err)

	_, err = f.service.HandleCallback(ctx, "auth-code", state)
	require.ErrorIs(t, err, oauth.ErrInvalidState)
}

func TestGoogleService_CallbackMissingParams(t *testing.T) {
	f := newGoogleServiceFixture(t, &fakeProvider{})
	ctx := context.Background()

	_, err := f.service.HandleCallback(ctx, "", "some-state")
	require.ErrorIs(t, err, oauth.ErrInvalidRequest)

	_, err = f.service.HandleCallback(ctx, "auth-code", "")
	require.ErrorIs(t, err, oauth.ErrInvalidRequest)
}

func TestGoogleService_CallbackExchangeFailure(t *testing.T) {
	f := newGoogleServiceFixture(t, &fakeProvider{exchangeErr: errProviderDown})
	ctx := context.Background()

	authURL, err := f.service.AuthorizationURL(ctx, 42)
	require.NoError(t, err)

	_, err = f.service.HandleCallback(ctx, "auth-code", stateFromAuthURL(t, authURL))
	require.ErrorIs(t, err, oauth.ErrExchangeFailed)
	require.Equal(t, 0, f.repo.upserts)
}

func TestGoogleService_CallbackRequiresBothTokens(t *testing.T) {
	// Without prompt=consent Google can omit the refresh token on repeat
	// authorizations; a connection without one is useless long term.
	provider := &fakeProvider{
		exchangeTokens: &oauth.ProviderTokens{
			AccessToken: "ya29.only-access",
			ExpiresAt:   time.Now().Add(time.Hour),
		},
	}
	f := newGoogleServiceFixture(t, provider)
	ctx := context.Background()

	authURL, err := f.service.AuthorizationURL(ctx, 42)
	require.NoError(t, err)

	_, err = f.service.HandleCallback(ctx, "auth-code", stateFromAuthURL(t, authURL))
	require.ErrorIs(t, err, oauth.ErrMissingTokens)
	require.Equal(t, 0, f.repo.upserts)
}

func seedCredentials(t *testing.T, f *googleServiceFixture, userID int64, access, refresh string, expiresAt time.Time) {
	t.Helper()
	err := f.creds.Save(context.Background(), userID, oauth.ProviderTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	})
	require.NoError(t, err)
}

func TestGoogleService_RefreshReusesStoredRefreshToken(t *testing.T) {
	provider := &fakeProvider{
		// Google omits refresh_token in refresh responses.
		refreshTokens: &oauth.ProviderTokens{
			AccessToken: "ya29.renewed",
			ExpiresAt:   time.Now().Add(time.Hour),
		},
	}
	f := newGoogleServiceFixture(t, provider)
	ctx := context.Background()

	seedCredentials(t, f, 42, "ya29.stale", "1//keepme", time.Now().Add(-time.Minute))

	token, err := f.service.RefreshAccessToken(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "ya29.renewed", token)
	require.Equal(t, "1//keepme", f.provider.lastRefresh)

	record, err := f.creds.Load(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "ya29.renewed", record.AccessToken)
	require.Equal(t, "1//keepme", record.RefreshToken)
}

func TestGoogleService_RefreshWithoutConnection(t *testing.T) {
	f := newGoogleServiceFixture(t, &fakeProvider{})

	_, err := f.service.RefreshAccessToken(context.Background(), 42)
	require.ErrorIs(t, err, oauth.ErrNoRefreshToken)
}

func TestGoogleService_RefreshFailureKeepsCredentials(t *testing.T) {
	f := newGoogleServiceFixture(t, &fakeProvider{refreshErr: errProviderDown})
	ctx := context.Background()

	seedCredentials(t, f, 42, "ya29.stale", "1//keepme", time.Now().Add(-time.Minute))

	_, err := f.service.RefreshAccessToken(ctx, 42)
	require.ErrorIs(t, err, oauth.ErrRefreshFailed)

	// A transient provider outage must not wipe the stored connection.
	record, err := f.creds.Load(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "ya29.stale", record.AccessToken)
	require.Equal(t, "1//keepme", record.RefreshToken)
}

func TestGoogleService_ValidAccessToken_NearExpiryRefreshes(t *testing.T) {
	provider := &fakeProvider{
		refreshTokens: &oauth.ProviderTokens{
			AccessToken: "ya29.renewed",
			ExpiresAt:   time.Now().Add(time.Hour),
		},
	}
	f := newGoogleServiceFixture(t, provider)
	ctx := context.Background()

	// Expires inside the five-minute buffer: still valid, but too close.
	seedCredentials(t, f, 42, "ya29.closing", "1//keepme", time.Now().Add(2*time.Minute))

	token, err := f.service.ValidAccessToken(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "ya29.renewed", token)
	require.Equal(t, 1, f.provider.refreshCalls)
}

func TestGoogleService_ValidAccessToken_NotConnected(t *testing.T) {
	f := newGoogleServiceFixture(t, &fakeProvider{})

	_, err := f.service.ValidAccessToken(context.Background(), 42)
	require.ErrorIs(t, err, oauth.ErrNotConnected)
}

func TestGoogleService_Disconnect(t *testing.T) {
	f := newGoogleServiceFixture(t, &fakeProvider{})
	ctx := context.Background()

	seedCredentials(t, f, 42, "a", "r", time.Now().Add(time.Hour))

	require.NoError(t, f.service.Disconnect(ctx, 42))

	_, err := f.service.ValidAccessToken(ctx, 42)
	require.ErrorIs(t, err, oauth.ErrNotConnected)
}
