package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/pulsemetrics/insights-auth/internal/domain/oauth"
	"github.com/pulsemetrics/insights-auth/internal/repository"
	"github.com/pulsemetrics/insights-auth/internal/tokencipher"
)

// memoryStateStore mirrors the Redis store's semantics: TTL expiry and
// atomic, at-most-once consumption.
type memoryStateStore struct {
	mu     sync.Mutex
	states map[string]stateEntry
}

type stateEntry struct {
	userID    int64
	expiresAt time.Time
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{states: make(map[string]stateEntry)}
}

func (m *memoryStateStore) SaveState(_ context.Context, state string, userID int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state] = stateEntry{userID: userID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *memoryStateStore) ConsumeState(_ context.Context, state string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.states[state]
	if !ok {
		return 0, oauth.ErrInvalidState
	}
	delete(m.states, state)
	if time.Now().After(entry.expiresAt) {
		return 0, oauth.ErrInvalidState
	}
	return entry.userID, nil
}

// memoryCredentialRepo stores encrypted credential rows keyed by user.
type memoryCredentialRepo struct {
	mu      sync.Mutex
	rows    map[int64]repository.EncryptedCredential
	upserts int
}

func newMemoryCredentialRepo() *memoryCredentialRepo {
	return &memoryCredentialRepo{rows: make(map[int64]repository.EncryptedCredential)}
}

func (m *memoryCredentialRepo) Upsert(_ context.Context, userID int64, accessToken, refreshToken string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.rows[userID] = repository.EncryptedCredential{
		AccessToken:  &accessToken,
		RefreshToken: &refreshToken,
		ExpiresAt:    &expiresAt,
		UpdatedAt:    time.Now(),
	}
	return nil
}

func (m *memoryCredentialRepo) Get(_ context.Context, userID int64) (repository.EncryptedCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[userID]
	if !ok {
		return repository.EncryptedCredential{}, pgx.ErrNoRows
	}
	return row, nil
}

func (m *memoryCredentialRepo) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[userID] = repository.EncryptedCredential{UpdatedAt: time.Now()}
	return nil
}

// fakeProvider scripts the provider's responses and counts calls.
type fakeProvider struct {
	exchangeTokens *oauth.ProviderTokens
	exchangeErr    error
	refreshTokens  *oauth.ProviderTokens
	refreshErr     error

	exchangeCalls int
	refreshCalls  int
	lastRefresh   string
}

func (f *fakeProvider) AuthorizationURL(state string) string {
	return "https://provider.test/auth?state=" + state
}

func (f *fakeProvider) ExchangeCode(context.Context, string) (*oauth.ProviderTokens, error) {
	f.exchangeCalls++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchangeTokens, nil
}

func (f *fakeProvider) RefreshAccessToken(_ context.Context, refreshToken string) (*oauth.ProviderTokens, error) {
	f.refreshCalls++
	f.lastRefresh = refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshTokens, nil
}

var errProviderDown = errors.New("provider unavailable")

func newTestCipher(t *testing.T) *tokencipher.Cipher {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	c, err := tokencipher.New(key)
	require.NoError(t, err)
	return c
}
