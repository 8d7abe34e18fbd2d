package repository

import (
	"context"
	"time"

	"github.com/pulsemetrics/insights-auth/internal/domain"
)

// UserRepository exposes persistence for platform users.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
}

// EncryptedCredential is the raw persisted form of a user's provider
// credentials. Token fields hold cipher artifacts, never plaintext; nil
// pointers mean the user has no stored connection.
type EncryptedCredential struct {
	AccessToken  *string
	RefreshToken *string
	ExpiresAt    *time.Time
	UpdatedAt    time.Time
}

// CredentialRepository stores encrypted provider credentials keyed by user.
type CredentialRepository interface {
	Upsert(ctx context.Context, userID int64, accessToken, refreshToken string, expiresAt time.Time) error
	Get(ctx context.Context, userID int64) (EncryptedCredential, error)
	Clear(ctx context.Context, userID int64) error
}

// OAuthStateStore persists short-lived single-use state values for the
// authorization flow. ConsumeState must be atomic: a state value redeems at
// most once even under concurrent callback delivery.
type OAuthStateStore interface {
	SaveState(ctx context.Context, state string, userID int64, ttl time.Duration) error
	ConsumeState(ctx context.Context, state string) (int64, error)
}

// TokenBlacklist records revoked session refresh tokens until they expire.
type TokenBlacklist interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	Contains(ctx context.Context, token string) (bool, error)
}
