package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pulsemetrics/insights-auth/internal/domain/oauth"
	"github.com/pulsemetrics/insights-auth/internal/repository"
	"github.com/pulsemetrics/insights-auth/internal/tokencipher"
)

// CredentialStore persists provider credentials for a user, encrypting on the
// way in and decrypting on the way out. Plaintext tokens exist only in memory;
// the repository below this store only ever sees cipher artifacts.
type CredentialStore struct {
	repo   repository.CredentialRepository
	cipher *tokencipher.Cipher
}

// NewCredentialStore wires the store.
func NewCredentialStore(repo repository.CredentialRepository, cipher *tokencipher.Cipher) *CredentialStore {
	return &CredentialStore{repo: repo, cipher: cipher}
}

// Save encrypts both tokens and overwrites the user's record. Access token
// and expiry are always written together.
func (s *CredentialStore) Save(ctx context.Context, userID int64, tokens oauth.ProviderTokens) error {
	encryptedAccess, err := s.cipher.Encrypt(tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	encryptedRefresh, err := s.cipher.Encrypt(tokens.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	return s.repo.Upsert(ctx, userID, encryptedAccess, encryptedRefresh, tokens.ExpiresAt)
}

// Load returns the decrypted credential record, or nil when the user has no
// stored connection (missing row or NULL token columns).
func (s *CredentialStore) Load(ctx context.Context, userID int64) (*oauth.CredentialRecord, error) {
	cred, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if cred.AccessToken == nil || cred.RefreshToken == nil || cred.ExpiresAt == nil {
		return nil, nil
	}

	accessToken, err := s.cipher.Decrypt(*cred.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	refreshToken, err := s.cipher.Decrypt(*cred.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}

	return &oauth.CredentialRecord{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    *cred.ExpiresAt,
		UpdatedAt:    cred.UpdatedAt,
	}, nil
}

// Clear removes the user's stored connection.
func (s *CredentialStore) Clear(ctx context.Context, userID int64) error {
	return s.repo.Clear(ctx, userID)
}
