package oauth

import "time"

// ProviderTokens is the transient token set returned by the provider's token
// endpoint. Values are held in memory only; persistence always goes through
// the credential store, which encrypts them first.
type ProviderTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// CredentialRecord is the decrypted view of a user's stored provider
// credentials.
type CredentialRecord struct {
	UserID       int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// CallbackResult is emitted when an authorization-code exchange completes.
type CallbackResult struct {
	UserID int64
	Tokens ProviderTokens
}
