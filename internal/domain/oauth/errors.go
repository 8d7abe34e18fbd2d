package oauth

import "errors"

var (
	// ErrInvalidRequest indicates caller input validation errors.
	ErrInvalidRequest = errors.New("oauth: invalid request")
	// ErrInvalidState indicates the state parameter is unknown, expired, or
	// already redeemed.
	ErrInvalidState = errors.New("oauth: invalid or expired state")
	// ErrExchangeFailed indicates the provider rejected the code exchange.
	ErrExchangeFailed = errors.New("oauth: failed to authenticate with provider")
	// ErrMissingTokens indicates the provider response lacked the access or
	// refresh token.
	ErrMissingTokens = errors.New("oauth: missing tokens in provider response")
	// ErrNoRefreshToken signals a refresh was requested without stored credentials.
	ErrNoRefreshToken = errors.New("oauth: no refresh token available")
	// ErrRefreshFailed indicates the provider rejected the refresh request.
	ErrRefreshFailed = errors.New("oauth: failed to refresh token")
	// ErrNotConnected signals the user has not linked a provider account.
	ErrNotConnected = errors.New("oauth: account not connected")
)
