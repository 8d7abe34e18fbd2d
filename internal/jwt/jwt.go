// Package jwt signs and validates the platform's session tokens. Access and
// refresh tokens use separate HS256 secrets so one can be rotated without
// invalidating the other.
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

var (
	// ErrInvalidToken indicates a malformed or unverifiable token.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrExpiredToken indicates a structurally valid but expired token.
	ErrExpiredToken = errors.New("jwt: token expired")
)

// SessionClaims is the custom payload carried by session tokens.
type SessionClaims struct {
	UserID int64 `json:"user_id"`
}

// Generator signs and validates access and refresh session tokens.
type Generator struct {
	accessSigner  gojose.Signer
	refreshSigner gojose.Signer
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
}

// NewGenerator builds signers once at construction; it fails fast on empty
// secrets rather than on the first signing call.
func NewGenerator(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration, issuer string) (*Generator, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, fmt.Errorf("jwt: secrets must not be empty")
	}
	accessSigner, err := newHS256Signer(accessSecret)
	if err != nil {
		return nil, err
	}
	refreshSigner, err := newHS256Signer(refreshSecret)
	if err != nil {
		return nil, err
	}
	return &Generator{
		accessSigner:  accessSigner,
		refreshSigner: refreshSigner,
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        issuer,
	}, nil
}

func newHS256Signer(secret []byte) (gojose.Signer, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("jwt: new signer: %w", err)
	}
	return signer, nil
}

// GenerateAccessToken produces a signed short-lived access token.
func (g *Generator) GenerateAccessToken(userID int64) (string, error) {
	return g.generate(g.accessSigner, userID, g.accessTTL)
}

// GenerateRefreshToken produces a signed long-lived refresh token.
func (g *Generator) GenerateRefreshToken(userID int64) (string, error) {
	return g.generate(g.refreshSigner, userID, g.refreshTTL)
}

func (g *Generator) generate(signer gojose.Signer, userID int64, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	std := gojwt.Claims{
		Subject:   fmt.Sprintf("%d", userID),
		Issuer:    g.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := gojwt.Signed(signer).Claims(std).Claims(SessionClaims{UserID: userID}).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return token, nil
}

// ValidateAccessToken verifies an access token and returns the user it
// belongs to.
func (g *Generator) ValidateAccessToken(token string) (int64, error) {
	userID, _, err := g.validate(token, g.accessSecret)
	return userID, err
}

// ValidateRefreshToken verifies a refresh token and returns the user and the
// token's expiry, so revocation entries can match the remaining lifetime.
func (g *Generator) ValidateRefreshToken(token string) (int64, time.Time, error) {
	return g.validate(token, g.refreshSecret)
}

func (g *Generator) validate(token string, secret []byte) (int64, time.Time, error) {
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return 0, time.Time{}, ErrInvalidToken
	}

	var std gojwt.Claims
	var custom SessionClaims
	if err := parsed.Claims(secret, &std, &custom); err != nil {
		return 0, time.Time{}, ErrInvalidToken
	}

	if err := std.Validate(gojwt.Expected{Issuer: g.issuer, Time: time.Now()}); err != nil {
		if errors.Is(err, gojwt.ErrExpired) {
			return 0, time.Time{}, ErrExpiredToken
		}
		return 0, time.Time{}, ErrInvalidToken
	}

	if custom.UserID == 0 {
		return 0, time.Time{}, ErrInvalidToken
	}

	var expiry time.Time
	if std.Expiry != nil {
		expiry = std.Expiry.Time()
	}
	return custom.UserID, expiry, nil
}
