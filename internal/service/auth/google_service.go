package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pulsemetrics/insights-auth/internal/adapter/google"
	"github.com/pulsemetrics/insights-auth/internal/domain/oauth"
)

// OAuthService orchestrates the Google connection lifecycle: authorization
// URL issuance, callback exchange, refresh, and just-in-time resolution.
type OAuthService interface {
	AuthorizationURL(ctx context.Context, userID int64) (string, error)
	HandleCallback(ctx context.Context, code, state string) (*oauth.CallbackResult, error)
	RefreshAccessToken(ctx context.Context, userID int64) (string, error)
	ValidAccessToken(ctx context.Context, userID int64) (string, error)
	Disconnect(ctx context.Context, userID int64) error
}

type googleService struct {
	broker        *StateBroker
	creds         *CredentialStore
	provider      google.ProviderClient
	refreshBuffer time.Duration
	logger        *zap.Logger
	tracer        trace.Tracer
}

// NewGoogleService wires the OAuth service implementation.
func NewGoogleService(broker *StateBroker, creds *CredentialStore, provider google.ProviderClient, refreshBuffer time.Duration, logger *zap.Logger) OAuthService {
	if refreshBuffer <= 0 {
		refreshBuffer = 5 * time.Minute
	}
	return &googleService{
		broker:        broker,
		creds:         creds,
		provider:      provider,
		refreshBuffer: refreshBuffer,
		logger:        logger,
		tracer:        otel.Tracer("github.com/pulsemetrics/insights-auth/internal/service/auth"),
	}
}

// AuthorizationURL issues a state for the user and builds the consent URL.
func (s *googleService) AuthorizationURL(ctx context.Context, userID int64) (string, error) {
	ctx, span := s.startSpan(ctx, "GoogleService.AuthorizationURL")
	defer span.End()

	state, err := s.broker.Issue(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return s.provider.AuthorizationURL(state), nil
}

// HandleCallback consumes the state, exchanges the code, and persists the
// encrypted credentials. The state is spent before the exchange, so a failed
// exchange requires the user to restart the flow.
func (s *googleService) HandleCallback(ctx context.Context, code, state string) (*oauth.CallbackResult, error) {
	ctx, span := s.startSpan(ctx, "GoogleService.HandleCallback")
	defer span.End()

	if strings.TrimSpace(code) == "" || strings.TrimSpace(state) == "" {
		return nil, oauth.ErrInvalidRequest
	}

	userID, err := s.broker.Consume(ctx, state)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	tokens, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		span.RecordError(err)
		s.log().Error("oauth code exchange failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, oauth.ErrExchangeFailed
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, oauth.ErrMissingTokens
	}

	if err := s.creds.Save(ctx, userID, *tokens); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("persist credentials: %w", err)
	}

	s.log().Info("oauth tokens stored", zap.Int64("user_id", userID))
	return &oauth.CallbackResult{UserID: userID, Tokens: *tokens}, nil
}

// RefreshAccessToken mints a new access token from the stored refresh token.
// The stored refresh token is reused: Google does not rotate it on refresh.
// On provider failure the existing credentials are left in place for retry.
func (s *googleService) RefreshAccessToken(ctx context.Context, userID int64) (string, error) {
	ctx, span := s.startSpan(ctx, "GoogleService.RefreshAccessToken")
	defer span.End()

	record, err := s.creds.Load(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("load credentials: %w", err)
	}
	if record == nil || record.RefreshToken == "" {
		return "", oauth.ErrNoRefreshToken
	}

	tokens, err := s.provider.RefreshAccessToken(ctx, record.RefreshToken)
	if err != nil || tokens.AccessToken == "" {
		if err != nil {
			span.RecordError(err)
		}
		s.log().Error("oauth token refresh failed", zap.Int64("user_id", userID), zap.Error(err))
		return "", oauth.ErrRefreshFailed
	}

	if err := s.creds.Save(ctx, userID, oauth.ProviderTokens{
		AccessToken:  tokens.AccessToken,
		RefreshToken: record.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	}); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("persist refreshed credentials: %w", err)
	}

	s.log().Info("access token refreshed", zap.Int64("user_id", userID))
	return tokens.AccessToken, nil
}

// ValidAccessToken returns an access token valid for at least the refresh
// buffer, refreshing synchronously when the stored one is near expiry. The
// buffer avoids handing out a token that expires mid-use downstream.
func (s *googleService) ValidAccessToken(ctx context.Context, userID int64) (string, error) {
	ctx, span := s.startSpan(ctx, "GoogleService.ValidAccessToken")
	defer span.End()

	record, err := s.creds.Load(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("load credentials: %w", err)
	}
	if record == nil {
		return "", oauth.ErrNotConnected
	}

	if !record.ExpiresAt.After(time.Now().Add(s.refreshBuffer)) {
		return s.RefreshAccessToken(ctx, userID)
	}
	return record.AccessToken, nil
}

// Disconnect removes the stored connection.
func (s *googleService) Disconnect(ctx context.Context, userID int64) error {
	ctx, span := s.startSpan(ctx, "GoogleService.Disconnect")
	defer span.End()
	return s.creds.Clear(ctx, userID)
}

func (s *googleService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

func (s *googleService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
