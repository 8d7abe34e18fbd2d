package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pulsemetrics/insights-auth/internal/domain"
	"github.com/pulsemetrics/insights-auth/internal/jwt"
	pw "github.com/pulsemetrics/insights-auth/internal/password"
	"github.com/pulsemetrics/insights-auth/internal/repository"
)

// ValidationError is a client-correctable input failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AuthError is an authentication-layer failure.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// TokenPair bundles the session tokens returned on register/login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const defaultSubscriptionTier = "free"

// AuthService encapsulates registration, login, and session token flows.
type AuthService struct {
	users     repository.UserRepository
	blacklist repository.TokenBlacklist
	node      *snowflake.Node
	jwt       *jwt.Generator
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, blacklist repository.TokenBlacklist, node *snowflake.Node, generator *jwt.Generator, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		blacklist: blacklist,
		node:      node,
		jwt:       generator,
		logger:    logger,
		tracer:    otel.Tracer("github.com/pulsemetrics/insights-auth/internal/service"),
	}
}

// Register creates a user and returns a fresh session token pair.
func (s *AuthService) Register(ctx context.Context, email, password string) (*TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Register")
	defer span.End()

	normalized := strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(normalized) {
		return nil, &ValidationError{Message: "invalid email address"}
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, normalized); err == nil {
		return nil, &ValidationError{Message: "email already registered"}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hashed, err := pw.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, domain.User{
		ID:               s.node.Generate().Int64(),
		Email:            normalized,
		PasswordHash:     hashed,
		SubscriptionTier: defaultSubscriptionTier,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return s.issueTokens(user.ID)
}

// Login authenticates email/password and returns a session token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	normalized := strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		return nil, &AuthError{Message: "invalid email or password"}
	}

	valid, err := pw.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		return nil, &AuthError{Message: "invalid email or password"}
	}

	s.logger.Info("user logged in", zap.Int64("user_id", user.ID))
	return s.issueTokens(user.ID)
}

// Refresh mints a new access token from a valid, unrevoked refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	revoked, err := s.blacklist.Contains(ctx, refreshToken)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("check blacklist: %w", err)
	}
	if revoked {
		return "", &AuthError{Message: "refresh token has been revoked"}
	}

	userID, _, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", &AuthError{Message: "invalid refresh token"}
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return "", &AuthError{Message: "user not found"}
	}

	access, err := s.jwt.GenerateAccessToken(userID)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return access, nil
}

// Logout revokes the refresh token for its remaining lifetime. An already
// invalid token needs no blacklisting, so this never fails the caller.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	_, expiry, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return
	}
	if err := s.blacklist.Add(ctx, refreshToken, time.Until(expiry)); err != nil {
		span.RecordError(err)
		s.logger.Warn("failed to blacklist refresh token", zap.Error(err))
	}
}

// GetUser loads the authenticated user's profile.
func (s *AuthService) GetUser(ctx context.Context, userID int64) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, &AuthError{Message: "user not found"}
		}
		return domain.User{}, err
	}
	return user, nil
}

// ValidateAccessToken verifies a bearer token and returns the user it
// belongs to. Used by the HTTP middleware.
func (s *AuthService) ValidateAccessToken(token string) (int64, error) {
	return s.jwt.ValidateAccessToken(token)
}

func (s *AuthService) issueTokens(userID int64) (*TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := s.jwt.GenerateRefreshToken(userID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return &ValidationError{Message: "password must be at least 8 characters"}
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return &ValidationError{Message: "password must contain both letters and numbers"}
	}
	return nil
}
