package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pulsemetrics/insights-auth/internal/config"
	"github.com/pulsemetrics/insights-auth/internal/domain"
	"github.com/pulsemetrics/insights-auth/internal/password"
	"github.com/pulsemetrics/insights-auth/internal/repository"
)

// EnsureSeedUser creates a dev/e2e user at startup when SEED_EMAIL and
// SEED_PASSWORD are configured. A no-op otherwise.
func EnsureSeedUser(lc fx.Lifecycle, cfg config.Config, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureSeedUser(ctx, cfg, users, node, logger)
		},
	})
}

func ensureSeedUser(ctx context.Context, cfg config.Config, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.SeedEmail))
	if email == "" || cfg.SeedPassword == "" {
		return nil
	}

	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("seed lookup user: %w", err)
	}

	hashed, err := password.Hash(cfg.SeedPassword)
	if err != nil {
		return fmt.Errorf("seed hash password: %w", err)
	}

	created, err := users.Create(ctx, domain.User{
		ID:               node.Generate().Int64(),
		Email:            email,
		PasswordHash:     hashed,
		SubscriptionTier: "free",
	})
	if err != nil {
		return fmt.Errorf("seed create user: %w", err)
	}

	if logger != nil {
		logger.Info("seed user created",
			zap.String("email", created.Email),
			zap.Int64("user_id", created.ID),
		)
	}
	return nil
}
