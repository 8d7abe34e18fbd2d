package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/pulsemetrics/insights-auth/internal/adapter/cache"
	googleadapter "github.com/pulsemetrics/insights-auth/internal/adapter/google"
	"github.com/pulsemetrics/insights-auth/internal/bootstrap"
	"github.com/pulsemetrics/insights-auth/internal/config"
	httptransport "github.com/pulsemetrics/insights-auth/internal/http"
	"github.com/pulsemetrics/insights-auth/internal/http/handler"
	httpmiddleware "github.com/pulsemetrics/insights-auth/internal/http/middleware"
	"github.com/pulsemetrics/insights-auth/internal/jwt"
	apimiddleware "github.com/pulsemetrics/insights-auth/internal/middleware"
	"github.com/pulsemetrics/insights-auth/internal/repository"
	"github.com/pulsemetrics/insights-auth/internal/server"
	"github.com/pulsemetrics/insights-auth/internal/service"
	authservice "github.com/pulsemetrics/insights-auth/internal/service/auth"
	"github.com/pulsemetrics/insights-auth/internal/telemetry"
	"github.com/pulsemetrics/insights-auth/internal/tokencipher"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newUserRepository,
			newCredentialRepository,
			newRedisClient,
			newStateStore,
			newTokenBlacklist,
			newTokenCipher,
			newCredentialStore,
			newStateBroker,
			newProviderClient,
			newJWTGenerator,
			newRateLimiter,
			service.NewAuthService,
			newGoogleService,
			newAuthHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, runMigrations, bootstrap.EnsureSeedUser, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newCredentialRepository(pool *pgxpool.Pool) repository.CredentialRepository {
	return repository.NewPostgresCredentialRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newStateStore(client redis.UniversalClient) repository.OAuthStateStore {
	return cacheadapter.NewRedisStateStore(client)
}

func newTokenBlacklist(client redis.UniversalClient) repository.TokenBlacklist {
	return cacheadapter.NewRedisTokenBlacklist(client)
}

func newTokenCipher(cfg config.Config) (*tokencipher.Cipher, error) {
	return tokencipher.New(cfg.EncryptionKey)
}

func newCredentialStore(repo repository.CredentialRepository, cipher *tokencipher.Cipher) *authservice.CredentialStore {
	return authservice.NewCredentialStore(repo, cipher)
}

func newStateBroker(store repository.OAuthStateStore, cfg config.Config) *authservice.StateBroker {
	return authservice.NewStateBroker(store, cfg.OAuthStateTTL)
}

func newProviderClient(cfg config.Config) googleadapter.ProviderClient {
	return googleadapter.NewHTTPProviderClient(cfg.Google, nil)
}

func newJWTGenerator(cfg config.Config) (*jwt.Generator, error) {
	return jwt.NewGenerator(cfg.JWTSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.ServiceName)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newGoogleService(broker *authservice.StateBroker, creds *authservice.CredentialStore, provider googleadapter.ProviderClient, cfg config.Config, logger *zap.Logger) authservice.OAuthService {
	return authservice.NewGoogleService(broker, creds, provider, cfg.TokenRefreshBuffer, logger)
}

func newAuthHandler(auth *service.AuthService, oauth authservice.OAuthService, cfg config.Config, logger *zap.Logger) *handler.AuthHandler {
	return handler.NewAuthHandler(auth, oauth, cfg.FrontendURL, logger)
}

func newAuthMiddleware(authService *service.AuthService) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{AuthService: authService}
}

func runMigrations(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := repository.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
				return err
			}
			logger.Info("database migrations applied")
			return nil
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
