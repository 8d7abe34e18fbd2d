package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsemetrics/insights-auth/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository       = (*PostgresUserRepo)(nil)
	_ CredentialRepository = (*PostgresCredentialRepo)(nil)
)

// PostgresUserRepo implements UserRepository over pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const selectUserColumns = `id, email, password_hash, subscription_tier, daily_digest_enabled, created_at, updated_at`

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+selectUserColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+selectUserColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

const insertUserSQL = `INSERT INTO users (id, email, password_hash, subscription_tier, daily_digest_enabled)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + selectUserColumns

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.SubscriptionTier,
		user.DailyDigestEnabled,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.SubscriptionTier,
		&user.DailyDigestEnabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

// PostgresCredentialRepo implements CredentialRepository. Credentials live on
// the users row; the three token columns are always written together.
type PostgresCredentialRepo struct {
	db *pgxpool.Pool
}

func NewPostgresCredentialRepo(pool *pgxpool.Pool) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: pool}
}

const upsertCredentialSQL = `UPDATE users
SET google_access_token = $1,
    google_refresh_token = $2,
    token_expires_at = $3,
    updated_at = now()
WHERE id = $4`

func (r *PostgresCredentialRepo) Upsert(ctx context.Context, userID int64, accessToken, refreshToken string, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx, upsertCredentialSQL, accessToken, refreshToken, expiresAt, userID)
	if err != nil {
		return fmt.Errorf("upsert credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("upsert credentials: user %d not found", userID)
	}
	return nil
}

func (r *PostgresCredentialRepo) Get(ctx context.Context, userID int64) (EncryptedCredential, error) {
	var cred EncryptedCredential
	err := r.db.QueryRow(ctx,
		`SELECT google_access_token, google_refresh_token, token_expires_at, updated_at
		 FROM users WHERE id = $1`, userID).
		Scan(&cred.AccessToken, &cred.RefreshToken, &cred.ExpiresAt, &cred.UpdatedAt)
	if err != nil {
		return EncryptedCredential{}, fmt.Errorf("get credentials: %w", err)
	}
	return cred, nil
}

const clearCredentialSQL = `UPDATE users
SET google_access_token = NULL,
    google_refresh_token = NULL,
    token_expires_at = NULL,
    updated_at = now()
WHERE id = $1`

func (r *PostgresCredentialRepo) Clear(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, clearCredentialSQL, userID); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
