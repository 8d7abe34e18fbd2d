package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsemetrics/insights-auth/internal/repository"
)

const blacklistPrefix = "blacklist:refresh:"

// RedisTokenBlacklist tracks revoked session refresh tokens until expiry.
type RedisTokenBlacklist struct {
	client redis.UniversalClient
}

var _ repository.TokenBlacklist = (*RedisTokenBlacklist)(nil)

// NewRedisTokenBlacklist constructs a Redis-backed blacklist.
func NewRedisTokenBlacklist(client redis.UniversalClient) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{client: client}
}

// Add marks the token revoked for its remaining lifetime.
func (b *RedisTokenBlacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, blacklistPrefix+token, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// Contains reports whether the token was revoked.
func (b *RedisTokenBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	err := b.client.Get(ctx, blacklistPrefix+token).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return true, nil
}
