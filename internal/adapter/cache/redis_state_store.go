package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsemetrics/insights-auth/internal/domain/oauth"
	"github.com/pulsemetrics/insights-auth/internal/repository"
)

const statePrefix = "oauth:state:"

// RedisStateStore implements OAuthStateStore backed by Redis. Expiry is
// enforced entirely by Redis key TTLs.
type RedisStateStore struct {
	client redis.UniversalClient
}

var _ repository.OAuthStateStore = (*RedisStateStore)(nil)

// NewRedisStateStore constructs a Redis-backed state store.
func NewRedisStateStore(client redis.UniversalClient) *RedisStateStore {
	return &RedisStateStore{client: client}
}

// SaveState maps state to the initiating user with TTL.
func (s *RedisStateStore) SaveState(ctx context.Context, state string, userID int64, ttl time.Duration) error {
	key := statePrefix + state
	if err := s.client.Set(ctx, key, strconv.FormatInt(userID, 10), ttl).Err(); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

// ConsumeState redeems a state value at most once. GETDEL makes the
// lookup-and-delete atomic, so a concurrent second consume misses.
func (s *RedisStateStore) ConsumeState(ctx context.Context, state string) (int64, error) {
	key := statePrefix + state
	raw, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, oauth.ErrInvalidState
		}
		return 0, fmt.Errorf("consume state: %w", err)
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode state payload: %w", err)
	}
	return userID, nil
}
