package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/pulsemetrics/insights-auth/internal/domain/oauth"
	"github.com/pulsemetrics/insights-auth/internal/repository"
)

const stateBytes = 32

// StateBroker mints and redeems the single-use state values that bind an
// OAuth redirect back to the user who initiated it.
type StateBroker struct {
	store repository.OAuthStateStore
	ttl   time.Duration
}

// NewStateBroker wires the broker over a TTL-capable store.
func NewStateBroker(store repository.OAuthStateStore, ttl time.Duration) *StateBroker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateBroker{store: store, ttl: ttl}
}

// Issue generates a random state value and maps it to the user.
func (b *StateBroker) Issue(ctx context.Context, userID int64) (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := hex.EncodeToString(buf)
	if err := b.store.SaveState(ctx, state, userID, b.ttl); err != nil {
		return "", err
	}
	return state, nil
}

// Consume redeems a state value exactly once, returning the initiating user.
// Unknown, expired, or already-redeemed values fail with ErrInvalidState.
func (b *StateBroker) Consume(ctx context.Context, state string) (int64, error) {
	trimmed := strings.TrimSpace(state)
	if trimmed == "" {
		return 0, oauth.ErrInvalidState
	}
	return b.store.ConsumeState(ctx, trimmed)
}
