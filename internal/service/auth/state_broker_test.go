package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsemetrics/insights-auth/internal/domain/oauth"
)

func TestStateBroker_IssueAndConsume(t *testing.T) {
	broker := NewStateBroker(newMemoryStateStore(), 10*time.Minute)
	ctx := context.Background()

	state, err := broker.Issue(ctx, 42)
	require.NoError(t, err)
	require.Len(t, state, 64) // 32 random bytes, hex encoded

	userID, err := broker.Consume(ctx, state)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)
}

func TestStateBroker_SingleUse(t *testing.T) {
	broker := NewStateBroker(newMemoryStateStore(), 10*time.Minute)
	ctx := context.Background()

	state, err := broker.Issue(ctx, 7)
	require.NoError(t, err)

	_, err = broker.Consume(ctx, state)
	require.NoError(t, err)

	_, err = broker.Consume(ctx, state)
	require.ErrorIs(t, err, oauth.ErrInvalidState)
}

func TestStateBroker_ConcurrentConsumeRedeemsOnce(t *testing.T) {
	broker := NewStateBroker(newMemoryStateStore(), 10*time.Minute)
	ctx := context.Background()

	state, err := broker.Issue(ctx, 7)
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := broker.Consume(ctx, state); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
}

func TestStateBroker_UnknownState(t *testing.T) {
	broker := NewStateBroker(newMemoryStateStore(), 10*time.Minute)

	_, err := broker.Consume(context.Background(), "deadbeef")
	require.ErrorIs(t, err, oauth.ErrInvalidState)
}

func TestStateBroker_EmptyState(t *testing.T) {
	broker := NewStateBroker(newMemoryStateStore(), 10*time.Minute)

	for _, state := range []string{"", "   "} {
		_, err := broker.Consume(context.Background(), state)
		require.ErrorIs(t, err, oauth.ErrInvalidState)
	}
}

func TestStateBroker_ExpiredState(t *testing.T) {
	broker := NewStateBroker(newMemoryStateStore(), time.Nanosecond)
	ctx := context.Background()

	state, err := broker.Issue(ctx, 7)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = broker.Consume(ctx, state)
	require.ErrorIs(t, err, oauth.ErrInvalidState)
}

func TestStateBroker_StatesAreUnique(t *testing.T) {
	broker := NewStateBroker(newMemoryStateStore(), 10*time.Minute)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		state, err := broker.Issue(ctx, 1)
		require.NoError(t, err)
		require.False(t, seen[state])
		seen[state] = true
	}
}
