package batch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/trustmesh/internal/batch"
	"github.com/rawbytedev/trustmesh/internal/domain"
	"github.com/rawbytedev/trustmesh/internal/priority"
)

func TestFlushByThreshold(t *testing.T) {
	cache := priority.New()
	cache.Add(0, domain.EscrowLinked)
	cache.Add(1, domain.EscrowLinked)
	cache.Add(2, domain.EscrowLinked)

	runner := batch.New(cache, 3, 10*time.Second)

	var mu sync.Mutex
	var received []uint64

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	runner.Run(ctx, func(_ context.Context, b []domain.EscrowRef) error {
		mu.Lock()
		defer mu.Unlock()
		for _, r := range b {
			received = append(received, r.EscrowID)
		}
		return nil
	})

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []uint64{0, 1, 2}, received)
	assert.Equal(t, 0, cache.Size())
}

func TestFlushByInterval(t *testing.T) {
	cache := priority.New()
	cache.Add(42, domain.EscrowLinked)

	runner := batch.New(cache, 10, 1*time.Second)

	var mu sync.Mutex
	var received []uint64

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	runner.Run(ctx, func(_ context.Context, b []domain.EscrowRef) error {
		mu.Lock()
		defer mu.Unlock()
		for _, r := range b {
			received = append(received, r.EscrowID)
		}
		return nil
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, uint64(42), received[0])
}

func TestFlushFailureUnlocksForRetry(t *testing.T) {
	cache := priority.New()
	cache.Add(7, domain.EscrowLinked)

	runner := batch.New(cache, 1, 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()

	var calls int
	runner.Run(ctx, func(_ context.Context, b []domain.EscrowRef) error {
		calls++
		return assertError{}
	})

	assert.GreaterOrEqual(t, calls, 1)
	assert.True(t, cache.Contains(7))
}

type assertError struct{}

func (assertError) Error() string { return "simulated failure" }
