package timerqueue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/trustmesh/internal/domain"
	"github.com/rawbytedev/trustmesh/internal/timerqueue"
)

func TestTimerFiresOnce(t *testing.T) {
	s := timerqueue.New()
	s.SetTimer(3, 50*time.Millisecond, "retry")

	var mu sync.Mutex
	var seen []domain.TimerEntry

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(_ context.Context, e domain.TimerEntry) {
			mu.Lock()
			seen = append(seen, e)
			mu.Unlock()
			cancel()
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire in time")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, uint64(3), seen[0].EscrowID)
	assert.Equal(t, "retry", seen[0].Reason)
}

func TestTimerOrderingByDueAt(t *testing.T) {
	s := timerqueue.New()
	s.SetTimer(2, 40*time.Millisecond, "second")
	s.SetTimer(1, 10*time.Millisecond, "first")

	var mu sync.Mutex
	var order []uint64

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(_ context.Context, e domain.TimerEntry) {
			mu.Lock()
			order = append(order, e.EscrowID)
			gotBoth := len(order) == 2
			mu.Unlock()
			if gotBoth {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timers did not fire in time")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2}, order)
}
