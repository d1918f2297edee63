// Package batch implements the BatchRunner: the size/time-triggered flush
// loop that hands prioritized batches to the decision layer.
package batch

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/rawbytedev/trustmesh/internal/domain"
	"github.com/rawbytedev/trustmesh/internal/priority"
)

// tickInterval is how often the trigger condition is evaluated.
const tickInterval = 1 * time.Second

// Callback processes a prioritized batch. An error means the batch failed
// as a whole; entries are unlocked (not released) for retry.
type Callback func(ctx context.Context, batch []domain.EscrowRef) error

// Runner is the BatchRunner of §4.6.
type Runner struct {
	cache       *priority.Cache
	threshold   int
	interval    time.Duration
	lastRun     time.Time
	log         *log.Logger
}

// New returns a Runner with the given threshold and flush interval
// (defaults: threshold=5, interval=5s, per §4.6).
func New(cache *priority.Cache, threshold int, interval time.Duration) *Runner {
	if threshold <= 0 {
		threshold = 5
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Runner{
		cache:     cache,
		threshold: threshold,
		interval:  interval,
		lastRun:   time.Now(),
		log:       log.New(os.Stdout, "[BATCH] ", log.LstdFlags),
	}
}

// Run loops every tickInterval until ctx is cancelled, flushing via
// callback whenever the threshold or interval trigger fires.
func (r *Runner) Run(ctx context.Context, callback Callback) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.maybeFlush(ctx, callback)
		}
	}
}

func (r *Runner) maybeFlush(ctx context.Context, callback Callback) {
	size := r.cache.Size()
	shouldTrigger := size >= r.threshold || time.Since(r.lastRun) >= r.interval
	if !shouldTrigger {
		return
	}

	n := r.threshold
	if size < n {
		n = size
	}
	batch := r.cache.PopBatch(n)
	r.lastRun = time.Now()

	if len(batch) == 0 {
		return
	}

	if err := callback(ctx, batch); err != nil {
		r.log.Printf("batch callback failed, retrying %d entries later: %v", len(batch), err)
		for _, ref := range batch {
			r.cache.Unlock(ref.EscrowID)
		}
		return
	}

	for _, ref := range batch {
		r.cache.Release(ref.EscrowID)
	}
}
