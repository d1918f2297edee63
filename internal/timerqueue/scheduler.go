// Package timerqueue implements the TimerScheduler: a min-heap of deferred
// callbacks ordered by due time.
package timerqueue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rawbytedev/trustmesh/internal/domain"
)

// idleSleep is how long Run blocks when the heap is empty.
const idleSleep = 500 * time.Millisecond

// maxSleep caps how long Run blocks waiting for the next due entry, so a
// new earlier entry pushed mid-sleep is observed promptly.
const maxSleep = 2 * time.Second

// entryHeap is a container/heap.Interface over TimerEntry ordered by DueAt.
type entryHeap []domain.TimerEntry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].DueAt.Before(h[j].DueAt) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(domain.TimerEntry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Scheduler is the TimerScheduler of §4.4: a heap guarded by a mutex,
// accessed both by SetTimer callers and by the Run loop.
type Scheduler struct {
	mu   sync.Mutex
	heap entryHeap
}

// New returns an empty Scheduler.
func New() *Scheduler {
	s := &Scheduler{heap: make(entryHeap, 0)}
	heap.Init(&s.heap)
	return s
}

// SetTimer pushes an entry due delay from now with attempt=1.
func (s *Scheduler) SetTimer(escrowID uint64, delay time.Duration, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	heap.Push(&s.heap, domain.TimerEntry{
		DueAt:    time.Now().Add(delay),
		EscrowID: escrowID,
		Reason:   reason,
		Attempt:  1,
	})
}

// Len reports the current number of pending entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heap.Len()
}

// Run loops until ctx is cancelled, invoking callback for each entry once
// its DueAt has passed. callback is awaited before the next iteration, per
// §4.4/§5's ordering guarantee.
func (s *Scheduler) Run(ctx context.Context, callback func(context.Context, domain.TimerEntry)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		if s.heap.Len() == 0 {
			s.mu.Unlock()
			sleepOrDone(ctx, idleSleep)
			continue
		}

		due := s.heap[0].DueAt
		now := time.Now()
		if !due.After(now) {
			entry := heap.Pop(&s.heap).(domain.TimerEntry)
			s.mu.Unlock()
			callback(ctx, entry)
			continue
		}
		s.mu.Unlock()

		wait := due.Sub(now)
		if wait > maxSleep {
			wait = maxSleep
		}
		sleepOrDone(ctx, wait)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
