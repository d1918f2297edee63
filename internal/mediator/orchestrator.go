// Package mediator is the Orchestrator of spec.md §4.9: it wires every
// other package together and owns the three long-lived loops plus the
// shutdown sequence.
package mediator

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rawbytedev/trustmesh/internal/agent"
	"github.com/rawbytedev/trustmesh/internal/batch"
	"github.com/rawbytedev/trustmesh/internal/chain"
	"github.com/rawbytedev/trustmesh/internal/config"
	"github.com/rawbytedev/trustmesh/internal/domain"
	"github.com/rawbytedev/trustmesh/internal/fallback"
	"github.com/rawbytedev/trustmesh/internal/kvstore"
	"github.com/rawbytedev/trustmesh/internal/priority"
	"github.com/rawbytedev/trustmesh/internal/shipfeed"
	"github.com/rawbytedev/trustmesh/internal/storage"
	"github.com/rawbytedev/trustmesh/internal/telemetry"
	"github.com/rawbytedev/trustmesh/internal/timerqueue"
)

// Orchestrator owns every long-lived component and the goroutines driving
// them.
type Orchestrator struct {
	kv      *kvstore.Store
	cache   *priority.Cache
	store   *storage.Store
	timers  *timerqueue.Scheduler
	arc     *chain.Client
	batcher *batch.Runner
	ag      agent.Agent
	fb      *fallback.Policy
	metrics *telemetry.Metrics

	log *slog.Logger
	wg  sync.WaitGroup
}

// New wires every component per cfg. The chain dial and agent selection can
// fail at startup, in which case New returns the error instead of a
// half-built Orchestrator.
func New(ctx context.Context, cfg *config.Config) (*Orchestrator, error) {
	kv, err := kvstore.NewFromConfig(&cfg.KVStore)
	if err != nil {
		return nil, err
	}

	cache := priority.New()
	timers := timerqueue.New()
	metrics := telemetry.New(
		func() float64 { return float64(cache.Size()) },
		func() float64 { return float64(timers.Len()) },
	)
	store := storage.New(kv, cache, metrics)

	arc, err := chain.Dial(ctx, cfg.Chain.URL, cfg.Chain.ContractAddress, cfg.Chain.AgentKey, metrics)
	if err != nil {
		kv.Close()
		return nil, err
	}

	ag, err := agent.NewFromConfig(&cfg.Model)
	if err != nil {
		kv.Close()
		return nil, err
	}

	feed := shipfeed.NewClient(shipfeedURL(cfg.ShipmentFeed.Addr))
	registry := agent.NewRegistry(store, feed, arc, timers)
	fb := fallback.New(registry)

	batcher := batch.New(cache, cfg.Batch.Threshold, secondsToDuration(cfg.Batch.IntervalSec))

	return &Orchestrator{
		kv:      kv,
		cache:   cache,
		store:   store,
		timers:  timers,
		arc:     arc,
		batcher: batcher,
		ag:      ag,
		fb:      fb,
		metrics: metrics,
		log:     slog.Default().With("component", "mediator"),
	}, nil
}

func shipfeedURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://127.0.0.1" + addr
	}
	return addr
}

func secondsToDuration(s int) (d time.Duration) {
	return time.Duration(s) * time.Second
}

// Run spawns the three core loops and blocks until ctx is cancelled or a
// terminating signal arrives, then shuts down gracefully: cancel the
// internal context, await every loop's exit, close the KVStore.
func (o *Orchestrator) Run(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	o.wg.Add(3)
	go o.runIngestLoop(sigCtx)
	go o.runTimerLoop(sigCtx)
	go o.runBatchLoop(sigCtx)

	<-sigCtx.Done()
	o.log.Info("shutdown signal received, waiting for loops to exit")
	o.wg.Wait()

	return o.kv.Close()
}

func (o *Orchestrator) runIngestLoop(ctx context.Context) {
	defer o.wg.Done()
	o.arc.ListenEvents(ctx, o.store)
}

func (o *Orchestrator) runTimerLoop(ctx context.Context) {
	defer o.wg.Done()
	o.timers.Run(ctx, func(cbCtx context.Context, entry domain.TimerEntry) {
		ref := o.refForTimerEntry(cbCtx, entry)
		if err := decide(cbCtx, o.ag, o.fb, o.metrics, ref, true); err != nil {
			o.log.Warn("timer-triggered decision failed", "escrow_id", entry.EscrowID, "error", err)
		}
	})
}

func (o *Orchestrator) runBatchLoop(ctx context.Context) {
	defer o.wg.Done()
	o.batcher.Run(ctx, func(cbCtx context.Context, refs []domain.EscrowRef) error {
		o.metrics.BatchSize.Observe(float64(len(refs)))

		var firstErr error
		for _, ref := range refs {
			if err := decide(cbCtx, o.ag, o.fb, o.metrics, ref, false); err != nil {
				o.log.Warn("batch decision failed", "escrow_id", ref.EscrowID, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}

		outcome := "success"
		if firstErr != nil {
			outcome = "failure"
		}
		o.metrics.BatchFlushesTotal.WithLabelValues(outcome).Inc()
		return firstErr
	})
}

// refForTimerEntry reconstructs an EscrowRef for a fired timer entry by
// looking up the escrow's latest persisted kind; an id with no persisted
// state yet (e.g. a timer set ahead of its originating event landing)
// defaults to EscrowCreated so the fallback dispatch has a sane starting
// point.
func (o *Orchestrator) refForTimerEntry(ctx context.Context, entry domain.TimerEntry) domain.EscrowRef {
	kind := domain.EscrowCreated
	if prefix, _, ok := o.store.GetLatest(ctx, entry.EscrowID); ok {
		kind = kindForPrefix(prefix)
	}
	return domain.EscrowRef{
		EscrowID:  entry.EscrowID,
		Kind:      kind,
		SeenCount: uint32(entry.Attempt),
	}
}

func kindForPrefix(prefix string) domain.EscrowKind {
	for k := domain.EscrowExpired; k <= domain.EscrowReleased; k++ {
		if k.Prefix() == prefix {
			return k
		}
	}
	return domain.EscrowCreated
}
