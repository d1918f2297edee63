// Package storage is the escrow/shipment domain layer over the KVStore,
// also responsible for inserting cache-eligible events into the
// PriorityCache at write time.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rawbytedev/trustmesh/internal/domain"
	"github.com/rawbytedev/trustmesh/internal/kvstore"
	"github.com/rawbytedev/trustmesh/internal/priority"
	"github.com/rawbytedev/trustmesh/internal/telemetry"
)

// Store is the domain-aware wrapper described in §4.2: it persists escrow
// and shipment events and feeds the PriorityCache.
type Store struct {
	kv      *kvstore.Store
	cache   *priority.Cache
	metrics *telemetry.Metrics
	log     *slog.Logger
}

// New wraps kv, inserting cache-eligible events into cache as they arrive
// and counting every persisted write against metrics.StorageWritesTotal.
func New(kv *kvstore.Store, cache *priority.Cache, metrics *telemetry.Metrics) *Store {
	return &Store{kv: kv, cache: cache, metrics: metrics, log: slog.Default().With("component", "storage")}
}

func key(prefix string, id uint64) string {
	return fmt.Sprintf("%s:%d", prefix, id)
}

// SaveEscrowEvent persists the payload under <prefix(kind)>:<id> and, for
// cache-eligible kinds, adds it to the PriorityCache. A failed write is
// logged and never reaches the cache, so an unsaved event is never acted on.
func (s *Store) SaveEscrowEvent(ctx context.Context, id uint64, kind domain.EscrowKind, jsonPayload string) error {
	k := key(kind.Prefix(), id)
	if err := s.kv.Put(ctx, k, jsonPayload); err != nil {
		s.log.Error("save escrow event failed", "escrow_id", id, "kind", kind, "error", err)
		return err
	}
	if s.metrics != nil {
		s.metrics.StorageWritesTotal.WithLabelValues(kind.Prefix()).Inc()
	}
	if kind.CacheEligible() {
		s.cache.Add(id, kind)
	}
	return nil
}

// GetEscrowById returns every persisted prefix-key and payload for id.
func (s *Store) GetEscrowById(ctx context.Context, id uint64) map[string]string {
	out := make(map[string]string)
	for _, prefix := range domain.LatestPrefixOrder {
		k := key(prefix, id)
		if v, err := s.kv.Get(ctx, k); err == nil {
			out[k] = v
		}
	}
	return out
}

// GetLatest probes prefixes in the §3 order and returns the first hit.
func (s *Store) GetLatest(ctx context.Context, id uint64) (prefix string, payload string, ok bool) {
	for _, p := range domain.LatestPrefixOrder {
		if v, err := s.kv.Get(ctx, key(p, id)); err == nil {
			return p, v, true
		}
	}
	return "", "", false
}

// SaveShipmentStates persists details under ship:<id>.
func (s *Store) SaveShipmentStates(ctx context.Context, id uint64, details []domain.ShipmentDetail) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return domain.Wrap(domain.KindInvalidArgument, "marshal shipment details", err)
	}
	if err := s.kv.Put(ctx, key("ship", id), string(raw)); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.StorageWritesTotal.WithLabelValues("ship").Inc()
	}
	return nil
}

// GetShipmentState returns the last persisted shipment feed response for id.
func (s *Store) GetShipmentState(ctx context.Context, id uint64) ([]domain.ShipmentDetail, error) {
	raw, err := s.kv.Get(ctx, key("ship", id))
	if err != nil {
		return nil, err
	}
	var details []domain.ShipmentDetail
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return nil, domain.Wrap(domain.KindBackendFailure, "unmarshal shipment details", err)
	}
	return details, nil
}
