package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rawbytedev/trustmesh/internal/chain"
	"github.com/rawbytedev/trustmesh/internal/domain"
)

// ShipmentQuerier is the ShipmentFeed facade of §1: the core depends only
// on this interface, never on the feed's HTTP server implementation.
type ShipmentQuerier interface {
	Query(ctx context.Context, id string) ([]domain.ShipmentDetail, error)
}

// EscrowReader is the read side of Storage the tool registry needs.
type EscrowReader interface {
	GetLatest(ctx context.Context, id uint64) (prefix string, payload string, ok bool)
}

// Timer is the scheduling side of TimerScheduler the tool registry needs.
type Timer interface {
	SetTimer(escrowID uint64, delay time.Duration, reason string)
}

// ChainMutator is the outbound-call side of ArcClient the tool registry
// needs.
type ChainMutator interface {
	Release(ctx context.Context, id uint64, reason string) <-chan chain.SendResult
	Refund(ctx context.Context, id uint64, reason string) <-chan chain.SendResult
	ExtendEscrow(ctx context.Context, id uint64, secs int, reason string) <-chan chain.SendResult
	FinalizeExpiredRefund(ctx context.Context, id uint64, reason string) <-chan chain.SendResult
}

// Tool is a single named callable in the fixed tool surface of §4.7/§4.8,
// the generalization of the source's decorator-captured closures: each
// value here holds explicit references to the collaborators it needs
// instead of closing over process-wide globals.
type Tool struct {
	Name   string
	Invoke func(ctx context.Context, argsJSON string) (string, error)
}

// Registry is the fixed set of seven tools, built once at orchestrator
// startup and shared by the Agent and the FallbackPolicy so their side
// effects go through the same path.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry wires the seven tools against store, feed, the chain client,
// and the timer scheduler.
func NewRegistry(store EscrowReader, feed ShipmentQuerier, arc ChainMutator, timers Timer) *Registry {
	r := &Registry{tools: make(map[string]Tool)}

	r.register("get_escrow_by_id", func(ctx context.Context, argsJSON string) (string, error) {
		var args struct {
			ID uint64 `json:"id"`
		}
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", domain.Wrap(domain.KindInvalidArgument, "bad args", err)
		}
		prefix, payload, ok := store.GetLatest(ctx, args.ID)
		if !ok {
			return "", domain.Wrap(domain.KindNotFound, "no state for escrow", nil)
		}
		out, _ := json.Marshal(map[string]string{"prefix": prefix, "payload": payload})
		return string(out), nil
	})

	r.register("query_shipment", func(ctx context.Context, argsJSON string) (string, error) {
		var args struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", domain.Wrap(domain.KindInvalidArgument, "bad args", err)
		}
		details, err := feed.Query(ctx, args.ID)
		if err != nil {
			return "", err
		}
		out, _ := json.Marshal(details)
		return string(out), nil
	})

	r.register("set_timer", func(ctx context.Context, argsJSON string) (string, error) {
		var args struct {
			ID      uint64 `json:"id"`
			Seconds int    `json:"seconds"`
			Note    string `json:"note"`
		}
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", domain.Wrap(domain.KindInvalidArgument, "bad args", err)
		}
		timers.SetTimer(args.ID, time.Duration(args.Seconds)*time.Second, args.Note)
		return `{"ack":true}`, nil
	})

	r.register("release_funds", func(ctx context.Context, argsJSON string) (string, error) {
		return txToolCall(argsJSON, func(id uint64, reason string) <-chan chain.SendResult {
			return arc.Release(ctx, id, reason)
		})
	})

	r.register("refund_funds", func(ctx context.Context, argsJSON string) (string, error) {
		return txToolCall(argsJSON, func(id uint64, reason string) <-chan chain.SendResult {
			return arc.Refund(ctx, id, reason)
		})
	})

	r.register("extend_escrow", func(ctx context.Context, argsJSON string) (string, error) {
		var args struct {
			ID     uint64 `json:"id"`
			Secs   int    `json:"secs"`
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", domain.Wrap(domain.KindInvalidArgument, "bad args", err)
		}
		result := <-arc.ExtendEscrow(ctx, args.ID, args.Secs, args.Reason)
		return txResult(result)
	})

	r.register("finalize_expired_refund", func(ctx context.Context, argsJSON string) (string, error) {
		return txToolCall(argsJSON, func(id uint64, reason string) <-chan chain.SendResult {
			return arc.FinalizeExpiredRefund(ctx, id, reason)
		})
	})

	return r
}

func (r *Registry) register(name string, fn func(context.Context, string) (string, error)) {
	r.tools[name] = Tool{Name: name, Invoke: fn}
}

// Call dispatches to the named tool, returning domain.ErrToolFailure if the
// tool does not exist or fails.
func (r *Registry) Call(ctx context.Context, name, argsJSON string) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", domain.Wrap(domain.KindToolFailure, "unknown tool: "+name, nil)
	}
	result, err := tool.Invoke(ctx, argsJSON)
	if err != nil {
		return "", domain.Wrap(domain.KindToolFailure, name, err)
	}
	return result, nil
}

func txToolCall(argsJSON string, call func(id uint64, reason string) <-chan chain.SendResult) (string, error) {
	var args struct {
		ID     uint64 `json:"id"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", domain.Wrap(domain.KindInvalidArgument, "bad args", err)
	}
	result := <-call(args.ID, args.Reason)
	return txResult(result)
}

func txResult(result chain.SendResult) (string, error) {
	if result.Err != nil {
		return "", result.Err
	}
	out, _ := json.Marshal(map[string]string{"tx_hash": result.Receipt.TxHash.Hex()})
	return string(out), nil
}
