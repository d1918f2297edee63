// Package fallback implements the deterministic FallbackPolicy invoked
// when the Agent call fails. It mirrors the authoritative escrow policy
// exactly: delays and reason strings are contracts pinned by tests, not
// incidental detail.
package fallback

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rawbytedev/trustmesh/internal/domain"
)

// ToolCaller dispatches a named tool call with JSON-encoded arguments,
// returning its JSON-encoded result. Both the Agent path and the
// FallbackPolicy go through the same caller so side effects are uniform.
type ToolCaller interface {
	Call(ctx context.Context, name, argsJSON string) (string, error)
}

// Policy is the FallbackPolicy of §4.8.
type Policy struct {
	tools ToolCaller
}

// New returns a Policy dispatching through tools.
func New(tools ToolCaller) *Policy {
	return &Policy{tools: tools}
}

type escrowPayload struct {
	EscrowID   uint64 `json:"escrowId"`
	ShipmentID string `json:"shipmentId"`
}

// Run executes the deterministic dispatch of §4.8 for a single cache
// entry. timerTriggered distinguishes a timer fire (true) from a batch
// flush (false).
func (p *Policy) Run(ctx context.Context, ref domain.EscrowRef, timerTriggered bool) error {
	if ref.Kind == domain.EscrowExpired {
		// Idempotence guard: an id whose latest persisted state is already
		// terminal (rf/rl) has nothing left to finalize.
		if prefix, _, ok := p.latest(ctx, ref.EscrowID); ok && kindForPrefix(prefix).Terminal() {
			return nil
		}
		return p.finalizeExpiredRefund(ctx, ref.EscrowID)
	}

	prefix, payload, ok := p.latest(ctx, ref.EscrowID)
	if !ok {
		// Idempotence guard (§9 open question): nothing persisted for this
		// id, so there is nothing safe to act on.
		return nil
	}
	currentKind := kindForPrefix(prefix)

	var parsed escrowPayload
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return domain.Wrap(domain.KindAgentFailure, "decode escrow payload", err)
	}
	if parsed.EscrowID != 0 && parsed.EscrowID != ref.EscrowID {
		// Defensive check: the persisted payload does not describe this id.
		return nil
	}

	details, err := p.queryShipment(ctx, parsed.ShipmentID)
	if err != nil {
		return err
	}
	if len(details) == 0 {
		return p.setTimer(ctx, ref.EscrowID, 5, "waiting for more details")
	}
	status := strings.ToUpper(details[0].Status)

	switch {
	case status == "DELIVERED" && currentKind == domain.EscrowLinked:
		return p.extendEscrow(ctx, ref.EscrowID, 15, "hold period")

	case status == "DELIVERED" && currentKind == domain.EscrowExtended:
		if timerTriggered {
			if err := p.releaseFunds(ctx, ref.EscrowID, "no complain from user and hold period passed"); err != nil {
				return p.setTimer(ctx, ref.EscrowID, 10, "rescheduling release")
			}
			return nil
		}
		return p.setTimer(ctx, ref.EscrowID, 45, "release funds")

	case status == "IN-TRANSIT":
		if timerTriggered {
			return p.setTimer(ctx, ref.EscrowID, 5, "shipment still in Transit")
		}
		return nil

	case strings.Contains(status, "DELAY"):
		return p.setTimer(ctx, ref.EscrowID, 10, "shipment face a certain delay")

	case strings.Contains(status, "ANOMALY"):
		return p.refundFunds(ctx, ref.EscrowID, "Scamming(Fraud) detected refunding")

	default:
		return p.setTimer(ctx, ref.EscrowID, 5, "waiting for more details")
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

func (p *Policy) latest(ctx context.Context, id uint64) (prefix, payload string, ok bool) {
	argsJSON, _ := json.Marshal(map[string]uint64{"id": id})
	out, err := p.tools.Call(ctx, "get_escrow_by_id", string(argsJSON))
	if err != nil {
		return "", "", false
	}
	var decoded struct {
		Prefix  string `json:"prefix"`
		Payload string `json:"payload"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		return "", "", false
	}
	return decoded.Prefix, decoded.Payload, true
}

func (p *Policy) queryShipment(ctx context.Context, shipmentID string) ([]domain.ShipmentDetail, error) {
	argsJSON, _ := json.Marshal(map[string]string{"id": shipmentID})
	out, err := p.tools.Call(ctx, "query_shipment", string(argsJSON))
	if err != nil {
		return nil, err
	}
	var details []domain.ShipmentDetail
	if err := json.Unmarshal([]byte(out), &details); err != nil {
		return nil, domain.Wrap(domain.KindAgentFailure, "decode shipment details", err)
	}
	return details, nil
}

func (p *Policy) setTimer(ctx context.Context, id uint64, seconds int, note string) error {
	argsJSON, _ := json.Marshal(map[string]interface{}{"id": id, "seconds": seconds, "note": note})
	_, err := p.tools.Call(ctx, "set_timer", string(argsJSON))
	return err
}

func (p *Policy) extendEscrow(ctx context.Context, id uint64, secs int, reason string) error {
	argsJSON, _ := json.Marshal(map[string]interface{}{"id": id, "secs": secs, "reason": reason})
	_, err := p.tools.Call(ctx, "extend_escrow", string(argsJSON))
	return err
}

func (p *Policy) releaseFunds(ctx context.Context, id uint64, reason string) error {
	argsJSON, _ := json.Marshal(map[string]interface{}{"id": id, "reason": reason})
	_, err := p.tools.Call(ctx, "release_funds", string(argsJSON))
	return err
}

func (p *Policy) refundFunds(ctx context.Context, id uint64, reason string) error {
	argsJSON, _ := json.Marshal(map[string]interface{}{"id": id, "reason": reason})
	_, err := p.tools.Call(ctx, "refund_funds", string(argsJSON))
	return err
}

func (p *Policy) finalizeExpiredRefund(ctx context.Context, id uint64) error {
	argsJSON, _ := json.Marshal(map[string]interface{}{"id": id, "reason": "escrow expired"})
	_, err := p.tools.Call(ctx, "finalize_expired_refund", string(argsJSON))
	return err
}
