package mediator

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rawbytedev/trustmesh/internal/agent"
	"github.com/rawbytedev/trustmesh/internal/domain"
	"github.com/rawbytedev/trustmesh/internal/fallback"
	"github.com/rawbytedev/trustmesh/internal/telemetry"
)

// decisionMessage is the JSON-serialized escrow descriptor passed to
// Agent.Invoke, per §4.7: the core depends only on the tools being called
// correctly, not on how the agent reasons about this payload.
type decisionMessage struct {
	CorrelationID  string `json:"correlation_id"`
	EscrowID       uint64 `json:"escrow_id"`
	Kind           string `json:"kind"`
	SeenCount      uint32 `json:"seen_count"`
	TimerTriggered bool   `json:"timer_triggered"`
}

// decide invokes the Agent for ref, falling back to the deterministic
// policy on any Agent failure, per spec.md §4.8's "invoked when the agent
// call fails". Each invocation gets its own correlation id, the same
// uuid.New().String() scheme this codebase uses to tag bus events and
// handshake sessions, so a decision can be traced across the agent and
// fallback logs it produces.
func decide(ctx context.Context, ag agent.Agent, fb *fallback.Policy, metrics *telemetry.Metrics, ref domain.EscrowRef, timerTriggered bool) error {
	correlationID := uuid.New().String()
	msg, _ := json.Marshal(decisionMessage{
		CorrelationID:  correlationID,
		EscrowID:       ref.EscrowID,
		Kind:           ref.Kind.String(),
		SeenCount:      ref.SeenCount,
		TimerTriggered: timerTriggered,
	})

	_, err := ag.Invoke(ctx, string(msg))
	if err == nil {
		metrics.AgentInvocations.WithLabelValues("success").Inc()
		return nil
	}
	metrics.AgentInvocations.WithLabelValues("failure").Inc()

	trigger := "batch"
	if timerTriggered {
		trigger = "timer"
	}
	metrics.FallbackInvocations.WithLabelValues(trigger).Inc()

	slog.Warn("agent invocation failed, running fallback policy", "correlation_id", correlationID, "escrow_id", ref.EscrowID, "error", err)
	return fb.Run(ctx, ref, timerTriggered)
}
