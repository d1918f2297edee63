// Package agent defines the pluggable decision Agent interface and the
// fixed tool registry it drives.
package agent

import (
	"context"
	"errors"
)

// ErrAgentUnavailable is returned by an Agent implementation that cannot
// reach its decision backend; callers fall back to FallbackPolicy.
var ErrAgentUnavailable = errors.New("agent unavailable")

// Agent is the one-method contract of §4.7: Invoke takes a JSON-serialized
// escrow descriptor and returns the agent's textual result. The core does
// not depend on how the agent reasons, only on it calling the registered
// tools correctly.
type Agent interface {
	Invoke(ctx context.Context, message string) (string, error)
}

// NullAgent always fails, forcing the FallbackPolicy path. Used in tests
// and in demo/offline mode where no decision backend is configured.
type NullAgent struct{}

func (NullAgent) Invoke(ctx context.Context, message string) (string, error) {
	return "", ErrAgentUnavailable
}
