package agent

import (
	"fmt"

	"github.com/rawbytedev/trustmesh/internal/config"
)

// NewFromConfig selects the Agent implementation named by cfg.Model.Provider.
func NewFromConfig(cfg *config.ModelConfig) (Agent, error) {
	switch cfg.Provider {
	case "grpc":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("agent: grpc provider requires MODEL_BASE_URL")
		}
		return NewGRPCAgent(cfg.BaseURL)
	case "none", "":
		return NullAgent{}, nil
	default:
		return nil, fmt.Errorf("agent: unknown model provider: %s", cfg.Provider)
	}
}
