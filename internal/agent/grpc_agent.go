package agent

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// agentServiceMethod is the full gRPC method name of the external decision
// service's single RPC.
const agentServiceMethod = "/trustmesh.agent.v1.AgentService/Invoke"

type invokeRequest struct {
	Message string `json:"message"`
}

type invokeResponse struct {
	Result string `json:"result"`
}

// GRPCAgent calls an external decision service over gRPC, grounded on this
// codebase's pattern for dialing a sidecar evaluation service with
// insecure transport credentials in local/demo deployments.
type GRPCAgent struct {
	conn *grpc.ClientConn
}

// NewGRPCAgent dials addr (e.g. "localhost:50060").
func NewGRPCAgent(addr string) (*GRPCAgent, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &GRPCAgent{conn: conn}, nil
}

// Invoke sends message to the decision service and returns its textual
// result.
func (a *GRPCAgent) Invoke(ctx context.Context, message string) (string, error) {
	req := &invokeRequest{Message: message}
	resp := &invokeResponse{}
	if err := a.conn.Invoke(ctx, agentServiceMethod, req, resp, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return "", err
	}
	return resp.Result, nil
}

// Close releases the underlying connection.
func (a *GRPCAgent) Close() error {
	return a.conn.Close()
}
