package shipfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rawbytedev/trustmesh/internal/domain"
)

// Client implements agent.ShipmentQuerier against a remote Server over
// HTTP, keeping the mediator decoupled from the feed's own process.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client talking to the feed at baseURL (e.g.
// "http://127.0.0.1:8100").
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: 5 * time.Second}}
}

// Query fetches the shipment details for id via POST /query.
func (c *Client) Query(ctx context.Context, id string) ([]domain.ShipmentDetail, error) {
	reqBody, err := json.Marshal(queryRequest{IDs: id})
	if err != nil {
		return nil, domain.Wrap(domain.KindInvalidArgument, "encode query request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(reqBody))
	if err != nil {
		return nil, domain.Wrap(domain.KindBackendFailure, "build query request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.Wrap(domain.KindBackendFailure, "call shipment feed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.Wrap(domain.KindBackendFailure, fmt.Sprintf("shipment feed returned %d", resp.StatusCode), nil)
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.Wrap(domain.KindBackendFailure, "decode shipment feed response", err)
	}
	return out.Details, nil
}
