package fallback_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/trustmesh/internal/domain"
	"github.com/rawbytedev/trustmesh/internal/fallback"
)

type call struct {
	name string
	args string
}

type fakeTools struct {
	latestPrefix, latestPayload string
	shipmentDetails             []domain.ShipmentDetail
	calls                       []call
	releaseErr                  error
}

func (f *fakeTools) Call(ctx context.Context, name, argsJSON string) (string, error) {
	f.calls = append(f.calls, call{name, argsJSON})

	switch name {
	case "get_escrow_by_id":
		out, _ := json.Marshal(map[string]string{"prefix": f.latestPrefix, "payload": f.latestPayload})
		return string(out), nil
	case "query_shipment":
		out, _ := json.Marshal(f.shipmentDetails)
		return string(out), nil
	case "release_funds":
		if f.releaseErr != nil {
			return "", f.releaseErr
		}
		return `{"tx_hash":"0x1"}`, nil
	default:
		return `{"ack":true}`, nil
	}
}

func (f *fakeTools) namesCalled() []string {
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = c.name
	}
	return names
}

func TestDeliveredAfterLinkedExtendsOnly(t *testing.T) {
	payload, _ := json.Marshal(map[string]interface{}{"escrowId": 7, "shipmentId": "ship-7"})
	tools := &fakeTools{
		latestPrefix:    "lk",
		latestPayload:   string(payload),
		shipmentDetails: []domain.ShipmentDetail{{Status: "DELIVERED"}},
	}
	policy := fallback.New(tools)

	ref := domain.EscrowRef{EscrowID: 7, Kind: domain.EscrowLinked}
	err := policy.Run(context.Background(), ref, false)
	require.NoError(t, err)

	names := tools.namesCalled()
	assert.Contains(t, names, "extend_escrow")
	assert.NotContains(t, names, "release_funds")
	assert.NotContains(t, names, "refund_funds")
	assert.NotContains(t, names, "finalize_expired_refund")

	var extendArgs struct {
		ID     uint64 `json:"id"`
		Secs   int    `json:"secs"`
		Reason string `json:"reason"`
	}
	for _, c := range tools.calls {
		if c.name == "extend_escrow" {
			require.NoError(t, json.Unmarshal([]byte(c.args), &extendArgs))
		}
	}
	assert.Equal(t, uint64(7), extendArgs.ID)
	assert.Equal(t, 15, extendArgs.Secs)
	assert.Equal(t, "hold period", extendArgs.Reason)
}

func TestExpiredAlwaysFinalizes(t *testing.T) {
	tools := &fakeTools{}
	policy := fallback.New(tools)

	ref := domain.EscrowRef{EscrowID: 9, Kind: domain.EscrowExpired}
	err := policy.Run(context.Background(), ref, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"get_escrow_by_id", "finalize_expired_refund"}, tools.namesCalled())
}

func TestDeliveredExtendedTimerTriggeredReleases(t *testing.T) {
	payload, _ := json.Marshal(map[string]interface{}{"escrowId": 4, "shipmentId": "ship-4"})
	tools := &fakeTools{
		latestPrefix:    "ex",
		latestPayload:   string(payload),
		shipmentDetails: []domain.ShipmentDetail{{Status: "DELIVERED"}},
	}
	policy := fallback.New(tools)

	ref := domain.EscrowRef{EscrowID: 4, Kind: domain.EscrowExtended}
	err := policy.Run(context.Background(), ref, true)
	require.NoError(t, err)
	assert.Contains(t, tools.namesCalled(), "release_funds")
}

func TestAnomalyTriggersRefund(t *testing.T) {
	payload, _ := json.Marshal(map[string]interface{}{"escrowId": 11, "shipmentId": "ship-11"})
	tools := &fakeTools{
		latestPrefix:    "lk",
		latestPayload:   string(payload),
		shipmentDetails: []domain.ShipmentDetail{{Status: "ANOMALY DETECTED"}},
	}
	policy := fallback.New(tools)

	ref := domain.EscrowRef{EscrowID: 11, Kind: domain.EscrowLinked}
	err := policy.Run(context.Background(), ref, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"get_escrow_by_id", "query_shipment", "refund_funds"}, tools.namesCalled())
}
