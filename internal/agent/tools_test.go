package agent_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/trustmesh/internal/agent"
	"github.com/rawbytedev/trustmesh/internal/chain"
	"github.com/rawbytedev/trustmesh/internal/domain"
)

type fakeStorage struct {
	prefix, payload string
	ok              bool
}

func (f fakeStorage) GetLatest(ctx context.Context, id uint64) (string, string, bool) {
	return f.prefix, f.payload, f.ok
}

type fakeFeed struct {
	details []domain.ShipmentDetail
	err     error
}

func (f fakeFeed) Query(ctx context.Context, id string) ([]domain.ShipmentDetail, error) {
	return f.details, f.err
}

type fakeTimer struct {
	lastID     uint64
	lastDelay  time.Duration
	lastReason string
}

func (f *fakeTimer) SetTimer(id uint64, delay time.Duration, reason string) {
	f.lastID, f.lastDelay, f.lastReason = id, delay, reason
}

type fakeChain struct {
	lastFn string
	lastID uint64
	err    error
}

func (f *fakeChain) result() <-chan chain.SendResult {
	out := make(chan chain.SendResult, 1)
	if f.err != nil {
		out <- chain.SendResult{Err: f.err}
	} else {
		out <- chain.SendResult{Receipt: &types.Receipt{TxHash: common.HexToHash("0x1")}}
	}
	return out
}

func (f *fakeChain) Release(ctx context.Context, id uint64, reason string) <-chan chain.SendResult {
	f.lastFn, f.lastID = "release", id
	return f.result()
}
func (f *fakeChain) Refund(ctx context.Context, id uint64, reason string) <-chan chain.SendResult {
	f.lastFn, f.lastID = "refund", id
	return f.result()
}
func (f *fakeChain) ExtendEscrow(ctx context.Context, id uint64, secs int, reason string) <-chan chain.SendResult {
	f.lastFn, f.lastID = "extend", id
	return f.result()
}
func (f *fakeChain) FinalizeExpiredRefund(ctx context.Context, id uint64, reason string) <-chan chain.SendResult {
	f.lastFn, f.lastID = "finalize", id
	return f.result()
}

func TestGetEscrowByIdTool(t *testing.T) {
	store := fakeStorage{prefix: "lk", payload: `{"escrowId":7}`, ok: true}
	reg := agent.NewRegistry(store, fakeFeed{}, &fakeChain{}, &fakeTimer{})

	args, _ := json.Marshal(map[string]uint64{"id": 7})
	out, err := reg.Call(context.Background(), "get_escrow_by_id", string(args))
	require.NoError(t, err)
	assert.Contains(t, out, "lk")
}

func TestSetTimerTool(t *testing.T) {
	timer := &fakeTimer{}
	reg := agent.NewRegistry(fakeStorage{}, fakeFeed{}, &fakeChain{}, timer)

	args, _ := json.Marshal(map[string]interface{}{"id": 3, "seconds": 15, "note": "hold period"})
	_, err := reg.Call(context.Background(), "set_timer", string(args))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), timer.lastID)
	assert.Equal(t, 15*time.Second, timer.lastDelay)
	assert.Equal(t, "hold period", timer.lastReason)
}

func TestReleaseFundsTool(t *testing.T) {
	c := &fakeChain{}
	reg := agent.NewRegistry(fakeStorage{}, fakeFeed{}, c, &fakeTimer{})

	args, _ := json.Marshal(map[string]interface{}{"id": 7, "reason": "hold period passed"})
	out, err := reg.Call(context.Background(), "release_funds", string(args))
	require.NoError(t, err)
	assert.Equal(t, "release", c.lastFn)
	assert.Contains(t, out, "tx_hash")
}

func TestUnknownToolFails(t *testing.T) {
	reg := agent.NewRegistry(fakeStorage{}, fakeFeed{}, &fakeChain{}, &fakeTimer{})
	_, err := reg.Call(context.Background(), "does_not_exist", "{}")
	require.Error(t, err)
	de, ok := err.(*domain.Error)
	require.True(t, ok)
	assert.Equal(t, domain.KindToolFailure, de.Kind)
}
