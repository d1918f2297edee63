package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/rawbytedev/trustmesh/internal/domain"
)

var gweiMultiplier = big.NewInt(1_000_000_000)

// gasPrice returns the fixed 5 gwei gas price mandated by §4.5.
func gasPrice() *big.Int {
	return new(big.Int).Mul(big.NewInt(fixedGasPriceGwei), gweiMultiplier)
}

// send builds, signs, and submits a call to fn with args, using the fixed
// gas=500000/gasPrice=5gwei/nonce=current-tx-count contract of §4.5, then
// waits for the receipt. It runs synchronously; callers that must not
// block their own loop invoke it from a dedicated goroutine (see
// sendAsync).
func (c *Client) send(ctx context.Context, fn string, args ...interface{}) (*types.Receipt, error) {
	if c.key == nil {
		return nil, domain.Wrap(domain.KindInvalidArgument, "no agent key configured", nil)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, domain.Wrap(domain.KindChainPermanent, "build transactor", err)
	}
	opts.Context = ctx
	opts.GasLimit = fixedGasLimit
	opts.GasPrice = gasPrice()

	nonce, err := c.rpc.PendingNonceAt(ctx, c.wallet)
	if err != nil {
		return nil, domain.Wrap(domain.KindChainTransient, "fetch nonce", err)
	}
	opts.Nonce = new(big.Int).SetUint64(nonce)

	tx, err := c.bound.Transact(opts, fn, args...)
	if err != nil {
		return nil, domain.Wrap(domain.KindChainTransient, "submit transaction", err)
	}

	receipt, err := bind.WaitMined(ctx, c.rpc, tx)
	if err != nil {
		return nil, domain.Wrap(domain.KindChainTransient, "wait for receipt", err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		c.countSend(fn, "reverted")
		return receipt, domain.Wrap(domain.KindChainPermanent, "transaction reverted", nil)
	}
	c.countSend(fn, "success")
	return receipt, nil
}

// countSend records a completed send's outcome against ChainSendsTotal. It
// is a no-op when the Client was built without metrics.
func (c *Client) countSend(fn, outcome string) {
	if c.metrics != nil {
		c.metrics.ChainSendsTotal.WithLabelValues(fn, outcome).Inc()
	}
}

// SendResult is delivered on the channel returned by Release, Refund,
// ExtendEscrow and FinalizeExpiredRefund.
type SendResult struct {
	Receipt *types.Receipt
	Err     error
}

// sendAsync runs send on its own goroutine so outbound calls never stall
// the ingest loop, the Go analogue of the source's to-thread offload.
func (c *Client) sendAsync(ctx context.Context, fn string, args ...interface{}) <-chan SendResult {
	out := make(chan SendResult, 1)
	go func() {
		receipt, err := c.send(ctx, fn, args...)
		out <- SendResult{Receipt: receipt, Err: err}
	}()
	return out
}

// Release calls releaseFunds(id, reason).
func (c *Client) Release(ctx context.Context, id uint64, reason string) <-chan SendResult {
	return c.sendAsync(ctx, "releaseFunds", new(big.Int).SetUint64(id), reason)
}

// Refund calls refund(id, reason).
func (c *Client) Refund(ctx context.Context, id uint64, reason string) <-chan SendResult {
	return c.sendAsync(ctx, "refund", new(big.Int).SetUint64(id), reason)
}

// ExtendEscrow calls extendEscrow(id, secs, reason).
func (c *Client) ExtendEscrow(ctx context.Context, id uint64, secs int, reason string) <-chan SendResult {
	return c.sendAsync(ctx, "extendEscrow", new(big.Int).SetUint64(id), big.NewInt(int64(secs)), reason)
}

// FinalizeExpiredRefund calls finalizeExpiredRefund(id, reason).
func (c *Client) FinalizeExpiredRefund(ctx context.Context, id uint64, reason string) <-chan SendResult {
	return c.sendAsync(ctx, "finalizeExpiredRefund", new(big.Int).SetUint64(id), reason)
}

// GetActiveEscrows calls the read-only getActiveEscrows() view.
func (c *Client) GetActiveEscrows(ctx context.Context) ([]uint64, error) {
	opts := &bind.CallOpts{Context: ctx}
	var out []interface{}
	err := c.bound.Call(opts, &out, "getActiveEscrows")
	if err != nil {
		return nil, domain.Wrap(domain.KindChainTransient, "call getActiveEscrows", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	raw, ok := out[0].([]*big.Int)
	if !ok {
		return nil, domain.Wrap(domain.KindBackendFailure, "unexpected getActiveEscrows return type", nil)
	}
	ids := make([]uint64, len(raw))
	for i, v := range raw {
		ids[i] = v.Uint64()
	}
	return ids, nil
}
