// Package chain is the ArcClient facade: chain log subscription, decoding,
// and transaction signing/sending over a JSON-RPC Ethereum client.
package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rawbytedev/trustmesh/internal/domain"
	"github.com/rawbytedev/trustmesh/internal/telemetry"
)

// pollInterval is how often ListenEvents checks for new blocks.
const pollInterval = 2 * time.Second

const (
	fixedGasLimit          = uint64(500000)
	fixedGasPriceGwei      = int64(5)
)

// EventHandler persists a decoded chain event, mapping it to an EscrowKind.
type EventHandler interface {
	SaveEscrowEvent(ctx context.Context, id uint64, kind domain.EscrowKind, jsonPayload string) error
}

// Client is the ArcClient described in §4.5.
type Client struct {
	rpc      *ethclient.Client
	contract common.Address
	abi      abi.ABI
	bound    *bind.BoundContract
	key      *ecdsa.PrivateKey
	wallet   common.Address
	chainID  *big.Int
	cursor   uint64 // owned by the ingest loop only, per §5
	metrics  *telemetry.Metrics
	log      *log.Logger
}

// Dial connects to rpcURL and builds a Client for contractAddr, signing
// outbound transactions with agentKeyHex (a hex-encoded ECDSA private key,
// with or without a leading 0x). metrics may be nil, in which case send
// outcomes aren't counted.
func Dial(ctx context.Context, rpcURL string, contractAddr string, agentKeyHex string, metrics *telemetry.Metrics) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, domain.Wrap(domain.KindChainTransient, "dial chain rpc", err)
	}

	parsedABI, err := parseContractABI()
	if err != nil {
		return nil, domain.Wrap(domain.KindBackendFailure, "parse contract abi", err)
	}

	addr := common.HexToAddress(contractAddr)
	bound := bind.NewBoundContract(addr, parsedABI, rpc, rpc, rpc)

	var key *ecdsa.PrivateKey
	var wallet common.Address
	if agentKeyHex != "" {
		key, err = crypto.HexToECDSA(trimHexPrefix(agentKeyHex))
		if err != nil {
			return nil, domain.Wrap(domain.KindInvalidArgument, "parse agent key", err)
		}
		wallet = crypto.PubkeyToAddress(key.PublicKey)
	}

	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		return nil, domain.Wrap(domain.KindChainTransient, "fetch chain id", err)
	}

	return &Client{
		rpc:      rpc,
		contract: addr,
		abi:      parsedABI,
		bound:    bound,
		key:      key,
		wallet:   wallet,
		chainID:  chainID,
		metrics:  metrics,
		log:      log.New(os.Stdout, "[CHAIN] ", log.LstdFlags),
	}, nil
}

func trimHexPrefix(s string) string {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// SetCursor seeds the ingest cursor, e.g. from the highest block number of
// a persisted event, so ingest resumes after a restart without replaying
// from genesis.
func (c *Client) SetCursor(block uint64) {
	c.cursor = block
}

// ListenEvents polls for new blocks every 2 seconds, decodes matching logs
// against each of the seven event variants in turn, and dispatches the
// first successful decode to handler. Decode failures are logged and
// skipped; the loop never stops on a bad log.
func (c *Client) ListenEvents(ctx context.Context, handler EventHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		head, err := c.rpc.BlockNumber(ctx)
		if err != nil {
			c.log.Printf("block number fetch failed: %v", err)
			sleepOrDone(ctx, pollInterval)
			continue
		}

		if head >= c.cursor {
			query := ethereum.FilterQuery{
				FromBlock: new(big.Int).SetUint64(c.cursor),
				ToBlock:   new(big.Int).SetUint64(head),
				Addresses: []common.Address{c.contract},
			}
			logs, err := c.rpc.FilterLogs(ctx, query)
			if err != nil {
				c.log.Printf("filter logs failed: %v", err)
				sleepOrDone(ctx, pollInterval)
				continue
			}
			for _, lg := range logs {
				name, args, ok := c.decodeLog(lg)
				if !ok {
					c.log.Printf("skipping undecodable log (tx %s, index %d)", lg.TxHash.Hex(), lg.Index)
					continue
				}
				if err := c.HandleEvent(ctx, handler, name, args); err != nil {
					c.log.Printf("handle event %s failed: %v", name, err)
				}
			}
			c.cursor = head + 1
		}

		sleepOrDone(ctx, pollInterval)
	}
}

// decodeLog matches the log's topic0 against the seven known event
// variants, trying each in turn (per §4.5), and decodes the first match.
func (c *Client) decodeLog(lg types.Log) (name string, args map[string]interface{}, ok bool) {
	if len(lg.Topics) == 0 {
		return "", nil, false
	}
	ev, err := c.abi.EventByID(lg.Topics[0])
	if err != nil || ev == nil {
		return "", nil, false
	}
	for _, known := range eventKindNames {
		if ev.Name != known {
			continue
		}
		out := make(map[string]interface{})
		if err := c.abi.UnpackIntoMap(out, ev.Name, lg.Data); err != nil {
			return "", nil, false
		}
		// UnpackIntoMap only covers non-indexed fields; indexed ones such as
		// escrowId travel in the remaining topics.
		if len(lg.Topics) > 1 {
			var indexed abi.Arguments
			for _, arg := range ev.Inputs {
				if arg.Indexed {
					indexed = append(indexed, arg)
				}
			}
			if err := abi.ParseTopicsIntoMap(out, indexed, lg.Topics[1:]); err != nil {
				return "", nil, false
			}
		}
		return ev.Name, out, true
	}
	return "", nil, false
}

var eventKindByName = map[string]domain.EscrowKind{
	"EscrowCreated":   domain.EscrowCreated,
	"ShipmentLinked":  domain.EscrowLinked,
	"EscrowExtended":  domain.EscrowExtended,
	"EscrowCancelled": domain.EscrowCancelled,
	"EscrowExpired":   domain.EscrowExpired,
	"FundsRefunded":   domain.EscrowRefunded,
	"FundsReleased":   domain.EscrowReleased,
}

// HandleEvent extracts escrowId, maps the event name to an EscrowKind,
// JSON-encodes the decoded args, and persists via handler.
func (c *Client) HandleEvent(ctx context.Context, handler EventHandler, eventName string, args map[string]interface{}) error {
	kind, ok := eventKindByName[eventName]
	if !ok {
		return fmt.Errorf("unknown event: %s", eventName)
	}

	escrowID, err := extractEscrowID(args)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return domain.Wrap(domain.KindChainTransient, "marshal event args", err)
	}

	return handler.SaveEscrowEvent(ctx, escrowID, kind, string(payload))
}

func extractEscrowID(args map[string]interface{}) (uint64, error) {
	raw, ok := args["escrowId"]
	if !ok {
		return 0, fmt.Errorf("missing escrowId in event args")
	}
	id, ok := raw.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("escrowId has unexpected type %T", raw)
	}
	return id.Uint64(), nil
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
