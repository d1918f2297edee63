package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContractABI(t *testing.T) {
	parsed, err := parseContractABI()
	require.NoError(t, err)

	for _, name := range eventKindNames {
		_, ok := parsed.Events[name]
		assert.True(t, ok, "missing event %s in parsed ABI", name)
	}
	for _, name := range []string{"releaseFunds", "refund", "extendEscrow", "finalizeExpiredRefund", "getActiveEscrows"} {
		_, ok := parsed.Methods[name]
		assert.True(t, ok, "missing method %s in parsed ABI", name)
	}
}

func TestDecodeLogMatchesKnownEvent(t *testing.T) {
	parsed, err := parseContractABI()
	require.NoError(t, err)
	c := &Client{abi: parsed}

	ev := parsed.Events["EscrowCancelled"]
	data, err := ev.Inputs.NonIndexed().Pack()
	require.NoError(t, err)

	lg := types.Log{
		Topics: []common.Hash{ev.ID},
		Data:   data,
	}

	name, _, ok := c.decodeLog(lg)
	require.True(t, ok)
	assert.Equal(t, "EscrowCancelled", name)
}

func TestDecodeLogUnknownTopic(t *testing.T) {
	parsed, err := parseContractABI()
	require.NoError(t, err)
	c := &Client{abi: parsed}

	lg := types.Log{Topics: []common.Hash{common.HexToHash("0xdeadbeef")}}
	_, _, ok := c.decodeLog(lg)
	assert.False(t, ok)
}

func TestExtractEscrowID(t *testing.T) {
	id, err := extractEscrowID(map[string]interface{}{"escrowId": big.NewInt(7)})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)

	_, err = extractEscrowID(map[string]interface{}{})
	assert.Error(t, err)
}
