package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// contractABI is the fixed ABI of the escrow contract: the seven lifecycle
// events this system ingests, plus the four mutating functions and one
// read-only view it invokes.
const contractABI = `[
	{"type":"event","name":"EscrowCreated","inputs":[
		{"name":"escrowId","type":"uint256","indexed":true},
		{"name":"buyer","type":"address","indexed":false},
		{"name":"seller","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"ShipmentLinked","inputs":[
		{"name":"escrowId","type":"uint256","indexed":true},
		{"name":"shipmentId","type":"string","indexed":false}
	]},
	{"type":"event","name":"EscrowExtended","inputs":[
		{"name":"escrowId","type":"uint256","indexed":true},
		{"name":"newDeadline","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"EscrowCancelled","inputs":[
		{"name":"escrowId","type":"uint256","indexed":true}
	]},
	{"type":"event","name":"EscrowExpired","inputs":[
		{"name":"escrowId","type":"uint256","indexed":true}
	]},
	{"type":"event","name":"FundsRefunded","inputs":[
		{"name":"escrowId","type":"uint256","indexed":true},
		{"name":"reason","type":"string","indexed":false}
	]},
	{"type":"event","name":"FundsReleased","inputs":[
		{"name":"escrowId","type":"uint256","indexed":true},
		{"name":"reason","type":"string","indexed":false}
	]},
	{"type":"function","name":"releaseFunds","stateMutability":"nonpayable","inputs":[
		{"name":"id","type":"uint256"},{"name":"reason","type":"string"}
	],"outputs":[]},
	{"type":"function","name":"refund","stateMutability":"nonpayable","inputs":[
		{"name":"id","type":"uint256"},{"name":"reason","type":"string"}
	],"outputs":[]},
	{"type":"function","name":"extendEscrow","stateMutability":"nonpayable","inputs":[
		{"name":"id","type":"uint256"},{"name":"secs","type":"uint256"},{"name":"reason","type":"string"}
	],"outputs":[]},
	{"type":"function","name":"finalizeExpiredRefund","stateMutability":"nonpayable","inputs":[
		{"name":"id","type":"uint256"},{"name":"reason","type":"string"}
	],"outputs":[]},
	{"type":"function","name":"getActiveEscrows","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"uint256[]"}]}
]`

func parseContractABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(contractABI))
}

// eventKindNames lists the seven event variants decodeLog accepts; their
// EscrowKind mapping is eventKindByName in client.go.
var eventKindNames = []string{
	"EscrowCreated",
	"ShipmentLinked",
	"EscrowExtended",
	"EscrowCancelled",
	"EscrowExpired",
	"FundsRefunded",
	"FundsReleased",
}
