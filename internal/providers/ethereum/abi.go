package ethereum

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/ff-grid-indexer/internal/domain"
)

// Event and method names of the grid contract
const (
	eventBuy                  = "Buy"
	eventBatchBuy             = "BatchBuy"
	eventTransfer             = "Transfer"
	eventUpdate               = "Update"
	eventNamed                = "Named"
	eventOwnershipTransferred = "OwnershipTransferred"

	methodGetBlockURI = "getBlockURI"
)

// gridContractABI is the subset of the grid contract ABI the indexer consumes
const gridContractABI = `[
	{"type":"event","name":"Buy","anonymous":false,"inputs":[
		{"indexed":true,"name":"buyer","type":"address"},
		{"indexed":false,"name":"x","type":"uint256"},
		{"indexed":false,"name":"y","type":"uint256"}]},
	{"type":"event","name":"BatchBuy","anonymous":false,"inputs":[
		{"indexed":true,"name":"buyer","type":"address"},
		{"indexed":false,"name":"xs","type":"uint256[]"},
		{"indexed":false,"name":"ys","type":"uint256[]"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":true,"name":"tokenId","type":"uint256"}]},
	{"type":"event","name":"Update","anonymous":false,"inputs":[
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":false,"name":"x","type":"uint256"},
		{"indexed":false,"name":"y","type":"uint256"},
		{"indexed":false,"name":"uri","type":"string"}]},
	{"type":"event","name":"Named","anonymous":false,"inputs":[
		{"indexed":true,"name":"user","type":"address"},
		{"indexed":false,"name":"name","type":"string"}]},
	{"type":"event","name":"OwnershipTransferred","anonymous":false,"inputs":[
		{"indexed":true,"name":"previousOwner","type":"address"},
		{"indexed":true,"name":"newOwner","type":"address"}]},
	{"type":"function","name":"getBlockURI","stateMutability":"view","inputs":[
		{"name":"x","type":"uint256"},
		{"name":"y","type":"uint256"}],"outputs":[
		{"name":"","type":"string"}]}
]`

// eventKinds maps contract event names to the domain enum
var eventKinds = map[string]domain.EventKind{
	eventBuy:                  domain.EventKindBuy,
	eventBatchBuy:             domain.EventKindBatchBuy,
	eventTransfer:             domain.EventKindTransfer,
	eventUpdate:               domain.EventKindUpdate,
	eventNamed:                domain.EventKindNamed,
	eventOwnershipTransferred: domain.EventKindOwnershipTransferred,
}

// ContractABI parses the grid contract ABI
func ContractABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(gridContractABI))
}

// EventTopic returns topic0 of the named contract event
func EventTopic(parsed abi.ABI, name string) (common.Hash, bool) {
	event, ok := parsed.Events[name]
	if !ok {
		return common.Hash{}, false
	}
	return event.ID, true
}
