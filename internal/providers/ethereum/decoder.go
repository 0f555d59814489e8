package ethereum

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/ff-grid-indexer/internal/domain"
	"github.com/feral-file/ff-grid-indexer/internal/logger"
)

const abiWordSize = 32

// Decoder turns raw contract logs into typed domain events
type Decoder struct {
	contract abi.ABI
	kinds    map[common.Hash]domain.EventKind
	indexed  map[string]abi.Arguments
}

// NewDecoder creates a decoder for the grid contract
func NewDecoder() (*Decoder, error) {
	parsed, err := ContractABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	d := &Decoder{
		contract: parsed,
		kinds:    make(map[common.Hash]domain.EventKind, len(eventKinds)),
		indexed:  make(map[string]abi.Arguments, len(eventKinds)),
	}
	for name, kind := range eventKinds {
		event, ok := parsed.Events[name]
		if !ok {
			return nil, fmt.Errorf("event %s missing from contract ABI", name)
		}
		d.kinds[event.ID] = kind

		var indexed abi.Arguments
		for _, arg := range event.Inputs {
			if arg.Indexed {
				indexed = append(indexed, arg)
			}
		}
		d.indexed[name] = indexed
	}
	return d, nil
}

// Decode decodes one log eagerly. It never panics: failures are attached to the
// result as an error wrapping domain.ErrUnknownEvent or domain.ErrDecodeFailed.
// The timestamp is left for the caller to fill.
func (d *Decoder) Decode(vLog types.Log) (decoded domain.DecodedLog) {
	decoded = domain.DecodedLog{
		Meta: domain.EventMeta{
			BlockNumber: vLog.BlockNumber,
			TxHash:      vLog.TxHash.Hex(),
			LogIndex:    vLog.Index,
		},
		Raw: rawLog(vLog),
	}

	if len(vLog.Topics) == 0 {
		decoded.Err = fmt.Errorf("%w: log has no topics", domain.ErrUnknownEvent)
		return decoded
	}
	kind, ok := d.kinds[vLog.Topics[0]]
	if !ok {
		decoded.Err = fmt.Errorf("%w: %s", domain.ErrUnknownEvent, vLog.Topics[0].Hex())
		return decoded
	}
	decoded.Kind = kind

	defer func() {
		if r := recover(); r != nil {
			decoded.Event = nil
			decoded.Err = fmt.Errorf("%w: %s: %v", domain.ErrDecodeFailed, kind, r)
		}
	}()

	event, err := d.decode(kind, vLog)
	if err != nil {
		decoded.Err = fmt.Errorf("%w: %s: %w", domain.ErrDecodeFailed, kind, err)
		return decoded
	}
	decoded.Event = event
	return decoded
}

func (d *Decoder) decode(kind domain.EventKind, vLog types.Log) (domain.Event, error) {
	switch kind {
	case domain.EventKindBuy:
		return d.decodeBuy(vLog)
	case domain.EventKindBatchBuy:
		return d.decodeBatchBuy(vLog)
	case domain.EventKindTransfer:
		return d.decodeTransfer(vLog)
	case domain.EventKindUpdate:
		event, err := d.decodeUpdate(vLog)
		if err == nil {
			return event, nil
		}
		fallback, fallbackErr := decodeUpdateFromRaw(vLog)
		if fallbackErr != nil {
			return nil, fmt.Errorf("%w; raw fallback: %w", err, fallbackErr)
		}
		logger.Warn("Update event recovered from raw log data",
			zap.String("tx_hash", vLog.TxHash.Hex()),
			zap.Uint("log_index", vLog.Index),
			zap.Error(err))
		return fallback, nil
	case domain.EventKindNamed:
		return d.decodeNamed(vLog)
	case domain.EventKindOwnershipTransferred:
		return d.decodeOwnershipTransferred(vLog)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEvent, kind)
	}
}

// unpack decodes the data and the indexed topics of the named event into one map
func (d *Decoder) unpack(name string, vLog types.Log) (map[string]any, error) {
	args := make(map[string]any)
	if err := d.contract.UnpackIntoMap(args, name, vLog.Data); err != nil {
		return nil, err
	}
	if err := abi.ParseTopicsIntoMap(args, d.indexed[name], vLog.Topics[1:]); err != nil {
		return nil, err
	}
	return args, nil
}

func (d *Decoder) decodeBuy(vLog types.Log) (domain.Event, error) {
	args, err := d.unpack(eventBuy, vLog)
	if err != nil {
		return nil, err
	}
	buyer, err := addressArg(args, "buyer")
	if err != nil {
		return nil, err
	}
	coord, err := coordinateArgs(args, "x", "y")
	if err != nil {
		return nil, err
	}
	return domain.BuyEvent{Buyer: buyer, Coordinate: coord}, nil
}

func (d *Decoder) decodeBatchBuy(vLog types.Log) (domain.Event, error) {
	args, err := d.unpack(eventBatchBuy, vLog)
	if err != nil {
		return nil, err
	}
	buyer, err := addressArg(args, "buyer")
	if err != nil {
		return nil, err
	}
	xs, err := bigSliceArg(args, "xs")
	if err != nil {
		return nil, err
	}
	ys, err := bigSliceArg(args, "ys")
	if err != nil {
		return nil, err
	}
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("coordinate arrays differ in length: %d xs, %d ys", len(xs), len(ys))
	}

	coords := make([]domain.Coordinate, 0, len(xs))
	for i := range xs {
		coord, err := domain.NewCoordinate(xs[i], ys[i])
		if err != nil {
			return nil, err
		}
		coords = append(coords, coord)
	}
	return domain.BatchBuyEvent{Buyer: buyer, Coordinates: coords}, nil
}

func (d *Decoder) decodeTransfer(vLog types.Log) (domain.Event, error) {
	args, err := d.unpack(eventTransfer, vLog)
	if err != nil {
		return nil, err
	}
	from, err := addressArg(args, "from")
	if err != nil {
		return nil, err
	}
	to, err := addressArg(args, "to")
	if err != nil {
		return nil, err
	}
	tokenID, err := bigArg(args, "tokenId")
	if err != nil {
		return nil, err
	}
	coord, err := domain.CoordinateFromTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	return domain.TransferEvent{From: from, To: to, Coordinate: coord}, nil
}

func (d *Decoder) decodeUpdate(vLog types.Log) (domain.UpdateEvent, error) {
	args, err := d.unpack(eventUpdate, vLog)
	if err != nil {
		return domain.UpdateEvent{}, err
	}
	owner, err := addressArg(args, "owner")
	if err != nil {
		return domain.UpdateEvent{}, err
	}
	coord, err := coordinateArgs(args, "x", "y")
	if err != nil {
		return domain.UpdateEvent{}, err
	}
	uri, err := stringArg(args, "uri")
	if err != nil {
		return domain.UpdateEvent{}, err
	}
	return domain.UpdateEvent{Owner: owner, Coordinate: coord, URI: uri}, nil
}

// decodeUpdateFromRaw reads an Update log by fixed ABI offsets: owner from topic 1,
// then x, y and the offset of the uri string as the first three data words.
func decodeUpdateFromRaw(vLog types.Log) (domain.UpdateEvent, error) {
	if len(vLog.Topics) < 2 {
		return domain.UpdateEvent{}, errors.New("owner topic missing")
	}
	data := vLog.Data
	if len(data) < 3*abiWordSize {
		return domain.UpdateEvent{}, fmt.Errorf("data too short: %d bytes", len(data))
	}

	owner := common.BytesToAddress(vLog.Topics[1].Bytes())
	x := new(big.Int).SetBytes(data[0:abiWordSize])
	y := new(big.Int).SetBytes(data[abiWordSize : 2*abiWordSize])
	coord, err := domain.NewCoordinate(x, y)
	if err != nil {
		return domain.UpdateEvent{}, err
	}

	offset, err := wordToInt(data[2*abiWordSize : 3*abiWordSize])
	if err != nil {
		return domain.UpdateEvent{}, fmt.Errorf("uri offset: %w", err)
	}
	if offset > len(data)-abiWordSize {
		return domain.UpdateEvent{}, fmt.Errorf("uri offset %d out of bounds", offset)
	}
	length, err := wordToInt(data[offset : offset+abiWordSize])
	if err != nil {
		return domain.UpdateEvent{}, fmt.Errorf("uri length: %w", err)
	}
	start := offset + abiWordSize
	if length > len(data)-start {
		return domain.UpdateEvent{}, fmt.Errorf("uri length %d out of bounds", length)
	}

	return domain.UpdateEvent{
		Owner:      owner.Hex(),
		Coordinate: coord,
		URI:        string(data[start : start+length]),
	}, nil
}

func (d *Decoder) decodeNamed(vLog types.Log) (domain.Event, error) {
	// The name may be emitted as an indexed string, which leaves only its keccak hash
	if len(vLog.Topics) == 3 && len(vLog.Data) == 0 {
		return domain.NamedEvent{
			Address:    common.BytesToAddress(vLog.Topics[1].Bytes()).Hex(),
			Name:       vLog.Topics[2].Hex(),
			NameIsHash: true,
		}, nil
	}

	args, err := d.unpack(eventNamed, vLog)
	if err != nil {
		return nil, err
	}
	user, err := addressArg(args, "user")
	if err != nil {
		return nil, err
	}
	name, err := stringArg(args, "name")
	if err != nil {
		return nil, err
	}
	return domain.NamedEvent{Address: user, Name: name}, nil
}

func (d *Decoder) decodeOwnershipTransferred(vLog types.Log) (domain.Event, error) {
	args, err := d.unpack(eventOwnershipTransferred, vLog)
	if err != nil {
		return nil, err
	}
	previous, err := addressArg(args, "previousOwner")
	if err != nil {
		return nil, err
	}
	next, err := addressArg(args, "newOwner")
	if err != nil {
		return nil, err
	}
	return domain.OwnershipTransferredEvent{PreviousOwner: previous, NewOwner: next}, nil
}

func addressArg(args map[string]any, name string) (string, error) {
	v, ok := args[name].(common.Address)
	if !ok {
		return "", fmt.Errorf("argument %s: unexpected type %T", name, args[name])
	}
	return v.Hex(), nil
}

func bigArg(args map[string]any, name string) (*big.Int, error) {
	v, ok := args[name].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("argument %s: unexpected type %T", name, args[name])
	}
	return v, nil
}

func bigSliceArg(args map[string]any, name string) ([]*big.Int, error) {
	v, ok := args[name].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("argument %s: unexpected type %T", name, args[name])
	}
	return v, nil
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok {
		return "", fmt.Errorf("argument %s: unexpected type %T", name, args[name])
	}
	return v, nil
}

func coordinateArgs(args map[string]any, xName, yName string) (domain.Coordinate, error) {
	x, err := bigArg(args, xName)
	if err != nil {
		return domain.Coordinate{}, err
	}
	y, err := bigArg(args, yName)
	if err != nil {
		return domain.Coordinate{}, err
	}
	return domain.NewCoordinate(x, y)
}

func wordToInt(word []byte) (int, error) {
	v := new(big.Int).SetBytes(word)
	if !v.IsInt64() || v.Int64() > math.MaxInt32 {
		return 0, fmt.Errorf("value %s too large", v)
	}
	return int(v.Int64()), nil
}

func rawLog(vLog types.Log) domain.RawLog {
	topics := make([]string, len(vLog.Topics))
	for i, t := range vLog.Topics {
		topics[i] = t.Hex()
	}
	return domain.RawLog{Topics: topics, Data: hexutil.Encode(vLog.Data)}
}
