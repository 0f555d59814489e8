package domain

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsValidAddress reports whether addr is a 0x-prefixed, 40 hex digit address
func IsValidAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// NormalizeAddress returns the checksummed form of a valid address
func NormalizeAddress(addr string) (string, error) {
	if !IsValidAddress(addr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return common.HexToAddress(addr).Hex(), nil
}

// IsZeroAddress reports whether addr is the zero address
func IsZeroAddress(addr string) bool {
	return strings.EqualFold(addr, ETHEREUM_ZERO_ADDRESS)
}

// Coordinate identifies one cell of the grid
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String returns the coordinate as "x,y"
func (c Coordinate) String() string {
	return fmt.Sprintf("%d,%d", c.X, c.Y)
}

// Valid reports whether the coordinate lies inside the grid
func (c Coordinate) Valid() bool {
	return c.X >= 0 && c.X < GRID_SIZE && c.Y >= 0 && c.Y < GRID_SIZE
}

// TokenID returns the token id the contract uses for this coordinate (y*GRID_SIZE + x)
func (c Coordinate) TokenID() *big.Int {
	return big.NewInt(int64(c.Y*GRID_SIZE + c.X))
}

// NewCoordinate builds a coordinate from on-chain uint256 values
func NewCoordinate(x, y *big.Int) (Coordinate, error) {
	if x == nil || y == nil {
		return Coordinate{}, fmt.Errorf("%w: missing value", ErrInvalidCoordinate)
	}
	if !x.IsInt64() || !y.IsInt64() {
		return Coordinate{}, fmt.Errorf("%w: (%s, %s)", ErrInvalidCoordinate, x, y)
	}

	c := Coordinate{X: int(x.Int64()), Y: int(y.Int64())}
	if !c.Valid() {
		return Coordinate{}, fmt.Errorf("%w: (%d, %d)", ErrInvalidCoordinate, c.X, c.Y)
	}
	return c, nil
}

// CoordinateFromTokenID converts a contract token id back to a coordinate
func CoordinateFromTokenID(tokenID *big.Int) (Coordinate, error) {
	if tokenID == nil || tokenID.Sign() < 0 || tokenID.Cmp(big.NewInt(GRID_SIZE*GRID_SIZE)) >= 0 {
		return Coordinate{}, fmt.Errorf("%w: token id %v", ErrInvalidCoordinate, tokenID)
	}
	id := int(tokenID.Int64())
	return Coordinate{X: id % GRID_SIZE, Y: id / GRID_SIZE}, nil
}

// EventKind is the closed set of contract events the indexer understands
type EventKind int

const (
	EventKindUnknown EventKind = iota
	EventKindBuy
	EventKindBatchBuy
	EventKindTransfer
	EventKindUpdate
	EventKindNamed
	EventKindOwnershipTransferred
)

// String returns the contract event name for the kind
func (k EventKind) String() string {
	switch k {
	case EventKindBuy:
		return "Buy"
	case EventKindBatchBuy:
		return "BatchBuy"
	case EventKindTransfer:
		return "Transfer"
	case EventKindUpdate:
		return "Update"
	case EventKindNamed:
		return "Named"
	case EventKindOwnershipTransferred:
		return "OwnershipTransferred"
	default:
		return "Unknown"
	}
}

// EventMeta identifies where a log was emitted
type EventMeta struct {
	BlockNumber uint64    `json:"block_number"`
	TxHash      string    `json:"tx_hash"`
	LogIndex    uint      `json:"log_index"`
	Timestamp   time.Time `json:"timestamp"`
}

// Event is the typed payload of a decoded contract log
type Event interface {
	Kind() EventKind
}

// BuyEvent is emitted when a single cell is bought
type BuyEvent struct {
	Buyer      string     `json:"buyer"`
	Coordinate Coordinate `json:"coordinate"`
}

func (BuyEvent) Kind() EventKind { return EventKindBuy }

// BatchBuyEvent is emitted when several cells are bought in one call
type BatchBuyEvent struct {
	Buyer       string       `json:"buyer"`
	Coordinates []Coordinate `json:"coordinates"`
}

func (BatchBuyEvent) Kind() EventKind { return EventKindBatchBuy }

// TransferEvent is the ERC721 transfer of a cell token
type TransferEvent struct {
	From       string     `json:"from"`
	To         string     `json:"to"`
	Coordinate Coordinate `json:"coordinate"`
}

func (TransferEvent) Kind() EventKind { return EventKindTransfer }

// IsMint reports whether the transfer originates from the zero address
func (e TransferEvent) IsMint() bool {
	return IsZeroAddress(e.From)
}

// UpdateEvent is emitted when an owner changes the content of a cell
type UpdateEvent struct {
	Owner      string     `json:"owner"`
	Coordinate Coordinate `json:"coordinate"`
	URI        string     `json:"uri"`
}

func (UpdateEvent) Kind() EventKind { return EventKindUpdate }

// NamedEvent assigns a display name to an address
type NamedEvent struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	// NameIsHash is set when the log only carried the keccak hash of the name
	NameIsHash bool `json:"name_is_hash,omitempty"`
}

func (NamedEvent) Kind() EventKind { return EventKindNamed }

// OwnershipTransferredEvent is the contract admin handover
type OwnershipTransferredEvent struct {
	PreviousOwner string `json:"previous_owner"`
	NewOwner      string `json:"new_owner"`
}

func (OwnershipTransferredEvent) Kind() EventKind { return EventKindOwnershipTransferred }

// RawLog is the undecoded payload of a log, kept when decoding fails
type RawLog struct {
	Topics []string `json:"topics"`
	Data   string   `json:"data"`
}

// DecodedLog is the result of decoding one contract log.
// Exactly one of Event and Err is set.
type DecodedLog struct {
	Meta  EventMeta
	Kind  EventKind
	Event Event
	Raw   RawLog
	Err   error
}

// OK reports whether the log decoded into a typed event
func (d DecodedLog) OK() bool {
	return d.Err == nil && d.Event != nil
}

// GridChanged is published after a sub-range commits and touched grid state
type GridChanged struct {
	PassID    string       `json:"pass_id"`
	FromBlock uint64       `json:"from_block"`
	ToBlock   uint64       `json:"to_block"`
	Cells     []Coordinate `json:"cells,omitempty"`
	Addresses []string     `json:"addresses,omitempty"`
}
