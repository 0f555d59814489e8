package store

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/feral-file/ff-grid-indexer/internal/domain"
	"github.com/feral-file/ff-grid-indexer/internal/store/schema"
)

// CreateChainEventInput is one contract log to append to chain_events
type CreateChainEventInput struct {
	BlockNumber uint64
	TxHash      string
	LogIndex    uint
	EventKind   string
	RawArgs     datatypes.JSON
	Timestamp   time.Time
}

// UpsertCellInput sets the owner (and content URI) of a cell, creating it when missing
type UpsertCellInput struct {
	Coordinate domain.Coordinate
	Owner      string
	ContentURI string
	Timestamp  time.Time
	// PreserveExistingURI keeps the stored content URI when ContentURI is empty
	PreserveExistingURI bool
}

// UpdateCellOwnerInput changes the owner of an existing cell
type UpdateCellOwnerInput struct {
	Coordinate domain.Coordinate
	Owner      string
	Timestamp  time.Time
}

// UpdateCellContentInput changes the content URI of a cell owned by Owner
type UpdateCellContentInput struct {
	Coordinate domain.Coordinate
	Owner      string
	URI        string
	Timestamp  time.Time
}

// CreateOwnershipRecordInput is one row of ownership history
type CreateOwnershipRecordInput struct {
	Coordinate domain.Coordinate
	Owner      string
	Meta       domain.EventMeta
}

// CreateContentRecordInput is one row of content history
type CreateContentRecordInput struct {
	Coordinate domain.Coordinate
	URI        string
	Owner      string
	Meta       domain.EventMeta
}

// CreateNameRecordInput is one row of name history
type CreateNameRecordInput struct {
	Address     string
	DisplayName string
	Meta        domain.EventMeta
}

// CreateFailedRangeInput describes a block sub-range that was not applied
type CreateFailedRangeInput struct {
	FromBlock        uint64
	ToBlock          uint64
	Reason           string
	FirstTxHash      *string
	FirstBlockNumber *uint64
}

// Store defines the interface for database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// WithTx runs fn in a transaction; fn receives a Store bound to it.
	// The transaction is rolled back when fn returns an error.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	// MaxEventBlock returns the highest block number in chain_events; ok is false when the table is empty
	MaxEventBlock(ctx context.Context) (blockNumber uint64, ok bool, err error)

	// InsertChainEvent appends an event, ignoring duplicates of (tx_hash, log_index).
	// It reports whether a new row was inserted.
	InsertChainEvent(ctx context.Context, input CreateChainEventInput) (bool, error)

	// GetCell returns the cell at coord, or nil when it does not exist
	GetCell(ctx context.Context, coord domain.Coordinate) (*schema.Cell, error)

	// UpsertCell creates the cell or overwrites its owner, content URI and timestamp
	UpsertCell(ctx context.Context, input UpsertCellInput) error

	// UpdateCellOwner sets the owner of an existing cell; it reports whether a row was updated
	UpdateCellOwner(ctx context.Context, input UpdateCellOwnerInput) (bool, error)

	// UpdateCellContent sets the content URI when the cell is owned by input.Owner;
	// it reports whether a row was updated
	UpdateCellContent(ctx context.Context, input UpdateCellContentInput) (bool, error)

	// CreateOwnershipRecord appends ownership history; domain.ErrCellNotFound when the cell does not exist
	CreateOwnershipRecord(ctx context.Context, input CreateOwnershipRecordInput) error

	// CreateContentRecord appends content history; domain.ErrCellNotFound when the cell does not exist
	CreateContentRecord(ctx context.Context, input CreateContentRecordInput) error

	// UpsertNamedIdentity sets the display name of an address
	UpsertNamedIdentity(ctx context.Context, address, displayName string) error

	// CreateNameRecord appends name history
	CreateNameRecord(ctx context.Context, input CreateNameRecordInput) error

	// GetNamedIdentity returns the identity of an address, or nil when it has none
	GetNamedIdentity(ctx context.Context, address string) (*schema.NamedIdentity, error)

	// GetOwnershipRecords returns the ownership history of a cell in chain order
	GetOwnershipRecords(ctx context.Context, coord domain.Coordinate) ([]schema.OwnershipRecord, error)

	// GetContentRecords returns the content history of a cell in chain order
	GetContentRecords(ctx context.Context, coord domain.Coordinate) ([]schema.ContentRecord, error)

	// CreateFailedRange records a sub-range that was not applied; an open row for the
	// same range is updated instead of duplicated
	CreateFailedRange(ctx context.Context, input CreateFailedRangeInput) error

	// GetUnresolvedFailedRanges returns failed ranges not yet rescanned, oldest first
	GetUnresolvedFailedRanges(ctx context.Context, limit int) ([]schema.FailedRange, error)

	// ResolveFailedRanges marks the failed ranges inside [fromBlock, toBlock] as resolved
	ResolveFailedRanges(ctx context.Context, fromBlock, toBlock uint64, resolvedAt time.Time) (int64, error)
}
