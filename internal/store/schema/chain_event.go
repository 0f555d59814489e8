package schema

import (
	"time"

	"gorm.io/datatypes"
)

// ChainEvent represents the chain_events table - the append-only log of every contract event ingested.
// MAX(block_number) of this table is the resume watermark of the scanner.
type ChainEvent struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// BlockNumber is the block the event was emitted in
	BlockNumber uint64 `gorm:"column:block_number;not null;type:bigint;index:idx_chain_events_block_number"`
	// TxHash is the transaction hash that emitted the event
	TxHash string `gorm:"column:tx_hash;not null;type:text;uniqueIndex:idx_chain_events_tx_hash_log_index"`
	// LogIndex is the position of the log within its block
	LogIndex uint `gorm:"column:log_index;not null;type:integer;uniqueIndex:idx_chain_events_tx_hash_log_index"`
	// EventKind is the contract event name (Buy, Transfer, ...) or Unknown
	EventKind string `gorm:"column:event_kind;not null;type:text"`
	// RawArgs holds the decoded arguments, or the raw topics and data when decoding failed
	RawArgs datatypes.JSON `gorm:"column:raw_args;type:jsonb"`
	// Timestamp is the block timestamp
	Timestamp time.Time `gorm:"column:timestamp;not null;type:timestamptz"`
	// CreatedAt is the timestamp when this record was indexed
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the ChainEvent model
func (ChainEvent) TableName() string {
	return "chain_events"
}
