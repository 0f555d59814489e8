package schema

import "time"

// FailedRange represents the failed_ranges table - block sub-ranges that could not be
// fetched or were rolled back, kept so they can be rescanned
type FailedRange struct {
	ID        uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	FromBlock uint64 `gorm:"column:from_block;not null;type:bigint"`
	ToBlock   uint64 `gorm:"column:to_block;not null;type:bigint"`
	// Reason is the error message that made the range fail
	Reason string `gorm:"column:reason;not null;type:text"`
	// FirstTxHash and FirstBlockNumber identify the first event of the range, when known
	FirstTxHash      *string    `gorm:"column:first_tx_hash;type:text"`
	FirstBlockNumber *uint64    `gorm:"column:first_block_number;type:bigint"`
	// Attempts counts how many times the range failed while unresolved
	Attempts   int        `gorm:"column:attempts;not null;default:1"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
	ResolvedAt *time.Time `gorm:"column:resolved_at;type:timestamptz"`
}

// TableName specifies the table name for the FailedRange model
func (FailedRange) TableName() string {
	return "failed_ranges"
}
