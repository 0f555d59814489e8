package schema

import "time"

// OwnershipRecord represents the ownership_records table - one row per ownership change of a cell
type OwnershipRecord struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	X           int       `gorm:"column:x;not null;index:idx_ownership_records_x_y"`
	Y           int       `gorm:"column:y;not null;index:idx_ownership_records_x_y"`
	Owner       string    `gorm:"column:owner;not null;type:text"`
	Timestamp   time.Time `gorm:"column:timestamp;not null;type:timestamptz"`
	TxHash      string    `gorm:"column:tx_hash;not null;type:text"`
	BlockNumber uint64    `gorm:"column:block_number;not null;type:bigint"`
	LogIndex    uint      `gorm:"column:log_index;not null;type:integer"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the OwnershipRecord model
func (OwnershipRecord) TableName() string {
	return "ownership_records"
}

// ContentRecord represents the content_records table - one row per content update of a cell.
// Owner is the address that sent the update, which is not necessarily the owner of the cell.
type ContentRecord struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	X           int       `gorm:"column:x;not null;index:idx_content_records_x_y"`
	Y           int       `gorm:"column:y;not null;index:idx_content_records_x_y"`
	URI         string    `gorm:"column:uri;not null;type:text"`
	Owner       string    `gorm:"column:owner;not null;type:text"`
	Timestamp   time.Time `gorm:"column:timestamp;not null;type:timestamptz"`
	TxHash      string    `gorm:"column:tx_hash;not null;type:text"`
	BlockNumber uint64    `gorm:"column:block_number;not null;type:bigint"`
	LogIndex    uint      `gorm:"column:log_index;not null;type:integer"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the ContentRecord model
func (ContentRecord) TableName() string {
	return "content_records"
}
