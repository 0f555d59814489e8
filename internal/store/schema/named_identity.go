package schema

import "time"

// NamedIdentity represents the named_identities table - the current display name of an address
type NamedIdentity struct {
	// Address is the checksummed address
	Address string `gorm:"column:address;primaryKey;type:text"`
	// DisplayName is the last name assigned; the hex keccak hash when only the hash was logged
	DisplayName string    `gorm:"column:display_name;not null;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the NamedIdentity model
func (NamedIdentity) TableName() string {
	return "named_identities"
}

// NameRecord represents the name_records table - the history of names assigned to addresses
type NameRecord struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Address     string    `gorm:"column:address;not null;type:text;index:idx_name_records_address"`
	DisplayName string    `gorm:"column:display_name;not null;type:text"`
	Timestamp   time.Time `gorm:"column:timestamp;not null;type:timestamptz"`
	TxHash      string    `gorm:"column:tx_hash;not null;type:text"`
	BlockNumber uint64    `gorm:"column:block_number;not null;type:bigint"`
	LogIndex    uint      `gorm:"column:log_index;not null;type:integer"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the NameRecord model
func (NameRecord) TableName() string {
	return "name_records"
}
