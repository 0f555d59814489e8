package schema

import "time"

// Cell represents the cells table - the current state of one grid coordinate
type Cell struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// X is the column of the cell, 0..99
	X int `gorm:"column:x;not null;uniqueIndex:idx_cells_x_y"`
	// Y is the row of the cell, 0..99
	Y int `gorm:"column:y;not null;uniqueIndex:idx_cells_x_y"`
	// ContentURI is the latest content URI set for the cell, empty when none
	ContentURI string `gorm:"column:content_uri;not null;default:'';type:text"`
	// CurrentOwner is the checksummed address of the owner
	CurrentOwner string `gorm:"column:current_owner;not null;type:text;index:idx_cells_current_owner"`
	// LastEventTimestamp is the block timestamp of the last event applied to the cell
	LastEventTimestamp time.Time `gorm:"column:last_event_timestamp;not null;type:timestamptz"`
	// CreatedAt is the timestamp when the cell was first indexed
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when the cell was last written
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Cell model
func (Cell) TableName() string {
	return "cells"
}
