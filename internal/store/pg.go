package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-grid-indexer/internal/domain"
	"github.com/feral-file/ff-grid-indexer/internal/store/schema"
)

// pgForeignKeyViolation is the SQLSTATE of a foreign key violation
const pgForeignKeyViolation = "23503"

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// Zero values fall back to the defaults of NormalizeConnectionPoolSettings.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 10
//   - MaxIdleConns: 2
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
//
// The scanner holds at most one transaction at a time, so the pool stays small.
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	if maxIdleConns <= 0 {
		maxIdleConns = 2
	}
	if connMaxLifetime <= 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// WithTx runs fn in a transaction, or in a savepoint when the store is already transactional
func (s *pgStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pgStore{db: tx})
	})
}

// MaxEventBlock returns the highest block number with a recorded event
func (s *pgStore) MaxEventBlock(ctx context.Context) (uint64, bool, error) {
	var maxBlock sql.NullInt64
	err := s.db.WithContext(ctx).
		Model(&schema.ChainEvent{}).
		Select("MAX(block_number)").
		Row().
		Scan(&maxBlock)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get max event block: %w", err)
	}
	if !maxBlock.Valid {
		return 0, false, nil
	}
	return uint64(maxBlock.Int64), true, nil //nolint:gosec,G115
}

// InsertChainEvent appends an event unless (tx_hash, log_index) already exists
func (s *pgStore) InsertChainEvent(ctx context.Context, input CreateChainEventInput) (bool, error) {
	event := schema.ChainEvent{
		BlockNumber: input.BlockNumber,
		TxHash:      input.TxHash,
		LogIndex:    input.LogIndex,
		EventKind:   input.EventKind,
		RawArgs:     input.RawArgs,
		Timestamp:   input.Timestamp,
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tx_hash"}, {Name: "log_index"}},
			DoNothing: true,
		}).
		Create(&event)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert chain event: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// GetCell retrieves a cell by coordinate
func (s *pgStore) GetCell(ctx context.Context, coord domain.Coordinate) (*schema.Cell, error) {
	var cell schema.Cell
	err := s.db.WithContext(ctx).Where("x = ? AND y = ?", coord.X, coord.Y).First(&cell).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cell: %w", err)
	}
	return &cell, nil
}

// UpsertCell creates a cell or overwrites its owner, content URI and timestamp
func (s *pgStore) UpsertCell(ctx context.Context, input UpsertCellInput) error {
	cell := schema.Cell{
		X:                  input.Coordinate.X,
		Y:                  input.Coordinate.Y,
		ContentURI:         input.ContentURI,
		CurrentOwner:       input.Owner,
		LastEventTimestamp: input.Timestamp,
	}

	contentURI := any(gorm.Expr("EXCLUDED.content_uri"))
	if input.PreserveExistingURI {
		contentURI = gorm.Expr("CASE WHEN EXCLUDED.content_uri = '' THEN cells.content_uri ELSE EXCLUDED.content_uri END")
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "x"}, {Name: "y"}},
			DoUpdates: clause.Assignments(map[string]any{
				"current_owner":        gorm.Expr("EXCLUDED.current_owner"),
				"content_uri":          contentURI,
				"last_event_timestamp": gorm.Expr("EXCLUDED.last_event_timestamp"),
				"updated_at":           gorm.Expr("now()"),
			}),
		}).
		Create(&cell).Error
	if err != nil {
		return fmt.Errorf("failed to upsert cell %s: %w", input.Coordinate, err)
	}
	return nil
}

// UpdateCellOwner sets the owner of an existing cell
func (s *pgStore) UpdateCellOwner(ctx context.Context, input UpdateCellOwnerInput) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&schema.Cell{}).
		Where("x = ? AND y = ?", input.Coordinate.X, input.Coordinate.Y).
		Updates(map[string]any{
			"current_owner":        input.Owner,
			"last_event_timestamp": input.Timestamp,
			"updated_at":           gorm.Expr("now()"),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to update owner of cell %s: %w", input.Coordinate, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// UpdateCellContent sets the content URI of a cell owned by input.Owner
func (s *pgStore) UpdateCellContent(ctx context.Context, input UpdateCellContentInput) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&schema.Cell{}).
		Where("x = ? AND y = ? AND LOWER(current_owner) = LOWER(?)", input.Coordinate.X, input.Coordinate.Y, input.Owner).
		Updates(map[string]any{
			"content_uri":          input.URI,
			"last_event_timestamp": input.Timestamp,
			"updated_at":           gorm.Expr("now()"),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to update content of cell %s: %w", input.Coordinate, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CreateOwnershipRecord appends a row of ownership history
func (s *pgStore) CreateOwnershipRecord(ctx context.Context, input CreateOwnershipRecordInput) error {
	record := schema.OwnershipRecord{
		X:           input.Coordinate.X,
		Y:           input.Coordinate.Y,
		Owner:       input.Owner,
		Timestamp:   input.Meta.Timestamp,
		TxHash:      input.Meta.TxHash,
		BlockNumber: input.Meta.BlockNumber,
		LogIndex:    input.Meta.LogIndex,
	}
	if err := s.createHistory(ctx, &record); err != nil {
		return fmt.Errorf("failed to create ownership record for cell %s: %w", input.Coordinate, err)
	}
	return nil
}

// CreateContentRecord appends a row of content history
func (s *pgStore) CreateContentRecord(ctx context.Context, input CreateContentRecordInput) error {
	record := schema.ContentRecord{
		X:           input.Coordinate.X,
		Y:           input.Coordinate.Y,
		URI:         input.URI,
		Owner:       input.Owner,
		Timestamp:   input.Meta.Timestamp,
		TxHash:      input.Meta.TxHash,
		BlockNumber: input.Meta.BlockNumber,
		LogIndex:    input.Meta.LogIndex,
	}
	if err := s.createHistory(ctx, &record); err != nil {
		return fmt.Errorf("failed to create content record for cell %s: %w", input.Coordinate, err)
	}
	return nil
}

// createHistory inserts a history row inside a savepoint, so a missing cell only
// undoes this insert and leaves the enclosing transaction usable
func (s *pgStore) createHistory(ctx context.Context, record any) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(record).Error
	})
	if err == nil {
		return nil
	}
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: %w", domain.ErrCellNotFound, err)
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// UpsertNamedIdentity sets the display name of an address
func (s *pgStore) UpsertNamedIdentity(ctx context.Context, address, displayName string) error {
	identity := schema.NamedIdentity{
		Address:     address,
		DisplayName: displayName,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "address"}},
			DoUpdates: clause.Assignments(map[string]any{
				"display_name": gorm.Expr("EXCLUDED.display_name"),
				"updated_at":   gorm.Expr("now()"),
			}),
		}).
		Create(&identity).Error
	if err != nil {
		return fmt.Errorf("failed to upsert named identity: %w", err)
	}
	return nil
}

// CreateNameRecord appends a row of name history
func (s *pgStore) CreateNameRecord(ctx context.Context, input CreateNameRecordInput) error {
	record := schema.NameRecord{
		Address:     input.Address,
		DisplayName: input.DisplayName,
		Timestamp:   input.Meta.Timestamp,
		TxHash:      input.Meta.TxHash,
		BlockNumber: input.Meta.BlockNumber,
		LogIndex:    input.Meta.LogIndex,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to create name record: %w", err)
	}
	return nil
}

// GetNamedIdentity retrieves the identity of an address
func (s *pgStore) GetNamedIdentity(ctx context.Context, address string) (*schema.NamedIdentity, error) {
	var identity schema.NamedIdentity
	err := s.db.WithContext(ctx).Where("address = ?", address).First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get named identity: %w", err)
	}
	return &identity, nil
}

// GetOwnershipRecords retrieves the ownership history of a cell
func (s *pgStore) GetOwnershipRecords(ctx context.Context, coord domain.Coordinate) ([]schema.OwnershipRecord, error) {
	var records []schema.OwnershipRecord
	err := s.db.WithContext(ctx).
		Where("x = ? AND y = ?", coord.X, coord.Y).
		Order("block_number ASC, log_index ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get ownership records: %w", err)
	}
	return records, nil
}

// GetContentRecords retrieves the content history of a cell
func (s *pgStore) GetContentRecords(ctx context.Context, coord domain.Coordinate) ([]schema.ContentRecord, error) {
	var records []schema.ContentRecord
	err := s.db.WithContext(ctx).
		Where("x = ? AND y = ?", coord.X, coord.Y).
		Order("block_number ASC, log_index ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get content records: %w", err)
	}
	return records, nil
}

// CreateFailedRange records a sub-range that was not applied. When the same range is
// already open, its reason and first event are replaced and its attempts incremented.
func (s *pgStore) CreateFailedRange(ctx context.Context, input CreateFailedRangeInput) error {
	failed := schema.FailedRange{
		FromBlock:        input.FromBlock,
		ToBlock:          input.ToBlock,
		Reason:           input.Reason,
		FirstTxHash:      input.FirstTxHash,
		FirstBlockNumber: input.FirstBlockNumber,
		Attempts:         1,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:     []clause.Column{{Name: "from_block"}, {Name: "to_block"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "resolved_at IS NULL"}}},
			DoUpdates: clause.Assignments(map[string]any{
				"reason":             gorm.Expr("EXCLUDED.reason"),
				"first_tx_hash":      gorm.Expr("EXCLUDED.first_tx_hash"),
				"first_block_number": gorm.Expr("EXCLUDED.first_block_number"),
				"attempts":           gorm.Expr("failed_ranges.attempts + 1"),
				"updated_at":         gorm.Expr("now()"),
			}),
		}).
		Create(&failed).Error
	if err != nil {
		return fmt.Errorf("failed to create failed range: %w", err)
	}
	return nil
}

// GetUnresolvedFailedRanges retrieves failed ranges that have not been rescanned
func (s *pgStore) GetUnresolvedFailedRanges(ctx context.Context, limit int) ([]schema.FailedRange, error) {
	var ranges []schema.FailedRange
	query := s.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("from_block ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&ranges).Error; err != nil {
		return nil, fmt.Errorf("failed to get unresolved failed ranges: %w", err)
	}
	return ranges, nil
}

// ResolveFailedRanges marks unresolved failed ranges contained in [fromBlock, toBlock] as resolved
func (s *pgStore) ResolveFailedRanges(ctx context.Context, fromBlock, toBlock uint64, resolvedAt time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&schema.FailedRange{}).
		Where("resolved_at IS NULL AND from_block >= ? AND to_block <= ?", fromBlock, toBlock).
		Update("resolved_at", resolvedAt)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to resolve failed ranges: %w", result.Error)
	}
	return result.RowsAffected, nil
}
