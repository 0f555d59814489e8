package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-grid-indexer/internal/domain"
)

const (
	ownerA = "0xAAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
	ownerB = "0xBbBBbbBBbBbbbBBBbBbbBBbBbbbbBBBBbBBbBbBb"
)

// =============================================================================
// Test Data Builders
// =============================================================================

func buildMeta(txHash string, blockNumber uint64, logIndex uint) domain.EventMeta {
	return domain.EventMeta{
		BlockNumber: blockNumber,
		TxHash:      txHash,
		LogIndex:    logIndex,
		Timestamp:   time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func buildChainEvent(txHash string, blockNumber uint64, logIndex uint) CreateChainEventInput {
	return CreateChainEventInput{
		BlockNumber: blockNumber,
		TxHash:      txHash,
		LogIndex:    logIndex,
		EventKind:   domain.EventKindBuy.String(),
		RawArgs:     datatypes.JSON(`{"buyer":"` + ownerA + `","coordinate":{"x":5,"y":10}}`),
		Timestamp:   time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func mustCell(t *testing.T, store Store, coord domain.Coordinate) {
	t.Helper()
	err := store.UpsertCell(context.Background(), UpsertCellInput{
		Coordinate: coord,
		Owner:      ownerA,
		ContentURI: "ipfs://initial",
		Timestamp:  time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

// =============================================================================
// Test: chain events and watermark
// =============================================================================

func testChainEvents(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("max event block is absent on an empty log", func(t *testing.T) {
		_, ok, err := store.MaxEventBlock(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("duplicate tx hash and log index is ignored", func(t *testing.T) {
		inserted, err := store.InsertChainEvent(ctx, buildChainEvent("0xabc", 2000000, 0))
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = store.InsertChainEvent(ctx, buildChainEvent("0xabc", 2000000, 0))
		require.NoError(t, err)
		assert.False(t, inserted)

		inserted, err = store.InsertChainEvent(ctx, buildChainEvent("0xabc", 2000000, 1))
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("max event block follows the highest event", func(t *testing.T) {
		_, err := store.InsertChainEvent(ctx, buildChainEvent("0xdef", 2000150, 3))
		require.NoError(t, err)
		_, err = store.InsertChainEvent(ctx, buildChainEvent("0x123", 1999990, 0))
		require.NoError(t, err)

		maxBlock, ok, err := store.MaxEventBlock(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uint64(2000150), maxBlock)
	})
}

// =============================================================================
// Test: cells
// =============================================================================

func testCells(t *testing.T, store Store) {
	ctx := context.Background()
	ts := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("get missing cell returns nil", func(t *testing.T) {
		cell, err := store.GetCell(ctx, domain.Coordinate{X: 99, Y: 99})
		require.NoError(t, err)
		assert.Nil(t, cell)
	})

	t.Run("upsert overwrites owner and uri", func(t *testing.T) {
		coord := domain.Coordinate{X: 5, Y: 10}
		mustCell(t, store, coord)

		err := store.UpsertCell(ctx, UpsertCellInput{Coordinate: coord, Owner: ownerB, ContentURI: "", Timestamp: ts})
		require.NoError(t, err)

		cell, err := store.GetCell(ctx, coord)
		require.NoError(t, err)
		require.NotNil(t, cell)
		assert.Equal(t, ownerB, cell.CurrentOwner)
		assert.Equal(t, "", cell.ContentURI)
	})

	t.Run("mint upsert never blanks an existing uri", func(t *testing.T) {
		coord := domain.Coordinate{X: 6, Y: 10}
		mustCell(t, store, coord)

		err := store.UpsertCell(ctx, UpsertCellInput{
			Coordinate:          coord,
			Owner:               ownerB,
			ContentURI:          "",
			Timestamp:           ts,
			PreserveExistingURI: true,
		})
		require.NoError(t, err)

		cell, err := store.GetCell(ctx, coord)
		require.NoError(t, err)
		require.NotNil(t, cell)
		assert.Equal(t, ownerB, cell.CurrentOwner)
		assert.Equal(t, "ipfs://initial", cell.ContentURI)

		err = store.UpsertCell(ctx, UpsertCellInput{
			Coordinate:          coord,
			Owner:               ownerB,
			ContentURI:          "ipfs://fresh",
			Timestamp:           ts,
			PreserveExistingURI: true,
		})
		require.NoError(t, err)

		cell, err = store.GetCell(ctx, coord)
		require.NoError(t, err)
		assert.Equal(t, "ipfs://fresh", cell.ContentURI)
	})

	t.Run("coordinates outside the grid are rejected", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Store) error {
			return tx.UpsertCell(ctx, UpsertCellInput{Coordinate: domain.Coordinate{X: 100, Y: 0}, Owner: ownerA, Timestamp: ts})
		})
		assert.Error(t, err)
	})

	t.Run("owner update reports missing cell", func(t *testing.T) {
		updated, err := store.UpdateCellOwner(ctx, UpdateCellOwnerInput{Coordinate: domain.Coordinate{X: 42, Y: 42}, Owner: ownerB, Timestamp: ts})
		require.NoError(t, err)
		assert.False(t, updated)
	})

	t.Run("owner update on existing cell", func(t *testing.T) {
		coord := domain.Coordinate{X: 7, Y: 10}
		mustCell(t, store, coord)

		updated, err := store.UpdateCellOwner(ctx, UpdateCellOwnerInput{Coordinate: coord, Owner: ownerB, Timestamp: ts})
		require.NoError(t, err)
		assert.True(t, updated)

		cell, err := store.GetCell(ctx, coord)
		require.NoError(t, err)
		assert.Equal(t, ownerB, cell.CurrentOwner)
		assert.Equal(t, "ipfs://initial", cell.ContentURI)
	})

	t.Run("content update is conditioned on the owner", func(t *testing.T) {
		coord := domain.Coordinate{X: 8, Y: 10}
		mustCell(t, store, coord)

		updated, err := store.UpdateCellContent(ctx, UpdateCellContentInput{Coordinate: coord, Owner: ownerB, URI: "ipfs://intruder", Timestamp: ts})
		require.NoError(t, err)
		assert.False(t, updated)

		cell, err := store.GetCell(ctx, coord)
		require.NoError(t, err)
		assert.Equal(t, "ipfs://initial", cell.ContentURI)

		updated, err = store.UpdateCellContent(ctx, UpdateCellContentInput{Coordinate: coord, Owner: ownerA, URI: "ipfs://owner", Timestamp: ts})
		require.NoError(t, err)
		assert.True(t, updated)

		cell, err = store.GetCell(ctx, coord)
		require.NoError(t, err)
		assert.Equal(t, "ipfs://owner", cell.ContentURI)
	})
}

// =============================================================================
// Test: history
// =============================================================================

func testHistory(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("ownership history in chain order", func(t *testing.T) {
		coord := domain.Coordinate{X: 1, Y: 1}
		mustCell(t, store, coord)

		require.NoError(t, store.CreateOwnershipRecord(ctx, CreateOwnershipRecordInput{Coordinate: coord, Owner: ownerB, Meta: buildMeta("0x02", 2000001, 0)}))
		require.NoError(t, store.CreateOwnershipRecord(ctx, CreateOwnershipRecordInput{Coordinate: coord, Owner: ownerA, Meta: buildMeta("0x01", 2000000, 4)}))

		records, err := store.GetOwnershipRecords(ctx, coord)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, ownerA, records[0].Owner)
		assert.Equal(t, uint64(2000000), records[0].BlockNumber)
		assert.Equal(t, uint(4), records[0].LogIndex)
		assert.Equal(t, ownerB, records[1].Owner)
	})

	t.Run("history for a missing cell is a domain error and keeps the transaction usable", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Store) error {
			err := tx.CreateOwnershipRecord(ctx, CreateOwnershipRecordInput{
				Coordinate: domain.Coordinate{X: 50, Y: 50},
				Owner:      ownerA,
				Meta:       buildMeta("0x03", 2000002, 0),
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrCellNotFound))

			err = tx.CreateContentRecord(ctx, CreateContentRecordInput{
				Coordinate: domain.Coordinate{X: 50, Y: 50},
				URI:        "ipfs://orphan",
				Owner:      ownerA,
				Meta:       buildMeta("0x03", 2000002, 1),
			})
			assert.True(t, errors.Is(err, domain.ErrCellNotFound))

			// the transaction still accepts writes
			_, err = tx.InsertChainEvent(ctx, buildChainEvent("0x03", 2000002, 0))
			return err
		})
		require.NoError(t, err)

		maxBlock, ok, err := store.MaxEventBlock(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uint64(2000002), maxBlock)
	})

	t.Run("content history", func(t *testing.T) {
		coord := domain.Coordinate{X: 2, Y: 1}
		mustCell(t, store, coord)

		require.NoError(t, store.CreateContentRecord(ctx, CreateContentRecordInput{Coordinate: coord, URI: "ipfs://a", Owner: ownerB, Meta: buildMeta("0x04", 2000003, 0)}))

		records, err := store.GetContentRecords(ctx, coord)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "ipfs://a", records[0].URI)
		assert.Equal(t, ownerB, records[0].Owner)
	})
}

// =============================================================================
// Test: names
// =============================================================================

func testNamedIdentities(t *testing.T, store Store) {
	ctx := context.Background()

	identity, err := store.GetNamedIdentity(ctx, ownerA)
	require.NoError(t, err)
	assert.Nil(t, identity)

	require.NoError(t, store.UpsertNamedIdentity(ctx, ownerA, "alice"))
	require.NoError(t, store.CreateNameRecord(ctx, CreateNameRecordInput{Address: ownerA, DisplayName: "alice", Meta: buildMeta("0x10", 2000010, 0)}))
	require.NoError(t, store.UpsertNamedIdentity(ctx, ownerA, "alice2"))

	identity, err = store.GetNamedIdentity(ctx, ownerA)
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "alice2", identity.DisplayName)
}

// =============================================================================
// Test: failed ranges
// =============================================================================

func testFailedRanges(t *testing.T, store Store) {
	ctx := context.Background()
	txHash := "0xfail"
	firstBlock := uint64(2000100)

	require.NoError(t, store.CreateFailedRange(ctx, CreateFailedRangeInput{FromBlock: 2000000, ToBlock: 2000999, Reason: "rate limited"}))
	require.NoError(t, store.CreateFailedRange(ctx, CreateFailedRangeInput{
		FromBlock:        2001000,
		ToBlock:          2001999,
		Reason:           "insert failed",
		FirstTxHash:      &txHash,
		FirstBlockNumber: &firstBlock,
	}))

	ranges, err := store.GetUnresolvedFailedRanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, uint64(2000000), ranges[0].FromBlock)
	require.NotNil(t, ranges[1].FirstTxHash)
	assert.Equal(t, txHash, *ranges[1].FirstTxHash)

	assert.Equal(t, 1, ranges[0].Attempts)

	resolved, err := store.ResolveFailedRanges(ctx, 2000000, 2000999, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), resolved)

	ranges, err = store.GetUnresolvedFailedRanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, uint64(2001000), ranges[0].FromBlock)
}

func testFailedRangesRepeatedFailure(t *testing.T, store Store) {
	ctx := context.Background()

	for i, reason := range []string{"rate limited", "execution aborted", "connection reset"} {
		require.NoError(t, store.CreateFailedRange(ctx, CreateFailedRangeInput{
			FromBlock: 3000000,
			ToBlock:   3000099,
			Reason:    reason,
		}), "attempt %d", i+1)
	}

	ranges, err := store.GetUnresolvedFailedRanges(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, 3, ranges[0].Attempts)
	assert.Equal(t, "connection reset", ranges[0].Reason)

	// once resolved, a new failure of the same range opens a fresh row
	_, err = store.ResolveFailedRanges(ctx, 3000000, 3000099, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, store.CreateFailedRange(ctx, CreateFailedRangeInput{FromBlock: 3000000, ToBlock: 3000099, Reason: "rate limited"}))

	ranges, err = store.GetUnresolvedFailedRanges(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, 1, ranges[0].Attempts)
}

// =============================================================================
// Test: transactions
// =============================================================================

func testWithTx(t *testing.T, store Store) {
	ctx := context.Background()
	coord := domain.Coordinate{X: 30, Y: 30}

	err := store.WithTx(ctx, func(tx Store) error {
		mustCell(t, tx, coord)
		_, err := tx.InsertChainEvent(ctx, buildChainEvent("0xrollback", 2000500, 0))
		require.NoError(t, err)
		return errors.New("abort")
	})
	require.Error(t, err)

	cell, err := store.GetCell(ctx, coord)
	require.NoError(t, err)
	assert.Nil(t, cell)

	inserted, err := store.InsertChainEvent(ctx, buildChainEvent("0xrollback", 2000500, 0))
	require.NoError(t, err)
	assert.True(t, inserted)
}

// RunStoreTests runs all store tests against the given implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"ChainEvents", testChainEvents},
		{"Cells", testCells},
		{"History", testHistory},
		{"NamedIdentities", testNamedIdentities},
		{"FailedRanges", testFailedRanges},
		{"FailedRangesRepeatedFailure", testFailedRangesRepeatedFailure},
		{"WithTx", testWithTx},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
