package block_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-grid-indexer/internal/block"
	"github.com/feral-file/ff-grid-indexer/internal/logger"
	"github.com/feral-file/ff-grid-indexer/internal/mocks"
)

func TestMain(m *testing.M) {
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// testBlockProviderMocks contains all the mocks needed for testing the block provider
type testBlockProviderMocks struct {
	ctrl     *gomock.Controller
	fetcher  *mocks.MockBlockFetcher
	clock    *mocks.MockClock
	provider block.BlockProvider
}

// setupTest creates all the mocks and the block provider for testing
func setupTest(t *testing.T, cfg block.Config) *testBlockProviderMocks {
	ctrl := gomock.NewController(t)

	mockFetcher := mocks.NewMockBlockFetcher(ctrl)
	mockClock := mocks.NewMockClock(ctrl)

	provider := block.NewBlockProvider(mockFetcher, cfg, mockClock)
	t.Cleanup(provider.Close)

	return &testBlockProviderMocks{
		ctrl:     ctrl,
		fetcher:  mockFetcher,
		clock:    mockClock,
		provider: provider,
	}
}

func defaultConfig() block.Config {
	return block.Config{
		TTL:               10 * time.Second,
		StaleWindow:       2 * time.Minute,
		BlockTimestampTTL: 0,
		Concurrency:       4,
	}
}

func TestBlockProvider_GetLatestBlock_UsesCache_WithinTTL(t *testing.T) {
	tm := setupTest(t, defaultConfig())

	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tm.clock.EXPECT().Now().Return(now)
	tm.fetcher.EXPECT().FetchLatestBlock(ctx).Return(uint64(1954900), nil)

	first, err := tm.provider.GetLatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1954900), first)

	tm.clock.EXPECT().Now().Return(now.Add(5 * time.Second))

	second, err := tm.provider.GetLatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1954900), second)
}

func TestBlockProvider_GetLatestBlock_RefreshesCache_AfterTTL(t *testing.T) {
	tm := setupTest(t, defaultConfig())

	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tm.clock.EXPECT().Now().Return(now)
	tm.fetcher.EXPECT().FetchLatestBlock(ctx).Return(uint64(1000), nil)
	_, err := tm.provider.GetLatestBlock(ctx)
	require.NoError(t, err)

	tm.clock.EXPECT().Now().Return(now.Add(15 * time.Second))
	tm.fetcher.EXPECT().FetchLatestBlock(ctx).Return(uint64(1100), nil)

	blockNum, err := tm.provider.GetLatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1100), blockNum)
}

func TestBlockProvider_GetLatestBlock_StaleCache(t *testing.T) {
	tests := []struct {
		name      string
		elapsed   time.Duration
		expectErr bool
	}{
		{name: "within stale window", elapsed: 30 * time.Second},
		{name: "beyond stale window", elapsed: 3 * time.Minute, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := setupTest(t, defaultConfig())

			ctx := context.Background()
			now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

			tm.clock.EXPECT().Now().Return(now)
			tm.fetcher.EXPECT().FetchLatestBlock(ctx).Return(uint64(1000), nil)
			_, err := tm.provider.GetLatestBlock(ctx)
			require.NoError(t, err)

			tm.clock.EXPECT().Now().Return(now.Add(tt.elapsed))
			tm.fetcher.EXPECT().FetchLatestBlock(ctx).Return(uint64(0), errors.New("429 too many requests"))

			blockNum, err := tm.provider.GetLatestBlock(ctx)
			if tt.expectErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "no valid cache available")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint64(1000), blockNum)
		})
	}
}

func TestBlockProvider_GetBlockTimestamp_CachesForever_WithZeroTTL(t *testing.T) {
	tm := setupTest(t, defaultConfig())

	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	blockTime := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	tm.clock.EXPECT().Now().Return(now)
	tm.fetcher.EXPECT().FetchBlockTimestamp(ctx, uint64(1954821)).Return(blockTime, nil)

	ts, err := tm.provider.GetBlockTimestamp(ctx, 1954821)
	require.NoError(t, err)
	assert.Equal(t, blockTime, ts)

	tm.clock.EXPECT().Now().Return(now.Add(24 * time.Hour))

	ts, err = tm.provider.GetBlockTimestamp(ctx, 1954821)
	require.NoError(t, err)
	assert.Equal(t, blockTime, ts)
}

func TestBlockProvider_GetBlockTimestamp_ReturnsError_WhenNoCache_AndFetchFails(t *testing.T) {
	tm := setupTest(t, defaultConfig())

	ctx := context.Background()
	tm.clock.EXPECT().Now().Return(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	tm.fetcher.EXPECT().FetchBlockTimestamp(ctx, uint64(42)).Return(time.Time{}, errors.New("connection refused"))

	ts, err := tm.provider.GetBlockTimestamp(ctx, 42)
	require.Error(t, err)
	assert.True(t, ts.IsZero())
	assert.Contains(t, err.Error(), "block 42")
}

func TestBlockProvider_GetBlockTimestamps_DeduplicatesAndCollectsFailures(t *testing.T) {
	tm := setupTest(t, defaultConfig())

	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t100 := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	t101 := t100.Add(12 * time.Second)

	tm.clock.EXPECT().Now().Return(now).AnyTimes()
	tm.fetcher.EXPECT().FetchBlockTimestamp(gomock.Any(), uint64(100)).Return(t100, nil).Times(1)
	tm.fetcher.EXPECT().FetchBlockTimestamp(gomock.Any(), uint64(101)).Return(t101, nil).Times(1)
	tm.fetcher.EXPECT().FetchBlockTimestamp(gomock.Any(), uint64(102)).Return(time.Time{}, errors.New("503 service unavailable")).Times(1)

	results, err := tm.provider.GetBlockTimestamps(ctx, []uint64{100, 101, 100, 102, 101})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block 102")

	assert.Len(t, results, 2)
	assert.Equal(t, t100, results[100])
	assert.Equal(t, t101, results[101])
	_, ok := results[102]
	assert.False(t, ok)
}

func TestBlockProvider_GetBlockTimestamps_Empty(t *testing.T) {
	tm := setupTest(t, defaultConfig())

	results, err := tm.provider.GetBlockTimestamps(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBlockProvider_GetBlockTimestamp_EvictsOlderBlocks(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxCachedTimestamps = 2
	tm := setupTest(t, cfg)

	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	blockTime := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	tm.clock.EXPECT().Now().Return(now).AnyTimes()
	for _, n := range []uint64{1, 2, 3} {
		tm.fetcher.EXPECT().FetchBlockTimestamp(ctx, n).Return(blockTime, nil)
		_, err := tm.provider.GetBlockTimestamp(ctx, n)
		require.NoError(t, err)
	}

	// block 1 was evicted when block 3 pushed the cache over its bound
	tm.fetcher.EXPECT().FetchBlockTimestamp(ctx, uint64(1)).Return(blockTime, nil)
	_, err := tm.provider.GetBlockTimestamp(ctx, 1)
	require.NoError(t, err)

	// block 3 is still cached
	_, err = tm.provider.GetBlockTimestamp(ctx, 3)
	require.NoError(t, err)
}
