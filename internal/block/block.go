package block

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/feral-file/ff-grid-indexer/internal/adapter"
	"github.com/feral-file/ff-grid-indexer/internal/logger"
)

// HeadInfo is the cached chain head
type HeadInfo struct {
	Number    uint64
	FetchedAt time.Time
}

// cachedTimestamp is a cached block timestamp
type cachedTimestamp struct {
	Timestamp time.Time
	CachedAt  time.Time
}

// BlockProvider gives cached access to the chain head and to block timestamps.
// A scan pass asks for the timestamp of every block that carries an event, and many
// events share a block, so the cache keeps the RPC volume per pass at one call per block.
//
//go:generate mockgen -source=block.go -destination=../mocks/block_provider.go -package=mocks -mock_names=BlockProvider=MockBlockProvider,BlockFetcher=MockBlockFetcher
type BlockProvider interface {
	// GetLatestBlock returns the latest block number, potentially from cache
	GetLatestBlock(ctx context.Context) (uint64, error)

	// GetBlockTimestamp returns the timestamp for a given block number, potentially from cache
	GetBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)

	// GetBlockTimestamps resolves the timestamps of several blocks with bounded parallelism.
	// Blocks that could not be resolved are missing from the map and reported in the error.
	GetBlockTimestamps(ctx context.Context, blockNumbers []uint64) (map[uint64]time.Time, error)

	// Close releases the worker pool
	Close()
}

// BlockFetcher fetches block information from the chain
type BlockFetcher interface {
	// FetchLatestBlock fetches the latest block number
	FetchLatestBlock(ctx context.Context) (uint64, error)

	// FetchBlockTimestamp fetches the timestamp for a given block number
	FetchBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)
}

// Config holds configuration for the BlockProvider
type Config struct {
	// TTL is how long to cache the head block number
	TTL time.Duration

	// StaleWindow is how long cached data may be served when a fetch fails
	StaleWindow time.Duration

	// BlockTimestampTTL is how long to cache block timestamps; 0 caches forever
	BlockTimestampTTL time.Duration

	// MaxCachedTimestamps bounds the timestamp cache; 0 means unbounded
	MaxCachedTimestamps int

	// Concurrency bounds parallel timestamp fetches in GetBlockTimestamps
	Concurrency int
}

// blockProvider implements BlockProvider with TTL-based caching
type blockProvider struct {
	fetcher BlockFetcher
	config  Config
	clock   adapter.Clock
	workers pond.Pool

	mu         sync.RWMutex
	head       *HeadInfo
	timestamps map[uint64]*cachedTimestamp
}

// NewBlockProvider creates a new BlockProvider with caching
func NewBlockProvider(fetcher BlockFetcher, config Config, clock adapter.Clock) BlockProvider {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &blockProvider{
		fetcher:    fetcher,
		config:     config,
		clock:      clock,
		workers:    pond.NewPool(config.Concurrency),
		timestamps: make(map[uint64]*cachedTimestamp),
	}
}

// GetLatestBlock returns the latest block number, using cache if valid
func (p *blockProvider) GetLatestBlock(ctx context.Context) (uint64, error) {
	p.mu.RLock()
	cached := p.head
	p.mu.RUnlock()

	now := p.clock.Now()

	if cached != nil && now.Sub(cached.FetchedAt) < p.config.TTL {
		logger.DebugCtx(ctx, "Using cached block number", zap.Uint64("block_number", cached.Number))
		return cached.Number, nil
	}

	blockNumber, err := p.fetcher.FetchLatestBlock(ctx)
	if err != nil {
		if cached != nil && now.Sub(cached.FetchedAt) < p.config.StaleWindow {
			logger.WarnCtx(ctx, "Using stale block number", zap.Uint64("block_number", cached.Number), zap.Error(err))
			return cached.Number, nil
		}
		return 0, fmt.Errorf("failed to fetch latest block and no valid cache available: %w", err)
	}

	p.mu.Lock()
	p.head = &HeadInfo{Number: blockNumber, FetchedAt: now}
	p.mu.Unlock()

	return blockNumber, nil
}

// GetBlockTimestamp returns the timestamp for a given block number, using cache if valid
func (p *blockProvider) GetBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	p.mu.RLock()
	cached := p.timestamps[blockNumber]
	p.mu.RUnlock()

	now := p.clock.Now()

	if cached != nil && (p.config.BlockTimestampTTL == 0 || now.Sub(cached.CachedAt) < p.config.BlockTimestampTTL) {
		return cached.Timestamp, nil
	}

	timestamp, err := p.fetcher.FetchBlockTimestamp(ctx, blockNumber)
	if err != nil {
		if cached != nil && now.Sub(cached.CachedAt) < p.config.StaleWindow {
			logger.WarnCtx(ctx, "Using stale block timestamp",
				zap.Uint64("block_number", blockNumber),
				zap.Time("timestamp", cached.Timestamp),
				zap.Error(err))
			return cached.Timestamp, nil
		}
		return time.Time{}, fmt.Errorf("failed to fetch block timestamp for block %d and no valid cache available: %w", blockNumber, err)
	}

	p.mu.Lock()
	p.timestamps[blockNumber] = &cachedTimestamp{Timestamp: timestamp, CachedAt: now}
	p.evictLocked(blockNumber)
	p.mu.Unlock()

	return timestamp, nil
}

// GetBlockTimestamps resolves the timestamps of several blocks on the worker pool
func (p *blockProvider) GetBlockTimestamps(ctx context.Context, blockNumbers []uint64) (map[uint64]time.Time, error) {
	var (
		mu      sync.Mutex
		results = make(map[uint64]time.Time, len(blockNumbers))
		errs    []error
	)

	group := p.workers.NewGroup()
	seen := make(map[uint64]struct{}, len(blockNumbers))
	for _, n := range blockNumbers {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}

		group.Submit(func() {
			ts, err := p.GetBlockTimestamp(ctx, n)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			results[n] = ts
		})
	}
	if err := group.Wait(); err != nil {
		errs = append(errs, err)
	}

	return results, errors.Join(errs...)
}

// Close stops the worker pool after queued lookups finish
func (p *blockProvider) Close() {
	p.workers.StopAndWait()
}

// evictLocked keeps the timestamp cache bounded. Scans move forward, so entries
// below the block just cached are dropped first.
func (p *blockProvider) evictLocked(latest uint64) {
	if p.config.MaxCachedTimestamps <= 0 || len(p.timestamps) <= p.config.MaxCachedTimestamps {
		return
	}
	for n := range p.timestamps {
		if n < latest {
			delete(p.timestamps, n)
		}
	}
}
