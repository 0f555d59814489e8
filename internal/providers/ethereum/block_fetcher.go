package ethereum

import (
	"context"
	"time"

	"github.com/feral-file/ff-grid-indexer/internal/block"
)

// chainBlockFetcher implements block.BlockFetcher over the pooled chain client
type chainBlockFetcher struct {
	client ChainClient
}

// NewBlockFetcher creates a block.BlockFetcher backed by the chain client
func NewBlockFetcher(client ChainClient) block.BlockFetcher {
	return &chainBlockFetcher{client: client}
}

// FetchLatestBlock fetches the latest block number
func (f *chainBlockFetcher) FetchLatestBlock(ctx context.Context) (uint64, error) {
	return f.client.HeadBlock(ctx)
}

// FetchBlockTimestamp fetches the timestamp of a block
func (f *chainBlockFetcher) FetchBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	return f.client.BlockTimestamp(ctx, blockNumber)
}
