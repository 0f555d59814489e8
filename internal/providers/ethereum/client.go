package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/feral-file/ff-grid-indexer/internal/adapter"
	"github.com/feral-file/ff-grid-indexer/internal/domain"
)

// ChainClient is the set of chain reads the indexer makes. Every call goes through
// the provider pool, so it is retried and rotated across endpoints.
//
//go:generate mockgen -source=client.go -destination=../../mocks/chain_client.go -package=mocks -mock_names=ChainClient=MockChainClient
type ChainClient interface {
	// HeadBlock returns the latest block number
	HeadBlock(ctx context.Context) (uint64, error)

	// BlockTimestamp returns the timestamp of a block
	BlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)

	// FilterLogs returns the contract logs in the inclusive block range, in provider order
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error)

	// ContentURI reads the content URI of a cell from the contract
	ContentURI(ctx context.Context, coord domain.Coordinate) (string, error)
}

type chainClient struct {
	pool     *Pool
	contract common.Address
	abi      abi.ABI
	clock    adapter.Clock
}

// NewChainClient creates a chain client for the grid contract at contractAddress
func NewChainClient(pool *Pool, contractAddress string, clock adapter.Clock) (ChainClient, error) {
	if !domain.IsValidAddress(contractAddress) {
		return nil, fmt.Errorf("%w: contract %q", domain.ErrInvalidAddress, contractAddress)
	}
	parsed, err := ContractABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	return &chainClient{
		pool:     pool,
		contract: common.HexToAddress(contractAddress),
		abi:      parsed,
		clock:    clock,
	}, nil
}

// HeadBlock returns the latest block number
func (c *chainClient) HeadBlock(ctx context.Context) (uint64, error) {
	return ExecuteWithFailover(ctx, c.pool, "head_block", func(ctx context.Context, client adapter.EthClient) (uint64, error) {
		header, err := client.HeaderByNumber(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to get latest block: %w", err)
		}
		return header.Number.Uint64(), nil
	})
}

// BlockTimestamp returns the timestamp of a block
func (c *chainClient) BlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	return ExecuteWithFailover(ctx, c.pool, "block_timestamp", func(ctx context.Context, client adapter.EthClient) (time.Time, error) {
		header, err := client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to get block %d: %w", blockNumber, err)
		}
		return c.clock.Unix(int64(header.Time), 0), nil //nolint:gosec,G115
	})
}

// FilterLogs returns the contract logs in [fromBlock, toBlock]
func (c *chainClient) FilterLogs(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.contract},
	}
	return ExecuteWithFailover(ctx, c.pool, "filter_logs", func(ctx context.Context, client adapter.EthClient) ([]types.Log, error) {
		logs, err := client.FilterLogs(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to filter logs for range %d-%d: %w", fromBlock, toBlock, err)
		}
		return logs, nil
	})
}

// ContentURI calls getBlockURI(x, y) on the contract
func (c *chainClient) ContentURI(ctx context.Context, coord domain.Coordinate) (string, error) {
	input, err := c.abi.Pack(methodGetBlockURI, big.NewInt(int64(coord.X)), big.NewInt(int64(coord.Y)))
	if err != nil {
		return "", fmt.Errorf("failed to pack %s call: %w", methodGetBlockURI, err)
	}
	msg := ethereum.CallMsg{To: &c.contract, Data: input}

	output, err := ExecuteWithFailover(ctx, c.pool, "content_uri", func(ctx context.Context, client adapter.EthClient) ([]byte, error) {
		return client.CallContract(ctx, msg, nil)
	})
	if err != nil {
		return "", fmt.Errorf("failed to read content uri of %s: %w", coord, err)
	}

	values, err := c.abi.Unpack(methodGetBlockURI, output)
	if err != nil {
		return "", fmt.Errorf("failed to unpack %s result: %w", methodGetBlockURI, err)
	}
	if len(values) != 1 {
		return "", fmt.Errorf("unexpected %s result count: %d", methodGetBlockURI, len(values))
	}
	uri, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected %s result type %T", methodGetBlockURI, values[0])
	}
	return uri, nil
}
