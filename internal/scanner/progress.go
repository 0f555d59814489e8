package scanner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/feral-file/ff-grid-indexer/internal/logger"
	"github.com/feral-file/ff-grid-indexer/internal/metrics"
	"github.com/feral-file/ff-grid-indexer/internal/store"
)

// Tracker derives the resume watermark from the event log. It never writes.
type Tracker struct {
	store        store.Store
	genesisBlock uint64
}

// NewTracker creates a tracker that falls back to genesisBlock-1 on an empty log
func NewTracker(st store.Store, genesisBlock uint64) *Tracker {
	return &Tracker{store: st, genesisBlock: genesisBlock}
}

// ResumeBlock returns the highest block with a committed event, or genesisBlock-1
// when there is none or the query fails
func (t *Tracker) ResumeBlock(ctx context.Context) uint64 {
	resume := t.beforeGenesis()

	maxBlock, ok, err := t.store.MaxEventBlock(ctx)
	switch {
	case err != nil:
		logger.ErrorCtx(ctx, fmt.Errorf("failed to read resume block: %w", err),
			zap.Uint64("fallback_block", resume))
	case ok:
		resume = maxBlock
	}

	metrics.ResumeBlock.Set(float64(resume))
	return resume
}

func (t *Tracker) beforeGenesis() uint64 {
	if t.genesisBlock == 0 {
		return 0
	}
	return t.genesisBlock - 1
}
