package scanner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/ff-grid-indexer/internal/adapter"
	"github.com/feral-file/ff-grid-indexer/internal/domain"
	"github.com/feral-file/ff-grid-indexer/internal/logger"
)

// RunConfig controls the daemon loop
type RunConfig struct {
	Interval time.Duration
	// RescanFailedLimit is how many failed ranges are retried after a clean pass; 0 disables
	RescanFailedLimit int
}

// Run runs a pass immediately and then once per interval until ctx is canceled
func Run(ctx context.Context, s Scanner, clock adapter.Clock, cfg RunConfig) {
	ticker := clock.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		tick(ctx, s, cfg.RescanFailedLimit)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// tick runs one pass and, when it ended cleanly, retries the oldest failed ranges.
// Failed passes are logged by the scanner itself.
func tick(ctx context.Context, s Scanner, rescanLimit int) {
	_, err := s.RunOnce(ctx)
	if errors.Is(err, domain.ErrScanInProgress) {
		logger.WarnCtx(ctx, "Previous scan pass still running, skipping tick")
		return
	}
	if err != nil || rescanLimit <= 0 || ctx.Err() != nil {
		return
	}

	if _, err := s.RescanFailed(ctx, rescanLimit); errors.Is(err, domain.ErrScanInProgress) {
		logger.WarnCtx(ctx, "Scan pass still running, skipping failed range retry",
			zap.Int("limit", rescanLimit))
	}
}
