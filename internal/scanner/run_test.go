package scanner_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/feral-file/ff-grid-indexer/internal/domain"
	"github.com/feral-file/ff-grid-indexer/internal/mocks"
	"github.com/feral-file/ff-grid-indexer/internal/scanner"
)

// countingScanner records the calls the daemon loop makes and stops it after a number of passes
type countingScanner struct {
	cancel       context.CancelFunc
	stopAfter    int
	runErr       error
	passes       int
	rescanLimits []int
}

func (c *countingScanner) RunOnce(ctx context.Context) (scanner.Summary, error) {
	c.passes++
	if c.passes >= c.stopAfter {
		c.cancel()
	}
	return scanner.Summary{}, c.runErr
}

func (c *countingScanner) Rescan(ctx context.Context, fromBlock, toBlock uint64) (scanner.Summary, error) {
	return scanner.Summary{}, nil
}

func (c *countingScanner) RescanFailed(ctx context.Context, limit int) (scanner.Summary, error) {
	c.rescanLimits = append(c.rescanLimits, limit)
	return scanner.Summary{}, nil
}

func (c *countingScanner) Status() scanner.Status {
	return scanner.Status{}
}

func runLoop(t *testing.T, s *countingScanner, cfg scanner.RunConfig) {
	t.Helper()

	ctrl := gomock.NewController(t)
	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().NewTicker(cfg.Interval).Return(time.NewTicker(time.Millisecond)).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.cancel = cancel

	done := make(chan struct{})
	go func() {
		scanner.Run(ctx, s, clock, cfg)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run loop did not stop after cancellation")
	}
}

func TestRun_RetriesFailedRangesAfterCleanPass(t *testing.T) {
	s := &countingScanner{stopAfter: 3}

	runLoop(t, s, scanner.RunConfig{Interval: 30 * time.Second, RescanFailedLimit: 5})

	assert.Equal(t, 3, s.passes)
	// the third pass cancels the loop before its retry
	assert.Equal(t, []int{5, 5}, s.rescanLimits)
}

func TestRun_SkipsRetryAfterFailedPass(t *testing.T) {
	s := &countingScanner{stopAfter: 2, runErr: domain.ErrFailoverExhausted}

	runLoop(t, s, scanner.RunConfig{Interval: 30 * time.Second, RescanFailedLimit: 5})

	assert.Equal(t, 2, s.passes)
	assert.Empty(t, s.rescanLimits)
}

func TestRun_RetryDisabled(t *testing.T) {
	s := &countingScanner{stopAfter: 2}

	runLoop(t, s, scanner.RunConfig{Interval: 30 * time.Second})

	assert.Equal(t, 2, s.passes)
	assert.Empty(t, s.rescanLimits)
}

func TestRun_ConcurrentPassSkipsTick(t *testing.T) {
	s := &countingScanner{stopAfter: 2, runErr: domain.ErrScanInProgress}

	runLoop(t, s, scanner.RunConfig{Interval: 30 * time.Second, RescanFailedLimit: 5})

	assert.Equal(t, 2, s.passes)
	assert.Empty(t, s.rescanLimits)
}
