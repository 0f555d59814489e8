package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-grid-indexer/internal/adapter"
	"github.com/feral-file/ff-grid-indexer/internal/block"
	"github.com/feral-file/ff-grid-indexer/internal/domain"
	"github.com/feral-file/ff-grid-indexer/internal/logger"
	"github.com/feral-file/ff-grid-indexer/internal/messaging"
	"github.com/feral-file/ff-grid-indexer/internal/metrics"
	"github.com/feral-file/ff-grid-indexer/internal/mutator"
	"github.com/feral-file/ff-grid-indexer/internal/store"
	"github.com/feral-file/ff-grid-indexer/internal/store/schema"
)

// LogFetcher returns the contract logs of an inclusive block range
type LogFetcher interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error)
}

// EventDecoder turns a raw log into a decoded event
type EventDecoder interface {
	Decode(vLog types.Log) domain.DecodedLog
}

// Config holds the scan loop configuration
type Config struct {
	// GenesisBlock is the first block scanned on an empty event log
	GenesisBlock uint64
	// BatchSize is the number of blocks per sub-range
	BatchSize uint64
}

// Summary describes one scan pass
type Summary struct {
	PassID          string `json:"pass_id"`
	From            uint64 `json:"from"`
	To              uint64 `json:"to"`
	Head            uint64 `json:"head"`
	RangesScanned   int    `json:"ranges_scanned"`
	RangesCommitted int    `json:"ranges_committed"`
	RangesFailed    int    `json:"ranges_failed"`
	EventsApplied   int    `json:"events_applied"`
	EventsSkipped   int    `json:"events_skipped"`
}

// Status is the outcome of the most recent pass
type Status struct {
	Running     bool      `json:"running"`
	LastPassAt  time.Time `json:"last_pass_at"`
	LastSummary Summary   `json:"last_summary"`
	LastError   string    `json:"last_error,omitempty"`
}

// Scanner ingests contract events into the store, one block sub-range per transaction
type Scanner interface {
	// RunOnce scans from the resume watermark up to the chain head.
	// It returns domain.ErrScanInProgress when another pass is running.
	RunOnce(ctx context.Context) (Summary, error)

	// Rescan re-processes [fromBlock, toBlock] and resolves the failed ranges it covers
	Rescan(ctx context.Context, fromBlock, toBlock uint64) (Summary, error)

	// RescanFailed rescans up to limit unresolved failed ranges, oldest first.
	// With nothing to rescan it returns an empty summary and leaves Status untouched.
	RescanFailed(ctx context.Context, limit int) (Summary, error)

	// Status returns the outcome of the most recent pass
	Status() Status
}

type scanner struct {
	logs      LogFetcher
	blocks    block.BlockProvider
	decoder   EventDecoder
	applier   mutator.EventApplier
	store     store.Store
	tracker   *Tracker
	publisher messaging.Publisher
	json      adapter.JSON
	config    Config
	clock     adapter.Clock

	running atomic.Bool

	mu     sync.Mutex
	status Status
}

// NewScanner creates a scanner. A nil publisher disables change notifications.
func NewScanner(
	logs LogFetcher,
	blocks block.BlockProvider,
	decoder EventDecoder,
	applier mutator.EventApplier,
	st store.Store,
	publisher messaging.Publisher,
	jsonAdapter adapter.JSON,
	cfg Config,
	clock adapter.Clock,
) Scanner {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1
	}
	return &scanner{
		logs:      logs,
		blocks:    blocks,
		decoder:   decoder,
		applier:   applier,
		store:     st,
		tracker:   NewTracker(st, cfg.GenesisBlock),
		publisher: publisher,
		json:      jsonAdapter,
		config:    cfg,
		clock:     clock,
	}
}

// RunOnce scans from the resume watermark up to the chain head
func (s *scanner) RunOnce(ctx context.Context) (Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Summary{}, domain.ErrScanInProgress
	}
	defer s.running.Store(false)

	summary := Summary{PassID: uuid.NewString()}
	ctx = logger.WithFields(ctx, zap.String("pass_id", summary.PassID))
	started := s.clock.Now()

	err := s.runOnce(ctx, &summary)
	s.finish(ctx, started, summary, err)
	return summary, err
}

func (s *scanner) runOnce(ctx context.Context, summary *Summary) error {
	head, err := s.blocks.GetLatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("failed to get head block: %w", err)
	}
	metrics.ChainHeadBlock.Set(float64(head))

	resume := s.tracker.ResumeBlock(ctx)
	summary.Head = head
	summary.From = resume + 1
	summary.To = head

	if resume >= head {
		logger.DebugCtx(ctx, "Scanner is up to date",
			zap.Uint64("resume_block", resume),
			zap.Uint64("head_block", head))
		return nil
	}

	logger.InfoCtx(ctx, "Starting scan pass",
		zap.Uint64("from_block", summary.From),
		zap.Uint64("to_block", head))

	return s.scanRange(ctx, summary.From, head, summary)
}

// Rescan re-processes an explicit block range
func (s *scanner) Rescan(ctx context.Context, fromBlock, toBlock uint64) (Summary, error) {
	if fromBlock > toBlock {
		return Summary{}, fmt.Errorf("invalid rescan range %d-%d", fromBlock, toBlock)
	}
	if !s.running.CompareAndSwap(false, true) {
		return Summary{}, domain.ErrScanInProgress
	}
	defer s.running.Store(false)

	summary := Summary{PassID: uuid.NewString(), From: fromBlock, To: toBlock}
	ctx = logger.WithFields(ctx, zap.String("pass_id", summary.PassID))
	started := s.clock.Now()

	logger.InfoCtx(ctx, "Starting rescan",
		zap.Uint64("from_block", fromBlock),
		zap.Uint64("to_block", toBlock))

	err := s.rescan(ctx, fromBlock, toBlock, &summary)
	s.finish(ctx, started, summary, err)
	return summary, err
}

// RescanFailed rescans the oldest unresolved failed ranges
func (s *scanner) RescanFailed(ctx context.Context, limit int) (Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Summary{}, domain.ErrScanInProgress
	}
	defer s.running.Store(false)

	summary := Summary{PassID: uuid.NewString()}
	ctx = logger.WithFields(ctx, zap.String("pass_id", summary.PassID))
	started := s.clock.Now()

	ranges, err := s.store.GetUnresolvedFailedRanges(ctx, limit)
	if err != nil {
		err = fmt.Errorf("failed to list failed ranges: %w", err)
		s.finish(ctx, started, summary, err)
		return summary, err
	}
	if len(ranges) == 0 {
		return summary, nil
	}

	// ranges come ordered by from_block; one already rescanned in this call may cover later ones
	var scanned []schema.FailedRange
	for _, r := range ranges {
		if covered(scanned, r) {
			logger.DebugCtx(ctx, "Failed range covered by an earlier rescan",
				zap.Uint64("from_block", r.FromBlock),
				zap.Uint64("to_block", r.ToBlock))
			continue
		}
		scanned = append(scanned, r)

		if len(scanned) == 1 || r.FromBlock < summary.From {
			summary.From = r.FromBlock
		}
		if r.ToBlock > summary.To {
			summary.To = r.ToBlock
		}

		if err = s.rescan(ctx, r.FromBlock, r.ToBlock, &summary); err != nil {
			if errors.Is(err, domain.ErrFailoverExhausted) || ctx.Err() != nil {
				break
			}
			// the range was recorded again; move on to the next one
			err = nil
		}
	}

	s.finish(ctx, started, summary, err)
	return summary, err
}

func covered(scanned []schema.FailedRange, r schema.FailedRange) bool {
	for _, prev := range scanned {
		if prev.FromBlock <= r.FromBlock && r.ToBlock <= prev.ToBlock {
			return true
		}
	}
	return false
}

func (s *scanner) rescan(ctx context.Context, fromBlock, toBlock uint64, summary *Summary) error {
	failedBefore := summary.RangesFailed
	if err := s.scanRange(ctx, fromBlock, toBlock, summary); err != nil {
		return err
	}
	if summary.RangesFailed > failedBefore {
		return fmt.Errorf("rescan of %d-%d left %d failed sub-ranges",
			fromBlock, toBlock, summary.RangesFailed-failedBefore)
	}

	resolved, err := s.store.ResolveFailedRanges(ctx, fromBlock, toBlock, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to resolve failed ranges: %w", err)
	}
	if resolved > 0 {
		logger.InfoCtx(ctx, "Resolved failed ranges",
			zap.Uint64("from_block", fromBlock),
			zap.Uint64("to_block", toBlock),
			zap.Int64("resolved", resolved))
	}
	return nil
}

// scanRange walks [fromBlock, toBlock] in sub-ranges of BatchSize blocks, strictly in order.
// A sub-range that cannot be fetched or applied is recorded and skipped; an exhausted
// provider pool or a cancelled context stops the walk.
func (s *scanner) scanRange(ctx context.Context, fromBlock, toBlock uint64, summary *Summary) error {
	for start := fromBlock; ; {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := toBlock
		if toBlock-start >= s.config.BatchSize {
			end = start + s.config.BatchSize - 1
		}

		summary.RangesScanned++
		err := s.processRange(ctx, start, end, summary)
		if err != nil {
			summary.RangesFailed++
			if errors.Is(err, domain.ErrFailoverExhausted) {
				logger.ErrorCtx(ctx, fmt.Errorf("aborting scan pass: %w", err),
					zap.Uint64("from_block", start),
					zap.Uint64("to_block", end))
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
		}

		if end >= toBlock {
			return nil
		}
		start = end + 1
	}
}

// processRange fetches, decodes and applies one sub-range inside one transaction
func (s *scanner) processRange(ctx context.Context, fromBlock, toBlock uint64, summary *Summary) error {
	rangeFields := []zap.Field{zap.Uint64("from_block", fromBlock), zap.Uint64("to_block", toBlock)}

	logs, err := s.logs.FilterLogs(ctx, fromBlock, toBlock)
	if err != nil {
		metrics.RangesTotal.WithLabelValues("fetch_failed").Inc()
		logger.ErrorCtx(ctx, fmt.Errorf("failed to fetch logs: %w", err), rangeFields...)
		s.recordFailure(ctx, fromBlock, toBlock, err, nil)
		return err
	}

	if len(logs) == 0 {
		metrics.RangesTotal.WithLabelValues("empty").Inc()
		return nil
	}

	timestamps := s.resolveTimestamps(ctx, logs)
	decoded := make([]domain.DecodedLog, len(logs))
	for i, vLog := range logs {
		d := s.decoder.Decode(vLog)
		d.Meta.Timestamp = timestamps[vLog.BlockNumber]
		if d.Err != nil {
			logger.WarnCtx(ctx, "Event could not be decoded",
				zap.String("tx_hash", d.Meta.TxHash),
				zap.Uint64("block_number", d.Meta.BlockNumber),
				zap.Uint("log_index", d.Meta.LogIndex),
				zap.Error(d.Err))
		}
		decoded[i] = d
	}

	var (
		effect   mutator.Effect
		outcomes []eventOutcome
	)
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		effect = mutator.Effect{}
		outcomes = outcomes[:0]

		for _, d := range decoded {
			outcome, e, err := s.applyEvent(ctx, tx, d)
			if err != nil {
				return err
			}
			effect.Merge(e)
			outcomes = append(outcomes, outcome)
		}
		return nil
	})
	if err != nil {
		metrics.RangesTotal.WithLabelValues("rolled_back").Inc()
		first := decoded[0].Meta
		logger.ErrorCtx(ctx, fmt.Errorf("sub-range rolled back: %w", err), append(rangeFields,
			zap.String("first_tx_hash", first.TxHash),
			zap.Uint64("first_block_number", first.BlockNumber))...)
		s.recordFailure(ctx, fromBlock, toBlock, err, &first)
		return err
	}

	metrics.RangesTotal.WithLabelValues("committed").Inc()
	summary.RangesCommitted++
	for _, o := range outcomes {
		metrics.EventsTotal.WithLabelValues(o.kind.String(), o.result).Inc()
		if o.result == outcomeApplied {
			summary.EventsApplied++
		} else {
			summary.EventsSkipped++
		}
	}

	logger.InfoCtx(ctx, "Committed sub-range", append(rangeFields,
		zap.Int("events", len(decoded)),
		zap.Int("cells_touched", len(effect.Cells)))...)

	s.publish(ctx, fromBlock, toBlock, summary.PassID, effect)
	return nil
}

const (
	outcomeApplied   = "applied"
	outcomeDuplicate = "duplicate"
	outcomeSkipped   = "skipped"
)

type eventOutcome struct {
	kind   domain.EventKind
	result string
}

// applyEvent appends the raw event and, when it was not seen before, applies it
func (s *scanner) applyEvent(ctx context.Context, tx store.Store, d domain.DecodedLog) (eventOutcome, mutator.Effect, error) {
	outcome := eventOutcome{kind: d.Kind}

	rawArgs, err := s.rawArgs(d)
	if err != nil {
		return outcome, mutator.Effect{}, fmt.Errorf("failed to encode event %s/%d: %w", d.Meta.TxHash, d.Meta.LogIndex, err)
	}

	inserted, err := tx.InsertChainEvent(ctx, store.CreateChainEventInput{
		BlockNumber: d.Meta.BlockNumber,
		TxHash:      d.Meta.TxHash,
		LogIndex:    d.Meta.LogIndex,
		EventKind:   d.Kind.String(),
		RawArgs:     rawArgs,
		Timestamp:   d.Meta.Timestamp,
	})
	if err != nil {
		return outcome, mutator.Effect{}, fmt.Errorf("failed to insert event %s/%d: %w", d.Meta.TxHash, d.Meta.LogIndex, err)
	}
	if !inserted {
		logger.DebugCtx(ctx, "Event already ingested",
			zap.String("tx_hash", d.Meta.TxHash),
			zap.Uint("log_index", d.Meta.LogIndex))
		outcome.result = outcomeDuplicate
		return outcome, mutator.Effect{}, nil
	}

	effect, err := s.applier.Apply(ctx, tx, d)
	if err != nil {
		return outcome, mutator.Effect{}, fmt.Errorf("failed to apply %s event %s/%d: %w", d.Kind, d.Meta.TxHash, d.Meta.LogIndex, err)
	}

	outcome.result = outcomeApplied
	if !d.OK() {
		outcome.result = outcomeSkipped
	}
	return outcome, effect, nil
}

// rawArgs encodes the decoded event, or the raw log and the decode error
func (s *scanner) rawArgs(d domain.DecodedLog) (datatypes.JSON, error) {
	var payload any = d.Event
	if !d.OK() {
		payload = struct {
			Raw   domain.RawLog `json:"raw"`
			Error string        `json:"error"`
		}{Raw: d.Raw, Error: d.Err.Error()}
	}

	data, err := s.json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// resolveTimestamps returns the timestamp of every distinct block of logs.
// Blocks that cannot be resolved get the current time.
func (s *scanner) resolveTimestamps(ctx context.Context, logs []types.Log) map[uint64]time.Time {
	blockNumbers := make([]uint64, 0, len(logs))
	seen := make(map[uint64]struct{}, len(logs))
	for _, vLog := range logs {
		if _, ok := seen[vLog.BlockNumber]; ok {
			continue
		}
		seen[vLog.BlockNumber] = struct{}{}
		blockNumbers = append(blockNumbers, vLog.BlockNumber)
	}

	timestamps, err := s.blocks.GetBlockTimestamps(ctx, blockNumbers)
	if timestamps == nil {
		timestamps = make(map[uint64]time.Time, len(blockNumbers))
	}
	if err != nil {
		logger.WarnCtx(ctx, "Some block timestamps unavailable, using current time", zap.Error(err))
	}

	now := s.clock.Now()
	for _, n := range blockNumbers {
		if _, ok := timestamps[n]; !ok {
			timestamps[n] = now
		}
	}
	return timestamps
}

// recordFailure persists a failed sub-range outside the rolled back transaction
func (s *scanner) recordFailure(ctx context.Context, fromBlock, toBlock uint64, cause error, first *domain.EventMeta) {
	if ctx.Err() != nil {
		return
	}

	input := store.CreateFailedRangeInput{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Reason:    cause.Error(),
	}
	if first != nil {
		txHash, blockNumber := first.TxHash, first.BlockNumber
		input.FirstTxHash = &txHash
		input.FirstBlockNumber = &blockNumber
	}

	if err := s.store.CreateFailedRange(ctx, input); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to record failed range: %w", err),
			zap.Uint64("from_block", fromBlock),
			zap.Uint64("to_block", toBlock))
	}
}

func (s *scanner) publish(ctx context.Context, fromBlock, toBlock uint64, passID string, effect mutator.Effect) {
	if effect.Empty() {
		return
	}

	err := s.publisher.PublishGridChanged(ctx, &domain.GridChanged{
		PassID:    passID,
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Cells:     effect.Cells,
		Addresses: effect.Addresses,
	})
	if err != nil {
		logger.WarnCtx(ctx, "Failed to publish grid change",
			zap.Uint64("from_block", fromBlock),
			zap.Uint64("to_block", toBlock),
			zap.Error(err))
	}
}

func (s *scanner) finish(ctx context.Context, started time.Time, summary Summary, err error) {
	metrics.ScanDuration.Observe(s.clock.Since(started).Seconds())

	status := Status{LastPassAt: started, LastSummary: summary}
	fields := []zap.Field{
		zap.Uint64("from_block", summary.From),
		zap.Uint64("to_block", summary.To),
		zap.Int("ranges_committed", summary.RangesCommitted),
		zap.Int("ranges_failed", summary.RangesFailed),
		zap.Int("events_applied", summary.EventsApplied),
		zap.Int("events_skipped", summary.EventsSkipped),
	}
	if err != nil {
		status.LastError = err.Error()
		logger.ErrorCtx(ctx, fmt.Errorf("scan pass failed: %w", err), fields...)
	} else if summary.RangesScanned > 0 {
		logger.InfoCtx(ctx, "Scan pass finished", fields...)
	}

	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Status returns the outcome of the most recent pass
func (s *scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.status
	status.Running = s.running.Load()
	return status
}
