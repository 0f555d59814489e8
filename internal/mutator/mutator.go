package mutator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/feral-file/ff-grid-indexer/internal/domain"
	"github.com/feral-file/ff-grid-indexer/internal/logger"
	"github.com/feral-file/ff-grid-indexer/internal/metrics"
	"github.com/feral-file/ff-grid-indexer/internal/store"
)

// ContractReader reads cell state from the grid contract
//
//go:generate mockgen -source=mutator.go -destination=../mocks/mutator.go -package=mocks -mock_names=ContractReader=MockContractReader,EventApplier=MockEventApplier
type ContractReader interface {
	// ContentURI returns the content URI the contract holds for a cell
	ContentURI(ctx context.Context, coord domain.Coordinate) (string, error)
}

// EventApplier applies decoded events to the relational state
type EventApplier interface {
	// Apply writes the effect of one event through st, which is bound to the
	// transaction of the enclosing sub-range. A returned error rolls the sub-range back.
	Apply(ctx context.Context, st store.Store, decoded domain.DecodedLog) (Effect, error)
}

// Config holds mutator behaviour switches
type Config struct {
	// RecordUnauthorizedUpdates appends a content record even when the updater does not own the cell
	RecordUnauthorizedUpdates bool
}

// Effect lists the state an applied event touched
type Effect struct {
	Cells     []domain.Coordinate
	Addresses []string
}

// Merge appends other to e
func (e *Effect) Merge(other Effect) {
	e.Cells = append(e.Cells, other.Cells...)
	e.Addresses = append(e.Addresses, other.Addresses...)
}

// Empty reports whether nothing was touched
func (e Effect) Empty() bool {
	return len(e.Cells) == 0 && len(e.Addresses) == 0
}

// Mutator applies grid events to the store
type Mutator struct {
	reader ContractReader
	config Config
}

// New creates a mutator
func New(reader ContractReader, config Config) *Mutator {
	return &Mutator{reader: reader, config: config}
}

// Apply applies one decoded event. Persistence errors are returned; domain anomalies
// such as a missing cell or an ownership mismatch are logged and swallowed.
func (m *Mutator) Apply(ctx context.Context, st store.Store, decoded domain.DecodedLog) (Effect, error) {
	ctx = logger.WithFields(ctx,
		zap.String("event", decoded.Kind.String()),
		zap.String("tx_hash", decoded.Meta.TxHash),
		zap.Uint64("block_number", decoded.Meta.BlockNumber),
		zap.Uint("log_index", decoded.Meta.LogIndex))

	if !decoded.OK() {
		logger.WarnCtx(ctx, "Skipping undecoded event", zap.Error(decoded.Err))
		return Effect{}, nil
	}

	switch decoded.Kind {
	case domain.EventKindBuy:
		ev, ok := decoded.Event.(domain.BuyEvent)
		if !ok {
			return Effect{}, mismatch(decoded)
		}
		return m.applyPurchase(ctx, st, decoded.Kind, ev.Buyer, []domain.Coordinate{ev.Coordinate}, decoded.Meta)

	case domain.EventKindBatchBuy:
		ev, ok := decoded.Event.(domain.BatchBuyEvent)
		if !ok {
			return Effect{}, mismatch(decoded)
		}
		return m.applyPurchase(ctx, st, decoded.Kind, ev.Buyer, ev.Coordinates, decoded.Meta)

	case domain.EventKindTransfer:
		ev, ok := decoded.Event.(domain.TransferEvent)
		if !ok {
			return Effect{}, mismatch(decoded)
		}
		if ev.IsMint() {
			return m.applyMint(ctx, st, ev, decoded.Meta)
		}
		return m.applyTransfer(ctx, st, ev, decoded.Meta)

	case domain.EventKindUpdate:
		ev, ok := decoded.Event.(domain.UpdateEvent)
		if !ok {
			return Effect{}, mismatch(decoded)
		}
		return m.applyUpdate(ctx, st, ev, decoded.Meta)

	case domain.EventKindNamed:
		ev, ok := decoded.Event.(domain.NamedEvent)
		if !ok {
			return Effect{}, mismatch(decoded)
		}
		return m.applyNamed(ctx, st, ev, decoded.Meta)

	case domain.EventKindOwnershipTransferred:
		ev, ok := decoded.Event.(domain.OwnershipTransferredEvent)
		if !ok {
			return Effect{}, mismatch(decoded)
		}
		logger.InfoCtx(ctx, "Contract ownership transferred",
			zap.String("previous_owner", ev.PreviousOwner),
			zap.String("new_owner", ev.NewOwner))
		return Effect{}, nil

	case domain.EventKindUnknown:
		logger.WarnCtx(ctx, "Skipping unknown event")
		return Effect{}, nil

	default:
		logger.WarnCtx(ctx, "Skipping unhandled event kind", zap.Int("kind", int(decoded.Kind)))
		return Effect{}, nil
	}
}

func mismatch(decoded domain.DecodedLog) error {
	return fmt.Errorf("event payload %T does not match kind %s", decoded.Event, decoded.Kind)
}

// applyPurchase handles Buy and BatchBuy, one cell at a time
func (m *Mutator) applyPurchase(ctx context.Context, st store.Store, kind domain.EventKind, buyer string, coords []domain.Coordinate, meta domain.EventMeta) (Effect, error) {
	var effect Effect
	for _, coord := range coords {
		uri, preserve, err := m.contentURI(ctx, kind, coord)
		if err != nil {
			return effect, err
		}

		if err := st.UpsertCell(ctx, store.UpsertCellInput{
			Coordinate:          coord,
			Owner:               buyer,
			ContentURI:          uri,
			Timestamp:           meta.Timestamp,
			PreserveExistingURI: preserve,
		}); err != nil {
			return effect, err
		}

		if err := st.CreateOwnershipRecord(ctx, store.CreateOwnershipRecordInput{
			Coordinate: coord,
			Owner:      buyer,
			Meta:       meta,
		}); err != nil {
			return effect, err
		}

		effect.Cells = append(effect.Cells, coord)
	}
	return effect, nil
}

// applyMint handles a transfer from the zero address; a mint never blanks a stored URI
func (m *Mutator) applyMint(ctx context.Context, st store.Store, ev domain.TransferEvent, meta domain.EventMeta) (Effect, error) {
	uri, _, err := m.contentURI(ctx, domain.EventKindTransfer, ev.Coordinate)
	if err != nil {
		return Effect{}, err
	}

	if err := st.UpsertCell(ctx, store.UpsertCellInput{
		Coordinate:          ev.Coordinate,
		Owner:               ev.To,
		ContentURI:          uri,
		Timestamp:           meta.Timestamp,
		PreserveExistingURI: true,
	}); err != nil {
		return Effect{}, err
	}

	if err := st.CreateOwnershipRecord(ctx, store.CreateOwnershipRecordInput{
		Coordinate: ev.Coordinate,
		Owner:      ev.To,
		Meta:       meta,
	}); err != nil {
		return Effect{}, err
	}

	return Effect{Cells: []domain.Coordinate{ev.Coordinate}}, nil
}

// applyTransfer handles a transfer between two holders
func (m *Mutator) applyTransfer(ctx context.Context, st store.Store, ev domain.TransferEvent, meta domain.EventMeta) (Effect, error) {
	updated, err := st.UpdateCellOwner(ctx, store.UpdateCellOwnerInput{
		Coordinate: ev.Coordinate,
		Owner:      ev.To,
		Timestamp:  meta.Timestamp,
	})
	if err != nil {
		return Effect{}, err
	}
	if !updated {
		warn(ctx, domain.EventKindTransfer, "cell_not_found", "Transfer for a cell that was never minted",
			zap.String("cell", ev.Coordinate.String()))
	}

	err = st.CreateOwnershipRecord(ctx, store.CreateOwnershipRecordInput{
		Coordinate: ev.Coordinate,
		Owner:      ev.To,
		Meta:       meta,
	})
	if err != nil {
		if errors.Is(err, domain.ErrCellNotFound) {
			warn(ctx, domain.EventKindTransfer, "history_without_cell", "Ownership record dropped, cell does not exist",
				zap.String("cell", ev.Coordinate.String()))
			return Effect{}, nil
		}
		return Effect{}, err
	}

	if !updated {
		return Effect{}, nil
	}
	return Effect{Cells: []domain.Coordinate{ev.Coordinate}}, nil
}

// applyUpdate handles a content change; only the owner can change the live cell
func (m *Mutator) applyUpdate(ctx context.Context, st store.Store, ev domain.UpdateEvent, meta domain.EventMeta) (Effect, error) {
	updated, err := st.UpdateCellContent(ctx, store.UpdateCellContentInput{
		Coordinate: ev.Coordinate,
		Owner:      ev.Owner,
		URI:        ev.URI,
		Timestamp:  meta.Timestamp,
	})
	if err != nil {
		return Effect{}, err
	}
	if !updated {
		warn(ctx, domain.EventKindUpdate, "ownership_mismatch", "Content update not applied, updater does not own the cell",
			zap.String("cell", ev.Coordinate.String()),
			zap.String("updater", ev.Owner),
			zap.Error(domain.ErrOwnershipMismatch))
		if !m.config.RecordUnauthorizedUpdates {
			return Effect{}, nil
		}
	}

	err = st.CreateContentRecord(ctx, store.CreateContentRecordInput{
		Coordinate: ev.Coordinate,
		URI:        ev.URI,
		Owner:      ev.Owner,
		Meta:       meta,
	})
	if err != nil {
		if errors.Is(err, domain.ErrCellNotFound) {
			warn(ctx, domain.EventKindUpdate, "history_without_cell", "Content record dropped, cell does not exist",
				zap.String("cell", ev.Coordinate.String()))
			return Effect{}, nil
		}
		return Effect{}, err
	}

	if !updated {
		return Effect{}, nil
	}
	return Effect{Cells: []domain.Coordinate{ev.Coordinate}}, nil
}

// applyNamed handles a name assignment
func (m *Mutator) applyNamed(ctx context.Context, st store.Store, ev domain.NamedEvent, meta domain.EventMeta) (Effect, error) {
	address, err := domain.NormalizeAddress(ev.Address)
	if err != nil {
		warn(ctx, domain.EventKindNamed, "invalid_address", "Skipping name for invalid address",
			zap.String("address", ev.Address))
		return Effect{}, nil
	}
	if ev.NameIsHash {
		logger.WarnCtx(ctx, "Name only available as hash, storing the hash",
			zap.String("address", address),
			zap.String("name_hash", ev.Name))
	}

	if err := st.UpsertNamedIdentity(ctx, address, ev.Name); err != nil {
		return Effect{}, err
	}
	if err := st.CreateNameRecord(ctx, store.CreateNameRecordInput{
		Address:     address,
		DisplayName: ev.Name,
		Meta:        meta,
	}); err != nil {
		return Effect{}, err
	}

	return Effect{Addresses: []string{address}}, nil
}

// contentURI reads the URI of a freshly bought or minted cell. Provider exhaustion and
// cancellation are returned; any other read failure, such as a revert, yields an empty
// URI and asks the store to keep what it has.
func (m *Mutator) contentURI(ctx context.Context, kind domain.EventKind, coord domain.Coordinate) (string, bool, error) {
	uri, err := m.reader.ContentURI(ctx, coord)
	if err == nil {
		return uri, false, nil
	}
	if errors.Is(err, domain.ErrFailoverExhausted) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", false, err
	}
	warn(ctx, kind, "content_uri_unavailable", "Content URI unavailable, keeping stored value",
		zap.String("cell", coord.String()),
		zap.Error(err))
	return "", true, nil
}

func warn(ctx context.Context, kind domain.EventKind, reason, msg string, fields ...zap.Field) {
	metrics.DomainWarningsTotal.WithLabelValues(kind.String(), reason).Inc()
	logger.WarnCtx(ctx, msg, fields...)
}
