package messaging

import (
	"context"

	"github.com/feral-file/ff-grid-indexer/internal/domain"
)

// Publisher defines the interface for announcing grid changes to the message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishGridChanged publishes the cells and addresses touched by a committed sub-range
	PublishGridChanged(ctx context.Context, event *domain.GridChanged) error
	// Close closes the connection
	Close()
}

// NopPublisher discards every event; it is used when no broker is configured
type NopPublisher struct{}

func (NopPublisher) PublishGridChanged(context.Context, *domain.GridChanged) error { return nil }

func (NopPublisher) Close() {}
