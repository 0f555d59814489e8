package jetstream

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/ff-grid-indexer/internal/adapter"
	"github.com/feral-file/ff-grid-indexer/internal/domain"
	"github.com/feral-file/ff-grid-indexer/internal/logger"
	"github.com/feral-file/ff-grid-indexer/internal/messaging"
)

// Config holds the configuration for NATS JetStream connection
type Config struct {
	URL            string
	StreamName     string
	Subject        string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	// PublishRetries bounds the retries of one publish after the first attempt
	PublishRetries uint64
	// RetryInterval is the first delay between publish attempts
	RetryInterval time.Duration
}

type publisher struct {
	nc     adapter.NatsConn
	js     adapter.JetStream
	config Config
	json   adapter.JSON
}

// NewPublisher creates a new NATS JetStream publisher. When StreamName is set the stream is
// created, or updated to capture Subject, before the publisher is returned.
func NewPublisher(ctx context.Context, cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (messaging.Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	if cfg.StreamName != "" {
		_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.StreamName,
			Subjects: []string{cfg.Subject},
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.StreamName, err)
		}
		logger.InfoCtx(ctx, "JetStream stream ready",
			zap.String("stream", cfg.StreamName),
			zap.String("subject", cfg.Subject))
	}

	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 200 * time.Millisecond
	}

	return &publisher{
		nc:     nc,
		js:     js,
		config: cfg,
		json:   jsonAdapter,
	}, nil
}

// PublishGridChanged publishes a grid change to NATS JetStream. The message id makes
// a retried publish of the same sub-range a duplicate the stream drops.
func (p *publisher) PublishGridChanged(ctx context.Context, event *domain.GridChanged) error {
	logger.DebugCtx(ctx, "Publishing grid change", zap.Any("event", event))

	data, err := p.json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msgID := messageID(event)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.config.RetryInterval
	b.MaxInterval = 10 * p.config.RetryInterval

	var attemptCount int
	operation := func() error {
		_, err := p.js.Publish(ctx, p.config.Subject, data, jetstream.WithMsgID(msgID))
		return err
	}
	notifyOnError := func(err error, duration time.Duration) {
		attemptCount++
		logger.WarnCtx(ctx, "Publish failed, retrying",
			zap.String("subject", p.config.Subject),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration),
			zap.Error(err))
	}

	err = backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(b, p.config.PublishRetries), ctx),
		notifyOnError)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// messageID identifies a sub-range commit of one pass
func messageID(event *domain.GridChanged) string {
	return fmt.Sprintf("%s:%d-%d", event.PassID, event.FromBlock, event.ToBlock)
}

// Close closes the NATS connection
func (p *publisher) Close() {
	if p.nc == nil {
		return
	}

	p.nc.Close()
}
