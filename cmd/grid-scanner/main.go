package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feral-file/ff-grid-indexer/internal/adapter"
	"github.com/feral-file/ff-grid-indexer/internal/block"
	"github.com/feral-file/ff-grid-indexer/internal/config"
	"github.com/feral-file/ff-grid-indexer/internal/logger"
	"github.com/feral-file/ff-grid-indexer/internal/messaging"
	"github.com/feral-file/ff-grid-indexer/internal/mutator"
	"github.com/feral-file/ff-grid-indexer/internal/providers/ethereum"
	"github.com/feral-file/ff-grid-indexer/internal/providers/jetstream"
	"github.com/feral-file/ff-grid-indexer/internal/scanner"
	"github.com/feral-file/ff-grid-indexer/internal/server"
	"github.com/feral-file/ff-grid-indexer/internal/store"
)

var (
	configFile   = flag.String("config", "", "Path to configuration file")
	envPath      = flag.String("env", "config/", "Path to environment files")
	once         = flag.Bool("once", false, "Run a single scan pass and exit")
	rescanFrom   = flag.Uint64("rescan-from", 0, "First block of a manual re-scan")
	rescanTo     = flag.Uint64("rescan-to", 0, "Last block of a manual re-scan; enables re-scan mode when set")
	rescanFailed = flag.Int("rescan-failed", 0, "Re-scan up to this many unresolved failed ranges and exit")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadScannerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "grid-scanner",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Grid Scanner")

	if err := cfg.Validate(); err != nil {
		logger.FatalCtx(ctx, "Invalid configuration", zap.Error(err))
	}

	// Connect to database
	db, err := connectDatabase(ctx, cfg.Database.DSN())
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}
	if err := store.ConfigureConnectionPool(db,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
		cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()

	// Initialize ethereum endpoint pool and contract client
	pool, err := ethereum.NewPool(cfg.Ethereum.RPCURLs, adapter.NewEthClientDialer(), ethereum.PoolConfig{
		MaxRetries:        cfg.Failover.MaxRetries,
		InitialRetryDelay: cfg.Failover.InitialRetryDelay,
		MaxRetryDelay:     cfg.Failover.MaxRetryDelay,
		MinSwitchInterval: cfg.Failover.MinSwitchInterval,
		JitterFraction:    ethereum.DefaultJitterFraction,
		CallTimeout:       cfg.Ethereum.CallTimeout,
		RequestsPerSecond: cfg.Failover.RequestsPerSecond,
		Burst:             cfg.Failover.Burst,
	}, clockAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create RPC endpoint pool", zap.Error(err))
	}
	defer pool.Close()

	chainClient, err := ethereum.NewChainClient(pool, cfg.Ethereum.ContractAddress, clockAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create chain client", zap.Error(err), zap.String("contract", cfg.Ethereum.ContractAddress))
	}

	blockProvider := block.NewBlockProvider(ethereum.NewBlockFetcher(chainClient), block.Config{
		TTL:                 cfg.Ethereum.BlockHeadTTL,
		StaleWindow:         cfg.Ethereum.BlockHeadStaleWindow,
		MaxCachedTimestamps: 10000,
		Concurrency:         cfg.Scanner.TimestampConcurrency,
	}, clockAdapter)
	defer blockProvider.Close()

	decoder, err := ethereum.NewDecoder()
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create event decoder", zap.Error(err))
	}

	eventMutator := mutator.New(chainClient, mutator.Config{
		RecordUnauthorizedUpdates: cfg.Scanner.RecordUnauthorizedUpdates,
	})

	// Initialize NATS publisher when configured
	var publisher messaging.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = jetstream.NewPublisher(ctx, jetstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			Subject:        cfg.NATS.Subject,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
			PublishRetries: cfg.NATS.PublishRetries,
			RetryInterval:  cfg.NATS.RetryInterval,
		}, adapter.NewNatsJetStream(), jsonAdapter)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create NATS publisher", zap.Error(err), zap.String("url", cfg.NATS.URL))
		}
		defer publisher.Close()
		logger.InfoCtx(ctx, "Connected to NATS JetStream")
	}

	gridScanner := scanner.NewScanner(
		chainClient,
		blockProvider,
		decoder,
		eventMutator,
		dataStore,
		publisher,
		jsonAdapter,
		scanner.Config{
			GenesisBlock: cfg.Ethereum.GenesisBlock,
			BatchSize:    cfg.Scanner.BatchSize,
		},
		clockAdapter,
	)

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// One-shot modes
	switch {
	case *rescanTo > 0:
		summary, err := gridScanner.Rescan(ctx, *rescanFrom, *rescanTo)
		exitAfter(ctx, "rescan", summary, err)
		return
	case *rescanFailed > 0:
		summary, err := gridScanner.RescanFailed(ctx, *rescanFailed)
		exitAfter(ctx, "rescan-failed", summary, err)
		return
	case *once:
		summary, err := gridScanner.RunOnce(ctx)
		exitAfter(ctx, "once", summary, err)
		return
	}

	// Metrics and health endpoints
	var metricsServer *server.Server
	if cfg.Metrics.Enabled {
		metricsServer = server.New(server.Config{
			Debug: cfg.Debug,
			Host:  cfg.Metrics.Host,
			Port:  cfg.Metrics.Port,
		}, gridScanner)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("component", "metrics_server"))
			}
		}()
	}

	scanner.Run(ctx, gridScanner, clockAdapter, scanner.RunConfig{
		Interval:          cfg.Scanner.Interval,
		RescanFailedLimit: cfg.Scanner.RescanFailedLimit,
	})

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, zap.String("component", "metrics_server"))
		}
	}

	// Use non-context logger for final shutdown message since context is already canceled
	logger.Info("Grid Scanner stopped")
}

func exitAfter(ctx context.Context, mode string, summary scanner.Summary, err error) {
	if err != nil {
		logger.ErrorCtx(ctx, err, zap.String("mode", mode))
		logger.Flush(2 * time.Second)
		os.Exit(1)
	}
	logger.InfoCtx(ctx, "Scan finished",
		zap.String("mode", mode),
		zap.Uint64("from", summary.From),
		zap.Uint64("to", summary.To),
		zap.Int("ranges_failed", summary.RangesFailed),
		zap.Int("events_applied", summary.EventsApplied))
}

// connectDatabase opens the database, retrying while it is unreachable
func connectDatabase(ctx context.Context, dsn string) (*gorm.DB, error) {
	var db *gorm.DB
	attemptCount := 0

	operation := func() error {
		attemptCount++
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		return err
	}

	notifyOnError := func(err error, duration time.Duration) {
		logger.WarnCtx(ctx, "Database not reachable, retrying",
			zap.Error(err),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration))
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notifyOnError); err != nil {
		return nil, err
	}
	return db, nil
}
