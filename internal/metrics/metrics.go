package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks RPC attempts per endpoint and operation
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_indexer_rpc_calls_total",
			Help: "Total number of RPC attempts",
		},
		[]string{"endpoint", "operation"},
	)

	// RPCErrorsTotal tracks failed RPC attempts per endpoint and error class
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_indexer_rpc_errors_total",
			Help: "Total number of failed RPC attempts",
		},
		[]string{"endpoint", "operation", "class"},
	)

	// RPCLatency tracks RPC attempt latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grid_indexer_rpc_latency_seconds",
			Help:    "RPC attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "operation"},
	)

	// EndpointRotationsTotal tracks endpoint switches
	EndpointRotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_indexer_endpoint_rotations_total",
			Help: "Total number of provider endpoint rotations",
		},
		[]string{"reason"},
	)

	// ActiveEndpoint tracks the index of the endpoint currently in use
	ActiveEndpoint = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_indexer_active_endpoint_index",
			Help: "Index of the provider endpoint currently in use",
		},
	)

	// ChainHeadBlock tracks the latest block reported by the chain
	ChainHeadBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_indexer_chain_head_block",
			Help: "Latest block height reported by the chain",
		},
	)

	// ResumeBlock tracks the watermark derived from the event log
	ResumeBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_indexer_resume_block",
			Help: "Highest block with at least one committed event",
		},
	)

	// RangesTotal tracks scanned sub-ranges by outcome (committed, empty, rolled_back, fetch_failed)
	RangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_indexer_ranges_total",
			Help: "Total number of scanned block sub-ranges by outcome",
		},
		[]string{"outcome"},
	)

	// EventsTotal tracks processed events by kind and outcome (applied, duplicate, skipped)
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_indexer_events_total",
			Help: "Total number of contract events processed",
		},
		[]string{"kind", "outcome"},
	)

	// DomainWarningsTotal tracks domain anomalies such as missing cells and ownership mismatches
	DomainWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_indexer_domain_warnings_total",
			Help: "Total number of domain anomalies observed while applying events",
		},
		[]string{"kind", "reason"},
	)

	// ScanDuration tracks the duration of a full scan pass
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grid_indexer_scan_duration_seconds",
			Help:    "Duration of a scan pass in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)
