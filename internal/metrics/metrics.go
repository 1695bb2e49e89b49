package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts status transitions by kind and resulting status
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xchain_transfers_total",
			Help: "Total number of transfer status transitions",
		},
		[]string{"kind", "status"},
	)

	// TransfersCreated counts accepted intake requests
	TransfersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xchain_transfers_created_total",
			Help: "Total number of accepted transfer requests",
		},
		[]string{"kind", "source_chain", "destination_chain"},
	)

	// TransferDuration tracks end-to-end time from intake to a terminal status
	TransferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xchain_transfer_duration_seconds",
			Help:    "Time from intake to terminal status in seconds",
			Buckets: []float64{30, 60, 120, 300, 600, 1800, 3600, 7200, 86400},
		},
		[]string{"kind", "status"},
	)

	// StepDuration tracks the time spent in a single orchestrator step
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xchain_step_duration_seconds",
			Help:    "Orchestrator step duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// StepErrors counts step failures by error class
	StepErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xchain_step_errors_total",
			Help: "Total number of step errors by class",
		},
		[]string{"status", "class"},
	)

	// ClaimConflicts counts claims lost to another worker
	ClaimConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xchain_claim_conflicts_total",
			Help: "Total number of claim attempts that lost the race",
		},
	)

	// ClaimableTransfers tracks the batch listed by the last tick. Records
	// backing off or claimed by another worker are not counted.
	ClaimableTransfers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xchain_claimable_transfers",
			Help: "Transfers due for processing in the last tick by status",
		},
		[]string{"status"},
	)

	// QuotePriceImpact tracks the price impact of produced quotes
	QuotePriceImpact = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xchain_quote_price_impact",
			Help:    "Price impact fraction of produced quotes",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.02, 0.05, 0.1},
		},
		[]string{"dest_chain", "asset"},
	)

	// PriceFallbacks counts prices served from the stale cache
	PriceFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xchain_price_fallbacks_total",
			Help: "Total number of prices served from the stale cache",
		},
		[]string{"symbol"},
	)

	// StateSyncDropped counts snapshots dropped because the buffer was full
	StateSyncDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xchain_statesync_dropped_total",
			Help: "Total number of status snapshots dropped",
		},
	)

	// RPCCalls counts chain RPC calls by method and outcome
	RPCCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xchain_rpc_calls_total",
			Help: "Total number of chain RPC calls",
		},
		[]string{"chain", "method", "status"},
	)

	// TransactionsSent counts transactions broadcast to each chain
	TransactionsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xchain_transactions_sent_total",
			Help: "Total number of transactions sent",
		},
		[]string{"chain", "operation", "status"},
	)

	// LastScannedBlock tracks the chain head checkpoint written by the verifier
	LastScannedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xchain_last_scanned_block",
			Help: "Last chain head observed by the source verifier",
		},
		[]string{"chain"},
	)
)
