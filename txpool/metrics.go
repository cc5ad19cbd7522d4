package txpool

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// MetricsSubsystem is the Prometheus subsystem every pool metric is
// registered under.
const MetricsSubsystem = "txpool"

// Metrics contains the metrics exposed by the pool.
type Metrics struct {
	// Size is the current number of pending transactions.
	Size metrics.Gauge
	// SealedSize is the current number of sealed transactions.
	SealedSize metrics.Gauge
	// TxSizeBytes is a histogram of admitted transaction payload sizes.
	TxSizeBytes metrics.Histogram
	// RejectedTxs counts admissions rejected for any non-success status.
	RejectedTxs metrics.Counter
	// EvictedTxs counts transactions removed by the invalid-tx purge.
	EvictedTxs metrics.Counter
	// CommittedTxs counts transactions removed by batch commit.
	CommittedTxs metrics.Counter
	// PreCommitFailures counts exhausted ledger pre-commit retry loops.
	PreCommitFailures metrics.Counter
}

// PrometheusMetrics returns Metrics backed by the Prometheus client
// library.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		Size: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "size",
			Help:      "Number of pending transactions in the pool.",
		}, []string{}),
		SealedSize: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "sealed_size",
			Help:      "Number of sealed (in-proposal) transactions in the pool.",
		}, []string{}),
		TxSizeBytes: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "tx_size_bytes",
			Help:      "Admitted transaction payload sizes in bytes.",
			Buckets:   stdprometheus.ExponentialBuckets(1, 3, 17),
		}, []string{}),
		RejectedTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "rejected_txs",
			Help:      "Number of transactions rejected during admission.",
		}, []string{}),
		EvictedTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "evicted_txs",
			Help:      "Number of transactions removed by the invalid-tx purge.",
		}, []string{}),
		CommittedTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "committed_txs",
			Help:      "Number of transactions removed by block commit.",
		}, []string{}),
		PreCommitFailures: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "precommit_failures",
			Help:      "Number of ledger pre-commit retry loops that gave up.",
		}, []string{}),
	}
}

// NopMetrics returns Metrics that discard everything, for tests and
// callers that don't wire Prometheus.
func NopMetrics() *Metrics {
	return &Metrics{
		Size:              discard.NewGauge(),
		SealedSize:        discard.NewGauge(),
		TxSizeBytes:       discard.NewHistogram(),
		RejectedTxs:       discard.NewCounter(),
		EvictedTxs:        discard.NewCounter(),
		CommittedTxs:      discard.NewCounter(),
		PreCommitFailures: discard.NewCounter(),
	}
}
