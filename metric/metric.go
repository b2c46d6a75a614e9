package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespaceSync      = "synchronizer"
	namespaceRootChain = "rootchain"
)

var (
	// LastBlockNum last ledger block synced
	LastBlockNum = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespaceSync,
			Name:      "synced_last_block_num",
			Help:      "last ledger block persisted by the synchronizer",
		})

	// LastChildBlockNum last child block committed
	LastChildBlockNum = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespaceSync,
			Name:      "last_child_block_num",
			Help:      "number of the last committed child block",
		})

	// PendingDeposits deposits buffered and not yet committed
	PendingDeposits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespaceRootChain,
			Name:      "pending_deposits",
			Help:      "deposits buffered and not yet committed",
		})

	// ChildBlocks committed child block count
	ChildBlocks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceRootChain,
			Name:      "child_blocks_total",
			Help:      "child blocks committed",
		})

	// Deposits admitted deposit count
	Deposits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceRootChain,
			Name:      "deposits_total",
			Help:      "deposits admitted",
		})

	// ExitsStarted accepted exit claim count
	ExitsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceRootChain,
			Name:      "exits_started_total",
			Help:      "exit claims accepted",
		})

	// ExitsChallenged exits deleted by challenge
	ExitsChallenged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceRootChain,
			Name:      "exits_challenged_total",
			Help:      "exits deleted by a successful challenge",
		})

	// ExitsFinalized exits credited to their owner
	ExitsFinalized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceRootChain,
			Name:      "exits_finalized_total",
			Help:      "exits credited to their owner",
		})

	// Withdrawals payout count, balance payouts and deposit reclaims
	Withdrawals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceRootChain,
			Name:      "withdrawals_total",
			Help:      "payouts, balance withdrawals and deposit reclaims",
		})

	// SyncDuration duration of a block sync pass
	SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespaceSync,
			Name:      "sync_duration_ms",
			Help:      "duration of a sync pass in milliseconds",
		}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		LastBlockNum,
		LastChildBlockNum,
		PendingDeposits,
		ChildBlocks,
		Deposits,
		ExitsStarted,
		ExitsChallenged,
		ExitsFinalized,
		Withdrawals,
		SyncDuration,
	)
}

// MeasureDuration measure the method execution duration
// and save it into a histogram metric
func MeasureDuration(histogram *prometheus.HistogramVec, start time.Time, lvs ...string) {
	duration := time.Since(start)
	histogram.WithLabelValues(lvs...).Observe(float64(duration.Milliseconds()))
}
