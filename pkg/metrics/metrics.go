// Copyright 2025 Certen Protocol
//
// Prometheus metrics for the ledger core. client_golang is already pulled
// in by the consensus stack's own instrumentation (CometBFT exposes its p2p
// and mempool metrics the same way); this registers the ledger's own block-
// commit and state gauges on the registry passed to New (cmd/ledgerd passes
// a registry of its own, not the default one).

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the fixed set of ledger-core instruments. Construct one with
// New and thread it through pkg/consensus; there is no global registration
// beyond the constructor calls themselves, so tests can construct as many
// independent Metrics as they need without colliding on collector names.
type Metrics struct {
	BlockCommitLatency prometheus.Histogram
	UtxoSetSize        prometheus.Gauge
	CursorTxnsStaged   prometheus.Gauge
	RejectedTxns       *prometheus.CounterVec
	BlockHeight        prometheus.Gauge
}

// New registers and returns a fresh Metrics set on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BlockCommitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledgercore",
			Subsystem: "block",
			Name:      "commit_latency_seconds",
			Help:      "Wall-clock time spent in one finish_block commit.",
			Buckets:   prometheus.DefBuckets,
		}),
		UtxoSetSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledgercore",
			Subsystem: "ledger",
			Name:      "utxo_set_size",
			Help:      "Number of live (unspent) outputs after the last commit.",
		}),
		CursorTxnsStaged: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledgercore",
			Subsystem: "cursor",
			Name:      "staged_transactions",
			Help:      "Number of transactions applied to the open block cursor.",
		}),
		RejectedTxns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgercore",
			Subsystem: "ledger",
			Name:      "rejected_transactions_total",
			Help:      "Transactions rejected at check_tx or deliver_tx, labeled by reason code.",
		}, []string{"reason"}),
		BlockHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledgercore",
			Subsystem: "ledger",
			Name:      "block_height",
			Help:      "Height of the most recently committed block.",
		}),
	}
}

// ObserveCommit records one finish_block's latency and the resulting
// counters in a single call, matching the shape pkg/consensus reports after
// every commit.
func (m *Metrics) ObserveCommit(seconds float64, utxoCount, blockHeight uint64) {
	m.BlockCommitLatency.Observe(seconds)
	m.UtxoSetSize.Set(float64(utxoCount))
	m.BlockHeight.Set(float64(blockHeight))
}

// RecordRejection increments the rejection counter for reason, the
// CoreError kind string (e.g. "InputMalformed", "StateConflict", "ProofInvalid").
func (m *Metrics) RecordRejection(reason string) {
	m.RejectedTxns.WithLabelValues(reason).Inc()
}
