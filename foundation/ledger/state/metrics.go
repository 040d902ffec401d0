package state

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type stateMetrics struct {
	committed      prometheus.Counter
	replayEntries  prometheus.Counter
	replaySkipped  prometheus.Counter
	replayDuration prometheus.Histogram
}

var (
	metricsOnce     sync.Once
	metricsRegistry *stateMetrics
)

func metrics() *stateMetrics {
	metricsOnce.Do(func() {
		metricsRegistry = &stateMetrics{
			committed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "decent",
				Subsystem: "ledger",
				Name:      "blocks_committed_total",
				Help:      "Total blocks committed by ledger operations.",
			}),
			replayEntries: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "decent",
				Subsystem: "ledger",
				Name:      "replay_entries_total",
				Help:      "Total log entries folded into the views by full replays.",
			}),
			replaySkipped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "decent",
				Subsystem: "ledger",
				Name:      "replay_skipped_total",
				Help:      "Total log entries skipped during replay because they could not be applied.",
			}),
			replayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "decent",
				Subsystem: "ledger",
				Name:      "replay_duration_seconds",
				Help:      "Time taken to rebuild every view from the log.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			metricsRegistry.committed,
			metricsRegistry.replayEntries,
			metricsRegistry.replaySkipped,
			metricsRegistry.replayDuration,
		)
	})
	return metricsRegistry
}
