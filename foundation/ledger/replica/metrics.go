package replica

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type syncMetrics struct {
	fetches      prometheus.Counter
	fetchErrors  prometheus.Counter
	fetchedBytes prometheus.Counter
	pushedChunks prometheus.Counter
	pushedBytes  prometheus.Counter
	served       *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsRegistry *syncMetrics
)

func metrics() *syncMetrics {
	metricsOnce.Do(func() {
		metricsRegistry = &syncMetrics{
			fetches: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "decent",
				Subsystem: "replica",
				Name:      "fetches_total",
				Help:      "Total fetches attempted against the remote log.",
			}),
			fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "decent",
				Subsystem: "replica",
				Name:      "fetch_errors_total",
				Help:      "Total fetches that failed or were refused.",
			}),
			fetchedBytes: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "decent",
				Subsystem: "replica",
				Name:      "fetched_bytes_total",
				Help:      "Total log bytes written to local replicas.",
			}),
			pushedChunks: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "decent",
				Subsystem: "replica",
				Name:      "pushed_chunks_total",
				Help:      "Total chunks pushed to the remote log.",
			}),
			pushedBytes: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "decent",
				Subsystem: "replica",
				Name:      "pushed_bytes_total",
				Help:      "Total log bytes pushed to the remote log.",
			}),
			served: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "decent",
				Subsystem: "replica",
				Name:      "served_requests_total",
				Help:      "Total fetch and push requests served, by operation and outcome.",
			}, []string{"op", "outcome"}),
		}
		prometheus.MustRegister(
			metricsRegistry.fetches,
			metricsRegistry.fetchErrors,
			metricsRegistry.fetchedBytes,
			metricsRegistry.pushedChunks,
			metricsRegistry.pushedBytes,
			metricsRegistry.served,
		)
	})
	return metricsRegistry
}
