package mid

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/web"
	"github.com/prometheus/client_golang/prometheus"
)

type webMetrics struct {
	requests *prometheus.CounterVec
	errors   prometheus.Counter
	panics   prometheus.Counter
	latency  *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	registry    *webMetrics
)

func metrics() *webMetrics {
	metricsOnce.Do(func() {
		registry = &webMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "decent",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Requests served, by method and status code.",
			}, []string{"method", "status"}),
			errors: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "decent",
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "Requests whose handler returned an error.",
			}),
			panics: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "decent",
				Subsystem: "http",
				Name:      "panics_total",
				Help:      "Handler panics recovered.",
			}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "decent",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Request latency by method.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(registry.requests, registry.errors, registry.panics, registry.latency)
	})
	return registry
}

// Metrics updates program counters.
func Metrics() web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			timer := prometheus.NewTimer(metrics().latency.WithLabelValues(r.Method))
			defer timer.ObserveDuration()

			// Call the next handler.
			err := handler(ctx, w, r)

			if err != nil {
				metrics().errors.Inc()
			}

			status := http.StatusOK
			if v, verr := web.GetValues(ctx); verr == nil && v.StatusCode != 0 {
				status = v.StatusCode
			}
			metrics().requests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return m
}
