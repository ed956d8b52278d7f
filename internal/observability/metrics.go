package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	latticeDescriptors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fido2verif",
			Subsystem: "lattice",
			Name:      "descriptors_total",
			Help:      "Scenario descriptors visited, by outcome.",
		},
		[]string{"phase", "outcome"},
	)
	oracleInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fido2verif",
			Subsystem: "oracle",
			Name:      "invocations_total",
			Help:      "Decision procedure invocations.",
		},
		[]string{"phase", "pass", "verdict"},
	)
	oracleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fido2verif",
			Subsystem: "oracle",
			Name:      "duration_seconds",
			Help:      "Decision procedure wall time in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"phase", "pass"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fido2verif",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fido2verif",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			latticeDescriptors,
			oracleInvocations,
			oracleDuration,
			httpRequests,
			httpDuration,
		)
	})
}

// RecordDescriptor counts one visited descriptor. outcome is a verdict name
// or "skipped".
func RecordDescriptor(phase, outcome string) {
	RegisterMetrics()
	latticeDescriptors.WithLabelValues(phase, outcome).Inc()
}

func RecordOracleInvocation(phase, pass, verdict string, duration time.Duration) {
	RegisterMetrics()
	oracleInvocations.WithLabelValues(phase, pass, verdict).Inc()
	oracleDuration.WithLabelValues(phase, pass).Observe(duration.Seconds())
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
