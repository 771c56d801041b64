package resolver

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sha1n/iconclass-mcp/internal/domain"
)

// Outcome labels of the resolutions counter.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics holds the resolver's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Resolutions    *prometheus.CounterVec
	Duration       prometheus.Histogram
	NamedFallbacks prometheus.Counter
}

// NewMetrics creates the resolver collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iconclass",
			Name:      "resolutions_total",
			Help:      "Notation resolutions by outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "iconclass",
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving a single notation.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		NamedFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "iconclass",
			Name:      "named_fallbacks_total",
			Help:      "Resolutions served through the ellipsis form of a named notation.",
		}),
	}

	for _, c := range []prometheus.Collector{m.Resolutions, m.Duration, m.NamedFallbacks} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register resolver metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(rec *domain.Record, named bool, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Duration.Observe(elapsed.Seconds())
	switch {
	case err != nil:
		m.Resolutions.WithLabelValues(OutcomeError).Inc()
	case rec == nil:
		m.Resolutions.WithLabelValues(OutcomeNotFound).Inc()
	default:
		m.Resolutions.WithLabelValues(OutcomeFound).Inc()
		if named {
			m.NamedFallbacks.Inc()
		}
	}
}
