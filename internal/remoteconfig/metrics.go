package remoteconfig

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config sources reported by the lookups counter
const (
	SourceCache   = "cache"
	SourceNetwork = "network"
	SourceStale   = "stale"
	SourceDefault = "default"
)

// Metrics holds the cache's Prometheus counters
type Metrics struct {
	Lookups       *prometheus.CounterVec
	FetchFailures *prometheus.CounterVec
}

// NewMetrics registers the counters on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tranquilize",
			Subsystem: "config",
			Name:      "lookups_total",
			Help:      "Remote config lookups by the source that answered them.",
		}, []string{"source"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tranquilize",
			Subsystem: "config",
			Name:      "fetch_failures_total",
			Help:      "Failed remote config fetches by reason.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) lookup(source string) {
	if m != nil {
		m.Lookups.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) failure(reason string) {
	if m != nil {
		m.FetchFailures.WithLabelValues(reason).Inc()
	}
}
