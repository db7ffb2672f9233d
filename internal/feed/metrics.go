package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRankRequests     = "feed_rank_requests_total"
	MetricRankDuration     = "feed_rank_duration_seconds"
	MetricRankCandidates   = "feed_rank_candidates"
	MetricRankSourceErrors = "feed_rank_source_errors_total"
)

// Ranking modes used as metric labels.
const (
	ModeAnonymous    = "anonymous"
	ModePersonalized = "personalized"
)

// Metrics contains Prometheus metrics for feed ranking.
type Metrics struct {
	rankRequests     *prometheus.CounterVec
	rankDuration     *prometheus.HistogramVec
	rankCandidates   prometheus.Histogram
	rankSourceErrors *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance. Call Register to expose it.
func NewMetrics() *Metrics {
	return &Metrics{
		rankRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRankRequests,
				Help: "Total number of feed ranking calls by mode and outcome",
			},
			[]string{"mode", "status"},
		),
		rankDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRankDuration,
				Help:    "Feed ranking duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"mode"},
		),
		rankCandidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricRankCandidates,
				Help:    "Number of candidate items scored per ranking call",
				Buckets: []float64{0, 10, 50, 100, 200, 300},
			},
		),
		rankSourceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRankSourceErrors,
				Help: "Total number of data source failures during ranking",
			},
			[]string{"source"},
		),
	}
}

// Register registers all metrics with the provided registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRank records one ranking call.
func (m *Metrics) ObserveRank(mode, status string, seconds float64) {
	m.rankRequests.WithLabelValues(mode, status).Inc()
	m.rankDuration.WithLabelValues(mode).Observe(seconds)
}

// ObserveCandidates records the candidate pool size of one call.
func (m *Metrics) ObserveCandidates(n int) {
	m.rankCandidates.Observe(float64(n))
}

// IncSourceError increments the failure counter for a data source
// ("items", "follows" or "interactions").
func (m *Metrics) IncSourceError(source string) {
	m.rankSourceErrors.WithLabelValues(source).Inc()
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rankRequests,
		m.rankDuration,
		m.rankCandidates,
		m.rankSourceErrors,
	}
}
