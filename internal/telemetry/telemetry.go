package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MatchingMetrics instruments the scoring engine.
type MatchingMetrics struct {
	PairsScored     prometheus.Counter
	MatchesUpserted prometheus.Counter
	PassDuration    prometheus.Histogram
}

// NewMatchingMetrics builds and registers the matching collectors on the
// given registerer (nil means the default registry).
func NewMatchingMetrics(reg prometheus.Registerer) *MatchingMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &MatchingMetrics{
		PairsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lostfound_matching_pairs_scored_total",
			Help: "Candidate pairs scored across all matching passes.",
		}),
		MatchesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lostfound_matching_matches_upserted_total",
			Help: "Match rows created or score-raised by the engine.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lostfound_matching_pass_duration_seconds",
			Help:    "Wall time of one full scoring pass.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.PairsScored, m.MatchesUpserted, m.PassDuration)
	return m
}

// HTTPMetrics instruments request handling.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewHTTPMetrics builds and registers the HTTP collectors.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lostfound_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lostfound_http_request_duration_seconds",
			Help:    "HTTP request latency by method and path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	reg.MustRegister(m.Requests, m.Duration)
	return m
}
