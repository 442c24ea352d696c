package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BallotMetrics is safe to use through a nil pointer, in which case nothing
// is recorded.
type BallotMetrics struct {
	BallotsCast        *prometheus.CounterVec
	CastsRejected      *prometheus.CounterVec
	CastDuration       *prometheus.HistogramVec
	TabulationDuration *prometheus.HistogramVec
}

func NewBallotMetrics(reg prometheus.Registerer, namespace string) *BallotMetrics {
	factory := promauto.With(reg)
	return &BallotMetrics{
		BallotsCast: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ballots",
				Name:      "cast_total",
				Help:      "Total number of ballots recorded",
			},
			[]string{"poll_id"},
		),
		CastsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ballots",
				Name:      "rejected_total",
				Help:      "Total number of cast attempts rejected, by reason",
			},
			[]string{"poll_id", "reason"},
		),
		CastDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ballots",
				Name:      "cast_duration_seconds",
				Help:      "Histogram of cast request processing times",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"poll_id"},
		),
		TabulationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "results",
				Name:      "tabulation_duration_seconds",
				Help:      "Histogram of tabulation times",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"poll_id"},
		),
	}
}

func (m *BallotMetrics) ObserveCast(pollID string, started time.Time) {
	if m == nil {
		return
	}
	m.BallotsCast.WithLabelValues(pollID).Inc()
	m.CastDuration.WithLabelValues(pollID).Observe(time.Since(started).Seconds())
}

func (m *BallotMetrics) ObserveRejection(pollID, reason string) {
	if m == nil {
		return
	}
	m.CastsRejected.WithLabelValues(pollID, reason).Inc()
}

func (m *BallotMetrics) ObserveTabulation(pollID string, started time.Time) {
	if m == nil {
		return
	}
	m.TabulationDuration.WithLabelValues(pollID).Observe(time.Since(started).Seconds())
}
