package monitoring

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/spacesedan/sentibot/internal/sentiment"
)

const namespace = "sentibot"

var _ sentiment.Observer = (*Metrics)(nil)

// Metrics holds the service collectors.
type Metrics struct {
	Predictions       *prometheus.CounterVec
	PredictionErrors  *prometheus.CounterVec
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	IronyCorrections  prometheus.Counter
	SegmentFailures   prometheus.Counter
	InferenceDuration *prometheus.HistogramVec
	RateLimited       prometheus.Counter
	BreakerState      *prometheus.GaugeVec
}

// NewMetrics registers every collector on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Successful predictions by sentiment label",
		}, []string{"sentiment"}),
		PredictionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Failed predictions by reason",
		}, []string{"reason"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Analyze calls answered from the result cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Analyze calls that ran inference",
		}),
		IronyCorrections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "irony_corrections_total",
			Help:      "Positive predictions flipped to negative by the irony heuristic",
		}),
		SegmentFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_failures_total",
			Help:      "Long-text segments skipped after a classifier error",
		}),
		InferenceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Classifier call latency",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"status"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected with 429",
		}),
		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Classifier circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
	}
}

func (m *Metrics) CacheHit()       { m.CacheHits.Inc() }
func (m *Metrics) CacheMiss()      { m.CacheMisses.Inc() }
func (m *Metrics) IronyCorrected() { m.IronyCorrections.Inc() }
func (m *Metrics) SegmentFailed()  { m.SegmentFailures.Inc() }
func (m *Metrics) LimitExceeded()  { m.RateLimited.Inc() }

func (m *Metrics) ObserveInference(d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.InferenceDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) ObservePrediction(label string) {
	m.Predictions.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveFailure(err error) {
	reason := "inference"
	if errors.Is(err, sentiment.ErrInvalidInput) {
		reason = "invalid_input"
	}
	m.PredictionErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetBreakerState(name string, state float64) {
	m.BreakerState.WithLabelValues(name).Set(state)
}
