package monitoring

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spacesedan/sentibot/internal/sentiment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersOnCallerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	assert.Panics(t, func() { NewMetrics(reg) }, "second registration on the same registry must clash")
	assert.NotPanics(t, func() { NewMetrics(prometheus.NewRegistry()) })
}

func TestMetrics_ObserverEvents(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()
	m.IronyCorrected()
	m.SegmentFailed()
	m.LimitExceeded()
	m.ObservePrediction("positive")
	m.ObserveFailure(fmt.Errorf("wrap: %w", sentiment.ErrInvalidInput))
	m.ObserveFailure(errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IronyCorrections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SegmentFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues("positive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionErrors.WithLabelValues("invalid_input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionErrors.WithLabelValues("inference")))
}

func TestMetrics_ObserveInference(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveInference(20*time.Millisecond, nil)
	m.ObserveInference(time.Second, errors.New("timeout"))

	assert.Equal(t, 2, testutil.CollectAndCount(m.InferenceDuration))

	m.SetBreakerState("huggingface", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("huggingface")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
