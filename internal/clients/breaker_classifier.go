package clients

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/spacesedan/sentibot/internal/sentiment"
)

const (
	BREAKER_MIN_REQUESTS  = 5
	BREAKER_FAILURE_RATIO = 0.6
	BREAKER_OPEN_TIMEOUT  = 30 * time.Second
)

// BreakerClassifier stops calling a remote backend once most recent calls
// failed, and probes it again after the open timeout.
type BreakerClassifier struct {
	inner sentiment.Classifier
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerClassifier(name string, inner sentiment.Classifier, onState func(name string, state float64)) *BreakerClassifier {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     BREAKER_OPEN_TIMEOUT,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= BREAKER_MIN_REQUESTS &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= BREAKER_FAILURE_RATIO
		},
		// caller cancellations say nothing about the backend
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("[BreakerClassifier] Circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if onState != nil {
				onState(name, breakerStateValue(to))
			}
		},
	}
	return &BreakerClassifier{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (b *BreakerClassifier) Load(ctx context.Context) error {
	return b.inner.Load(ctx)
}

func (b *BreakerClassifier) Close() error {
	return b.inner.Close()
}

func (b *BreakerClassifier) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerClassifier) Classify(ctx context.Context, text string) (sentiment.Prediction, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Classify(ctx, text)
	})
	if err != nil {
		return sentiment.Prediction{}, err
	}
	return out.(sentiment.Prediction), nil
}
