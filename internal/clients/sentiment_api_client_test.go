package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spacesedan/sentibot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryPolicy{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

func TestSentimentAPIClient_AnalyzeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)

		var req models.PredictRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Сегодня отличная погода!", req.Text)
		if assert.NotNil(t, req.UserID) {
			assert.Equal(t, int64(7), *req.UserID)
		}

		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.PredictResponse{
			Text:       req.Text,
			Sentiment:  "positive",
			Confidence: 0.91,
			Timestamp:  time.Now(),
		})
	}))
	defer server.Close()

	userID := int64(7)
	client := NewSentimentAPIClient(server.URL, fastRetry)
	res, err := client.Analyze(context.Background(), "Сегодня отличная погода!", &userID)
	require.NoError(t, err)

	assert.Equal(t, "positive", res.Sentiment)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSentimentAPIClient_AnalyzeClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":"Превышен лимит запросов. Попробуйте позже."}`))
	}))
	defer server.Close()

	client := NewSentimentAPIClient(server.URL, fastRetry)
	_, err := client.Analyze(context.Background(), "text", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSentimentAPIClient_FetchStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats", r.URL.Path)
		_, _ = w.Write([]byte(`{"total_requests":5,"positive":2,"negative":1,"neutral":1,"errors":1}`))
	}))
	defer server.Close()

	stats := NewSentimentAPIClient(server.URL, fastRetry).FetchStats(context.Background())
	assert.Equal(t, 5, stats.TotalRequests)
	assert.Equal(t, 2, stats.Positive)
	assert.Equal(t, 1, stats.Errors)
}

func TestSentimentAPIClient_FetchStatsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	stats := NewSentimentAPIClient(server.URL, fastRetry).FetchStats(context.Background())
	assert.Equal(t, models.ServiceStats{}, stats)
}

func TestFormatResult(t *testing.T) {
	out := FormatResult(models.PredictResponse{
		Text:       strings.Repeat("а", 120),
		Sentiment:  "negative",
		Confidence: 0.456,
	})

	assert.Contains(t, out, "⛈️ Негативная")
	assert.Contains(t, out, "45.6%")
	assert.Contains(t, out, strings.Repeat("а", 100)+"...")

	out = FormatResult(models.PredictResponse{Text: "x", Sentiment: "mixed", Confidence: 1})
	assert.Contains(t, out, "⚪ mixed")
}

func TestFormatStats(t *testing.T) {
	out := FormatStats(models.ServiceStats{TotalRequests: 4, Positive: 2, Negative: 1})
	assert.Contains(t, out, "Всего запросов: 4")
	assert.Contains(t, out, "Успешных: 3")
	assert.Contains(t, out, "Ошибок: 1")
	assert.Contains(t, out, "Позитивных: 2 (50.0%)")

	empty := FormatStats(models.ServiceStats{})
	assert.Contains(t, empty, "Нейтральных: 0 (0.0%)")
}
