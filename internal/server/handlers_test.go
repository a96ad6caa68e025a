package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spacesedan/sentibot/internal/models"
	"github.com/spacesedan/sentibot/internal/monitoring"
	"github.com/spacesedan/sentibot/internal/ratelimit"
	"github.com/spacesedan/sentibot/internal/sentiment"
	"github.com/spacesedan/sentibot/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	mu      sync.Mutex
	label   string
	err     error
	calls   int
	closed  int
	started chan struct{}
	release chan struct{}
}

func (f *fakeClassifier) Load(context.Context) error { return nil }

func (f *fakeClassifier) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeClassifier) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeClassifier) Classify(context.Context, string) (sentiment.Prediction, error) {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return sentiment.Prediction{}, f.err
	}
	return sentiment.Prediction{Label: f.label, Score: 0.9}, nil
}

type recordingPublisher struct {
	published []sentiment.Result
}

func (r *recordingPublisher) Publish(_ *int64, _ string, res sentiment.Result) {
	r.published = append(r.published, res)
}
func (r *recordingPublisher) Close() {}

type testEnv struct {
	server     *Server
	classifier *fakeClassifier
	tracker    *stats.Tracker
	publisher  *recordingPublisher
}

func setupTestServer(t *testing.T, maxRequests int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	classifier := &fakeClassifier{label: "POSITIVE"}
	tracker := stats.NewTracker(clockwork.NewFakeClock())
	publisher := &recordingPublisher{}

	handler := NewHandler("test-model", tracker, publisher, metrics)
	handler.SetAnalyzer(sentiment.NewAnalyzer(classifier, sentiment.AnalyzerConfig{
		ModelName:     "test-model",
		CacheCapacity: 10,
		Observer:      metrics,
	}))

	srv := NewServer(handler, ServerConfig{
		Addr:     ":0",
		Limiter:  ratelimit.NewMemoryLimiter(maxRequests, time.Minute, clockwork.NewFakeClock()),
		Gatherer: reg,
	})
	gin.SetMode(gin.TestMode)

	return &testEnv{server: srv, classifier: classifier, tracker: tracker, publisher: publisher}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Router.ServeHTTP(w, req)
	return w
}

func TestPredict_Success(t *testing.T) {
	env := setupTestServer(t, 30)

	w := env.do(http.MethodPost, "/predict", map[string]any{"text": "Отличный сервис!", "userId": 42})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Отличный сервис!", resp.Text)
	assert.Equal(t, "positive", resp.Sentiment)
	assert.InDelta(t, 0.9, resp.Confidence, 1e-9)
	assert.Equal(t, "test-model", resp.ModelUsed)
	assert.False(t, resp.Timestamp.IsZero())

	assert.Equal(t, 1, env.tracker.User(42).Positive)
	assert.Len(t, env.publisher.published, 1)
}

func TestPredict_SnakeCaseUserID(t *testing.T) {
	env := setupTestServer(t, 30)

	w := env.do(http.MethodPost, "/predict", map[string]any{"text": "ok", "user_id": 5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.tracker.User(5).TotalRequests)
}

func TestPredict_IronyFlipsPositive(t *testing.T) {
	env := setupTestServer(t, 30)

	w := env.do(http.MethodPost, "/predict", map[string]any{"text": "Ну конечно, просто супер"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "negative", resp.Sentiment)
	assert.True(t, resp.IronyDetected)
	assert.InDelta(t, 0.45, resp.Confidence, 1e-9)
}

func TestPredict_ValidationErrors(t *testing.T) {
	env := setupTestServer(t, 30)

	tests := []struct {
		name string
		body any
	}{
		{name: "missing text", body: map[string]any{"userId": 1}},
		{name: "empty text", body: map[string]any{"text": ""}},
		{name: "whitespace only", body: map[string]any{"text": "   \n\t"}},
		{name: "too long", body: map[string]any{"text": strings.Repeat("я", models.MaxTextLength+1)}},
		{name: "wrong type", body: map[string]any{"text": 12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/predict", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		})
	}
	assert.Equal(t, 0, env.classifier.calls)
}

func TestPredict_MaxLengthAccepted(t *testing.T) {
	env := setupTestServer(t, 30)

	w := env.do(http.MethodPost, "/predict", map[string]any{"text": strings.Repeat("я", models.MaxTextLength)})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPredict_InferenceFailure(t *testing.T) {
	env := setupTestServer(t, 30)
	env.classifier.err = errors.New("model crashed")

	w := env.do(http.MethodPost, "/predict", map[string]any{"text": "hello", "userId": 9})
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ANALYSIS_FAILED_DETAIL, resp.Detail)
	assert.Equal(t, 1, env.tracker.Service().Errors)
	assert.Equal(t, 0, env.tracker.User(9).TotalRequests)
	assert.Empty(t, env.publisher.published)
}

func TestPredict_NoAnalyzer(t *testing.T) {
	env := setupTestServer(t, 30)
	env.server.Handler.SetAnalyzer(nil)

	w := env.do(http.MethodPost, "/predict", map[string]any{"text": "hello"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPredict_RateLimited(t *testing.T) {
	env := setupTestServer(t, 2)

	for i := 0; i < 2; i++ {
		w := env.do(http.MethodPost, "/predict", map[string]any{"text": "hi"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(http.MethodPost, "/predict", map[string]any{"text": "hi"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ratelimit.LIMIT_EXCEEDED_DETAIL, resp.Detail)

	// other endpoints are not limited
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health", nil).Code)
}

func TestPredict_CachedResultSkipsInference(t *testing.T) {
	env := setupTestServer(t, 30)

	env.do(http.MethodPost, "/predict", map[string]any{"text": "same text"})
	env.do(http.MethodPost, "/predict", map[string]any{"text": "same text"})

	assert.Equal(t, 1, env.classifier.calls)
}

func TestSetAnalyzer_SwapsModelAndClosesOld(t *testing.T) {
	env := setupTestServer(t, 30)

	next := &fakeClassifier{label: "NEGATIVE"}
	env.server.Handler.SetAnalyzer(sentiment.NewAnalyzer(next, sentiment.AnalyzerConfig{
		ModelName:     "next-model",
		CacheCapacity: 10,
	}))
	assert.Equal(t, 1, env.classifier.closeCount())

	w := env.do(http.MethodPost, "/predict", map[string]any{"text": "Отличный сервис!"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "next-model", resp.ModelUsed)
	assert.Equal(t, "negative", resp.Sentiment)
	assert.Equal(t, 0, env.classifier.calls)

	w = env.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info models.ServiceInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "next-model", info.Model)

	require.NoError(t, env.server.Handler.Close())
	assert.Equal(t, 1, next.closeCount())
}

func TestSetAnalyzer_WaitsForInFlightPredictions(t *testing.T) {
	env := setupTestServer(t, 30)
	env.classifier.started = make(chan struct{})
	env.classifier.release = make(chan struct{})

	predicted := make(chan int)
	go func() {
		predicted <- env.do(http.MethodPost, "/predict", map[string]any{"text": "slow"}).Code
	}()
	<-env.classifier.started

	swapped := make(chan struct{})
	go func() {
		env.server.Handler.SetAnalyzer(sentiment.NewAnalyzer(&fakeClassifier{label: "NEUTRAL"},
			sentiment.AnalyzerConfig{ModelName: "next-model", CacheCapacity: 10}))
		close(swapped)
	}()

	select {
	case <-swapped:
		t.Fatal("analyzer swapped while a prediction was running on it")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, env.classifier.closeCount())

	close(env.classifier.release)
	assert.Equal(t, http.StatusOK, <-predicted)
	<-swapped
	assert.Equal(t, 1, env.classifier.closeCount())
}

func TestRoot(t *testing.T) {
	env := setupTestServer(t, 30)

	w := env.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info models.ServiceInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, SERVICE_NAME, info.Service)
	assert.Equal(t, "test-model", info.Model)
	assert.Contains(t, info.Endpoints, "POST /predict")
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t, 30)

	w := env.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	_, err := time.Parse(time.RFC3339Nano, resp.Timestamp)
	assert.NoError(t, err)
}

func TestStats(t *testing.T) {
	env := setupTestServer(t, 30)

	env.do(http.MethodPost, "/predict", map[string]any{"text": "a", "userId": 3})
	env.classifier.label = "NEGATIVE"
	env.do(http.MethodPost, "/predict", map[string]any{"text": "b", "userId": 3})

	w := env.do(http.MethodGet, "/stats/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var user models.UserStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, 2, user.TotalRequests)
	assert.Equal(t, 1, user.Positive)
	assert.Equal(t, 1, user.Negative)

	w = env.do(http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var service models.ServiceStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &service))
	assert.Equal(t, 2, service.TotalRequests)
	assert.Equal(t, 2, service.CacheSize)

	w = env.do(http.MethodGet, "/stats/999", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, models.UserStats{}, user)

	assert.Equal(t, http.StatusUnprocessableEntity, env.do(http.MethodGet, "/stats/abc", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestServer(t, 30)
	env.do(http.MethodPost, "/predict", map[string]any{"text": "x"})

	w := env.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sentibot_predictions_total")
}
