package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spacesedan/sentibot/internal/events"
	"github.com/spacesedan/sentibot/internal/models"
	"github.com/spacesedan/sentibot/internal/monitoring"
	"github.com/spacesedan/sentibot/internal/sentiment"
	"github.com/spacesedan/sentibot/internal/stats"
)

const (
	SERVICE_NAME    = "Sentiment Analysis API"
	SERVICE_VERSION = "2.0.0"

	ANALYSIS_FAILED_DETAIL = "Ошибка при анализе текста"
	INTERNAL_ERROR_DETAIL  = "Внутренняя ошибка сервера"
	INVALID_USER_DETAIL    = "user_id must be an integer"
)

type Handler struct {
	analyzer atomic.Pointer[sentiment.Analyzer]
	// inflight is read-held by every prediction so a swap can wait for them.
	inflight sync.RWMutex

	modelName string
	tracker   *stats.Tracker
	publisher events.Publisher
	metrics   *monitoring.Metrics
	now       func() time.Time
}

func NewHandler(modelName string, tracker *stats.Tracker, publisher events.Publisher, metrics *monitoring.Metrics) *Handler {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Handler{
		modelName: modelName,
		tracker:   tracker,
		publisher: publisher,
		metrics:   metrics,
		now:       time.Now,
	}
}

// SetAnalyzer installs a for new requests. The handler owns a from here on:
// the analyzer it replaces is closed once in-flight predictions on it finish.
func (h *Handler) SetAnalyzer(a *sentiment.Analyzer) {
	h.inflight.Lock()
	old := h.analyzer.Swap(a)
	h.inflight.Unlock()

	if old == nil || old == a {
		return
	}
	slog.Info("[Handler] Analyzer replaced",
		slog.String("old_model", old.ModelName()))
	if err := old.Close(); err != nil {
		slog.Warn("[Handler] Failed to close replaced analyzer",
			slog.String("model", old.ModelName()),
			slog.String("error", err.Error()))
	}
}

// Close releases the installed analyzer after in-flight predictions finish.
func (h *Handler) Close() error {
	h.inflight.Lock()
	old := h.analyzer.Swap(nil)
	h.inflight.Unlock()

	if old == nil {
		return nil
	}
	return old.Close()
}

func (h *Handler) Analyzer() *sentiment.Analyzer {
	return h.analyzer.Load()
}

func (h *Handler) currentModel() string {
	if a := h.analyzer.Load(); a != nil {
		return a.ModelName()
	}
	return h.modelName
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, models.ServiceInfo{
		Service: SERVICE_NAME,
		Version: SERVICE_VERSION,
		Model:   h.currentModel(),
		Endpoints: map[string]string{
			"POST /predict":        "Анализ тональности",
			"GET /health":          "Проверка здоровья",
			"GET /stats":           "Статистика сервиса",
			"GET /stats/{user_id}": "Статистика пользователя",
			"GET /metrics":         "Метрики Prometheus",
		},
	})
}

func (h *Handler) Predict(c *gin.Context) {
	var req models.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.ObserveFailure(sentiment.ErrInvalidInput)
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Detail: err.Error()})
		return
	}
	userID := req.User()

	h.inflight.RLock()
	defer h.inflight.RUnlock()

	analyzer := h.analyzer.Load()
	if analyzer == nil {
		slog.Error("[Handler] Predict called before the analyzer was ready")
		h.tracker.RecordError()
		h.metrics.ObserveFailure(sentiment.ErrInferenceFailure)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Detail: ANALYSIS_FAILED_DETAIL})
		return
	}

	result, err := analyzer.Analyze(c.Request.Context(), req.Text)
	if err != nil {
		h.metrics.ObserveFailure(err)
		if errors.Is(err, sentiment.ErrInvalidInput) {
			c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Detail: "text must contain non-whitespace characters"})
			return
		}
		h.tracker.RecordError()
		slog.Error("[Handler] Analysis failed",
			slog.Any("user_id", userID),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Detail: ANALYSIS_FAILED_DETAIL})
		return
	}

	h.tracker.Record(userID, result.Sentiment)
	h.metrics.ObservePrediction(string(result.Sentiment))
	h.publisher.Publish(userID, req.Text, result)

	slog.Info("[Handler] Prediction served",
		slog.Any("user_id", userID),
		slog.String("sentiment", string(result.Sentiment)),
		slog.Float64("confidence", result.Confidence),
		slog.Bool("irony_detected", result.IronyDetected))

	c.JSON(http.StatusOK, models.PredictResponse{
		Text:          result.Text,
		Sentiment:     string(result.Sentiment),
		Confidence:    result.Confidence,
		IronyDetected: result.IronyDetected,
		ModelUsed:     result.ModelUsed,
		Timestamp:     h.now(),
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().Format(time.RFC3339Nano),
	})
}

func (h *Handler) ServiceStats(c *gin.Context) {
	out := h.tracker.Service()
	if a := h.analyzer.Load(); a != nil {
		out.CacheSize = a.CacheSize()
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) UserStats(c *gin.Context) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("user_id")), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Detail: INVALID_USER_DETAIL})
		return
	}
	c.JSON(http.StatusOK, h.tracker.User(id))
}
