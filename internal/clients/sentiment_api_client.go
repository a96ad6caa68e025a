package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spacesedan/sentibot/internal/models"
)

const (
	analyzeTimeout = 10 * time.Second
	statsTimeout   = 5 * time.Second
)

// SentimentAPIClient is what the chat-bot front end uses to reach the API.
type SentimentAPIClient struct {
	Client  *http.Client
	baseURL string
	retry   RetryPolicy
}

func NewSentimentAPIClient(baseURL string, retry RetryPolicy) *SentimentAPIClient {
	return &SentimentAPIClient{
		Client:  &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		retry:   retry,
	}
}

func (s *SentimentAPIClient) Analyze(ctx context.Context, text string, userID *int64) (models.PredictResponse, error) {
	var result models.PredictResponse

	preview := []rune(text)
	if len(preview) > 50 {
		preview = preview[:50]
	}
	slog.Info("[SentimentAPIClient] Requesting analysis",
		slog.Any("user_id", userID),
		slog.String("text", string(preview)))

	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	body, err := json.Marshal(models.PredictRequest{Text: text, UserID: userID})
	if err != nil {
		return result, fmt.Errorf("failed to marshal input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := DoWithRetry(ctx, s.Client, req, s.retry)
	if err != nil {
		slog.Error("[SentimentAPIClient] Request failed",
			slog.String("error", err.Error()))
		return result, fmt.Errorf("request failed after retries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		slog.Error("[SentimentAPIClient] API error",
			slog.Int("status", resp.StatusCode),
			slog.String("detail", apiErr.Detail))
		return result, &APIError{StatusCode: resp.StatusCode, Detail: apiErr.Detail}
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("failed to decode response: %w", err)
	}
	return result, nil
}

// FetchStats returns zero counters when the API cannot be reached.
func (s *SentimentAPIClient) FetchStats(ctx context.Context) models.ServiceStats {
	var stats models.ServiceStats

	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/stats", nil)
	if err != nil {
		slog.Error("[SentimentAPIClient] Failed to build stats request",
			slog.String("error", err.Error()))
		return stats
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		slog.Error("[SentimentAPIClient] Stats request failed",
			slog.String("error", err.Error()))
		return stats
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Error("[SentimentAPIClient] Failed to fetch stats",
			slog.Int("status", resp.StatusCode))
		return stats
	}

	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		slog.Error("[SentimentAPIClient] Failed to decode stats",
			slog.String("error", err.Error()))
		return models.ServiceStats{}
	}
	return stats
}

type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("sentiment API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("sentiment API returned status %d: %s", e.StatusCode, e.Detail)
}

var sentimentDisplay = map[string]string{
	"positive": "☀️ Позитивная",
	"negative": "⛈️ Негативная",
	"neutral":  "☁️ Нейтральная",
}

// FormatResult renders the chat reply for an analysis result.
func FormatResult(result models.PredictResponse) string {
	display, ok := sentimentDisplay[result.Sentiment]
	if !ok {
		display = "⚪ " + result.Sentiment
	}

	text := []rune(result.Text)
	quoted := string(text)
	if len(text) > 100 {
		quoted = string(text[:100]) + "..."
	}

	return fmt.Sprintf(
		"🎭 <b>Результат анализа:</b>\n\n"+
			"💬 <b>Ваш текст:</b>\n<code>%s</code>\n\n"+
			"📊 <b>Тональность:</b> %s\n"+
			"🎯 <b>Точность:</b> %.1f%%\n",
		quoted, display, result.Confidence*100)
}

// FormatStats renders service counters. Errors are whatever total is not
// accounted for by a sentiment label.
func FormatStats(stats models.ServiceStats) string {
	successful := stats.Positive + stats.Negative + stats.Neutral
	errors := 0
	if stats.TotalRequests >= successful {
		errors = stats.TotalRequests - successful
	}
	denominator := float64(stats.TotalRequests)
	if denominator == 0 {
		denominator = 1
	}

	return fmt.Sprintf(
		"📊 <b>Статистика использования:</b>\n\n"+
			"• Всего запросов: %d\n"+
			"• Успешных: %d\n"+
			"• Ошибок: %d\n\n"+
			"<b>тональности запросов:</b>\n"+
			"☀️ Позитивных: %d (%.1f%%)\n"+
			"⛈️ Негативных: %d (%.1f%%)\n"+
			"☁️ Нейтральных: %d (%.1f%%)\n",
		stats.TotalRequests, successful, errors,
		stats.Positive, float64(stats.Positive)/denominator*100,
		stats.Negative, float64(stats.Negative)/denominator*100,
		stats.Neutral, float64(stats.Neutral)/denominator*100)
}
