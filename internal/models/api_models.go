package models

import "time"

const MaxTextLength = 5000

type PredictRequest struct {
	Text   string `json:"text" binding:"required,min=1,max=5000"`
	UserID *int64 `json:"userId,omitempty"`
	// user_id is accepted for clients that send snake_case.
	UserIDSnake *int64 `json:"user_id,omitempty"`
}

// User returns the caller's user id, preferring "userId".
func (r PredictRequest) User() *int64 {
	if r.UserID != nil {
		return r.UserID
	}
	return r.UserIDSnake
}

type PredictResponse struct {
	Text          string    `json:"text"`
	Sentiment     string    `json:"sentiment"`
	Confidence    float64   `json:"confidence"`
	IronyDetected bool      `json:"irony_detected"`
	ModelUsed     string    `json:"model_used"`
	Timestamp     time.Time `json:"timestamp"`
}

type UserStats struct {
	TotalRequests int     `json:"total_requests"`
	Positive      int     `json:"positive"`
	Negative      int     `json:"negative"`
	Neutral       int     `json:"neutral"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type ServiceStats struct {
	TotalRequests int `json:"total_requests"`
	Positive      int `json:"positive"`
	Negative      int `json:"negative"`
	Neutral       int `json:"neutral"`
	Errors        int `json:"errors"`
	CacheSize     int `json:"cache_size"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type ServiceInfo struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Model     string            `json:"model"`
	Endpoints map[string]string `json:"endpoints"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
