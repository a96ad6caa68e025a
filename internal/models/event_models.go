package models

import "time"

// ResultEvent is published after each successful prediction. The raw text is
// replaced by its hash.
type ResultEvent struct {
	EventID       string    `json:"event_id"`
	UserID        *int64    `json:"user_id,omitempty"`
	Sentiment     string    `json:"sentiment"`
	Confidence    float64   `json:"confidence"`
	IronyDetected bool      `json:"irony_detected"`
	ModelUsed     string    `json:"model_used"`
	TextHash      string    `json:"text_hash"`
	CreatedAt     time.Time `json:"created_at"`
}
