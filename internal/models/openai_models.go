package models

type OpenAISentimentResponse struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}
