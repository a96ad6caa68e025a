package sentiment

import "math"

type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

func (l Label) Valid() bool {
	switch l {
	case Positive, Negative, Neutral:
		return true
	}
	return false
}

// Result is the outcome of one analysis. It is returned by value and never
// modified after it has been built, so cached copies can be handed out as is.
type Result struct {
	Text          string  `json:"text"`
	Sentiment     Label   `json:"sentiment"`
	Confidence    float64 `json:"confidence"`
	IronyDetected bool    `json:"irony_detected"`
	ModelUsed     string  `json:"model_used"`
}

// Prediction is the top label a classifier produced for one input.
type Prediction struct {
	Label string
	Score float64
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
