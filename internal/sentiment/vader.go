package sentiment

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"
)

const (
	VaderModelName = "vader"

	vaderThreshold = 0.20
)

var (
	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tagPattern  = regexp.MustCompile(`<[^>]+>`)
)

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1") // Keep only the text
	return urlPattern.ReplaceAllString(input, "")
}

func ConvertMarkdownToText(input string) string {
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plainText := tagPattern.ReplaceAllString(string(output), " ")
	plainText = strings.Join(strings.Fields(plainText), " ")

	return RemoveLinks(plainText)
}

// VaderClassifier is a lexicon classifier that needs no model files. It
// only understands English well and serves as an offline fallback.
type VaderClassifier struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderClassifier() *VaderClassifier {
	return &VaderClassifier{}
}

func (v *VaderClassifier) Load(context.Context) error {
	if v.analyzer == nil {
		v.analyzer = govader.NewSentimentIntensityAnalyzer()
	}
	return nil
}

func (v *VaderClassifier) Classify(_ context.Context, text string) (Prediction, error) {
	plainText := ConvertMarkdownToText(text)
	score := v.analyzer.PolarityScores(plainText).Compound
	return vaderPrediction(score), nil
}

func (v *VaderClassifier) Close() error {
	return nil
}

// vaderPrediction maps a compound score in [-1,1] onto a label and a [0,1]
// score: polar labels land in [0.5,1], neutral gets 1-|compound|.
func vaderPrediction(compound float64) Prediction {
	magnitude := math.Abs(compound)
	switch {
	case compound >= vaderThreshold:
		return Prediction{Label: "POSITIVE", Score: 0.5 + magnitude/2}
	case compound <= -vaderThreshold:
		return Prediction{Label: "NEGATIVE", Score: 0.5 + magnitude/2}
	default:
		return Prediction{Label: "NEUTRAL", Score: 1 - magnitude}
	}
}
