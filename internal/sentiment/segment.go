package sentiment

import (
	"strings"
	"unicode/utf8"
)

const (
	// LongTextThreshold is the rune count above which text is classified per sentence.
	LongTextThreshold = 2000
	// MaxSegmentRunes caps each sentence before it reaches the classifier.
	MaxSegmentRunes = 1000
)

// SplitSentences cuts text after every '.', '!' or '?'. The trailing partial
// sentence is kept. Units are trimmed and empty ones dropped.
func SplitSentences(text string) []string {
	var (
		units []string
		start int
	)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			end := i + utf8.RuneLen(r)
			if unit := strings.TrimSpace(text[start:end]); unit != "" {
				units = append(units, unit)
			}
			start = end
		}
	}
	if unit := strings.TrimSpace(text[start:]); unit != "" {
		units = append(units, unit)
	}
	return units
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func isLongText(text string) bool {
	return utf8.RuneCountInString(text) > LongTextThreshold
}
