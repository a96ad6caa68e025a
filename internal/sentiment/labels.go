package sentiment

import "strings"

// labelMap translates raw classifier labels, upper-cased, into the closed
// label set. Anything missing here resolves to Neutral.
var labelMap = map[string]Label{
	"POSITIVE": Positive,
	"NEGATIVE": Negative,
	"NEUTRAL":  Neutral,
	"POS":      Positive,
	"NEG":      Negative,
	"NEU":      Neutral,
	// cardiffnlp/twitter-roberta style heads
	"LABEL_0": Negative,
	"LABEL_1": Neutral,
	"LABEL_2": Positive,
}

func NormalizeLabel(raw string) Label {
	if l, ok := labelMap[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return l
	}
	return Neutral
}
