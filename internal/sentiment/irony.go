package sentiment

import (
	"fmt"
	"os"
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"gopkg.in/yaml.v3"
)

// DefaultIronyPhrases are the built-in ironic-agreement markers, used when no
// phrase file is configured.
var DefaultIronyPhrases = []string{
	"ну конечно",
	"ещё бы",
	"как же",
	"вот именно",
	"просто блестяще",
	"просто прекрасно",
	"само собой",
	"разумеется",
	"естественно",
	"ну ты и молодец",
	"спасибо, конечно",
	"ну да, ну да",
}

type ironyPhraseFile struct {
	Phrases []string `yaml:"phrases"`
}

// LoadIronyPhrases reads a YAML document of the form `phrases: [...]`.
func LoadIronyPhrases(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read irony phrases: %w", err)
	}

	var doc ironyPhraseFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse irony phrases %s: %w", path, err)
	}
	return doc.Phrases, nil
}

// IronyDetector reports whether lower-cased text contains any known phrase.
// The matcher keeps per-call scratch state, so Match runs under mu.
type IronyDetector struct {
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
	phrases []string
}

func NewIronyDetector(phrases []string) *IronyDetector {
	normalized := make([]string, 0, len(phrases))
	seen := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		// an empty phrase would match every text
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		normalized = append(normalized, p)
	}

	d := &IronyDetector{phrases: normalized}
	if len(normalized) > 0 {
		d.matcher = ahocorasick.NewStringMatcher(normalized)
	}
	return d
}

func (d *IronyDetector) Detect(text string) bool {
	if d == nil || d.matcher == nil {
		return false
	}
	lowered := []byte(strings.ToLower(text))

	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.matcher.Match(lowered)) > 0
}

func (d *IronyDetector) Phrases() []string {
	out := make([]string, len(d.phrases))
	copy(out, d.phrases)
	return out
}
