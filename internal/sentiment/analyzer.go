package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	ironyConfidenceFactor = 0.5
	ironyConfidenceFloor  = 0.1
	fallbackConfidence    = 0.5
)

// Classifier is a pretrained text classifier. Classify must be safe for
// concurrent use once Load has returned successfully.
type Classifier interface {
	Load(ctx context.Context) error
	Classify(ctx context.Context, text string) (Prediction, error)
	Close() error
}

// Observer receives analysis events. monitoring.Metrics implements it.
type Observer interface {
	CacheHit()
	CacheMiss()
	IronyCorrected()
	SegmentFailed()
	ObserveInference(d time.Duration, err error)
}

type AnalyzerConfig struct {
	ModelName     string
	CacheCapacity int
	IronyPhrases  []string
	Observer      Observer
}

type Analyzer struct {
	classifier Classifier
	modelName  string
	irony      *IronyDetector
	cache      *FIFOCache
	observer   Observer

	loadMu sync.Mutex
	loaded bool
}

// NewAnalyzer is cheap: the model is bound on EnsureLoaded or the first Analyze.
func NewAnalyzer(classifier Classifier, cfg AnalyzerConfig) *Analyzer {
	phrases := cfg.IronyPhrases
	if phrases == nil {
		phrases = DefaultIronyPhrases
	}

	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}

	slog.Info("[Analyzer] Created",
		slog.String("model", cfg.ModelName),
		slog.Int("irony_phrases", len(phrases)))

	return &Analyzer{
		classifier: classifier,
		modelName:  cfg.ModelName,
		irony:      NewIronyDetector(phrases),
		cache:      NewFIFOCache(cfg.CacheCapacity),
		observer:   observer,
	}
}

func (a *Analyzer) ModelName() string {
	return a.modelName
}

func (a *Analyzer) CacheSize() int {
	return a.cache.Len()
}

// EnsureLoaded loads the model once. A failed load is retried by the next call.
func (a *Analyzer) EnsureLoaded(ctx context.Context) error {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	if a.loaded {
		return nil
	}

	start := time.Now()
	slog.Info("[Analyzer] Loading model", slog.String("model", a.modelName))
	if err := a.classifier.Load(ctx); err != nil {
		slog.Error("[Analyzer] Failed to load model",
			slog.String("model", a.modelName),
			slog.String("error", err.Error()))
		return fmt.Errorf("load model %s: %w", a.modelName, err)
	}

	a.loaded = true
	slog.Info("[Analyzer] Model loaded",
		slog.String("model", a.modelName),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func (a *Analyzer) Close() error {
	return a.classifier.Close()
}

// Analyze classifies text. Identical text is served from the cache.
func (a *Analyzer) Analyze(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrInvalidInput
	}

	key := CacheKey(text)
	if cached, ok := a.cache.Get(key); ok {
		a.observer.CacheHit()
		slog.Debug("[Analyzer] Cache hit", slog.String("key", key))
		return cached, nil
	}
	a.observer.CacheMiss()

	ironyDetected := a.irony.Detect(text)

	if err := a.EnsureLoaded(ctx); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInferenceFailure, err)
	}

	var (
		label      Label
		confidence float64
		err        error
	)
	if isLongText(text) {
		label, confidence, err = a.classifyLong(ctx, text)
	} else {
		label, confidence, err = a.classifyShort(ctx, text)
	}
	if err != nil {
		return Result{}, err
	}

	if ironyDetected && label == Positive {
		label = Negative
		confidence = max(ironyConfidenceFloor, confidence*ironyConfidenceFactor)
		a.observer.IronyCorrected()
	}

	result := Result{
		Text:          text,
		Sentiment:     label,
		Confidence:    clampConfidence(confidence),
		IronyDetected: ironyDetected,
		ModelUsed:     a.modelName,
	}

	if evicted := a.cache.Put(key, result); evicted {
		slog.Debug("[Analyzer] Evicted oldest cache entry",
			slog.Int("capacity", a.cache.Capacity()))
	}
	return result, nil
}

func (a *Analyzer) classifyShort(ctx context.Context, text string) (Label, float64, error) {
	start := time.Now()
	prediction, err := a.classifier.Classify(ctx, text)
	a.observer.ObserveInference(time.Since(start), err)
	if err != nil {
		slog.Error("[Analyzer] Inference failed",
			slog.String("model", a.modelName),
			slog.String("error", err.Error()))
		return "", 0, fmt.Errorf("%w: %w", ErrInferenceFailure, err)
	}
	return NormalizeLabel(prediction.Label), prediction.Score, nil
}

// classifyLong scores each sentence on its own. Failed sentences are skipped;
// if none succeed the result falls back to neutral at 0.5.
func (a *Analyzer) classifyLong(ctx context.Context, text string) (Label, float64, error) {
	units := SplitSentences(text)

	counts := make(map[Label]int, 3)
	var (
		total     float64
		succeeded int
	)
	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			return "", 0, fmt.Errorf("%w: %w", ErrInferenceFailure, err)
		}

		start := time.Now()
		prediction, err := a.classifier.Classify(ctx, truncateRunes(unit, MaxSegmentRunes))
		a.observer.ObserveInference(time.Since(start), err)
		if err != nil {
			a.observer.SegmentFailed()
			slog.Warn("[Analyzer] Failed to classify text segment",
				slog.Int("segment", i),
				slog.String("error", err.Error()))
			continue
		}

		counts[NormalizeLabel(prediction.Label)]++
		total += prediction.Score
		succeeded++
	}

	slog.Debug("[Analyzer] Long text classified",
		slog.Int("segments", len(units)),
		slog.Int("succeeded", succeeded))

	if succeeded == 0 {
		return Neutral, fallbackConfidence, nil
	}
	return pluralityLabel(counts), total / float64(succeeded), nil
}

// pluralityLabel returns the label with a strict plurality, otherwise Neutral.
func pluralityLabel(counts map[Label]int) Label {
	pos, neg, neu := counts[Positive], counts[Negative], counts[Neutral]
	switch {
	case pos > neg && pos > neu:
		return Positive
	case neg > pos && neg > neu:
		return Negative
	default:
		return Neutral
	}
}

type noopObserver struct{}

func (noopObserver) CacheHit()                             {}
func (noopObserver) CacheMiss()                            {}
func (noopObserver) IronyCorrected()                       {}
func (noopObserver) SegmentFailed()                        {}
func (noopObserver) ObserveInference(time.Duration, error) {}

