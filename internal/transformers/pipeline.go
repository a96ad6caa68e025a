package transformers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/spacesedan/sentibot/internal/sentiment"
)

const (
	pipelineName = "sentimentPipeline"

	DEFAULT_MAX_SEQUENCE_LENGTH = 512
	// [CLS] and [SEP] take two positions of every sequence.
	SPECIAL_TOKENS = 2
)

var ErrNotLoaded = errors.New("pipeline not loaded")

type PipelineConfig struct {
	// ModelName is a Hugging Face repo id such as "owner/model".
	ModelName string
	// ModelDir holds downloaded models, one sub directory per repo.
	ModelDir string
	// OnnxLibraryPath points at libonnxruntime; empty uses the hugot default.
	OnnxLibraryPath string
	// MaxSequenceLength caps the tokens fed to the model. Zero means
	// DEFAULT_MAX_SEQUENCE_LENGTH. A smaller max_position_embeddings in the
	// model's config.json wins.
	MaxSequenceLength int
}

// Pipeline runs a text-classification model locally through ONNX Runtime.
type Pipeline struct {
	cfg PipelineConfig

	mu       sync.RWMutex
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
	maxRunes int
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// ModelPath is where DownloadModel stores the repo.
func ModelPath(modelDir, modelName string) string {
	return filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
}

// EnsureModel downloads the model unless it is already on disk.
func EnsureModel(modelDir, modelName string) (string, error) {
	if err := os.MkdirAll(modelDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	modelPath := ModelPath(modelDir, modelName)
	if _, err := os.Stat(modelPath); err == nil {
		slog.Info("[Transformers] Using existing model", slog.String("path", modelPath))
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat model path: %w", err)
	}

	slog.Info("[Transformers] Model not found, downloading...",
		slog.String("model", modelName))
	downloaded, err := hugot.DownloadModel(modelName, modelDir, hugot.NewDownloadOptions())
	if err != nil {
		return "", fmt.Errorf("download model %s: %w", modelName, err)
	}
	slog.Info("[Transformers] Model downloaded successfully", slog.String("path", downloaded))
	return downloaded, nil
}

func (p *Pipeline) Load(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pipeline != nil {
		return nil
	}

	modelPath, err := EnsureModel(p.cfg.ModelDir, p.cfg.ModelName)
	if err != nil {
		return err
	}

	var opts []options.WithOption
	if p.cfg.OnnxLibraryPath != "" {
		opts = append(opts, options.WithOnnxLibraryPath(p.cfg.OnnxLibraryPath))
	}
	session, err := hugot.NewORTSession(opts...)
	if err != nil {
		return fmt.Errorf("initialize hugot session: %w", err)
	}

	config := hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      pipelineName,
		Options: []hugot.TextClassificationOption{
			pipelines.WithSoftmax(),
		},
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			slog.Warn("[Transformers] Failed to destroy session",
				slog.String("error", destroyErr.Error()))
		}
		return fmt.Errorf("initialize text classification pipeline: %w", err)
	}

	p.session = session
	p.pipeline = pipeline
	p.maxRunes = maxInputRunes(modelPath, p.cfg.MaxSequenceLength)
	slog.Info("[Transformers] Pipeline ready",
		slog.String("model", p.cfg.ModelName),
		slog.String("path", modelPath),
		slog.Int("max_input_runes", p.maxRunes))
	return nil
}

// Classify returns the top scoring label for text.
func (p *Pipeline) Classify(ctx context.Context, text string) (sentiment.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return sentiment.Prediction{}, err
	}

	p.mu.RLock()
	pipeline := p.pipeline
	maxRunes := p.maxRunes
	p.mu.RUnlock()
	if pipeline == nil {
		return sentiment.Prediction{}, ErrNotLoaded
	}

	output, err := pipeline.RunPipeline([]string{truncateInput(text, maxRunes)})
	if err != nil {
		return sentiment.Prediction{}, fmt.Errorf("run pipeline: %w", err)
	}
	if len(output.ClassificationOutputs) == 0 {
		return sentiment.Prediction{}, errors.New("pipeline returned no output")
	}
	return topPrediction(output.ClassificationOutputs[0])
}

func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return nil
	}
	err := p.session.Destroy()
	p.session = nil
	p.pipeline = nil
	return err
}

// maxInputRunes is how many runes of input fit in one model sequence.
// WordPiece emits at most one token per rune, so capping runes caps tokens.
func maxInputRunes(modelPath string, configured int) int {
	maxLen := configured
	if maxLen <= 0 {
		maxLen = DEFAULT_MAX_SEQUENCE_LENGTH
	}
	if positions := readMaxPositions(modelPath); positions > 0 && positions < maxLen {
		maxLen = positions
	}
	if maxLen <= SPECIAL_TOKENS {
		return 1
	}
	return maxLen - SPECIAL_TOKENS
}

func readMaxPositions(modelPath string) int {
	raw, err := os.ReadFile(filepath.Join(modelPath, "config.json"))
	if err != nil {
		return 0
	}
	var modelConfig struct {
		MaxPositionEmbeddings int `json:"max_position_embeddings"`
	}
	if err := json.Unmarshal(raw, &modelConfig); err != nil {
		slog.Warn("[Transformers] Unreadable model config",
			slog.String("path", modelPath),
			slog.String("error", err.Error()))
		return 0
	}
	return modelConfig.MaxPositionEmbeddings
}

func truncateInput(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}

func topPrediction(outputs []pipelines.ClassificationOutput) (sentiment.Prediction, error) {
	if len(outputs) == 0 {
		return sentiment.Prediction{}, errors.New("pipeline returned no labels")
	}
	best := outputs[0]
	for _, o := range outputs[1:] {
		if o.Score > best.Score {
			best = o
		}
	}
	return sentiment.Prediction{Label: best.Label, Score: float64(best.Score)}, nil
}
