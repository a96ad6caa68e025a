package transformers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/knights-analytics/hugot/pipelines"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("models", "cointegrated_rubert-tiny-sentiment-balanced"),
		ModelPath("models", "cointegrated/rubert-tiny-sentiment-balanced"))
}

func TestEnsureModel_UsesExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	existing := ModelPath(dir, "owner/model")
	require.NoError(t, os.MkdirAll(existing, 0o755))

	got, err := EnsureModel(dir, "owner/model")
	require.NoError(t, err)
	assert.Equal(t, existing, got)
}

func TestTopPrediction(t *testing.T) {
	p, err := topPrediction([]pipelines.ClassificationOutput{
		{Label: "neutral", Score: 0.2},
		{Label: "positive", Score: 0.7},
		{Label: "negative", Score: 0.1},
	})
	require.NoError(t, err)
	assert.Equal(t, "positive", p.Label)
	assert.InDelta(t, 0.7, p.Score, 1e-6)

	_, err = topPrediction(nil)
	assert.Error(t, err)
}

func TestClassify_NotLoaded(t *testing.T) {
	p := NewPipeline(PipelineConfig{ModelName: "owner/model", ModelDir: t.TempDir()})
	_, err := p.Classify(context.Background(), "text")
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.NoError(t, p.Close())
}

func TestMaxInputRunes(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, 510, maxInputRunes(dir, 0), "no model config uses the default")
	assert.Equal(t, 254, maxInputRunes(dir, 256))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"model_type":"bert","max_position_embeddings":128}`), 0o644))
	assert.Equal(t, 126, maxInputRunes(dir, 0), "model positions cap the configured length")
	assert.Equal(t, 62, maxInputRunes(dir, 64))
}

func TestTruncateInput(t *testing.T) {
	long := strings.Repeat("ы", 2000)
	got := truncateInput(long, 510)
	assert.Equal(t, strings.Repeat("ы", 510), got)
	assert.Len(t, []rune(got), 510)

	assert.Equal(t, "короткий", truncateInput("короткий", 510))
	assert.Equal(t, long, truncateInput(long, 0))
}
