package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spacesedan/sentibot/internal/models"
	"github.com/spacesedan/sentibot/internal/sentiment"
)

const (
	HF_INFERENCE_ENDPOINT = "https://api-inference.huggingface.co/models/"

	hfRequestTimeout = 30 * time.Second
)

var ErrEmptyInference = errors.New("inference response contained no labels")

// HuggingFaceClient classifies text through the hosted Inference API. Each
// Classify call is a single attempt.
type HuggingFaceClient struct {
	Client   *http.Client
	endpoint string
	token    string
}

func NewHuggingFaceClient(baseURL, modelName, token string) *HuggingFaceClient {
	if baseURL == "" {
		baseURL = HF_INFERENCE_ENDPOINT
	}
	slog.Info("[HuggingFaceClient] Initializing Client",
		slog.Duration("timeout", hfRequestTimeout),
		slog.String("model", modelName))

	return &HuggingFaceClient{
		Client:   &http.Client{Timeout: hfRequestTimeout},
		endpoint: strings.TrimRight(baseURL, "/") + "/" + modelName,
		token:    token,
	}
}

// Load is a no-op: the model lives on the remote side.
func (h *HuggingFaceClient) Load(context.Context) error {
	return nil
}

func (h *HuggingFaceClient) Close() error {
	h.Client.CloseIdleConnections()
	return nil
}

func (h *HuggingFaceClient) Classify(ctx context.Context, text string) (sentiment.Prediction, error) {
	start := time.Now()

	var labels models.HFClassificationResponse
	if err := h.postJSON(ctx, models.HFClassificationRequest{
		Inputs:  text,
		Options: models.HFRequestOptions{WaitForModel: true},
	}, &labels); err != nil {
		slog.Error("[HuggingFaceClient] Classification request failed",
			slog.Duration("elapsed", time.Since(start)))
		return sentiment.Prediction{}, err
	}

	best, ok := labels.Top()
	if !ok {
		return sentiment.Prediction{}, ErrEmptyInference
	}

	slog.Debug("[HuggingFaceClient] Classification request successful",
		slog.String("label", best.Label),
		slog.Duration("elapsed", time.Since(start)))
	return sentiment.Prediction{Label: best.Label, Score: best.Score}, nil
}

func (h *HuggingFaceClient) postJSON(ctx context.Context, input any, output any) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", USER_AGENT)
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr models.HFErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("inference API status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("inference API status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, output); err != nil {
		slog.Error("[HuggingFaceClient] Failed to unmarshal response",
			slog.String("endpoint", h.endpoint),
			slog.String("error", err.Error()),
			getPreview(respBody),
			slog.Int("raw_response_length", len(respBody)))

		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
