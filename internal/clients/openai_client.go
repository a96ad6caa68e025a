package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spacesedan/sentibot/internal/models"
	"github.com/spacesedan/sentibot/internal/sentiment"
)

const (
	openAIRequestTimeout = 60 * time.Second

	openAISentimentPrompt = `You classify the sentiment of a message written in any language.
Reply with a JSON object only: {"label": "positive" | "negative" | "neutral", "score": <confidence between 0 and 1>}.`
)

var ErrMissingAPIKey = errors.New("missing OPENAI_API_KEY")

// OpenAIClient asks a chat model for a sentiment label.
type OpenAIClient struct {
	Client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		slog.Error("[OpenAIClient] Missing OPENAI_API_KEY in environment variables")
		return nil, ErrMissingAPIKey
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(openAIRequestTimeout),
		option.WithMaxRetries(0),
	)
	slog.Info("[OpenAIClient] OpenAI client initialized",
		slog.String("model", model),
		slog.Duration("timeout", openAIRequestTimeout))

	return &OpenAIClient{Client: client, model: model}, nil
}

func (o *OpenAIClient) Load(context.Context) error {
	return nil
}

func (o *OpenAIClient) Close() error {
	return nil
}

func (o *OpenAIClient) Classify(ctx context.Context, text string) (sentiment.Prediction, error) {
	chatCompletion, err := o.Client.Chat.Completions.New(ctx,
		openai.ChatCompletionNewParams{
			Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(openAISentimentPrompt),
				openai.UserMessage(text),
			}),
			Model:       openai.F(openai.ChatModel(o.model)),
			Temperature: openai.Float(0),
		})
	if err != nil {
		return sentiment.Prediction{}, fmt.Errorf("chat completion: %w", err)
	}

	if len(chatCompletion.Choices) == 0 || strings.TrimSpace(chatCompletion.Choices[0].Message.Content) == "" {
		return sentiment.Prediction{}, errors.New("chat completion returned an empty response")
	}

	return parseOpenAISentiment(chatCompletion.Choices[0].Message.Content)
}

func parseOpenAISentiment(content string) (sentiment.Prediction, error) {
	var resp models.OpenAISentimentResponse
	if err := json.Unmarshal([]byte(cleanOpenAIResponse(content)), &resp); err != nil {
		slog.Warn("[OpenAIClient] Failed to parse sentiment response",
			slog.String("error", err.Error()),
			getPreview([]byte(content)))
		return sentiment.Prediction{}, fmt.Errorf("parse chat completion: %w", err)
	}
	return sentiment.Prediction{Label: resp.Label, Score: resp.Score}, nil
}

// cleanOpenAIResponse strips markdown code fences around a JSON reply.
func cleanOpenAIResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
