package events

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spacesedan/sentibot/internal/models"
	"github.com/spacesedan/sentibot/internal/sentiment"
)

type Publisher interface {
	// Publish never fails the caller; delivery problems are logged.
	Publish(userID *int64, text string, result sentiment.Result)
	Close()
}

type MessageProducer interface {
	Produce(topic string, key, value []byte) error
	Close()
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(*int64, string, sentiment.Result) {}
func (NoopPublisher) Close()                                   {}

type KafkaPublisher struct {
	producer MessageProducer
	topic    string
	now      func() time.Time
}

func NewKafkaPublisher(producer MessageProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, now: time.Now}
}

func NewResultEvent(userID *int64, text string, result sentiment.Result, at time.Time) models.ResultEvent {
	return models.ResultEvent{
		EventID:       uuid.NewString(),
		UserID:        userID,
		Sentiment:     string(result.Sentiment),
		Confidence:    result.Confidence,
		IronyDetected: result.IronyDetected,
		ModelUsed:     result.ModelUsed,
		TextHash:      sentiment.CacheKey(text),
		CreatedAt:     at.UTC(),
	}
}

func (k *KafkaPublisher) Publish(userID *int64, text string, result sentiment.Result) {
	event := NewResultEvent(userID, text, result, k.now())

	value, err := json.Marshal(event)
	if err != nil {
		slog.Error("[Events] Failed to marshal result event", slog.String("error", err.Error()))
		return
	}

	var key []byte
	if userID != nil {
		key = []byte(strconv.FormatInt(*userID, 10))
	}

	if err := k.producer.Produce(k.topic, key, value); err != nil {
		slog.Error("[Events] Failed to publish result event",
			slog.String("event_id", event.EventID),
			slog.String("topic", k.topic),
			slog.String("error", err.Error()))
		return
	}
	slog.Debug("[Events] Published result event",
		slog.String("event_id", event.EventID),
		slog.String("sentiment", event.Sentiment))
}

func (k *KafkaPublisher) Close() {
	k.producer.Close()
}
