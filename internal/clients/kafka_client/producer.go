package kafka_client

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

type Producer struct {
	producer *kafka.Producer
	wg       sync.WaitGroup
}

func NewProducer(broker string) (*Producer, error) {
	slog.Info("[KafkaClient] Initializing Kafka Producer...",
		slog.String("broker", broker))

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":   broker,
		"security.protocol":   "PLAINTEXT",
		"api.version.request": "true",
		"enable.idempotence":  true,
		"acks":                "all",
	})
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] Failed to create producer: %w", err)
	}

	kp := &Producer{producer: p}
	kp.wg.Add(1)
	go kp.watchDeliveries()

	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return kp, nil
}

// watchDeliveries drains delivery reports until the producer is closed.
func (p *Producer) watchDeliveries() {
	defer p.wg.Done()
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				slog.Error("[KafkaClient] Delivery failed",
					slog.String("topic", *ev.TopicPartition.Topic),
					slog.String("error", ev.TopicPartition.Error.Error()))
			}
		case kafka.Error:
			slog.Warn("[KafkaClient] Producer error", slog.String("error", ev.Error()))
		}
	}
}

// Produce enqueues one message. Delivery is reported asynchronously.
func (p *Producer) Produce(topic string, key, value []byte) error {
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          value,
	}

	var err error
	for i := 0; i < PRODUCE_RETRIES; i++ {
		err = p.producer.Produce(msg, nil)
		if err == nil {
			return nil
		}
		if kerr, ok := err.(kafka.Error); ok && kerr.Code() == kafka.ErrQueueFull {
			p.producer.Flush(100)
		}
		slog.Warn("[KafkaClient] Failed to produce message, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
	}
	return fmt.Errorf("[KafkaClient] produce to %s failed after %d attempts: %w", topic, PRODUCE_RETRIES, err)
}

func (p *Producer) Close() {
	slog.Info("[KafkaClient] Flushing Kafka producer before shutdown...")
	if remaining := p.producer.Flush(int(FLUSH_TIMEOUT.Milliseconds())); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	p.producer.Close()
	p.wg.Wait()
	slog.Info("[KafkaClient] Kafka producer shut down")
}
