package kafka_client

import "time"

const (
	KAFKA_TOPIC_SENTIMENT_RESULTS = "sentiment-results" // one event per successful prediction
)

const (
	PRODUCE_RETRIES = 3
	FLUSH_TIMEOUT   = 5 * time.Second
)
