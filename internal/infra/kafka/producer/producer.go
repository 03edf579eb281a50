package producer

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
)

// Producer represents a Kafka producer bound to a single topic.
type Producer struct {
	Client   *wbfkafka.Producer
	topic    string
	strategy retry.Strategy
}

// New creates a new Producer.
// - brokers: list of Kafka broker addresses
// - topic: topic every message is written to
// - s: retry strategy for sends
func New(brokers []string, topic string, s retry.Strategy) *Producer {
	return &Producer{
		Client:   wbfkafka.NewProducer(brokers, topic),
		topic:    topic,
		strategy: s,
	}
}

// Produce serializes v to JSON and sends it to Kafka under key.
// Work requests use their ID as key, which keeps the lifecycle of a
// single request on one partition.
func (p *Producer) Produce(ctx context.Context, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err = p.Client.SendWithRetry(ctx, p.strategy, key, data); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", p.topic, err)
	}

	return nil
}

// Close closes the underlying writer.
func (p *Producer) Close() error {
	return p.Client.Close()
}
