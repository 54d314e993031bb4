package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaPublisher struct {
	writer   *kafka.Writer
	producer string
}

// NewKafkaPublisher builds a writer that hashes message keys to partitions
// and waits for all in-sync replicas, so events for one poll arrive in order
// and survive a leader failure.
func NewKafkaPublisher(brokers []string, topic, producer string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  5,
		Compression:  kafka.Snappy,
	}

	return &KafkaPublisher{writer: writer, producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, data interface{}) error {
	const op = "events.kafka.Publish"

	payload, err := json.Marshal(newEvent(eventType, p.producer, data))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
