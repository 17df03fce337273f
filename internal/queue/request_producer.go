package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// RequestProducer enqueues bridge requests for asynchronous processing.
type RequestProducer struct {
	writer messageWriter
}

// NewRequestProducer constructs a producer for the given topic.
func NewRequestProducer(k *Kafka, topic string) *RequestProducer {
	return &RequestProducer{writer: k.NewWriter(topic)}
}

// Enqueue writes msg to Kafka keyed by its request id.
func (p *RequestProducer) Enqueue(ctx context.Context, msg RequestMessage) error {
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("request producer: marshal message: %w", err)
	}

	record := kafka.Message{
		Key:   msg.RequestID[:],
		Value: value,
		Time:  msg.EnqueuedAt,
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("request producer: write message: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *RequestProducer) Close() error {
	return p.writer.Close()
}
