package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ReplyPublisher writes replies to origination and discovery requests.
type ReplyPublisher struct {
	writer messageWriter
}

// NewReplyPublisher constructs a reply publisher for the given topic.
func NewReplyPublisher(k *Kafka, topic string) *ReplyPublisher {
	return &ReplyPublisher{writer: k.NewWriter(topic)}
}

// PublishReply writes msg to Kafka keyed by its request id.
func (p *ReplyPublisher) PublishReply(ctx context.Context, msg ReplyMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("reply publisher: marshal message: %w", err)
	}

	record := kafka.Message{
		Key:   msg.RequestID[:],
		Value: value,
		Time:  time.Now().UTC(),
	}

	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("reply publisher: write message: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *ReplyPublisher) Close() error {
	return p.writer.Close()
}
