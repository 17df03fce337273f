package queue

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/acme/telephony-bridge/internal/config"
)

const (
	dialTimeout  = 10 * time.Second
	batchTimeout = 10 * time.Millisecond
)

// messageWriter is the subset of *kafka.Writer the publishers use.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka builds readers and writers for the bridge topics.
type Kafka struct {
	cfg config.KafkaConfig
}

func NewKafka(cfg config.KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	return &Kafka{cfg: cfg}, nil
}

// NewWriter returns a synchronous writer. Messages are keyed by request id
// and hashed, so every message about one request lands on one partition.
func (k *Kafka) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(k.cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: batchTimeout,
		Transport:    &kafka.Transport{ClientID: k.cfg.ClientID, DialTimeout: dialTimeout},
	}
}

// NewReader creates a consumer-group reader that commits explicitly.
func (k *Kafka) NewReader(topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        k.cfg.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: k.cfg.CommitInterval,
		MaxBytes:       1e6,
		MaxWait:        time.Second,
	})
}

// Topics lists the topics the bridge reads or writes.
func (k *Kafka) Topics() []string {
	return []string{k.cfg.RequestTopic, k.cfg.ReplyTopic, k.cfg.EventTopic}
}

// EnsureTopics creates the missing topics through the cluster controller.
func (k *Kafka) EnsureTopics(ctx context.Context, topics []string, partitions, replicationFactor int) error {
	dialer := &kafka.Dialer{Timeout: dialTimeout, ClientID: k.cfg.ClientID}
	conn, err := dialer.DialContext(ctx, "tcp", k.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka: dial: %w", err)
	}
	defer conn.Close()

	missing, err := missingTopics(conn, topics)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka: find controller: %w", err)
	}
	ctrl, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka: dial controller: %w", err)
	}
	defer ctrl.Close()

	configs := make([]kafka.TopicConfig, 0, len(missing))
	for _, topic := range missing {
		configs = append(configs, kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: replicationFactor,
		})
	}
	if err := ctrl.CreateTopics(configs...); err != nil {
		return fmt.Errorf("kafka: create topics %v: %w", missing, err)
	}
	return nil
}

func missingTopics(conn *kafka.Conn, topics []string) ([]string, error) {
	partitions, err := conn.ReadPartitions()
	if err != nil {
		return nil, fmt.Errorf("kafka: read partitions: %w", err)
	}
	exists := make(map[string]struct{}, len(partitions))
	for _, p := range partitions {
		exists[p.Topic] = struct{}{}
	}

	var missing []string
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		if _, ok := exists[topic]; !ok {
			missing = append(missing, topic)
		}
	}
	return missing, nil
}
