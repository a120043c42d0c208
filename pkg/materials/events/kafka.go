package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tendant/simple-portal/pkg/materials"
)

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events as JSON messages keyed by category/name, so every
// change to one item lands on the same partition.
type Kafka struct {
	writer MessageWriter
}

// NewKafka creates an asynchronous producer for topic. Delivery failures
// are logged from the writer's completion callback.
func NewKafka(brokers []string, topic string) *Kafka {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				slog.Error("failed to publish material events", "topic", topic, "count", len(msgs), "err", err)
			}
		},
	}
	return NewKafkaWithWriter(w)
}

// NewKafkaWithWriter wraps an existing writer.
func NewKafkaWithWriter(w MessageWriter) *Kafka {
	return &Kafka{writer: w}
}

// Close flushes pending messages.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

func (k *Kafka) publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(e.Category + "/" + e.Name),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Type, err)
	}
	return nil
}

func (k *Kafka) MaterialUploaded(ctx context.Context, item *materials.MaterialItem) error {
	return k.publish(ctx, uploadedEvent(item))
}

func (k *Kafka) MaterialRenamed(ctx context.Context, oldName string, item *materials.MaterialItem) error {
	return k.publish(ctx, renamedEvent(oldName, item))
}

func (k *Kafka) MaterialDeleted(ctx context.Context, category materials.Category, name string) error {
	return k.publish(ctx, newEvent(TypeDeleted, category, name))
}
