package feed

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"truckgate/internal/checkpoint/models"
)

// Producer is the subset of *kgo.Client the Kafka feed needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Kafka produces each entry as a JSON record keyed by its code, so every
// attempt for one code lands on the same partition.
type Kafka struct {
	producer Producer
	topic    string
}

// NewKafka publishes to topic through producer.
func NewKafka(producer Producer, topic string) *Kafka {
	return &Kafka{producer: producer, topic: topic}
}

func (k *Kafka) Publish(ctx context.Context, entry models.LogEntry) error {
	value, err := NewMessage(entry).Encode()
	if err != nil {
		return fmt.Errorf("encode kafka record: %w", err)
	}
	rec := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(entry.QRCode),
		Value: value,
	}
	if err := k.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce %s: %w", k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	k.producer.Close()
	return nil
}
