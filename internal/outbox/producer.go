package outbox

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer publishes outbox records through one shared writer. Each record names its topic,
// and keys are hashed to partitions so one owner's events keep their order.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer for brokers.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// WriteMessages stamps topic on msgs and writes them synchronously.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	records := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		msg.Topic = topic
		records[i] = msg
	}
	return p.writer.WriteMessages(ctx, records...)
}

// Close flushes pending writes and releases broker connections.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
