//go:build integration

package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"example.com/enrichment/internal/consumer"
	"example.com/enrichment/internal/events"
	"example.com/enrichment/internal/logger"
)

type captureHandler struct {
	received chan consumer.Message
}

func (h captureHandler) Handle(_ context.Context, msg consumer.Message) error {
	h.received <- msg
	return nil
}

func TestDispatchedEventsDecodeOnConsumerSide(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkaContainer.RunContainer(ctx, testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             events.TopicActivityDiscovered,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
	require.NoError(t, conn.Close())

	producer := NewKafkaProducer(brokers)
	defer producer.Close()

	store := &fakeStore{pending: []Message{discoveredMessage(11, "owner-int")}}
	d := NewDispatcher(store, producer, &fakeRegistry{id: 99}, logger.Nop(), time.Second, 10)
	require.NoError(t, d.processBatch(ctx))
	require.Equal(t, []int64{11}, store.published)
	require.Empty(t, store.dlq)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "enrichment-integration",
		Topic:       events.TopicActivityDiscovered,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	handler := captureHandler{received: make(chan consumer.Message, 1)}
	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = consumer.NewProcessor(reader, handler).Run(consumerCtx) }()

	select {
	case msg := <-handler.received:
		require.Equal(t, events.TypeActivityDiscovered, msg.EventType)
		require.Equal(t, 99, msg.SchemaID)
		require.JSONEq(t, `{"activity_id":"act-1"}`, string(msg.Payload))
	case <-ctx.Done():
		t.Fatal("timed out waiting for the dispatched event")
	}
}
