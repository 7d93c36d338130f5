// Package outbox delivers events recorded in the outbox table to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/enrichment/internal/logger"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Store claims pending outbox rows and records their fate.
type Store interface {
	Claim(ctx context.Context, limit int) ([]Message, error)
	MarkPublished(ctx context.Context, ids []int64) error
	MoveToDLQ(ctx context.Context, msg Message, reason string) error
}

// Message represents a row fetched from the outbox.
type Message struct {
	EventID       int64
	OwnerID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

// Dispatcher drains the outbox and delivers events to Kafka using Schema Registry metadata.
type Dispatcher struct {
	store            Store
	producer         messageWriter
	registry         schemaRegistrar
	log              *logger.Logger
	pollInterval     time.Duration
	batchSize        int
	now              func() time.Time
	schemaIDCache    sync.Map
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store Store, producer messageWriter, registry schemaRegistrar, log *logger.Logger, pollInterval time.Duration, batchSize int) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		store:            store,
		producer:         producer,
		registry:         registry,
		log:              log,
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		now:              func() time.Time { return time.Now().UTC() },
		shutdownComplete: make(chan struct{}),
	}
}

// Start runs the polling loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error("outbox dispatch failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Start has returned.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

type failure struct {
	msg    Message
	reason string
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()

	messages, err := d.store.Claim(ctx, d.batchSize)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	delivered, failed := d.deliver(ctx, messages)
	if err := ctx.Err(); err != nil {
		// Claimed rows stay unpublished and are picked up by the next poll.
		return err
	}

	deliveredCounter.Add(float64(len(delivered)))
	if len(failed) > 0 {
		failedCounter.Add(float64(len(failed)))
	}
	for _, f := range failed {
		d.log.Warn("outbox event routed to dlq", "event_id", f.msg.EventID, "topic", f.msg.Topic, "reason", f.reason)
		if err := d.store.MoveToDLQ(ctx, f.msg, f.reason); err != nil {
			return err
		}
		dlqCounter.WithLabelValues(f.msg.Topic).Inc()
	}

	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.EventID)
	}
	return d.store.MarkPublished(ctx, ids)
}

// deliver writes messages to their topics. A message whose schema cannot be resolved fails on its
// own; a failed topic write fails every message of that topic.
func (d *Dispatcher) deliver(ctx context.Context, messages []Message) (delivered []Message, failed []failure) {
	type topicBatch struct {
		sources []Message
		records []kafka.Message
	}

	batches := make(map[string]*topicBatch)
	order := make([]string, 0)

	for _, msg := range messages {
		schemaID, err := d.schemaID(ctx, msg)
		if err != nil {
			failed = append(failed, failure{msg: msg, reason: err.Error()})
			continue
		}

		record := kafka.Message{
			Key:   []byte(msg.PartitionKey),
			Value: encodeWireFormat(schemaID, msg.Payload),
			Time:  d.now(),
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(msg.EventType)},
			},
		}

		batch, ok := batches[msg.Topic]
		if !ok {
			batch = &topicBatch{}
			batches[msg.Topic] = batch
			order = append(order, msg.Topic)
		}
		batch.sources = append(batch.sources, msg)
		batch.records = append(batch.records, record)
	}

	for _, topic := range order {
		batch := batches[topic]
		if err := d.producer.WriteMessages(ctx, topic, batch.records...); err != nil {
			for _, msg := range batch.sources {
				failed = append(failed, failure{msg: msg, reason: fmt.Sprintf("%v (topic=%s)", err, topic)})
			}
			continue
		}
		delivered = append(delivered, batch.sources...)
	}
	return delivered, failed
}

func (d *Dispatcher) schemaID(ctx context.Context, msg Message) (int, error) {
	meta, ok := schemaCatalog[msg.EventType]
	if !ok {
		return 0, fmt.Errorf("no schema metadata for event_type=%s", msg.EventType)
	}

	cacheKey := msg.SchemaSubject + "::" + msg.EventType
	if id, found := d.schemaIDCache.Load(cacheKey); found {
		return id.(int), nil
	}
	id, err := d.registry.EnsureSchema(ctx, msg.SchemaSubject, meta.Schema)
	if err != nil {
		return 0, fmt.Errorf("ensure schema %s: %w", msg.SchemaSubject, err)
	}
	d.schemaIDCache.Store(cacheKey, id)
	return id, nil
}

// encodeWireFormat applies Confluent framing: a zero magic byte, the big-endian schema ID, then
// the payload.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
