// Package consumer feeds raw discovery content from Kafka into the discovery pipeline.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/enrichment/internal/logger"
)

// ErrPoison marks a message that can never be handled. The processor commits it so the
// partition keeps moving.
var ErrPoison = errors.New("unprocessable message")

// Reader exposes the subset of kafka.Reader used by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded form of a Kafka record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	EventType string
	OwnerID   string
	SchemaID  int
	Payload   json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(log *logger.Logger) Option {
	return func(p *Processor) {
		p.log = log
	}
}

// WithFetchBackoff sets the pause after a failed fetch.
func WithFetchBackoff(d time.Duration) Option {
	return func(p *Processor) {
		p.fetchBackoff = d
	}
}

// WithRetryBackoff sets the first pause before a failed message is handled again. The pause
// doubles per attempt up to maxRetryBackoff.
func WithRetryBackoff(d time.Duration) Option {
	return func(p *Processor) {
		p.retryBackoff = d
	}
}

const maxRetryBackoff = time.Minute

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader       Reader
	handler      Handler
	log          *logger.Logger
	fetchBackoff time.Duration
	retryBackoff time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:       reader,
		handler:      handler,
		log:          logger.Nop(),
		fetchBackoff: time.Second,
		retryBackoff: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes messages until ctx is cancelled. Handled and poison messages are committed. A
// message whose handler fails otherwise is retried in place, since committing any later offset
// of the partition would also commit past it; on shutdown it stays uncommitted.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.log.Warn("kafka fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.fetchBackoff):
			}
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.log.Warn("dropping undecodable message", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", decodeErr)
			recordOutcome(Message{Topic: msg.Topic}, outcomeUndecodable)
			p.commit(ctx, msg)
			continue
		}

		if !p.handle(ctx, msg, event) {
			return ctx.Err()
		}
	}
}

// handle dispatches event until it succeeds or proves poison. It reports false when ctx ends
// first.
func (p *Processor) handle(ctx context.Context, msg kafka.Message, event Message) bool {
	delay := p.retryBackoff
	for attempt := 1; ; attempt++ {
		err := p.handler.Handle(ctx, event)
		switch {
		case err == nil:
			if p.commit(ctx, msg) {
				recordOutcome(event, outcomeHandled)
			}
			return true
		case errors.Is(err, ErrPoison):
			p.log.Warn("dropping unprocessable message", "event_type", event.EventType, "offset", msg.Offset, "error", err)
			recordOutcome(event, outcomePoison)
			p.commit(ctx, msg)
			return true
		}

		p.log.Error("handler failed",
			"event_type", event.EventType,
			"owner_id", event.OwnerID,
			"offset", msg.Offset,
			"attempt", attempt,
			"retry_in", delay,
			"error", err,
		)
		recordOutcome(event, outcomeRetryable)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryBackoff)
	}
}

func (p *Processor) commit(ctx context.Context, msg kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, msg); err != nil {
		p.log.Warn("kafka commit failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return false
	}
	return true
}

// decodeMessage accepts Schema Registry framed values as well as bare JSON from producers that
// do not register schemas.
func decodeMessage(msg kafka.Message) (Message, error) {
	out := Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
	if v, ok := headerValue(msg, "event_type"); ok {
		out.EventType = string(v)
	}
	if v, ok := headerValue(msg, "owner_id"); ok {
		out.OwnerID = string(v)
	}

	value := msg.Value
	switch {
	case len(value) == 0:
		return Message{}, errors.New("empty payload")
	case value[0] == 0:
		if len(value) < 5 {
			return Message{}, fmt.Errorf("invalid framed payload length: %d", len(value))
		}
		out.SchemaID = int(binary.BigEndian.Uint32(value[1:5]))
		value = value[5:]
	}
	if !json.Valid(value) {
		return Message{}, errors.New("payload is not valid JSON")
	}
	out.Payload = json.RawMessage(append([]byte(nil), value...))
	return out, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
