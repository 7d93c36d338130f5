package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"example.com/enrichment/internal/domain"
	"example.com/enrichment/internal/events"
	"example.com/enrichment/internal/logger"
	"example.com/enrichment/internal/parser"
)

// Discoverer runs one discovery batch for an owner.
type Discoverer interface {
	Discover(ctx context.Context, ownerID string, items []parser.Content) (domain.Report, error)
}

// DiscoveryHandler turns DiscoveryContentReceived events into discovery runs.
type DiscoveryHandler struct {
	svc      Discoverer
	log      *logger.Logger
	attempts int
	backoff  time.Duration
}

// NewDiscoveryHandler constructs a handler. A run that collides with one already in flight for
// the same owner is retried up to attempts times, backoff apart.
func NewDiscoveryHandler(svc Discoverer, log *logger.Logger, attempts int, backoff time.Duration) *DiscoveryHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &DiscoveryHandler{svc: svc, log: log, attempts: max(attempts, 1), backoff: backoff}
}

// Handle implements Handler.
func (h *DiscoveryHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != "" && msg.EventType != events.TypeDiscoveryContentReceived {
		h.log.Debug("ignoring event", "event_type", msg.EventType, "topic", msg.Topic)
		return nil
	}

	var evt events.DiscoveryContentReceived
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return fmt.Errorf("%w: decode discovery payload: %w", ErrPoison, err)
	}
	owner := strings.TrimSpace(evt.OwnerID)
	if owner == "" {
		owner = msg.OwnerID
	}
	if owner == "" {
		return fmt.Errorf("%w: %w", ErrPoison, domain.ErrInvalidOwner)
	}

	items := make([]parser.Content, 0, len(evt.Items))
	for _, item := range evt.Items {
		items = append(items, parser.Content{Title: item.Title, Body: item.Content, SourceURL: item.SourceURL})
	}

	for attempt := 1; ; attempt++ {
		report, err := h.svc.Discover(ctx, owner, items)
		if err == nil {
			h.log.Info("discovery event handled",
				"request_id", evt.RequestID,
				"owner_id", owner,
				"accepted", len(report.Accepted),
				"duplicates", len(report.Duplicates),
				"low_confidence", len(report.LowConfidence),
			)
			return nil
		}
		if !errors.Is(err, domain.ErrDiscoveryInProgress) || attempt >= h.attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.backoff):
		}
	}
}
