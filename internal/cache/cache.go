// Package cache keeps each owner's deduplication corpus close to the discovery pipeline.
package cache

import (
	"context"

	"example.com/enrichment/internal/activity"
)

// CorpusCache stores the library plus owner activities used for duplicate checks.
// Implementations must treat a miss as (nil, false, nil).
type CorpusCache interface {
	Get(ctx context.Context, ownerID string) ([]activity.Activity, bool, error)
	Set(ctx context.Context, ownerID string, corpus []activity.Activity) error
	Invalidate(ctx context.Context, ownerID string) error
}

// Noop never stores anything; every Get is a miss.
type Noop struct{}

// Get always misses.
func (Noop) Get(context.Context, string) ([]activity.Activity, bool, error) { return nil, false, nil }

// Set performs no action.
func (Noop) Set(context.Context, string, []activity.Activity) error { return nil }

// Invalidate performs no action.
func (Noop) Invalidate(context.Context, string) error { return nil }
