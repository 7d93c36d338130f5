// Package memory provides an in-process repository for local development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"example.com/enrichment/internal/activity"
	"example.com/enrichment/internal/events"
	"example.com/enrichment/internal/observability"
)

// Repository stores owner activities in memory. Library records come from activity.Library.
type Repository struct {
	mu        sync.RWMutex
	library   []activity.Activity
	byOwner   map[string][]activity.Activity
	published []events.ActivityDiscovered
}

// NewRepository constructs a Repository seeded with the built-in library.
func NewRepository() *Repository {
	return &Repository{
		library: activity.Library(),
		byOwner: make(map[string][]activity.Activity),
	}
}

// ListLibrary implements domain.Repository.
func (r *Repository) ListLibrary(ctx context.Context) ([]activity.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.library), nil
}

// ListByOwner implements domain.Repository. Rejected discovered activities are excluded.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]activity.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]activity.Activity, 0, len(r.byOwner[ownerID]))
	for _, a := range r.byOwner[ownerID] {
		if a.IsDiscovered() && (a.Discovery.Rejected || !a.Discovery.Approved) {
			continue
		}
		out = append(out, clone(a))
	}
	return out, nil
}

// Get implements domain.Repository.
func (r *Repository) Get(ctx context.Context, ownerID, activityID string) (*activity.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.byOwner[ownerID] {
		if a.ID == activityID {
			found := clone(a)
			return &found, nil
		}
	}
	return nil, nil
}

// Save implements domain.Repository. Discovered activities also record an ActivityDiscovered
// event, readable through Published.
func (r *Repository) Save(ctx context.Context, a activity.Activity) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Kind == activity.KindLibrary {
		return fmt.Errorf("%w: library activities are read-only", activity.ErrInvalidActivity)
	}
	if a.OwnerID == "" {
		return fmt.Errorf("%w: owner id is required", activity.ErrInvalidActivity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.ContainsFunc(r.byOwner[a.OwnerID], func(existing activity.Activity) bool { return existing.ID == a.ID }) {
		return fmt.Errorf("%w: duplicate id %s", activity.ErrInvalidActivity, a.ID)
	}
	r.byOwner[a.OwnerID] = append(r.byOwner[a.OwnerID], clone(a))

	if a.IsDiscovered() {
		r.published = append(r.published, events.ActivityDiscovered{
			ActivityID:   a.ID,
			OwnerID:      a.OwnerID,
			Title:        a.Title,
			Pillar:       string(a.Pillar),
			QualityScore: a.Discovery.QualityScore,
			DiscoveredAt: a.Discovery.DiscoveredAt,
			SourceURL:    a.Discovery.SourceURL,
			Version:      events.ActivityDiscoveredVersion,
		})
		observability.RecordActivityPersisted(a.Discovery.DiscoveredAt)
	}
	return nil
}

// Published returns the discovery events recorded so far.
func (r *Repository) Published() []events.ActivityDiscovered {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.published)
}

func clone(a activity.Activity) activity.Activity {
	a.Materials = slices.Clone(a.Materials)
	a.Instructions = slices.Clone(a.Instructions)
	a.Tags = slices.Clone(a.Tags)
	if a.Discovery != nil {
		d := *a.Discovery
		a.Discovery = &d
	}
	return a
}

func cloneAll(in []activity.Activity) []activity.Activity {
	out := make([]activity.Activity, len(in))
	for i, a := range in {
		out[i] = clone(a)
	}
	return out
}
