// Package postgres persists activities and their outbox events in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/enrichment/internal/activity"
	"example.com/enrichment/internal/events"
	"example.com/enrichment/internal/observability"
)

// Repository provides Postgres-backed persistence for activities and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const libraryColumns = `activity_id, title, pillar, difficulty, duration_min, materials, instructions, benefits, tags`

const activityColumns = `activity_id, owner_id, kind, title, pillar, difficulty, duration_min, materials, instructions, benefits, tags,
        source, quality_score, discovered_at, approved, rejected, source_url`

// SeedLibrary upserts the library catalog.
func (r *Repository) SeedLibrary(ctx context.Context, library []activity.Activity) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO library_activities (` + libraryColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (activity_id) DO UPDATE SET
            title = EXCLUDED.title, pillar = EXCLUDED.pillar, difficulty = EXCLUDED.difficulty,
            duration_min = EXCLUDED.duration_min, materials = EXCLUDED.materials,
            instructions = EXCLUDED.instructions, benefits = EXCLUDED.benefits, tags = EXCLUDED.tags`

	for _, a := range library {
		materials, instructions, tags, err := encodeLists(a)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, stmt, a.ID, a.Title, a.Pillar, a.Difficulty, a.DurationMin, materials, instructions, a.Benefits, tags); err != nil {
			return fmt.Errorf("seed library activity %s: %w", a.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// ListLibrary implements domain.Repository.
func (r *Repository) ListLibrary(ctx context.Context) ([]activity.Activity, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+libraryColumns+` FROM library_activities ORDER BY activity_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]activity.Activity, 0)
	for rows.Next() {
		var (
			a                             activity.Activity
			materials, instructions, tags []byte
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Pillar, &a.Difficulty, &a.DurationMin, &materials, &instructions, &a.Benefits, &tags); err != nil {
			return nil, err
		}
		a.Kind = activity.KindLibrary
		if err := decodeLists(&a, materials, instructions, tags); err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// ListByOwner implements domain.Repository.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]activity.Activity, error) {
	query := `SELECT ` + activityColumns + `
        FROM activities
        WHERE owner_id = $1 AND (kind = 'user' OR (approved AND NOT rejected))
        ORDER BY created_at, activity_id`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]activity.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// Get implements domain.Repository.
func (r *Repository) Get(ctx context.Context, ownerID, activityID string) (*activity.Activity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE owner_id=$1 AND activity_id=$2`, ownerID, activityID)
	a, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// Save persists the activity and, for discovered activities, records the outbox event inside the
// same transaction.
func (r *Repository) Save(ctx context.Context, a activity.Activity) (err error) {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Kind == activity.KindLibrary {
		return fmt.Errorf("%w: library activities are read-only", activity.ErrInvalidActivity)
	}

	materials, instructions, tags, err := encodeLists(a)
	if err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var (
		source, sourceURL  *string
		quality            *float64
		discoveredAt       *time.Time
		approved, rejected bool
	)
	if d := a.Discovery; d != nil {
		source, sourceURL = &d.Source, nullIfEmpty(d.SourceURL)
		quality, discoveredAt = &d.QualityScore, &d.DiscoveredAt
		approved, rejected = d.Approved, d.Rejected
	}

	insertActivity := `INSERT INTO activities (` + activityColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

	_, err = tx.Exec(ctx, insertActivity,
		a.ID,
		a.OwnerID,
		a.Kind,
		a.Title,
		a.Pillar,
		a.Difficulty,
		a.DurationMin,
		materials,
		instructions,
		a.Benefits,
		tags,
		source,
		quality,
		discoveredAt,
		approved,
		rejected,
		sourceURL,
	)
	if err != nil {
		return err
	}

	if a.IsDiscovered() {
		if err = r.insertOutbox(ctx, tx, a, events.TypeActivityDiscovered, events.ActivityDiscovered{
			ActivityID:   a.ID,
			OwnerID:      a.OwnerID,
			Title:        a.Title,
			Pillar:       string(a.Pillar),
			QualityScore: a.Discovery.QualityScore,
			DiscoveredAt: a.Discovery.DiscoveredAt,
			SourceURL:    a.Discovery.SourceURL,
			Version:      events.ActivityDiscoveredVersion,
		}); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	if a.IsDiscovered() {
		observability.RecordActivityPersisted(a.Discovery.DiscoveredAt)
	}
	return nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, a activity.Activity, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (owner_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		a.OwnerID,
		"activity",
		a.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(a),
		body,
		fmt.Sprintf("%s:%s", a.ID, eventType),
	)
	return err
}

func scanActivity(row pgx.Row) (activity.Activity, error) {
	var (
		a                             activity.Activity
		materials, instructions, tags []byte
		source, sourceURL             *string
		quality                       *float64
		discoveredAt                  *time.Time
		approved, rejected            bool
	)
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Kind, &a.Title, &a.Pillar, &a.Difficulty, &a.DurationMin,
		&materials, &instructions, &a.Benefits, &tags,
		&source, &quality, &discoveredAt, &approved, &rejected, &sourceURL); err != nil {
		return activity.Activity{}, err
	}
	if err := decodeLists(&a, materials, instructions, tags); err != nil {
		return activity.Activity{}, err
	}
	if a.Kind == activity.KindDiscovered && quality != nil && discoveredAt != nil {
		a.Discovery = &activity.Discovery{
			Source:       deref(source),
			QualityScore: *quality,
			DiscoveredAt: discoveredAt.UTC(),
			Approved:     approved,
			Rejected:     rejected,
			SourceURL:    deref(sourceURL),
		}
	}
	return a, nil
}

func encodeLists(a activity.Activity) (materials, instructions, tags []byte, err error) {
	if materials, err = json.Marshal(orEmpty(a.Materials)); err != nil {
		return nil, nil, nil, err
	}
	if instructions, err = json.Marshal(orEmpty([]string(a.Instructions))); err != nil {
		return nil, nil, nil, err
	}
	if tags, err = json.Marshal(orEmpty(a.Tags)); err != nil {
		return nil, nil, nil, err
	}
	return materials, instructions, tags, nil
}

func decodeLists(a *activity.Activity, materials, instructions, tags []byte) error {
	if err := json.Unmarshal(materials, &a.Materials); err != nil {
		return fmt.Errorf("decode materials for %s: %w", a.ID, err)
	}
	if err := json.Unmarshal(instructions, &a.Instructions); err != nil {
		return fmt.Errorf("decode instructions for %s: %w", a.ID, err)
	}
	if err := json.Unmarshal(tags, &a.Tags); err != nil {
		return fmt.Errorf("decode tags for %s: %w", a.ID, err)
	}
	return nil
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nullIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(activity.Activity) string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeActivityDiscovered: {
		Topic:         events.TopicActivityDiscovered,
		SchemaSubject: events.TopicActivityDiscovered + "-value",
		PartitionKeyFn: func(a activity.Activity) string {
			return a.OwnerID
		},
	},
}
