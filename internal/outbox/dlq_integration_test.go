//go:build integration

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/enrichment/internal/activity"
	"example.com/enrichment/internal/events"
	"example.com/enrichment/internal/logger"
	"example.com/enrichment/internal/persistence/postgres"
	"example.com/enrichment/internal/testsupport"
)

func TestDLQReplayRetriesThenQuarantines(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	a := activity.Activity{
		ID:          uuid.NewString(),
		Kind:        activity.KindDiscovered,
		OwnerID:     uuid.NewString(),
		Title:       "Bottle Spinner",
		Pillar:      activity.PillarMental,
		Difficulty:  activity.DifficultyMedium,
		DurationMin: 10,
		Discovery: &activity.Discovery{
			Source:       activity.SourceDiscovered,
			QualityScore: 0.8,
			DiscoveredAt: time.Now().UTC(),
			Approved:     true,
		},
	}
	require.NoError(t, postgres.NewRepository(pool).Save(ctx, a))

	writer := &fakeWriter{fail: map[string]error{events.TopicActivityDiscovered: errors.New("broker unavailable")}}
	dispatcher := NewDispatcher(NewPostgresStore(pool), writer, &fakeRegistry{id: 3}, logger.Nop(), time.Second, 10)
	replayer := NewDLQReplayer(pool, logger.Nop(), 2, time.Millisecond)

	pendingOutbox := func() int {
		var n int
		require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&n))
		return n
	}

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Zero(t, pendingOutbox())

	for attempt := 1; attempt <= 2; attempt++ {
		time.Sleep(20 * time.Millisecond)
		replayed, err := replayer.RunOnce(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, 1, replayed, "attempt %d", attempt)
		require.Equal(t, 1, pendingOutbox())

		replayed, err = replayer.RunOnce(ctx, 10)
		require.NoError(t, err)
		require.Zero(t, replayed, "a replayed entry waits for the next failure")

		require.NoError(t, dispatcher.processBatch(ctx))
		require.Zero(t, pendingOutbox())
	}

	time.Sleep(20 * time.Millisecond)
	replayed, err := replayer.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, replayed)

	var (
		entries     int
		retries     int
		quarantined bool
	)
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(retry_count), BOOL_AND(quarantined_at IS NOT NULL) FROM outbox_dlq`,
	).Scan(&entries, &retries, &quarantined))
	require.Equal(t, 1, entries)
	require.Equal(t, 2, retries)
	require.True(t, quarantined)
}
