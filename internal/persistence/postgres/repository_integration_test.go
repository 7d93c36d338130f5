//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/enrichment/internal/activity"
	"example.com/enrichment/internal/events"
	"example.com/enrichment/internal/testsupport"
)

func TestRepositoryPersistsDiscoveredActivityWithOutbox(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	repo := NewRepository(pool)

	require.NoError(t, repo.SeedLibrary(ctx, activity.Library()))
	require.NoError(t, repo.SeedLibrary(ctx, activity.Library()), "seeding is idempotent")

	library, err := repo.ListLibrary(ctx)
	require.NoError(t, err)
	require.Len(t, library, len(activity.Library()))

	owner := uuid.NewString()
	discoveredAt := time.Now().UTC().Truncate(time.Millisecond)
	a := activity.Activity{
		ID:           uuid.NewString(),
		Kind:         activity.KindDiscovered,
		OwnerID:      owner,
		Title:        "Snuffle Towel Hunt",
		Pillar:       activity.PillarInstinctual,
		Difficulty:   activity.DifficultyMedium,
		DurationMin:  15,
		Materials:    []string{"towel", "treats"},
		Instructions: activity.Instructions{"Roll treats into a towel.", "Let your dog unroll it."},
		Benefits:     "Builds focus.",
		Tags:         []string{"instinctual", "food-based"},
		Discovery: &activity.Discovery{
			Source:       activity.SourceDiscovered,
			QualityScore: 0.9,
			DiscoveredAt: discoveredAt,
			Approved:     true,
			SourceURL:    "https://example.com/towel",
		},
	}
	require.NoError(t, repo.Save(ctx, a))

	stored, err := repo.Get(ctx, owner, a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, a.Materials, stored.Materials)
	require.Equal(t, a.Instructions, stored.Instructions)
	require.NotNil(t, stored.Discovery)
	require.Equal(t, "https://example.com/towel", stored.Discovery.SourceURL)
	require.True(t, discoveredAt.Equal(stored.Discovery.DiscoveredAt))

	other, err := repo.Get(ctx, uuid.NewString(), a.ID)
	require.NoError(t, err)
	require.Nil(t, other)

	var eventType, topic, partitionKey string
	err = pool.QueryRow(ctx, `SELECT event_type, topic, partition_key FROM outbox WHERE aggregate_id=$1`, a.ID).
		Scan(&eventType, &topic, &partitionKey)
	require.NoError(t, err)
	require.Equal(t, events.TypeActivityDiscovered, eventType)
	require.Equal(t, events.TopicActivityDiscovered, topic)
	require.Equal(t, owner, partitionKey)
}

func TestRepositoryListByOwnerSkipsRejected(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	repo := NewRepository(pool)

	owner := uuid.NewString()
	user := activity.Activity{
		ID: uuid.NewString(), Kind: activity.KindUser, OwnerID: owner, Title: "Evening Walk",
		Pillar: activity.PillarPhysical, Difficulty: activity.DifficultyEasy, DurationMin: 30,
	}
	rejected := activity.Activity{
		ID: uuid.NewString(), Kind: activity.KindDiscovered, OwnerID: owner, Title: "Cardboard Shred",
		Pillar: activity.PillarInstinctual, Difficulty: activity.DifficultyEasy, DurationMin: 10,
		Discovery: &activity.Discovery{
			Source: activity.SourceDiscovered, QualityScore: 0.7, DiscoveredAt: time.Now().UTC(), Rejected: true,
		},
	}
	require.NoError(t, repo.Save(ctx, user))
	require.NoError(t, repo.Save(ctx, rejected))

	owned, err := repo.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	require.Equal(t, user.ID, owned[0].ID)
	require.Nil(t, owned[0].Discovery)
}
