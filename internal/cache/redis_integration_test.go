//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"example.com/enrichment/internal/activity"
	"example.com/enrichment/internal/logger"
)

func TestRedisCorpusCacheRoundTrip(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	c, err := NewRedisCorpusCache(ctx, logger.Nop(), RedisOptions{Addr: endpoint, TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, ok, err := c.Get(ctx, "owner-1")
	require.NoError(t, err)
	require.False(t, ok)

	corpus := activity.Library()
	require.NoError(t, c.Set(ctx, "owner-1", corpus))

	got, ok, err := c.Get(ctx, "owner-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, corpus, got)

	_, ok, err = c.Get(ctx, "owner-2")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Invalidate(ctx, "owner-1"))
	_, ok, err = c.Get(ctx, "owner-1")
	require.NoError(t, err)
	require.False(t, ok)
}
