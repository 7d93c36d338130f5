package domain

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/enrichment/internal/activity"
	"example.com/enrichment/internal/dedupe"
	"example.com/enrichment/internal/observability"
	"example.com/enrichment/internal/parser"
	"example.com/enrichment/internal/persistence/memory"
	"example.com/enrichment/internal/selector"
	"example.com/enrichment/internal/similarity"
)

var fixedNow = time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

func newTestService(repo Repository, opts Options) *Service {
	scorer := similarity.NewScorer(similarity.DefaultConfig())
	clock := func() time.Time { return fixedNow }
	if opts.Now == nil {
		opts.Now = clock
	}
	if opts.NewID == nil {
		n := 0
		opts.NewID = func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}
	}
	return NewService(repo,
		parser.New(parser.DefaultConfig()),
		dedupe.NewDetector(dedupe.DefaultConfig(), scorer),
		selector.New(selector.DefaultWeights(), rand.New(rand.NewPCG(7, 7)), clock),
		opts,
	)
}

var ropeHunt = parser.Content{
	Title:     "Rope Hunt",
	Body:      "Materials: rope, treats, mat\nInstructions: 1. Tie the rope. 2. Hide treats. 3. Let dog search.",
	SourceURL: "https://example.com/rope-hunt",
}

func TestDiscoverFiltersAndStores(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	svc := newTestService(repo, Options{})

	acceptedBefore := testutil.ToFloat64(observability.DiscoveryOutcomes().WithLabelValues(observability.OutcomeAccepted))

	report, err := svc.Discover(ctx, "owner-1", []parser.Content{
		ropeHunt,
		{Title: "Rope Hunt!", Body: ropeHunt.Body},
		{Title: "Frozen Kong Puzzle Treat", Body: "Materials: kong, treats\nInstructions: 1. Fill the kong. 2. Freeze it overnight. 3. Serve it on a mat."},
		{Body: "Just a short note."},
	})
	require.NoError(t, err)

	require.Len(t, report.Accepted, 1)
	accepted := report.Accepted[0]
	require.Equal(t, "id-1", accepted.ID)
	require.Equal(t, "owner-1", accepted.OwnerID)
	require.Equal(t, activity.KindDiscovered, accepted.Kind)
	require.True(t, accepted.Discovery.Approved)
	require.Equal(t, fixedNow, accepted.Discovery.DiscoveredAt)
	require.Equal(t, "https://example.com/rope-hunt", accepted.Discovery.SourceURL)

	require.Len(t, report.Duplicates, 2)
	require.Equal(t, "id-1", report.Duplicates[0].Match.ExistingID)
	require.Equal(t, "lib-frozen-kong", report.Duplicates[1].Match.ExistingID)
	require.Len(t, report.LowConfidence, 1)

	require.Len(t, repo.Published(), 1)
	require.Equal(t, acceptedBefore+1, testutil.ToFloat64(observability.DiscoveryOutcomes().WithLabelValues(observability.OutcomeAccepted)))

	corpus, err := svc.ListActivities(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, corpus, len(activity.Library())+1)

	again, err := svc.Discover(ctx, "owner-1", []parser.Content{ropeHunt})
	require.NoError(t, err)
	require.Empty(t, again.Accepted)
	require.Len(t, again.Duplicates, 1)
}

func TestDiscoverRequiresOwner(t *testing.T) {
	svc := newTestService(memory.NewRepository(), Options{})
	_, err := svc.Discover(context.Background(), "  ", []parser.Content{ropeHunt})
	require.ErrorIs(t, err, ErrInvalidOwner)
}

type blockingRepo struct {
	*memory.Repository
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRepo) Save(ctx context.Context, a activity.Activity) error {
	if a.OwnerID == "owner-1" {
		r.entered <- struct{}{}
		<-r.release
	}
	return r.Repository.Save(ctx, a)
}

func TestDiscoverRejectsConcurrentRunForSameOwner(t *testing.T) {
	ctx := context.Background()
	repo := &blockingRepo{Repository: memory.NewRepository(), entered: make(chan struct{}), release: make(chan struct{})}
	svc := newTestService(repo, Options{})

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = svc.Discover(ctx, "owner-1", []parser.Content{ropeHunt})
	}()
	<-repo.entered

	_, err := svc.Discover(ctx, "owner-1", []parser.Content{ropeHunt})
	require.ErrorIs(t, err, ErrDiscoveryInProgress)

	other, err := svc.Discover(ctx, "owner-2", []parser.Content{ropeHunt})
	require.NoError(t, err)
	require.Len(t, other.Accepted, 1)

	close(repo.release)
	wg.Wait()
	require.NoError(t, firstErr)

	_, err = svc.Discover(ctx, "owner-1", nil)
	require.NoError(t, err, "guard is released after the run")
}

type failingRepo struct {
	*memory.Repository
}

func (failingRepo) Save(context.Context, activity.Activity) error {
	return errors.New("disk full")
}

func TestDiscoverStopsOnSaveFailure(t *testing.T) {
	svc := newTestService(failingRepo{memory.NewRepository()}, Options{})
	report, err := svc.Discover(context.Background(), "owner-1", []parser.Content{ropeHunt})
	require.ErrorContains(t, err, "disk full")
	require.Empty(t, report.Accepted)
}

type recordingCache struct {
	mu          sync.Mutex
	entries     map[string][]activity.Activity
	invalidated []string
}

func (c *recordingCache) Get(_ context.Context, owner string) ([]activity.Activity, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	corpus, ok := c.entries[owner]
	return corpus, ok, nil
}

func (c *recordingCache) Set(_ context.Context, owner string, corpus []activity.Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string][]activity.Activity)
	}
	c.entries[owner] = corpus
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, owner)
	c.invalidated = append(c.invalidated, owner)
	return nil
}

func TestDiscoverInvalidatesCorpusCache(t *testing.T) {
	ctx := context.Background()
	c := &recordingCache{}
	svc := newTestService(memory.NewRepository(), Options{Cache: c})

	_, err := svc.ListActivities(ctx, "owner-1")
	require.NoError(t, err)
	require.Contains(t, c.entries, "owner-1")

	_, err = svc.Discover(ctx, "owner-1", []parser.Content{ropeHunt})
	require.NoError(t, err)
	require.Equal(t, []string{"owner-1"}, c.invalidated)

	corpus, err := svc.ListActivities(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, corpus, len(activity.Library())+1)
}

// slowListRepo holds its first ListByOwner result until released.
type slowListRepo struct {
	*memory.Repository
	once    sync.Once
	listed  chan struct{}
	release chan struct{}
}

func (r *slowListRepo) ListByOwner(ctx context.Context, ownerID string) ([]activity.Activity, error) {
	owned, err := r.Repository.ListByOwner(ctx, ownerID)
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.listed)
		<-r.release
	}
	return owned, err
}

func TestDiscoverIgnoresCorpusCachedByConcurrentReader(t *testing.T) {
	ctx := context.Background()
	c := &recordingCache{}
	repo := &slowListRepo{Repository: memory.NewRepository(), listed: make(chan struct{}), release: make(chan struct{})}
	svc := newTestService(repo, Options{Cache: c})

	listDone := make(chan error, 1)
	go func() {
		_, err := svc.ListActivities(ctx, "owner-1")
		listDone <- err
	}()
	<-repo.listed

	first, err := svc.Discover(ctx, "owner-1", []parser.Content{ropeHunt})
	require.NoError(t, err)
	require.Len(t, first.Accepted, 1)

	close(repo.release)
	require.NoError(t, <-listDone)

	stale, ok, err := c.Get(ctx, "owner-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, stale, len(activity.Library()))

	second, err := svc.Discover(ctx, "owner-1", []parser.Content{ropeHunt})
	require.NoError(t, err)
	require.Empty(t, second.Accepted)
	require.Len(t, second.Duplicates, 1)
	require.Equal(t, first.Accepted[0].ID, second.Duplicates[0].Match.ExistingID)

	owned, err := repo.Repository.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, owned, 1)
}

func TestGetActivity(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(memory.NewRepository(), Options{})

	lib, err := svc.GetActivity(ctx, "owner-1", "lib-find-it")
	require.NoError(t, err)
	require.Equal(t, "Find It Scent Game", lib.Title)

	_, err = svc.GetActivity(ctx, "owner-1", "missing")
	require.ErrorIs(t, err, ErrActivityNotFound)

	_, err = svc.GetActivity(ctx, "", "lib-find-it")
	require.ErrorIs(t, err, ErrInvalidOwner)
}

func TestRecommend(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(memory.NewRepository(), Options{})
	_, err := svc.Discover(ctx, "owner-1", []parser.Content{ropeHunt})
	require.NoError(t, err)

	top, err := svc.Recommend(ctx, "owner-1", RecommendInput{Mode: ModeTop, Count: 1})
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, "id-1", top[0].ID)

	physical, err := svc.Recommend(ctx, "owner-1", RecommendInput{Pillar: activity.PillarPhysical})
	require.NoError(t, err)
	require.Len(t, physical, 1)
	require.Equal(t, "lib-flirt-pole", physical[0].ID)

	all, err := svc.Recommend(ctx, "owner-1", RecommendInput{Mode: ModeShuffle, Count: 100})
	require.NoError(t, err)
	require.Len(t, all, len(activity.Library())+1)

	zero := 0.0
	flat, err := svc.Recommend(ctx, "owner-1", RecommendInput{Mode: ModeTop, Count: 1, Overrides: &selector.Overrides{DiscoveredActivity: &zero}})
	require.NoError(t, err)
	require.NotEqual(t, "id-1", flat[0].ID)

	_, err = svc.Recommend(ctx, "owner-1", RecommendInput{Mode: "random"})
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestPreviewDoesNotStore(t *testing.T) {
	repo := memory.NewRepository()
	svc := newTestService(repo, Options{})

	parsed, ok := svc.Preview(ropeHunt)
	require.True(t, ok)
	require.Equal(t, activity.PillarInstinctual, parsed.Pillar)
	require.Empty(t, repo.Published())
}
