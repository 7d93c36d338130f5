// Package domain orchestrates discovery, deduplication and recommendation for dog owners.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/enrichment/internal/activity"
	"example.com/enrichment/internal/cache"
	"example.com/enrichment/internal/dedupe"
	"example.com/enrichment/internal/logger"
	"example.com/enrichment/internal/observability"
	"example.com/enrichment/internal/parser"
	"example.com/enrichment/internal/selector"
)

var (
	// ErrDiscoveryInProgress is returned when the owner already has a discovery run in flight.
	ErrDiscoveryInProgress = errors.New("discovery already in progress")
	// ErrInvalidOwner is returned for an empty owner id.
	ErrInvalidOwner = errors.New("owner id is required")
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrInvalidMode is returned for an unknown recommendation mode.
	ErrInvalidMode = errors.New("unknown recommendation mode")
)

// Repository captures persistence operations.
type Repository interface {
	// ListLibrary returns the shared library catalog.
	ListLibrary(ctx context.Context) ([]activity.Activity, error)
	// ListByOwner returns the owner's user-authored and approved discovered activities.
	ListByOwner(ctx context.Context, ownerID string) ([]activity.Activity, error)
	// Get returns nil, nil when the owner has no activity with that id.
	Get(ctx context.Context, ownerID, activityID string) (*activity.Activity, error)
	// Save stores a user-authored or discovered activity. Discovered activities also record
	// an outbox event.
	Save(ctx context.Context, a activity.Activity) error
}

// Options carries the optional collaborators of Service.
type Options struct {
	Cache  cache.CorpusCache
	Logger *logger.Logger
	Now    func() time.Time
	NewID  func() string
}

// Service contains the discovery and recommendation workflows.
type Service struct {
	repo     Repository
	cache    cache.CorpusCache
	parser   *parser.Parser
	detector *dedupe.Detector
	selector *selector.Selector
	log      *logger.Logger
	now      func() time.Time
	newID    func() string

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewService constructs a Service.
func NewService(repo Repository, p *parser.Parser, d *dedupe.Detector, sel *selector.Selector, opts Options) *Service {
	s := &Service{
		repo:     repo,
		cache:    opts.Cache,
		parser:   p,
		detector: d,
		selector: sel,
		log:      opts.Logger,
		now:      opts.Now,
		newID:    opts.NewID,
		inFlight: make(map[string]struct{}),
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Report summarises one discovery run.
type Report struct {
	Accepted      []activity.Activity `json:"accepted"`
	Duplicates    []dedupe.Rejection  `json:"duplicates"`
	LowConfidence []parser.Parsed     `json:"low_confidence"`
}

// Discover parses raw content, drops low-confidence and duplicate candidates and stores the
// rest as approved discovered activities. Only one run per owner may be in flight.
//
// A storage failure stops the run; the returned report lists what was stored before it.
func (s *Service) Discover(ctx context.Context, ownerID string, items []parser.Content) (Report, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Report{}, ErrInvalidOwner
	}
	if !s.acquire(ownerID) {
		return Report{}, ErrDiscoveryInProgress
	}
	defer s.release(ownerID)

	report := Report{
		Accepted:      []activity.Activity{},
		Duplicates:    []dedupe.Rejection{},
		LowConfidence: []parser.Parsed{},
	}
	log := s.log.With("owner_id", ownerID)

	// Cached corpora may predate a concurrent run's writes, so duplicate checks read storage.
	corpus, err := s.loadCorpus(ctx, ownerID)
	if err != nil {
		return report, err
	}

	now := s.now()
	candidates := make([]activity.Activity, 0, len(items))
	for _, item := range items {
		parsed, ok := s.parser.Parse(item)
		if !ok {
			log.Debug("skipping low confidence candidate", "title", parsed.Title, "confidence", parsed.Confidence)
			report.LowConfidence = append(report.LowConfidence, parsed)
			continue
		}
		candidates = append(candidates, parsed.ToActivity(s.newID(), ownerID, now))
	}

	unique, rejected := s.detector.FilterUnique(candidates, corpus)
	for _, r := range rejected {
		log.Info("skipping duplicate candidate",
			"title", r.Candidate.Title,
			"existing_id", r.Match.ExistingID,
			"reason", r.Match.Reason,
			"title_similarity", r.Match.TitleSimilarity,
			"content_similarity", r.Match.ContentSimilarity,
		)
	}
	report.Duplicates = append(report.Duplicates, rejected...)

	defer func() {
		observability.RecordDiscoveryOutcome(observability.OutcomeAccepted, len(report.Accepted))
		observability.RecordDiscoveryOutcome(observability.OutcomeDuplicate, len(report.Duplicates))
		observability.RecordDiscoveryOutcome(observability.OutcomeLowConfidence, len(report.LowConfidence))
		if len(report.Accepted) > 0 {
			if err := s.cache.Invalidate(ctx, ownerID); err != nil {
				log.Warn("corpus cache invalidation failed", "error", err)
			}
		}
	}()

	for _, candidate := range unique {
		if err := s.repo.Save(ctx, candidate); err != nil {
			return report, fmt.Errorf("save discovered activity %s: %w", candidate.ID, err)
		}
		report.Accepted = append(report.Accepted, candidate)
	}

	log.Info("discovery run complete",
		"items", len(items),
		"accepted", len(report.Accepted),
		"duplicates", len(report.Duplicates),
		"low_confidence", len(report.LowConfidence),
	)
	return report, nil
}

// ListActivities returns the owner's full corpus: library first, then owner activities.
func (s *Service) ListActivities(ctx context.Context, ownerID string) ([]activity.Activity, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrInvalidOwner
	}
	return s.corpus(ctx, ownerID)
}

// GetActivity fetches a library activity or one of the owner's activities by id.
func (s *Service) GetActivity(ctx context.Context, ownerID, activityID string) (*activity.Activity, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrInvalidOwner
	}
	library, err := s.repo.ListLibrary(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range library {
		if a.ID == activityID {
			return &a, nil
		}
	}
	a, err := s.repo.Get(ctx, ownerID, activityID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrActivityNotFound
	}
	return a, nil
}

// Mode selects how Recommend orders activities.
type Mode string

const (
	ModeShuffle Mode = "shuffle"
	ModeTop     Mode = "top"
)

// RecommendInput captures a recommendation request. Count <= 0 returns every candidate and an
// empty Pillar keeps all pillars.
type RecommendInput struct {
	Mode      Mode
	Count     int
	Pillar    activity.Pillar
	Overrides *selector.Overrides
}

// Recommend orders the owner's corpus by weighted shuffle or by top weight.
func (s *Service) Recommend(ctx context.Context, ownerID string, in RecommendInput) ([]activity.Activity, error) {
	if in.Mode == "" {
		in.Mode = ModeShuffle
	}
	if in.Mode != ModeShuffle && in.Mode != ModeTop {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, in.Mode)
	}

	corpus, err := s.ListActivities(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	candidates := corpus
	if in.Pillar != "" {
		candidates = make([]activity.Activity, 0, len(corpus))
		for _, a := range corpus {
			if a.Pillar == in.Pillar {
				candidates = append(candidates, a)
			}
		}
	}

	count := in.Count
	if count <= 0 || count > len(candidates) {
		count = len(candidates)
	}

	observability.RecordRecommendation(string(in.Mode))
	if in.Mode == ModeTop {
		return s.selector.Top(candidates, count, in.Overrides), nil
	}
	return s.selector.Shuffle(candidates, in.Overrides)[:count], nil
}

// Preview parses content without storing anything. ok reports whether the record would pass
// the confidence gate.
func (s *Service) Preview(content parser.Content) (parser.Parsed, bool) {
	return s.parser.Parse(content)
}

func (s *Service) corpus(ctx context.Context, ownerID string) ([]activity.Activity, error) {
	cached, ok, err := s.cache.Get(ctx, ownerID)
	switch {
	case err != nil:
		observability.RecordCorpusLookup("error")
		s.log.Warn("corpus cache read failed", "owner_id", ownerID, "error", err)
	case ok:
		observability.RecordCorpusLookup("hit")
		return cached, nil
	default:
		observability.RecordCorpusLookup("miss")
	}

	corpus, err := s.loadCorpus(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, ownerID, corpus); err != nil {
		s.log.Warn("corpus cache write failed", "owner_id", ownerID, "error", err)
	}
	return corpus, nil
}

func (s *Service) loadCorpus(ctx context.Context, ownerID string) ([]activity.Activity, error) {
	library, err := s.repo.ListLibrary(ctx)
	if err != nil {
		return nil, fmt.Errorf("load library: %w", err)
	}
	owned, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load owner activities: %w", err)
	}

	corpus := make([]activity.Activity, 0, len(library)+len(owned))
	corpus = append(corpus, library...)
	return append(corpus, owned...), nil
}

func (s *Service) acquire(ownerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[ownerID]; busy {
		return false
	}
	s.inFlight[ownerID] = struct{}{}
	return true
}

func (s *Service) release(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, ownerID)
}
