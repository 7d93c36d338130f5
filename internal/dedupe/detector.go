// Package dedupe decides whether a discovered activity repeats one already in an owner's corpus.
package dedupe

import (
	"example.com/enrichment/internal/activity"
	"example.com/enrichment/internal/similarity"
)

const (
	// TitleThreshold is the title similarity above which two activities are duplicates.
	TitleThreshold = 0.8
	// ContentThreshold is the content similarity above which two activities are duplicates.
	ContentThreshold = 0.7
)

// Config carries the duplicate thresholds. Both comparisons are strict (>).
type Config struct {
	TitleThreshold   float64 `yaml:"title_threshold"`
	ContentThreshold float64 `yaml:"content_threshold"`
}

// DefaultConfig returns the fixed production thresholds.
func DefaultConfig() Config {
	return Config{TitleThreshold: TitleThreshold, ContentThreshold: ContentThreshold}
}

// Reason names the threshold that flagged a duplicate.
type Reason string

const (
	ReasonTitle   Reason = "title"
	ReasonContent Reason = "content"
)

// Match describes the first corpus record a candidate collided with.
type Match struct {
	ExistingID        string  `json:"existing_id"`
	ExistingTitle     string  `json:"existing_title"`
	TitleSimilarity   float64 `json:"title_similarity"`
	ContentSimilarity float64 `json:"content_similarity"`
	Reason            Reason  `json:"reason"`
}

// Rejection pairs a candidate with the match that excluded it.
type Rejection struct {
	Candidate activity.Activity `json:"candidate"`
	Match     Match             `json:"match"`
}

// Detector runs a linear scan over the corpus. Cost is O(n) per candidate, which is fine for
// per-owner corpora in the hundreds.
type Detector struct {
	cfg    Config
	scorer *similarity.Scorer
}

// NewDetector builds a Detector.
func NewDetector(cfg Config, scorer *similarity.Scorer) *Detector {
	return &Detector{cfg: cfg, scorer: scorer}
}

// IsDuplicate reports whether candidate duplicates any record in corpus.
func (d *Detector) IsDuplicate(candidate activity.Activity, corpus []activity.Activity) bool {
	_, found := d.FindDuplicate(candidate, corpus)
	return found
}

// FindDuplicate returns the first corpus record whose title or content similarity exceeds
// its threshold.
func (d *Detector) FindDuplicate(candidate activity.Activity, corpus []activity.Activity) (Match, bool) {
	for _, existing := range corpus {
		titleScore := d.scorer.TitleSimilarity(candidate.Title, existing.Title)
		contentScore := d.scorer.ContentSimilarity(candidate, existing)

		var reason Reason
		switch {
		case titleScore > d.cfg.TitleThreshold:
			reason = ReasonTitle
		case contentScore > d.cfg.ContentThreshold:
			reason = ReasonContent
		default:
			continue
		}
		return Match{
			ExistingID:        existing.ID,
			ExistingTitle:     existing.Title,
			TitleSimilarity:   titleScore,
			ContentSimilarity: contentScore,
			Reason:            reason,
		}, true
	}
	return Match{}, false
}

// FilterUnique checks a batch in order. Accepted candidates join the comparison corpus, so a
// batch never yields two copies of the same activity. Cost is O(n·m).
func (d *Detector) FilterUnique(candidates, corpus []activity.Activity) ([]activity.Activity, []Rejection) {
	known := make([]activity.Activity, 0, len(corpus)+len(candidates))
	known = append(known, corpus...)

	unique := make([]activity.Activity, 0, len(candidates))
	var rejected []Rejection
	for _, candidate := range candidates {
		if match, dup := d.FindDuplicate(candidate, known); dup {
			rejected = append(rejected, Rejection{Candidate: candidate, Match: match})
			continue
		}
		unique = append(unique, candidate)
		known = append(known, candidate)
	}
	return unique, rejected
}
