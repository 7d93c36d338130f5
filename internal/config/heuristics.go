package config

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"example.com/enrichment/internal/dedupe"
	"example.com/enrichment/internal/parser"
	"example.com/enrichment/internal/selector"
	"example.com/enrichment/internal/similarity"
)

// ErrHeuristicsFile reports an unreadable or malformed heuristics file.
var ErrHeuristicsFile = errors.New("heuristics file")

// Heuristics bundles the tunable tables of the discovery pipeline.
type Heuristics struct {
	Similarity similarity.Config `yaml:"similarity"`
	Duplicates dedupe.Config     `yaml:"duplicates"`
	Parser     parser.Config     `yaml:"parser"`
	Weights    selector.Weights  `yaml:"weights"`
}

// DefaultHeuristics returns the production defaults of every component.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		Similarity: similarity.DefaultConfig(),
		Duplicates: dedupe.DefaultConfig(),
		Parser:     parser.DefaultConfig(),
		Weights:    selector.DefaultWeights(),
	}
}

// LoadHeuristics overlays the YAML file at path onto DefaultHeuristics. Keys absent from the
// file keep their defaults; lists present in the file replace the default list. An empty path
// returns the defaults.
func LoadHeuristics(path string) (Heuristics, error) {
	h := DefaultHeuristics()
	if path == "" {
		return h, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Heuristics{}, fmt.Errorf("%w: read %s: %w", ErrHeuristicsFile, path, err)
	}
	if err := yaml.Unmarshal(data, &h); err != nil {
		return Heuristics{}, fmt.Errorf("%w: parse %s: %w", ErrHeuristicsFile, path, err)
	}
	if err := h.validate(); err != nil {
		return Heuristics{}, fmt.Errorf("%w: %s: %w", ErrHeuristicsFile, path, err)
	}
	return h, nil
}

// Pipeline holds the discovery components built from one Heuristics set.
type Pipeline struct {
	Scorer   *similarity.Scorer
	Detector *dedupe.Detector
	Parser   *parser.Parser
	Selector *selector.Selector
}

// Build constructs the pipeline components. rng and now may be nil.
func (h Heuristics) Build(rng *rand.Rand, now func() time.Time) Pipeline {
	scorer := similarity.NewScorer(h.Similarity)
	return Pipeline{
		Scorer:   scorer,
		Detector: dedupe.NewDetector(h.Duplicates, scorer),
		Parser:   parser.New(h.Parser),
		Selector: selector.New(h.Weights, rng, now),
	}
}

func (h Heuristics) validate() error {
	for name, v := range map[string]float64{
		"duplicates.title_threshold":   h.Duplicates.TitleThreshold,
		"duplicates.content_threshold": h.Duplicates.ContentThreshold,
		"parser.min_confidence":        h.Parser.MinConfidence,
		"weights.quality_threshold":    h.Weights.QualityThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	if h.Similarity.MaxKeywords < 0 {
		return errors.New("similarity.max_keywords must be >= 0")
	}
	if h.Parser.DefaultDuration <= 0 {
		return errors.New("parser.default_duration must be > 0")
	}
	return nil
}
