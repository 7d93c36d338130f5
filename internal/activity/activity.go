// Package activity defines the enrichment activity records shared by the discovery pipeline.
package activity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the activity variants.
type Kind string

const (
	KindLibrary    Kind = "library"
	KindUser       Kind = "user"
	KindDiscovered Kind = "discovered"
)

// Pillar is one of the five enrichment categories.
type Pillar string

const (
	PillarMental        Pillar = "mental"
	PillarPhysical      Pillar = "physical"
	PillarSocial        Pillar = "social"
	PillarEnvironmental Pillar = "environmental"
	PillarInstinctual   Pillar = "instinctual"
)

// Pillars lists every pillar in priority order. Scoring ties resolve to the earlier entry.
var Pillars = []Pillar{
	PillarMental,
	PillarPhysical,
	PillarSocial,
	PillarEnvironmental,
	PillarInstinctual,
}

// ParsePillar normalises a pillar name.
func ParsePillar(value string) (Pillar, bool) {
	candidate := Pillar(strings.ToLower(strings.TrimSpace(value)))
	for _, p := range Pillars {
		if p == candidate {
			return p, true
		}
	}
	return "", false
}

// Difficulty grades how demanding an activity is.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// SourceDiscovered marks records produced by automated content discovery.
const SourceDiscovered = "discovered"

// Instructions is an ordered list of steps. Older records stored a single free-text string,
// which decodes into a one-step list.
type Instructions []string

// UnmarshalJSON accepts either a JSON array of strings or a single string.
func (in *Instructions) UnmarshalJSON(data []byte) error {
	var steps []string
	if err := json.Unmarshal(data, &steps); err == nil {
		*in = steps
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("instructions must be a string or list of strings: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		*in = Instructions{}
		return nil
	}
	*in = Instructions{text}
	return nil
}

// Discovery carries the attributes only discovered activities have.
type Discovery struct {
	Source       string    `json:"source"`
	QualityScore float64   `json:"quality_score"`
	DiscoveredAt time.Time `json:"discovered_at"`
	Approved     bool      `json:"approved"`
	Rejected     bool      `json:"rejected"`
	SourceURL    string    `json:"source_url,omitempty"`
}

// Activity is the canonical record for library, user-authored and discovered activities.
type Activity struct {
	ID           string       `json:"id"`
	Kind         Kind         `json:"kind"`
	OwnerID      string       `json:"owner_id,omitempty"`
	Title        string       `json:"title"`
	Pillar       Pillar       `json:"pillar"`
	Difficulty   Difficulty   `json:"difficulty"`
	DurationMin  int          `json:"duration_min"`
	Materials    []string     `json:"materials"`
	Instructions Instructions `json:"instructions"`
	Benefits     string       `json:"benefits"`
	Tags         []string     `json:"tags"`
	Discovery    *Discovery   `json:"discovery,omitempty"`
}

// IsDiscovered reports whether the record came from automated discovery.
func (a Activity) IsDiscovered() bool {
	return a.Kind == KindDiscovered && a.Discovery != nil
}

// ErrInvalidActivity wraps validation failures.
var ErrInvalidActivity = errors.New("invalid activity")

// Validate checks the record invariants.
func (a Activity) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidActivity)
	}
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidActivity)
	}
	if _, ok := ParsePillar(string(a.Pillar)); !ok {
		return fmt.Errorf("%w: unknown pillar %q", ErrInvalidActivity, a.Pillar)
	}
	switch a.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidActivity, a.Difficulty)
	}
	if a.DurationMin <= 0 {
		return fmt.Errorf("%w: duration_min must be > 0", ErrInvalidActivity)
	}
	switch a.Kind {
	case KindLibrary, KindUser:
		if a.Discovery != nil {
			return fmt.Errorf("%w: %s activity cannot carry discovery metadata", ErrInvalidActivity, a.Kind)
		}
	case KindDiscovered:
		if a.Discovery == nil {
			return fmt.Errorf("%w: discovered activity requires discovery metadata", ErrInvalidActivity)
		}
		if a.Discovery.QualityScore < 0 || a.Discovery.QualityScore > 1 {
			return fmt.Errorf("%w: quality_score must be within [0,1]", ErrInvalidActivity)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidActivity, a.Kind)
	}
	return nil
}
