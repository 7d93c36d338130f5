// Package selector orders activities for display by weighted random sampling or by top weight.
package selector

import (
	"time"

	"example.com/enrichment/internal/activity"
)

// Weights are the multipliers applied to an activity's sampling weight.
type Weights struct {
	LibraryActivity      float64       `yaml:"library_activity" json:"library_activity"`
	DiscoveredActivity   float64       `yaml:"discovered_activity" json:"discovered_activity"`
	QualityBonus         float64       `yaml:"quality_bonus" json:"quality_bonus"`
	RecentDiscoveryBonus float64       `yaml:"recent_discovery_bonus" json:"recent_discovery_bonus"`
	ApprovedBonus        float64       `yaml:"approved_bonus" json:"approved_bonus"`
	QualityThreshold     float64       `yaml:"quality_threshold" json:"quality_threshold"`
	RecentWindow         time.Duration `yaml:"recent_window" json:"recent_window"`
}

// DefaultWeights favours discovered, high quality, recent and approved activities.
func DefaultWeights() Weights {
	return Weights{
		LibraryActivity:      1.0,
		DiscoveredActivity:   3.0,
		QualityBonus:         2.0,
		RecentDiscoveryBonus: 1.5,
		ApprovedBonus:        1.2,
		QualityThreshold:     0.8,
		RecentWindow:         7 * 24 * time.Hour,
	}
}

// Overrides replaces any subset of the multipliers. Nil fields keep the base value.
type Overrides struct {
	LibraryActivity      *float64 `json:"library_activity,omitempty"`
	DiscoveredActivity   *float64 `json:"discovered_activity,omitempty"`
	QualityBonus         *float64 `json:"quality_bonus,omitempty"`
	RecentDiscoveryBonus *float64 `json:"recent_discovery_bonus,omitempty"`
	ApprovedBonus        *float64 `json:"approved_bonus,omitempty"`
}

// With returns w with o applied. A nil o returns w unchanged.
func (w Weights) With(o *Overrides) Weights {
	if o == nil {
		return w
	}
	if o.LibraryActivity != nil {
		w.LibraryActivity = *o.LibraryActivity
	}
	if o.DiscoveredActivity != nil {
		w.DiscoveredActivity = *o.DiscoveredActivity
	}
	if o.QualityBonus != nil {
		w.QualityBonus = *o.QualityBonus
	}
	if o.RecentDiscoveryBonus != nil {
		w.RecentDiscoveryBonus = *o.RecentDiscoveryBonus
	}
	if o.ApprovedBonus != nil {
		w.ApprovedBonus = *o.ApprovedBonus
	}
	return w
}

// Of computes the sampling weight of a at time now. Multipliers compose in a fixed order:
// discovered base, quality, recency, approval.
func (w Weights) Of(a activity.Activity, now time.Time) float64 {
	if !a.IsDiscovered() {
		return w.LibraryActivity
	}
	d := a.Discovery
	weight := w.DiscoveredActivity
	if d.QualityScore > w.QualityThreshold {
		weight *= w.QualityBonus
	}
	if !d.DiscoveredAt.IsZero() && now.Sub(d.DiscoveredAt) <= w.RecentWindow {
		weight *= w.RecentDiscoveryBonus
	}
	if d.Approved {
		weight *= w.ApprovedBonus
	}
	return weight
}
