package selector

import (
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"example.com/enrichment/internal/activity"
)

// Selector applies Weights to activities. Randomness comes from the injected source so
// orderings are reproducible under a fixed seed.
type Selector struct {
	weights Weights
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// New constructs a Selector. A nil rng is replaced by a randomly seeded PCG source and a nil
// now by time.Now.
func New(weights Weights, rng *rand.Rand, now func() time.Time) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if now == nil {
		now = time.Now
	}
	return &Selector{weights: weights, rng: rng, now: now}
}

// Weights returns the base weights with o applied.
func (s *Selector) Weights(o *Overrides) Weights {
	return s.weights.With(o)
}

// Weight returns the sampling weight of a under the base weights and o.
func (s *Selector) Weight(a activity.Activity, o *Overrides) float64 {
	return s.weights.With(o).Of(a, s.now())
}

// Shuffle returns a weighted random permutation of activities. The input is not modified.
func (s *Selector) Shuffle(activities []activity.Activity, o *Overrides) []activity.Activity {
	w, now := s.weights.With(o), s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	return WeightedShuffle(activities, func(a activity.Activity) float64 { return w.Of(a, now) }, s.rng)
}

// Top returns the count highest weighted activities, ties kept in input order. It uses no
// randomness and never modifies the input.
func (s *Selector) Top(activities []activity.Activity, count int, o *Overrides) []activity.Activity {
	w, now := s.weights.With(o), s.now()

	type scored struct {
		item   activity.Activity
		weight float64
	}
	ranked := make([]scored, len(activities))
	for i, a := range activities {
		ranked[i] = scored{item: a, weight: w.Of(a, now)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].weight > ranked[j].weight })

	count = min(max(count, 0), len(ranked))
	out := make([]activity.Activity, count)
	for i := range out {
		out[i] = ranked[i].item
	}
	return out
}

// WeightedShuffle draws items without replacement, each with probability proportional to its
// weight among those remaining. Negative and NaN weights count as zero. When every remaining weight is
// zero the draw is uniform.
//
// Each draw is a linear cumulative scan, so the whole shuffle is O(n²). Lists here are tens to
// low hundreds of items; larger inputs need an alias or tree based sampler with the same
// distribution.
func WeightedShuffle[T any](items []T, weight func(T) float64, r *rand.Rand) []T {
	out := make([]T, 0, len(items))
	if len(items) == 0 {
		return out
	}

	type entry struct {
		item   T
		weight float64
	}
	pool := make([]entry, len(items))
	for i, item := range items {
		pool[i] = entry{item: item}
		if w := weight(item); w > 0 {
			pool[i].weight = w
		}
	}

	for len(pool) > 0 {
		total := 0.0
		for _, e := range pool {
			total += e.weight
		}

		var pick int
		if total <= 0 {
			pick = r.IntN(len(pool))
		} else {
			draw := r.Float64() * total
			cumulative := 0.0
			for i, e := range pool {
				if e.weight == 0 {
					continue
				}
				// Rounding can leave draw at the very top of the range; the last positive entry takes it.
				cumulative += e.weight
				pick = i
				if cumulative > draw {
					break
				}
			}
		}

		out = append(out, pool[pick].item)
		pool = append(pool[:pick], pool[pick+1:]...)
	}
	return out
}
