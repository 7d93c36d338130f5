package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Discovery outcomes.
const (
	OutcomeAccepted      = "accepted"
	OutcomeDuplicate     = "duplicate"
	OutcomeLowConfidence = "low_confidence"
)

var (
	discoveryOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrichment",
		Subsystem: "discovery",
		Name:      "candidates_total",
		Help:      "Discovered candidates grouped by pipeline outcome.",
	}, []string{"outcome"})

	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "enrichment",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent discovered activity persisted.",
	})

	recommendationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrichment",
		Subsystem: "selector",
		Name:      "recommendations_total",
		Help:      "Recommendation requests grouped by ordering mode.",
	}, []string{"mode"})

	corpusCacheCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrichment",
		Subsystem: "cache",
		Name:      "corpus_lookups_total",
		Help:      "Corpus cache lookups grouped by result (hit, miss, error).",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(discoveryOutcomes, activityPersistGauge, recommendationCounter, corpusCacheCounter)
}

// RecordDiscoveryOutcome counts n candidates with the given outcome.
func RecordDiscoveryOutcome(outcome string, n int) {
	if n <= 0 {
		return
	}
	discoveryOutcomes.WithLabelValues(outcome).Add(float64(n))
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordRecommendation counts a recommendation request.
func RecordRecommendation(mode string) {
	recommendationCounter.WithLabelValues(mode).Inc()
}

// RecordCorpusLookup counts a corpus cache lookup result.
func RecordCorpusLookup(result string) {
	corpusCacheCounter.WithLabelValues(result).Inc()
}

// DiscoveryOutcomes exposes the outcome counter for assertions.
func DiscoveryOutcomes() *prometheus.CounterVec {
	return discoveryOutcomes
}
