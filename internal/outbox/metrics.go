package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "enrichment",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Number of outbox events successfully published to Kafka.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "enrichment",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Number of outbox events that failed to publish.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "enrichment",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent claiming, delivering, and marking outbox batches.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrichment",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Number of outbox events routed to the dead-letter table, labeled by topic.",
	}, []string{"topic"})

	dlqReplayedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrichment",
		Subsystem: "dlq",
		Name:      "events_replayed_total",
		Help:      "Number of dead-lettered events handed back to the outbox.",
	}, []string{"topic"})

	dlqRetryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrichment",
		Subsystem: "dlq",
		Name:      "retry_scheduled_total",
		Help:      "Number of replays that could not run and were rescheduled.",
	}, []string{"topic"})

	dlqQuarantinedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrichment",
		Subsystem: "dlq",
		Name:      "events_quarantined_total",
		Help:      "Number of dead-lettered events quarantined after exhausting retries.",
	}, []string{"topic"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "enrichment",
		Subsystem: "dlq",
		Name:      "pending_events",
		Help:      "Dead-lettered events waiting for replay.",
	})
)

func init() {
	prometheus.MustRegister(
		deliveredCounter, failedCounter, batchDuration, dlqCounter,
		dlqReplayedCounter, dlqRetryCounter, dlqQuarantinedCounter, dlqBacklogGauge,
	)
}
