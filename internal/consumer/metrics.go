package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Message outcomes reported by the processor.
const (
	outcomeHandled     = "handled"
	outcomeRetryable   = "retryable_error"
	outcomePoison      = "poison"
	outcomeUndecodable = "undecodable"
)

var (
	messagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrichment",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Kafka messages seen by the discovery consumer, by topic and outcome.",
	}, []string{"topic", "outcome"})

	handledAtGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "enrichment",
		Subsystem: "consumer",
		Name:      "last_handled_timestamp_seconds",
		Help:      "Produce time of the newest message handled per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(messagesCounter, handledAtGauge)
}

func recordOutcome(msg Message, outcome string) {
	messagesCounter.WithLabelValues(msg.Topic, outcome).Inc()
	if outcome == outcomeHandled && !msg.Timestamp.IsZero() {
		handledAtGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}
