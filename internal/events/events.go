// Package events defines the payloads exchanged with the discovery pipeline over Kafka.
package events

import "time"

// Topic and event type names.
const (
	TopicDiscoveryContent   = "discovery.content_received"
	TopicActivityDiscovered = "activity.discovered"

	TypeDiscoveryContentReceived = "discovery.content_received.v1"
	TypeActivityDiscovered       = "activity.discovered.v1"

	ActivityDiscoveredVersion = "v1"
)

// DiscoveryItem is one raw text block produced by a scraper or LLM worker.
type DiscoveryItem struct {
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	SourceURL string `json:"source_url,omitempty"`
}

// DiscoveryContentReceived carries a batch of raw content for one owner.
type DiscoveryContentReceived struct {
	RequestID   string          `json:"request_id"`
	OwnerID     string          `json:"owner_id"`
	Items       []DiscoveryItem `json:"items"`
	RequestedAt time.Time       `json:"requested_at"`
}

// ActivityDiscovered is emitted once a discovered activity has been accepted and stored.
type ActivityDiscovered struct {
	ActivityID   string    `json:"activity_id"`
	OwnerID      string    `json:"owner_id"`
	Title        string    `json:"title"`
	Pillar       string    `json:"pillar"`
	QualityScore float64   `json:"quality_score"`
	DiscoveredAt time.Time `json:"discovered_at"`
	SourceURL    string    `json:"source_url,omitempty"`
	Version      string    `json:"version"`
}
