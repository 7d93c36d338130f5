package outbox

import "example.com/enrichment/internal/events"

const activityDiscoveredSchema = `{
  "type": "object",
  "title": "ActivityDiscovered",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "title": {"type": "string"},
    "pillar": {"type": "string", "enum": ["mental", "physical", "social", "environmental", "instinctual"]},
    "quality_score": {"type": "number", "minimum": 0, "maximum": 1},
    "discovered_at": {"type": "string", "format": "date-time"},
    "source_url": {"type": "string"},
    "version": {"type": "string"}
  },
  "required": ["activity_id", "owner_id", "title", "pillar", "quality_score", "discovered_at", "version"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps an event type to its JSON schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeActivityDiscovered: {Schema: activityDiscoveredSchema},
}
