package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEvent is one entry in the append-only (before, after) ledger.
type AuditEvent struct {
	ID         uuid.UUID       `json:"id"`
	ActorID    string          `json:"actor_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Before     json.RawMessage `json:"before_json"`
	After      json.RawMessage `json:"after_json"`
	Timestamp  time.Time       `json:"timestamp"`
}

// AnnouncementItem is one entry of the operator-facing event feed. RunID is a
// plain string because monthly-close events are not tied to a single run.
type AnnouncementItem struct {
	ID        uuid.UUID      `json:"id"`
	RunID     string         `json:"run_id"`
	Level     string         `json:"level"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload_json"`
	CreatedAt time.Time      `json:"created_at"`
}
