package audit

import "time"

// Event is an immutable, append-only record of a work-order outcome.
//
// Invariants:
// - Events are never updated or deleted.
// - agent_id is required; every event belongs to one agent console.
// - Recording is best-effort; console flows never block on it.
//
// Storage (Postgres): table console_audit_events, INSERT only.
type Event struct {
	ID      string    `json:"id" db:"id"`
	AgentID string    `json:"agent_id" db:"agent_id"`
	Type    EventType `json:"type" db:"type"`

	CallID string `json:"call_id,omitempty" db:"call_id"`

	// Message is a short human-readable description for ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON, e.g. the discarded draft.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeWorkOrderSubmitted EventType = "work_order_submitted"
	EventTypeSubmissionFailed   EventType = "submission_failed"
	EventTypeDraftDiscarded     EventType = "draft_discarded"
)
