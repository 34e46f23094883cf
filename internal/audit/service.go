package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only; there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records work-order outcomes. Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.AgentID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) LogSubmitted(ctx context.Context, agentID, callID string) error {
	return s.Append(ctx, Event{
		AgentID: agentID,
		Type:    EventTypeWorkOrderSubmitted,
		CallID:  callID,
		Message: "work order submitted",
	})
}

func (s *Service) LogSubmissionFailed(ctx context.Context, agentID, callID, message string) error {
	return s.Append(ctx, Event{
		AgentID: agentID,
		Type:    EventTypeSubmissionFailed,
		CallID:  callID,
		Message: message,
	})
}

// LogDraftDiscarded keeps an unsubmitted draft that a new call pre-empted.
// draftJSON is stored as metadata.
func (s *Service) LogDraftDiscarded(ctx context.Context, agentID, callID, supersededBy, draftJSON string) error {
	return s.Append(ctx, Event{
		AgentID:  agentID,
		Type:     EventTypeDraftDiscarded,
		CallID:   callID,
		Message:  "draft discarded by call " + supersededBy,
		Metadata: draftJSON,
	})
}
