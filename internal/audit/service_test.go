package audit

import (
	"context"
	"testing"
	"time"
)

func TestService_AppendRequiresAgentAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeWorkOrderSubmitted}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{AgentID: "ag-1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_StampsIDAndTime(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return fixed }

	if err := svc.LogSubmitted(context.Background(), "ag-1", "A"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].ID == "" || !evs[0].CreatedAt.Equal(fixed) {
		t.Fatalf("expected id and created_at stamped, got %+v", evs[0])
	}
	if evs[0].Type != EventTypeWorkOrderSubmitted || evs[0].CallID != "A" {
		t.Fatalf("unexpected event %+v", evs[0])
	}
}

func TestService_DraftDiscardedKeepsDraft(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogDraftDiscarded(context.Background(), "ag-1", "A", "B", `{"remarks":"x"}`); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	evs := repo.OfType(EventTypeDraftDiscarded)
	if len(evs) != 1 || evs[0].Metadata != `{"remarks":"x"}` || evs[0].CallID != "A" {
		t.Fatalf("unexpected events %+v", evs)
	}
}

func TestService_NilIsNotConfigured(t *testing.T) {
	var svc *Service
	if err := svc.LogSubmitted(context.Background(), "ag-1", "A"); err == nil {
		t.Fatalf("expected error from nil service")
	}
}
