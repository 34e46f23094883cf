package calls

import (
	"errors"
	"testing"
	"time"

	"agent-console/internal/telephony"
)

func connect(id string) telephony.CallEvent {
	return telephony.CallEvent{
		Name:           telephony.EventIncomingCallConnected,
		CallID:         id,
		CustomerNumber: "9876500001",
		AgentNumber:    "9876543210",
		Direction:      telephony.DirectionInbound,
		StartTime:      time.Unix(1700000000, 0).UTC(),
	}
}

func disconnect(id string) telephony.CallEvent {
	end := time.Unix(1700000090, 0).UTC()
	url := "https://rec/" + id
	dur := 90
	cause := "NORMAL_CLEARING"
	return telephony.CallEvent{
		Name:            telephony.EventCallDisconnected,
		CallID:          id,
		EndTime:         &end,
		RecordingURL:    &url,
		DurationSeconds: &dur,
		HangupCause:     &cause,
	}
}

func TestTracker_ConnectReplacesSessionWholesale(t *testing.T) {
	tr := NewTracker()
	if tr.State() != StateNoSession {
		t.Fatalf("expected no session")
	}
	if _, err := tr.Connect(connect("A")); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := tr.Disconnect(disconnect("A")); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	s, err := tr.Connect(connect("B"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if s.CallID != "B" || !s.Active {
		t.Fatalf("unexpected session %+v", s)
	}
	if s.EndTime != nil || s.RecordingURL != nil || s.DurationSeconds != nil || s.HangupCause != nil {
		t.Fatalf("expected terminal fields cleared, got %+v", s)
	}
	if tr.State() != StateConnected {
		t.Fatalf("expected connected")
	}
}

func TestTracker_LatestConnectAlwaysWins(t *testing.T) {
	tr := NewTracker()
	ids := []string{"A", "B", "C", "B", "D"}
	for _, id := range ids {
		if _, err := tr.Connect(connect(id)); err != nil {
			t.Fatalf("connect %s: %v", id, err)
		}
		cur, ok := tr.Current()
		if !ok || cur.CallID != id || !cur.Active {
			t.Fatalf("expected %s active, got %+v", id, cur)
		}
	}
}

func TestTracker_StaleDisconnectLeavesSessionActive(t *testing.T) {
	tr := NewTracker()
	_, _ = tr.Connect(connect("A"))
	_, _ = tr.Connect(connect("B"))

	_, err := tr.Disconnect(disconnect("A"))
	if !errors.Is(err, ErrStaleEvent) {
		t.Fatalf("expected ErrStaleEvent, got %v", err)
	}
	cur, _ := tr.Current()
	if cur.CallID != "B" || !cur.Active {
		t.Fatalf("expected B still active, got %+v", cur)
	}
}

func TestTracker_DisconnectPopulatesTerminalFields(t *testing.T) {
	tr := NewTracker()
	_, _ = tr.Connect(connect("A"))
	s, err := tr.Disconnect(disconnect("A"))
	if err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if s.Active {
		t.Fatalf("expected inactive")
	}
	if s.EndTime == nil || s.RecordingURL == nil || s.HangupCause == nil {
		t.Fatalf("expected terminal fields, got %+v", s)
	}
	if d, ok := s.Duration(); !ok || d != 90 {
		t.Fatalf("expected duration 90, got %d", d)
	}
	if tr.State() != StateDisconnected {
		t.Fatalf("expected disconnected")
	}
}

func TestTracker_MalformedEventsDoNotCorruptSession(t *testing.T) {
	tr := NewTracker()
	_, _ = tr.Connect(connect("A"))

	if _, err := tr.Connect(connect("")); !errors.Is(err, ErrMissingCallID) {
		t.Fatalf("expected ErrMissingCallID, got %v", err)
	}
	if _, err := tr.Disconnect(disconnect("")); !errors.Is(err, ErrMissingCallID) {
		t.Fatalf("expected ErrMissingCallID, got %v", err)
	}
	cur, _ := tr.Current()
	if cur.CallID != "A" || !cur.Active {
		t.Fatalf("expected A untouched, got %+v", cur)
	}
}

func TestSession_DurationFallsBackToTimestamps(t *testing.T) {
	start := time.Unix(1700000000, 0)
	end := start.Add(42 * time.Second)
	s := Session{CallID: "A", StartTime: start, EndTime: &end}
	if d, ok := s.Duration(); !ok || d != 42 {
		t.Fatalf("expected 42, got %d %v", d, ok)
	}
	if _, ok := (Session{CallID: "A"}).Duration(); ok {
		t.Fatalf("expected no duration")
	}
}
