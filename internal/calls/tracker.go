package calls

import (
	"errors"

	"agent-console/internal/telephony"
)

var (
	ErrMissingCallID = errors.New("calls: event has no call id")
	ErrStaleEvent    = errors.New("calls: event does not match the current session")
	ErrNotConnect    = errors.New("calls: not a connect event")
)

// ApplyConnect builds the session a connect event opens. The previous
// session is never consulted: a new call replaces it.
func ApplyConnect(ev telephony.CallEvent) (Session, error) {
	if ev.CallID == "" {
		return Session{}, ErrMissingCallID
	}
	if !ev.Name.IsConnect() {
		return Session{}, ErrNotConnect
	}
	return Session{
		CallID:         ev.CallID,
		CustomerNumber: ev.CustomerNumber,
		AgentNumber:    ev.AgentNumber,
		Direction:      ev.Direction,
		StartTime:      ev.StartTime,
		Active:         true,
	}, nil
}

// ApplyDisconnect returns cur with its terminal fields populated when ev
// refers to the same call. Any other call id yields ErrStaleEvent and cur unchanged.
func ApplyDisconnect(cur Session, ev telephony.CallEvent) (Session, error) {
	if ev.CallID == "" {
		return cur, ErrMissingCallID
	}
	if cur.IsZero() || cur.CallID != ev.CallID {
		return cur, ErrStaleEvent
	}
	next := cur
	next.Active = false
	next.EndTime = ev.EndTime
	next.RecordingURL = ev.RecordingURL
	next.DurationSeconds = ev.DurationSeconds
	next.HangupCause = ev.HangupCause
	return next, nil
}

// Tracker owns the single current session of one agent console.
// It is not safe for concurrent use; the coordinator serializes access.
type Tracker struct {
	current Session
}

func NewTracker() *Tracker { return &Tracker{} }

// Restore installs a previously persisted session.
func (t *Tracker) Restore(s *Session) {
	if s == nil {
		t.current = Session{}
		return
	}
	t.current = *s
}

func (t *Tracker) Connect(ev telephony.CallEvent) (Session, error) {
	s, err := ApplyConnect(ev)
	if err != nil {
		return t.current, err
	}
	t.current = s
	return s, nil
}

func (t *Tracker) Disconnect(ev telephony.CallEvent) (Session, error) {
	s, err := ApplyDisconnect(t.current, ev)
	if err != nil {
		return t.current, err
	}
	t.current = s
	return s, nil
}

// Clear forgets the session. Callers must only clear inactive sessions.
func (t *Tracker) Clear() { t.current = Session{} }

func (t *Tracker) Current() (Session, bool) {
	return t.current, !t.current.IsZero()
}

func (t *Tracker) State() State {
	switch {
	case t.current.IsZero():
		return StateNoSession
	case t.current.Active:
		return StateConnected
	default:
		return StateDisconnected
	}
}
