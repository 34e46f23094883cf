package calls

import (
	"time"

	"agent-console/internal/telephony"
)

// Session is the tracked state of one telephony leg.
//
// Invariant: a console tracks at most one current Session. A connect event
// always replaces it wholesale; only the matching disconnect mutates it.
//
// Terminal fields (EndTime, RecordingURL, DurationSeconds, HangupCause) are
// nil until the leg is disconnected.
type Session struct {
	CallID         string              `json:"callId"`
	CustomerNumber string              `json:"customerNumber"`
	AgentNumber    string              `json:"agentNumber"`
	Direction      telephony.Direction `json:"direction"`

	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`

	Active bool `json:"active"`

	RecordingURL    *string `json:"recordingUrl"`
	DurationSeconds *int    `json:"durationSeconds"`
	HangupCause     *string `json:"hangupCause"`
}

// State is the lifecycle position of the tracker.
type State string

const (
	StateNoSession    State = "no_session"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

// Duration returns the reported duration, falling back to end minus start
// when the disconnect event did not carry one.
func (s Session) Duration() (int, bool) {
	if s.DurationSeconds != nil {
		return *s.DurationSeconds, true
	}
	if s.EndTime != nil && !s.StartTime.IsZero() && s.EndTime.After(s.StartTime) {
		return int(s.EndTime.Sub(s.StartTime).Seconds()), true
	}
	return 0, false
}

func (s Session) IsZero() bool { return s.CallID == "" }
