package telephony

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EventName identifies one of the telephony lifecycle notifications the console consumes.
type EventName string

const (
	EventCallConnected         EventName = "call-connected"
	EventIncomingCallConnected EventName = "incoming-call-connected"
	EventCallDisconnected      EventName = "call-disconnected"
)

func (n EventName) Valid() bool {
	switch n {
	case EventCallConnected, EventIncomingCallConnected, EventCallDisconnected:
		return true
	default:
		return false
	}
}

// IsConnect reports whether the event opens a call leg.
func (n EventName) IsConnect() bool {
	return n == EventCallConnected || n == EventIncomingCallConnected
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// CallEvent is the single normalized shape every bus event is converted to
// before it reaches the session state machine. Outgoing events name the
// remote party customerNumber, incoming ones callerNumber; both land in
// CustomerNumber.
type CallEvent struct {
	Name   EventName `json:"name" validate:"required"`
	CallID string    `json:"callId" validate:"required"`

	CustomerNumber string    `json:"customerNumber,omitempty"`
	AgentNumber    string    `json:"agentNumber,omitempty"`
	Direction      Direction `json:"direction,omitempty"`

	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`

	// Populated on disconnect only.
	RecordingURL    *string `json:"recordingUrl,omitempty"`
	DurationSeconds *int    `json:"duration,omitempty"`
	HangupCause     *string `json:"hangupCause,omitempty"`

	ReceivedAt time.Time `json:"receivedAt"`
}

func (e CallEvent) AgentPhone() string { return e.AgentNumber }

var (
	ErrUnknownEvent   = errors.New("telephony: unknown event name")
	ErrMalformedEvent = errors.New("telephony: malformed event")
)

// rawEvent mirrors what the event bus delivers for all three events.
type rawEvent struct {
	CallID         string   `json:"callId"`
	CustomerNumber string   `json:"customerNumber"`
	CallerNumber   string   `json:"callerNumber"`
	AgentNumber    string   `json:"agentNumber"`
	StartTime      flexTime `json:"startTime"`
	EndTime        flexTime `json:"endTime"`
	RecordingURL   string   `json:"recordingUrl"`
	Duration       flexInt  `json:"duration"`
	HangupCause    string   `json:"hangupCause"`
}

var validate = validator.New()

// ParseEvent decodes a bus payload for the named event into a CallEvent.
// Payloads without a callId are rejected with ErrMalformedEvent.
func ParseEvent(name EventName, body []byte, receivedAt time.Time) (CallEvent, error) {
	if !name.Valid() {
		return CallEvent{}, ErrUnknownEvent
	}
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return CallEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return normalize(name, raw, receivedAt)
}

func normalize(name EventName, raw rawEvent, receivedAt time.Time) (CallEvent, error) {
	ev := CallEvent{
		Name:           name,
		CallID:         strings.TrimSpace(raw.CallID),
		CustomerNumber: strings.TrimSpace(firstNonEmpty(raw.CustomerNumber, raw.CallerNumber)),
		AgentNumber:    strings.TrimSpace(raw.AgentNumber),
		StartTime:      raw.StartTime.Time,
		ReceivedAt:     receivedAt,
	}
	switch name {
	case EventIncomingCallConnected:
		ev.Direction = DirectionInbound
	case EventCallConnected:
		ev.Direction = DirectionOutbound
	}
	if name.IsConnect() && ev.StartTime.IsZero() {
		ev.StartTime = receivedAt
	}
	if name == EventCallDisconnected {
		if !raw.EndTime.IsZero() {
			t := raw.EndTime.Time
			ev.EndTime = &t
		} else {
			t := receivedAt
			ev.EndTime = &t
		}
		if s := strings.TrimSpace(raw.RecordingURL); s != "" {
			ev.RecordingURL = &s
		}
		if raw.Duration.set {
			d := raw.Duration.n
			ev.DurationSeconds = &d
		}
		if s := strings.TrimSpace(raw.HangupCause); s != "" {
			ev.HangupCause = &s
		}
	}

	if err := validate.Struct(ev); err != nil {
		return CallEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return ev, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// flexTime accepts RFC3339 strings, unix milliseconds, or null.
type flexTime struct{ time.Time }

func (t *flexTime) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` || s == "" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		if ms, err := strconv.ParseInt(str, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms)
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, str)
		if err != nil {
			return fmt.Errorf("invalid time %q", str)
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid time %s", s)
	}
	t.Time = time.UnixMilli(ms)
	return nil
}

// flexInt accepts a JSON number or a numeric string. Garbage leaves it unset.
type flexInt struct {
	n   int
	set bool
}

func (i *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	i.n = int(f)
	i.set = true
	return nil
}
