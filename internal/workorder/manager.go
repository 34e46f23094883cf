package workorder

import (
	"fmt"
	"time"

	"agent-console/internal/calls"
	"agent-console/internal/identity"
	"agent-console/internal/telephony"

	"github.com/google/uuid"
)

// CallTimestampLayout is local wall-clock time at minute precision.
const CallTimestampLayout = "2006-01-02T15:04"

// Manager owns the work-order form of one agent console: whether it is open,
// its status, the draft, contact side data and validation errors.
//
// Every reset bumps the generation. Asynchronous work started against one
// generation must not write into a later one.
//
// Manager is not safe for concurrent use; the coordinator serializes access.
type Manager struct {
	exemptProblemID string
	loc             *time.Location

	open       bool
	status     FormStatus
	draft      Draft
	contact    ContactSide
	errors     map[string]string
	lastError  string
	generation uint64
}

type Options struct {
	ExemptProblemID string
	Location        *time.Location
}

func NewManager(opts Options) *Manager {
	if opts.ExemptProblemID == "" {
		opts.ExemptProblemID = DefaultExemptProblemID
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	m := &Manager{exemptProblemID: opts.ExemptProblemID, loc: opts.Location}
	m.reset()
	return m
}

func (m *Manager) reset() {
	m.status = FormStatusIdle
	m.draft = NewDraft()
	m.contact = ContactSide{}
	m.errors = map[string]string{}
	m.generation++
}

// Open resets the form and populates it from the session and the agent identity.
func (m *Manager) Open(s calls.Session, id identity.AgentIdentity) Draft {
	m.reset()
	m.open = true
	m.draft.CallID = s.CallID
	m.draft.AgentID = id.AgentID
	if !s.StartTime.IsZero() {
		m.draft.CallTimestamp = s.StartTime.In(m.loc).Format(CallTimestampLayout)
	}
	m.draft.CallType = CallTypeFor(s.Direction)
	return m.draft
}

// CallTypeFor maps a call direction to the work-order call type.
// Anything unrecognized is treated as outbound.
func CallTypeFor(d telephony.Direction) CallType {
	if d == telephony.DirectionInbound {
		return CallTypeInBound
	}
	return CallTypeOutBound
}

// Reset discards the draft without closing the form.
func (m *Manager) Reset() { m.reset() }

// Close resets and closes the form. It reports whether the caller should
// also forget the tracked session, which is only the case when the call is
// no longer active.
func (m *Manager) Close(sessionActive bool) (clearSession bool) {
	m.reset()
	m.open = false
	return !sessionActive
}

// EnsureCallID resets the draft when it belongs to a different call than the
// connected one. It reports whether a reset happened.
func (m *Manager) EnsureCallID(callID string) bool {
	if m.draft.CallID == callID {
		return false
	}
	m.reset()
	m.draft.CallID = callID
	return true
}

// UpdateField assigns one field, applies its dependent-field rules and clears
// validation errors for every field it touched.
func (m *Manager) UpdateField(name, value string) ([]string, error) {
	if !m.open {
		return nil, ErrFormClosed
	}
	touched, err := applyField(&m.draft, &m.contact, name, value)
	if err != nil {
		return nil, err
	}
	for _, f := range touched {
		delete(m.errors, f)
	}
	return touched, nil
}

// Validate runs validation against the form's own contact side data and
// records the resulting errors.
func (m *Manager) Validate() Result { return m.ValidateWith(m.contact) }

// ValidateWith validates the draft as if c were its contact.
func (m *Manager) ValidateWith(c ContactSide) Result {
	res := Validate(m.draft, c, m.exemptProblemID)
	m.errors = copyErrors(res.Errors)
	return res
}

func (m *Manager) AddAttachment(filename, contentType string, data []byte) (Attachment, error) {
	if !m.open {
		return Attachment{}, ErrFormClosed
	}
	if filename == "" {
		return Attachment{}, fmt.Errorf("%w: attachment filename", ErrInvalidValue)
	}
	a := Attachment{ID: uuid.NewString(), Filename: filename, ContentType: contentType, Data: data}
	m.draft.Attachments = append(m.draft.Attachments, a)
	return a, nil
}

func (m *Manager) RemoveAttachment(id string) bool {
	for i, a := range m.draft.Attachments {
		if a.ID == id {
			m.draft.Attachments = append(m.draft.Attachments[:i:i], m.draft.Attachments[i+1:]...)
			return true
		}
	}
	return false
}

// SetStatus moves the form status. Leaving the error state keeps the sticky last error.
func (m *Manager) SetStatus(s FormStatus) { m.status = s }

// Fail records a submission failure: status error, a transient form error and
// the sticky last error.
func (m *Manager) Fail(msg string) {
	m.status = FormStatusError
	m.errors["submit"] = msg
	m.lastError = msg
}

// FailValidation records per-field validation errors.
func (m *Manager) FailValidation(errs map[string]string) {
	m.status = FormStatusError
	m.errors = copyErrors(errs)
}

// Succeed marks a successful submission and clears the sticky last error.
func (m *Manager) Succeed() {
	m.status = FormStatusSubmitted
	m.lastError = ""
	delete(m.errors, "submit")
}

// Restore installs persisted form state. Attachments are never restored.
func (m *Manager) Restore(open bool, status FormStatus, d Draft, c ContactSide) {
	m.reset()
	m.open = open
	if status.Valid() {
		m.status = status
	}
	// A restart interrupts any in-flight submission; the agent resubmits.
	if m.status == FormStatusSubmitting || m.status == FormStatusLoading {
		m.status = FormStatusIdle
	}
	m.draft = d.WithoutAttachments()
	m.contact = c
}

func (m *Manager) IsOpen() bool            { return m.open }
func (m *Manager) Status() FormStatus      { return m.status }
func (m *Manager) Contact() ContactSide    { return m.contact }
func (m *Manager) LastError() string       { return m.lastError }
func (m *Manager) Generation() uint64      { return m.generation }
func (m *Manager) ExemptProblemID() string { return m.exemptProblemID }

// Draft returns a copy of the draft, attachments included.
func (m *Manager) Draft() Draft {
	d := m.draft
	d.Attachments = append([]Attachment(nil), m.draft.Attachments...)
	return d
}

func (m *Manager) Errors() map[string]string { return copyErrors(m.errors) }

func copyErrors(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
