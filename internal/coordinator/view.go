package coordinator

import (
	"agent-console/internal/calls"
	"agent-console/internal/gateway"
	"agent-console/internal/telephony"
	"agent-console/internal/workorder"
)

// View is the read-only state the console UI renders.
type View struct {
	IsFormOpen         bool                   `json:"isFormOpen"`
	FormStatus         workorder.FormStatus   `json:"formStatus"`
	CallState          calls.State            `json:"callState"`
	ActiveCallSession  *calls.Session         `json:"activeCallSession"`
	CurrentCallDetails *telephony.CallEvent   `json:"currentCallDetails"`
	Draft              workorder.Draft        `json:"draft"`
	Attachments        []workorder.Attachment `json:"attachments"`
	ContactSideData    workorder.ContactSide  `json:"contactSideData"`
	SavedContact       *gateway.Contact       `json:"savedContact"`
	Errors             map[string]string      `json:"errors"`
	LastError          string                 `json:"lastError,omitempty"`
}

func (c *Coordinator) viewLocked() View {
	d := c.form.Draft()
	v := View{
		IsFormOpen:      c.form.IsOpen(),
		FormStatus:      c.form.Status(),
		CallState:       c.tracker.State(),
		Draft:           d,
		Attachments:     d.Attachments,
		ContactSideData: c.form.Contact(),
		SavedContact:    c.savedContact,
		Errors:          c.form.Errors(),
		LastError:       c.form.LastError(),
	}
	if v.Attachments == nil {
		v.Attachments = []workorder.Attachment{}
	}
	if cur, ok := c.tracker.Current(); ok {
		v.ActiveCallSession = &cur
	}
	if c.lastEvent != nil {
		ev := *c.lastEvent
		v.CurrentCallDetails = &ev
	}
	return v
}
