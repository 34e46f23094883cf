package workorder

// FormStatus is the single lifecycle status of the work-order form.
type FormStatus string

const (
	FormStatusIdle       FormStatus = "idle"
	FormStatusLoading    FormStatus = "loading"
	FormStatusSubmitting FormStatus = "submitting"
	FormStatusSubmitted  FormStatus = "submitted"
	FormStatusError      FormStatus = "error"
)

func (s FormStatus) Valid() bool {
	switch s {
	case FormStatusIdle, FormStatusLoading, FormStatusSubmitting, FormStatusSubmitted, FormStatusError:
		return true
	default:
		return false
	}
}

type CallType string

const (
	CallTypeInBound  CallType = "InBound"
	CallTypeOutBound CallType = "OutBound"
)

// Status of the customer issue the work order records.
type Status string

const (
	StatusOpen   Status = "Open"
	StatusClosed Status = "Closed"
)

type ContactType string

const (
	ContactTypeTrader    ContactType = "Trader"
	ContactTypeNonTrader ContactType = "Non-Trader"
)

// Valid accepts the two contact types and the empty value.
func (t ContactType) Valid() bool {
	switch t {
	case "", ContactTypeTrader, ContactTypeNonTrader:
		return true
	default:
		return false
	}
}

// Attachment is a file the agent attached to the draft. Attachments live in
// memory only and are never persisted.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// Draft is the post-call work-order form. JSON names match the backend
// form-details fields.
type Draft struct {
	CallID        string   `json:"callId"`
	AgentID       string   `json:"agentId"`
	CallTimestamp string   `json:"callTimestamp"`
	CallType      CallType `json:"callType"`

	SupportTypeID string `json:"supportTypeId"`
	ProcessTypeID string `json:"processTypeId"`
	QueryTypeID   string `json:"queryTypeId"`
	ProblemID     string `json:"problemId"`
	SubProblemID  string `json:"subProblemId"`

	Remarks       string `json:"remarks"`
	Status        Status `json:"status"`
	FollowUpDate  string `json:"followUpDate"`
	InquiryNumber string `json:"inquiryNumber"`

	Attachments []Attachment `json:"-"`
}

// NewDraft returns the empty form.
func NewDraft() Draft {
	return Draft{Status: StatusOpen}
}

// Dirty reports whether the agent has entered anything beyond the
// auto-populated fields.
func (d Draft) Dirty() bool {
	return d.SupportTypeID != "" || d.ProcessTypeID != "" || d.QueryTypeID != "" ||
		d.ProblemID != "" || d.SubProblemID != "" || d.Remarks != "" ||
		d.FollowUpDate != "" || d.InquiryNumber != "" || len(d.Attachments) > 0
}

// WithoutAttachments returns a copy safe for persistence.
func (d Draft) WithoutAttachments() Draft {
	d.Attachments = nil
	return d
}

// ContactSide holds contact details entered alongside the form. They are not
// part of the draft's primary shape and are merged in at submission time.
type ContactSide struct {
	ContactName string      `json:"contactName"`
	Region      string      `json:"region"`
	ContactType ContactType `json:"contactType"`
}

func (c ContactSide) IsZero() bool {
	return c.ContactName == "" && c.Region == "" && c.ContactType == ""
}
