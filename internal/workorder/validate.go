package workorder

import "strings"

// DefaultExemptProblemID is the problem category that needs no sub problem.
const DefaultExemptProblemID = "7"

// Validation messages, keyed by field.
const (
	MsgAgentIDRequired       = "Agent ID is required"
	MsgCallTimestampRequired = "Call timestamp is required"
	MsgRemarksRequired       = "Remarks are required"
	MsgProblemRequired       = "Problem is required"
	MsgSubProblemRequired    = "Sub problem is required"
	MsgFollowUpRequired      = "Follow-up date is required when status is Open"
)

type Result struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors"`
}

// Validate checks a draft together with its contact side data.
// Problem, sub problem and follow-up rules are waived for Non-Trader contacts.
func Validate(d Draft, c ContactSide, exemptProblemID string) Result {
	errs := map[string]string{}

	if strings.TrimSpace(d.AgentID) == "" {
		errs["agentId"] = MsgAgentIDRequired
	}
	if strings.TrimSpace(d.CallTimestamp) == "" {
		errs[FieldCallTimestamp] = MsgCallTimestampRequired
	}
	if strings.TrimSpace(d.Remarks) == "" {
		errs[FieldRemarks] = MsgRemarksRequired
	}

	if c.ContactType != ContactTypeNonTrader {
		if d.ProblemID == "" {
			errs[FieldProblemID] = MsgProblemRequired
		}
		if d.SubProblemID == "" && d.ProblemID != exemptProblemID {
			errs[FieldSubProblemID] = MsgSubProblemRequired
		}
		if d.Status == StatusOpen && d.FollowUpDate == "" {
			errs[FieldFollowUpDate] = MsgFollowUpRequired
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}
