package workorder

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownField = errors.New("workorder: unknown field")
	ErrInvalidValue = errors.New("workorder: invalid field value")
	ErrFormClosed   = errors.New("workorder: form is not open")
)

// Field names accepted by UpdateField.
const (
	FieldSupportTypeID = "supportTypeId"
	FieldProcessTypeID = "processTypeId"
	FieldQueryTypeID   = "queryTypeId"
	FieldProblemID     = "problemId"
	FieldSubProblemID  = "subProblemId"
	FieldRemarks       = "remarks"
	FieldStatus        = "status"
	FieldFollowUpDate  = "followUpDate"
	FieldInquiryNumber = "inquiryNumber"
	FieldCallTimestamp = "callTimestamp"
	FieldContactName   = "contactName"
	FieldRegion        = "region"
	FieldContactType   = "contactType"
)

type form struct {
	draft   *Draft
	contact *ContactSide
}

// dependency clears Field whenever the owning field goes from prev to next and When holds.
type dependency struct {
	Field string
	When  func(prev, next string) bool
}

type fieldRule struct {
	get     func(f form) string
	set     func(f form, v string) error
	clears  []dependency
	trimmed bool
}

func changed(prev, next string) bool { return prev != next }

var fieldRules = map[string]fieldRule{
	FieldSupportTypeID: {
		get:     func(f form) string { return f.draft.SupportTypeID },
		set:     func(f form, v string) error { f.draft.SupportTypeID = v; return nil },
		trimmed: true,
	},
	FieldProcessTypeID: {
		get:     func(f form) string { return f.draft.ProcessTypeID },
		set:     func(f form, v string) error { f.draft.ProcessTypeID = v; return nil },
		trimmed: true,
	},
	FieldQueryTypeID: {
		get:     func(f form) string { return f.draft.QueryTypeID },
		set:     func(f form, v string) error { f.draft.QueryTypeID = v; return nil },
		trimmed: true,
	},
	FieldProblemID: {
		get:     func(f form) string { return f.draft.ProblemID },
		set:     func(f form, v string) error { f.draft.ProblemID = v; return nil },
		clears:  []dependency{{Field: FieldSubProblemID, When: changed}},
		trimmed: true,
	},
	FieldSubProblemID: {
		get:     func(f form) string { return f.draft.SubProblemID },
		set:     func(f form, v string) error { f.draft.SubProblemID = v; return nil },
		trimmed: true,
	},
	FieldRemarks: {
		get: func(f form) string { return f.draft.Remarks },
		set: func(f form, v string) error { f.draft.Remarks = v; return nil },
	},
	FieldStatus: {
		get: func(f form) string { return string(f.draft.Status) },
		set: func(f form, v string) error {
			switch Status(v) {
			case StatusOpen, StatusClosed:
				f.draft.Status = Status(v)
				return nil
			default:
				return fmt.Errorf("%w: status %q", ErrInvalidValue, v)
			}
		},
		clears:  []dependency{{Field: FieldFollowUpDate, When: func(_, next string) bool { return Status(next) == StatusClosed }}},
		trimmed: true,
	},
	FieldFollowUpDate: {
		get:     func(f form) string { return f.draft.FollowUpDate },
		set:     func(f form, v string) error { f.draft.FollowUpDate = v; return nil },
		trimmed: true,
	},
	FieldInquiryNumber: {
		get:     func(f form) string { return f.draft.InquiryNumber },
		set:     func(f form, v string) error { f.draft.InquiryNumber = v; return nil },
		trimmed: true,
	},
	FieldCallTimestamp: {
		get:     func(f form) string { return f.draft.CallTimestamp },
		set:     func(f form, v string) error { f.draft.CallTimestamp = v; return nil },
		trimmed: true,
	},
	FieldContactName: {
		get: func(f form) string { return f.contact.ContactName },
		set: func(f form, v string) error { f.contact.ContactName = v; return nil },
	},
	FieldRegion: {
		get:     func(f form) string { return f.contact.Region },
		set:     func(f form, v string) error { f.contact.Region = v; return nil },
		trimmed: true,
	},
	FieldContactType: {
		get: func(f form) string { return string(f.contact.ContactType) },
		set: func(f form, v string) error {
			if !ContactType(v).Valid() {
				return fmt.Errorf("%w: contactType %q", ErrInvalidValue, v)
			}
			f.contact.ContactType = ContactType(v)
			return nil
		},
		trimmed: true,
	},
}

// applyField assigns one field and evaluates its dependency rules in a single
// transition. It returns the touched field followed by any dependents it cleared.
func applyField(d *Draft, c *ContactSide, name, value string) ([]string, error) {
	rule, ok := fieldRules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	if rule.trimmed {
		value = strings.TrimSpace(value)
	}

	f := form{draft: d, contact: c}
	prev := rule.get(f)
	if err := rule.set(f, value); err != nil {
		return nil, err
	}
	touched := []string{name}
	for _, dep := range rule.clears {
		if !dep.When(prev, value) {
			continue
		}
		depRule := fieldRules[dep.Field]
		if depRule.get(f) == "" {
			continue
		}
		_ = depRule.set(f, "")
		touched = append(touched, dep.Field)
	}
	return touched, nil
}

// FieldNames lists every updatable field.
func FieldNames() []string {
	out := make([]string, 0, len(fieldRules))
	for k := range fieldRules {
		out = append(out, k)
	}
	return out
}
