package identity

import (
	"errors"
	"strings"
	"unicode"
)

// countryPrefix is stripped only when exactly a national number follows it.
const (
	countryPrefix     = "91"
	nationalNumberLen = 10
)

// AgentIdentity is the authenticated agent this console instance acts for.
// It is resolved once (from verified token claims) and never mutated afterwards.
type AgentIdentity struct {
	AgentID string `json:"agent_id"`
	Phone   string `json:"phone"`
	Name    string `json:"name,omitempty"`
}

var ErrIncompleteIdentity = errors.New("identity: agent_id and phone are required")

func New(agentID, phone, name string) (AgentIdentity, error) {
	agentID = strings.TrimSpace(agentID)
	phone = strings.TrimSpace(phone)
	if agentID == "" || phone == "" {
		return AgentIdentity{}, ErrIncompleteIdentity
	}
	return AgentIdentity{AgentID: agentID, Phone: phone, Name: strings.TrimSpace(name)}, nil
}

// NormalizedPhone returns the comparable form of the agent phone.
func (a AgentIdentity) NormalizedPhone() string { return NormalizePhone(a.Phone) }

// NormalizePhone reduces a phone number to its national form:
// whitespace, '+' and '-' are removed, and a leading 91 is dropped when
// exactly ten digits follow it. The result is a fixed point of NormalizePhone.
func NormalizePhone(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '+' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) == len(countryPrefix)+nationalNumberLen && strings.HasPrefix(out, countryPrefix) {
		out = out[len(countryPrefix):]
	}
	return out
}

// AgentNumbered is any inbound event that names the agent leg of a call.
type AgentNumbered interface {
	AgentPhone() string
}

// Filter decides whether an event belongs to the local agent.
type Filter struct {
	agent string
}

func NewFilter(id AgentIdentity) Filter {
	return Filter{agent: id.NormalizedPhone()}
}

// BelongsToCurrentAgent is fail-closed: without a known agent number every event is rejected.
func (f Filter) BelongsToCurrentAgent(ev AgentNumbered) bool {
	if f.agent == "" || ev == nil {
		return false
	}
	n := NormalizePhone(ev.AgentPhone())
	return n != "" && n == f.agent
}
