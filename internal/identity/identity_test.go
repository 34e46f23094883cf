package identity

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type numbered string

func (n numbered) AgentPhone() string { return string(n) }

func TestNormalizePhone_Formats(t *testing.T) {
	cases := map[string]string{
		"+919876543210":     "9876543210",
		"919876543210":      "9876543210",
		"9876543210":        "9876543210",
		"+91-98765-43210":   "9876543210",
		" +91 98765 43210 ": "9876543210",
		"9112345678":        "9112345678",
		"":                  "",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizePhone_Idempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	decorate := gen.OneConstOf("", "+", "91", "+91", "+91-", "91 ", "+91 ")

	properties.Property("normalize(normalize(x)) == normalize(x)", prop.ForAll(
		func(prefix string, digits string, sep string) bool {
			in := prefix + digits
			if len(digits) > 5 {
				in = prefix + digits[:5] + sep + digits[5:]
			}
			once := NormalizePhone(in)
			return NormalizePhone(once) == once
		},
		decorate,
		gen.NumString(),
		gen.OneConstOf("", "-", " "),
	))

	properties.TestingRun(t)
}

func TestFilter_AcceptsSameAgentAcrossFormats(t *testing.T) {
	id, err := New("agent-1", "+91-9876543210", "Asha")
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	f := NewFilter(id)
	if !f.BelongsToCurrentAgent(numbered("919876543210")) {
		t.Fatalf("expected event to belong to agent")
	}
	if f.BelongsToCurrentAgent(numbered("9876500000")) {
		t.Fatalf("expected other agent to be rejected")
	}
}

func TestFilter_FailsClosedWithoutAgentPhone(t *testing.T) {
	f := NewFilter(AgentIdentity{AgentID: "a"})
	if f.BelongsToCurrentAgent(numbered("")) {
		t.Fatalf("expected empty agent to reject empty number")
	}
	if f.BelongsToCurrentAgent(numbered("9876543210")) {
		t.Fatalf("expected rejection when agent phone unknown")
	}
}

func TestNew_RequiresAgentAndPhone(t *testing.T) {
	if _, err := New("", "9876543210", ""); err != ErrIncompleteIdentity {
		t.Fatalf("expected ErrIncompleteIdentity, got %v", err)
	}
	if _, err := New("a", " ", ""); err != ErrIncompleteIdentity {
		t.Fatalf("expected ErrIncompleteIdentity, got %v", err)
	}
}
