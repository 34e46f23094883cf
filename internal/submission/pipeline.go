package submission

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"agent-console/internal/gateway"
)

// FallbackMessage is shown when a failure carries no usable message.
const FallbackMessage = "Failed to submit form"

// ValidationError is returned when the draft fails local validation. The
// gateway is not contacted.
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("submission: invalid fields: %s", strings.Join(keys, ", "))
}

// Pipeline validates, encodes and posts one work order. It never retries.
type Pipeline struct {
	gw gateway.FormSubmitter
}

func NewPipeline(gw gateway.FormSubmitter) *Pipeline {
	return &Pipeline{gw: gw}
}

func (p *Pipeline) Submit(ctx context.Context, in Input) (gateway.Ack, error) {
	if res := in.Validate(); !res.Valid {
		return gateway.Ack{}, &ValidationError{Errors: res.Errors}
	}

	payload, err := BuildPayload(in)
	if err != nil {
		return gateway.Ack{}, err
	}

	var body bytes.Buffer
	contentType, err := Encode(&body, payload)
	if err != nil {
		return gateway.Ack{}, err
	}

	return p.gw.SubmitForm(ctx, contentType, &body)
}

// ErrorMessage is the human-readable text for a failed submission.
func ErrorMessage(err error) string {
	return gateway.MessageOf(err, FallbackMessage)
}
