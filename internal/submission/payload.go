package submission

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strconv"
	"time"

	"agent-console/internal/calls"
	"agent-console/internal/gateway"
	"agent-console/internal/workorder"
)

// Payload keys derived from the session or entered as contact side data.
const (
	KeyCallDuration = "callDuration"
	KeyRecordingURL = "recordingUrl"
	KeyHangupCause  = "hangupCause"
	KeyCallEndTime  = "callEndTime"

	KeyContactName = "contactName"
	KeyRegion      = "region"
	KeyContactType = "contactType"

	KeyBackendContactName = "Contact_Name"
	KeyBackendRegion      = "Region"
	KeyBackendType        = "Type"

	FieldAttachments = "attachments"
)

// Dedicated multipart fields for session metadata.
const (
	FieldCallDuration = "call_duration"
	FieldRecordingURL = "recording_url"
	FieldHangupCause  = "hangup_cause"
	FieldCallEndTime  = "call_end_time"
)

// excluded keys are never written by the generic scalar walk.
var excluded = map[string]struct{}{
	KeyCallDuration: {},
	KeyRecordingURL: {},
	KeyHangupCause:  {},
	KeyCallEndTime:  {},
	KeyContactName:  {},
	KeyRegion:       {},
	KeyContactType:  {},
}

// Payload is the flattened work order ready for encoding. Values are strings;
// an empty value means absent.
type Payload struct {
	Fields      map[string]string
	Attachments []workorder.Attachment
}

// Input is everything a submission needs, copied out of the coordinator.
// Contact is the side data typed into the form, Saved the contact found by
// the lookup, Override the contact the caller supplied with the submit.
type Input struct {
	Draft           workorder.Draft
	Session         calls.Session
	Contact         workorder.ContactSide
	Saved           *gateway.Contact
	Override        *workorder.ContactSide
	ExemptProblemID string
}

// EffectiveContact picks the contact sent with the work order: the override,
// then the locally entered name, then the saved contact. It reports false
// when none of them carries a name; the local side data is returned then so
// its contact type still drives validation.
func (in Input) EffectiveContact() (workorder.ContactSide, bool) {
	switch {
	case in.Override != nil && in.Override.ContactName != "":
		return *in.Override, true
	case in.Contact.ContactName != "":
		return in.Contact, true
	case in.Saved != nil && in.Saved.ContactName != "":
		return workorder.ContactSide{
			ContactName: in.Saved.ContactName,
			Region:      in.Saved.Region,
			ContactType: workorder.ContactType(in.Saved.Type),
		}, true
	}
	return in.Contact, false
}

// Validate runs form validation against the effective contact.
func (in Input) Validate() workorder.Result {
	c, _ := in.EffectiveContact()
	return workorder.Validate(in.Draft, c, in.ExemptProblemID)
}

// BuildPayload flattens the draft, adds session-derived metadata and merges
// contact data into the backend's key shape.
func BuildPayload(in Input) (Payload, error) {
	fields, err := draftFields(in.Draft)
	if err != nil {
		return Payload{}, err
	}

	if d, ok := in.Session.Duration(); ok {
		fields[KeyCallDuration] = strconv.Itoa(d)
	}
	if in.Session.RecordingURL != nil {
		fields[KeyRecordingURL] = *in.Session.RecordingURL
	}
	if in.Session.HangupCause != nil {
		fields[KeyHangupCause] = *in.Session.HangupCause
	}
	if in.Session.EndTime != nil {
		fields[KeyCallEndTime] = in.Session.EndTime.UTC().Format(time.RFC3339)
	}

	mergeContact(fields, in)

	return Payload{Fields: fields, Attachments: in.Draft.Attachments}, nil
}

func draftFields(d workorder.Draft) (map[string]string, error) {
	raw, err := json.Marshal(d.WithoutAttachments())
	if err != nil {
		return nil, fmt.Errorf("submission: encode draft: %w", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("submission: flatten draft: %w", err)
	}
	out := make(map[string]string, len(generic))
	for k, v := range generic {
		switch tv := v.(type) {
		case nil:
		case string:
			out[k] = tv
		default:
			out[k] = fmt.Sprint(tv)
		}
	}
	return out, nil
}

// mergeContact writes Contact_Name/Region/Type for the effective contact.
// Frontend-shaped keys are always stripped so the backend never sees both
// shapes.
func mergeContact(fields map[string]string, in Input) {
	delete(fields, KeyContactName)
	delete(fields, KeyRegion)
	delete(fields, KeyContactType)

	c, ok := in.EffectiveContact()
	if !ok {
		return
	}
	typ := c.ContactType
	if typ == "" {
		typ = workorder.ContactTypeTrader
	}
	fields[KeyBackendContactName] = c.ContactName
	fields[KeyBackendRegion] = c.Region
	fields[KeyBackendType] = string(typ)
}

// Encode writes p as a multipart body and returns its content type.
func Encode(w io.Writer, p Payload) (string, error) {
	mw := multipart.NewWriter(w)

	for _, a := range p.Attachments {
		if err := writeFile(mw, a); err != nil {
			return "", err
		}
	}

	keys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		if _, skip := excluded[k]; skip {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writeScalar(mw, k, p.Fields[k]); err != nil {
			return "", err
		}
	}

	dedicated := [][2]string{
		{FieldCallDuration, p.Fields[KeyCallDuration]},
		{FieldRecordingURL, p.Fields[KeyRecordingURL]},
		{FieldHangupCause, p.Fields[KeyHangupCause]},
		{FieldCallEndTime, p.Fields[KeyCallEndTime]},
	}
	for _, kv := range dedicated {
		if err := writeScalar(mw, kv[0], kv[1]); err != nil {
			return "", err
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("submission: close multipart: %w", err)
	}
	return mw.FormDataContentType(), nil
}

func writeScalar(mw *multipart.Writer, key, value string) error {
	if value == "" {
		return nil
	}
	if err := mw.WriteField(key, value); err != nil {
		return fmt.Errorf("submission: write field %s: %w", key, err)
	}
	return nil
}

func writeFile(mw *multipart.Writer, a workorder.Attachment) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldAttachments, a.Filename))
	ct := a.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("submission: attachment %s: %w", a.Filename, err)
	}
	if _, err := part.Write(a.Data); err != nil {
		return fmt.Errorf("submission: attachment %s: %w", a.Filename, err)
	}
	return nil
}
