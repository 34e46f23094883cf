package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"agent-console/internal/auth"
	"agent-console/internal/config"
	"agent-console/internal/coordinator"
	"agent-console/internal/gateway"
	"agent-console/internal/identity"
	"agent-console/internal/snapshot"
	"agent-console/internal/submission"
	"agent-console/internal/telephony"
	"agent-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

type capturingGateway struct {
	mu     sync.Mutex
	files  []string
	fields map[string]string
	calls  int
}

func (g *capturingGateway) SubmitForm(_ context.Context, contentType string, body io.Reader) (gateway.Ack, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return gateway.Ack{}, err
	}
	g.fields = map[string]string{}
	mr := multipart.NewReader(body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if err != nil {
			break
		}
		if p.FileName() != "" {
			g.files = append(g.files, p.FileName())
			continue
		}
		data, _ := io.ReadAll(p)
		g.fields[p.FormName()] = string(data)
	}
	return gateway.Ack{Success: true, Message: "saved"}, nil
}

type testServer struct {
	router *gin.Engine
	reg    *coordinator.Registry
	store  *snapshot.MemoryStore
	gw     *capturingGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Hour, RefreshTokenTTL: 2 * time.Hour})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	bus := telephony.NewBus()
	ts := &testServer{store: snapshot.NewMemoryStore(), gw: &capturingGateway{}}
	pipeline := submission.NewPipeline(ts.gw)
	ts.reg = coordinator.NewRegistry(func(id identity.AgentIdentity) *coordinator.Coordinator {
		return coordinator.New(id, coordinator.Deps{
			Bus:       bus,
			Snapshots: ts.store,
			Submitter: pipeline,
			Logger:    quiet,
		}, coordinator.Options{AutoCloseDelay: time.Hour})
	})
	t.Cleanup(ts.reg.Close)

	h := Handlers{Auth: m, Consoles: ts.reg}
	r := gin.New()
	r.Use(logger.Middleware(quiet))
	r.POST("/events/:name", telephony.IngestHandler{Bus: bus}.Handle)
	r.POST("/v1/auth/login", h.Login)
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(m))
	h.Mount(v1)
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) login(t *testing.T) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/v1/auth/login", "",
		strings.NewReader(`{"agent_id":"ag-1","phone":"+91-9876543210","name":"Asha","role":"agent"}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var pair auth.TokenPair
	if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil || pair.AccessToken == "" {
		t.Fatalf("login response: %v %s", err, w.Body.String())
	}
	return pair.AccessToken
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) coordinator.View {
	t.Helper()
	var v coordinator.View
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode state: %v (%s)", err, w.Body.String())
	}
	return v
}

func TestConsoleFlow(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t)

	w := ts.do(t, http.MethodGet, "/v1/workorder", tok, nil, "")
	if w.Code != http.StatusOK || decodeState(t, w).IsFormOpen {
		t.Fatalf("expected closed form, got %d %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodPost, "/events/incoming-call-connected", "",
		strings.NewReader(`{"callId":"IN-1","callerNumber":"919000000001","agentNumber":"919876543210"}`), "application/json")
	if w.Code != http.StatusAccepted {
		t.Fatalf("ingest: %d", w.Code)
	}

	v := decodeState(t, ts.do(t, http.MethodGet, "/v1/workorder", tok, nil, ""))
	if !v.IsFormOpen || v.Draft.CallID != "IN-1" || v.Draft.CallType != "InBound" {
		t.Fatalf("form not opened by event: %+v", v)
	}

	w = ts.do(t, http.MethodPatch, "/v1/workorder/fields", tok, strings.NewReader(
		`{"updates":[{"field":"problemId","value":"3"},{"field":"subProblemId","value":"31"},{"field":"status","value":"Closed"}]}`),
		"application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodPost, "/v1/workorder/submit", tok, nil, "")
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "Remarks are required") {
		t.Fatalf("expected 422 with remarks error, got %d %s", w.Code, w.Body.String())
	}
	if ts.gw.calls != 0 {
		t.Fatalf("gateway must not be called on validation failure")
	}

	w = ts.do(t, http.MethodPatch, "/v1/workorder/fields", tok,
		strings.NewReader(`{"updates":[{"field":"remarks","value":"resolved"}]}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("patch remarks: %d", w.Code)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("attachments", "photo.png")
	_, _ = fw.Write([]byte("png"))
	_ = mw.Close()

	w = ts.do(t, http.MethodPost, "/v1/workorder/submit", tok, &body, mw.FormDataContentType())
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}
	if len(ts.gw.files) != 1 || ts.gw.files[0] != "photo.png" {
		t.Fatalf("attachment not forwarded: %v", ts.gw.files)
	}
	if !strings.Contains(w.Body.String(), `"formStatus":"submitted"`) {
		t.Fatalf("expected submitted state, got %s", w.Body.String())
	}

	w = ts.do(t, http.MethodDelete, "/v1/session", tok, nil, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", w.Code)
	}
	if ts.reg.Len() != 0 || ts.store.Len() != 0 {
		t.Fatalf("logout must drop the console and its snapshot")
	}
}

func TestOpenWithoutCallConflicts(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t)

	if w := ts.do(t, http.MethodPost, "/v1/workorder/open", tok, nil, ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if w := ts.do(t, http.MethodPost, "/v1/workorder/submit", tok, nil, ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for closed form, got %d", w.Code)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t)
	_ = ts.do(t, http.MethodGet, "/v1/workorder", tok, nil, "")
	_ = ts.do(t, http.MethodPost, "/events/call-connected", "",
		strings.NewReader(`{"callId":"A","customerNumber":"9000000001","agentNumber":"9876543210"}`), "application/json")

	w := ts.do(t, http.MethodPatch, "/v1/workorder/fields", tok,
		strings.NewReader(`{"updates":[{"field":"nope","value":"x"}]}`), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/v1/auth/login", "", strings.NewReader(`{"agent_id":"a","role":"agent"}`), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without phone, got %d", w.Code)
	}
	w = ts.do(t, http.MethodPost, "/v1/auth/login", "", strings.NewReader(`{"agent_id":"a","phone":"9876543210","role":"owner"}`), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", w.Code)
	}
}

func TestWorkOrderRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	if w := ts.do(t, http.MethodGet, "/v1/workorder", "", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

// openCall logs in, creates the agent's console and connects call A.
func (ts *testServer) openCall(t *testing.T) string {
	t.Helper()
	tok := ts.login(t)
	_ = ts.do(t, http.MethodGet, "/v1/workorder", tok, nil, "")
	w := ts.do(t, http.MethodPost, "/events/call-connected", "",
		strings.NewReader(`{"callId":"A","customerNumber":"9000000001","agentNumber":"9876543210"}`), "application/json")
	if w.Code != http.StatusAccepted {
		t.Fatalf("ingest: %d", w.Code)
	}
	w = ts.do(t, http.MethodPatch, "/v1/workorder/fields", tok,
		strings.NewReader(`{"updates":[{"field":"remarks","value":"wrong number"}]}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", w.Code, w.Body.String())
	}
	return tok
}

func TestSubmitWithJSONContactOverride(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.openCall(t)

	// Non-Trader contacts need no problem, sub problem or follow-up.
	w := ts.do(t, http.MethodPost, "/v1/workorder/submit", tok,
		strings.NewReader(`{"contact":{"contactName":"Meera","region":"West","contactType":"Non-Trader"}}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}
	want := map[string]string{"Contact_Name": "Meera", "Region": "West", "Type": "Non-Trader"}
	for k, v := range want {
		if got := ts.gw.fields[k]; got != v {
			t.Fatalf("field %s: want %q, got %q", k, v, got)
		}
	}

	w = ts.do(t, http.MethodPost, "/v1/workorder/submit", tok, nil, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on resubmit, got %d %s", w.Code, w.Body.String())
	}
	if ts.gw.calls != 1 {
		t.Fatalf("accepted work order was posted again: %d calls", ts.gw.calls)
	}
}

func TestSubmitWithMultipartContactOverride(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.openCall(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("contactName", "Meera")
	_ = mw.WriteField("contactType", "Non-Trader")
	_ = mw.Close()

	w := ts.do(t, http.MethodPost, "/v1/workorder/submit", tok, &body, mw.FormDataContentType())
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}
	if ts.gw.fields["Contact_Name"] != "Meera" || ts.gw.fields["Type"] != "Non-Trader" {
		t.Fatalf("override not sent: %v", ts.gw.fields)
	}
	if _, ok := ts.gw.fields["contactName"]; ok {
		t.Fatalf("frontend-shaped contact key leaked: %v", ts.gw.fields)
	}
}

func TestSubmitRejectsUnknownContactType(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.openCall(t)

	w := ts.do(t, http.MethodPost, "/v1/workorder/submit", tok,
		strings.NewReader(`{"contact":{"contactName":"Meera","contactType":"Vendor"}}`), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", w.Code, w.Body.String())
	}
	if ts.gw.calls != 0 {
		t.Fatalf("gateway must not be called")
	}
}
