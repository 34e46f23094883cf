package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"agent-console/internal/audit"
	"agent-console/internal/broadcast"
	"agent-console/internal/calls"
	"agent-console/internal/gateway"
	"agent-console/internal/identity"
	"agent-console/internal/snapshot"
	"agent-console/internal/submission"
	"agent-console/internal/telephony"
	"agent-console/internal/workorder"
)

const (
	DefaultAutoCloseDelay = 1500 * time.Millisecond
	DefaultLookupTimeout  = 10 * time.Second
)

var (
	ErrNoSession        = errors.New("coordinator: no call session")
	ErrSubmitInProgress = errors.New("coordinator: submission in progress")
	ErrAlreadySubmitted = errors.New("coordinator: work order already submitted")
)

// Submitter runs the submission pipeline.
type Submitter interface {
	Submit(ctx context.Context, in submission.Input) (gateway.Ack, error)
}

type Options struct {
	ExemptProblemID string
	Location        *time.Location
	SnapshotTTL     time.Duration
	AutoCloseDelay  time.Duration
	LookupTimeout   time.Duration
}

// Deps are the collaborators of one agent's coordinator. Contacts, Snapshots,
// Broadcaster and Audit are optional.
type Deps struct {
	Bus         telephony.Subscriber
	Snapshots   snapshot.Store
	Contacts    gateway.ContactLookup
	Submitter   Submitter
	Broadcaster broadcast.Broadcaster
	Audit       *audit.Service
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Coordinator is the call session and work-order state of one agent console.
//
// Event handlers and UI operations arrive on arbitrary goroutines and are
// serialized by mu. Asynchronous work (contact lookup, submission,
// auto-close) runs without the lock and, on return, only applies its result
// if the call id or draft generation it started with is still current.
type Coordinator struct {
	id     identity.AgentIdentity
	filter identity.Filter
	deps   Deps
	opts   Options
	log    *slog.Logger

	mu           sync.Mutex
	tracker      *calls.Tracker
	form         *workorder.Manager
	lastEvent    *telephony.CallEvent
	savedContact *gateway.Contact
	lastPrint    string
	autoClose    *time.Timer
	unsubscribe  []func()

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(id identity.AgentIdentity, deps Deps, opts Options) *Coordinator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = snapshot.DefaultTTL
	}
	if opts.AutoCloseDelay <= 0 {
		opts.AutoCloseDelay = DefaultAutoCloseDelay
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultLookupTimeout
	}
	return &Coordinator{
		id:      id,
		filter:  identity.NewFilter(id),
		deps:    deps,
		opts:    opts,
		log:     deps.Logger.With("agent_id", id.AgentID),
		tracker: calls.NewTracker(),
		form: workorder.NewManager(workorder.Options{
			ExemptProblemID: opts.ExemptProblemID,
			Location:        opts.Location,
		}),
		baseCtx: context.Background(),
		cancel:  func() {},
	}
}

func (c *Coordinator) Identity() identity.AgentIdentity { return c.id }

// Start restores the persisted snapshot and registers the event handlers.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.baseCtx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if s, ok := snapshot.Restore(ctx, c.deps.Snapshots, c.id.AgentID, c.deps.Clock(), c.opts.SnapshotTTL, c.log); ok {
		c.restoreLocked(*s)
	}

	if c.deps.Bus != nil {
		c.unsubscribe = append(c.unsubscribe,
			c.deps.Bus.Subscribe(telephony.EventCallConnected, c.onConnect),
			c.deps.Bus.Subscribe(telephony.EventIncomingCallConnected, c.onConnect),
			c.deps.Bus.Subscribe(telephony.EventCallDisconnected, c.onDisconnect),
		)
	}
}

// Stop deregisters the handlers, cancels pending timers and waits for
// in-flight asynchronous work.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	for _, u := range c.unsubscribe {
		u()
	}
	c.unsubscribe = nil
	c.stopAutoCloseLocked()
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
}

// Wait blocks until in-flight contact lookups have returned.
func (c *Coordinator) Wait() { c.wg.Wait() }

func (c *Coordinator) restoreLocked(s snapshot.Snapshot) {
	c.tracker.Restore(s.ActiveCallSession)
	c.form.Restore(s.IsFormOpen, s.FormStatus, s.Draft, s.ContactSideData)
	c.lastEvent = s.CurrentCallDetails
	c.savedContact = s.SavedContact

	if cur, ok := c.tracker.Current(); ok && cur.Active && c.form.IsOpen() {
		if c.form.EnsureCallID(cur.CallID) {
			c.log.Warn("restored draft did not match the active call; reset", "call_id", cur.CallID)
			c.form.Open(cur, c.id)
		}
	}
	// The auto-close of an accepted work order did not survive the restart.
	if c.form.IsOpen() && c.form.Status() == workorder.FormStatusSubmitted {
		c.scheduleAutoCloseLocked(c.form.Generation())
	}
	c.lastPrint = snapshot.Fingerprint(c.snapshotLocked())
	c.log.Info("console state restored", "form_open", c.form.IsOpen(), "call_state", string(c.tracker.State()))
}

func (c *Coordinator) onConnect(ctx context.Context, ev telephony.CallEvent) {
	if !c.filter.BelongsToCurrentAgent(ev) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.tracker.Current(); ok && cur.Active && cur.CallID == ev.CallID {
		c.log.Debug("duplicate connect ignored", "call_id", ev.CallID)
		return
	}

	session, err := calls.ApplyConnect(ev)
	if err != nil {
		c.log.Debug("connect event dropped", "event", string(ev.Name), "err", err)
		return
	}

	if c.form.IsOpen() {
		c.discardLocked(ctx, session.CallID)
	}
	c.stopAutoCloseLocked()

	c.tracker.Restore(&session)
	evCopy := ev
	c.lastEvent = &evCopy
	c.savedContact = nil

	c.openLocked(session)
	c.log.Info("call connected", "call_id", session.CallID, "direction", string(session.Direction))
	c.persistLocked(ctx)
}

func (c *Coordinator) onDisconnect(ctx context.Context, ev telephony.CallEvent) {
	if !c.filter.BelongsToCurrentAgent(ev) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.tracker.Disconnect(ev)
	if err != nil {
		c.log.Debug("disconnect event ignored", "call_id", ev.CallID, "err", err)
		return
	}
	evCopy := ev
	c.lastEvent = &evCopy
	c.log.Info("call disconnected", "call_id", session.CallID)
	c.persistLocked(ctx)
}

// discardLocked records an open draft that a new call is about to replace.
func (c *Coordinator) discardLocked(ctx context.Context, nextCallID string) {
	d := c.form.Draft()
	if !d.Dirty() {
		return
	}
	// An accepted or in-flight submission is audited by Submit.
	if st := c.form.Status(); st == workorder.FormStatusSubmitted || st == workorder.FormStatusSubmitting {
		return
	}
	raw, _ := json.Marshal(struct {
		Draft   workorder.Draft       `json:"draft"`
		Contact workorder.ContactSide `json:"contact"`
	}{d.WithoutAttachments(), c.form.Contact()})

	c.log.Warn("discarding unsubmitted draft", "call_id", d.CallID, "superseded_by", nextCallID)
	if c.deps.Audit != nil {
		if err := c.deps.Audit.LogDraftDiscarded(ctx, c.id.AgentID, d.CallID, nextCallID, string(raw)); err != nil {
			c.log.Warn("audit failed", "err", err)
		}
	}
}

// openLocked opens the form for session and starts the saved-contact lookup.
func (c *Coordinator) openLocked(session calls.Session) {
	c.form.Open(session, c.id)
	if c.deps.Contacts == nil || session.CustomerNumber == "" {
		return
	}
	c.form.SetStatus(workorder.FormStatusLoading)
	gen := c.form.Generation()

	c.wg.Add(1)
	go c.lookupContact(c.baseCtx, session.CallID, session.CustomerNumber, gen)
}

func (c *Coordinator) lookupContact(ctx context.Context, callID, number string, gen uint64) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, c.opts.LookupTimeout)
	defer cancel()
	ct, err := c.deps.Contacts.LookupContact(ctx, number)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.form.Generation() == gen && c.form.Status() == workorder.FormStatusLoading {
		c.form.SetStatus(workorder.FormStatusIdle)
	}
	cur, ok := c.tracker.Current()
	if !ok || cur.CallID != callID || c.form.Generation() != gen {
		c.log.Debug("stale contact lookup ignored", "call_id", callID)
		return
	}
	if err != nil {
		c.log.Warn("contact lookup failed", "call_id", callID, "err", err)
		c.persistLocked(ctx)
		return
	}
	c.savedContact = ct
	c.persistLocked(ctx)
}

// OpenForm opens the form for the tracked call.
func (c *Coordinator) OpenForm(ctx context.Context) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.tracker.Current()
	if !ok {
		return c.viewLocked(), ErrNoSession
	}
	c.stopAutoCloseLocked()
	c.openLocked(session)
	c.persistLocked(ctx)
	return c.viewLocked(), nil
}

// CloseForm resets and closes the form. The tracked session survives only
// while the call is still active.
func (c *Coordinator) CloseForm(ctx context.Context) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked(ctx)
	return c.viewLocked()
}

func (c *Coordinator) closeLocked(ctx context.Context) {
	c.stopAutoCloseLocked()
	cur, _ := c.tracker.Current()
	if c.form.Close(cur.Active) {
		c.tracker.Clear()
		c.lastEvent = nil
		c.savedContact = nil
	}
	c.clearSnapshotLocked(ctx)
	c.persistLocked(ctx)
}

func (c *Coordinator) UpdateField(ctx context.Context, name, value string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	touched, err := c.form.UpdateField(name, value)
	if err != nil {
		return nil, err
	}
	c.persistLocked(ctx)
	return touched, nil
}

// Validate checks the draft against the contact a submit without override
// would send.
func (c *Coordinator) Validate(ctx context.Context) workorder.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	contact, _ := c.inputLocked(nil).EffectiveContact()
	return c.form.ValidateWith(contact)
}

func (c *Coordinator) inputLocked(override *workorder.ContactSide) submission.Input {
	session, _ := c.tracker.Current()
	return submission.Input{
		Draft:           c.form.Draft(),
		Session:         session,
		Contact:         c.form.Contact(),
		Saved:           c.savedContact,
		Override:        override,
		ExemptProblemID: c.form.ExemptProblemID(),
	}
}

func (c *Coordinator) AddAttachment(ctx context.Context, filename, contentType string, data []byte) (workorder.Attachment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form.AddAttachment(filename, contentType, data)
}

func (c *Coordinator) RemoveAttachment(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form.RemoveAttachment(id)
}

// Submit validates and posts the draft. override, when it carries a contact
// name, replaces both the typed and the saved contact. The lock is released
// while the gateway call is in flight; the result is applied only if the same
// draft is still on screen.
func (c *Coordinator) Submit(ctx context.Context, override *workorder.ContactSide) (gateway.Ack, error) {
	c.mu.Lock()
	if !c.form.IsOpen() {
		c.mu.Unlock()
		return gateway.Ack{}, workorder.ErrFormClosed
	}
	switch c.form.Status() {
	case workorder.FormStatusSubmitting:
		c.mu.Unlock()
		return gateway.Ack{}, ErrSubmitInProgress
	case workorder.FormStatusSubmitted:
		c.mu.Unlock()
		return gateway.Ack{}, ErrAlreadySubmitted
	}

	in := c.inputLocked(override)
	contact, _ := in.EffectiveContact()
	if res := c.form.ValidateWith(contact); !res.Valid {
		c.form.FailValidation(res.Errors)
		c.persistLocked(ctx)
		c.mu.Unlock()
		return gateway.Ack{}, &submission.ValidationError{Errors: res.Errors}
	}

	gen := c.form.Generation()
	c.form.SetStatus(workorder.FormStatusSubmitting)
	c.persistLocked(ctx)
	c.mu.Unlock()

	ack, err := c.deps.Submitter.Submit(context.WithoutCancel(ctx), in)

	c.mu.Lock()
	defer c.mu.Unlock()

	callID := in.Draft.CallID
	current := c.form.Generation() == gen

	if err != nil {
		var verr *submission.ValidationError
		msg := submission.ErrorMessage(err)
		c.log.Error("work order submission failed", "call_id", callID, "err", err)
		c.auditFailed(ctx, callID, msg)
		if !current {
			return ack, err
		}
		if errors.As(err, &verr) {
			c.form.FailValidation(verr.Errors)
		} else {
			c.form.Fail(msg)
		}
		c.persistLocked(ctx)
		return ack, err
	}

	c.log.Info("work order submitted", "call_id", callID)
	c.auditSubmitted(ctx, callID)
	c.publishCompletion(ctx, callID)
	if !current {
		return ack, nil
	}
	c.form.Succeed()
	c.scheduleAutoCloseLocked(gen)
	c.persistLocked(ctx)
	return ack, nil
}

func (c *Coordinator) scheduleAutoCloseLocked(gen uint64) {
	c.stopAutoCloseLocked()
	c.autoClose = time.AfterFunc(c.opts.AutoCloseDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.form.Generation() != gen || !c.form.IsOpen() || c.form.Status() != workorder.FormStatusSubmitted {
			return
		}
		c.log.Debug("auto-closing submitted work order")
		c.closeLocked(c.baseCtx)
	})
}

func (c *Coordinator) stopAutoCloseLocked() {
	if c.autoClose != nil {
		c.autoClose.Stop()
		c.autoClose = nil
	}
}

// Logout forgets everything about the agent's console, persisted state included.
func (c *Coordinator) Logout(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopAutoCloseLocked()
	c.form.Close(false)
	c.tracker.Clear()
	c.lastEvent = nil
	c.savedContact = nil
	c.clearSnapshotLocked(ctx)
	c.log.Info("console state cleared on logout")
}

func (c *Coordinator) State() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Coordinator) auditSubmitted(ctx context.Context, callID string) {
	if c.deps.Audit == nil {
		return
	}
	if err := c.deps.Audit.LogSubmitted(ctx, c.id.AgentID, callID); err != nil {
		c.log.Warn("audit failed", "err", err)
	}
}

func (c *Coordinator) auditFailed(ctx context.Context, callID, msg string) {
	if c.deps.Audit == nil {
		return
	}
	if err := c.deps.Audit.LogSubmissionFailed(ctx, c.id.AgentID, callID, msg); err != nil {
		c.log.Warn("audit failed", "err", err)
	}
}

func (c *Coordinator) publishCompletion(ctx context.Context, callID string) {
	if c.deps.Broadcaster == nil {
		return
	}
	if err := c.deps.Broadcaster.PublishCompletion(ctx, broadcast.Completion{CallID: callID, Success: true}); err != nil {
		c.log.Warn("completion broadcast failed", "call_id", callID, "err", err)
	}
}
