package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"agent-console/internal/calls"
	"agent-console/internal/gateway"
	"agent-console/internal/telephony"
	"agent-console/internal/workorder"
)

// DefaultTTL bounds how old a snapshot may be and still be restored.
const DefaultTTL = 30 * time.Minute

var ErrCorrupt = errors.New("snapshot: corrupt")

// Snapshot is the persisted console state of one agent. Attachments are
// excluded by the draft's own encoding.
type Snapshot struct {
	IsFormOpen         bool                  `json:"isFormOpen"`
	FormStatus         workorder.FormStatus  `json:"formStatus"`
	CurrentCallDetails *telephony.CallEvent  `json:"currentCallDetails"`
	ActiveCallSession  *calls.Session        `json:"activeCallSession"`
	Draft              workorder.Draft       `json:"draft"`
	ContactSideData    workorder.ContactSide `json:"contactSideData"`
	SavedContact       *gateway.Contact      `json:"savedContact,omitempty"`
	Timestamp          int64                 `json:"timestamp"`
}

// Store persists at most one snapshot per agent.
type Store interface {
	Save(ctx context.Context, agentID string, s Snapshot) error
	// Load returns (nil, nil) when nothing is stored and ErrCorrupt when the
	// stored bytes cannot be decoded.
	Load(ctx context.Context, agentID string) (*Snapshot, error)
	Clear(ctx context.Context, agentID string) error
}

// Stamp sets the snapshot timestamp in unix milliseconds.
func (s *Snapshot) Stamp(now time.Time) { s.Timestamp = now.UnixMilli() }

func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(s.Timestamp))
}

// WorthPersisting reports whether the state carries anything to preserve:
// an open form, a started draft or an active call.
func WorthPersisting(s Snapshot) bool {
	if s.IsFormOpen || s.Draft.CallID != "" || s.Draft.Remarks != "" {
		return true
	}
	return s.ActiveCallSession != nil && s.ActiveCallSession.Active
}

// Fingerprint identifies the persisted content, ignoring the timestamp.
func Fingerprint(s Snapshot) string {
	s.Timestamp = 0
	s.Draft = s.Draft.WithoutAttachments()
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Restore loads the agent's snapshot for startup. Snapshots older than ttl
// are discarded and cleared; corrupt ones are logged and treated as absent.
func Restore(ctx context.Context, store Store, agentID string, now time.Time, ttl time.Duration, log *slog.Logger) (*Snapshot, bool) {
	if store == nil {
		return nil, false
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}

	s, err := store.Load(ctx, agentID)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			log.Warn("discarding corrupt snapshot", "agent_id", agentID, "err", err)
			_ = store.Clear(ctx, agentID)
		} else {
			log.Error("snapshot load failed", "agent_id", agentID, "err", err)
		}
		return nil, false
	}
	if s == nil {
		return nil, false
	}
	if age := s.Age(now); age > ttl {
		log.Info("discarding expired snapshot", "agent_id", agentID, "age", age.String())
		if err := store.Clear(ctx, agentID); err != nil {
			log.Warn("snapshot clear failed", "agent_id", agentID, "err", err)
		}
		return nil, false
	}
	return s, true
}

func decode(raw []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}
	return &s, nil
}
