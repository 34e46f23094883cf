package coordinator

import (
	"context"

	"agent-console/internal/snapshot"
)

func (c *Coordinator) snapshotLocked() snapshot.Snapshot {
	s := snapshot.Snapshot{
		IsFormOpen:         c.form.IsOpen(),
		FormStatus:         c.form.Status(),
		CurrentCallDetails: c.lastEvent,
		Draft:              c.form.Draft().WithoutAttachments(),
		ContactSideData:    c.form.Contact(),
		SavedContact:       c.savedContact,
	}
	if cur, ok := c.tracker.Current(); ok {
		s.ActiveCallSession = &cur
	}
	return s
}

// persistLocked saves the snapshot when there is something worth keeping
// and it differs from the last write.
func (c *Coordinator) persistLocked(ctx context.Context) {
	if c.deps.Snapshots == nil {
		return
	}
	s := c.snapshotLocked()
	if !snapshot.WorthPersisting(s) {
		if c.lastPrint != "" {
			c.clearSnapshotLocked(ctx)
		}
		return
	}
	fp := snapshot.Fingerprint(s)
	if fp == c.lastPrint {
		return
	}
	s.Stamp(c.deps.Clock())
	if err := c.deps.Snapshots.Save(ctx, c.id.AgentID, s); err != nil {
		c.log.Warn("snapshot save failed", "err", err)
		return
	}
	c.lastPrint = fp
}

func (c *Coordinator) clearSnapshotLocked(ctx context.Context) {
	c.lastPrint = ""
	if c.deps.Snapshots == nil {
		return
	}
	if err := c.deps.Snapshots.Clear(ctx, c.id.AgentID); err != nil {
		c.log.Warn("snapshot clear failed", "err", err)
	}
}
