package audit

import (
	"context"
	"database/sql"
	"fmt"

	"agent-console/pkg/utils"
)

// Schema creates the audit table and its lookup index.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS console_audit_events (
	id         UUID PRIMARY KEY,
	agent_id   TEXT NOT NULL,
	type       TEXT NOT NULL,
	call_id    TEXT,
	message    TEXT,
	metadata   JSONB,
	created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS console_audit_events_agent_created
	ON console_audit_events (agent_id, created_at DESC)`,
}

const insertEvent = `INSERT INTO console_audit_events
	(id, agent_id, type, call_id, message, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

const listByAgent = `SELECT id, agent_id, type, COALESCE(call_id, ''), COALESCE(message, ''), COALESCE(metadata::text, ''), created_at
	FROM console_audit_events WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2`

// PostgresRepo stores events through database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Migrate(ctx context.Context) error {
	if err := utils.ApplySchema(ctx, r.db, Schema...); err != nil {
		return fmt.Errorf("audit: migrate: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, insertEvent,
		e.ID, e.AgentID, string(e.Type), nullable(e.CallID), nullable(e.Message), nullable(e.Metadata), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

// Recent lists the newest events of one agent.
func (r *PostgresRepo) Recent(ctx context.Context, agentID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listByAgent, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(&e.ID, &e.AgentID, &typ, &e.CallID, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
