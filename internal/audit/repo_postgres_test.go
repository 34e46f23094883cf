package audit

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepo_AppendInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO console_audit_events")).
		WithArgs("e1", "ag-1", "work_order_submitted", "A", "ok", nil, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepo(db)
	err = repo.Append(context.Background(), Event{
		ID: "e1", AgentID: "ag-1", Type: EventTypeWorkOrderSubmitted, CallID: "A", Message: "ok", CreatedAt: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_RecentScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "agent_id", "type", "call_id", "message", "metadata", "created_at"}).
		AddRow("e2", "ag-1", "draft_discarded", "A", "draft discarded by call B", `{"remarks":"x"}`, at)
	mock.ExpectQuery(regexp.QuoteMeta("FROM console_audit_events WHERE agent_id = $1")).
		WithArgs("ag-1", 50).
		WillReturnRows(rows)

	evs, err := NewPostgresRepo(db).Recent(context.Background(), "ag-1", 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, EventTypeDraftDiscarded, evs[0].Type)
	assert.Equal(t, `{"remarks":"x"}`, evs[0].Metadata)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_MigrateCreatesTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS console_audit_events")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS console_audit_events_agent_created")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	require.NoError(t, NewPostgresRepo(db).Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
