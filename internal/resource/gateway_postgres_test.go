package resource

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zamanyonet-admin/internal/audit"
)

var (
	insertNote   = regexp.QuoteMeta(`INSERT INTO notes (id, data, created_at, updated_at)`)
	lockNote     = regexp.QuoteMeta(`SELECT data FROM notes WHERE id = $1 FOR UPDATE`)
	updateNote   = regexp.QuoteMeta(`UPDATE notes SET data = $2::jsonb, updated_at = $3 WHERE id = $1`)
	deleteNote   = regexp.QuoteMeta(`DELETE FROM notes WHERE id = $1 RETURNING data`)
	insertAudit  = regexp.QuoteMeta(`INSERT INTO audit_logs`)
	insertOutbox = regexp.QuoteMeta(`INSERT INTO audit_outbox`)
)

func newPostgresGateway(t *testing.T) (*PostgresGateway[note], sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	svc := audit.NewService(audit.NewPostgresRepo(db))
	gw := NewPostgresGateway(noteDefinition(), svc, db)
	gw.clock = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return gw, mock
}

func actorCtx() context.Context {
	return audit.WithActor(context.Background(), audit.Actor{ID: "u-1", IP: "10.0.0.9", UserAgent: "ua"})
}

func TestPostgresGateway_CreateCommitsRowAndAuditTogether(t *testing.T) {
	gw, mock := newPostgresGateway(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertNote).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertAudit).
		WithArgs(sqlmock.AnyArg(), "CREATE", "Note", sqlmock.AnyArg(), "u-1",
			nil, sqlmock.AnyArg(), sqlmock.AnyArg(), "10.0.0.9", "ua", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertOutbox).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := gw.Create(actorCtx(), note{Title: "Order gloves", Status: "OPEN"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
}

func TestPostgresGateway_AuditFailureRollsBackCreate(t *testing.T) {
	gw, mock := newPostgresGateway(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertNote).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertAudit).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := gw.Create(actorCtx(), note{Title: "Order gloves", Status: "OPEN"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConflict))
	assert.False(t, IsValidation(err))
}

func TestPostgresGateway_UniqueViolationIsConflict(t *testing.T) {
	gw, mock := newPostgresGateway(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertNote).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := gw.Create(actorCtx(), note{Title: "Dup", Status: "OPEN"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPostgresGateway_ValidationFailsBeforeAnyWrite(t *testing.T) {
	gw, _ := newPostgresGateway(t)

	_, err := gw.Create(actorCtx(), note{Title: "  ", Status: "OPEN"})
	assert.True(t, IsValidation(err))
}

func TestPostgresGateway_UpdateLocksRowAndAuditsBothSnapshots(t *testing.T) {
	gw, mock := newPostgresGateway(t)
	stored := `{"id":"n1","createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z","title":"Old","status":"OPEN"}`

	mock.ExpectBegin()
	mock.ExpectQuery(lockNote).WithArgs("n1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(stored)))
	mock.ExpectExec(updateNote).WithArgs("n1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertAudit).
		WithArgs(sqlmock.AnyArg(), "UPDATE", "Note", "n1", "u-1",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertOutbox).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	old, next, err := gw.Update(actorCtx(), "n1", func(n note) (note, error) {
		n.Status = "CLOSED"
		return n, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "OPEN", old.Status)
	assert.Equal(t, "CLOSED", next.Status)
	assert.Equal(t, old.CreatedAt, next.CreatedAt)
}

func TestPostgresGateway_MissingRowIsNotFoundWithoutAudit(t *testing.T) {
	gw, mock := newPostgresGateway(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockNote).WithArgs("nope").WillReturnRows(sqlmock.NewRows([]string{"data"}))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(deleteNote).WithArgs("nope").WillReturnRows(sqlmock.NewRows([]string{"data"}))
	mock.ExpectRollback()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM notes WHERE id = $1`)).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	mutated := false
	_, _, err := gw.Update(actorCtx(), "nope", func(n note) (note, error) {
		mutated = true
		return n, nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mutated)

	_, err = gw.Delete(actorCtx(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = gw.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresGateway_AuditFailureRollsBackDelete(t *testing.T) {
	gw, mock := newPostgresGateway(t)

	mock.ExpectBegin()
	mock.ExpectQuery(deleteNote).WithArgs("n1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"n1","title":"T","status":"OPEN"}`)))
	mock.ExpectExec(insertAudit).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := gw.Delete(actorCtx(), "n1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestPostgresGateway_ListFiltersOnDocumentFields(t *testing.T) {
	gw, mock := newPostgresGateway(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM notes WHERE data->>$1 = $2`)).
		WithArgs("status", "OPEN").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM notes WHERE data->>$1 = $2 ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`)).
		WithArgs("status", "OPEN", 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"n3","title":"C","status":"OPEN"}`)))

	items, total, err := gw.List(context.Background(), Query{
		Filters:  map[string]string{"status": "OPEN"},
		Page:     2,
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "n3", items[0].ID)
}

func TestPostgresGateway_ListRangeIsPushedIntoQuery(t *testing.T) {
	gw, mock := newPostgresGateway(t)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	where := `WHERE data->>$1 = $2 AND (data->>$3)::timestamptz >= $4 AND (data->>$3)::timestamptz < $5`

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM notes ` + where)).
		WithArgs("status", "OPEN", "createdAt", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM notes ` + where + ` ORDER BY created_at ASC, id ASC LIMIT $6 OFFSET $7`)).
		WithArgs("status", "OPEN", "createdAt", from, to, 100, 0).
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	items, total, err := gw.List(context.Background(), Query{
		Filters:   map[string]string{"status": "OPEN"},
		Range:     &Range{Field: "createdAt", From: from, To: to},
		PageSize:  MaxPageSize,
		Ascending: true,
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}
