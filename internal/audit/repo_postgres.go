package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"zamanyonet-admin/pkg/utils"
)

// Tables (see internal/migrate):
// - audit_logs: append-only, guarded by a trigger that rejects UPDATE and
//   any DELETE outside the retention session flag
// - audit_outbox: one row per audit entry, drained by Relay

// PostgresRepo reads and writes audit entries through database/sql.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Append writes e in its own transaction.
func (r *PostgresRepo) Append(ctx context.Context, e Entry) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return AppendTx(ctx, tx, e)
	})
}

// AppendTx writes e and its outbox row using q, normally the caller's
// mutation transaction.
func AppendTx(ctx context.Context, q utils.DBTX, e Entry) error {
	payload, err := outboxPayload(e)
	if err != nil {
		return err
	}

	const insertEntry = `
INSERT INTO audit_logs (id, action, entity_type, entity_id, actor_id, old_values, new_values, metadata, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8::jsonb, $9, $10, $11)
`
	if _, err := q.ExecContext(ctx, insertEntry,
		e.ID,
		string(e.Action),
		e.EntityType,
		nullString(e.EntityID),
		nullString(e.ActorID),
		jsonArg(e.OldValues),
		jsonArg(e.NewValues),
		jsonArg(e.Metadata),
		nullString(e.IPAddress),
		nullString(e.UserAgent),
		e.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	const insertOutbox = `
INSERT INTO audit_outbox (entry_id, payload, created_at)
VALUES ($1, $2::jsonb, $3)
`
	if _, err := q.ExecContext(ctx, insertOutbox, e.ID, string(payload), e.CreatedAt); err != nil {
		return fmt.Errorf("insert audit outbox: %w", err)
	}
	return nil
}

const entryColumns = `id, action, entity_type, entity_id, actor_id, old_values, new_values, metadata, ip_address, user_agent, created_at`

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Entry, int, error) {
	f = f.Normalize()
	where, args := filterClause(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	order := " ORDER BY created_at DESC, id DESC"
	if f.Ascending {
		order = " ORDER BY created_at ASC, id ASC"
	}
	args = append(args, f.PageSize, f.Offset())
	q := `SELECT ` + entryColumns + ` FROM audit_logs` + where + order +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, f.PageSize)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM audit_logs WHERE id::text = $1`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

// Prune deletes entries older than before. Entries whose outbox row is still
// unpublished are kept so the relay can deliver them; the outbox rows of
// deleted entries go with them (ON DELETE CASCADE). The session flag is the
// only way past the append-only trigger and lives for this transaction alone.
const pruneEntries = `
DELETE FROM audit_logs l
WHERE l.created_at < $1
  AND NOT EXISTS (
    SELECT 1 FROM audit_outbox o
    WHERE o.entry_id = l.id AND o.published_at IS NULL
  )
`

func (r *PostgresRepo) Prune(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SET LOCAL zamanyonet.audit_retention = 'on'`); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, pruneEntries, before)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune audit entries: %w", err)
	}
	return n, nil
}

func (r *PostgresRepo) Pending(ctx context.Context, limit int) ([]OutboxRecord, error) {
	const q = `
SELECT seq, entry_id::text, payload, created_at
FROM audit_outbox
WHERE published_at IS NULL
ORDER BY seq
LIMIT $1
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("read outbox: %w", err)
	}
	defer rows.Close()

	var out []OutboxRecord
	for rows.Next() {
		var (
			rec     OutboxRecord
			payload []byte
		)
		if err := rows.Scan(&rec.Seq, &rec.EntryID, &payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Payload = payload
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) MarkPublished(ctx context.Context, seqs []int64, at time.Time) error {
	if len(seqs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE audit_outbox SET published_at = $1 WHERE seq = ANY($2) AND published_at IS NULL`,
		at, seqs,
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func filterClause(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (Entry, error) {
	var (
		e                            Entry
		action                       string
		entityID, actorID, ip, agent sql.NullString
		oldValues, newValues, meta   []byte
	)
	if err := s.Scan(
		&e.ID,
		&action,
		&e.EntityType,
		&entityID,
		&actorID,
		&oldValues,
		&newValues,
		&meta,
		&ip,
		&agent,
		&e.CreatedAt,
	); err != nil {
		return Entry{}, err
	}
	e.Action = Action(action)
	e.EntityID = entityID.String
	e.ActorID = actorID.String
	e.IPAddress = ip.String
	e.UserAgent = agent.String
	e.OldValues = oldValues
	e.NewValues = newValues
	e.Metadata = meta
	return e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func jsonArg(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
