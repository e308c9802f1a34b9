package resource

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"zamanyonet-admin/internal/audit"
	"zamanyonet-admin/pkg/utils"
)

// PostgresGateway stores each record as a JSONB document in def.Table:
//
//	id TEXT PRIMARY KEY, data JSONB NOT NULL,
//	created_at TIMESTAMPTZ NOT NULL, updated_at TIMESTAMPTZ NOT NULL
//
// The document write and the audit insert share one transaction.
type PostgresGateway[T any] struct {
	def   *Definition[T]
	audit *audit.Service
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresGateway[T any](def *Definition[T], svc *audit.Service, db *sql.DB) *PostgresGateway[T] {
	return &PostgresGateway[T]{def: def, audit: svc, db: db, clock: time.Now}
}

func (g *PostgresGateway[T]) now() time.Time {
	return g.clock().UTC()
}

func (g *PostgresGateway[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	q := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, g.def.Table)
	var doc []byte
	if err := g.db.QueryRowContext(ctx, q, id).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("get %s: %w", g.def.Kind, err)
	}
	return g.decode(doc)
}

func (g *PostgresGateway[T]) List(ctx context.Context, q Query) ([]T, int, error) {
	q = q.Normalize()

	var (
		conds []string
		args  []any
	)
	for _, field := range q.sortedFilterKeys() {
		args = append(args, field, q.Filters[field])
		conds = append(conds, fmt.Sprintf("data->>$%d = $%d", len(args)-1, len(args)))
	}
	if r := q.Range; r != nil {
		args = append(args, r.Field)
		field := len(args)
		if !r.From.IsZero() {
			args = append(args, r.From)
			conds = append(conds, fmt.Sprintf("(data->>$%d)::timestamptz >= $%d", field, len(args)))
		}
		if !r.To.IsZero() {
			args = append(args, r.To)
			conds = append(conds, fmt.Sprintf("(data->>$%d)::timestamptz < $%d", field, len(args)))
		}
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+g.def.Table+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", g.def.Kind, err)
	}

	order := " ORDER BY created_at DESC, id DESC"
	if q.Ascending {
		order = " ORDER BY created_at ASC, id ASC"
	}
	args = append(args, q.PageSize, q.Offset())
	stmt := `SELECT data FROM ` + g.def.Table + where + order +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := g.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", g.def.Kind, err)
	}
	defer rows.Close()

	out := make([]T, 0, q.PageSize)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, 0, err
		}
		rec, err := g.decode(doc)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (g *PostgresGateway[T]) Create(ctx context.Context, rec T) (T, error) {
	var zero T
	id := uuid.NewString()
	now := g.now()
	if err := g.def.stamp(nil, &rec, id, now); err != nil {
		return zero, err
	}
	doc, err := json.Marshal(&rec)
	if err != nil {
		return zero, err
	}
	entry, err := auditEntry(ctx, g.audit, g.def, audit.ActionCreate, id, nil, &rec)
	if err != nil {
		return zero, err
	}

	err = utils.WithTx(ctx, g.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		q := fmt.Sprintf(`INSERT INTO %s (id, data, created_at, updated_at) VALUES ($1, $2::jsonb, $3, $4)`, g.def.Table)
		if _, err := tx.ExecContext(ctx, q, id, string(doc), now, now); err != nil {
			return err
		}
		return audit.AppendTx(ctx, tx, entry)
	})
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return zero, ErrConflict
		}
		return zero, fmt.Errorf("create %s: %w", g.def.Kind, err)
	}
	return rec, nil
}

func (g *PostgresGateway[T]) Update(ctx context.Context, id string, mutate func(old T) (T, error)) (T, T, error) {
	var zero, old, next T

	err := utils.WithTx(ctx, g.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		// Row lock serializes concurrent edits of the same record.
		q := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1 FOR UPDATE`, g.def.Table)
		var prev []byte
		if err := tx.QueryRowContext(ctx, q, id).Scan(&prev); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		var err error
		if old, err = g.decode(prev); err != nil {
			return err
		}
		working, err := g.decode(prev)
		if err != nil {
			return err
		}
		if next, err = mutate(working); err != nil {
			return err
		}
		now := g.now()
		if err := g.def.stamp(&old, &next, id, now); err != nil {
			return err
		}
		doc, err := json.Marshal(&next)
		if err != nil {
			return err
		}
		entry, err := auditEntry(ctx, g.audit, g.def, audit.ActionUpdate, id, &old, &next)
		if err != nil {
			return err
		}

		upd := fmt.Sprintf(`UPDATE %s SET data = $2::jsonb, updated_at = $3 WHERE id = $1`, g.def.Table)
		if _, err := tx.ExecContext(ctx, upd, id, string(doc), now); err != nil {
			return err
		}
		return audit.AppendTx(ctx, tx, entry)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), IsValidation(err):
			return zero, zero, err
		case utils.IsUniqueViolation(err):
			return zero, zero, ErrConflict
		default:
			return zero, zero, fmt.Errorf("update %s: %w", g.def.Kind, err)
		}
	}
	return old, next, nil
}

func (g *PostgresGateway[T]) Delete(ctx context.Context, id string) (T, error) {
	var zero, old T

	err := utils.WithTx(ctx, g.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 RETURNING data`, g.def.Table)
		var prev []byte
		if err := tx.QueryRowContext(ctx, q, id).Scan(&prev); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		var err error
		if old, err = g.decode(prev); err != nil {
			return err
		}
		entry, err := auditEntry(ctx, g.audit, g.def, audit.ActionDelete, id, &old, nil)
		if err != nil {
			return err
		}
		return audit.AppendTx(ctx, tx, entry)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return zero, err
		}
		return zero, fmt.Errorf("delete %s: %w", g.def.Kind, err)
	}
	return old, nil
}

func (g *PostgresGateway[T]) decode(doc []byte) (T, error) {
	var rec T
	if err := json.Unmarshal(doc, &rec); err != nil {
		return rec, fmt.Errorf("decode %s: %w", g.def.Kind, err)
	}
	return rec, nil
}
