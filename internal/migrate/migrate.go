package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"zamanyonet-admin/pkg/utils"
)

//go:embed sql/*.sql
var embedded embed.FS

// ErrModified means an applied migration no longer matches its file.
var ErrModified = errors.New("migrate: applied migration was modified")

type Migration struct {
	Name     string
	Content  string
	Checksum string
}

const migrationsTable = "schema_migrations"

func ComputeChecksum(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// Embedded returns the migrations shipped with the binary, in apply order.
func Embedded() ([]Migration, error) {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Load reads every *.sql file at the root of fsys, sorted by name.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		out = append(out, Migration{
			Name:     entry.Name(),
			Content:  string(content),
			Checksum: ComputeChecksum(string(content)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Pending returns the migrations not yet applied. applied maps names to
// stored checksums; a mismatch fails with ErrModified.
func Pending(all []Migration, applied map[string]string) ([]Migration, error) {
	var (
		out      []Migration
		modified []string
	)
	for _, m := range all {
		sum, ok := applied[m.Name]
		if !ok {
			out = append(out, m)
			continue
		}
		if sum != "" && sum != m.Checksum {
			modified = append(modified, m.Name)
		}
	}
	if len(modified) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrModified, strings.Join(modified, ", "))
	}
	return out, nil
}

func ensureTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
	name       TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	return err
}

func Applied(ctx context.Context, db *sql.DB) (map[string]string, error) {
	if err := ensureTable(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure %s: %w", migrationsTable, err)
	}
	rows, err := db.QueryContext(ctx, `SELECT name, checksum FROM `+migrationsTable)
	if err != nil {
		return nil, fmt.Errorf("query migrations: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, sum string
		if err := rows.Scan(&name, &sum); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		out[name] = sum
	}
	return out, rows.Err()
}

// Up applies every pending embedded migration, each in its own transaction.
// It returns the names applied.
func Up(ctx context.Context, db *sql.DB, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	all, err := Embedded()
	if err != nil {
		return nil, err
	}
	applied, err := Applied(ctx, db)
	if err != nil {
		return nil, err
	}
	pending, err := Pending(all, applied)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, m := range pending {
		err := utils.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Content); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO `+migrationsTable+` (name, checksum) VALUES ($1, $2)`,
				m.Name, m.Checksum,
			)
			return err
		})
		if err != nil {
			return names, fmt.Errorf("apply %s: %w", m.Name, err)
		}
		logger.Info("migration applied", "name", m.Name)
		names = append(names, m.Name)
	}
	return names, nil
}
