package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"zamanyonet-admin/internal/audit"
)

const ContentType = "application/x-ndjson"

var ErrInvalidCutoff = errors.New("archive: cutoff must be in the past")

type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	Location(key string) string
}

// Pruner deletes audit entries older than a cutoff. Both audit repositories
// implement it.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type Result struct {
	Location string
	Count    int
	Pruned   int64
}

// Archiver exports old audit entries as JSON Lines and optionally prunes
// them afterwards. This is the only path that deletes audit rows.
type Archiver struct {
	audit  *audit.Service
	up     Uploader
	pruner Pruner
	prefix string
	logger *slog.Logger
	clock  func() time.Time
}

func New(auditSvc *audit.Service, up Uploader, pruner Pruner, prefix string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		audit:  auditSvc,
		up:     up,
		pruner: pruner,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
		clock:  time.Now,
	}
}

// WithClock replaces the time source. Tests only.
func (a *Archiver) WithClock(clock func() time.Time) *Archiver {
	a.clock = clock
	return a
}

func (a *Archiver) objectKey(before time.Time) string {
	name := "audit-before-" + before.UTC().Format("20060102T150405Z") + ".jsonl"
	if a.prefix == "" {
		return name
	}
	return a.prefix + "/" + name
}

// Run exports every entry created before the cutoff. Nothing is uploaded,
// recorded or pruned when there is nothing to export. Prune runs only after
// the upload and the EXPORT entry both succeeded.
func (a *Archiver) Run(ctx context.Context, before time.Time, prune bool) (Result, error) {
	if before.IsZero() || before.After(a.clock()) {
		return Result{}, ErrInvalidCutoff
	}

	var buf bytes.Buffer
	count, err := a.writeEntries(ctx, &buf, before)
	if err != nil {
		return Result{}, err
	}
	if count == 0 {
		a.logger.Info("audit archive: nothing to export", "before", before)
		return Result{}, nil
	}

	key := a.objectKey(before)
	res := Result{Location: a.up.Location(key), Count: count}
	if err := a.up.Upload(ctx, key, &buf); err != nil {
		return Result{}, err
	}
	a.logger.Info("audit archive uploaded", "location", res.Location, "count", count)

	_, err = a.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionExport,
		EntityType: "AuditLog",
		Metadata: audit.Metadata(map[string]any{
			"location": res.Location,
			"count":    count,
			"before":   before.UTC(),
			"prune":    prune,
		}),
	})
	if err != nil {
		return Result{}, fmt.Errorf("record export: %w", err)
	}

	if prune {
		if a.pruner == nil {
			return res, errors.New("archive: pruning not supported by this store")
		}
		n, err := a.pruner.Prune(ctx, before)
		if err != nil {
			return res, err
		}
		res.Pruned = n
		a.logger.Info("audit entries pruned", "before", before, "count", n)
		if kept := int64(count) - n; kept > 0 {
			a.logger.Warn("audit entries awaiting the outbox relay were not pruned", "count", kept)
		}
	}
	return res, nil
}

func (a *Archiver) writeEntries(ctx context.Context, w io.Writer, before time.Time) (int, error) {
	enc := json.NewEncoder(w)
	f := audit.Filter{To: before, Ascending: true, Page: 1, PageSize: audit.MaxPageSize}
	count := 0
	for {
		entries, total, err := a.audit.List(ctx, f)
		if err != nil {
			return 0, fmt.Errorf("list audit entries: %w", err)
		}
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return 0, err
			}
			count++
		}
		if len(entries) == 0 || f.Page*f.PageSize >= total {
			return count, nil
		}
		f.Page++
	}
}
