package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"zamanyonet-admin/internal/audit"
)

// Gateway is the only write path to a resource kind. Every mutation it
// performs is paired with exactly one audit entry, committed together or
// not at all.
type Gateway[T any] interface {
	Get(ctx context.Context, id string) (T, error)
	List(ctx context.Context, q Query) ([]T, int, error)
	Create(ctx context.Context, rec T) (T, error)
	// Update loads the current record, hands a copy to mutate and persists
	// the result. It returns both versions.
	Update(ctx context.Context, id string, mutate func(old T) (T, error)) (T, T, error)
	Delete(ctx context.Context, id string) (T, error)
}

// Query selects a page of records. Filters maps stored JSON field names to
// the exact value they must hold.
type Query struct {
	Filters  map[string]string
	Range    *Range
	Page     int
	PageSize int
	// Ascending pages oldest first, so rows created mid-scan land after the
	// current page instead of shifting it.
	Ascending bool
}

// Range keeps records whose timestamp field falls in [From, To). A zero
// bound is open.
type Range struct {
	Field string
	From  time.Time
	To    time.Time
}

func (r *Range) contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	return r.To.IsZero() || t.Before(r.To)
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

func (q Query) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// sortedFilterKeys gives SQL generation a deterministic order.
func (q Query) sortedFilterKeys() []string {
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// auditEntry builds the stamped audit entry describing one mutation.
func auditEntry[T any](ctx context.Context, svc *audit.Service, def *Definition[T], action audit.Action, id string, old, next *T) (audit.Entry, error) {
	e := audit.Entry{
		Action:     action,
		EntityType: def.EntityType,
		EntityID:   id,
		Metadata:   audit.Metadata(map[string]any{"resource": def.Kind}),
	}
	var err error
	if old != nil {
		if e.OldValues, err = json.Marshal(def.present(old)); err != nil {
			return audit.Entry{}, fmt.Errorf("snapshot old %s: %w", def.Kind, err)
		}
	}
	if next != nil {
		if e.NewValues, err = json.Marshal(def.present(next)); err != nil {
			return audit.Entry{}, fmt.Errorf("snapshot new %s: %w", def.Kind, err)
		}
	}
	return svc.Stamp(ctx, e)
}

// fieldText renders a decoded JSON value the way Postgres' ->> operator does.
func fieldText(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	case json.Number:
		return t.String(), true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return strings.TrimSpace(string(b)), true
	}
}
