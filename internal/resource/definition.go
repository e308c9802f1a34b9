package resource

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Base carries the identity and bookkeeping timestamps every resource has.
// The gateway owns these fields: client-supplied values are discarded.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *Base) Meta() *Base { return b }

type metaer interface {
	Meta() *Base
}

// Definition describes one administrable resource kind.
type Definition[T any] struct {
	// Kind is the route segment, e.g. "appointment-payments".
	Kind string
	// Table is the Postgres table holding the JSONB documents.
	Table string
	// EntityType is written to audit entries, e.g. "AppointmentPayment".
	EntityType string
	// Label is used in client messages: "<Label> not found".
	Label string

	// Filters whitelists list query parameters. Keys are query names,
	// values are JSON field names of the stored document.
	Filters map[string]string
	// FilterValue normalizes a list filter value the same way Prepare
	// normalizes the stored field, e.g. lowercasing emails. Optional.
	FilterValue func(field, value string) string

	// Prepare validates next and derives server-managed fields.
	// old is nil on create.
	Prepare func(old, next *T, now time.Time) error
	// Present is the public view of a record. Audit snapshots use it too,
	// so secrets never reach the audit trail.
	Present func(*T) any
	// PresentCreated overrides Present for the create response only.
	PresentCreated func(*T) any
	// UniqueKey returns a value that must be unique across the kind,
	// or "" when the record has none.
	UniqueKey func(*T) string
}

var tableName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Check reports configuration mistakes. Wiring code calls it at startup.
func (d *Definition[T]) Check() error {
	if d.Kind == "" || d.EntityType == "" || d.Label == "" {
		return errors.New("resource: kind, entity type and label are required")
	}
	if !tableName.MatchString(d.Table) {
		return fmt.Errorf("resource %s: invalid table name %q", d.Kind, d.Table)
	}
	var zero T
	if _, ok := any(&zero).(metaer); !ok {
		return fmt.Errorf("resource %s: %T does not embed resource.Base", d.Kind, zero)
	}
	return nil
}

func (d *Definition[T]) present(rec *T) any {
	if d.Present == nil {
		return rec
	}
	return d.Present(rec)
}

func (d *Definition[T]) presentCreated(rec *T) any {
	if d.PresentCreated != nil {
		return d.PresentCreated(rec)
	}
	return d.present(rec)
}

func (d *Definition[T]) notFound() string {
	return d.Label + " not found"
}

func meta[T any](rec *T) *Base {
	return any(rec).(metaer).Meta()
}

// stamp fills the gateway-owned fields and runs Prepare.
func (d *Definition[T]) stamp(old, next *T, id string, now time.Time) error {
	b := meta(next)
	b.ID = id
	b.UpdatedAt = now
	if old == nil {
		b.CreatedAt = now
	} else {
		b.CreatedAt = meta(old).CreatedAt
	}
	if d.Prepare != nil {
		return d.Prepare(old, next, now)
	}
	return nil
}
