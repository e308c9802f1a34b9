package audit

import (
	"encoding/json"
	"time"
)

// Entry is one immutable row of the audit trail.
//
// Invariants:
//   - Entries are never updated. Deletion happens only through the
//     out-of-band retention job (zyctl audit archive --prune).
//   - Entries describing a resource mutation are written in the same
//     transaction as the mutation itself.
type Entry struct {
	ID     string `json:"id"`
	Action Action `json:"action"`

	// EntityType names the affected domain type, e.g. "AppointmentPayment".
	EntityType string `json:"entityType"`
	// EntityID is empty for collection-level actions.
	EntityID string `json:"entityId,omitempty"`
	// ActorID is empty for system actions.
	ActorID string `json:"actorId,omitempty"`

	OldValues json.RawMessage `json:"oldValues"`
	NewValues json.RawMessage `json:"newValues"`
	Metadata  json.RawMessage `json:"metadata"`

	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionUpdate  Action = "UPDATE"
	ActionDelete  Action = "DELETE"
	ActionLogin   Action = "LOGIN"
	ActionLogout  Action = "LOGOUT"
	ActionRestore Action = "RESTORE"
	ActionExport  Action = "EXPORT"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionLogin, ActionLogout, ActionRestore, ActionExport:
		return true
	default:
		return false
	}
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	ActorID    string
	EntityType string
	EntityID   string
	Action     Action
	From       time.Time
	To         time.Time

	Page     int
	PageSize int
	// Ascending returns oldest entries first (version history).
	Ascending bool
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

func (f Filter) matches(e Entry) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
		return false
	}
	return true
}
