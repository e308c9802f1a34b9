package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists audit entries.
// It is append-only: there are no Update or Delete methods.
type Repository interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, int, error)
	Get(ctx context.Context, id string) (Entry, error)
}

var (
	ErrInvalidEntry = errors.New("audit: invalid entry")
	ErrNotFound     = errors.New("audit: entry not found")
)

// Service stamps and records audit entries and serves the audit viewer.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// WithClock replaces the time source. Tests only.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Stamp validates e and fills id, timestamp, metadata and any actor details
// carried by ctx. Gateways call it before appending inside their transaction.
func (s *Service) Stamp(ctx context.Context, e Entry) (Entry, error) {
	if !e.Action.Valid() {
		return Entry{}, fmt.Errorf("%w: unknown action %q", ErrInvalidEntry, e.Action)
	}
	if e.EntityType == "" {
		return Entry{}, fmt.Errorf("%w: entity type required", ErrInvalidEntry)
	}
	if len(e.Metadata) > 0 && !json.Valid(e.Metadata) {
		return Entry{}, fmt.Errorf("%w: metadata is not valid json", ErrInvalidEntry)
	}

	if actor, ok := ActorFrom(ctx); ok {
		if e.ActorID == "" {
			e.ActorID = actor.ID
		}
		if e.IPAddress == "" {
			e.IPAddress = actor.IP
		}
		if e.UserAgent == "" {
			e.UserAgent = actor.UserAgent
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if len(e.Metadata) == 0 {
		e.Metadata = json.RawMessage(`{}`)
	}
	return e, nil
}

// Record stamps e and appends it on its own. Use it for actions that have no
// primary mutation to share a transaction with (login, logout, export).
func (s *Service) Record(ctx context.Context, e Entry) (Entry, error) {
	if s.repo == nil {
		return Entry{}, errors.New("audit: repository not configured")
	}
	stamped, err := s.Stamp(ctx, e)
	if err != nil {
		return Entry{}, err
	}
	if err := s.repo.Append(ctx, stamped); err != nil {
		return Entry{}, fmt.Errorf("audit: append: %w", err)
	}
	return stamped, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Entry, int, error) {
	if s.repo == nil {
		return nil, 0, errors.New("audit: repository not configured")
	}
	return s.repo.List(ctx, f.Normalize())
}

func (s *Service) Get(ctx context.Context, id string) (Entry, error) {
	if s.repo == nil {
		return Entry{}, errors.New("audit: repository not configured")
	}
	return s.repo.Get(ctx, id)
}

// Metadata marshals a metadata bag, falling back to an empty object.
func Metadata(v map[string]any) json.RawMessage {
	if len(v) == 0 {
		return json.RawMessage(`{}`)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
