package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"zamanyonet-admin/internal/audit"
)

// MemoryGateway keeps documents in process. The mutation and its audit
// append happen under one lock; a failed append reverts the mutation.
type MemoryGateway[T any] struct {
	def   *Definition[T]
	audit *audit.Service
	repo  audit.Repository
	clock func() time.Time

	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemoryGateway[T any](def *Definition[T], svc *audit.Service, repo audit.Repository) *MemoryGateway[T] {
	return &MemoryGateway[T]{
		def:   def,
		audit: svc,
		repo:  repo,
		clock: time.Now,
		docs:  make(map[string][]byte),
	}
}

// WithClock replaces the time source. Tests only.
func (g *MemoryGateway[T]) WithClock(clock func() time.Time) *MemoryGateway[T] {
	g.clock = clock
	return g
}

// Seed stores rec under its own ID without writing an audit entry.
// Tests use it to set up fixtures.
func (g *MemoryGateway[T]) Seed(rec T) error {
	id := meta(&rec).ID
	if id == "" {
		return fmt.Errorf("seed %s: id required", g.def.Kind)
	}
	doc, err := json.Marshal(&rec)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.docs[id] = doc
	return nil
}

func (g *MemoryGateway[T]) now() time.Time {
	return g.clock().UTC()
}

func (g *MemoryGateway[T]) decode(doc []byte) (T, error) {
	var rec T
	if err := json.Unmarshal(doc, &rec); err != nil {
		return rec, fmt.Errorf("decode %s: %w", g.def.Kind, err)
	}
	return rec, nil
}

func (g *MemoryGateway[T]) Get(_ context.Context, id string) (T, error) {
	g.mu.Lock()
	doc, ok := g.docs[id]
	g.mu.Unlock()
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return g.decode(doc)
}

func (g *MemoryGateway[T]) List(_ context.Context, q Query) ([]T, int, error) {
	q = q.Normalize()

	g.mu.Lock()
	docs := make([][]byte, 0, len(g.docs))
	for _, d := range g.docs {
		docs = append(docs, d)
	}
	g.mu.Unlock()

	matched := make([]T, 0, len(docs))
	for _, d := range docs {
		ok, err := matches(d, q)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			continue
		}
		rec, err := g.decode(d)
		if err != nil {
			return nil, 0, err
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := meta(&matched[i]), meta(&matched[j])
		if q.Ascending {
			a, b = b, a
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	total := len(matched)
	start := q.Offset()
	if start >= total {
		return []T{}, total, nil
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matches(doc []byte, q Query) (bool, error) {
	if len(q.Filters) == 0 && q.Range == nil {
		return true, nil
	}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return false, err
	}
	for k, want := range q.Filters {
		got, ok := fieldText(fields[k])
		if !ok || got != want {
			return false, nil
		}
	}
	if q.Range != nil {
		raw, ok := fields[q.Range.Field].(string)
		if !ok {
			return false, nil
		}
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return false, nil
		}
		return q.Range.contains(at), nil
	}
	return true, nil
}

func (g *MemoryGateway[T]) Create(ctx context.Context, rec T) (T, error) {
	var zero T
	id := uuid.NewString()
	if err := g.def.stamp(nil, &rec, id, g.now()); err != nil {
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

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkUniqueLocked(id, &rec); err != nil {
		return zero, err
	}
	g.docs[id] = doc
	if err := g.repo.Append(ctx, entry); err != nil {
		delete(g.docs, id)
		return zero, fmt.Errorf("append audit: %w", err)
	}
	return rec, nil
}

func (g *MemoryGateway[T]) Update(ctx context.Context, id string, mutate func(old T) (T, error)) (T, T, error) {
	var zero T

	g.mu.Lock()
	defer g.mu.Unlock()

	prevDoc, ok := g.docs[id]
	if !ok {
		return zero, zero, ErrNotFound
	}
	old, err := g.decode(prevDoc)
	if err != nil {
		return zero, zero, err
	}
	working, err := g.decode(prevDoc)
	if err != nil {
		return zero, zero, err
	}
	next, err := mutate(working)
	if err != nil {
		return zero, zero, err
	}
	if err := g.def.stamp(&old, &next, id, g.now()); err != nil {
		return zero, zero, err
	}
	if err := g.checkUniqueLocked(id, &next); err != nil {
		return zero, zero, err
	}
	doc, err := json.Marshal(&next)
	if err != nil {
		return zero, zero, err
	}
	entry, err := auditEntry(ctx, g.audit, g.def, audit.ActionUpdate, id, &old, &next)
	if err != nil {
		return zero, zero, err
	}

	g.docs[id] = doc
	if err := g.repo.Append(ctx, entry); err != nil {
		g.docs[id] = prevDoc
		return zero, zero, fmt.Errorf("append audit: %w", err)
	}
	return old, next, nil
}

func (g *MemoryGateway[T]) Delete(ctx context.Context, id string) (T, error) {
	var zero T

	g.mu.Lock()
	defer g.mu.Unlock()

	prevDoc, ok := g.docs[id]
	if !ok {
		return zero, ErrNotFound
	}
	old, err := g.decode(prevDoc)
	if err != nil {
		return zero, err
	}
	entry, err := auditEntry(ctx, g.audit, g.def, audit.ActionDelete, id, &old, nil)
	if err != nil {
		return zero, err
	}

	delete(g.docs, id)
	if err := g.repo.Append(ctx, entry); err != nil {
		g.docs[id] = prevDoc
		return zero, fmt.Errorf("append audit: %w", err)
	}
	return old, nil
}

func (g *MemoryGateway[T]) checkUniqueLocked(id string, rec *T) error {
	if g.def.UniqueKey == nil {
		return nil
	}
	key := g.def.UniqueKey(rec)
	if key == "" {
		return nil
	}
	for otherID, doc := range g.docs {
		if otherID == id {
			continue
		}
		other, err := g.decode(doc)
		if err != nil {
			return err
		}
		if g.def.UniqueKey(&other) == key {
			return ErrConflict
		}
	}
	return nil
}
