package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-process append-only repository with its own outbox.
// Used by tests and STORAGE_MODE=memory.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []Entry
	outbox  []OutboxRecord
	seq     int64
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(_ context.Context, e Entry) error {
	payload, err := outboxPayload(e)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	r.seq++
	r.outbox = append(r.outbox, OutboxRecord{
		Seq:       r.seq,
		EntryID:   e.ID,
		Payload:   payload,
		CreatedAt: e.CreatedAt,
	})
	return nil
}

func (r *MemoryRepo) List(_ context.Context, f Filter) ([]Entry, int, error) {
	f = f.Normalize()

	r.mu.Lock()
	matched := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if f.matches(e) {
			matched = append(matched, e)
		}
	}
	r.mu.Unlock()

	// Stable keeps insertion order for entries sharing a timestamp.
	sort.SliceStable(matched, func(i, j int) bool {
		if f.Ascending {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if !f.Ascending {
		reverseTies(matched)
	}

	total := len(matched)
	start := f.Offset()
	if start >= total {
		return []Entry{}, total, nil
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// reverseTies flips runs of equal timestamps so the newest insert comes first.
func reverseTies(es []Entry) {
	for i := 0; i < len(es); {
		j := i + 1
		for j < len(es) && es[j].CreatedAt.Equal(es[i].CreatedAt) {
			j++
		}
		for a, b := i, j-1; a < b; a, b = a+1, b-1 {
			es[a], es[b] = es[b], es[a]
		}
		i = j
	}
}

func (r *MemoryRepo) Get(_ context.Context, id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

// Entries returns a copy of everything appended so far.
func (r *MemoryRepo) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Prune removes entries created before cutoff whose outbox record has been
// published, together with that record. Entries still waiting for the relay
// are kept. It backs the retention job.
func (r *MemoryRepo) Prune(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[string]struct{})
	for _, rec := range r.outbox {
		if rec.PublishedAt == nil {
			pending[rec.EntryID] = struct{}{}
		}
	}

	removed := make(map[string]struct{})
	kept := r.entries[:0]
	for _, e := range r.entries {
		if _, waiting := pending[e.ID]; e.CreatedAt.Before(before) && !waiting {
			removed[e.ID] = struct{}{}
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept

	outbox := r.outbox[:0]
	for _, rec := range r.outbox {
		if _, gone := removed[rec.EntryID]; !gone {
			outbox = append(outbox, rec)
		}
	}
	r.outbox = outbox
	return int64(len(removed)), nil
}

func (r *MemoryRepo) Pending(_ context.Context, limit int) ([]OutboxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []OutboxRecord
	for _, rec := range r.outbox {
		if rec.PublishedAt != nil {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepo) MarkPublished(_ context.Context, seqs []int64, at time.Time) error {
	want := make(map[int64]struct{}, len(seqs))
	for _, s := range seqs {
		want[s] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.outbox {
		if _, ok := want[r.outbox[i].Seq]; ok {
			ts := at
			r.outbox[i].PublishedAt = &ts
		}
	}
	return nil
}
