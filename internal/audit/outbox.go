package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// OutboxRecord is the publishable copy of an audit entry. It is written in the
// same transaction as the entry and removed from the pending set once a
// Publisher has accepted it.
type OutboxRecord struct {
	Seq         int64           `json:"seq"`
	EntryID     string          `json:"entryId"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"createdAt"`
	PublishedAt *time.Time      `json:"publishedAt,omitempty"`
}

// OutboxStore reads pending outbox rows in sequence order.
type OutboxStore interface {
	Pending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, seqs []int64, at time.Time) error
}

// Publisher delivers one outbox record downstream.
// Delivery is at-least-once; consumers dedupe on EntryID.
type Publisher interface {
	Publish(ctx context.Context, rec OutboxRecord) error
}

// Lease guards the relay so that at most one process publishes at a time.
// Renew reports false once the lease has passed to someone else.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Renew(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// RenewEvery is how long the relay publishes before renewing its lease.
	// It must stay well below the lease TTL. Defaults to PollInterval.
	RenewEvery time.Duration
}

// Relay moves pending outbox records to a Publisher.
type Relay struct {
	store  OutboxStore
	pub    Publisher
	lease  Lease
	cfg    RelayConfig
	logger *slog.Logger
	clock  func() time.Time
}

func NewRelay(store OutboxStore, pub Publisher, lease Lease, cfg RelayConfig, logger *slog.Logger) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RenewEvery <= 0 {
		cfg.RenewEvery = cfg.PollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{store: store, pub: pub, lease: lease, cfg: cfg, logger: logger, clock: time.Now}
}

// WithClock replaces the time source. Tests only.
func (r *Relay) WithClock(clock func() time.Time) *Relay {
	r.clock = clock
	return r
}

var (
	ErrLeaseHeld = errors.New("audit: outbox relay lease held by another process")
	ErrLeaseLost = errors.New("audit: outbox relay lease lost during batch")
)

// RunOnce publishes up to one batch and returns how many records went out.
// Records are marked published in order; the first publish failure stops the
// batch so that ordering is preserved on retry. A long batch renews the lease
// as it goes and stops as soon as the lease is lost.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	if r.lease != nil {
		ok, err := r.lease.Acquire(ctx)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrLeaseHeld
		}
		defer func() {
			if err := r.lease.Release(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("outbox lease release failed", "err", err)
			}
		}()
	}

	pending, err := r.store.Pending(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	var (
		done   []int64
		pubErr error
	)
	renewed := r.clock()
	for _, rec := range pending {
		if r.lease != nil && r.clock().Sub(renewed) >= r.cfg.RenewEvery {
			ok, err := r.lease.Renew(ctx)
			if err != nil {
				pubErr = err
				break
			}
			if !ok {
				pubErr = ErrLeaseLost
				break
			}
			renewed = r.clock()
		}
		if err := r.pub.Publish(ctx, rec); err != nil {
			pubErr = err
			break
		}
		done = append(done, rec.Seq)
	}
	if len(done) > 0 {
		if err := r.store.MarkPublished(ctx, done, r.clock().UTC()); err != nil {
			return 0, err
		}
	}
	return len(done), pubErr
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		n, err := r.RunOnce(ctx)
		switch {
		case errors.Is(err, ErrLeaseHeld):
			r.logger.Debug("outbox relay standing by")
		case errors.Is(err, ErrLeaseLost):
			r.logger.Warn("outbox relay lost its lease mid-batch", "published", n)
		case err != nil && ctx.Err() == nil:
			r.logger.Error("outbox relay batch failed", "err", err, "published", n)
		case n > 0:
			r.logger.Info("outbox relay published", "count", n)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func outboxPayload(e Entry) (json.RawMessage, error) {
	return json.Marshal(e)
}
