package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"zamanyonet-admin/internal/audit"
	"zamanyonet-admin/internal/auth"
	"zamanyonet-admin/internal/config"
	"zamanyonet-admin/internal/resource"
	"zamanyonet-admin/pkg/utils"
)

// AuditStore is what both audit repositories provide: the append-only
// trail, its outbox and the retention delete.
type AuditStore interface {
	audit.Repository
	audit.OutboxStore
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// relayLeaseKey guards the outbox relay so one process publishes at a time.
const relayLeaseKey = "zamanyonet:outbox:relay"

// Deps holds the shared infrastructure of the API and zyctl. DB and Redis
// are nil in memory mode.
type Deps struct {
	Config config.Config
	Logger *slog.Logger

	DB    *sql.DB
	Redis *redis.Client

	AuditStore AuditStore
	Audit      *audit.Service
}

func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Deps, error) {
	d := &Deps{Config: cfg, Logger: logger}

	if cfg.Storage.Mode == config.StorageModeMemory {
		logger.Warn("memory storage mode: data is lost on exit")
		repo := audit.NewMemoryRepo()
		d.AuditStore = repo
		d.Audit = audit.NewService(repo)
		return d, nil
	}

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, err
	}
	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	repo := audit.NewPostgresRepo(db)
	d.DB = db
	d.Redis = rdb
	d.AuditStore = repo
	d.Audit = audit.NewService(repo)
	return d, nil
}

func (d *Deps) Backend() resource.Backend {
	return resource.Backend{Audit: d.Audit, AuditRepo: d.AuditStore, DB: d.DB}
}

func (d *Deps) Sessions() auth.SessionStore {
	if d.Redis == nil {
		return auth.NewMemorySessionStore()
	}
	return auth.NewRedisSessionStore(d.Redis)
}

// Relay returns the outbox relay, or nil when there is no Redis to publish to.
func (d *Deps) Relay() *audit.Relay {
	if d.Redis == nil {
		return nil
	}
	return audit.NewRelay(
		d.AuditStore,
		audit.NewStreamPublisher(d.Redis, d.Config.Outbox.Stream),
		audit.NewRedisLease(d.Redis, relayLeaseKey, 3*d.Config.Outbox.PollInterval),
		audit.RelayConfig{PollInterval: d.Config.Outbox.PollInterval, BatchSize: d.Config.Outbox.BatchSize},
		d.Logger.With("component", "outbox_relay"),
	)
}

// RequireDB fails commands that only make sense against Postgres.
func (d *Deps) RequireDB() error {
	if d.DB == nil {
		return errors.New("this command needs STORAGE_MODE=postgres")
	}
	return nil
}

func (d *Deps) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("redis close failed", "err", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Error("postgres close failed", "err", err)
		}
	}
}
