package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"zamanyonet-admin/pkg/utils"
)

// StreamPublisher appends outbox records to a Redis stream.
type StreamPublisher struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
}

func NewStreamPublisher(rdb redis.Cmdable, stream string) *StreamPublisher {
	return &StreamPublisher{rdb: rdb, stream: stream, maxLen: 100_000}
}

func (p *StreamPublisher) Publish(ctx context.Context, rec OutboxRecord) error {
	err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"seq":     strconv.FormatInt(rec.Seq, 10),
			"entryId": rec.EntryID,
			"payload": string(rec.Payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// RedisLease is a single-holder lease owned by a random token, so only the
// process that took it can renew or release it.
type RedisLease struct {
	rdb   redis.Scripter
	key   string
	token string
	ttl   time.Duration
}

func NewRedisLease(rdb redis.Scripter, key string, ttl time.Duration) *RedisLease {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLease{rdb: rdb, key: key, token: uuid.NewString(), ttl: ttl}
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	return utils.AcquireLease(ctx, l.rdb, l.key, l.token, l.ttl)
}

func (l *RedisLease) Renew(ctx context.Context) (bool, error) {
	return utils.RenewLease(ctx, l.rdb, l.key, l.token, l.ttl)
}

func (l *RedisLease) Release(ctx context.Context) error {
	return utils.ReleaseLease(ctx, l.rdb, l.key, l.token)
}
