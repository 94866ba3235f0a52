package supplier

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"creditfeed/internal/cache"
	"creditfeed/internal/middleware"
	"creditfeed/internal/models"
	"creditfeed/internal/observability"

	"github.com/redis/go-redis/v9"
)

// quotaPeriodLayout names a monthly quota period, e.g. "2026-10".
const quotaPeriodLayout = "2006-01"

// defaultWindowTTL applies when the platform reports an allowance without a
// usable reset time.
const defaultWindowTTL = 15 * time.Minute

// QuotaTracker accounts for a supplier's monthly call budget and the
// platform's short-window rate limit.
type QuotaTracker interface {
	// Remaining is the number of calls still allowed now.
	Remaining(ctx context.Context) (int, error)
	// RecordCall counts one call against the current period.
	RecordCall(ctx context.Context) error
	// SetRemaining stores the platform-reported window allowance until resetAt.
	SetRemaining(ctx context.Context, remaining int, resetAt time.Time) error
	// Reset clears the usage of the given period.
	Reset(ctx context.Context, period string) error
}

// QuotaPeriod returns the monthly period t falls in.
func QuotaPeriod(t time.Time) string {
	return t.UTC().Format(quotaPeriodLayout)
}

func clampRemaining(monthly int, window *int) int {
	remaining := monthly
	if window != nil && *window < remaining {
		remaining = *window
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MemoryQuota keeps quota state in process memory.
type MemoryQuota struct {
	mu          sync.Mutex
	limit       int
	used        map[string]int
	window      *int
	windowReset time.Time
	now         func() time.Time
}

func NewMemoryQuota(limit int) *MemoryQuota {
	return &MemoryQuota{limit: limit, used: make(map[string]int), now: time.Now}
}

func (q *MemoryQuota) Remaining(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	if q.window != nil && now.After(q.windowReset) {
		q.window = nil
	}
	return clampRemaining(q.limit-q.used[QuotaPeriod(now)], q.window), nil
}

func (q *MemoryQuota) RecordCall(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used[QuotaPeriod(q.now())]++
	return nil
}

func (q *MemoryQuota) SetRemaining(_ context.Context, remaining int, resetAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if now := q.now(); !resetAt.After(now) {
		resetAt = now.Add(defaultWindowTTL)
	}
	q.window = &remaining
	q.windowReset = resetAt
	return nil
}

func (q *MemoryQuota) Reset(_ context.Context, period string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.used, period)
	q.window = nil
	return nil
}

// RedisQuota shares quota state across processes through redis and falls
// back to memory whenever redis is unreachable.
type RedisQuota struct {
	client   *redis.Client
	source   models.Source
	limit    int
	fallback *MemoryQuota
	now      func() time.Time
}

// NewQuotaTracker returns a redis-backed tracker, or a memory tracker when
// client is nil.
func NewQuotaTracker(client *redis.Client, source models.Source, limit int) QuotaTracker {
	if client == nil {
		return NewMemoryQuota(limit)
	}
	return &RedisQuota{
		client:   client,
		source:   source,
		limit:    limit,
		fallback: NewMemoryQuota(limit),
		now:      time.Now,
	}
}

func (q *RedisQuota) usedKey(period string) string {
	return cache.QuotaKey(string(q.source), period)
}

func (q *RedisQuota) windowKey() string {
	return cache.QuotaKey(string(q.source), "window")
}

func (q *RedisQuota) degrade(ctx context.Context, op string, err error) {
	middleware.Logger.WarnContext(ctx, "Quota store unavailable, using in-memory tracker",
		"source", q.source,
		"op", op,
		"error", err,
	)
}

func (q *RedisQuota) Remaining(ctx context.Context) (int, error) {
	used, err := q.client.Get(ctx, q.usedKey(QuotaPeriod(q.now()))).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		q.degrade(ctx, "remaining", err)
		return q.fallback.Remaining(ctx)
	}

	var window *int
	raw, err := q.client.Get(ctx, q.windowKey()).Result()
	switch {
	case err == nil:
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			window = &n
		}
	case !errors.Is(err, redis.Nil):
		q.degrade(ctx, "remaining", err)
		return q.fallback.Remaining(ctx)
	}

	remaining := clampRemaining(q.limit-used, window)
	observability.SupplierQuotaRemaining.WithLabelValues(string(q.source)).Set(float64(remaining))
	return remaining, nil
}

func (q *RedisQuota) RecordCall(ctx context.Context) error {
	key := q.usedKey(QuotaPeriod(q.now()))
	cnt, err := q.client.Incr(ctx, key).Result()
	if err != nil {
		q.degrade(ctx, "record", err)
		return q.fallback.RecordCall(ctx)
	}
	if cnt == 1 {
		// Keep a period's counter a little past month end.
		q.client.Expire(ctx, key, 32*24*time.Hour)
	}
	return nil
}

func (q *RedisQuota) SetRemaining(ctx context.Context, remaining int, resetAt time.Time) error {
	ttl := resetAt.Sub(q.now())
	if ttl <= 0 {
		ttl = defaultWindowTTL
	}
	if err := q.client.Set(ctx, q.windowKey(), remaining, ttl).Err(); err != nil {
		q.degrade(ctx, "set_remaining", err)
		return q.fallback.SetRemaining(ctx, remaining, resetAt)
	}
	return nil
}

func (q *RedisQuota) Reset(ctx context.Context, period string) error {
	if err := q.client.Del(ctx, q.usedKey(period), q.windowKey()).Err(); err != nil {
		q.degrade(ctx, "reset", err)
		return q.fallback.Reset(ctx, period)
	}
	return nil
}
