package service

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const freeTierKeyPrefix = "ratelimit:free:"

// Decision is the outcome of a quota check. ResetAt is when the next admission becomes possible.
type Decision struct {
	Allowed bool
	ResetAt time.Time
}

// RateLimiter admits at most one call per key per window.
type RateLimiter interface {
	Check(ctx context.Context, key string) (Decision, error)
}

// RedisLimiter keeps one expiring marker key per user. SET NX makes admission atomic across instances.
type RedisLimiter struct {
	client redis.UniversalClient
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, window: window, now: time.Now}
}

func (l *RedisLimiter) Check(ctx context.Context, key string) (Decision, error) {
	redisKey := freeTierKeyPrefix + key
	for attempt := 0; attempt < 2; attempt++ {
		now := l.now()
		ok, err := l.client.SetNX(ctx, redisKey, now.UnixMilli(), l.window).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("ratelimit setnx: %w", err)
		}
		if ok {
			return Decision{Allowed: true, ResetAt: now.Add(l.window)}, nil
		}

		ttl, err := l.client.PTTL(ctx, redisKey).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("ratelimit pttl: %w", err)
		}
		switch {
		case ttl > 0:
			return Decision{Allowed: false, ResetAt: now.Add(ttl)}, nil
		case ttl == -1:
			// marker without expiry: restore the window instead of denying forever
			if err := l.client.PExpire(ctx, redisKey, l.window).Err(); err != nil {
				return Decision{}, fmt.Errorf("ratelimit pexpire: %w", err)
			}
			return Decision{Allowed: false, ResetAt: now.Add(l.window)}, nil
		}
		// expired between SETNX and PTTL, try again
	}
	return Decision{Allowed: false, ResetAt: l.now().Add(time.Millisecond)}, nil
}

// MemoryLimiter holds one token-bucket limiter per user in a TTL cache. It only
// enforces the quota within a single process.
type MemoryLimiter struct {
	limiters *cache.Cache
	window   time.Duration
	now      func() time.Time
}

func NewMemoryLimiter(window time.Duration) *MemoryLimiter {
	cleanup := 10 * time.Minute
	if window < cleanup {
		cleanup = window
	}
	return &MemoryLimiter{
		limiters: cache.New(window, cleanup),
		window:   window,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) limiterFor(key string) *rate.Limiter {
	for {
		if v, ok := l.limiters.Get(key); ok {
			return v.(*rate.Limiter)
		}
		lim := rate.NewLimiter(rate.Every(l.window), 1)
		if err := l.limiters.Add(key, lim, cache.DefaultExpiration); err == nil {
			return lim
		}
	}
}

func (l *MemoryLimiter) Check(_ context.Context, key string) (Decision, error) {
	now := l.now()
	r := l.limiterFor(key).ReserveN(now, 1)
	if !r.OK() {
		return Decision{}, fmt.Errorf("ratelimit: reservation rejected for %q", key)
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return Decision{Allowed: true, ResetAt: now.Add(l.window)}, nil
	}
	r.CancelAt(now)
	return Decision{Allowed: false, ResetAt: now.Add(delay)}, nil
}
