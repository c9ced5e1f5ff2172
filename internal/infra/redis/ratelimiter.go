package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/donation-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimit  int64 = 10
	defaultWindow       = time.Minute
	keyPrefix           = "ratelimit"
)

// allowScript increments the counter of the current window and returns
// {count, ttl_ms}. The first hit of a window sets its expiry.
var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

var _ ratelimit.Limiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter is a distributed fixed-window limiter keyed by client.
type RedisRateLimiter struct {
	client *goredis.Client
	scope  string
	limit  int64
	window time.Duration
	now    func() time.Time
	script *goredis.Script
}

// NewRedisRateLimiter allows limit hits per window for each key within scope.
func NewRedisRateLimiter(client *goredis.Client, scope string, limit int, window time.Duration) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, scope, int64(limit), window, time.Now)
}

func newRedisRateLimiter(
	client *goredis.Client,
	scope string,
	limit int64,
	window time.Duration,
	nowFn func() time.Time,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	scope = strings.ToLower(strings.TrimSpace(scope))
	if scope == "" {
		return nil, fmt.Errorf("rate limit scope is required")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if window <= 0 {
		window = defaultWindow
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &RedisRateLimiter{
		client: client,
		scope:  scope,
		limit:  limit,
		window: window,
		now:    nowFn,
		script: allowScript,
	}, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	if r == nil || r.client == nil || r.script == nil {
		return ratelimit.Decision{}, fmt.Errorf("rate limiter is not initialized")
	}

	normalizedKey := strings.ToLower(strings.TrimSpace(key))
	if normalizedKey == "" {
		return ratelimit.Decision{}, fmt.Errorf("rate limit key is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	windowStart := r.now().UTC().UnixMilli() / r.window.Milliseconds()
	redisKey := fmt.Sprintf("%s:%s:%s:%d", keyPrefix, r.scope, normalizedKey, windowStart)

	values, err := r.script.Run(ctx, r.client, []string{redisKey}, r.window.Milliseconds()).Int64Slice()
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}
	if len(values) != 2 {
		return ratelimit.Decision{}, fmt.Errorf("unexpected rate limit reply: %v", values)
	}

	count, ttlMillis := values[0], values[1]
	decision := ratelimit.Decision{
		Allowed:   count <= r.limit,
		Remaining: max(r.limit-count, 0),
	}
	if !decision.Allowed {
		decision.RetryAfter = time.Duration(max(ttlMillis, 0)) * time.Millisecond
	}
	return decision, nil
}
