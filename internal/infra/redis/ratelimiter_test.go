package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisRateLimiterAllow(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_040, 0)
	limiter, err := newRedisRateLimiter(rdb, "donations", 2, time.Minute, func() time.Time { return now })
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	decision, err := limiter.Allow(context.Background(), "203.0.113.7")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !decision.Allowed || decision.Remaining != 1 {
		t.Fatalf("first call decision = %+v, want allowed with 1 remaining", decision)
	}

	decision, err = limiter.Allow(context.Background(), "203.0.113.7")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !decision.Allowed || decision.Remaining != 0 {
		t.Fatalf("second call decision = %+v, want allowed with 0 remaining", decision)
	}

	decision, err = limiter.Allow(context.Background(), "203.0.113.7")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if decision.Allowed {
		t.Fatal("third call should be rejected by rate limit")
	}
	if decision.RetryAfter <= 0 || decision.RetryAfter > time.Minute {
		t.Fatalf("RetryAfter = %s, want within (0, 1m]", decision.RetryAfter)
	}

	now = now.Add(time.Minute)
	decision, err = limiter.Allow(context.Background(), "203.0.113.7")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !decision.Allowed {
		t.Fatal("new window should allow call")
	}
}

func TestRedisRateLimiterAllowPerKey(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_100, 0)
	limiter, err := newRedisRateLimiter(rdb, "donations", 1, time.Minute, func() time.Time { return now })
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	testCases := []struct {
		key         string
		wantAllowed bool
	}{
		{key: "198.51.100.1", wantAllowed: true},
		{key: "198.51.100.2", wantAllowed: true},
		{key: "198.51.100.1", wantAllowed: false},
	}

	for _, tc := range testCases {
		decision, err := limiter.Allow(context.Background(), tc.key)
		if err != nil {
			t.Fatalf("Allow(%s) error = %v", tc.key, err)
		}
		if decision.Allowed != tc.wantAllowed {
			t.Fatalf("Allow(%s) allowed = %v, want %v", tc.key, decision.Allowed, tc.wantAllowed)
		}
	}
}

func TestRedisRateLimiterScopesAreIndependent(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_200, 0)
	donations, err := newRedisRateLimiter(rdb, "donations", 1, time.Minute, func() time.Time { return now })
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}
	newsletter, err := newRedisRateLimiter(rdb, "newsletter", 1, time.Minute, func() time.Time { return now })
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if decision, err := donations.Allow(context.Background(), "client"); err != nil || !decision.Allowed {
		t.Fatalf("donations Allow() = %+v, %v; want allowed", decision, err)
	}
	if decision, err := newsletter.Allow(context.Background(), "client"); err != nil || !decision.Allowed {
		t.Fatalf("newsletter Allow() = %+v, %v; want allowed", decision, err)
	}
}

func TestRedisRateLimiterRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisRateLimiter(nil, "donations", 1, time.Minute); err == nil {
		t.Fatal("expected error for nil client")
	}

	rdb := newTestRedisClient(t)
	if _, err := NewRedisRateLimiter(rdb, " ", 1, time.Minute); err == nil {
		t.Fatal("expected error for empty scope")
	}

	limiter, err := NewRedisRateLimiter(rdb, "donations", 1, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisRateLimiter() error = %v", err)
	}
	if _, err := limiter.Allow(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb
}

func TestNewRedisPingsServer(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := NewRedis("redis://" + server.Addr() + "/0")
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	defer client.Close()

	opts := client.Options()
	if opts.ReadTimeout != commandTimeout || opts.DialTimeout != dialTimeout {
		t.Fatalf("timeouts = read %v dial %v, want %v and %v", opts.ReadTimeout, opts.DialTimeout, commandTimeout, dialTimeout)
	}

	explicit, err := NewRedis("redis://" + server.Addr() + "/0?read_timeout=3s")
	if err != nil {
		t.Fatalf("NewRedis() with explicit timeout error = %v", err)
	}
	defer explicit.Close()
	if explicit.Options().ReadTimeout != 3*time.Second {
		t.Fatalf("read timeout = %v, want 3s from the url", explicit.Options().ReadTimeout)
	}

	server.Close()
	if _, err := NewRedis("redis://" + server.Addr() + "/0"); err == nil {
		t.Fatal("expected ping failure once the server is gone")
	}
}
