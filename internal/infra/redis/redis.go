package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	pingTimeout = 5 * time.Second

	// Redis only backs the donation rate limiter, which lets requests
	// through when Redis is slow, so command timeouts stay short.
	commandTimeout = 500 * time.Millisecond
	dialTimeout    = 2 * time.Second
)

// NewRedis connects to url and verifies the server answers PING. Timeouts
// set in the URL win over the defaults.
func NewRedis(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	applyDefaultTimeouts(opts)

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis at %s did not answer ping: %w", opts.Addr, err)
	}

	return client, nil
}

func applyDefaultTimeouts(opts *goredis.Options) {
	if opts.DialTimeout == 0 {
		opts.DialTimeout = dialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = commandTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = commandTimeout
	}
}
