// Package redis holds Redis-backed adapters.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"bawabamail/internal/domain"
)

// incrWindow increments KEYS[1] and sets its expiry to ARGV[1] milliseconds when the key is
// new or has lost its TTL. Running both in one script keeps a key from outliving its window.
const incrWindow = `
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) == -1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`

// counter is the subset of the Redis client used by the limiter.
type counter interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *goredis.Cmd
}

type fixedWindowLimiter struct {
	client counter
	limit  int64
	window time.Duration
	prefix string
}

// NewFixedWindowLimiter allows limit calls per key in each window.
func NewFixedWindowLimiter(client counter, limit int, window time.Duration, prefix string) domain.RateLimiter {
	return &fixedWindowLimiter{client: client, limit: int64(limit), window: window, prefix: prefix}
}

// NewClient parses a redis:// URL into a client.
func NewClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return goredis.NewClient(opts), nil
}

func (l *fixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.client.Eval(ctx, incrWindow, []string{l.prefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("increment rate limit key: %w", err)
	}
	return count <= l.limit, nil
}

type allowAll struct{}

// NewAllowAll returns a limiter that never limits. Used when Redis is not configured.
func NewAllowAll() domain.RateLimiter {
	return allowAll{}
}

func (allowAll) Allow(context.Context, string) (bool, error) {
	return true, nil
}
