package concurrency

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultTTL = 2 * time.Minute

var acquireScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local current = tonumber(redis.call('GET', key) or '0')
if current < limit then
  current = redis.call('INCR', key)
  if ttl > 0 then
    redis.call('PEXPIRE', key, ttl)
  end
  return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
local key = KEYS[1]
local current = tonumber(redis.call('GET', key) or '0')
if current <= 0 then
  redis.call('DEL', key)
  return 0
end
return redis.call('DECR', key)
`)

// Limiter caps in-flight originations per network family using a Redis
// counter shared by every worker. The TTL bounds how long a crashed worker
// can hold slots.
type Limiter struct {
	client *redis.Client
	limit  int
	ttl    time.Duration
}

// NewLimiter constructs a limiter. A non-positive limit disables it.
func NewLimiter(client *redis.Client, limit int, ttl time.Duration) *Limiter {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Limiter{client: client, limit: limit, ttl: ttl}
}

// Enabled reports whether the limiter restricts anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.limit > 0
}

// Acquire attempts to reserve a dial slot for family.
func (l *Limiter) Acquire(ctx context.Context, family string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	res, err := acquireScript.Run(ctx, l.client, []string{Key(family)}, l.limit, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("concurrency acquire: %w", err)
	}
	return res == 1, nil
}

// Release frees a previously acquired slot.
func (l *Limiter) Release(ctx context.Context, family string) error {
	if !l.Enabled() {
		return nil
	}
	if _, err := releaseScript.Run(ctx, l.client, []string{Key(family)}).Int(); err != nil {
		return fmt.Errorf("concurrency release: %w", err)
	}
	return nil
}

// Key is the Redis counter for family.
func Key(family string) string {
	return fmt.Sprintf("bridge:dial:%s:inflight", family)
}
