package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kursadbilgin/activity-batch-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 50
	backoffStep              = 10 * time.Millisecond
	backoffMax               = 50 * time.Millisecond
	windowSeconds            = 1
	keyPrefix                = "activity-batch-engine:ratelimit"
)

// INCR the window counter, set its TTL on first use, answer 1 while under the limit.
var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// Limits holds the per-second quota of each collaborator. Collaborators
// without an override share Default.
type Limits struct {
	Default         int64
	PerCollaborator map[string]int64
}

// ParseLimits reads overrides written as "content-catalog=100,org-directory=20".
func ParseLimits(defaultPerSec int, overrides string) (Limits, error) {
	limits := Limits{Default: int64(defaultPerSec), PerCollaborator: map[string]int64{}}
	for _, pair := range strings.Split(overrides, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		name = collaboratorKey(name)
		if !ok || name == "" {
			return Limits{}, fmt.Errorf("rate limit override %q must be name=limit", pair)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || n <= 0 {
			return Limits{}, fmt.Errorf("rate limit override %q must be a positive integer", pair)
		}
		limits.PerCollaborator[name] = n
	}
	return limits, nil
}

func (l Limits) limitFor(name string) int64 {
	if n, ok := l.PerCollaborator[name]; ok && n > 0 {
		return n
	}
	if l.Default > 0 {
		return l.Default
	}
	return defaultLimitPerSec
}

// RedisRateLimiter is a fixed one-second window counter per collaborator,
// shared by every engine instance pointing at the same Redis.
type RedisRateLimiter struct {
	client *goredis.Client
	limits Limits
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRedisRateLimiter(client *goredis.Client, limits Limits) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, limits, time.Now, sleepWithContext)
}

func newRedisRateLimiter(
	client *goredis.Client,
	limits Limits,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{client: client, limits: limits, now: nowFn, sleep: sleepFn}, nil
}

// Allow takes one slot from the collaborator's current window if any is left.
func (r *RedisRateLimiter) Allow(ctx context.Context, collaborator string) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}
	name := collaboratorKey(collaborator)
	if name == "" {
		return false, fmt.Errorf("collaborator is required")
	}

	window := r.now().UTC().Unix()
	key := fmt.Sprintf("%s:%s:%d", keyPrefix, name, window)
	result, err := allowScript.Run(ctx, r.client, []string{key}, r.limits.limitFor(name), windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit for %s: %w", name, err)
	}

	return result == 1, nil
}

// Wait polls Allow with a growing backoff until a slot frees up or ctx ends.
func (r *RedisRateLimiter) Wait(ctx context.Context, collaborator string) error {
	backoff := backoffStep
	for {
		allowed, err := r.Allow(ctx, collaborator)
		if err != nil || allowed {
			return err
		}

		if err := r.sleep(ctx, backoff); err != nil {
			return fmt.Errorf("rate limit wait for %s: %w", collaboratorKey(collaborator), err)
		}
		backoff = min(backoff+backoffStep, backoffMax)
	}
}

func collaboratorKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
