package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters. A zero limit disables that counter.
type Config struct {
	LoginAttemptsPerIP int
	LoginWindow        time.Duration
	CatalogCalls       int
	CatalogWindow      time.Duration
	// KeyPrefix namespaces counter keys, matching the cache key prefix.
	KeyPrefix string
}

// Limiter enforces per-IP login limits and the shared upstream catalog budget
// using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// incrScript counts one hit and starts the window on the first hit. A counter
// found without a TTL is given one, so a key can never outlive its window.
const incrScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

var incrLua = redis.NewScript(incrScript)

func (l *Limiter) loginIPKey(ip string) string {
	return l.config.KeyPrefix + "rl:login:" + ip
}

func (l *Limiter) catalogKey() string {
	return l.config.KeyPrefix + "rl:catalog"
}

// AllowLogin counts one login attempt from ip and reports ErrRateLimited once
// the window budget is exceeded. Attempts without a known IP are not counted.
func (l *Limiter) AllowLogin(ctx context.Context, ip string) error {
	if l == nil || l.config.LoginAttemptsPerIP <= 0 || ip == "" {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.loginIPKey(ip), l.config.LoginWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.LoginAttemptsPerIP) {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the login counter for ip. Called after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, ip string) error {
	if l == nil || ip == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.loginIPKey(ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LoginAttempts returns the current attempt counter for ip.
func (l *Limiter) LoginAttempts(ctx context.Context, ip string) (int, error) {
	count, err := l.redis.Get(ctx, l.loginIPKey(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// AllowCatalogCall spends one unit of the upstream catalog budget.
func (l *Limiter) AllowCatalogCall(ctx context.Context) error {
	if l == nil || l.config.CatalogCalls <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.catalogKey(), l.config.CatalogWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.CatalogCalls) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	count, err := incrLua.Run(ctx, l.redis, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}
