package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds login throttle parameters.
type Config struct {
	KeyPrefix             string
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	EnableIPThrottle      bool
}

// Limiter counts failed logins per email and, optionally, per client IP.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New returns a limiter. A nil client or MaxLoginAttempts <= 0 yields a limiter that
// allows every attempt.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "st"
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// Enabled reports whether the limiter enforces anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.redis != nil && l.config.MaxLoginAttempts > 0
}

// CheckLogin returns ErrRateLimited when email or ip already exhausted the budget.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if !l.Enabled() {
		return nil
	}
	for _, key := range l.keys(email, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count >= int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// RecordFailure counts one failed attempt. The window starts at the first failure.
func (l *Limiter) RecordFailure(ctx context.Context, email, ip string) error {
	if !l.Enabled() {
		return nil
	}
	for _, key := range l.keys(email, ip) {
		count, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count == 1 {
			if err := l.redis.Expire(ctx, key, l.config.LoginCooldownDuration).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
	}
	return nil
}

// Reset clears the counters after a successful login.
func (l *Limiter) Reset(ctx context.Context, email, ip string) error {
	if !l.Enabled() {
		return nil
	}
	if err := l.redis.Del(ctx, l.keys(email, ip)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current failure count for email. Missing keys count as zero.
func (l *Limiter) Attempts(ctx context.Context, email string) (int, error) {
	if !l.Enabled() {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, l.emailKey(email)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

func (l *Limiter) keys(email, ip string) []string {
	keys := []string{l.emailKey(email)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, l.config.KeyPrefix+":login:ip:"+ip)
	}
	return keys
}

func (l *Limiter) emailKey(email string) string {
	return l.config.KeyPrefix + ":login:email:" + strings.ToLower(email)
}
