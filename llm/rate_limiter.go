package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Limiter blocks until a call for key is allowed or ctx ends
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// RateLimiter is an in-process fixed-window limiter
type RateLimiter struct {
	// Map to track request counts by key
	counters     map[string]*RateLimitEntry
	mu           sync.Mutex
	maxRequests  int           // Maximum requests per window
	windowPeriod time.Duration // Time window for rate limiting
}

// RateLimitEntry represents an entry in the rate limit counter
type RateLimitEntry struct {
	Count       int       // Number of requests in current window
	WindowStart time.Time // Start time of current window
}

// NewRateLimiter creates a new rate limiter with the specified configuration
func NewRateLimiter(maxRequests int, windowPeriod time.Duration) *RateLimiter {
	return &RateLimiter{
		counters:     make(map[string]*RateLimitEntry),
		maxRequests:  maxRequests,
		windowPeriod: windowPeriod,
	}
}

// CheckLimit takes a slot for key if one is free. It returns whether the
// caller is limited, the count in the window and when the window resets.
func (r *RateLimiter) CheckLimit(key string) (bool, int, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entry, ok := r.counters[key]

	if !ok || now.Sub(entry.WindowStart) >= r.windowPeriod {
		r.counters[key] = &RateLimitEntry{Count: 1, WindowStart: now}
		return false, 1, now.Add(r.windowPeriod)
	}

	reset := entry.WindowStart.Add(r.windowPeriod)
	if entry.Count >= r.maxRequests {
		return true, entry.Count, reset
	}

	entry.Count++
	return false, entry.Count, reset
}

// Wait blocks until a slot is free in the current or a later window
func (r *RateLimiter) Wait(ctx context.Context, key string) error {
	for {
		limited, _, reset := r.CheckLimit(key)
		if !limited {
			return nil
		}
		if err := sleepUntil(ctx, reset); err != nil {
			return fmt.Errorf("rate limit wait aborted: %w", err)
		}
	}
}

// RedisRateLimiter shares a fixed-window limit across processes using INCR and EXPIRE
type RedisRateLimiter struct {
	client      redis.Cmdable
	closer      func() error
	prefix      string
	maxRequests int
	window      time.Duration
}

// NewRedisRateLimiter creates a distributed limiter on an existing client
func NewRedisRateLimiter(client redis.Cmdable, maxRequests int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:      client,
		prefix:      "dqe:ratelimit:",
		maxRequests: maxRequests,
		window:      window,
	}
}

// DialRedisRateLimiter connects to addr and verifies the connection
func DialRedisRateLimiter(ctx context.Context, addr, password string, db, maxRequests int, window time.Duration) (*RedisRateLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis rate limiter ready", "addr", addr, "max_requests", maxRequests, "window", window)
	limiter := NewRedisRateLimiter(client, maxRequests, window)
	limiter.closer = client.Close
	return limiter, nil
}

// Close releases the client opened by DialRedisRateLimiter
func (r *RedisRateLimiter) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

// CheckLimit counts one call for key and reports whether it exceeds the limit
func (r *RedisRateLimiter) CheckLimit(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := r.prefix + key

	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, r.window).Err(); err != nil {
			return false, 0, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}

	if count <= int64(r.maxRequests) {
		return false, 0, nil
	}

	ttl, err := r.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = r.window
	}
	return true, ttl, nil
}

// Wait blocks until the shared window admits a call
func (r *RedisRateLimiter) Wait(ctx context.Context, key string) error {
	for {
		limited, retryIn, err := r.CheckLimit(ctx, key)
		if err != nil {
			return err
		}
		if !limited {
			return nil
		}
		if err := sleepUntil(ctx, time.Now().Add(retryIn)); err != nil {
			return fmt.Errorf("rate limit wait aborted: %w", err)
		}
	}
}

func sleepUntil(ctx context.Context, t time.Time) error {
	timer := time.NewTimer(time.Until(t))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
