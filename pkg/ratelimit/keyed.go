package ratelimit

import (
	"context"
	"sync"
	"time"

	"cronjobs/internal/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

type Config struct {
	// PerMinute is both the refill rate and the burst of every key.
	PerMinute       int
	ExpireDuration  time.Duration
	CleanupDuration time.Duration
}

// KeyedRateLimiter keeps one token bucket per key. Idle buckets are dropped
// by the cleanup goroutine.
type KeyedRateLimiter struct {
	cfg      Config
	log      *logrus.Logger
	limiters map[string]*limiterEntry
	now      func() time.Time
	mu       sync.Mutex
	wg       sync.WaitGroup
}

func NewKeyedRateLimiter(cfg Config, log *logrus.Logger) *KeyedRateLimiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 1
	}
	if cfg.ExpireDuration <= 0 {
		cfg.ExpireDuration = 30 * time.Minute
	}
	if cfg.CleanupDuration <= 0 {
		cfg.CleanupDuration = 5 * time.Minute
	}
	return &KeyedRateLimiter{
		cfg:      cfg,
		log:      log,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

// Allow reports whether one more event for key fits in its bucket now.
func (r *KeyedRateLimiter) Allow(key string) bool {
	entry := r.getLimiter(key)
	return entry.limiter.AllowN(r.now(), 1)
}

func (r *KeyedRateLimiter) getLimiter(key string) *limiterEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.limiters[key]; exists {
		entry.lastAccess = r.now()
		return entry
	}

	every := rate.Every(time.Minute / time.Duration(r.cfg.PerMinute))
	r.limiters[key] = &limiterEntry{
		limiter:    rate.NewLimiter(every, r.cfg.PerMinute),
		lastAccess: r.now(),
	}
	return r.limiters[key]
}

// Len is the number of tracked keys.
func (r *KeyedRateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

func (r *KeyedRateLimiter) cleanupExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, entry := range r.limiters {
		if now.Sub(entry.lastAccess) > r.cfg.ExpireDuration {
			delete(r.limiters, key)
		}
	}
}

func (r *KeyedRateLimiter) StartCleanupExpired(ctx context.Context) {
	r.wg.Add(1)
	utils.SafeGo(func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.CleanupDuration)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.log.Info("Received signal to stop rate limiter cleanup expired")
				return
			case <-ticker.C:
				r.cleanupExpired()
			}
		}
	})
}

func (r *KeyedRateLimiter) StopCleanupExpired() {
	r.wg.Wait()
	r.log.Info("Rate limiter stopped")
}
