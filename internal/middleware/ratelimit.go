package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ngtsab/memberdir/pkg/errors"
	"github.com/ngtsab/memberdir/pkg/response"
)

// RateLimitConfig controls a fixed-window limiter keyed by client IP.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	cfg     RateLimitConfig
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		windows: make(map[string]*rateWindow),
		cfg:     cfg,
	}
}

func (l *rateLimiter) allow(key string, now time.Time) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(l.cfg.Window)}
		l.windows[key] = w
	}

	if w.count >= l.cfg.Requests {
		return false, w.resetAt
	}
	w.count++
	return true, w.resetAt
}

// sweep drops expired windows so the map does not grow unbounded.
func (l *rateLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

// RateLimit returns a per-IP fixed-window rate limiting middleware. It is intended
// for the unauthenticated endpoints that can be probed for account existence.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Requests <= 0 {
		cfg.Requests = 30
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	limiter := newRateLimiter(cfg)

	go func() {
		ticker := time.NewTicker(cfg.Window)
		defer ticker.Stop()
		for now := range ticker.C {
			limiter.sweep(now)
		}
	}()

	return func(c *gin.Context) {
		now := time.Now()
		ok, resetAt := limiter.allow(c.ClientIP(), now)

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
		if !ok {
			retry := int(time.Until(resetAt).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retry))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}
