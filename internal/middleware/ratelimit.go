package middleware

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"recycletek/internal/domain"
)

// InMemoryRateLimiter is a sliding-window counter per key (route + user, or client IP).
type InMemoryRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func NewInMemoryRateLimiter(limit int, window time.Duration) *InMemoryRateLimiter {
	r := &InMemoryRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go r.cleanup()
	return r
}

func (r *InMemoryRateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	valid := r.live(r.requests[key], now.Add(-r.window))
	if len(valid) >= r.limit {
		r.requests[key] = valid
		return false
	}
	r.requests[key] = append(valid, now)
	return true
}

// Stop ends the background cleanup goroutine.
func (r *InMemoryRateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *InMemoryRateLimiter) live(times []time.Time, cutoff time.Time) []time.Time {
	var valid []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}

func (r *InMemoryRateLimiter) cleanup() {
	tick := time.NewTicker(time.Minute)
	defer tick.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-tick.C:
		}
		r.mu.Lock()
		cutoff := r.now().Add(-r.window)
		for k, times := range r.requests {
			if valid := r.live(times, cutoff); len(valid) == 0 {
				delete(r.requests, k)
			} else {
				r.requests[k] = valid
			}
		}
		r.mu.Unlock()
	}
}

// RateLimitByIP is the coarse global guard keyed by client IP.
func RateLimitByIP(limiter *InMemoryRateLimiter, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if !limiter.Allow(key) {
			log.Warn("rate limited", "key", key, "path", c.FullPath())
			abortWithError(c, domain.ErrRateLimited)
			return
		}
		c.Next()
	}
}

// RateLimitByUser throttles per route and resolved user. It must run after Identify or KioskOnly.
func RateLimitByUser(limiter *InMemoryRateLimiter, route string, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := route + ":" + c.ClientIP()
		if u, ok := CurrentUser(c); ok {
			key = route + ":" + strconv.FormatUint(uint64(u.ID), 10)
		}
		if !limiter.Allow(key) {
			log.Warn("rate limited", "key", key)
			abortWithError(c, domain.ErrRateLimited)
			return
		}
		c.Next()
	}
}
