package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per key and forgets idle keys.
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	maxAge time.Duration

	mu    sync.Mutex
	store map[string]*limiterEntry
	now   func() time.Time
}

type limiterEntry struct {
	limiter *rate.Limiter
	updated time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:  rate.Limit(perSecond),
		burst:  burst,
		maxAge: 10 * time.Minute,
		store:  make(map[string]*limiterEntry),
		now:    time.Now,
	}
}

// Allow consumes one token for key.
func (r *RateLimiter) Allow(key string) bool {
	now := r.now()

	r.mu.Lock()
	entry, ok := r.store[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst), updated: now}
		r.store[key] = entry
		for k, e := range r.store {
			if now.Sub(e.updated) > r.maxAge {
				delete(r.store, k)
			}
		}
	}
	entry.updated = now
	r.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// VoteRateLimit throttles votes per authenticated user, falling back to the
// client IP for anonymous requests.
func VoteRateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID := c.GetInt(UserIDKey); userID != 0 {
			key = "user:" + strconv.Itoa(userID)
		}
		if !limiter.Allow(key) {
			abortTooManyRequests(c)
			return
		}
		c.Next()
	}
}
