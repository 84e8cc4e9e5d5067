package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/fossbin/propease/internal/logger"
)

// RateLimiter applies a token bucket per client. Clients are keyed by actor
// id when present, otherwise by IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	rate     rate.Limit
	burst    int
	log      *logger.Logger
	now      func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerSecond with the given burst.
func NewRateLimiter(requestsPerSecond float64, burst int, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.Nop()
	}
	return &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		log:      log,
		now:      time.Now,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, exists := rl.limiters[key]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastSeen = rl.now()
	return cl.limiter
}

// Handler returns the gin middleware.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if actor, ok := GetActor(c); ok {
			key = "actor:" + actor.ID
		}

		if !rl.getLimiter(key).Allow() {
			rl.log.Warn("Rate limit exceeded", logger.Fields{
				"key":        key,
				"path":       c.Request.URL.Path,
				"method":     c.Request.Method,
				"request_id": GetRequestID(c),
			})
			retry := 1
			if rl.rate > 0 {
				retry = int(math.Ceil(1 / float64(rl.rate)))
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			abortWithError(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		c.Next()
	}
}

// Cleanup drops limiters idle for longer than idle.
func (rl *RateLimiter) Cleanup(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idle)
	removed := 0
	for key, cl := range rl.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := rl.Cleanup(interval); n > 0 {
				rl.log.Debug("Dropped idle rate limiters", logger.Fields{"count": n})
			}
		}
	}
}
