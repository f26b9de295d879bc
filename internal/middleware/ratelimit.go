package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sudo-adi/bs-server-sub001/pkg/logger"
	"github.com/sudo-adi/bs-server-sub001/pkg/response"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL      = 5 * time.Minute
	limiterSweepEvery   = 3 * time.Minute
	rateLimitedResponse = "too many requests, please try again later"
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles batch endpoints per caller. Callers are told apart by
// the authenticated actor; anonymous requests share a bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	rps     rate.Limit
	burst   int
}

// NewRateLimiter allows rps requests per second per caller with the given
// burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*clientBucket),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
	go rl.sweep()
	return rl
}

// callerKey must run after ActorIdentity so the actor is known.
func callerKey(c *gin.Context) string {
	if actor := GetActorID(c); actor != "" {
		return "actor:" + actor
	}
	return "ip:" + c.ClientIP()
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = time.Now()
	rl.mu.Unlock()

	return b.limiter.Allow()
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		for key, b := range rl.buckets {
			if time.Since(b.lastSeen) > limiterIdleTTL {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(callerKey(c)) {
			logRateLimited(c)
			response.TooManyRequests(c, rateLimitedResponse)
			c.Abort()
			return
		}
		c.Next()
	}
}

func logRateLimited(c *gin.Context) {
	l := logger.FromGin(c)
	l.Warn().
		Str("caller", callerKey(c)).
		Str("path", c.FullPath()).
		Msg("Rate limit exceeded")
}
