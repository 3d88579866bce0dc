package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/platformbuilds/countgate/pkg/logger"
)

// idle client buckets are dropped after this long
const limiterExpiry = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterStore struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func (s *limiterStore) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) > limiterExpiry {
		for k, cl := range s.clients {
			if now.Sub(cl.lastSeen) > limiterExpiry {
				delete(s.clients, k)
			}
		}
		s.lastSweep = now
	}

	cl, ok := s.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// RateLimiter applies a token bucket per client IP. Each evaluation costs one
// count query against the search engine, so the bucket protects the cluster
// from a misbehaving pipeline.
func RateLimiter(requestsPerMinute, burst int, log logger.Logger) gin.HandlerFunc {
	store := &limiterStore{
		limit:     rate.Limit(float64(requestsPerMinute) / 60),
		burst:     burst,
		clients:   make(map[string]*clientLimiter),
		lastSweep: time.Now(),
	}

	return func(c *gin.Context) {
		now := time.Now()
		limiter := store.get(c.ClientIP(), now)

		c.Header("X-Rate-Limit-Limit", strconv.Itoa(requestsPerMinute))

		if !limiter.AllowN(now, 1) {
			retryAfter := int(math.Ceil(60 / float64(requestsPerMinute)))
			log.Warn("Rate limit exceeded", "client_ip", c.ClientIP(), "path", c.Request.URL.Path)

			c.Header("X-Rate-Limit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:   "Rate limit exceeded",
				Code:    "RATE_LIMITED",
				Details: gin.H{"retry_after": retryAfter},
			})
			return
		}

		c.Header("X-Rate-Limit-Remaining", strconv.Itoa(int(limiter.TokensAt(now))))
		c.Next()
	}
}
