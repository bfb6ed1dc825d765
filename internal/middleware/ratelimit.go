package middleware

import (
	"net/http"
	"sync"

	"zynexhub/internal/apierr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// maxLimiters bounds the number of callers tracked at once; the least
// recently seen caller's bucket is evicted first.
const maxLimiters = 10000

type RateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	r        rate.Limit
	b        int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	// size is a positive constant, New cannot fail
	l, _ := lru.New[string, *rate.Limiter](maxLimiters)
	return &RateLimiter{limiters: l, r: rate.Limit(rps), b: burst}
}

func (l *RateLimiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters.Get(key)
	if !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.limiters.Add(key, limiter)
	}
	return limiter
}

// Middleware limits per authenticated caller, falling back to the client IP.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if caller := CurrentCaller(c); caller.ID != uuid.Nil {
			key = "user:" + caller.ID.String()
		}

		if !l.getLimiter(key).Allow() {
			apierr.Abort(c, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
			return
		}
		c.Next()
	}
}
