package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// IPRateLimiter implements per-IP rate limiting using a token bucket.
type IPRateLimiter struct {
	limits map[string]*tokenBucket
	mu     sync.Mutex
	rate   time.Duration
	burst  int
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
	capacity   float64
}

func newIPRateLimiter(rate time.Duration, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limits: make(map[string]*tokenBucket),
		rate:   rate,
		burst:  burst,
	}
}

func (l *IPRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket, exists := l.limits[ip]
	if !exists {
		// The admitting request consumes the first token.
		bucket = &tokenBucket{
			tokens:     float64(l.burst) - 1,
			lastRefill: now,
			capacity:   float64(l.burst),
		}
		l.limits[ip] = bucket
		return true
	}

	elapsed := now.Sub(bucket.lastRefill)
	refills := elapsed.Nanoseconds() / l.rate.Nanoseconds()
	if refills > 0 {
		bucket.tokens = min(bucket.capacity, bucket.tokens+float64(refills))
		bucket.lastRefill = now
	}

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true
	}
	return false
}

func rateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"message":     "Too many requests. Please try again later.",
				"retry_after": limiter.rate.String(),
			})
			return
		}
		c.Next()
	}
}

// bodyLimitMiddleware limits the size of request bodies.
func bodyLimitMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":    "request body too large",
				"message":  "Request body exceeds maximum allowed size.",
				"max_size": maxSize,
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
