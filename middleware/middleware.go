package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const logKey = "log"

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// ErrorHandler turns errors attached with c.Error into a generic 500 in the
// request's format.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		Logger(c).WithError(err.Err).Error("request failed")

		if c.Writer.Written() {
			return
		}

		if WantsJSON(c) {
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "Internal server error",
				Message: "An unexpected error occurred",
				Code:    http.StatusInternalServerError,
			})
			return
		}
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8",
			[]byte("<!DOCTYPE html><html><body><h1>We're sorry, but something went wrong.</h1></body></html>"))
	}
}

// RateLimiter hands out one token bucket per key (client IP).
type RateLimiter struct {
	limiters    map[string]*limiterEntry
	mutex       sync.Mutex
	rate        rate.Limit
	burst       int
	idleTimeout time.Duration
	lastSweep   time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerMinute int, burst int) *RateLimiter {
	return &RateLimiter{
		limiters:    make(map[string]*limiterEntry),
		rate:        rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:       burst,
		idleTimeout: 10 * time.Minute,
		lastSweep:   time.Now(),
	}
}

// GetLimiter returns the rate limiter for a given key (IP address)
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > rl.idleTimeout {
		rl.sweep(now)
	}

	entry, exists := rl.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now

	return entry.limiter
}

// sweep drops limiters idle for longer than idleTimeout. Caller holds the mutex.
func (rl *RateLimiter) sweep(now time.Time) {
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > rl.idleTimeout {
			delete(rl.limiters, key)
		}
	}
	rl.lastSweep = now
}

// RateLimit middleware
func RateLimit(requestsPerMinute int, burst int) gin.HandlerFunc {
	rateLimiter := NewRateLimiter(requestsPerMinute, burst)

	return func(c *gin.Context) {
		limiter := rateLimiter.GetLimiter(c.ClientIP())
		reset := strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10)

		if !limiter.Allow() {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", reset)

			msg := fmt.Sprintf("Too many requests. Limit: %d requests per minute", requestsPerMinute)
			if WantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
					Error:   "Rate limit exceeded",
					Message: msg,
					Code:    http.StatusTooManyRequests,
				})
				return
			}
			c.Data(http.StatusTooManyRequests, "text/plain; charset=utf-8", []byte(msg))
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
		c.Header("X-RateLimit-Reset", reset)

		c.Next()
	}
}

// RequestLogger logs one entry per request and stores a request-scoped entry
// on the context for handlers (see Logger).
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.NewString()
		c.Header("X-Request-ID", requestID)

		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		entry := log.WithFields(logrus.Fields{
			"http.req.path":   path,
			"http.req.method": c.Request.Method,
			"http.req.id":     requestID,
			"client_ip":       c.ClientIP(),
		})
		c.Set(logKey, entry)

		c.Next()

		entry = entry.WithFields(logrus.Fields{
			"http.resp.status":  c.Writer.Status(),
			"http.resp.took_ms": int64(time.Since(start) / time.Millisecond),
			"http.resp.bytes":   c.Writer.Size(),
		})
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("request complete")
		case status >= 400:
			entry.Warn("request complete")
		default:
			entry.Info("request complete")
		}
	}
}

// Logger returns the request-scoped log entry, or a standard one outside
// RequestLogger.
func Logger(c *gin.Context) logrus.FieldLogger {
	if v, ok := c.Get(logKey); ok {
		if entry, ok := v.(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.StandardLogger()
}

// SecurityHeaders middleware adds security headers
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Next()
	}
}
