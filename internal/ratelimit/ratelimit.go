package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config represents rate limiting configuration
type Config struct {
	RequestsPerSecond int
	Burst             int
	WhitelistedIPs    []string
	IdleTTL           time.Duration
}

// RateLimiter limits API requests per client
type RateLimiter struct {
	config    Config
	whitelist map[string]bool
	visitors  map[string]*visitor
	mu        sync.Mutex
	logger    zerolog.Logger
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config Config) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 10
	}
	if config.Burst <= 0 {
		config.Burst = config.RequestsPerSecond * 2
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = time.Hour
	}

	whitelist := make(map[string]bool, len(config.WhitelistedIPs))
	for _, ip := range config.WhitelistedIPs {
		whitelist[ip] = true
	}

	return &RateLimiter{
		config:    config,
		whitelist: whitelist,
		visitors:  make(map[string]*visitor),
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
}

// SetLogger sets the logger
func (rl *RateLimiter) SetLogger(logger zerolog.Logger) {
	rl.logger = logger.With().Str("component", "ratelimit").Logger()
}

// Middleware creates a rate limiting middleware
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if rl.whitelist[ip] {
			c.Next()
			return
		}

		key := ip
		if subject := c.GetString("subject"); subject != "" {
			key = "subject:" + subject
		}

		limiter := rl.getLimiter(key)
		if !limiter.Allow() {
			rl.logger.Warn().Str("client", key).Msg("Rate limit exceeded")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerSecond))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
		c.Next()
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = rl.now()
	return v.limiter
}

// Cleanup drops clients idle for longer than the configured TTL
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, v := range rl.visitors {
		if rl.now().Sub(v.lastSeen) > rl.config.IdleTTL {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// Run periodically cleans up idle clients until ctx is done
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.config.IdleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := rl.Cleanup(); n > 0 {
				rl.logger.Debug().Int("removed", n).Msg("Dropped idle clients")
			}
		case <-ctx.Done():
			return
		}
	}
}
