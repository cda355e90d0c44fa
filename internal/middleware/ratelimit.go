package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// TokenRateLimiter keeps one token bucket per identity token so a single
// chatty visitor cannot flood the room for everyone else.
type TokenRateLimiter struct {
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	Cancel   context.CancelFunc
}

// NewTokenRateLimiter allows `requests` sends per `window` per identity.
// Idle buckets are dropped after ttl.
func NewTokenRateLimiter(requests int, window time.Duration, ttl time.Duration) *TokenRateLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	rl := &TokenRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     rate.Every(window / time.Duration(requests)),
		burst:    requests,
		ttl:      ttl,
		Cancel:   cancel,
	}

	go rl.cleanup(ctx)

	return rl
}

func (rl *TokenRateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			for token, ls := range rl.lastSeen {
				if time.Since(ls) > rl.ttl {
					delete(rl.limiters, token)
					delete(rl.lastSeen, token)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Allow reports whether the identity token may send now.
func (rl *TokenRateLimiter) Allow(token string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[token]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[token] = limiter
	}
	rl.lastSeen[token] = time.Now()
	return limiter.Allow()
}

// Middleware rejects over-limit senders with 429. It must run after the
// identity middleware.
func (rl *TokenRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := IdentityFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
			return
		}
		if !rl.Allow(ident.Token) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many messages"})
			return
		}
		c.Next()
	}
}
