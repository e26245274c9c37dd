package middleware

import (
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"

	"competitor-knowledge/internal/shared/server/respond"
)

// Rate limit groups used by the API router.
const (
	defaultRateLimitGroup = "DEFAULT"
	RateLimitGroupAnalyze = "ANALYZE"
)

// rateLimitKeys bounds how many client buckets are tracked; idle clients are evicted first.
const rateLimitKeys = 10000

// RateLimitRule is a token bucket: Rate tokens per second up to Burst.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

// RateLimitConfig maps request groups to rules. Requests in a group without a rule pass through.
type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

// RateLimiter holds token buckets keyed by client and group.
type RateLimiter struct {
	mu      sync.Mutex
	buckets *lru.Cache[string, *rateBucket]
	now     func() time.Time
}

type rateBucket struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter builds a limiter; now defaults to time.Now.
func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	buckets, _ := lru.New[string, *rateBucket](rateLimitKeys)
	return &RateLimiter{buckets: buckets, now: now}
}

// RateLimit rejects requests over their group's budget with 429 rate_limited.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok {
			c.Next()
			return
		}
		allowed, wait := cfg.Limiter.Allow(c.ClientIP()+"|"+group, rule)
		if allowed {
			c.Next()
			return
		}
		if wait <= 0 {
			wait = time.Second
		}
		respond.TooManyRequests(c, wait, "too many analysis requests", gin.H{
			"group":        group,
			"retryAfterMs": wait.Milliseconds(),
		})
	}
}

// AnalyzeGroup classifies requests that start pipeline runs.
func AnalyzeGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return defaultRateLimitGroup
	}
	switch c.FullPath() {
	case "/api/v1/products/:id/analyses",
		"/api/v1/products/:id/analyses/sync",
		"/api/v1/products/:id/reanalyze",
		"/api/v1/analyses/:id/retry":
		return RateLimitGroupAnalyze
	}
	return defaultRateLimitGroup
}

// Allow takes one token from key's bucket. When empty it reports how long until a token is available.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets.Get(key)
	if !ok {
		bucket = &rateBucket{tokens: float64(rule.Burst), last: now}
		l.buckets.Add(key, bucket)
	}
	if elapsed := now.Sub(bucket.last).Seconds(); elapsed > 0 {
		bucket.tokens = math.Min(float64(rule.Burst), bucket.tokens+elapsed*rule.Rate)
		bucket.last = now
	}
	if bucket.tokens >= 1 {
		bucket.tokens--
		return true, 0
	}
	waitSec := (1 - bucket.tokens) / rule.Rate
	return false, time.Duration(math.Ceil(waitSec*1000)) * time.Millisecond
}
