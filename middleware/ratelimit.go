package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"genkey/internal/httputil"
)

type RateLimitConfig struct {
	MaxRequests        int
	Window             time.Duration
	MaxEntries         int
	TrustProxy         bool
	ExemptPaths        []string
	ExemptPathPrefixes []string
}

type rateLimiterEntry struct {
	count   int
	resetAt time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	config  RateLimitConfig
	entries map[string]rateLimiterEntry
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxRequests: 60, Window: time.Minute, MaxEntries: 10_000}
}

// RateLimit applies a fixed window per client IP. Rejected requests get
// 429 and a Retry-After header.
func RateLimit(config RateLimitConfig) func(http.Handler) http.Handler {
	limiter := &rateLimiter{config: config, entries: make(map[string]rateLimiterEntry)}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || shouldSkipRateLimit(r, config) {
				next.ServeHTTP(w, r)
				return
			}
			allowed, retryAfter := limiter.allow(time.Now(), httputil.ClientIP(r, config.TrustProxy))
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func shouldSkipRateLimit(r *http.Request, config RateLimitConfig) bool {
	path := r.URL.Path
	for _, exempt := range config.ExemptPaths {
		if path == exempt {
			return true
		}
	}
	for _, prefix := range config.ExemptPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (l *rateLimiter) allow(now time.Time, key string) (bool, int) {
	if key == "" {
		return true, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.entries[key]
	if entry.resetAt.IsZero() || !now.Before(entry.resetAt) {
		entry = rateLimiterEntry{count: 0, resetAt: now.Add(l.config.Window)}
	}
	entry.count++
	l.entries[key] = entry
	l.prune(now, key)
	if entry.count <= l.config.MaxRequests {
		return true, 0
	}
	retryAfterSeconds := int(math.Ceil(entry.resetAt.Sub(now).Seconds()))
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	return false, retryAfterSeconds
}

// prune drops expired windows, then the oldest ones above MaxEntries.
// The keep entry is never dropped.
func (l *rateLimiter) prune(now time.Time, keep string) {
	for key, entry := range l.entries {
		if key != keep && !now.Before(entry.resetAt) {
			delete(l.entries, key)
		}
	}
	if l.config.MaxEntries <= 0 {
		return
	}
	for len(l.entries) > l.config.MaxEntries {
		var oldestKey string
		var oldestResetAt time.Time
		for key, entry := range l.entries {
			if key == keep {
				continue
			}
			if oldestKey == "" || entry.resetAt.Before(oldestResetAt) {
				oldestKey = key
				oldestResetAt = entry.resetAt
			}
		}
		if oldestKey == "" {
			return
		}
		delete(l.entries, oldestKey)
	}
}
