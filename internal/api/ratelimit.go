package api

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/FocuswithJustin/termdoc/internal/config"
)

// tokenBucket implements a token bucket rate limiter.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

func newTokenBucket(capacity, refillRate float64, now time.Time) *tokenBucket {
	return &tokenBucket{tokens: capacity, capacity: capacity, refillRate: refillRate, last: now}
}

func (tb *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.last).Seconds()
	tb.tokens = math.Min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
	tb.last = now
}

// take consumes a token if one is available. It also returns the tokens
// left and how long until the bucket is full again.
func (tb *tokenBucket) take(now time.Time) (ok bool, remaining int, untilFull time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill(now)
	if tb.tokens >= 1 {
		tb.tokens--
		ok = true
	}
	if tb.refillRate > 0 {
		untilFull = time.Duration((tb.capacity - tb.tokens) / tb.refillRate * float64(time.Second))
	}
	return ok, int(tb.tokens), untilFull
}

func (tb *tokenBucket) idleSince(now time.Time) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return now.Sub(tb.last)
}

// RateLimiter manages per-IP rate limiting.
type RateLimiter struct {
	cfg        config.RateConfig
	mu         sync.Mutex
	buckets    map[string]*tokenBucket
	cleanupTTL time.Duration
	now        func() time.Time
}

// NewRateLimiter creates a rate limiter. A zero Burst defaults to 10.
func NewRateLimiter(cfg config.RateConfig) *RateLimiter {
	if cfg.Burst == 0 {
		cfg.Burst = 10
	}
	return &RateLimiter{
		cfg:        cfg,
		buckets:    make(map[string]*tokenBucket),
		cleanupTTL: 5 * time.Minute,
		now:        time.Now,
	}
}

func (rl *RateLimiter) bucket(ip string) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = newTokenBucket(float64(rl.cfg.Burst), float64(rl.cfg.RequestsPerMinute)/60, rl.now())
		rl.buckets[ip] = b
	}
	return b
}

// Allow reports whether a request from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	ok, _, _ := rl.bucket(ip).take(rl.now())
	return ok
}

// Sweep removes buckets idle for longer than the cleanup TTL.
func (rl *RateLimiter) Sweep() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if b.idleSince(now) > rl.cleanupTTL {
			delete(rl.buckets, ip)
		}
	}
}

// Run sweeps idle buckets every minute until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

// Middleware returns an HTTP middleware that applies rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, remaining, untilFull := rl.bucket(getClientIP(r)).take(rl.now())

		w.Header().Set("X-RateLimit-Limit", fmt.Sprint(rl.cfg.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprint(remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(rl.now().Add(untilFull).Unix()))

		if !ok {
			retryAfter := int(untilFull.Seconds()) + 1
			w.Header().Set("Retry-After", fmt.Sprint(retryAfter))
			respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP address from the request, preferring
// a valid leftmost X-Forwarded-For entry, then X-Real-IP, then RemoteAddr.
func getClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) != nil {
		return ip
	}
	return "unknown"
}
