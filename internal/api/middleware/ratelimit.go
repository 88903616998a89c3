package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LimiterConfig bounds request volume per key over a sliding window.
type LimiterConfig struct {
	Requests int
	Window   time.Duration
}

func (c LimiterConfig) withDefaults() LimiterConfig {
	if c.Requests <= 0 {
		c.Requests = 100
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	return c
}

// limiter keeps request timestamps per key. Idle keys are swept lazily on
// the next allow call instead of by a background goroutine.
type limiter struct {
	cfg       LimiterConfig
	mu        sync.Mutex
	buckets   map[string][]time.Time
	lastSweep time.Time
}

func newLimiter(cfg LimiterConfig) *limiter {
	return &limiter{
		cfg:       cfg.withDefaults(),
		buckets:   make(map[string][]time.Time),
		lastSweep: time.Now(),
	}
}

type limitResult struct {
	ok        bool
	remaining int
	reset     time.Time
}

func (l *limiter) allow(key string) limitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > l.cfg.Window {
		l.sweep(now)
	}

	cutoff := now.Add(-l.cfg.Window)
	stamps := l.buckets[key]
	for len(stamps) > 0 && !stamps[0].After(cutoff) {
		stamps = stamps[1:]
	}

	if len(stamps) >= l.cfg.Requests {
		l.buckets[key] = stamps
		return limitResult{remaining: 0, reset: stamps[0].Add(l.cfg.Window)}
	}

	stamps = append(stamps, now)
	l.buckets[key] = stamps
	return limitResult{
		ok:        true,
		remaining: l.cfg.Requests - len(stamps),
		reset:     now.Add(l.cfg.Window),
	}
}

func (l *limiter) sweep(now time.Time) {
	idle := now.Add(-2 * l.cfg.Window)
	for key, stamps := range l.buckets {
		if len(stamps) == 0 || stamps[len(stamps)-1].Before(idle) {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// RateLimit throttles requests by client IP.
func RateLimit(requests, windowSeconds int) func(http.Handler) http.Handler {
	l := newLimiter(LimiterConfig{
		Requests: requests,
		Window:   time.Duration(windowSeconds) * time.Second,
	})
	return throttle(l, clientIP)
}

// RateLimitByUser throttles by authenticated principal, falling back to
// the client IP for unauthenticated requests.
func RateLimitByUser(requests, windowSeconds int) func(http.Handler) http.Handler {
	l := newLimiter(LimiterConfig{
		Requests: requests,
		Window:   time.Duration(windowSeconds) * time.Second,
	})
	return throttle(l, func(r *http.Request) string {
		if id := GetUserID(r.Context()); id != uuid.Nil {
			return "user:" + id.String()
		}
		return clientIP(r)
	})
}

func throttle(l *limiter, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.allow(keyFn(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.reset.Unix(), 10))

			if !res.ok {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(res.reset).Seconds())+1, 10))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers proxy headers over the socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
