package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter applies a per-client-IP token bucket. It protects the login
// endpoints: every hit on /auth/*/login allocates an OAuth state in
// memory, so an unthrottled client could grow the state store faster than
// the sweep drains it.
//
// Relies on chi's RealIP middleware running earlier so RemoteAddr holds
// the real client address behind a proxy.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	rate     rate.Limit
	burst    int
	logger   *slog.Logger
	lastSeen time.Duration
}

type clientLimiter struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewRateLimiter allows r events per second with the given burst, per
// client IP. Idle clients are evicted lazily after an hour.
func NewRateLimiter(r rate.Limit, burst int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		clients:  make(map[string]*clientLimiter),
		rate:     r,
		burst:    burst,
		logger:   logger,
		lastSeen: time.Hour,
	}
}

// Handler wraps next with the rate limit, answering 429 when exceeded.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.RemoteAddr) {
			rl.logger.Warn("rate limit exceeded",
				slog.String("ip", r.RemoteAddr),
				slog.String("path", r.URL.Path),
			)
			http.Error(w, `{"error":"rate_limited","message":"too many requests"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, ok := rl.clients[ip]
	if !ok {
		// Piggyback eviction on new-client registration instead of a
		// dedicated sweeper; the map stays small either way.
		for addr, cl := range rl.clients {
			if now.Sub(cl.seen) > rl.lastSeen {
				delete(rl.clients, addr)
			}
		}
		c = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[ip] = c
	}
	c.seen = now
	return c.limiter.Allow()
}
