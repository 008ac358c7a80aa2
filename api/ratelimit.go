package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/longtime/assistant/internal/log"
)

// RateLimiter limits chat requests per client identity with a token
// bucket (short-term burst control) plus a daily quota.
type RateLimiter struct {
	perSecond rate.Limit
	burst     int
	daily     int
	logger    log.Logger

	mu       sync.Mutex
	visitors map[string]*visitor

	// now is replaceable in tests.
	now func() time.Time
}

type visitor struct {
	limiter *rate.Limiter
	day     string
	count   int
}

// NewRateLimiter creates a limiter allowing perSecond requests with
// the given burst, and at most daily requests per calendar day.
func NewRateLimiter(perSecond float64, burst, daily int, logger log.Logger) *RateLimiter {
	if logger == nil {
		logger = log.NewNop()
	}
	return &RateLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		daily:     daily,
		logger:    logger,
		visitors:  make(map[string]*visitor),
		now:       time.Now,
	}
}

// Allow reports whether a request from the given identity may proceed.
func (rl *RateLimiter) Allow(identity string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	today := rl.now().Format("2006-01-02")
	v, ok := rl.visitors[identity]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.perSecond, rl.burst), day: today}
		rl.visitors[identity] = v
	}

	if v.day != today {
		v.day = today
		v.count = 0
	}
	if v.count >= rl.daily {
		return false
	}
	if !v.limiter.Allow() {
		return false
	}
	v.count++
	return true
}

// Middleware enforces the limit, keyed by client IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			identity = r.RemoteAddr
		}
		if !rl.Allow(identity) {
			rl.logger.Warn("rate limit exceeded", "identity", identity)
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
