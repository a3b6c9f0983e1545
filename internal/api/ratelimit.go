package api

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdle is how long a bucket takes to refill completely. An entry
// unused for that long is indistinguishable from a new one.
const limiterIdle = time.Minute

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// userLimiter hands out one token bucket per user id. A bucket refills at
// perMinute tokens per minute and bursts up to perMinute. Idle buckets are
// swept at most once per limiterIdle.
type userLimiter struct {
	perMinute int
	now       func() time.Time

	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastSweep time.Time
}

func newUserLimiter(perMinute int) *userLimiter {
	return &userLimiter{
		perMinute: perMinute,
		now:       time.Now,
		limiters:  make(map[string]*limiterEntry),
	}
}

func (l *userLimiter) allow(user string) bool {
	if l.perMinute <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) >= limiterIdle {
		l.sweep(now)
	}
	e, ok := l.limiters[user]
	if !ok {
		e = &limiterEntry{
			lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute),
		}
		l.limiters[user] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

func (l *userLimiter) sweep(now time.Time) {
	for user, e := range l.limiters {
		if now.Sub(e.lastSeen) >= limiterIdle {
			delete(l.limiters, user)
		}
	}
	l.lastSweep = now
}

// RateLimit limits requests per X-User-ID. perMinute <= 0 disables it.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	l := newUserLimiter(perMinute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(userID(r)) {
				w.Header().Set("Retry-After", "60")
				httpError(w, http.StatusTooManyRequests, "rate_limit_error", "too many messages, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
