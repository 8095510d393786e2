package reliability

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter manages one golang.org/x/time/rate.Limiter per key (e.g. per
// tool, per principal), so one caller's burst can't starve another's
// budget. Grounded on the teacher's AdaptiveRateLimiter
// (features/model/middleware/ratelimit.go), simplified to a fixed
// requests-per-second budget per key rather than an AIMD-adaptive one.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewLimiter constructs a Limiter granting each distinct key its own
// token bucket of rps requests/second with the given burst.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *Limiter) forKey(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Allow reports whether a call under key may proceed right now, consuming
// one token if so.
func (l *Limiter) Allow(key string) bool {
	return l.forKey(key).Allow()
}
