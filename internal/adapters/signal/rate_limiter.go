package signal

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const minIdle = time.Minute

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter keeps one token bucket per client key. A key idle long enough
// for its bucket to refill completely is forgotten, which loses nothing.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
	if perSecond > 0 {
		rl.idle = max(time.Duration(float64(burst)/perSecond*float64(time.Second)), minIdle)
	}
	return rl
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	now := rl.now()
	rl.sweep(now)
	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = e
	}
	e.seen = now
	rl.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

// sweep drops idle keys at most once per idle period. A zero rate never
// refills, so nothing is dropped.
func (rl *RateLimiter) sweep(now time.Time) {
	if rl.idle == 0 || now.Sub(rl.lastSweep) < rl.idle {
		return
	}
	rl.lastSweep = now
	for key, e := range rl.limiters {
		if now.Sub(e.seen) >= rl.idle {
			delete(rl.limiters, key)
		}
	}
}
