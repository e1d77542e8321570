package signal

import (
	"sync"
	"time"

	"github.com/dkeye/meetsync/internal/domain"
)

// RateLimiter is a sliding-window limiter keyed by session.
type RateLimiter struct {
	mu       sync.Mutex
	history  map[domain.SessionID][]time.Time
	limit    int
	interval time.Duration
	pruned   time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[domain.SessionID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *RateLimiter) Allow(sid domain.SessionID) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)
	if now.Sub(rl.pruned) >= rl.interval {
		rl.prune(windowStart)
		rl.pruned = now
	}

	fresh := within(rl.history[sid], windowStart)

	if len(fresh) >= rl.limit {
		rl.history[sid] = fresh
		return false
	}
	rl.history[sid] = append(fresh, now)
	return true
}

// prune drops sessions with no attempt inside the window, which also covers
// sessions that were torn down.
func (rl *RateLimiter) prune(windowStart time.Time) {
	for sid, attempts := range rl.history {
		if fresh := within(attempts, windowStart); len(fresh) > 0 {
			rl.history[sid] = fresh
		} else {
			delete(rl.history, sid)
		}
	}
}

func within(attempts []time.Time, windowStart time.Time) []time.Time {
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.history)
}
