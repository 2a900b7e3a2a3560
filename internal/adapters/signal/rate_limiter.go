package signal

import (
	"sync"
	"time"

	"github.com/mentorspark/sessiond/internal/clock"
	"github.com/mentorspark/sessiond/internal/domain"
)

// JoinRateLimiter bounds join attempts per participant over a sliding
// window, so a misbehaving client cannot churn room state.
type JoinRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.ParticipantID][]time.Time
	limit    int
	interval time.Duration
	clock    clock.Clock
}

func NewJoinRateLimiter(limit int, interval time.Duration, clk clock.Clock) *JoinRateLimiter {
	if clk == nil {
		clk = clock.Real{}
	}
	return &JoinRateLimiter{
		history:  make(map[domain.ParticipantID][]time.Time),
		limit:    limit,
		interval: interval,
		clock:    clk,
	}
}

func (rl *JoinRateLimiter) Allow(pid domain.ParticipantID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	windowStart := now.Add(-rl.interval)

	// Drop participants whose attempts have all aged out, so the map does
	// not grow with every participant ever seen.
	for id, past := range rl.history {
		if len(past) == 0 || !past[len(past)-1].After(windowStart) {
			delete(rl.history, id)
		}
	}

	attempts := rl.history[pid]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[pid] = fresh
		return false
	}

	rl.history[pid] = append(fresh, now)
	return true
}
