package signal

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestJoinRateLimiter_BlocksOverLimit(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	rl := NewJoinRateLimiter(3, time.Minute, clk)

	for i := 0; i < 3; i++ {
		if !rl.Allow("u1") {
			t.Fatalf("attempt %d must be allowed", i)
		}
	}
	if rl.Allow("u1") {
		t.Fatalf("fourth attempt within window must be blocked")
	}
	// Other participants are unaffected.
	if !rl.Allow("u2") {
		t.Fatalf("u2 must not be throttled by u1")
	}
}

func TestJoinRateLimiter_DropsIdleParticipants(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	rl := NewJoinRateLimiter(2, time.Minute, clk)

	rl.Allow("u1")
	rl.Allow("u2")
	clk.Advance(2 * time.Minute)
	rl.Allow("u3")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.history["u1"]; ok {
		t.Fatalf("u1 history must be pruned once the window has passed")
	}
	if len(rl.history) != 1 {
		t.Fatalf("history holds %d entries, want only the active participant", len(rl.history))
	}
}

func TestJoinRateLimiter_WindowSlides(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	rl := NewJoinRateLimiter(2, time.Minute, clk)

	rl.Allow("u1")
	rl.Allow("u1")
	if rl.Allow("u1") {
		t.Fatalf("limit must hold inside the window")
	}
	clk.Advance(61 * time.Second)
	if !rl.Allow("u1") {
		t.Fatalf("attempts must be allowed after the window slides")
	}
}
