package auth

import (
	"errors"
	"strings"
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

func TestIssuer_MintAndVerify(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	issuer := NewIssuer("test-secret", time.Hour, clk)

	token, err := issuer.Mint("u1", "mentor-session-42")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "u1" || claims.MeetingID != "mentor-session-42" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestIssuer_RejectsExpired(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	issuer := NewIssuer("test-secret", time.Minute, clk)

	token, err := issuer.Mint("u1", "r1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	clk.Advance(2 * time.Minute)
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token err = %v, want ErrInvalidToken", err)
	}
}

func TestIssuer_RejectsWrongSecret(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	token, err := NewIssuer("secret-a", time.Hour, clk).Mint("u1", "r1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := NewIssuer("secret-b", time.Hour, clk).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret err = %v, want ErrInvalidToken", err)
	}
}

func TestIssuer_RejectsGarbage(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour, &fakeClock{now: time.Unix(1, 0)})
	for _, tok := range []string{"", "not-a-jwt", strings.Repeat("a.", 10)} {
		if _, err := issuer.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(%q) err = %v, want ErrInvalidToken", tok, err)
		}
	}
}
