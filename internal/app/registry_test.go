package app

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mentorspark/sessiond/internal/domain"
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

type fakeSender struct {
	mu   sync.Mutex
	sent [][]byte
	fail error
}

func (s *fakeSender) TrySend(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.sent = append(s.sent, cp)
	return nil
}

func (s *fakeSender) received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

func TestRegistry_RolesFollowJoinOrder(t *testing.T) {
	r := NewRegistry(2, &fakeClock{now: time.Unix(100, 0)})

	first, err := r.Register("r1", "u1", &fakeSender{})
	if err != nil {
		t.Fatalf("register u1: %v", err)
	}
	if first.Role != domain.RoleInitiator {
		t.Fatalf("first joiner role = %q, want initiator", first.Role)
	}

	second, err := r.Register("r1", "u2", &fakeSender{})
	if err != nil {
		t.Fatalf("register u2: %v", err)
	}
	if second.Role != domain.RoleResponder {
		t.Fatalf("second joiner role = %q, want responder", second.Role)
	}
}

func TestRegistry_PeersOfExcludesCallerAndRespectsCapacity(t *testing.T) {
	const capacity = 3
	r := NewRegistry(capacity, &fakeClock{})

	for i := 0; i < capacity; i++ {
		pid := domain.ParticipantID(fmt.Sprintf("u%d", i))
		if _, err := r.Register("r1", pid, &fakeSender{}); err != nil {
			t.Fatalf("register %s: %v", pid, err)
		}
		peers := r.PeersOf("r1", pid)
		if len(peers) > capacity-1 {
			t.Fatalf("peersOf returned %d entries, cap is %d", len(peers), capacity-1)
		}
		for _, p := range peers {
			if p.Participant.ID == pid {
				t.Fatalf("peersOf included the calling participant %s", pid)
			}
		}
	}
}

func TestRegistry_RoomFullDoesNotMutate(t *testing.T) {
	r := NewRegistry(2, &fakeClock{})
	if _, err := r.Register("r1", "u1", &fakeSender{}); err != nil {
		t.Fatalf("register u1: %v", err)
	}
	if _, err := r.Register("r1", "u2", &fakeSender{}); err != nil {
		t.Fatalf("register u2: %v", err)
	}

	_, err := r.Register("r1", "u3", &fakeSender{})
	if !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("third register err = %v, want ErrRoomFull", err)
	}
	if got := r.Count("r1"); got != 2 {
		t.Fatalf("room count after rejected join = %d, want 2", got)
	}
	if _, ok := r.RoomOf("u3"); ok {
		t.Fatalf("rejected participant u3 must not be tracked")
	}
}

func TestRegistry_SingleRoomMembership(t *testing.T) {
	r := NewRegistry(2, &fakeClock{})
	if _, err := r.Register("r1", "u1", &fakeSender{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := r.Register("r2", "u1", &fakeSender{})
	if !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Fatalf("second room register err = %v, want ErrAlreadyJoined", err)
	}
	if r.Count("r2") != 0 {
		t.Fatalf("r2 must stay empty after rejected join")
	}
}

func TestRegistry_UnregisterReportsEmptied(t *testing.T) {
	r := NewRegistry(2, &fakeClock{})
	r.Register("r1", "u1", &fakeSender{})
	r.Register("r1", "u2", &fakeSender{})

	if emptied := r.Unregister("r1", "u2"); emptied {
		t.Fatalf("room with one member left must not report emptied")
	}
	if got := r.Count("r1"); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
	if emptied := r.Unregister("r1", "u1"); !emptied {
		t.Fatalf("removing the last member must report emptied")
	}
	if !r.IsEmpty("r1") {
		t.Fatalf("room must be empty after full leave sequence")
	}
	// Unknown participant is a no-op.
	if emptied := r.Unregister("r1", "ghost"); emptied {
		t.Fatalf("unknown unregister must not report emptied")
	}
}
