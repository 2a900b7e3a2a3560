package app

import (
	"testing"
	"time"

	"github.com/mentorspark/sessiond/internal/domain"
)

// fakeTimers captures scheduled destruction callbacks so grace-period
// behavior can be driven without sleeping.
type fakeTimers struct {
	callbacks []func()
}

func (f *fakeTimers) afterFunc(d time.Duration, fn func()) *time.Timer {
	f.callbacks = append(f.callbacks, fn)
	// The returned timer is never used for real scheduling in tests; it only
	// has to survive Stop calls.
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func (f *fakeTimers) fireAll() {
	for _, fn := range f.callbacks {
		fn()
	}
	f.callbacks = nil
}

func TestRooms_CreatedOnFirstEnsureDestroyedWhenEmpty(t *testing.T) {
	rs := NewRooms(0, &fakeClock{now: time.Unix(1, 0)}, nil, nil)

	if rs.Exists("r1") {
		t.Fatalf("room must not exist before first join")
	}
	room := rs.EnsureRoom("r1")
	if room.ID != "r1" {
		t.Fatalf("room ID = %q", room.ID)
	}
	if !rs.Exists("r1") {
		t.Fatalf("room must exist after ensure")
	}
	// Ensure again returns the same room, not a new one.
	again := rs.EnsureRoom("r1")
	if !again.CreatedAt.Equal(room.CreatedAt) {
		t.Fatalf("ensure recreated an existing room")
	}

	rs.NoteEmpty("r1")
	if rs.Exists("r1") {
		t.Fatalf("zero grace: room must be destroyed synchronously when empty")
	}
}

func TestRooms_GracePeriodDelaysDestruction(t *testing.T) {
	empty := true
	timers := &fakeTimers{}
	rs := NewRooms(30*time.Second, &fakeClock{}, func(domain.RoomID) bool { return empty }, nil)
	rs.afterFunc = timers.afterFunc

	rs.EnsureRoom("r1")
	rs.NoteEmpty("r1")
	if !rs.Exists("r1") {
		t.Fatalf("room must survive until the grace period elapses")
	}

	timers.fireAll()
	if rs.Exists("r1") {
		t.Fatalf("room must be destroyed after the grace period")
	}
}

func TestRooms_RejoinDuringGraceCancelsDestruction(t *testing.T) {
	timers := &fakeTimers{}
	rs := NewRooms(30*time.Second, &fakeClock{}, func(domain.RoomID) bool { return false }, nil)
	rs.afterFunc = timers.afterFunc

	rs.EnsureRoom("r1")
	rs.NoteEmpty("r1")
	rs.EnsureRoom("r1") // rejoin within grace

	timers.fireAll()
	if !rs.Exists("r1") {
		t.Fatalf("rejoined room must not be destroyed by a stale grace timer")
	}
}

func TestRooms_StaleGraceTimerCannotDestroyRejoinedRoom(t *testing.T) {
	timers := &fakeTimers{}
	// The emptiness observation is stale: it still reports empty even though
	// a participant rejoined before the fired timer took the lock.
	rs := NewRooms(30*time.Second, &fakeClock{}, func(domain.RoomID) bool { return true }, nil)
	rs.afterFunc = timers.afterFunc

	rs.EnsureRoom("r1")
	rs.NoteEmpty("r1")
	rs.EnsureRoom("r1") // rejoin lands before the fired timer runs

	timers.fireAll()
	if !rs.Exists("r1") {
		t.Fatalf("stale grace timer destroyed a rejoined room")
	}

	// A later empty period schedules a fresh timer, which still destroys.
	rs.NoteEmpty("r1")
	timers.fireAll()
	if rs.Exists("r1") {
		t.Fatalf("fresh grace timer must destroy the re-emptied room")
	}
}

func TestRooms_PublishesLifecycleEvents(t *testing.T) {
	presence := NewPresence()
	events, cancel := presence.Subscribe("r1")
	defer cancel()

	rs := NewRooms(0, &fakeClock{now: time.Unix(5, 0)}, nil, presence)
	rs.EnsureRoom("r1")
	rs.NoteEmpty("r1")

	want := []EventType{EventSessionStarted, EventSessionEnded}
	for _, typ := range want {
		select {
		case ev := <-events:
			if ev.Type != typ || ev.Room != "r1" {
				t.Fatalf("event = %+v, want type %q for r1", ev, typ)
			}
		default:
			t.Fatalf("missing %q event", typ)
		}
	}
}
