package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mentorspark/sessiond/internal/clock"
	"github.com/mentorspark/sessiond/internal/domain"
)

type roomState struct {
	room         domain.Room
	destroyTimer *time.Timer
	// gen invalidates fired grace timers: EnsureRoom and NoteEmpty bump it,
	// and a destroy callback carrying a stale gen is a no-op.
	gen uint64
}

// Rooms owns the room lifecycle: rooms are created lazily on first join and
// destroyed when membership drops to zero. An optional grace period keeps
// an emptied room alive briefly to tolerate transient reconnects.
type Rooms struct {
	mu         sync.Mutex
	rooms      map[domain.RoomID]*roomState
	grace      time.Duration
	clock      clock.Clock
	afterFunc  func(d time.Duration, f func()) *time.Timer
	stillEmpty func(domain.RoomID) bool
	presence   *Presence
}

func NewRooms(grace time.Duration, clk clock.Clock, stillEmpty func(domain.RoomID) bool, presence *Presence) *Rooms {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Rooms{
		rooms:      make(map[domain.RoomID]*roomState),
		grace:      grace,
		clock:      clk,
		afterFunc:  time.AfterFunc,
		stillEmpty: stillEmpty,
		presence:   presence,
	}
}

// EnsureRoom creates the room if absent and cancels any pending grace-period
// destruction. It returns the room meta.
func (rs *Rooms) EnsureRoom(roomID domain.RoomID) domain.Room {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if st, ok := rs.rooms[roomID]; ok {
		st.gen++
		if st.destroyTimer != nil {
			st.destroyTimer.Stop()
			st.destroyTimer = nil
		}
		return st.room
	}
	st := &roomState{room: domain.Room{ID: roomID, CreatedAt: rs.clock.Now()}}
	rs.rooms[roomID] = st
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Msg("room created")
	rs.publish(EventSessionStarted, roomID)
	return st.room
}

// Exists reports whether the room is currently alive.
func (rs *Rooms) Exists(roomID domain.RoomID) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	_, ok := rs.rooms[roomID]
	return ok
}

// NoteEmpty is called when the last participant leaves. With a zero grace
// period the room is destroyed synchronously; otherwise destruction is
// scheduled and aborted if anyone rejoins in time.
func (rs *Rooms) NoteEmpty(roomID domain.RoomID) {
	rs.mu.Lock()
	st, ok := rs.rooms[roomID]
	if !ok {
		rs.mu.Unlock()
		return
	}
	if rs.grace <= 0 {
		rs.destroyLocked(roomID)
		rs.mu.Unlock()
		return
	}
	if st.destroyTimer != nil {
		st.destroyTimer.Stop()
	}
	st.gen++
	gen := st.gen
	st.destroyTimer = rs.afterFunc(rs.grace, func() { rs.destroyIfStillEmpty(roomID, gen) })
	rs.mu.Unlock()
}

// Destroy removes the room unconditionally.
func (rs *Rooms) Destroy(roomID domain.RoomID) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.destroyLocked(roomID)
}

// destroyIfStillEmpty runs when a grace timer fires. Both checks happen
// under rs.mu so a rejoin that raced the timer (EnsureRoom bumps gen) wins
// and the room survives. stillEmpty must not call back into Rooms.
func (rs *Rooms) destroyIfStillEmpty(roomID domain.RoomID, gen uint64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	st, ok := rs.rooms[roomID]
	if !ok || st.gen != gen {
		return
	}
	if rs.stillEmpty != nil && !rs.stillEmpty(roomID) {
		return
	}
	rs.destroyLocked(roomID)
}

func (rs *Rooms) destroyLocked(roomID domain.RoomID) {
	st, ok := rs.rooms[roomID]
	if !ok {
		return
	}
	if st.destroyTimer != nil {
		st.destroyTimer.Stop()
	}
	delete(rs.rooms, roomID)
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Msg("room destroyed")
	rs.publish(EventSessionEnded, roomID)
}

func (rs *Rooms) publish(typ EventType, roomID domain.RoomID) {
	if rs.presence == nil {
		return
	}
	rs.presence.Publish(Event{Type: typ, Room: roomID, At: rs.clock.Now()})
}
