package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mentorspark/sessiond/internal/clock"
	"github.com/mentorspark/sessiond/internal/domain"
)

// Sender delivers raw envelope bytes to one connected participant.
// Implemented by the WebSocket adapter; TrySend must not block.
type Sender interface {
	TrySend(data []byte) error
}

type member struct {
	meta   domain.Participant
	sender Sender
}

// PeerSnapshot is a point-in-time view of one room member.
type PeerSnapshot struct {
	Participant domain.Participant
	Sender      Sender
}

// Registry maps rooms to their currently connected participants and
// transport handles. Join order is preserved so the earliest joiner can be
// identified as the negotiation initiator.
type Registry struct {
	mu       sync.RWMutex
	capacity int
	clock    clock.Clock
	rooms    map[domain.RoomID][]*member
	byUser   map[domain.ParticipantID]domain.RoomID
}

func NewRegistry(capacity int, clk clock.Clock) *Registry {
	if capacity < 2 {
		capacity = 2
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Registry{
		capacity: capacity,
		clock:    clk,
		rooms:    make(map[domain.RoomID][]*member),
		byUser:   make(map[domain.ParticipantID]domain.RoomID),
	}
}

// Register adds a participant to a room. It fails with ErrRoomFull when the
// room is at capacity and with ErrAlreadyJoined when the participant is
// registered anywhere; neither failure mutates registry state.
func (r *Registry) Register(roomID domain.RoomID, pid domain.ParticipantID, s Sender) (domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUser[pid]; ok {
		return domain.Participant{}, domain.ErrAlreadyJoined
	}
	members := r.rooms[roomID]
	if len(members) >= r.capacity {
		return domain.Participant{}, domain.ErrRoomFull
	}

	role := domain.RoleResponder
	if len(members) == 0 {
		role = domain.RoleInitiator
	}
	meta := domain.Participant{
		ID:       pid,
		Role:     role,
		JoinedAt: r.clock.Now(),
	}
	r.rooms[roomID] = append(members, &member{meta: meta, sender: s})
	r.byUser[pid] = roomID

	log.Info().Str("module", "app.registry").
		Str("room", string(roomID)).
		Str("participant", string(pid)).
		Str("role", string(role)).
		Msg("registered")
	return meta, nil
}

// Unregister removes a participant and reports whether the room emptied.
// Unknown participants are a no-op.
func (r *Registry) Unregister(roomID domain.RoomID, pid domain.ParticipantID) (emptied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	for i, m := range members {
		if m.meta.ID == pid {
			r.rooms[roomID] = append(members[:i], members[i+1:]...)
			delete(r.byUser, pid)
			log.Info().Str("module", "app.registry").
				Str("room", string(roomID)).
				Str("participant", string(pid)).
				Msg("unregistered")
			break
		}
	}
	if len(r.rooms[roomID]) == 0 {
		delete(r.rooms, roomID)
		return true
	}
	return false
}

// PeersOf returns every member of roomID except the excluded participant.
func (r *Registry) PeersOf(roomID domain.RoomID, excluding domain.ParticipantID) []PeerSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	out := make([]PeerSnapshot, 0, len(members))
	for _, m := range members {
		if m.meta.ID == excluding {
			continue
		}
		out = append(out, PeerSnapshot{Participant: m.meta, Sender: m.sender})
	}
	return out
}

// RoomOf returns the room a participant is currently registered in.
func (r *Registry) RoomOf(pid domain.ParticipantID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.byUser[pid]
	return roomID, ok
}

func (r *Registry) Count(roomID domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

func (r *Registry) IsEmpty(roomID domain.RoomID) bool {
	return r.Count(roomID) == 0
}
