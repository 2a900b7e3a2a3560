package app

import (
	"encoding/json"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mentorspark/sessiond/internal/domain"
)

const relayLockStripes = 64

// Relay coordinates room membership changes and forwards signaling
// envelopes between the participants of a room. Envelope payloads are
// forwarded verbatim and never inspected.
//
// Handling for one room is serialized through a lock striped by room ID, so
// envelopes from a single sender keep their order without a global lock.
type Relay struct {
	registry *Registry
	rooms    *Rooms
	presence *Presence
	stripes  [relayLockStripes]sync.Mutex
}

func NewRelay(registry *Registry, rooms *Rooms, presence *Presence) *Relay {
	return &Relay{registry: registry, rooms: rooms, presence: presence}
}

func (r *Relay) lockRoom(roomID domain.RoomID) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return &r.stripes[h.Sum32()%relayLockStripes]
}

// Join registers the participant in the room, creating the room on first
// join, and notifies existing members with a peer-joined envelope so they
// learn of the newcomer before negotiation starts. The earliest joiner is
// assigned the initiator role.
func (r *Relay) Join(roomID domain.RoomID, pid domain.ParticipantID, s Sender) (domain.Participant, error) {
	mu := r.lockRoom(roomID)
	mu.Lock()
	defer mu.Unlock()

	meta, err := r.registry.Register(roomID, pid, s)
	if err != nil {
		return domain.Participant{}, err
	}
	r.rooms.EnsureRoom(roomID)

	notice, err := json.Marshal(domain.Envelope{
		Type:      domain.TypePeerJoined,
		UserID:    pid,
		MeetingID: roomID,
		Role:      meta.Role,
	})
	if err == nil {
		r.fanOut(roomID, pid, notice)
	}
	if r.presence != nil {
		r.presence.Publish(Event{Type: EventPeerJoined, Room: roomID, At: meta.JoinedAt})
	}
	return meta, nil
}

// Signal forwards the raw envelope bytes to every other participant in the
// sender's room. A room with no other participant yet is not an error; the
// envelope is dropped and the negotiation layer regenerates it.
func (r *Relay) Signal(pid domain.ParticipantID, raw []byte) error {
	roomID, ok := r.registry.RoomOf(pid)
	if !ok {
		return domain.ErrRoomNotFound
	}
	mu := r.lockRoom(roomID)
	mu.Lock()
	defer mu.Unlock()

	if !r.fanOut(roomID, pid, raw) {
		log.Debug().Str("module", "app.relay").
			Str("room", string(roomID)).
			Str("participant", string(pid)).
			Msg("no peer in room yet, signal dropped")
	}
	return nil
}

// Leave removes the participant from its room, notifies the remaining
// members and destroys the room when it empties. Unknown participants are
// a no-op so transport close and explicit leave can both call it.
func (r *Relay) Leave(pid domain.ParticipantID) {
	roomID, ok := r.registry.RoomOf(pid)
	if !ok {
		return
	}
	mu := r.lockRoom(roomID)
	mu.Lock()
	defer mu.Unlock()

	emptied := r.registry.Unregister(roomID, pid)

	notice, err := json.Marshal(domain.Envelope{
		Type:      domain.TypePeerLeft,
		UserID:    pid,
		MeetingID: roomID,
	})
	if err == nil {
		r.fanOut(roomID, pid, notice)
	}
	if r.presence != nil {
		r.presence.Publish(Event{Type: EventPeerLeft, Room: roomID})
	}
	if emptied {
		r.rooms.NoteEmpty(roomID)
	}
}

// fanOut delivers raw bytes to every peer of pid in roomID and reports
// whether at least one peer received it. Backpressured peers lose the
// envelope; delivery is best-effort over the reliable transport.
func (r *Relay) fanOut(roomID domain.RoomID, from domain.ParticipantID, raw []byte) bool {
	peers := r.registry.PeersOf(roomID, from)
	delivered := false
	for _, peer := range peers {
		if err := peer.Sender.TrySend(raw); err != nil {
			log.Warn().Err(err).Str("module", "app.relay").
				Str("room", string(roomID)).
				Str("to", string(peer.Participant.ID)).
				Msg("drop envelope for slow peer")
			continue
		}
		delivered = true
	}
	return delivered
}
