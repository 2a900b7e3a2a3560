package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mentorspark/sessiond/internal/domain"
)

type EventType string

const (
	EventSessionStarted EventType = "session-started"
	EventSessionEnded   EventType = "session-ended"
	EventPeerJoined     EventType = "peer-joined"
	EventPeerLeft       EventType = "peer-left"
)

// Event is a room lifecycle notification pushed to presence subscribers.
type Event struct {
	Type EventType     `json:"type"`
	Room domain.RoomID `json:"meetingId"`
	At   time.Time     `json:"at"`
}

// Presence is a message-passing notification channel between the
// session-initiating side and observers (dashboards). It replaces any
// polled shared "session is live" flag: observers subscribe once and
// receive lifecycle events as they happen.
type Presence struct {
	mu   sync.RWMutex
	next int
	subs map[int]*subscriber
}

type subscriber struct {
	room domain.RoomID // empty means all rooms
	ch   chan Event
}

func NewPresence() *Presence {
	return &Presence{subs: make(map[int]*subscriber)}
}

// Subscribe registers interest in events for a room, or for every room when
// roomID is empty. The returned cancel func must be called to release the
// subscription; after cancel the channel is closed.
func (p *Presence) Subscribe(roomID domain.RoomID) (<-chan Event, func()) {
	p.mu.Lock()
	id := p.next
	p.next++
	sub := &subscriber{room: roomID, ch: make(chan Event, 16)}
	p.subs[id] = sub
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if s, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(s.ch)
		}
		p.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish fans the event out to matching subscribers. Delivery is
// best-effort: a subscriber that cannot keep up loses the event.
func (p *Presence) Publish(ev Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, sub := range p.subs {
		if sub.room != "" && sub.room != ev.Room {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			log.Warn().Str("module", "app.presence").
				Str("room", string(ev.Room)).
				Str("event", string(ev.Type)).
				Msg("slow presence subscriber, event dropped")
		}
	}
}
