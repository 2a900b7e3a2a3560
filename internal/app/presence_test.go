package app

import (
	"testing"
	"time"

	"github.com/mentorspark/sessiond/internal/domain"
)

func TestPresence_RoomScopedSubscription(t *testing.T) {
	p := NewPresence()
	r1Events, cancel1 := p.Subscribe("r1")
	defer cancel1()
	allEvents, cancelAll := p.Subscribe("")
	defer cancelAll()

	p.Publish(Event{Type: EventSessionStarted, Room: "r2", At: time.Unix(1, 0)})

	select {
	case ev := <-r1Events:
		t.Fatalf("r1 subscriber received foreign event %+v", ev)
	default:
	}
	select {
	case ev := <-allEvents:
		if ev.Room != domain.RoomID("r2") {
			t.Fatalf("wildcard subscriber got %+v, want r2 event", ev)
		}
	default:
		t.Fatalf("wildcard subscriber missed the event")
	}
}

func TestPresence_CancelClosesChannel(t *testing.T) {
	p := NewPresence()
	events, cancel := p.Subscribe("r1")
	cancel()

	if _, ok := <-events; ok {
		t.Fatalf("channel must be closed after cancel")
	}
	// Publishing after cancel must not panic or deliver.
	p.Publish(Event{Type: EventSessionEnded, Room: "r1"})

	// Double cancel is safe.
	cancel()
}

func TestPresence_SlowSubscriberDropsNotBlocks(t *testing.T) {
	p := NewPresence()
	events, cancel := p.Subscribe("r1")
	defer cancel()

	// Overfill past the subscription buffer; Publish must never block.
	for i := 0; i < 64; i++ {
		p.Publish(Event{Type: EventSessionStarted, Room: "r1"})
	}
	drained := 0
	for {
		select {
		case <-events:
			drained++
			continue
		default:
		}
		break
	}
	if drained == 0 || drained > 16 {
		t.Fatalf("drained %d events, want up to the buffer size", drained)
	}
}
