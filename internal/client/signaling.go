package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mentorspark/sessiond/internal/domain"
)

// Signaler is the session's persistent connection to the relay. Events is
// closed when the transport drops.
type Signaler interface {
	Send(env domain.Envelope) error
	Events() <-chan domain.Envelope
	Close() error
}

type wsSignaler struct {
	conn   *websocket.Conn
	events chan domain.Envelope

	writeMu sync.Mutex
	once    sync.Once
}

// DialSignaler connects to the relay's signaling endpoint with the given
// bearer token.
func DialSignaler(ctx context.Context, serverURL, token string) (Signaler, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("bad server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/api/ws/signal"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("signaling dial rejected (%d): %w", resp.StatusCode, domain.ErrTransportClosed)
		}
		return nil, fmt.Errorf("signaling dial: %w", domain.ErrTransportClosed)
	}

	s := &wsSignaler{
		conn:   conn,
		events: make(chan domain.Envelope, 32),
	}
	go s.readLoop()
	return s, nil
}

func (s *wsSignaler) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Str("module", "client.signaling").Msg("bad envelope from relay")
			continue
		}
		select {
		case s.events <- env:
		default:
			log.Warn().Str("module", "client.signaling").Str("type", env.Type).Msg("event buffer full, envelope dropped")
		}
	}
}

func (s *wsSignaler) Send(env domain.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("send envelope: %w", domain.ErrTransportClosed)
	}
	return nil
}

func (s *wsSignaler) Events() <-chan domain.Envelope { return s.events }

func (s *wsSignaler) Close() error {
	var err error
	s.once.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}
