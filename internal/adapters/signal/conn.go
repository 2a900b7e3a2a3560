package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mentorspark/sessiond/internal/auth"
	"github.com/mentorspark/sessiond/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

const (
	writeWait = 5 * time.Second
	pongWait  = 60 * time.Second
)

// wsConn is one participant's transport endpoint. It implements app.Sender.
type wsConn struct {
	conn   *websocket.Conn
	claims *auth.Claims
	send   chan []byte

	mu     sync.Mutex
	closed bool
	joined bool // whether a join has been accepted on this connection
}

func newWSConn(conn *websocket.Conn, claims *auth.Claims) *wsConn {
	return &wsConn{
		conn:   conn,
		claims: claims,
		send:   make(chan []byte, 32),
	}
}

func (c *wsConn) TrySend(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrTransportClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	_ = c.conn.Close()
}

func (c *wsConn) markJoined() {
	c.mu.Lock()
	c.joined = true
	c.mu.Unlock()
}

func (c *wsConn) wasJoined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

// writePump owns all writes to the socket: queued envelopes plus keepalive
// pings. It exits when the send channel closes or the context ends.
func (c *wsConn) writePump(ctx context.Context, pingPeriod time.Duration) {
	if pingPeriod <= 0 {
		pingPeriod = (pongWait * 9) / 10
	}
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads envelopes and dispatches them. On exit the participant is
// removed from its room so peers are told and no membership leaks.
func (c *wsConn) readPump(ctx context.Context, cancel context.CancelFunc, ctl *Controller) {
	defer func() {
		cancel()
		if c.wasJoined() {
			ctl.Relay.Leave(domain.ParticipantID(c.claims.UserID))
		}
		c.Close()
		log.Info().Str("module", "signal").
			Str("participant", c.claims.UserID).
			Msg("signaling connection closed")
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Msg("readPump read error")
				}
				return
			}
			ctl.dispatch(c, data)
		}
	}
}
