package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mentorspark/sessiond/internal/auth"
	"github.com/mentorspark/sessiond/internal/domain"
)

// HandlePresence streams room lifecycle events to a dashboard observer.
// The subscription is scoped to the meeting the verified token was minted
// for. This is the push channel that replaces client-side polling of a
// shared "session is live" flag.
func (ctl *Controller) HandlePresence(ctx context.Context, c *gin.Context, claims *auth.Claims) {
	roomID := domain.RoomID(claims.MeetingID)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.presence").Msg("ws upgrade")
		return
	}
	events, cancel := ctl.Presence.Subscribe(roomID)
	defer cancel()
	defer ws.Close()

	// Reader goroutine only surfaces disconnects; observers never send.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log.Info().Str("module", "signal.presence").Str("room", string(roomID)).Msg("presence subscriber connected")
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}
