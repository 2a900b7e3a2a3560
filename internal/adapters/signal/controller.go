// Package signal is the WebSocket transport adapter for the relay: it
// upgrades authenticated HTTP requests, pumps envelopes in both directions
// and translates wire messages into relay operations.
package signal

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mentorspark/sessiond/internal/app"
	"github.com/mentorspark/sessiond/internal/auth"
	"github.com/mentorspark/sessiond/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	// Origin enforcement belongs to the deployment proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Relay    *app.Relay
	Presence *app.Presence
	Limiter  *JoinRateLimiter
	Cfg      *config.Config
}

func NewController(relay *app.Relay, presence *app.Presence, limiter *JoinRateLimiter, cfg *config.Config) *Controller {
	return &Controller{Relay: relay, Presence: presence, Limiter: limiter, Cfg: cfg}
}

// HandleSignal upgrades the request and runs the connection pumps. The
// verified token claims bind the connection to one participant and one
// meeting; envelopes that claim another identity are rejected.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context, claims *auth.Claims) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").
		Str("participant", claims.UserID).
		Str("meeting", claims.MeetingID).
		Msg("new signaling connection")

	conn := newWSConn(ws, claims)
	ctx, cancel := context.WithCancel(ctx)

	go conn.writePump(ctx, ctl.Cfg.PingPeriod)
	go conn.readPump(ctx, cancel, ctl)
}
