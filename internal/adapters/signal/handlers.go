package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/mentorspark/sessiond/internal/domain"
)

func (ctl *Controller) dispatch(c *wsConn, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad envelope json")
		ctl.sendError(c, "bad_payload")
		return
	}

	switch env.Type {
	case domain.TypePing:
		ctl.sendJSON(c, domain.Envelope{Type: domain.TypePong})
	case domain.TypeJoin:
		ctl.handleJoin(c, env)
	case domain.TypeSignal:
		ctl.handleSignal(c, env, data)
	case domain.TypeLeave:
		ctl.handleLeave(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown envelope type")
		ctl.sendError(c, "unknown_type")
	}
}

func (ctl *Controller) handleJoin(c *wsConn, env domain.Envelope) {
	pid := domain.ParticipantID(c.claims.UserID)
	roomID := domain.RoomID(c.claims.MeetingID)
	if env.UserID != "" && env.UserID != pid {
		ctl.sendError(c, "identity mismatch")
		return
	}
	if env.MeetingID != "" && env.MeetingID != roomID {
		ctl.sendError(c, "meeting mismatch")
		return
	}
	if len(roomID) == 0 || len(roomID) > domain.MaxRoomIDLen {
		ctl.sendError(c, "bad meeting id")
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(pid) {
		ctl.sendError(c, "too many join attempts")
		return
	}

	meta, err := ctl.Relay.Join(roomID, pid, c)
	switch {
	case errors.Is(err, domain.ErrRoomFull):
		ctl.sendError(c, "room full")
		return
	case errors.Is(err, domain.ErrAlreadyJoined):
		ctl.sendError(c, "already in a room")
		return
	case err != nil:
		log.Error().Err(err).Str("module", "signal").Str("participant", string(pid)).Msg("join failed")
		ctl.sendError(c, "join failed")
		return
	}

	c.markJoined()
	ctl.sendJSON(c, domain.Envelope{
		Type:      domain.TypeJoined,
		UserID:    pid,
		MeetingID: roomID,
		Role:      meta.Role,
	})
}

func (ctl *Controller) handleSignal(c *wsConn, env domain.Envelope, raw []byte) {
	pid := domain.ParticipantID(c.claims.UserID)
	if env.UserID != "" && env.UserID != pid {
		ctl.sendError(c, "identity mismatch")
		return
	}
	if err := ctl.Relay.Signal(pid, raw); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			ctl.sendError(c, "join a room first")
			return
		}
		log.Error().Err(err).Str("module", "signal").Str("participant", string(pid)).Msg("relay signal")
	}
}

func (ctl *Controller) handleLeave(c *wsConn) {
	pid := domain.ParticipantID(c.claims.UserID)
	ctl.Relay.Leave(pid)
	ctl.sendJSON(c, domain.Envelope{Type: domain.TypeLeft})
}

func (ctl *Controller) sendError(c *wsConn, msg string) {
	ctl.sendJSON(c, domain.Envelope{Type: domain.TypeError, Error: msg})
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("sendJSON drop")
	}
}
