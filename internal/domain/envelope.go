package domain

import "encoding/json"

// Envelope is the unit of the signaling wire protocol, both directions.
// Signal carries an opaque negotiation blob (offer/answer/candidate) that
// the relay forwards verbatim and never inspects.
type Envelope struct {
	Type      string          `json:"type"`
	UserID    ParticipantID   `json:"userId,omitempty"`
	MeetingID RoomID          `json:"meetingId,omitempty"`
	Role      Role            `json:"role,omitempty"`
	Signal    json.RawMessage `json:"signal,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Client to server.
const (
	TypeJoin   = "join"
	TypeSignal = "signal"
	TypeLeave  = "leave"
	TypePing   = "ping"
)

// Server to client.
const (
	TypeJoined     = "joined"
	TypePeerJoined = "peer-joined"
	TypePeerLeft   = "peer-left"
	TypeLeft       = "left"
	TypeError      = "error"
	TypePong       = "pong"
)
