// Package domain contains entities without logic, just meta-data.
package domain

import "time"

type (
	RoomID        string
	ParticipantID string
)

// Role is the negotiation role assigned to a participant on join.
// The earliest joiner of a room is the initiator and sends the first offer.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

type Room struct {
	ID        RoomID
	CreatedAt time.Time
}

// Participant is membership meta for a room. No transport or lifecycle
// logic here.
type Participant struct {
	ID       ParticipantID
	Role     Role
	JoinedAt time.Time
}
