package domain

import "errors"

const MaxRoomIDLen = 64

var (
	// Registry / room lifecycle.
	ErrRoomFull      = errors.New("room full")
	ErrRoomNotFound  = errors.New("room not found")
	ErrAlreadyJoined = errors.New("participant already in a room")

	// Media acquisition (client side).
	ErrPermissionDenied  = errors.New("media permission denied")
	ErrDeviceUnavailable = errors.New("media device unavailable")

	// Signaling / peer connection.
	ErrTransportClosed   = errors.New("signaling transport closed")
	ErrNegotiationFailed = errors.New("negotiation failed")

	// External collaborators.
	ErrTokenFetchFailed = errors.New("session token fetch failed")
)
