// Package client implements the browser-side session adapter as a Go
// library: it owns the local media capture handle and the peer connection,
// turning local negotiation events into outbound signaling envelopes and
// inbound envelopes into peer-connection transitions.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/mentorspark/sessiond/internal/adapters/rtc"
	"github.com/mentorspark/sessiond/internal/domain"
)

// State of a local peer session. Closed is terminal and reachable from
// every other state; a fresh Session is needed for a new attempt.
type State int

const (
	StateIdle State = iota
	StateMediaAcquiring
	StateMediaReady
	StateNegotiating
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMediaAcquiring:
		return "media-acquiring"
	case StateMediaReady:
		return "media-ready"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var ErrSessionActive = errors.New("session already started")

// StateChange is pushed to Events subscribers on every transition. Err is
// set for failure transitions.
type StateChange struct {
	State State
	Err   error
}

// PeerConn is the slice of the peer-connection wrapper the session drives.
// *rtc.Connection implements it; tests substitute a fake.
type PeerConn interface {
	Start(ctx context.Context) error
	CreateOffer(opts *webrtc.OfferOptions) (*webrtc.SessionDescription, error)
	ApplyAnswer(answer webrtc.SessionDescription) error
	ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	AddICECandidate(ci webrtc.ICECandidateInit) error
	AddLocalTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnStateChange(fn func(webrtc.PeerConnectionState))
	Close()
}

type Config struct {
	ServerURL string
	Token     string
	UserID    domain.ParticipantID
	MeetingID domain.RoomID
	// MaxRenegotiations bounds automatic recovery attempts after the media
	// path degrades; past it the session fails instead of spinning.
	MaxRenegotiations int
	RTC               webrtc.Configuration
}

// negotiation is the opaque payload of a signal envelope. Only the two
// endpoints understand it; the relay never looks inside.
type negotiation struct {
	Type      string                   `json:"type"` // offer | answer | candidate
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

type Session struct {
	cfg   Config
	media MediaSource

	dial    func(ctx context.Context) (Signaler, error)
	newPeer func() (PeerConn, error)

	mu      sync.Mutex
	state   State
	stream  MediaStream
	sig     Signaler
	peer    PeerConn
	role    domain.Role
	retries int

	events     chan StateChange
	peerStates chan webrtc.PeerConnectionState
	closeOnce  sync.Once
	done       chan struct{}
}

func NewSession(cfg Config, media MediaSource) *Session {
	if cfg.MaxRenegotiations == 0 {
		cfg.MaxRenegotiations = 1
	}
	if len(cfg.RTC.ICEServers) == 0 {
		cfg.RTC = rtc.DefaultConfig()
	}
	s := &Session{
		cfg:        cfg,
		media:      media,
		state:      StateIdle,
		events:     make(chan StateChange, 16),
		peerStates: make(chan webrtc.PeerConnectionState, 16),
		done:       make(chan struct{}),
	}
	s.dial = func(ctx context.Context) (Signaler, error) {
		return DialSignaler(ctx, cfg.ServerURL, cfg.Token)
	}
	s.newPeer = func() (PeerConn, error) {
		return rtc.NewConnection(s.cfg.RTC, string(s.cfg.UserID))
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Events() <-chan StateChange { return s.events }

// Done is closed when the session reaches Closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start acquires media, connects to the relay, joins the meeting and runs
// the negotiation loop. It is not re-entrant: a session that has left Idle
// must be Closed and replaced, never restarted.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.setStateLocked(StateMediaAcquiring, nil)
	s.mu.Unlock()

	stream, err := s.media.Acquire(ctx)
	if err != nil {
		s.fail(err)
		return err
	}
	if !s.adopt(func() { s.stream = stream }, StateMediaReady) {
		stream.StopAll()
		return domain.ErrTransportClosed
	}

	sig, err := s.dial(ctx)
	if err != nil {
		stream.StopAll()
		s.fail(err)
		return err
	}
	if !s.adopt(func() { s.sig = sig }, StateMediaReady) {
		_ = sig.Close()
		stream.StopAll()
		return domain.ErrTransportClosed
	}

	peer, err := s.newPeer()
	if err != nil {
		// Failed goes out before Close so Events subscribers see the error.
		s.fail(err)
		s.Close()
		return err
	}
	peer.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		s.sendNegotiation(negotiation{Type: "candidate", Candidate: &ci})
	})
	peer.OnStateChange(func(st webrtc.PeerConnectionState) {
		select {
		case s.peerStates <- st:
		default:
		}
	})
	if err := peer.Start(ctx); err != nil {
		s.fail(err)
		peer.Close()
		s.Close()
		return err
	}
	for _, track := range stream.Tracks() {
		if _, err := peer.AddLocalTrack(track); err != nil {
			s.fail(err)
			peer.Close()
			s.Close()
			return err
		}
	}
	if !s.adopt(func() { s.peer = peer }, StateMediaReady) {
		peer.Close()
		return domain.ErrTransportClosed
	}

	if err := sig.Send(domain.Envelope{
		Type:      domain.TypeJoin,
		UserID:    s.cfg.UserID,
		MeetingID: s.cfg.MeetingID,
	}); err != nil {
		s.fail(err)
		s.Close()
		return err
	}

	go s.run(ctx, sig)
	return nil
}

// adopt installs a resource into the session unless it was closed while the
// resource was being prepared, in which case the caller must release it.
func (s *Session) adopt(install func(), state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	install()
	s.setStateLocked(state, nil)
	return true
}

func (s *Session) run(ctx context.Context, sig Signaler) {
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		case env, ok := <-sig.Events():
			if !ok {
				s.onTransportClosed()
				return
			}
			s.handleEnvelope(env)
		case st := <-s.peerStates:
			s.handlePeerState(st)
		}
	}
}

func (s *Session) onTransportClosed() {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	if st == StateClosed {
		return
	}
	// Without signaling no further negotiation is possible; an established
	// media path keeps flowing peer to peer, everything earlier is dead.
	if st == StateConnected {
		log.Warn().Str("module", "client.session").Msg("signaling transport lost, media continues")
		return
	}
	s.fail(domain.ErrTransportClosed)
}

func (s *Session) handleEnvelope(env domain.Envelope) {
	switch env.Type {
	case domain.TypeJoined:
		s.mu.Lock()
		s.role = env.Role
		s.mu.Unlock()
		log.Info().Str("module", "client.session").
			Str("role", string(env.Role)).
			Str("meeting", string(env.MeetingID)).
			Msg("joined meeting")
	case domain.TypePeerJoined:
		// Presence precedes negotiation: once both sides know of each
		// other, the initiator opens the handshake.
		if s.currentRole() == domain.RoleInitiator {
			s.setState(StateNegotiating, nil)
			s.offer(false)
		}
	case domain.TypeSignal:
		s.handleNegotiation(env.Signal)
	case domain.TypePeerLeft:
		s.mu.Lock()
		if s.state == StateConnected || s.state == StateNegotiating {
			s.setStateLocked(StateDisconnected, nil)
		}
		s.mu.Unlock()
	case domain.TypeLeft, domain.TypePong:
		// acks, nothing to do
	case domain.TypeError:
		s.handleRelayError(env.Error)
	default:
		log.Warn().Str("module", "client.session").Str("type", env.Type).Msg("unexpected envelope")
	}
}

func (s *Session) handleNegotiation(raw json.RawMessage) {
	var blob negotiation
	if err := json.Unmarshal(raw, &blob); err != nil {
		log.Warn().Err(err).Str("module", "client.session").Msg("bad negotiation payload")
		return
	}
	peer := s.currentPeer()
	if peer == nil {
		return
	}
	switch blob.Type {
	case "offer":
		s.setState(StateNegotiating, nil)
		answer, err := peer.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  blob.SDP,
		})
		if err != nil {
			s.negotiationFailure(err)
			return
		}
		s.sendNegotiation(negotiation{Type: "answer", SDP: answer.SDP})
	case "answer":
		if err := peer.ApplyAnswer(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer,
			SDP:  blob.SDP,
		}); err != nil {
			s.negotiationFailure(err)
		}
	case "candidate":
		if blob.Candidate == nil {
			return
		}
		if err := peer.AddICECandidate(*blob.Candidate); err != nil {
			log.Warn().Err(err).Str("module", "client.session").Msg("add ice candidate")
		}
	default:
		log.Warn().Str("module", "client.session").Str("type", blob.Type).Msg("unknown negotiation type")
	}
}

func (s *Session) handlePeerState(st webrtc.PeerConnectionState) {
	switch st {
	case webrtc.PeerConnectionStateConnected:
		s.mu.Lock()
		s.retries = 0
		s.setStateLocked(StateConnected, nil)
		s.mu.Unlock()
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
		s.mu.Lock()
		if s.state == StateClosed {
			s.mu.Unlock()
			return
		}
		s.setStateLocked(StateDisconnected, nil)
		retry := s.retries < s.cfg.MaxRenegotiations
		if retry {
			s.retries++
			s.setStateLocked(StateNegotiating, nil)
		}
		initiator := s.role == domain.RoleInitiator
		s.mu.Unlock()

		if !retry {
			s.fail(domain.ErrNegotiationFailed)
			return
		}
		if initiator {
			s.offer(true)
		}
	}
}

// offer creates and sends a local offer; iceRestart is used for recovery
// after a dropped media path.
func (s *Session) offer(iceRestart bool) {
	peer := s.currentPeer()
	if peer == nil {
		return
	}
	var opts *webrtc.OfferOptions
	if iceRestart {
		opts = &webrtc.OfferOptions{ICERestart: true}
	}
	sdp, err := peer.CreateOffer(opts)
	if err != nil {
		s.negotiationFailure(err)
		return
	}
	s.sendNegotiation(negotiation{Type: "offer", SDP: sdp.SDP})
}

func (s *Session) negotiationFailure(err error) {
	log.Warn().Err(err).Str("module", "client.session").Msg("negotiation error")
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	retry := s.retries < s.cfg.MaxRenegotiations
	if retry {
		s.retries++
	}
	initiator := s.role == domain.RoleInitiator
	s.mu.Unlock()

	if !retry {
		s.fail(fmt.Errorf("%w: %v", domain.ErrNegotiationFailed, err))
		return
	}
	if initiator {
		s.offer(true)
	}
}

func (s *Session) handleRelayError(msg string) {
	s.mu.Lock()
	joined := s.role != ""
	s.mu.Unlock()
	if joined {
		log.Warn().Str("module", "client.session").Str("error", msg).Msg("relay error")
		return
	}
	// The join itself was rejected; terminal for this attempt.
	err := fmt.Errorf("join rejected: %s", msg)
	if msg == "room full" {
		err = domain.ErrRoomFull
	}
	s.fail(err)
}

func (s *Session) sendNegotiation(blob negotiation) {
	s.mu.Lock()
	sig := s.sig
	s.mu.Unlock()
	if sig == nil {
		return
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		return
	}
	if err := sig.Send(domain.Envelope{
		Type:      domain.TypeSignal,
		UserID:    s.cfg.UserID,
		MeetingID: s.cfg.MeetingID,
		Signal:    raw,
	}); err != nil {
		log.Warn().Err(err).Str("module", "client.session").Msg("send negotiation")
	}
}

func (s *Session) currentPeer() PeerConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

func (s *Session) currentRole() domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *Session) fail(err error) {
	s.setState(StateFailed, err)
}

func (s *Session) setState(st State, err error) {
	s.mu.Lock()
	s.setStateLocked(st, err)
	s.mu.Unlock()
}

// setStateLocked emits the transition to Events. Closed is terminal: no
// state replaces it.
func (s *Session) setStateLocked(st State, err error) {
	if s.state == StateClosed && st != StateClosed {
		return
	}
	if s.state == st {
		return
	}
	s.state = st
	select {
	case s.events <- StateChange{State: st, Err: err}:
	default:
	}
}

// Close releases everything the session owns: local media tracks, the peer
// connection and the signaling transport. It is idempotent and legal from
// every state, so navigation away can never leak a camera or microphone
// lock.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		stream, peer, sig := s.stream, s.peer, s.sig
		s.setStateLocked(StateClosed, nil)
		s.mu.Unlock()

		if sig != nil {
			_ = sig.Send(domain.Envelope{
				Type:      domain.TypeLeave,
				UserID:    s.cfg.UserID,
				MeetingID: s.cfg.MeetingID,
			})
			_ = sig.Close()
		}
		if peer != nil {
			peer.Close()
		}
		if stream != nil {
			stream.StopAll()
		}
		close(s.done)
	})
}
