package client

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/mentorspark/sessiond/internal/domain"
)

// MediaSource acquires the local capture device. Acquire fails with
// domain.ErrPermissionDenied when the user declines and with
// domain.ErrDeviceUnavailable when no device exists; both are terminal for
// the current attempt.
//
// The device is exclusively owned: a source must refuse a second Acquire
// until the previous stream is stopped.
type MediaSource interface {
	Acquire(ctx context.Context) (MediaStream, error)
}

// MediaStream is a live capture handle. StopAll releases every track and
// must be safe to call more than once.
type MediaStream interface {
	Tracks() []webrtc.TrackLocal
	StopAll()
}

// silentStream backs the CLI and tests: a real pion audio track that
// carries silence. Writers stop when the stream is stopped.
type silentStream struct {
	tracks []webrtc.TrackLocal

	mu      sync.Mutex
	stopped bool
}

func (s *silentStream) Tracks() []webrtc.TrackLocal { return s.tracks }

func (s *silentStream) StopAll() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

func (s *silentStream) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// SilentSource produces an Opus track of silence. It enforces exclusive
// ownership the way a real capture device does: acquiring again while a
// stream is live fails with ErrDeviceUnavailable.
type SilentSource struct {
	mu      sync.Mutex
	current *silentStream
}

func NewSilentSource() *SilentSource { return &SilentSource{} }

func (s *SilentSource) Acquire(ctx context.Context) (MediaStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && !s.current.isStopped() {
		return nil, domain.ErrDeviceUnavailable
	}

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "sessiond-silent",
	)
	if err != nil {
		return nil, domain.ErrDeviceUnavailable
	}
	stream := &silentStream{tracks: []webrtc.TrackLocal{audio}}
	s.current = stream

	go writeSilence(ctx, audio, stream)
	return stream, nil
}

func writeSilence(ctx context.Context, track *webrtc.TrackLocalStaticSample, stream *silentStream) {
	// A 20ms opus frame of silence.
	frame := media.Sample{Data: []byte{0xf8, 0xff, 0xfe}, Duration: 20 * time.Millisecond}
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stream.isStopped() {
				return
			}
			if err := track.WriteSample(frame); err != nil {
				return
			}
		}
	}
}
