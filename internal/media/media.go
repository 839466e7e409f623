// Package media defines the media engine driven by call state transitions.
// Capture, encoding and transport of media are outside this module; the
// engine is an opaque collaborator.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrNoRemoteSDP is returned when starting media without a remote answer.
var ErrNoRemoteSDP = errors.New("media: remote sdp not set")

// Engine is the media stack of a single call.
type Engine interface {
	// CreateOffer returns the local SDP offer.
	CreateOffer(ctx context.Context) (string, error)
	// SetRemoteSDP applies the remote answer.
	SetRemoteSDP(ctx context.Context, sdp string) error
	// Start starts sending and receiving media.
	Start(ctx context.Context) error
	// Stop tears media down. It is safe to call more than once.
	Stop()
	// Running reports whether media is flowing.
	Running() bool

	SetSendingAudio(on bool)
	SendingAudio() bool
	SetSendingVideo(on bool)
	SendingVideo() bool
}

// Factory creates an engine per call.
type Factory func() Engine

// NullEngine negotiates placeholder SDP and moves no media. It backs the
// CLI, which has no capture devices.
type NullEngine struct {
	mu        sync.Mutex
	sessionID string
	remote    string
	running   bool
	audio     bool
	video     bool
}

var _ Engine = (*NullEngine)(nil)

// NewNullEngine returns an engine that sends audio and video by default.
func NewNullEngine() Engine {
	return &NullEngine{sessionID: uuid.NewString(), audio: true, video: true}
}

// CreateOffer implements Engine.
func (e *NullEngine) CreateOffer(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fmt.Sprintf("v=0\r\no=- %s 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n", e.sessionID), nil
}

// SetRemoteSDP implements Engine.
func (e *NullEngine) SetRemoteSDP(_ context.Context, sdp string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.remote = sdp
	return nil
}

// Start implements Engine.
func (e *NullEngine) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.remote == "" {
		return ErrNoRemoteSDP
	}
	e.running = true
	return nil
}

// Stop implements Engine.
func (e *NullEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
}

// Running implements Engine.
func (e *NullEngine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// SetSendingAudio implements Engine.
func (e *NullEngine) SetSendingAudio(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audio = on
}

// SendingAudio implements Engine.
func (e *NullEngine) SendingAudio() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.audio
}

// SetSendingVideo implements Engine.
func (e *NullEngine) SetSendingVideo(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.video = on
}

// SendingVideo implements Engine.
func (e *NullEngine) SendingVideo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.video
}
