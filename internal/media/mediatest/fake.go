// Package mediatest provides a recording media engine for tests.
package mediatest

import (
	"context"
	"sync"

	"github.com/bhandras/delight/rtc/internal/media"
)

// Engine records calls made by the call runtime.
type Engine struct {
	mu sync.Mutex

	Offer    string
	StartErr error
	remote   string
	starts   int
	stops    int
	running  bool
	audio    bool
	video    bool
}

var _ media.Engine = (*Engine)(nil)

// New returns a fake engine with a fixed offer.
func New() *Engine {
	return &Engine{Offer: "v=0 local", audio: true, video: true}
}

// Factory returns a media.Factory that always hands out e.
func (e *Engine) Factory() media.Factory {
	return func() media.Engine { return e }
}

// CreateOffer implements media.Engine.
func (e *Engine) CreateOffer(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Offer, nil
}

// SetRemoteSDP implements media.Engine.
func (e *Engine) SetRemoteSDP(_ context.Context, sdp string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.remote = sdp
	return nil
}

// Start implements media.Engine.
func (e *Engine) Start(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts++
	if e.StartErr != nil {
		return e.StartErr
	}
	e.running = true
	return nil
}

// Stop implements media.Engine.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	e.running = false
}

// Running implements media.Engine.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// SetSendingAudio implements media.Engine.
func (e *Engine) SetSendingAudio(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audio = on
}

// SendingAudio implements media.Engine.
func (e *Engine) SendingAudio() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.audio
}

// SetSendingVideo implements media.Engine.
func (e *Engine) SetSendingVideo(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.video = on
}

// SendingVideo implements media.Engine.
func (e *Engine) SendingVideo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.video
}

// Remote returns the last remote SDP applied.
func (e *Engine) Remote() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remote
}

// Starts returns how many times Start was called.
func (e *Engine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

// Stops returns how many times Stop was called.
func (e *Engine) Stops() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stops
}
