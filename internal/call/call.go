package call

import (
	"context"
	"errors"
	"fmt"

	"github.com/bhandras/delight/rtc/internal/actor"
	"github.com/bhandras/delight/rtc/internal/locus"
)

// Call is a handle to one call. Its state is owned by a single loop; all
// accessors return snapshots.
type Call struct {
	url       string
	direction Direction
	actor     *actor.Actor[State]
	runtime   *Runtime
}

// URL returns the call URL.
func (c *Call) URL() string { return c.url }

// Direction tells whether the call was dialed or received.
func (c *Call) Direction() Direction { return c.direction }

// Status returns the current call status.
func (c *Call) Status() Status { return c.actor.State().Status }

// DisconnectReason returns why the call ended, or "" while it is live.
func (c *Call) DisconnectReason() DisconnectReason { return c.actor.State().Reason }

// Model returns a copy of the current call state.
func (c *Call) Model() *locus.Model { return c.actor.State().Model.Clone() }

// Memberships returns the participants of the call.
func (c *Call) Memberships() []Membership {
	return append([]Membership(nil), c.actor.State().Memberships...)
}

// Capabilities returns what the local participant may do.
func (c *Call) Capabilities() Capabilities { return c.actor.State().Capabilities }

// SendingAudio reports whether local audio is being sent.
func (c *Call) SendingAudio() bool { return c.runtime.engine.SendingAudio() }

// SendingVideo reports whether local video is being sent.
func (c *Call) SendingVideo() bool { return c.runtime.engine.SendingVideo() }

// SetObserver replaces the observer for this call.
func (c *Call) SetObserver(o Observer) { c.runtime.setObserver(o) }

// Done is closed once the call has terminated and its loop exited.
func (c *Call) Done() <-chan struct{} { return c.actor.Done() }

// Answer joins an incoming call.
func (c *Call) Answer(ctx context.Context) error {
	return c.ask(ctx, func(r chan error) actor.Input { return cmdAnswer{Reply: r} })
}

// Reject declines an incoming call.
func (c *Call) Reject(ctx context.Context) error {
	return c.ask(ctx, func(r chan error) actor.Input { return cmdReject{Reply: r} })
}

// Hangup leaves the call, or cancels it before it connected.
func (c *Call) Hangup(ctx context.Context) error {
	return c.ask(ctx, func(r chan error) actor.Input { return cmdHangup{Reply: r} })
}

// SetSendingAudio toggles local audio.
func (c *Call) SetSendingAudio(ctx context.Context, on bool) error {
	return c.ask(ctx, func(r chan error) actor.Input {
		return cmdSetSending{Video: false, On: on, Reply: r}
	})
}

// SetSendingVideo toggles local video.
func (c *Call) SetSendingVideo(ctx context.Context, on bool) error {
	return c.ask(ctx, func(r chan error) actor.Input {
		return cmdSetSending{Video: true, On: on, Reply: r}
	})
}

// LetIn admits waiting memberships from the lobby. Only hosts and
// moderators may admit.
func (c *Call) LetIn(ctx context.Context, membershipIDs ...string) error {
	ids := append([]string(nil), membershipIDs...)
	return c.ask(ctx, func(r chan error) actor.Input {
		return cmdLetIn{MembershipIDs: ids, Reply: r}
	})
}

// update feeds a new snapshot of this call into its loop.
func (c *Call) update(ctx context.Context, m *locus.Model, source string) error {
	err := c.actor.Send(ctx, evModel{Model: m, Source: source})
	if errors.Is(err, actor.ErrStopped) {
		return nil
	}
	return err
}

func (c *Call) ask(ctx context.Context, mk func(chan error) actor.Input) error {
	err, askErr := actor.Ask(ctx, c.actor, mk)
	if errors.Is(askErr, actor.ErrStopped) {
		return fmt.Errorf("%w: call has ended", ErrIllegalStatus)
	}
	if askErr != nil {
		return askErr
	}
	return err
}

func (c *Call) stop() {
	c.actor.Stop()
}
