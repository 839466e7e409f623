package call

import (
	"github.com/bhandras/delight/rtc/internal/actor"
	"github.com/bhandras/delight/rtc/internal/locus"
)

// State is the loop-owned state of a call.
type State struct {
	URL       string
	DeviceURL string
	Direction Direction
	Status    Status

	Model        *locus.Model
	Memberships  []Membership
	Capabilities Capabilities

	// ConnectedFired latches after the connected notification went out.
	ConnectedFired bool
	EverConnected  bool
	MediaStarted   bool
	SDPExchanging  bool
	KeepAlive      bool
	Resyncing      bool
	// HangupRequested is set once the local side asked to leave or cancel.
	HangupRequested bool

	Reason DisconnectReason
}

// Inputs

// evModel delivers a snapshot from a REST response or a push event.
type evModel struct {
	actor.InputBase
	Model  *locus.Model
	Source string
}

// evResyncDone completes an out-of-band resync.
type evResyncDone struct {
	actor.InputBase
	Model *locus.Model
	Err   error
}

// evSDPExchanged completes an SDP exchange.
type evSDPExchanged struct {
	actor.InputBase
	Model *locus.Model
	Err   error
}

// evMediaStarted reports the outcome of starting the media engine.
type evMediaStarted struct {
	actor.InputBase
	Err error
}

type cmdAnswer struct {
	actor.InputBase
	Reply chan error
}

type cmdReject struct {
	actor.InputBase
	Reply chan error
}

type cmdHangup struct {
	actor.InputBase
	Reply chan error
}

type cmdSetSending struct {
	actor.InputBase
	Video bool
	On    bool
	Reply chan error
}

type cmdLetIn struct {
	actor.InputBase
	MembershipIDs []string
	Reply         chan error
}

// Effects

type effNotify struct {
	actor.EffectBase
	Event Event
}

type effResync struct {
	actor.EffectBase
	URL string
}

type effExchangeSDP struct {
	actor.EffectBase
	SelfURL string
}

type effStartMedia struct {
	actor.EffectBase
	RemoteSDP string
}

type effStopMedia struct {
	actor.EffectBase
}

type effStartKeepAlive struct {
	actor.EffectBase
	URL      string
	Interval int
}

type effStopKeepAlive struct {
	actor.EffectBase
}

type effJoin struct {
	actor.EffectBase
	Reply chan error
}

type effDecline struct {
	actor.EffectBase
	SelfURL string
	Reply   chan error
}

type effLeave struct {
	actor.EffectBase
	SelfURL string
	Reply   chan error
}

type effSetSending struct {
	actor.EffectBase
	Video bool
	On    bool
	Reply chan error
}

type effAdmit struct {
	actor.EffectBase
	MembershipIDs []string
	Reply         chan error
}

type effTerminated struct {
	actor.EffectBase
}
