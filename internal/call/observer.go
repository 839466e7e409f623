package call

import "github.com/bhandras/delight/rtc/internal/locus"

// Observer receives call notifications. Calls are delivered one at a time,
// in the order the call produced them.
type Observer interface {
	OnRinging(c *Call)
	OnWaiting(c *Call, reason WaitReason)
	OnConnected(c *Call)
	OnDisconnected(c *Call, reason DisconnectReason)
	OnCallMembershipChanged(c *Call, ev MembershipEvent)
	OnMediaChanged(c *Call, ev MediaEvent)
	OnCapabilitiesChanged(c *Call, caps Capabilities)
	OnScheduleChanged(c *Call, meetings []locus.Meeting)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	Ringing             func(c *Call)
	Waiting             func(c *Call, reason WaitReason)
	Connected           func(c *Call)
	Disconnected        func(c *Call, reason DisconnectReason)
	MembershipChanged   func(c *Call, ev MembershipEvent)
	MediaChanged        func(c *Call, ev MediaEvent)
	CapabilitiesChanged func(c *Call, caps Capabilities)
	ScheduleChanged     func(c *Call, meetings []locus.Meeting)
}

var _ Observer = ObserverFuncs{}

func (o ObserverFuncs) OnRinging(c *Call) {
	if o.Ringing != nil {
		o.Ringing(c)
	}
}

func (o ObserverFuncs) OnWaiting(c *Call, reason WaitReason) {
	if o.Waiting != nil {
		o.Waiting(c, reason)
	}
}

func (o ObserverFuncs) OnConnected(c *Call) {
	if o.Connected != nil {
		o.Connected(c)
	}
}

func (o ObserverFuncs) OnDisconnected(c *Call, reason DisconnectReason) {
	if o.Disconnected != nil {
		o.Disconnected(c, reason)
	}
}

func (o ObserverFuncs) OnCallMembershipChanged(c *Call, ev MembershipEvent) {
	if o.MembershipChanged != nil {
		o.MembershipChanged(c, ev)
	}
}

func (o ObserverFuncs) OnMediaChanged(c *Call, ev MediaEvent) {
	if o.MediaChanged != nil {
		o.MediaChanged(c, ev)
	}
}

func (o ObserverFuncs) OnCapabilitiesChanged(c *Call, caps Capabilities) {
	if o.CapabilitiesChanged != nil {
		o.CapabilitiesChanged(c, caps)
	}
}

func (o ObserverFuncs) OnScheduleChanged(c *Call, meetings []locus.Meeting) {
	if o.ScheduleChanged != nil {
		o.ScheduleChanged(c, meetings)
	}
}

func deliver(o Observer, c *Call, ev Event) {
	if o == nil {
		return
	}
	switch e := ev.(type) {
	case RingingEvent:
		o.OnRinging(c)
	case WaitingEvent:
		o.OnWaiting(c, e.Reason)
	case ConnectedEvent:
		o.OnConnected(c)
	case DisconnectedEvent:
		o.OnDisconnected(c, e.Reason)
	case MembershipChangedEvent:
		o.OnCallMembershipChanged(c, e.Event)
	case MediaChangedEvent:
		o.OnMediaChanged(c, e.Event)
	case CapabilitiesChangedEvent:
		o.OnCapabilitiesChanged(c, e.Capabilities)
	case ScheduleChangedEvent:
		o.OnScheduleChanged(c, e.Meetings)
	}
}
