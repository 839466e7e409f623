package call

import (
	"fmt"

	"github.com/bhandras/delight/rtc/internal/actor"
	"github.com/bhandras/delight/rtc/internal/locus"
)

// Reduce is the call reducer.
func Reduce(state State, input actor.Input) (State, []actor.Effect) {
	switch in := input.(type) {
	case evModel:
		return reduceModel(state, in.Model)
	case evResyncDone:
		state.Resyncing = false
		if in.Err != nil || in.Model == nil {
			return state, nil
		}
		return reduceModel(state, in.Model)
	case evSDPExchanged:
		state.SDPExchanging = false
		if in.Err != nil || in.Model == nil {
			return state, nil
		}
		return reduceModel(state, in.Model)
	case evMediaStarted:
		return reduceMediaStarted(state, in)

	case cmdAnswer:
		return reduceAnswer(state, in)
	case cmdReject:
		return reduceReject(state, in)
	case cmdHangup:
		return reduceHangup(state, in)
	case cmdSetSending:
		return reduceSetSending(state, in)
	case cmdLetIn:
		return reduceLetIn(state, in)
	default:
		return state, nil
	}
}

func reduceModel(state State, incoming *locus.Model) (State, []actor.Effect) {
	if state.Status == StatusDisconnected {
		return state, nil
	}

	var effects []actor.Effect
	next := locus.Reconcile(state.Model, incoming, func() {
		if state.Resyncing {
			return
		}
		state.Resyncing = true
		effects = append(effects, effResync{URL: resyncURL(state.Model, incoming)})
	})
	if next == nil {
		return state, effects
	}

	prev := state.Model
	prevMembers := state.Memberships
	state.Model = next
	state.Memberships = membershipsFrom(next, state.DeviceURL)

	for _, ev := range diffMemberships(prevMembers, state.Memberships) {
		effects = append(effects, notify(MembershipChangedEvent{Event: ev}))
	}
	floorMembers, floorMedia := diffFloor(prev, next, state.Memberships, prevMembers)
	for _, ev := range floorMembers {
		effects = append(effects, notify(MembershipChangedEvent{Event: ev}))
	}
	for _, ev := range floorMedia {
		effects = append(effects, notify(MediaChangedEvent{Event: ev}))
	}
	for _, ev := range diffRemoteMedia(prevMembers, state.Memberships) {
		effects = append(effects, notify(MediaChangedEvent{Event: ev}))
	}
	if caps := capabilitiesOf(next); caps != state.Capabilities {
		state.Capabilities = caps
		effects = append(effects, notify(CapabilitiesChangedEvent{Capabilities: caps}))
	}
	if prev != nil && scheduleChanged(prev.Meetings, next.Meetings) {
		meetings := append([]locus.Meeting(nil), next.Meetings...)
		effects = append(effects, notify(ScheduleChangedEvent{Meetings: meetings}))
	}

	state, transition := advance(state)
	return state, append(effects, transition...)
}

// advance moves the status forward according to the current model.
func advance(state State) (State, []actor.Effect) {
	m := state.Model
	callState := m.CallState()
	self := m.SelfState()

	var next Status
	switch {
	case callState == locus.CallInactive || callState == locus.CallTerminating ||
		self == locus.StateLeft || self == locus.StateDeclined:
		next = StatusDisconnected
	case self == locus.StateJoined && (m.IsGroup() || m.AnyRemoteJoined()):
		next = StatusConnected
	case self == locus.StateIdle && m.SelfIntent(state.DeviceURL) == locus.IntentWait:
		next = StatusWaiting
	case callState == locus.CallActive && state.Status == StatusInitiated && shouldRing(state):
		next = StatusRinging
	default:
		next = state.Status
	}

	var effects []actor.Effect
	if state.Status == StatusWaiting && next != StatusWaiting && state.KeepAlive {
		state.KeepAlive = false
		effects = append(effects, effStopKeepAlive{})
	}

	switch next {
	case StatusDisconnected:
		return disconnect(state, effects)
	case StatusConnected:
		state.Status = StatusConnected
		state.EverConnected = true
		if !state.ConnectedFired {
			state.ConnectedFired = true
			effects = append(effects, notify(ConnectedEvent{}))
		}
		var media []actor.Effect
		state, media = mediaEffects(state)
		return state, append(effects, media...)
	case StatusWaiting:
		if state.Status == StatusWaiting {
			return state, effects
		}
		state.Status = StatusWaiting
		effects = append(effects, notify(WaitingEvent{Reason: waitReason(state)}))
		if d := m.SelfDevice(state.DeviceURL); d != nil && d.KeepAliveURL != "" && !state.KeepAlive {
			state.KeepAlive = true
			effects = append(effects, effStartKeepAlive{URL: d.KeepAliveURL, Interval: d.KeepAliveSecs})
		}
		return state, effects
	case StatusRinging:
		if state.Status == StatusRinging {
			return state, effects
		}
		state.Status = StatusRinging
		effects = append(effects, notify(RingingEvent{}))
		var media []actor.Effect
		state, media = mediaEffects(state)
		return state, append(effects, media...)
	default:
		return state, effects
	}
}

func shouldRing(state State) bool {
	m := state.Model
	if state.Direction == Incoming {
		return m.SelfAlert() == locus.AlertFull
	}
	return m.SelfState() == locus.StateJoined && !m.AnyRemoteJoined()
}

func waitReason(state State) WaitReason {
	d := state.Model.SelfDevice(state.DeviceURL)
	if d != nil && d.Intent != nil && d.Intent.Reason == "MEETING_NOT_STARTED" {
		return WaitMeetingNotStarted
	}
	return WaitLobby
}

// mediaEffects starts media when a remote SDP is known, and otherwise asks
// for an SDP exchange first.
func mediaEffects(state State) (State, []actor.Effect) {
	if state.MediaStarted {
		return state, nil
	}
	if sdp := state.Model.RemoteSDP(); sdp != "" {
		state.MediaStarted = true
		return state, []actor.Effect{effStartMedia{RemoteSDP: sdp}}
	}
	selfURL := state.Model.SelfURL()
	if state.SDPExchanging || selfURL == "" {
		return state, nil
	}
	state.SDPExchanging = true
	return state, []actor.Effect{effExchangeSDP{SelfURL: selfURL}}
}

func disconnect(state State, effects []actor.Effect) (State, []actor.Effect) {
	state.Reason = disconnectReason(state)
	state.Status = StatusDisconnected
	if state.KeepAlive {
		state.KeepAlive = false
		effects = append(effects, effStopKeepAlive{})
	}
	state.MediaStarted = false
	effects = append(effects,
		effStopMedia{},
		notify(DisconnectedEvent{Reason: state.Reason}),
		effTerminated{},
	)
	return state, effects
}

func disconnectReason(state State) DisconnectReason {
	m := state.Model
	switch self := m.SelfState(); {
	case self == locus.StateDeclined:
		return ReasonLocalDecline
	case self == locus.StateLeft && state.HangupRequested:
		if state.EverConnected {
			return ReasonLocalLeft
		}
		return ReasonLocalCancel
	case self == locus.StateLeft:
		return ReasonCallEnded
	case !state.EverConnected && state.Direction == Outgoing && anyRemoteDeclined(m):
		return ReasonRemoteDecline
	case !state.EverConnected && state.Direction == Incoming:
		return ReasonRemoteCancel
	case state.EverConnected && !m.IsGroup():
		return ReasonRemoteLeft
	default:
		return ReasonCallEnded
	}
}

func anyRemoteDeclined(m *locus.Model) bool {
	for _, p := range m.Remotes() {
		if p.State == locus.StateDeclined {
			return true
		}
	}
	return false
}

func resyncURL(current, incoming *locus.Model) string {
	if current != nil && current.SyncURL != "" {
		return current.SyncURL
	}
	if incoming.SyncURL != "" {
		return incoming.SyncURL
	}
	if current != nil && current.URL != "" {
		return current.URL
	}
	return incoming.URL
}

func reduceMediaStarted(state State, ev evMediaStarted) (State, []actor.Effect) {
	if ev.Err != nil {
		state.MediaStarted = false
		return state, []actor.Effect{notify(MediaChangedEvent{Event: MediaEvent{Kind: MediaFailed}})}
	}
	if state.Status == StatusDisconnected {
		return state, []actor.Effect{effStopMedia{}}
	}
	return state, []actor.Effect{notify(MediaChangedEvent{Event: MediaEvent{Kind: MediaStarted, On: true}})}
}

func reduceAnswer(state State, cmd cmdAnswer) (State, []actor.Effect) {
	if state.Direction == Outgoing {
		reply(cmd.Reply, fmt.Errorf("%w: cannot answer an outgoing call", ErrIllegalOperation))
		return state, nil
	}
	if state.Status != StatusInitiated && state.Status != StatusRinging {
		reply(cmd.Reply, fmt.Errorf("%w: answer while %s", ErrIllegalStatus, state.Status))
		return state, nil
	}
	return state, []actor.Effect{effJoin{Reply: cmd.Reply}}
}

func reduceReject(state State, cmd cmdReject) (State, []actor.Effect) {
	if state.Direction == Outgoing {
		reply(cmd.Reply, fmt.Errorf("%w: cannot reject an outgoing call", ErrIllegalOperation))
		return state, nil
	}
	if state.Status != StatusInitiated && state.Status != StatusRinging {
		reply(cmd.Reply, fmt.Errorf("%w: reject while %s", ErrIllegalStatus, state.Status))
		return state, nil
	}
	selfURL := state.Model.SelfURL()
	if selfURL == "" {
		reply(cmd.Reply, ErrMissingSelfURL)
		return state, nil
	}
	return state, []actor.Effect{effDecline{SelfURL: selfURL, Reply: cmd.Reply}}
}

func reduceHangup(state State, cmd cmdHangup) (State, []actor.Effect) {
	if state.Status == StatusDisconnected {
		reply(cmd.Reply, fmt.Errorf("%w: hangup while %s", ErrIllegalStatus, state.Status))
		return state, nil
	}
	selfURL := state.Model.SelfURL()
	if selfURL == "" {
		reply(cmd.Reply, ErrMissingSelfURL)
		return state, nil
	}
	state.HangupRequested = true
	return state, []actor.Effect{effLeave{SelfURL: selfURL, Reply: cmd.Reply}}
}

func reduceSetSending(state State, cmd cmdSetSending) (State, []actor.Effect) {
	if state.Status != StatusConnected {
		reply(cmd.Reply, fmt.Errorf("%w: media toggle while %s", ErrIllegalStatus, state.Status))
		return state, nil
	}
	return state, []actor.Effect{effSetSending{Video: cmd.Video, On: cmd.On, Reply: cmd.Reply}}
}

func reduceLetIn(state State, cmd cmdLetIn) (State, []actor.Effect) {
	if state.Status != StatusConnected {
		reply(cmd.Reply, fmt.Errorf("%w: admit while %s", ErrIllegalStatus, state.Status))
		return state, nil
	}
	if !state.Capabilities.CanLetIn {
		reply(cmd.Reply, fmt.Errorf("%w: not a host or moderator", ErrIllegalOperation))
		return state, nil
	}
	if len(cmd.MembershipIDs) == 0 {
		reply(cmd.Reply, nil)
		return state, nil
	}
	for _, id := range cmd.MembershipIDs {
		found := false
		for _, m := range state.Memberships {
			if m.ID == id && m.State == MembershipWaiting {
				found = true
				break
			}
		}
		if !found {
			reply(cmd.Reply, fmt.Errorf("%w: %s is not waiting", ErrUnknownMembership, id))
			return state, nil
		}
	}
	ids := append([]string(nil), cmd.MembershipIDs...)
	return state, []actor.Effect{effAdmit{MembershipIDs: ids, Reply: cmd.Reply}}
}

func notify(ev Event) actor.Effect {
	return effNotify{Event: ev}
}

func reply(ch chan error, err error) {
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}
