package call

import (
	"testing"

	"github.com/bhandras/delight/rtc/internal/actor"
	"github.com/bhandras/delight/rtc/internal/locus"
	"github.com/stretchr/testify/require"
)

const (
	testCallURL   = "https://locus/calls/1"
	testSelfURL   = "https://locus/calls/1/participant/me"
	testSyncURL   = "https://locus/calls/1/sync"
	testDeviceURL = "https://wdm/devices/dev"
)

func seq(n int64) *locus.Sequence {
	return &locus.Sequence{Entries: []int64{n}}
}

// callModel builds a one-to-one call snapshot.
func callModel(n int64, callState, self, remote string) *locus.Model {
	return &locus.Model{
		URL:       testCallURL,
		Sequence:  seq(n),
		SyncURL:   testSyncURL,
		FullState: &locus.FullState{State: callState, Type: locus.TypeCall},
		Host:      &locus.Person{ID: "alice-person"},
		Self: &locus.Participant{
			ID:     "me",
			URL:    testSelfURL,
			State:  self,
			Person: locus.Person{ID: "me-person"},
		},
		Participants: []locus.Participant{
			{ID: "me", State: self, Person: locus.Person{ID: "me-person"}},
			{ID: "alice", State: remote, Person: locus.Person{ID: "alice-person", Name: "Alice"}},
		},
	}
}

func withRemoteSDP(m *locus.Model, sdp string) *locus.Model {
	m.MediaConnections = []locus.MediaConnection{{MediaID: "m1", RemoteSDP: sdp}}
	return m
}

func findEffect[T actor.Effect](effects []actor.Effect) (T, bool) {
	for _, e := range effects {
		if v, ok := e.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func countNotified[T Event](effects []actor.Effect) int {
	n := 0
	for _, e := range effects {
		if ev, ok := e.(effNotify); ok {
			if _, ok := ev.Event.(T); ok {
				n++
			}
		}
	}
	return n
}

func reduceAll(state State, inputs ...actor.Input) (State, []actor.Effect) {
	var all []actor.Effect
	for _, in := range inputs {
		var effects []actor.Effect
		state, effects = Reduce(state, in)
		all = append(all, effects...)
	}
	return state, all
}

func incomingState() State {
	return State{URL: testCallURL, DeviceURL: testDeviceURL, Direction: Incoming, Status: StatusInitiated}
}

func outgoingState() State {
	return State{URL: testCallURL, DeviceURL: testDeviceURL, Direction: Outgoing, Status: StatusInitiated}
}

func TestIncomingCallRingsThenConnects(t *testing.T) {
	ringing := callModel(1, locus.CallActive, locus.StateIdle, locus.StateJoined)
	ringing.Self.AlertType = &locus.AlertType{Action: locus.AlertFull}

	state, effects := Reduce(incomingState(), evModel{Model: ringing})
	require.Equal(t, StatusRinging, state.Status)
	require.Equal(t, 1, countNotified[RingingEvent](effects))
	require.Empty(t, state.Model.RemoteSDP())
	ex, exchanging := findEffect[effExchangeSDP](effects)
	require.True(t, exchanging)
	require.Equal(t, testSelfURL, ex.SelfURL)
	require.True(t, state.SDPExchanging)

	joined := withRemoteSDP(callModel(2, locus.CallActive, locus.StateJoined, locus.StateJoined), "v=0 remote")
	state, effects = Reduce(state, evModel{Model: joined})
	require.Equal(t, StatusConnected, state.Status)
	require.Equal(t, 1, countNotified[ConnectedEvent](effects))
	start, ok := findEffect[effStartMedia](effects)
	require.True(t, ok)
	require.Equal(t, "v=0 remote", start.RemoteSDP)

	again := withRemoteSDP(callModel(3, locus.CallActive, locus.StateJoined, locus.StateJoined), "v=0 remote")
	state, effects = Reduce(state, evModel{Model: again})
	require.Equal(t, StatusConnected, state.Status)
	require.Zero(t, countNotified[ConnectedEvent](effects))
	_, ok = findEffect[effStartMedia](effects)
	require.False(t, ok)
}

func TestIncomingRingingWithRemoteSDPStartsMedia(t *testing.T) {
	m := withRemoteSDP(callModel(1, locus.CallActive, locus.StateIdle, locus.StateJoined), "v=0 offer")
	m.Self.AlertType = &locus.AlertType{Action: locus.AlertFull}

	state, effects := Reduce(incomingState(), evModel{Model: m})
	require.Equal(t, StatusRinging, state.Status)
	_, exchanging := findEffect[effExchangeSDP](effects)
	require.False(t, exchanging)
	start, ok := findEffect[effStartMedia](effects)
	require.True(t, ok)
	require.Equal(t, "v=0 offer", start.RemoteSDP)
}

func TestIncomingWithoutFullAlertDoesNotRing(t *testing.T) {
	m := callModel(1, locus.CallActive, locus.StateIdle, locus.StateJoined)

	state, effects := Reduce(incomingState(), evModel{Model: m})
	require.Equal(t, StatusInitiated, state.Status)
	require.Zero(t, countNotified[RingingEvent](effects))
}

func TestOutgoingRingingExchangesSDP(t *testing.T) {
	m := callModel(1, locus.CallActive, locus.StateJoined, locus.StateNotified)

	state, effects := Reduce(outgoingState(), evModel{Model: m})
	require.Equal(t, StatusRinging, state.Status)
	ex, ok := findEffect[effExchangeSDP](effects)
	require.True(t, ok)
	require.Equal(t, testSelfURL, ex.SelfURL)
	require.True(t, state.SDPExchanging)

	// A second update while the exchange is in flight does not start
	// another one.
	_, effects = Reduce(state, evModel{Model: callModel(2, locus.CallActive, locus.StateJoined, locus.StateNotified)})
	_, ok = findEffect[effExchangeSDP](effects)
	require.False(t, ok)

	answered := withRemoteSDP(callModel(3, locus.CallActive, locus.StateJoined, locus.StateNotified), "v=0 answer")
	state, _ = Reduce(state, evSDPExchanged{Model: answered})
	require.False(t, state.SDPExchanging)
	require.Equal(t, StatusRinging, state.Status)
	require.Equal(t, "v=0 answer", state.Model.RemoteSDP())
}

func TestSequenceGapRequestsSingleResync(t *testing.T) {
	state, _ := Reduce(incomingState(), evModel{Model: callModel(10, locus.CallActive, locus.StateJoined, locus.StateJoined)})
	require.Equal(t, StatusConnected, state.Status)

	gap := &locus.Model{URL: testCallURL, BaseSequence: seq(12), Sequence: seq(13)}
	state, effects := Reduce(state, evModel{Model: gap})
	resync, ok := findEffect[effResync](effects)
	require.True(t, ok)
	require.Equal(t, testSyncURL, resync.URL)
	require.True(t, state.Resyncing)
	require.Equal(t, int64(10), state.Model.Sequence.Max())

	_, effects = Reduce(state, evModel{Model: gap})
	_, ok = findEffect[effResync](effects)
	require.False(t, ok)

	state, _ = Reduce(state, evResyncDone{Model: callModel(13, locus.CallActive, locus.StateJoined, locus.StateJoined)})
	require.False(t, state.Resyncing)
	require.Equal(t, int64(13), state.Model.Sequence.Max())
}

func TestDeltaAppliesToCurrentModel(t *testing.T) {
	state, _ := Reduce(incomingState(), evModel{Model: callModel(10, locus.CallActive, locus.StateJoined, locus.StateJoined)})

	delta := &locus.Model{
		URL:          testCallURL,
		BaseSequence: seq(10),
		Sequence:     seq(11),
		Participants: []locus.Participant{{ID: "alice", State: locus.StateLeft, Person: locus.Person{ID: "alice-person"}}},
		FullState:    &locus.FullState{State: locus.CallInactive, Type: locus.TypeCall},
	}
	state, effects := Reduce(state, evModel{Model: delta})
	require.Equal(t, StatusDisconnected, state.Status)
	require.Equal(t, ReasonRemoteLeft, state.Reason)
	require.Equal(t, 1, countNotified[DisconnectedEvent](effects))
	_, ok := findEffect[effTerminated](effects)
	require.True(t, ok)
	_, ok = findEffect[effStopMedia](effects)
	require.True(t, ok)

	// Nothing happens after the call ended.
	_, effects = Reduce(state, evModel{Model: callModel(20, locus.CallActive, locus.StateJoined, locus.StateJoined)})
	require.Empty(t, effects)
}

func TestHangupBeforeConnectIsCancel(t *testing.T) {
	state, _ := Reduce(outgoingState(), evModel{Model: callModel(1, locus.CallActive, locus.StateJoined, locus.StateNotified)})
	require.Equal(t, StatusRinging, state.Status)

	reply := make(chan error, 1)
	state, effects := Reduce(state, cmdHangup{Reply: reply})
	leave, ok := findEffect[effLeave](effects)
	require.True(t, ok)
	require.Equal(t, testSelfURL, leave.SelfURL)
	require.True(t, state.HangupRequested)

	state, _ = Reduce(state, evModel{Model: callModel(2, locus.CallActive, locus.StateLeft, locus.StateNotified)})
	require.Equal(t, StatusDisconnected, state.Status)
	require.Equal(t, ReasonLocalCancel, state.Reason)
}

func TestRemoteDeclineEndsOutgoingCall(t *testing.T) {
	state, _ := reduceAll(outgoingState(),
		evModel{Model: callModel(1, locus.CallActive, locus.StateJoined, locus.StateNotified)},
		evModel{Model: callModel(2, locus.CallInactive, locus.StateJoined, locus.StateDeclined)},
	)
	require.Equal(t, StatusDisconnected, state.Status)
	require.Equal(t, ReasonRemoteDecline, state.Reason)
}

func TestIllegalOperations(t *testing.T) {
	state, _ := Reduce(outgoingState(), evModel{Model: callModel(1, locus.CallActive, locus.StateJoined, locus.StateNotified)})

	reply := make(chan error, 1)
	_, effects := Reduce(state, cmdAnswer{Reply: reply})
	require.Empty(t, effects)
	require.ErrorIs(t, <-reply, ErrIllegalOperation)

	_, effects = Reduce(state, cmdReject{Reply: reply})
	require.Empty(t, effects)
	require.ErrorIs(t, <-reply, ErrIllegalOperation)

	_, effects = Reduce(state, cmdSetSending{On: false, Reply: reply})
	require.Empty(t, effects)
	require.ErrorIs(t, <-reply, ErrIllegalStatus)

	incoming, _ := Reduce(incomingState(), evModel{Model: callModel(1, locus.CallActive, locus.StateJoined, locus.StateJoined)})
	require.Equal(t, StatusConnected, incoming.Status)
	_, effects = Reduce(incoming, cmdAnswer{Reply: reply})
	require.Empty(t, effects)
	require.ErrorIs(t, <-reply, ErrIllegalStatus)
}

func meetingModel(n int64, selfState string, selfDevice locus.Device, extra ...locus.Participant) *locus.Model {
	m := callModel(n, locus.CallActive, selfState, locus.StateJoined)
	m.FullState.Type = locus.TypeMeeting
	m.Self.Devices = []locus.Device{selfDevice}
	m.Participants[0].Devices = []locus.Device{selfDevice}
	m.Participants = append(m.Participants, extra...)
	return m
}

func TestLobbyWaitKeepsAliveUntilAdmitted(t *testing.T) {
	waiting := locus.Device{
		URL:           testDeviceURL,
		Intent:        &locus.Intent{Type: locus.IntentWait},
		KeepAliveURL:  "https://locus/calls/1/keepalive",
		KeepAliveSecs: 5,
	}
	state, effects := Reduce(outgoingState(), evModel{Model: meetingModel(1, locus.StateIdle, waiting)})
	require.Equal(t, StatusWaiting, state.Status)
	require.Equal(t, 1, countNotified[WaitingEvent](effects))
	ka, ok := findEffect[effStartKeepAlive](effects)
	require.True(t, ok)
	require.Equal(t, waiting.KeepAliveURL, ka.URL)
	require.Equal(t, 5, ka.Interval)

	admitted := meetingModel(2, locus.StateJoined, locus.Device{URL: testDeviceURL})
	state, effects = Reduce(state, evModel{Model: admitted})
	require.Equal(t, StatusConnected, state.Status)
	_, ok = findEffect[effStopKeepAlive](effects)
	require.True(t, ok)
	require.False(t, state.KeepAlive)
}

func TestLetIn(t *testing.T) {
	lobby := locus.Participant{
		ID:      "bob",
		State:   locus.StateIdle,
		Person:  locus.Person{ID: "bob-person"},
		Devices: []locus.Device{{URL: "https://wdm/devices/bob", Intent: &locus.Intent{Type: locus.IntentWait}}},
	}
	m := meetingModel(1, locus.StateJoined, locus.Device{URL: testDeviceURL}, lobby)
	state, _ := Reduce(outgoingState(), evModel{Model: m})
	require.Equal(t, StatusConnected, state.Status)
	require.False(t, state.Capabilities.CanLetIn)

	reply := make(chan error, 1)
	_, effects := Reduce(state, cmdLetIn{MembershipIDs: []string{"bob"}, Reply: reply})
	require.Empty(t, effects)
	require.ErrorIs(t, <-reply, ErrIllegalOperation)

	m = meetingModel(2, locus.StateJoined, locus.Device{URL: testDeviceURL}, lobby)
	m.Self.Roles = []string{locus.RoleModerator}
	state, effects = Reduce(state, evModel{Model: m})
	require.True(t, state.Capabilities.CanLetIn)
	require.Equal(t, 1, countNotified[CapabilitiesChangedEvent](effects))

	_, effects = Reduce(state, cmdLetIn{MembershipIDs: []string{"alice"}, Reply: reply})
	require.Empty(t, effects)
	require.ErrorIs(t, <-reply, ErrUnknownMembership)

	_, effects = Reduce(state, cmdLetIn{MembershipIDs: []string{"bob"}, Reply: reply})
	admit, ok := findEffect[effAdmit](effects)
	require.True(t, ok)
	require.Equal(t, []string{"bob"}, admit.MembershipIDs)
}
