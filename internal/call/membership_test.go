package call

import (
	"testing"

	"github.com/bhandras/delight/rtc/internal/locus"
	"github.com/stretchr/testify/require"
)

func shareModel(floor *locus.Floor) *locus.Model {
	m := &locus.Model{
		URL:  "https://locus/calls/1",
		Host: &locus.Person{ID: "alice-person"},
		Self: &locus.Participant{ID: "me", State: locus.StateJoined, Person: locus.Person{ID: "me-person"}},
		Participants: []locus.Participant{
			{ID: "me", State: locus.StateJoined, Person: locus.Person{ID: "me-person"}},
			{ID: "alice", State: locus.StateJoined, Person: locus.Person{ID: "alice-person", Name: "Alice"}},
			{ID: "bob", State: locus.StateJoined, Person: locus.Person{ID: "bob-person", Name: "Bob"}},
		},
	}
	if floor != nil {
		m.MediaShares = []locus.MediaShare{{Name: locus.ShareContent, Floor: floor}}
	}
	return m
}

func granted(beneficiary, at string) *locus.Floor {
	return &locus.Floor{
		Disposition: locus.FloorGranted,
		Beneficiary: &locus.Person{ID: beneficiary},
		Granted:     at,
	}
}

func TestFloorTransitions(t *testing.T) {
	none := shareModel(nil)
	alice := shareModel(granted("alice", "t1"))
	bob := shareModel(granted("bob", "t2"))
	released := shareModel(&locus.Floor{Disposition: locus.FloorReleased, Beneficiary: &locus.Person{ID: "alice"}})

	// none -> granted is a join and remote sharing starts.
	mems, media := diffFloor(none, alice, membershipsFrom(alice, ""), membershipsFrom(none, ""))
	require.Len(t, mems, 1)
	require.Equal(t, MembershipSharingStartedEvent, mems[0].Kind)
	require.Equal(t, "alice", mems[0].Membership.ID)
	require.True(t, mems[0].Membership.SharingScreen)
	require.Equal(t, []MediaEvent{{Kind: MediaRemoteSharing, On: true}}, media)

	// A new grant while granted is a leave of the old holder then a join.
	mems, media = diffFloor(alice, bob, membershipsFrom(bob, ""), membershipsFrom(alice, ""))
	require.Len(t, mems, 2)
	require.Equal(t, MembershipSharingStoppedEvent, mems[0].Kind)
	require.Equal(t, "alice", mems[0].Membership.ID)
	require.False(t, mems[0].Membership.SharingScreen)
	require.Equal(t, MembershipSharingStartedEvent, mems[1].Kind)
	require.Equal(t, "bob", mems[1].Membership.ID)
	require.Empty(t, media, "remote sharing continues")

	// granted -> released is a leave.
	mems, media = diffFloor(alice, released, membershipsFrom(released, ""), membershipsFrom(alice, ""))
	require.Len(t, mems, 1)
	require.Equal(t, MembershipSharingStoppedEvent, mems[0].Kind)
	require.Equal(t, []MediaEvent{{Kind: MediaRemoteSharing, On: false}}, media)

	// Same grant again is not a change.
	mems, media = diffFloor(alice, shareModel(granted("alice", "t1")), nil, nil)
	require.Empty(t, mems)
	require.Empty(t, media)
}

func TestLocalShareIsNotRemoteSharing(t *testing.T) {
	none := shareModel(nil)
	mine := shareModel(granted("me", "t1"))

	mems, media := diffFloor(none, mine, membershipsFrom(mine, ""), nil)
	require.Len(t, mems, 1)
	require.True(t, mems[0].Membership.IsSelf)
	require.Empty(t, media)
}

func TestDiffMemberships(t *testing.T) {
	before := shareModel(nil)
	after := shareModel(nil)
	after.Participants[1].State = locus.StateLeft
	after.Participants[2].Status = &locus.ParticipantStatus{AudioStatus: locus.MediaSendRecv}
	after.Participants = append(after.Participants, locus.Participant{
		ID: "carol", State: locus.StateIdle,
		Devices: []locus.Device{{URL: "d", Intent: &locus.Intent{Type: locus.IntentWait}}},
	})

	events := diffMemberships(membershipsFrom(before, ""), membershipsFrom(after, ""))
	kinds := map[string]MembershipEventKind{}
	for _, ev := range events {
		kinds[ev.Membership.ID] = ev.Kind
	}
	require.Equal(t, map[string]MembershipEventKind{
		"alice": MembershipLeftEvent,
		"bob":   MembershipSendingAudioEvent,
		"carol": MembershipWaitingEvent,
	}, kinds)

	media := diffRemoteMedia(membershipsFrom(before, ""), membershipsFrom(after, ""))
	require.Equal(t, []MediaEvent{{Kind: MediaRemoteSendingAudio, On: true}}, media)
}

func TestHostAndModeratorFlags(t *testing.T) {
	m := shareModel(nil)
	m.Participants[2].Roles = []string{locus.RoleModerator}

	byID := map[string]Membership{}
	for _, mem := range membershipsFrom(m, "") {
		byID[mem.ID] = mem
	}
	require.True(t, byID["alice"].IsHost)
	require.False(t, byID["bob"].IsHost)
	require.True(t, byID["bob"].IsModerator)
	require.True(t, byID["me"].IsSelf)
}

func TestScheduleComparesWindowsAsSet(t *testing.T) {
	a := []locus.Meeting{
		{MeetingID: "1", StartTime: "09:00", EndTime: "10:00"},
		{MeetingID: "2", StartTime: "11:00", EndTime: "12:00"},
	}
	reordered := []locus.Meeting{
		{MeetingID: "x", StartTime: "11:00", EndTime: "12:00"},
		{MeetingID: "y", StartTime: "09:00", EndTime: "10:00"},
	}
	moved := []locus.Meeting{
		{StartTime: "09:00", EndTime: "10:30"},
		{StartTime: "11:00", EndTime: "12:00"},
	}
	require.False(t, scheduleChanged(a, reordered))
	require.True(t, scheduleChanged(a, moved))
	require.True(t, scheduleChanged(a, a[:1]))
	require.False(t, scheduleChanged(nil, nil))
}

func TestCapabilities(t *testing.T) {
	require.Equal(t, Capabilities{}, capabilitiesOf(nil))

	m := shareModel(nil)
	require.Equal(t, Capabilities{CanShare: true}, capabilitiesOf(m))

	m.Host = &locus.Person{ID: "me-person"}
	m.Controls = &locus.Controls{Locked: true}
	require.Equal(t, Capabilities{IsHost: true, CanLetIn: true, CanShare: true, Locked: true}, capabilitiesOf(m))

	m.Host = &locus.Person{ID: "alice-person"}
	m.Self.Roles = []string{locus.RoleModerator}
	m.Self.State = locus.StateIdle
	m.Controls = nil
	require.Equal(t, Capabilities{CanLetIn: true}, capabilitiesOf(m))
}
