package call

import (
	"slices"
	"sort"

	"github.com/bhandras/delight/rtc/internal/locus"
)

// membershipsFrom derives the membership views of m.
func membershipsFrom(m *locus.Model, deviceURL string) []Membership {
	if m == nil {
		return nil
	}
	selfID := m.SelfID()
	hostID := ""
	if m.Host != nil {
		hostID = m.Host.ID
	}
	sharer := floorHolder(m)

	out := make([]Membership, 0, len(m.Participants))
	for _, p := range m.Participants {
		mem := Membership{
			ID:            p.ID,
			PersonID:      p.Person.ID,
			DisplayName:   p.Person.Name,
			Email:         p.Person.Email,
			State:         membershipState(p),
			IsSelf:        p.ID == selfID,
			IsModerator:   p.IsModerator(),
			SendingAudio:  p.SendingAudio(),
			SendingVideo:  p.SendingVideo(),
			SharingScreen: sharer != "" && (sharer == p.ID || sharer == p.Person.ID),
			CallURL:       m.URL,
		}
		mem.IsHost = hostID != "" && (hostID == p.Person.ID || hostID == p.ID)
		if mem.IsSelf && m.Self != nil {
			mem.State = membershipState(*m.Self)
			if d := m.SelfDevice(deviceURL); d != nil && d.Intent != nil &&
				d.Intent.Type == locus.IntentWait && m.Self.State == locus.StateIdle {
				mem.State = MembershipWaiting
			}
		}
		out = append(out, mem)
	}
	return out
}

func membershipState(p locus.Participant) MembershipState {
	switch p.State {
	case locus.StateJoined:
		return MembershipJoined
	case locus.StateLeft:
		return MembershipLeft
	case locus.StateDeclined:
		return MembershipDeclined
	case locus.StateNotified:
		return MembershipNotified
	case locus.StateIdle:
		if p.Intent() == locus.IntentWait {
			return MembershipWaiting
		}
		return MembershipIdle
	default:
		return MembershipUnknown
	}
}

// floorHolder returns the id of whoever holds the screen share floor.
func floorHolder(m *locus.Model) string {
	share := m.Share(locus.ShareContent)
	if share == nil || share.Floor == nil || share.Floor.Disposition != locus.FloorGranted {
		return ""
	}
	if share.Floor.Beneficiary == nil {
		return ""
	}
	return share.Floor.Beneficiary.ID
}

// diffMemberships compares derived memberships and reports state and
// media direction changes.
func diffMemberships(old, next []Membership) []MembershipEvent {
	prev := make(map[string]Membership, len(old))
	for _, m := range old {
		prev[m.ID] = m
	}

	var events []MembershipEvent
	for _, m := range next {
		before, known := prev[m.ID]
		if !known || before.State != m.State {
			if kind, ok := stateEvent(m.State); ok {
				events = append(events, MembershipEvent{Kind: kind, Membership: m})
			}
		}
		if known && before.SendingAudio != m.SendingAudio {
			events = append(events, MembershipEvent{Kind: MembershipSendingAudioEvent, Membership: m})
		}
		if known && before.SendingVideo != m.SendingVideo {
			events = append(events, MembershipEvent{Kind: MembershipSendingVideoEvent, Membership: m})
		}
	}
	return events
}

func stateEvent(s MembershipState) (MembershipEventKind, bool) {
	switch s {
	case MembershipJoined:
		return MembershipJoinedEvent, true
	case MembershipLeft:
		return MembershipLeftEvent, true
	case MembershipDeclined:
		return MembershipDeclinedEvent, true
	case MembershipWaiting:
		return MembershipWaitingEvent, true
	default:
		return "", false
	}
}

// diffFloor reports screen share floor transitions: none to granted is a
// join, granted to released a leave, and a new grant while granted is a
// leave of the old beneficiary followed by a join of the new one.
func diffFloor(old, next *locus.Model, memberships []Membership, previous []Membership) ([]MembershipEvent, []MediaEvent) {
	oldFloor := grantedFloor(old)
	newFloor := grantedFloor(next)

	lookup := func(list []Membership, id string) Membership {
		for _, m := range list {
			if m.ID == id || m.PersonID == id {
				return m
			}
		}
		return Membership{ID: id}
	}
	join := func(f *locus.Floor) MembershipEvent {
		return MembershipEvent{Kind: MembershipSharingStartedEvent, Membership: lookup(memberships, beneficiary(f))}
	}
	leave := func(f *locus.Floor) MembershipEvent {
		m := lookup(memberships, beneficiary(f))
		if m.CallURL == "" {
			m = lookup(previous, beneficiary(f))
		}
		m.SharingScreen = false
		return MembershipEvent{Kind: MembershipSharingStoppedEvent, Membership: m}
	}

	selfID := next.SelfID()
	remote := func(f *locus.Floor) bool { return f != nil && beneficiary(f) != selfID }

	switch {
	case oldFloor == nil && newFloor != nil:
		var media []MediaEvent
		if remote(newFloor) {
			media = append(media, MediaEvent{Kind: MediaRemoteSharing, On: true})
		}
		return []MembershipEvent{join(newFloor)}, media
	case oldFloor != nil && newFloor == nil:
		var media []MediaEvent
		if remote(oldFloor) {
			media = append(media, MediaEvent{Kind: MediaRemoteSharing, On: false})
		}
		return []MembershipEvent{leave(oldFloor)}, media
	case oldFloor != nil && newFloor != nil &&
		(oldFloor.Granted != newFloor.Granted || beneficiary(oldFloor) != beneficiary(newFloor)):
		var media []MediaEvent
		if remote(oldFloor) != remote(newFloor) {
			media = append(media, MediaEvent{Kind: MediaRemoteSharing, On: remote(newFloor)})
		}
		return []MembershipEvent{leave(oldFloor), join(newFloor)}, media
	default:
		return nil, nil
	}
}

func grantedFloor(m *locus.Model) *locus.Floor {
	share := m.Share(locus.ShareContent)
	if share == nil || share.Floor == nil || share.Floor.Disposition != locus.FloorGranted {
		return nil
	}
	return share.Floor
}

func beneficiary(f *locus.Floor) string {
	if f == nil || f.Beneficiary == nil {
		return ""
	}
	return f.Beneficiary.ID
}

// diffRemoteMedia reports aggregate remote audio and video changes.
func diffRemoteMedia(old, next []Membership) []MediaEvent {
	var events []MediaEvent
	oldAudio, oldVideo := remoteSending(old)
	newAudio, newVideo := remoteSending(next)
	if old != nil && oldAudio != newAudio {
		events = append(events, MediaEvent{Kind: MediaRemoteSendingAudio, On: newAudio})
	}
	if old != nil && oldVideo != newVideo {
		events = append(events, MediaEvent{Kind: MediaRemoteSendingVideo, On: newVideo})
	}
	return events
}

func remoteSending(ms []Membership) (audio, video bool) {
	for _, m := range ms {
		if m.IsSelf || m.State != MembershipJoined {
			continue
		}
		audio = audio || m.SendingAudio
		video = video || m.SendingVideo
	}
	return audio, video
}

type window struct{ start, end string }

// scheduleChanged compares the start and end times of both schedules as
// sets, ignoring order and identity.
func scheduleChanged(old, next []locus.Meeting) bool {
	if len(old) != len(next) {
		return true
	}
	a, b := windows(old), windows(next)
	return !slices.Equal(a, b)
}

func windows(ms []locus.Meeting) []window {
	out := make([]window, len(ms))
	for i, m := range ms {
		out[i] = window{start: m.StartTime, end: m.EndTime}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		return out[i].end < out[j].end
	})
	return out
}

// capabilitiesOf derives what the local participant may do.
func capabilitiesOf(m *locus.Model) Capabilities {
	if m == nil || m.Self == nil {
		return Capabilities{}
	}
	isHost := m.Host != nil && (m.Host.ID == m.Self.Person.ID || m.Host.ID == m.Self.ID)
	moderator := m.Self.IsModerator()
	locked := (m.FullState != nil && m.FullState.Locked) || (m.Controls != nil && m.Controls.Locked)
	return Capabilities{
		IsHost:   isHost,
		CanLetIn: isHost || moderator,
		CanShare: m.Self.State == locus.StateJoined,
		Locked:   locked,
	}
}
