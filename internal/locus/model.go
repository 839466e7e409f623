// Package locus models call state snapshots and reconciles the full and
// delta snapshots delivered by REST responses and push events.
package locus

// Participant states.
const (
	StateIdle     = "IDLE"
	StateNotified = "NOTIFIED"
	StateJoined   = "JOINED"
	StateLeft     = "LEFT"
	StateDeclined = "DECLINED"
)

// Call states carried in FullState.
const (
	CallActive       = "ACTIVE"
	CallInactive     = "INACTIVE"
	CallInitializing = "INITIALIZING"
	CallTerminating  = "TERMINATING"
)

// Call types carried in FullState.
const (
	TypeCall    = "CALL"
	TypeMeeting = "MEETING"
)

// Intent types attached to a participant device.
const (
	IntentJoin    = "JOIN"
	IntentWait    = "WAIT"
	IntentDecline = "DECLINE"
	IntentLeave   = "LEAVE"
)

// AlertFull is the alert action of an incoming call that should ring.
const AlertFull = "FULL"

// Media directions used in participant status.
const (
	MediaSendRecv = "SENDRECV"
	MediaSendOnly = "SENDONLY"
	MediaRecvOnly = "RECVONLY"
	MediaInactive = "INACTIVE"
)

// Floor dispositions.
const (
	FloorGranted  = "GRANTED"
	FloorReleased = "RELEASED"
)

// Share names.
const (
	ShareContent    = "content"
	ShareWhiteboard = "whiteboard"
)

// Host role marker in Participant.Roles.
const RoleModerator = "MODERATOR"

// Model is one snapshot of multi-party call state. A snapshot without
// BaseSequence is a full snapshot; otherwise it is a delta against the
// state identified by BaseSequence.
type Model struct {
	URL              string            `json:"url"`
	Sequence         *Sequence         `json:"sequence,omitempty"`
	BaseSequence     *Sequence         `json:"baseSequence,omitempty"`
	SyncURL          string            `json:"syncUrl,omitempty"`
	FullState        *FullState        `json:"fullState,omitempty"`
	Host             *Person           `json:"host,omitempty"`
	Self             *Participant      `json:"self,omitempty"`
	Participants     []Participant     `json:"participants,omitempty"`
	MediaShares      []MediaShare      `json:"mediaShares,omitempty"`
	Meetings         []Meeting         `json:"meetings,omitempty"`
	MediaConnections []MediaConnection `json:"mediaConnections,omitempty"`
	Controls         *Controls         `json:"controls,omitempty"`
}

// FullState summarizes the call as a whole.
type FullState struct {
	State  string `json:"state"`
	Type   string `json:"type,omitempty"`
	Locked bool   `json:"locked,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// Person identifies a user.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Participant is one member of the call.
type Participant struct {
	ID        string             `json:"id"`
	URL       string             `json:"url,omitempty"`
	State     string             `json:"state,omitempty"`
	Type      string             `json:"type,omitempty"`
	Person    Person             `json:"person"`
	Status    *ParticipantStatus `json:"status,omitempty"`
	Devices   []Device           `json:"devices,omitempty"`
	AlertType *AlertType         `json:"alertType,omitempty"`
	Roles     []string           `json:"roles,omitempty"`
	Guest     bool               `json:"guest,omitempty"`
	Removed   bool               `json:"removed,omitempty"`
}

// ParticipantStatus carries media directions.
type ParticipantStatus struct {
	AudioStatus string `json:"audioStatus,omitempty"`
	VideoStatus string `json:"videoStatus,omitempty"`
}

// Device is a participant's joined device.
type Device struct {
	URL           string  `json:"url"`
	State         string  `json:"state,omitempty"`
	Intent        *Intent `json:"intent,omitempty"`
	KeepAliveURL  string  `json:"keepAliveUrl,omitempty"`
	KeepAliveSecs int     `json:"keepAliveSecs,omitempty"`
}

// Intent is what a device intends to do next, such as waiting in a lobby.
type Intent struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// AlertType tells a client how to alert for an incoming call.
type AlertType struct {
	Action string `json:"action"`
}

// MediaShare is a share slot, such as screen content.
type MediaShare struct {
	Name  string `json:"name"`
	URL   string `json:"url,omitempty"`
	Floor *Floor `json:"floor,omitempty"`
}

// Floor is the right to send share media.
type Floor struct {
	Disposition string  `json:"disposition"`
	Beneficiary *Person `json:"beneficiary,omitempty"`
	Granted     string  `json:"granted,omitempty"`
	Released    string  `json:"released,omitempty"`
}

// Meeting is a scheduled occurrence of the call.
type Meeting struct {
	MeetingID string `json:"meetingId,omitempty"`
	Title     string `json:"title,omitempty"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// MediaConnection is the negotiated media session of the local device.
type MediaConnection struct {
	MediaID   string `json:"mediaId,omitempty"`
	LocalSDP  string `json:"localSdp,omitempty"`
	RemoteSDP string `json:"remoteSdp,omitempty"`
}

// Controls are call-level moderator settings.
type Controls struct {
	Locked          bool `json:"locked,omitempty"`
	LobbyEnabled    bool `json:"lobbyEnabled,omitempty"`
	RecordingActive bool `json:"recordingActive,omitempty"`
}

// IsFullDTO reports whether m is a full snapshot.
func (m *Model) IsFullDTO() bool {
	return m != nil && m.BaseSequence == nil
}

// Clone returns a deep copy of m.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	out := *m
	out.Sequence = m.Sequence.Clone()
	out.BaseSequence = m.BaseSequence.Clone()
	if m.FullState != nil {
		fs := *m.FullState
		out.FullState = &fs
	}
	if m.Host != nil {
		h := *m.Host
		out.Host = &h
	}
	if m.Self != nil {
		s := m.Self.Clone()
		out.Self = &s
	}
	if m.Participants != nil {
		out.Participants = make([]Participant, len(m.Participants))
		for i, p := range m.Participants {
			out.Participants[i] = p.Clone()
		}
	}
	if m.MediaShares != nil {
		out.MediaShares = make([]MediaShare, len(m.MediaShares))
		for i, s := range m.MediaShares {
			out.MediaShares[i] = s.Clone()
		}
	}
	out.Meetings = append([]Meeting(nil), m.Meetings...)
	out.MediaConnections = append([]MediaConnection(nil), m.MediaConnections...)
	if m.Controls != nil {
		c := *m.Controls
		out.Controls = &c
	}
	return &out
}

// Clone returns a deep copy of p.
func (p Participant) Clone() Participant {
	out := p
	if p.Status != nil {
		s := *p.Status
		out.Status = &s
	}
	if p.Devices != nil {
		out.Devices = make([]Device, len(p.Devices))
		for i, d := range p.Devices {
			out.Devices[i] = d
			if d.Intent != nil {
				intent := *d.Intent
				out.Devices[i].Intent = &intent
			}
		}
	}
	if p.AlertType != nil {
		a := *p.AlertType
		out.AlertType = &a
	}
	out.Roles = append([]string(nil), p.Roles...)
	return out
}

// Clone returns a deep copy of s.
func (s MediaShare) Clone() MediaShare {
	out := s
	if s.Floor != nil {
		f := *s.Floor
		if s.Floor.Beneficiary != nil {
			b := *s.Floor.Beneficiary
			f.Beneficiary = &b
		}
		out.Floor = &f
	}
	return out
}
