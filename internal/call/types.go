package call

import "github.com/bhandras/delight/rtc/internal/locus"

// Status is the call lifecycle state.
type Status string

const (
	StatusInitiated    Status = "initiated"
	StatusRinging      Status = "ringing"
	StatusWaiting      Status = "waiting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Direction tells who placed the call.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// DisconnectReason explains why a call ended.
type DisconnectReason string

const (
	ReasonLocalLeft     DisconnectReason = "local-left"
	ReasonLocalDecline  DisconnectReason = "local-decline"
	ReasonLocalCancel   DisconnectReason = "local-cancel"
	ReasonRemoteLeft    DisconnectReason = "remote-left"
	ReasonRemoteDecline DisconnectReason = "remote-decline"
	ReasonRemoteCancel  DisconnectReason = "remote-cancel"
	ReasonCallEnded     DisconnectReason = "call-ended"
)

// WaitReason explains why the call is waiting.
type WaitReason string

const (
	// WaitLobby means a host must admit the local participant.
	WaitLobby WaitReason = "lobby"
	// WaitMeetingNotStarted means the meeting has not started yet.
	WaitMeetingNotStarted WaitReason = "meeting-not-started"
)

// MembershipState is the derived state of a call member.
type MembershipState string

const (
	MembershipIdle     MembershipState = "idle"
	MembershipNotified MembershipState = "notified"
	MembershipJoined   MembershipState = "joined"
	MembershipLeft     MembershipState = "left"
	MembershipDeclined MembershipState = "declined"
	MembershipWaiting  MembershipState = "waiting"
	MembershipUnknown  MembershipState = "unknown"
)

// Membership is a read-only view of one call participant. CallURL is a
// handle to the owning call that can be resolved through the Phone.
type Membership struct {
	ID            string
	PersonID      string
	DisplayName   string
	Email         string
	State         MembershipState
	IsSelf        bool
	IsHost        bool
	IsModerator   bool
	SendingAudio  bool
	SendingVideo  bool
	SharingScreen bool
	CallURL       string
}

// MembershipEventKind enumerates membership changes.
type MembershipEventKind string

const (
	MembershipJoinedEvent         MembershipEventKind = "joined"
	MembershipLeftEvent           MembershipEventKind = "left"
	MembershipDeclinedEvent       MembershipEventKind = "declined"
	MembershipWaitingEvent        MembershipEventKind = "waiting"
	MembershipSendingAudioEvent   MembershipEventKind = "sending-audio"
	MembershipSendingVideoEvent   MembershipEventKind = "sending-video"
	MembershipSharingStartedEvent MembershipEventKind = "sharing-started"
	MembershipSharingStoppedEvent MembershipEventKind = "sharing-stopped"
)

// MembershipEvent reports a change of one membership.
type MembershipEvent struct {
	Kind       MembershipEventKind
	Membership Membership
}

// MediaEventKind enumerates media changes.
type MediaEventKind string

const (
	MediaRemoteSendingAudio MediaEventKind = "remote-sending-audio"
	MediaRemoteSendingVideo MediaEventKind = "remote-sending-video"
	MediaRemoteSharing      MediaEventKind = "remote-sharing"
	MediaLocalSendingAudio  MediaEventKind = "local-sending-audio"
	MediaLocalSendingVideo  MediaEventKind = "local-sending-video"
	MediaStarted            MediaEventKind = "media-started"
	MediaFailed             MediaEventKind = "media-failed"
)

// MediaEvent reports a media change. On carries the new value for toggles.
type MediaEvent struct {
	Kind MediaEventKind
	On   bool
}

// Capabilities are derived permissions of the local participant.
type Capabilities struct {
	IsHost   bool
	CanLetIn bool
	CanShare bool
	Locked   bool
}

// Event is a notification produced by the call reducer.
type Event interface {
	isCallEvent()
}

// RingingEvent is sent when the call starts ringing.
type RingingEvent struct{}

// WaitingEvent is sent when the call enters the lobby.
type WaitingEvent struct{ Reason WaitReason }

// ConnectedEvent is sent once, when the call first connects.
type ConnectedEvent struct{}

// DisconnectedEvent is sent when the call ends.
type DisconnectedEvent struct{ Reason DisconnectReason }

// MembershipChangedEvent wraps a MembershipEvent.
type MembershipChangedEvent struct{ Event MembershipEvent }

// MediaChangedEvent wraps a MediaEvent.
type MediaChangedEvent struct{ Event MediaEvent }

// CapabilitiesChangedEvent is sent when Capabilities change.
type CapabilitiesChangedEvent struct{ Capabilities Capabilities }

// ScheduleChangedEvent is sent when the meeting schedule changes.
type ScheduleChangedEvent struct{ Meetings []locus.Meeting }

func (RingingEvent) isCallEvent()             {}
func (WaitingEvent) isCallEvent()             {}
func (ConnectedEvent) isCallEvent()           {}
func (DisconnectedEvent) isCallEvent()        {}
func (MembershipChangedEvent) isCallEvent()   {}
func (MediaChangedEvent) isCallEvent()        {}
func (CapabilitiesChangedEvent) isCallEvent() {}
func (ScheduleChangedEvent) isCallEvent()     {}
