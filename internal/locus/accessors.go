package locus

import "slices"

// CallState returns FullState.State or "" when absent.
func (m *Model) CallState() string {
	if m == nil || m.FullState == nil {
		return ""
	}
	return m.FullState.State
}

// SelfState returns the local participant state or "" when absent.
func (m *Model) SelfState() string {
	if m == nil || m.Self == nil {
		return ""
	}
	return m.Self.State
}

// SelfURL returns the local participant URL.
func (m *Model) SelfURL() string {
	if m == nil || m.Self == nil {
		return ""
	}
	return m.Self.URL
}

// SelfID returns the local participant id.
func (m *Model) SelfID() string {
	if m == nil || m.Self == nil {
		return ""
	}
	return m.Self.ID
}

// SelfDevice returns the local participant's entry for deviceURL, falling
// back to its first device.
func (m *Model) SelfDevice(deviceURL string) *Device {
	if m == nil || m.Self == nil || len(m.Self.Devices) == 0 {
		return nil
	}
	for i := range m.Self.Devices {
		if m.Self.Devices[i].URL == deviceURL {
			return &m.Self.Devices[i]
		}
	}
	return &m.Self.Devices[0]
}

// SelfIntent returns the intent type of the local device, "" when none.
func (m *Model) SelfIntent(deviceURL string) string {
	d := m.SelfDevice(deviceURL)
	if d == nil || d.Intent == nil {
		return ""
	}
	return d.Intent.Type
}

// SelfAlert returns the alert action for the local participant.
func (m *Model) SelfAlert() string {
	if m == nil || m.Self == nil || m.Self.AlertType == nil {
		return ""
	}
	return m.Self.AlertType.Action
}

// Remotes returns the participants other than self.
func (m *Model) Remotes() []Participant {
	if m == nil {
		return nil
	}
	selfID := m.SelfID()
	out := make([]Participant, 0, len(m.Participants))
	for _, p := range m.Participants {
		if p.ID != selfID {
			out = append(out, p)
		}
	}
	return out
}

// AnyRemoteJoined reports whether some other participant has joined.
func (m *Model) AnyRemoteJoined() bool {
	for _, p := range m.Remotes() {
		if p.State == StateJoined {
			return true
		}
	}
	return false
}

// Participant returns the participant with id.
func (m *Model) Participant(id string) (Participant, bool) {
	if m == nil {
		return Participant{}, false
	}
	for _, p := range m.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// IsGroup reports whether the call is a meeting rather than a one-to-one call.
func (m *Model) IsGroup() bool {
	if m == nil {
		return false
	}
	if m.FullState != nil && m.FullState.Type != "" && m.FullState.Type != TypeCall {
		return true
	}
	return len(m.Participants) > 2
}

// RemoteSDP returns the first remote SDP among media connections.
func (m *Model) RemoteSDP() string {
	if m == nil {
		return ""
	}
	for _, mc := range m.MediaConnections {
		if mc.RemoteSDP != "" {
			return mc.RemoteSDP
		}
	}
	return ""
}

// Share returns the media share named name.
func (m *Model) Share(name string) *MediaShare {
	if m == nil {
		return nil
	}
	for i := range m.MediaShares {
		if m.MediaShares[i].Name == name {
			return &m.MediaShares[i]
		}
	}
	return nil
}

// IsModerator reports whether p holds the moderator role.
func (p Participant) IsModerator() bool {
	return slices.Contains(p.Roles, RoleModerator)
}

// SendingAudio reports whether p sends audio.
func (p Participant) SendingAudio() bool {
	return p.Status != nil && sending(p.Status.AudioStatus)
}

// SendingVideo reports whether p sends video.
func (p Participant) SendingVideo() bool {
	return p.Status != nil && sending(p.Status.VideoStatus)
}

// Intent returns the intent type of p's first device.
func (p Participant) Intent() string {
	for _, d := range p.Devices {
		if d.Intent != nil {
			return d.Intent.Type
		}
	}
	return ""
}

func sending(direction string) bool {
	return direction == MediaSendRecv || direction == MediaSendOnly
}
