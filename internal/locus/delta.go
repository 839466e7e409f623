package locus

// ApplyDelta overlays the fields present in delta onto base and returns the
// resulting full snapshot. Participants are merged by id: removed entries
// are deleted, known ids replaced and unknown ids appended. Neither input is
// modified.
func ApplyDelta(base, delta *Model) *Model {
	if base == nil {
		out := delta.Clone()
		if out != nil {
			out.BaseSequence = nil
		}
		return out
	}
	out := base.Clone()
	if delta == nil {
		return out
	}

	if delta.URL != "" {
		out.URL = delta.URL
	}
	if delta.Sequence != nil {
		out.Sequence = delta.Sequence.Clone()
	}
	if delta.SyncURL != "" {
		out.SyncURL = delta.SyncURL
	}
	if delta.FullState != nil {
		fs := *delta.FullState
		out.FullState = &fs
	}
	if delta.Host != nil {
		h := *delta.Host
		out.Host = &h
	}
	if delta.Self != nil {
		s := delta.Self.Clone()
		out.Self = &s
	}
	if delta.MediaShares != nil {
		shares := make([]MediaShare, len(delta.MediaShares))
		for i, s := range delta.MediaShares {
			shares[i] = s.Clone()
		}
		out.MediaShares = shares
	}
	if delta.Meetings != nil {
		out.Meetings = append([]Meeting(nil), delta.Meetings...)
	}
	if delta.MediaConnections != nil {
		out.MediaConnections = append([]MediaConnection(nil), delta.MediaConnections...)
	}
	if delta.Controls != nil {
		c := *delta.Controls
		out.Controls = &c
	}
	out.Participants = mergeParticipants(out.Participants, delta.Participants)
	out.BaseSequence = nil
	return out
}

func mergeParticipants(base, delta []Participant) []Participant {
	if len(delta) == 0 {
		return base
	}
	index := make(map[string]int, len(base))
	for i, p := range base {
		index[p.ID] = i
	}
	removed := make(map[string]bool)
	for _, p := range delta {
		if p.Removed {
			removed[p.ID] = true
			continue
		}
		if i, ok := index[p.ID]; ok {
			base[i] = p.Clone()
			continue
		}
		index[p.ID] = len(base)
		base = append(base, p.Clone())
	}
	if len(removed) == 0 {
		return base
	}
	out := base[:0]
	for _, p := range base {
		if !removed[p.ID] {
			out = append(out, p)
		}
	}
	return out
}
