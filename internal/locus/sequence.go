package locus

import "slices"

// Order is the result of comparing two sequences.
type Order int

const (
	// Equal means both sequences describe the same state.
	Equal Order = iota
	// Greater means the left sequence is newer.
	Greater
	// Less means the left sequence is older.
	Less
	// Desync means the sequences diverged and cannot be ordered.
	Desync
)

// String implements fmt.Stringer.
func (o Order) String() string {
	switch o {
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	case Less:
		return "less"
	default:
		return "desync"
	}
}

// Sequence is the ordering token of a snapshot: a compacted range of
// sequence numbers plus explicit entries beyond the range.
type Sequence struct {
	Entries    []int64 `json:"entries,omitempty"`
	RangeStart int64   `json:"rangeStart,omitempty"`
	RangeEnd   int64   `json:"rangeEnd,omitempty"`
}

// Clone returns a copy of s.
func (s *Sequence) Clone() *Sequence {
	if s == nil {
		return nil
	}
	out := *s
	out.Entries = append([]int64(nil), s.Entries...)
	return &out
}

// Empty reports whether s carries no sequence numbers.
func (s *Sequence) Empty() bool {
	return s == nil || (len(s.Entries) == 0 && s.RangeEnd == 0)
}

// Max returns the newest sequence number in s.
func (s *Sequence) Max() int64 {
	if s == nil {
		return 0
	}
	m := s.RangeEnd
	for _, e := range s.Entries {
		if e > m {
			m = e
		}
	}
	return m
}

// Same reports whether s and o describe identical sequence sets.
func (s *Sequence) Same(o *Sequence) bool {
	if s.Empty() || o.Empty() {
		return s.Empty() && o.Empty()
	}
	return s.RangeStart == o.RangeStart &&
		s.RangeEnd == o.RangeEnd &&
		slices.Equal(s.Entries, o.Entries)
}

// Compare orders s against o by their newest sequence number. Two different
// sequences ending at the same number have diverged.
func (s *Sequence) Compare(o *Sequence) Order {
	if s.Same(o) {
		return Equal
	}
	sm, om := s.Max(), o.Max()
	switch {
	case sm > om:
		return Greater
	case sm < om:
		return Less
	default:
		return Desync
	}
}
