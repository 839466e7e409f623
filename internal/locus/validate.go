package locus

import "errors"

var (
	// ErrMissingURL is returned for a snapshot without a call URL.
	ErrMissingURL = errors.New("locus: missing call url")
	// ErrMissingSelf is returned for a full snapshot without the local participant.
	ErrMissingSelf = errors.New("locus: missing self")
	// ErrMissingHost is returned for a full snapshot without a host.
	ErrMissingHost = errors.New("locus: missing host")
)

// Validate checks the mandatory fields of m: the call URL always, and for a
// full snapshot also self and host.
func (m *Model) Validate() error {
	if m == nil || m.URL == "" {
		return ErrMissingURL
	}
	if !m.IsFullDTO() {
		return nil
	}
	if m.Self == nil {
		return ErrMissingSelf
	}
	if m.Host == nil {
		return ErrMissingHost
	}
	return nil
}

// Valid reports whether Validate succeeds.
func (m *Model) Valid() bool {
	return m.Validate() == nil
}
