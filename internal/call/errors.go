package call

import "errors"

var (
	// ErrIllegalOperation is returned for operations that make no sense for
	// this call, such as answering an outgoing call.
	ErrIllegalOperation = errors.New("illegal operation")
	// ErrIllegalStatus is returned for operations not allowed in the current
	// call status.
	ErrIllegalStatus = errors.New("illegal call status")
	// ErrMissingSelfURL is returned when the call state lacks the local
	// participant URL.
	ErrMissingSelfURL = errors.New("missing self participant url")
	// ErrDialCancelled is returned when a dial was cancelled by the caller.
	ErrDialCancelled = errors.New("dial cancelled")
	// ErrInvalidCallState is returned when the server answers with an
	// unusable call snapshot.
	ErrInvalidCallState = errors.New("invalid call state")
	// ErrUnknownMembership is returned when a membership id is not part of
	// the call.
	ErrUnknownMembership = errors.New("unknown membership")
)
