package kms

import "errors"

var (
	// ErrEphemeralKeyFetchFailed is returned when a KMS request cannot be
	// built or delivered: missing device, user, cluster, static key or
	// ephemeral key, or a failed wire post.
	ErrEphemeralKeyFetchFailed = errors.New("ephemeral key fetch failed")
	// ErrEphemeralKeyPending is returned when an ephemeral key request is
	// already outstanding.
	ErrEphemeralKeyPending = errors.New("ephemeral key request already pending")
	// ErrMalformedResponse is returned when a KMS response cannot be used.
	ErrMalformedResponse = errors.New("malformed kms response")
	// ErrRequestTimeout is returned when no KMS response arrives in time.
	ErrRequestTimeout = errors.New("kms request timed out")
	// ErrRejected is returned when the KMS answers with an error status.
	ErrRejected = errors.New("kms request rejected")
)
