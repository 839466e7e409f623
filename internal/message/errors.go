package message

import "errors"

var (
	// ErrEmptyMessage is returned when posting neither text nor files.
	ErrEmptyMessage = errors.New("empty message")
	// ErrMissingKey is returned when an activity carries encrypted content
	// without a key URL.
	ErrMissingKey = errors.New("activity has no encryption key url")
	// ErrNotMessage is returned for activities that carry no message.
	ErrNotMessage = errors.New("activity is not a message")
)
