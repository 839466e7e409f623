// Package message posts, lists and receives end-to-end encrypted space
// messages. Content is sealed with the space key obtained from the KMS.
package message

import (
	"time"

	"github.com/bhandras/delight/rtc/internal/protocol/wire"
)

// Message is a decrypted space message.
type Message struct {
	ID        string
	SpaceID   string
	Text      string
	Files     []wire.File
	Author    *wire.Person
	Published time.Time
	KeyURL    string
	// EditOf is the id of the message this one replaces, if any.
	EditOf string
}

// EventKind enumerates message notifications.
type EventKind string

const (
	EventReceived EventKind = "received"
	EventDeleted  EventKind = "deleted"
	EventUpdated  EventKind = "updated"
)

// Event is delivered for messages arriving over push.
type Event struct {
	Kind    EventKind
	Message Message
	// DeletedID is the id of the removed message for EventDeleted.
	DeletedID string
}

// Upload is a local file to attach to a message.
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

const (
	objectActivity     = "activity"
	objectComment      = "comment"
	objectContent      = "content"
	objectConversation = "conversation"
	parentEdit         = "edit"
)
