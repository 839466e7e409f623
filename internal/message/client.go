package message

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/bhandras/delight/rtc/internal/crypto"
	"github.com/bhandras/delight/rtc/internal/dispatch"
	"github.com/bhandras/delight/rtc/internal/kms"
	"github.com/bhandras/delight/rtc/internal/protocol/wire"
	"github.com/bhandras/delight/rtc/internal/serialq"
	"github.com/bhandras/delight/rtc/internal/transport"
	"github.com/bhandras/delight/rtc/pkg/logger"
	"github.com/google/uuid"
)

const (
	activitiesURL    = "activities"
	defaultListLimit = 50
)

// KeySource resolves space keys. *kms.Negotiator implements it.
type KeySource interface {
	PrepareEncryptionKey(ctx context.Context) error
	Material(ctx context.Context, spaceID string) (kms.Key, error)
	Retrieve(ctx context.Context, keyURL string) (kms.Key, error)
	TryRefresh(spaceID, newURL string) bool
}

var _ KeySource = (*kms.Negotiator)(nil)

// Config configures a Client.
type Config struct {
	Doer   transport.Doer
	Keys   KeySource
	Events *dispatch.Queue
	// ChunkSize bounds upload chunks. Defaults to 1 MiB.
	ChunkSize int
}

// Client sends and receives space messages.
type Client struct {
	doer      transport.Doer
	keys      KeySource
	events    *dispatch.Queue
	uploads   *serialq.Queue
	chunkSize int

	mu      sync.Mutex
	onEvent func(Event)
}

// New returns a message client.
func New(cfg Config) *Client {
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	return &Client{
		doer:      cfg.Doer,
		keys:      cfg.Keys,
		events:    cfg.Events,
		uploads:   serialq.New(),
		chunkSize: chunk,
	}
}

// OnEvent registers the callback for pushed message events.
func (c *Client) OnEvent(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

// spaceKey prepares the KMS session and returns the key of spaceID.
func (c *Client) spaceKey(ctx context.Context, spaceID string) (kms.Key, []byte, error) {
	if err := c.keys.PrepareEncryptionKey(ctx); err != nil {
		return kms.Key{}, nil, err
	}
	key, err := c.keys.Material(ctx, spaceID)
	if err != nil {
		return kms.Key{}, nil, fmt.Errorf("space key %s: %w", spaceID, err)
	}
	secret, err := crypto.OctetKey(key.JWK)
	if err != nil {
		return kms.Key{}, nil, err
	}
	return key, secret, nil
}

// Post encrypts text under the space key and posts it. Files are uploaded
// first and attached to the message.
func (c *Client) Post(ctx context.Context, spaceID, text string, files ...Upload) (*Message, error) {
	return c.post(ctx, spaceID, text, "", files)
}

// Update replaces the text of an earlier message.
func (c *Client) Update(ctx context.Context, spaceID, messageID, text string) (*Message, error) {
	return c.post(ctx, spaceID, text, messageID, nil)
}

func (c *Client) post(ctx context.Context, spaceID, text, editOf string, files []Upload) (*Message, error) {
	if text == "" && len(files) == 0 {
		return nil, ErrEmptyMessage
	}
	key, secret, err := c.spaceKey(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	obj := wire.ActivityObject{ObjectType: objectComment}
	verb := wire.VerbPost
	if text != "" {
		sealed, err := crypto.SealString([]byte(text), secret)
		if err != nil {
			return nil, err
		}
		obj.DisplayName = sealed
	}
	if len(files) > 0 {
		uploaded, err := c.UploadFiles(ctx, spaceID, files...)
		if err != nil {
			return nil, err
		}
		obj.ObjectType = objectContent
		obj.Files = &wire.FileItems{Items: uploaded}
		verb = wire.VerbShare
	}

	activity := wire.Activity{
		ObjectType:       objectActivity,
		Verb:             verb,
		Object:           obj,
		Target:           &wire.ActivityTarget{ID: spaceID, ObjectType: objectConversation},
		EncryptionKeyURL: key.URI,
		ClientTempID:     uuid.NewString(),
	}
	if editOf != "" {
		activity.Parent = &wire.ActivityParent{ID: editOf, Type: parentEdit}
	}

	var created wire.Activity
	if err := transport.Post(ctx, c.doer, activitiesURL, activity, &created); err != nil {
		return nil, fmt.Errorf("post activity: %w", err)
	}
	if created.ID == "" {
		created = activity
	}
	msg, err := c.decrypt(ctx, &created)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// List returns up to limit recent messages of spaceID, newest first.
func (c *Client) List(ctx context.Context, spaceID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if err := c.keys.PrepareEncryptionKey(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("conversationId", spaceID)
	q.Set("limit", strconv.Itoa(limit))
	var list wire.ActivityList
	if err := transport.Get(ctx, c.doer, activitiesURL+"?"+q.Encode(), &list); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	out := make([]Message, 0, len(list.Items))
	for i := range list.Items {
		a := &list.Items[i]
		if a.Verb != wire.VerbPost && a.Verb != wire.VerbShare {
			continue
		}
		msg, err := c.decrypt(ctx, a)
		if err != nil {
			logger.Warnf("[message] skipping %s: %v", a.ID, err)
			continue
		}
		out = append(out, *msg)
	}
	return out, nil
}

// Delete removes a message from spaceID.
func (c *Client) Delete(ctx context.Context, spaceID, messageID string) error {
	activity := wire.Activity{
		ObjectType:   objectActivity,
		Verb:         wire.VerbDelete,
		Object:       wire.ActivityObject{ID: messageID, ObjectType: objectActivity},
		Target:       &wire.ActivityTarget{ID: spaceID, ObjectType: objectConversation},
		ClientTempID: uuid.NewString(),
	}
	if err := transport.Post(ctx, c.doer, activitiesURL, activity, nil); err != nil {
		return fmt.Errorf("delete %s: %w", messageID, err)
	}
	return nil
}

// HandleActivity processes a pushed activity. Key rotations refresh the
// space key; messages are decrypted and delivered to the event callback.
func (c *Client) HandleActivity(ctx context.Context, a *wire.Activity) error {
	if a == nil {
		return ErrNotMessage
	}
	spaceID := ""
	if a.Target != nil {
		spaceID = a.Target.ID
	}

	switch a.Verb {
	case wire.VerbUpdateKey:
		if spaceID == "" || a.Object.DefaultActivityEncryptionKeyURL == "" {
			return nil
		}
		c.keys.TryRefresh(spaceID, a.Object.DefaultActivityEncryptionKeyURL)
		return nil

	case wire.VerbDelete:
		c.emit(Event{
			Kind:      EventDeleted,
			Message:   Message{ID: a.ID, SpaceID: spaceID, Author: a.Actor, Published: a.Published},
			DeletedID: a.Object.ID,
		})
		return nil

	case wire.VerbPost, wire.VerbShare:
		msg, err := c.decrypt(ctx, a)
		if err != nil {
			return err
		}
		kind := EventReceived
		if msg.EditOf != "" {
			kind = EventUpdated
		}
		c.emit(Event{Kind: kind, Message: *msg})
		return nil

	default:
		logger.Tracef("[message] ignoring %s activity %s", a.Verb, a.ID)
		return nil
	}
}

func (c *Client) emit(ev Event) {
	c.mu.Lock()
	fn := c.onEvent
	c.mu.Unlock()
	if fn == nil {
		return
	}
	if err := c.events.Do(func() { fn(ev) }); err != nil {
		logger.Warnf("[message] dropping %s event: %v", ev.Kind, err)
	}
}

// decrypt opens the encrypted fields of a post or share activity.
func (c *Client) decrypt(ctx context.Context, a *wire.Activity) (*Message, error) {
	msg := &Message{
		ID:        a.ID,
		Author:    a.Actor,
		Published: a.Published,
		KeyURL:    a.EncryptionKeyURL,
	}
	if a.Target != nil {
		msg.SpaceID = a.Target.ID
	}
	if a.Parent != nil && a.Parent.Type == parentEdit {
		msg.EditOf = a.Parent.ID
	}

	encrypted := a.Object.DisplayName != "" || a.Object.Files != nil
	if !encrypted {
		return msg, nil
	}
	if a.EncryptionKeyURL == "" {
		return nil, ErrMissingKey
	}
	key, err := c.keys.Retrieve(ctx, a.EncryptionKeyURL)
	if err != nil {
		return nil, fmt.Errorf("key for %s: %w", a.ID, err)
	}
	secret, err := crypto.OctetKey(key.JWK)
	if err != nil {
		return nil, err
	}

	if a.Object.DisplayName != "" {
		text, err := crypto.OpenString(a.Object.DisplayName, secret)
		if err != nil {
			return nil, fmt.Errorf("decrypt %s: %w", a.ID, err)
		}
		msg.Text = string(text)
	}
	if a.Object.Files != nil {
		for _, f := range a.Object.Files.Items {
			if f.DisplayName != "" {
				name, err := crypto.OpenString(f.DisplayName, secret)
				if err != nil {
					return nil, fmt.Errorf("decrypt file name: %w", err)
				}
				f.DisplayName = string(name)
			}
			msg.Files = append(msg.Files, f)
		}
	}
	return msg, nil
}
