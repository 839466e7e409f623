// Package kms negotiates space encryption keys with the key management
// service.
//
// Requests are posted over REST; replies arrive asynchronously as push
// events and are fed back through HandleMessages. Concurrent callers asking
// for the same key share one outstanding wire request.
package kms

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bhandras/delight/rtc/internal/crypto"
	"github.com/bhandras/delight/rtc/internal/metrics"
	"github.com/bhandras/delight/rtc/internal/pending"
	"github.com/bhandras/delight/rtc/internal/protocol/wire"
	"github.com/bhandras/delight/rtc/internal/serialq"
	"github.com/bhandras/delight/rtc/internal/transport"
	"github.com/bhandras/delight/rtc/pkg/logger"
	"github.com/google/uuid"
)

const defaultTimeout = 30 * time.Second

// Identity supplies the registered device and user.
type Identity interface {
	DeviceURL() (string, error)
	UserID(ctx context.Context) (string, error)
}

// Config wires a Negotiator to its collaborators.
type Config struct {
	Doer     transport.Doer
	Auth     transport.Authenticator
	Identity Identity
	// Timeout bounds each wire post and each wait for a KMS reply.
	Timeout time.Duration
}

type ephemeralRequest struct {
	id   string
	priv *[32]byte
	done chan error
}

// Negotiator obtains and caches space keys.
type Negotiator struct {
	doer     transport.Doer
	auth     transport.Authenticator
	identity Identity
	timeout  time.Duration

	gate      *serialq.Queue
	ring      *KeyRing
	retrieves *pending.Arena[string, Key]
	creates   *pending.Arena[string, Key]

	mu           sync.Mutex
	userID       string
	cluster      string
	staticKey    *[32]byte
	ephemeral    []byte
	ephemeralReq *ephemeralRequest
	finishing    map[string]bool
}

// New returns a Negotiator with empty caches.
func New(cfg Config) *Negotiator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Negotiator{
		doer:      cfg.Doer,
		auth:      cfg.Auth,
		identity:  cfg.Identity,
		timeout:   timeout,
		gate:      serialq.New(),
		ring:      NewKeyRing(),
		retrieves: pending.New[string, Key](),
		creates:   pending.New[string, Key](),
		finishing: make(map[string]bool),
	}
}

// Ring exposes the per-space key state.
func (n *Negotiator) Ring() *KeyRing {
	return n.ring
}

// Reset drops the session keys so the next request runs the full
// handshake again. Space keys stay cached.
func (n *Negotiator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.userID = ""
	n.cluster = ""
	n.staticKey = nil
	n.ephemeral = nil
	n.ephemeralReq = nil
}

// Ready reports whether an ephemeral key is established.
func (n *Negotiator) Ready() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ephemeral != nil
}

// PrepareEncryptionKey runs the handshake: user id, then cluster and static
// key, then the ephemeral key. Steps run one caller at a time.
func (n *Negotiator) PrepareEncryptionKey(ctx context.Context) error {
	if n.Ready() {
		return nil
	}
	return n.gate.Do(ctx, func(ctx context.Context) error {
		if err := n.ensureUserID(ctx); err != nil {
			return err
		}
		if err := n.ensureCluster(ctx); err != nil {
			return err
		}
		if n.Ready() {
			return nil
		}
		return n.RequestEphemeralKey(ctx)
	})
}

func (n *Negotiator) ensureUserID(ctx context.Context) error {
	n.mu.Lock()
	known := n.userID != ""
	n.mu.Unlock()
	if known {
		return nil
	}
	if n.identity == nil {
		return ErrEphemeralKeyFetchFailed
	}
	id, err := n.identity.UserID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEphemeralKeyFetchFailed, err)
	}
	n.mu.Lock()
	n.userID = id
	n.mu.Unlock()
	return nil
}

func (n *Negotiator) ensureCluster(ctx context.Context) error {
	n.mu.Lock()
	known := n.cluster != "" && n.staticKey != nil
	userID := n.userID
	n.mu.Unlock()
	if known {
		return nil
	}

	var info wire.KMSInfo
	if err := transport.Get(ctx, n.doer, "kms/"+url.PathEscape(userID), &info); err != nil {
		return fmt.Errorf("%w: fetch kms info: %v", ErrEphemeralKeyFetchFailed, err)
	}
	if info.KMSCluster == "" || info.StaticPublicKey == "" {
		return fmt.Errorf("%w: incomplete kms info", ErrEphemeralKeyFetchFailed)
	}
	raw, err := base64.StdEncoding.DecodeString(info.StaticPublicKey)
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("%w: invalid static public key", ErrEphemeralKeyFetchFailed)
	}
	var static [32]byte
	copy(static[:], raw)

	n.mu.Lock()
	n.cluster = info.KMSCluster
	n.staticKey = &static
	n.mu.Unlock()
	logger.Debugf("[kms] cluster %s", info.KMSCluster)
	return nil
}

// RequestEphemeralKey posts an ECDHE request and waits for the reply. Only
// one such request may be outstanding; a concurrent attempt fails with
// ErrEphemeralKeyPending.
func (n *Negotiator) RequestEphemeralKey(ctx context.Context) error {
	n.mu.Lock()
	if n.ephemeralReq != nil {
		n.mu.Unlock()
		return ErrEphemeralKeyPending
	}
	cluster, static := n.cluster, n.staticKey
	if cluster == "" || static == nil {
		n.mu.Unlock()
		return fmt.Errorf("%w: kms cluster unknown", ErrEphemeralKeyFetchFailed)
	}
	pub, priv, err := crypto.GenerateBoxKeyPair()
	if err != nil {
		n.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrEphemeralKeyFetchFailed, err)
	}
	req := &ephemeralRequest{id: uuid.NewString(), priv: priv, done: make(chan error, 1)}
	n.ephemeralReq = req
	n.mu.Unlock()

	release := func() {
		n.mu.Lock()
		if n.ephemeralReq == req {
			n.ephemeralReq = nil
		}
		n.mu.Unlock()
	}

	msg, err := n.newRequest(ctx, req.id, methodCreate, cluster+ecdheSuffix)
	if err != nil {
		release()
		return err
	}
	jwk := crypto.X25519JWK(pub)
	msg.JWK = &jwk

	plain, err := json.Marshal(msg)
	if err != nil {
		release()
		return fmt.Errorf("%w: %v", ErrEphemeralKeyFetchFailed, err)
	}
	sealed, err := crypto.SealBox(plain, static)
	if err != nil {
		release()
		return fmt.Errorf("%w: %v", ErrEphemeralKeyFetchFailed, err)
	}
	if err := n.post(ctx, "ecdhe", base64.StdEncoding.EncodeToString(sealed), cluster); err != nil {
		release()
		return err
	}

	timer := time.NewTimer(n.timeout)
	defer timer.Stop()
	select {
	case err := <-req.done:
		return err
	case <-timer.C:
		release()
		return fmt.Errorf("%w: %w", ErrEphemeralKeyFetchFailed, ErrRequestTimeout)
	case <-ctx.Done():
		release()
		return ctx.Err()
	}
}

// newRequest fills in client credentials. A missing token is an auth
// failure; any other missing piece fails the ephemeral key fetch.
func (n *Negotiator) newRequest(ctx context.Context, requestID, method, uri string) (*request, error) {
	if n.auth == nil {
		return nil, transport.ErrAuthRequired
	}
	token, err := n.auth.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if n.identity == nil {
		return nil, ErrEphemeralKeyFetchFailed
	}
	deviceURL, err := n.identity.DeviceURL()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEphemeralKeyFetchFailed, err)
	}
	n.mu.Lock()
	userID := n.userID
	n.mu.Unlock()
	if userID == "" {
		return nil, fmt.Errorf("%w: user id unknown", ErrEphemeralKeyFetchFailed)
	}
	return &request{
		Client: requestClient{
			ClientID:   deviceURL,
			Credential: credential{UserID: userID, Bearer: token},
		},
		RequestID: requestID,
		Method:    method,
		URI:       uri,
	}, nil
}

// seal encrypts a request under the ephemeral key.
func (n *Negotiator) seal(msg *request) (string, error) {
	n.mu.Lock()
	key := n.ephemeral
	n.mu.Unlock()
	if key == nil {
		return "", fmt.Errorf("%w: no ephemeral key", ErrEphemeralKeyFetchFailed)
	}
	plain, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEphemeralKeyFetchFailed, err)
	}
	return crypto.SealString(plain, key)
}

func (n *Negotiator) post(ctx context.Context, label, cipher, destination string) error {
	metrics.KMSRequest(label)
	body := wire.KMSMessages{KMSMessages: []string{cipher}, Destination: destination}
	if err := transport.Post(ctx, n.doer, "kms/messages", body, nil); err != nil {
		return fmt.Errorf("%w: post kms message: %w", ErrEphemeralKeyFetchFailed, err)
	}
	return nil
}

// send builds, seals and posts a KMS request. It returns the request id.
func (n *Negotiator) send(ctx context.Context, label, method, uri string, fill func(*request), bind func(id string)) error {
	if err := n.PrepareEncryptionKey(ctx); err != nil {
		return err
	}
	id := uuid.NewString()
	msg, err := n.newRequest(ctx, id, method, uri)
	if err != nil {
		return err
	}
	if fill != nil {
		fill(msg)
	}
	cipher, err := n.seal(msg)
	if err != nil {
		return err
	}
	if bind != nil {
		bind(id)
	}
	logger.Debugf("[kms] %s %s (%s)", method, uri, id)
	return n.post(ctx, label, cipher, destinationUnused)
}

// wireContext detaches wire work from a caller's cancellation: other
// callers may be waiting on the same request.
func (n *Negotiator) wireContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
}
