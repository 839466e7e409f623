package kms

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bhandras/delight/rtc/internal/crypto"
	"github.com/bhandras/delight/rtc/internal/protocol/wire"
	"github.com/bhandras/delight/rtc/internal/transport"
	"github.com/stretchr/testify/require"
)

const testCluster = "kms://cluster.test"

type fakeIdentity struct {
	deviceURL string
	userID    string
}

func (f fakeIdentity) DeviceURL() (string, error) {
	if f.deviceURL == "" {
		return "", errors.New("no device")
	}
	return f.deviceURL, nil
}

func (f fakeIdentity) UserID(context.Context) (string, error) {
	if f.userID == "" {
		return "", errors.New("no user")
	}
	return f.userID, nil
}

// fakeKMS plays the REST side of the service and the KMS. Replies to KMS
// requests are pushed back through the negotiator like a push channel would.
type fakeKMS struct {
	t   *testing.T
	srv *httptest.Server
	neg *Negotiator

	staticPub  *[32]byte
	staticPriv *[32]byte

	mu            sync.Mutex
	shared        []byte
	holdECDHE     bool
	failMessages  bool
	requests      []request
	activities    []wire.Activity
	conversations map[string]wire.Conversation
}

func newFakeKMS(t *testing.T) *fakeKMS {
	t.Helper()
	pub, priv, err := crypto.GenerateBoxKeyPair()
	require.NoError(t, err)

	f := &fakeKMS{
		t:             t,
		staticPub:     pub,
		staticPriv:    priv,
		conversations: make(map[string]wire.Conversation),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

// negotiator builds a Negotiator against the fake with the given token.
func (f *fakeKMS) negotiator(token string, id Identity) *Negotiator {
	doer := transport.New(f.srv.URL, transport.NewStaticAuthenticator(token, ""))
	n := New(Config{
		Doer:     doer,
		Auth:     transport.NewStaticAuthenticator(token, ""),
		Identity: id,
	})
	f.neg = n
	return n
}

func (f *fakeKMS) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/kms/user-1":
		_ = json.NewEncoder(w).Encode(wire.KMSInfo{
			KMSCluster:      testCluster,
			StaticPublicKey: base64.StdEncoding.EncodeToString(f.staticPub[:]),
		})
	case r.URL.Path == "/kms/messages":
		f.serveMessages(w, r)
	case strings.HasPrefix(r.URL.Path, "/conversations/"):
		id := strings.TrimPrefix(r.URL.Path, "/conversations/")
		require.Equal(f.t, "-1", r.URL.Query().Get("participantsLimit"))
		f.mu.Lock()
		conv, ok := f.conversations[id]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(conv)
	case r.URL.Path == "/activities":
		var act wire.Activity
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&act))
		f.mu.Lock()
		f.activities = append(f.activities, act)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(act)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeKMS) serveMessages(w http.ResponseWriter, r *http.Request) {
	var body wire.KMSMessages
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
	require.Len(f.t, body.KMSMessages, 1)

	if body.Destination == testCluster {
		f.handleECDHE(body.KMSMessages[0])
		return
	}
	require.Equal(f.t, destinationUnused, body.Destination)

	f.mu.Lock()
	fail := f.failMessages
	shared := f.shared
	f.mu.Unlock()
	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	plain, err := crypto.OpenString(body.KMSMessages[0], shared)
	require.NoError(f.t, err)
	var req request
	require.NoError(f.t, json.Unmarshal(plain, &req))

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
}

func (f *fakeKMS) handleECDHE(msg string) {
	sealed, err := base64.StdEncoding.DecodeString(msg)
	require.NoError(f.t, err)
	plain, err := crypto.OpenBox(sealed, f.staticPriv)
	require.NoError(f.t, err)

	var req request
	require.NoError(f.t, json.Unmarshal(plain, &req))
	require.Equal(f.t, testCluster+ecdheSuffix, req.URI)
	require.NotNil(f.t, req.JWK)
	require.Equal(f.t, "tok", req.Client.Credential.Bearer)

	f.mu.Lock()
	hold := f.holdECDHE
	f.mu.Unlock()
	if hold {
		return
	}

	clientPub, err := req.JWK.PublicKey()
	require.NoError(f.t, err)
	serverPub, serverPriv, err := crypto.GenerateBoxKeyPair()
	require.NoError(f.t, err)
	shared, err := crypto.DeriveSharedKey(serverPriv, clientPub, crypto.EphemeralInfo)
	require.NoError(f.t, err)

	f.mu.Lock()
	f.shared = shared
	f.mu.Unlock()

	var resp ephemeralResponse
	resp.RequestID = req.RequestID
	resp.Key.JWK = crypto.X25519JWK(serverPub)
	raw, err := json.Marshal(resp)
	require.NoError(f.t, err)

	go f.neg.HandleMessages([]string{base64.StdEncoding.EncodeToString(raw)})
}

// reply pushes an encrypted KMS response to the negotiator.
func (f *fakeKMS) reply(resp response) {
	f.mu.Lock()
	shared := f.shared
	f.mu.Unlock()

	raw, err := json.Marshal(resp)
	require.NoError(f.t, err)
	cipher, err := crypto.SealString(raw, shared)
	require.NoError(f.t, err)
	f.neg.HandleMessages([]string{cipher})
}

// matching returns recorded requests accepted by keep.
func (f *fakeKMS) matching(keep func(request) bool) []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []request
	for _, r := range f.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeKMS) creates() []request {
	return f.matching(func(r request) bool { return r.Method == methodCreate && r.URI == keysURI })
}

func (f *fakeKMS) resources() []request {
	return f.matching(func(r request) bool { return r.Method == methodCreate && r.URI == resourcesURI })
}

func (f *fakeKMS) retrieves(uri string) []request {
	return f.matching(func(r request) bool { return r.Method == methodRetrieve && r.URI == uri })
}

func (f *fakeKMS) postedActivities() []wire.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wire.Activity, len(f.activities))
	copy(out, f.activities)
	return out
}

func (f *fakeKMS) addConversation(conv wire.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[conv.ID] = conv
}

func jsonString(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}
