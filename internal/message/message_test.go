package message

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bhandras/delight/rtc/internal/crypto"
	"github.com/bhandras/delight/rtc/internal/dispatch"
	"github.com/bhandras/delight/rtc/internal/kms"
	"github.com/bhandras/delight/rtc/internal/protocol/wire"
	"github.com/bhandras/delight/rtc/internal/transport"
	"github.com/stretchr/testify/require"
)

const testKeyURL = "kms://kms.example.com/keys/k1"

type fakeKeys struct {
	mu        sync.Mutex
	secret    []byte
	key       kms.Key
	refreshed []string
}

func newFakeKeys(t *testing.T) *fakeKeys {
	t.Helper()
	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)
	jwk, err := crypto.OctetJWK(secret, testKeyURL)
	require.NoError(t, err)
	return &fakeKeys{secret: secret, key: kms.Key{URI: testKeyURL, JWK: jwk}}
}

func (f *fakeKeys) PrepareEncryptionKey(context.Context) error { return nil }

func (f *fakeKeys) Material(context.Context, string) (kms.Key, error) { return f.key, nil }

func (f *fakeKeys) Retrieve(_ context.Context, keyURL string) (kms.Key, error) {
	if keyURL != f.key.URI {
		return kms.Key{}, fmt.Errorf("unknown key %s", keyURL)
	}
	return f.key, nil
}

func (f *fakeKeys) TryRefresh(spaceID, newURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, spaceID+"="+newURL)
	return true
}

func (f *fakeKeys) seal(t *testing.T, text string) string {
	t.Helper()
	s, err := crypto.SealString([]byte(text), f.secret)
	require.NoError(t, err)
	return s
}

type harness struct {
	client *Client
	keys   *fakeKeys
	srv    *httptest.Server
}

func newHarness(t *testing.T, handler http.HandlerFunc) *harness {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	doer := transport.New(srv.URL+"/", transport.NewStaticAuthenticator("tok", ""))
	t.Cleanup(func() { _ = doer.Close() })

	events := dispatch.New(0)
	t.Cleanup(events.Close)

	keys := newFakeKeys(t)
	return &harness{
		client: New(Config{Doer: doer, Keys: keys, Events: events, ChunkSize: 4}),
		keys:   keys,
		srv:    srv,
	}
}

func TestPostEncryptsContent(t *testing.T) {
	var posted wire.Activity
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/activities", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		posted.ID = "a1"
		_ = json.NewEncoder(w).Encode(posted)
	})

	msg, err := h.client.Post(context.Background(), "space-1", "hello there")
	require.NoError(t, err)
	require.Equal(t, "a1", msg.ID)
	require.Equal(t, "hello there", msg.Text)
	require.Equal(t, "space-1", msg.SpaceID)

	require.Equal(t, wire.VerbPost, posted.Verb)
	require.Equal(t, testKeyURL, posted.EncryptionKeyURL)
	require.NotEmpty(t, posted.ClientTempID)
	require.NotContains(t, posted.Object.DisplayName, "hello")
	plain, err := crypto.OpenString(posted.Object.DisplayName, h.keys.secret)
	require.NoError(t, err)
	require.Equal(t, "hello there", string(plain))

	_, err = h.client.Post(context.Background(), "space-1", "")
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestListDecryptsMessages(t *testing.T) {
	var h *harness
	h = newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/activities", r.URL.Path)
		require.Equal(t, "space-1", r.URL.Query().Get("conversationId"))
		require.Equal(t, "10", r.URL.Query().Get("limit"))
		list := wire.ActivityList{Items: []wire.Activity{
			{
				ID:               "a2",
				Verb:             wire.VerbPost,
				Object:           wire.ActivityObject{ObjectType: objectComment, DisplayName: h.keys.seal(t, "second")},
				Target:           &wire.ActivityTarget{ID: "space-1"},
				EncryptionKeyURL: testKeyURL,
			},
			{ID: "a3", Verb: wire.VerbDelete, Object: wire.ActivityObject{ID: "a0"}},
			{
				ID:               "a4",
				Verb:             wire.VerbPost,
				Object:           wire.ActivityObject{ObjectType: objectComment, DisplayName: "garbage"},
				EncryptionKeyURL: testKeyURL,
			},
		}}
		_ = json.NewEncoder(w).Encode(list)
	})

	msgs, err := h.client.List(context.Background(), "space-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "second", msgs[0].Text)
}

func TestHandleActivityEvents(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	events := make(chan Event, 4)
	h.client.OnEvent(func(ev Event) { events <- ev })

	ctx := context.Background()
	require.NoError(t, h.client.HandleActivity(ctx, &wire.Activity{
		ID:               "a5",
		Verb:             wire.VerbPost,
		Object:           wire.ActivityObject{DisplayName: h.keys.seal(t, "fixed typo")},
		Target:           &wire.ActivityTarget{ID: "space-1"},
		Parent:           &wire.ActivityParent{ID: "a2", Type: parentEdit},
		EncryptionKeyURL: testKeyURL,
	}))
	require.NoError(t, h.client.HandleActivity(ctx, &wire.Activity{
		ID:     "a6",
		Verb:   wire.VerbDelete,
		Object: wire.ActivityObject{ID: "a5"},
		Target: &wire.ActivityTarget{ID: "space-1"},
	}))
	require.NoError(t, h.client.HandleActivity(ctx, &wire.Activity{
		Verb:   wire.VerbUpdateKey,
		Object: wire.ActivityObject{DefaultActivityEncryptionKeyURL: "kms://kms.example.com/keys/k2"},
		Target: &wire.ActivityTarget{ID: "space-1"},
	}))

	var got []Event
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(time.Second):
			t.Fatal("missing message events")
		}
	}
	require.Equal(t, EventUpdated, got[0].Kind)
	require.Equal(t, "fixed typo", got[0].Message.Text)
	require.Equal(t, "a2", got[0].Message.EditOf)
	require.Equal(t, EventDeleted, got[1].Kind)
	require.Equal(t, "a5", got[1].DeletedID)
	require.Equal(t, []string{"space-1=kms://kms.example.com/keys/k2"}, h.keys.refreshed)

	err := h.client.HandleActivity(ctx, &wire.Activity{
		ID:     "a7",
		Verb:   wire.VerbPost,
		Object: wire.ActivityObject{DisplayName: "sealed"},
	})
	require.ErrorIs(t, err, ErrMissingKey)
}

func TestConcurrentUploadsDoNotInterleave(t *testing.T) {
	var (
		mu       sync.Mutex
		sessions int
		chunks   []string
	)
	var h *harness
	h = newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/files/upload_sessions":
			mu.Lock()
			sessions++
			id := sessions
			mu.Unlock()
			_ = json.NewEncoder(w).Encode(wire.UploadSession{
				UploadURL:       fmt.Sprintf("%s/upload/%d", h.srv.URL, id),
				FinishUploadURL: fmt.Sprintf("%s/finish/%d", h.srv.URL, id),
			})
		case strings.HasPrefix(r.URL.Path, "/upload/"):
			mu.Lock()
			chunks = append(chunks, strings.TrimPrefix(r.URL.Path, "/upload/"))
			mu.Unlock()
			// Give a concurrent upload the chance to interleave.
			time.Sleep(2 * time.Millisecond)
			w.WriteHeader(http.StatusNoContent)
		case strings.HasPrefix(r.URL.Path, "/finish/"):
			_ = json.NewEncoder(w).Encode(wire.FinishedUpload{URL: "https://files/" + strings.TrimPrefix(r.URL.Path, "/finish/")})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			files, err := h.client.UploadFiles(context.Background(), "space-1", Upload{
				Name: fmt.Sprintf("file-%d.txt", i),
				Data: []byte(strings.Repeat("x", 10)),
			})
			if err == nil && len(files) != 1 {
				err = fmt.Errorf("got %d files", len(files))
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, sessions)
	seen := make(map[string]bool)
	prev := ""
	for _, id := range chunks {
		if id != prev {
			require.False(t, seen[id], "chunks of upload %s interleaved: %v", id, chunks)
			seen[id] = true
			prev = id
		}
	}
}

func TestUploadEncryptsNames(t *testing.T) {
	var h *harness
	h = newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/files/upload_sessions":
			_ = json.NewEncoder(w).Encode(wire.UploadSession{
				UploadURL:       h.srv.URL + "/upload/1",
				FinishUploadURL: h.srv.URL + "/finish/1",
			})
		case r.URL.Path == "/finish/1":
			_ = json.NewEncoder(w).Encode(wire.FinishedUpload{URL: "https://files/1"})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	files, err := h.client.UploadFiles(context.Background(), "space-1", Upload{Name: "notes.txt", Data: []byte("abc")})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "https://files/1", files[0].URL)
	require.EqualValues(t, 3, files[0].FileSize)
	name, err := crypto.OpenString(files[0].DisplayName, h.keys.secret)
	require.NoError(t, err)
	require.Equal(t, "notes.txt", string(name))
}
