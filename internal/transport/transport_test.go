package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestClientDoJSON(t *testing.T) {
	var gotAuth, gotUA string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		require.Equal(t, "/v1/things", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"id":"t-1"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1/", NewStaticAuthenticator("tok", ""), WithUserAgent("rtc-test/1"))
	defer c.Close()

	var out struct {
		ID string `json:"id"`
	}
	err := Post(context.Background(), c, "things", map[string]any{"a": 1}, &out)
	require.NoError(t, err)
	require.Equal(t, "t-1", out.ID)
	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, "rtc-test/1", gotUA)
	require.EqualValues(t, 1, gotBody["a"])
}

func TestClientAbsoluteURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/loci/abc", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New("http://unused.invalid", NewStaticAuthenticator("tok", ""))
	require.NoError(t, Get(context.Background(), c, srv.URL+"/loci/abc", nil))
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/unauth":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("missing"))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, NewStaticAuthenticator("tok", ""))

	err := Get(context.Background(), c, "/unauth", nil)
	require.ErrorIs(t, err, ErrAuthRequired)

	err = Get(context.Background(), c, "/nope", nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	require.Equal(t, "missing", httpErr.Body)
	require.True(t, IsStatus(err, http.StatusNotFound))

	noAuth := New(srv.URL, NewStaticAuthenticator("", ""))
	require.ErrorIs(t, Get(context.Background(), noAuth, "/x", nil), ErrAuthRequired)
}

func signed(t *testing.T, exp time.Time, user string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp":  exp.Unix(),
		"user": user,
	})
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestStaticAuthenticatorExpiry(t *testing.T) {
	ctx := context.Background()

	fresh := NewStaticAuthenticator(signed(t, time.Now().Add(time.Hour), "u-9"), "")
	tok, err := fresh.AccessToken(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	require.Equal(t, "u-9", fresh.UserHint(ctx))

	stale := NewStaticAuthenticator(signed(t, time.Now().Add(10*time.Second), "u-9"), "")
	_, err = stale.AccessToken(ctx)
	require.ErrorIs(t, err, ErrAuthRequired)

	opaque := NewStaticAuthenticator("opaque-token", "")
	tok, err = opaque.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "opaque-token", tok)
	require.Empty(t, opaque.UserHint(ctx))
}

func TestStaticAuthenticatorTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o600))

	a := NewStaticAuthenticator("ignored", path)
	tok, err := a.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "first", tok)

	require.NoError(t, os.WriteFile(path, []byte("second"), 0o600))
	tok, err = a.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "second", tok)

	missing := NewStaticAuthenticator("", filepath.Join(t.TempDir(), "none"))
	_, err = missing.AccessToken(context.Background())
	require.ErrorIs(t, err, ErrAuthRequired)
}
