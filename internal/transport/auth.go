package transport

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bhandras/delight/rtc/internal/crypto"
)

// tokenExpiryWindow is how far ahead of exp a token is considered expired.
const tokenExpiryWindow = 30 * time.Second

// Authenticator supplies bearer tokens for outgoing requests.
type Authenticator interface {
	// AccessToken returns a token or ErrAuthRequired.
	AccessToken(ctx context.Context) (string, error)
}

// StaticAuthenticator serves a fixed token, optionally re-read from a file.
//
// JWT tokens are checked against their exp claim; opaque tokens are passed
// through unchecked and the server decides.
type StaticAuthenticator struct {
	mu        sync.Mutex
	token     string
	tokenFile string
	now       func() time.Time
}

// NewStaticAuthenticator returns an authenticator for token. When tokenFile
// is set it takes precedence and is read on every call so rotated tokens are
// picked up.
func NewStaticAuthenticator(token, tokenFile string) *StaticAuthenticator {
	return &StaticAuthenticator{
		token:     strings.TrimSpace(token),
		tokenFile: tokenFile,
		now:       time.Now,
	}
}

// AccessToken implements Authenticator.
func (a *StaticAuthenticator) AccessToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	token := a.token
	if a.tokenFile != "" {
		raw, err := os.ReadFile(a.tokenFile)
		if err != nil {
			return "", fmt.Errorf("%w: read token file: %v", ErrAuthRequired, err)
		}
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return "", ErrAuthRequired
	}

	if strings.Count(token, ".") == 2 {
		claims, err := crypto.ParseTokenClaims(token)
		if err == nil && claims.ExpiresWithin(a.now(), tokenExpiryWindow) {
			return "", fmt.Errorf("%w: token expired", ErrAuthRequired)
		}
	}
	return token, nil
}

// UserHint returns the user id embedded in a JWT token, if any.
func (a *StaticAuthenticator) UserHint(ctx context.Context) string {
	token, err := a.AccessToken(ctx)
	if err != nil {
		return ""
	}
	claims, err := crypto.ParseTokenClaims(token)
	if err != nil {
		return ""
	}
	return claims.Subject()
}
