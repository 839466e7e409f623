package crypto

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the access token payload the client cares about.
type TokenClaims struct {
	UserID string `json:"user,omitempty"`
	jwt.RegisteredClaims
}

// ParseTokenClaims decodes a JWT without verifying its signature.
//
// The server remains authoritative; the client only uses the claims for
// proactive expiry checks and as a hint for its own user id.
func ParseTokenClaims(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}

// ExpiresWithin reports whether the claims expire within window of now.
// Tokens without an exp claim never expire from the client's point of view.
func (c *TokenClaims) ExpiresWithin(now time.Time, window time.Duration) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.Time.After(now.Add(window))
}

// Subject returns the user id carried by the token, if any.
func (c *TokenClaims) Subject() string {
	if c == nil {
		return ""
	}
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}
