// Package transport executes authenticated JSON requests against the service.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bhandras/delight/rtc/pkg/logger"
	"resty.dev/v3"
)

const defaultTimeout = 30 * time.Second

// Doer executes a JSON request. body may be nil; out may be nil to discard
// the response. url is either absolute or relative to the base URL.
type Doer interface {
	Do(ctx context.Context, method, url string, body, out any) error
}

// Client is a resty-backed Doer that attaches a bearer token to every call.
type Client struct {
	http *resty.Client
	auth Authenticator
}

var _ Doer = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithDebug enables resty request/response dumps through the logger.
func WithDebug(debug bool) Option {
	return func(c *Client) { c.http.SetDebug(debug) }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.http.SetHeader("User-Agent", ua)
		}
	}
}

// New returns a client rooted at baseURL.
func New(baseURL string, auth Authenticator, opts ...Option) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(defaultTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{})
	c := &Client{http: rc, auth: auth}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// Do implements Doer.
func (c *Client) Do(ctx context.Context, method, url string, body, out any) error {
	if c.auth == nil {
		return ErrAuthRequired
	}
	token, err := c.auth.AccessToken(ctx)
	if err != nil {
		return err
	}

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token)
	if body != nil {
		req.SetBody(body)
	}

	logger.Tracef("[http] %s %s", method, url)
	resp, err := req.Execute(method, url)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s %s rejected", ErrAuthRequired, method, url)
	}
	if !resp.IsSuccess() {
		return &HTTPError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}

	raw := resp.Bytes()
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, url, err)
	}
	return nil
}

// Get is a convenience wrapper around Do.
func Get(ctx context.Context, d Doer, url string, out any) error {
	return d.Do(ctx, http.MethodGet, url, nil, out)
}

// Post is a convenience wrapper around Do.
func Post(ctx context.Context, d Doer, url string, body, out any) error {
	return d.Do(ctx, http.MethodPost, url, body, out)
}

// Put is a convenience wrapper around Do.
func Put(ctx context.Context, d Doer, url string, body, out any) error {
	return d.Do(ctx, http.MethodPut, url, body, out)
}

type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...any) { logger.Errorf("[http] "+format, v...) }
func (restyLogger) Warnf(format string, v ...any)  { logger.Warnf("[http] "+format, v...) }
func (restyLogger) Debugf(format string, v ...any) { logger.Debugf("[http] "+format, v...) }
