// Package notify forwards call and message alerts to Pushover so a headless
// client can still reach its user.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"resty.dev/v3"
)

const (
	defaultEndpoint = "https://api.pushover.net/1/messages.json"
	defaultTimeout  = 10 * time.Second
)

// Config holds Pushover credentials and delivery defaults.
type Config struct {
	Token    string
	User     string
	Priority int
	// Cooldown is the minimum interval between alerts sharing a key.
	Cooldown time.Duration
	// Endpoint overrides the Pushover API URL.
	Endpoint string
}

// Alert is one notification.
type Alert struct {
	Title string
	Body  string
	// Key groups alerts for cooldown, e.g. a call URL or space id.
	Key string
}

// Alerter delivers alerts, dropping repeats within the cooldown.
type Alerter struct {
	cfg  Config
	http *resty.Client

	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time
}

// New validates cfg and returns an Alerter.
func New(cfg Config) (*Alerter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("pushover token is required")
	}
	if strings.TrimSpace(cfg.User) == "" {
		return nil, fmt.Errorf("pushover user key is required")
	}
	if cfg.Cooldown < 0 {
		return nil, fmt.Errorf("pushover cooldown must be non-negative")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	return &Alerter{
		cfg:      cfg,
		http:     resty.New().SetTimeout(defaultTimeout),
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}, nil
}

// Close releases idle connections.
func (a *Alerter) Close() error {
	return a.http.Close()
}

// Send delivers alert unless one with the same key went out within the
// cooldown. It reports whether the alert was sent.
func (a *Alerter) Send(ctx context.Context, alert Alert) (bool, error) {
	key := strings.TrimSpace(alert.Key)
	if key == "" {
		return false, fmt.Errorf("alert key is required")
	}
	body := strings.TrimSpace(alert.Body)
	if body == "" {
		return false, fmt.Errorf("alert body is required")
	}

	now := a.now()
	if !a.reserve(key, now) {
		return false, nil
	}

	form := map[string]string{
		"token":   a.cfg.Token,
		"user":    a.cfg.User,
		"message": body,
	}
	if title := strings.TrimSpace(alert.Title); title != "" {
		form["title"] = title
	}
	if a.cfg.Priority != 0 {
		form["priority"] = strconv.Itoa(a.cfg.Priority)
	}

	resp, err := a.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(a.cfg.Endpoint)
	if err != nil {
		a.release(key, now)
		return false, fmt.Errorf("pushover request failed: %w", err)
	}
	if resp.IsError() {
		a.release(key, now)
		return false, fmt.Errorf("pushover response %s: %s", resp.Status(), strings.TrimSpace(resp.String()))
	}
	return true, nil
}

// reserve claims the key for now when its cooldown has passed.
func (a *Alerter) reserve(key string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if last, ok := a.lastSent[key]; ok && a.cfg.Cooldown > 0 && now.Sub(last) < a.cfg.Cooldown {
		return false
	}
	a.lastSent[key] = now
	return true
}

// release undoes a reservation after a failed send.
func (a *Alerter) release(key string, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastSent[key].Equal(at) {
		delete(a.lastSent, key)
	}
}
