// Package device registers this client with the service and caches the
// resulting identity (device URL, user id).
package device

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bhandras/delight/rtc/internal/protocol/wire"
	"github.com/bhandras/delight/rtc/internal/transport"
	"github.com/bhandras/delight/rtc/pkg/logger"
)

const deviceTypeDesktop = "DESKTOP"

var (
	// ErrMissingDeviceURL is returned when the device has not been registered.
	ErrMissingDeviceURL = errors.New("device not registered")
	// ErrMissingUserID is returned when the user identity could not be resolved.
	ErrMissingUserID = errors.New("user identity unavailable")
)

// Registry holds the device registration for the current process.
type Registry struct {
	doer transport.Doer
	name string

	mu     sync.Mutex
	device *wire.Device
	userID string
}

// NewRegistry returns an unregistered registry.
func NewRegistry(doer transport.Doer, name string) *Registry {
	return &Registry{doer: doer, name: name}
}

// Register creates the device registration, or refreshes it when this
// process already registered.
func (r *Registry) Register(ctx context.Context) (*wire.Device, error) {
	req := wire.DeviceRequest{DeviceName: r.name, DeviceType: deviceTypeDesktop}

	if current, ok := r.Device(); ok {
		var dev wire.Device
		err := transport.Put(ctx, r.doer, current.URL, req, &dev)
		switch {
		case err == nil:
			if dev.URL == "" {
				dev.URL = current.URL
			}
			r.adopt(&dev)
			logger.Infof("[device] refreshed %s", dev.URL)
			return &dev, nil
		case transport.IsStatus(err, http.StatusNotFound):
			logger.Infof("[device] %s is gone, registering again", current.URL)
			r.Reset()
		default:
			return nil, fmt.Errorf("refresh device: %w", err)
		}
	}

	var dev wire.Device
	if err := transport.Post(ctx, r.doer, "devices", req, &dev); err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}
	if dev.URL == "" {
		return nil, fmt.Errorf("register device: %w", ErrMissingDeviceURL)
	}
	r.adopt(&dev)
	logger.Infof("[device] registered %s", dev.URL)
	return &dev, nil
}

// Unregister deletes the registration from the server.
func (r *Registry) Unregister(ctx context.Context) error {
	deviceURL, err := r.DeviceURL()
	if err != nil {
		return err
	}
	err = r.doer.Do(ctx, http.MethodDelete, deviceURL, nil, nil)
	if err != nil && !transport.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("unregister device: %w", err)
	}
	r.Reset()
	logger.Infof("[device] unregistered %s", deviceURL)
	return nil
}

func (r *Registry) adopt(dev *wire.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *dev
	r.device = &cp
	if dev.UserID != "" {
		r.userID = dev.UserID
	}
}

// Device returns the current registration, if any.
func (r *Registry) Device() (*wire.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.device == nil {
		return nil, false
	}
	dev := *r.device
	return &dev, true
}

// DeviceURL returns the registered device URL.
func (r *Registry) DeviceURL() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.device == nil || r.device.URL == "" {
		return "", ErrMissingDeviceURL
	}
	return r.device.URL, nil
}

// UserID returns the current user's id, fetching it once.
func (r *Registry) UserID(ctx context.Context) (string, error) {
	r.mu.Lock()
	id := r.userID
	r.mu.Unlock()
	if id != "" {
		return id, nil
	}

	var me wire.Person
	if err := transport.Get(ctx, r.doer, "people/me", &me); err != nil {
		return "", fmt.Errorf("fetch user id: %w", err)
	}
	if me.ID == "" {
		return "", ErrMissingUserID
	}

	r.mu.Lock()
	if r.userID == "" {
		r.userID = me.ID
	}
	id = r.userID
	r.mu.Unlock()
	return id, nil
}

// Reset forgets the registration so the next call must register again.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.device = nil
	r.userID = ""
}
