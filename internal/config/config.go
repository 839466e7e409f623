package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bhandras/delight/rtc/internal/transport"
	"gopkg.in/yaml.v3"
)

const (
	// PushMercury selects the raw websocket event stream.
	PushMercury = "mercury"
	// PushSocketIO selects the socket.io event stream.
	PushSocketIO = "socketio"
	// PushNATS selects the NATS relay.
	PushNATS = "nats"

	defaultServerURL = "https://rtc.delight.local/v1"
)

type Config struct {
	// ServerURL is the base URL of the REST API (devices, kms, conversations, loci).
	ServerURL string `yaml:"server_url"`

	// Token is a bearer access token. When empty, TokenFile is read instead.
	Token string `yaml:"token"`
	// TokenFile is the path to a file holding the access token.
	TokenFile string `yaml:"token_file"`

	// DeviceName is reported when registering the device.
	DeviceName string `yaml:"device_name"`

	// Push selects the push event transport (mercury|socketio|nats).
	Push string `yaml:"push"`
	// MercuryURL overrides the websocket URL advertised by device registration.
	MercuryURL string `yaml:"mercury_url"`
	// SocketIOURL is the socket.io server used when Push is socketio.
	SocketIOURL string `yaml:"socketio_url"`
	// NATSURL is the NATS server used when Push is nats.
	NATSURL string `yaml:"nats_url"`
	// NATSSubjectPrefix prefixes the per-user push subjects.
	NATSSubjectPrefix string `yaml:"nats_subject_prefix"`

	// HTTPTimeout bounds individual REST requests.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	// KMSTimeout bounds how long a caller waits for an asynchronous KMS response.
	KMSTimeout time.Duration `yaml:"kms_timeout"`

	// LogLevel is the logger threshold (trace|debug|info|warn|error).
	LogLevel string `yaml:"log_level"`
	// MetricsAddr, when set, exposes prometheus metrics on this address.
	MetricsAddr string `yaml:"metrics_addr"`
	// PushoverToken and PushoverUser enable alerts for incoming calls and
	// messages while watching.
	PushoverToken string `yaml:"pushover_token"`
	PushoverUser  string `yaml:"pushover_user"`

	// Debug enables verbose logging.
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		ServerURL:         defaultServerURL,
		DeviceName:        "rtc-go",
		Push:              PushMercury,
		NATSSubjectPrefix: "rtc.events",
		HTTPTimeout:       15 * time.Second,
		KMSTimeout:        30 * time.Second,
		LogLevel:          "info",
	}
}

// Load builds configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.mergeEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) mergeEnv() {
	setString(&c.ServerURL, "RTC_SERVER_URL")
	setString(&c.Token, "RTC_TOKEN")
	setString(&c.TokenFile, "RTC_TOKEN_FILE")
	setString(&c.Push, "RTC_PUSH")
	setString(&c.MercuryURL, "RTC_MERCURY_URL")
	setString(&c.SocketIOURL, "RTC_SOCKETIO_URL")
	setString(&c.NATSURL, "RTC_NATS_URL")
	setString(&c.LogLevel, "RTC_LOG_LEVEL")
	setString(&c.MetricsAddr, "RTC_METRICS_ADDR")
	setString(&c.PushoverToken, "RTC_PUSHOVER_TOKEN")
	setString(&c.PushoverUser, "RTC_PUSHOVER_USER")

	if v := os.Getenv("RTC_KMS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.KMSTimeout = d
		}
	}

	debug := os.Getenv("DEBUG")
	if debug == "true" || debug == "1" {
		c.Debug = true
	}
	if c.Debug && c.LogLevel == "info" {
		c.LogLevel = "debug"
	}
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	if c.ServerURL == "" {
		return fmt.Errorf("server url is required")
	}
	switch c.Push {
	case PushMercury, PushSocketIO:
	case PushNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("push transport %q requires a nats url", c.Push)
		}
	default:
		return fmt.Errorf("invalid push transport %q (expected mercury, socketio, or nats)", c.Push)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.KMSTimeout <= 0 {
		return fmt.Errorf("kms timeout must be positive")
	}
	return nil
}

// Authenticator returns the token source described by Token and TokenFile.
func (c *Config) Authenticator() *transport.StaticAuthenticator {
	return transport.NewStaticAuthenticator(c.Token, c.TokenFile)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
