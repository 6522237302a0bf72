package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/feastline/feastline/pkg/types"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort                   = 8080
	DefaultHeartbeatInterval          = 25 * time.Second
	DefaultHeartbeatTimeoutMultiplier = 2
	DefaultSendBuffer                 = 32
	DefaultLocationTTL                = 2 * time.Minute
)

// Config holds the hub configuration parsed from the `server:` section of
// config.yaml. Other top-level keys in the same file are ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and the /ws endpoint listen on
	// (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates collaborator calls to
	// the notify API. WebSocket clients are not authenticated here — they
	// carry their identity in the join message.
	Auth AuthConfig `yaml:"auth"`

	// Hub holds connection liveness and backpressure tuning.
	Hub HubConfig `yaml:"hub"`

	// Locations controls retention of last-known driver positions.
	Locations LocationConfig `yaml:"locations"`

	// Webhooks lists optional HTTP targets that receive selected events.
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AuthConfig controls collaborator authentication on the notify API.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected
	// API key. Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// HubConfig holds connection liveness and backpressure tuning.
type HubConfig struct {
	// HeartbeatInterval controls how often the server sends WebSocket ping
	// frames to each client (default 25s).
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// HeartbeatTimeoutMultiplier sets the read deadline as a multiple of
	// HeartbeatInterval. Must be at least 2 so one missed pong does not
	// produce a false-positive disconnect. Default 2.
	HeartbeatTimeoutMultiplier int `yaml:"heartbeat_timeout_multiplier"`

	// SendBuffer is the per-connection outgoing message buffer depth.
	// A client whose buffer overflows is classified unhealthy and closed.
	// Default 32.
	SendBuffer int `yaml:"send_buffer"`
}

// HeartbeatTimeout returns the pong deadline derived from the interval and
// multiplier.
func (h HubConfig) HeartbeatTimeout() time.Duration {
	return h.HeartbeatInterval * time.Duration(h.HeartbeatTimeoutMultiplier)
}

// LocationConfig controls retention of last-known driver positions.
type LocationConfig struct {
	// TTL is how long a driver's position remains readable after the last
	// update. Stale entries are evicted in the background. Default: 2m.
	TTL time.Duration `yaml:"ttl"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`

	// Events lists the event types forwarded to this target. Empty means all.
	Events []types.EventType `yaml:"events"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Wants reports whether this target should receive events of type t.
func (w WebhookConfig) Wants(t types.EventType) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == t {
			return true
		}
	}
	return false
}

// Load reads and parses the config file at path, returning the server
// configuration. Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Hub: HubConfig{
				HeartbeatInterval:          DefaultHeartbeatInterval,
				HeartbeatTimeoutMultiplier: DefaultHeartbeatTimeoutMultiplier,
				SendBuffer:                 DefaultSendBuffer,
			},
			Locations: LocationConfig{
				TTL: DefaultLocationTTL,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Hub.HeartbeatInterval <= 0 {
		return fmt.Errorf("server.hub.heartbeat_interval must be positive")
	}
	if cfg.Server.Hub.HeartbeatTimeoutMultiplier < 2 {
		return fmt.Errorf("server.hub.heartbeat_timeout_multiplier %d must be at least 2",
			cfg.Server.Hub.HeartbeatTimeoutMultiplier)
	}
	if cfg.Server.Hub.SendBuffer <= 0 {
		return fmt.Errorf("server.hub.send_buffer must be positive")
	}
	if cfg.Server.Locations.TTL < 0 {
		return fmt.Errorf("server.locations.ttl must not be negative")
	}
	for i, wh := range cfg.Server.Webhooks {
		switch wh.Type {
		case "slack", "http":
		default:
			return fmt.Errorf("server.webhooks[%d].type %q unknown: want slack|http", i, wh.Type)
		}
		for _, e := range wh.Events {
			if !e.Valid() {
				return fmt.Errorf("server.webhooks[%d]: unknown event type %q", i, e)
			}
		}
	}
	return nil
}
