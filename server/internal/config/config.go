package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort        = 5000
	DefaultLogLevel        = "info"
	DefaultDelivery        = DeliveryPiggyback
	DefaultPongWait        = 60 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultMaxMessageBytes = 64 * 1024
	DefaultSendBuffer      = 16
	DefaultOSCHost         = "127.0.0.1"
	DefaultOSCPort         = 9000
)

// Event delivery modes for WebSocket sessions.
const (
	// DeliveryPiggyback checks for new events only after an inbound frame.
	DeliveryPiggyback = "piggyback"
	// DeliveryPush also wakes sessions as soon as an event is armed.
	DeliveryPush = "push"
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the HTTP API and WebSocket endpoint listen on (default 5000).
	HTTPPort int `yaml:"http_port"`

	Log   LogConfig   `yaml:"log"`
	Auth  AuthConfig  `yaml:"auth"`
	Users UsersConfig `yaml:"users"`
	WS    WSConfig    `yaml:"ws"`
	OSC   OSCConfig   `yaml:"osc"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`
}

// SlogLevel maps Level onto a slog.Level. Unknown values fall back to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AuthConfig controls API key enforcement on the command endpoints.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "X-API-Key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "X-API-Key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "X-API-Key"
}

// UsersConfig controls retention of per-user pose records.
type UsersConfig struct {
	// TTL evicts a user record that has not been refreshed for this long.
	// Zero (the default) keeps records until the process exits.
	TTL time.Duration `yaml:"ttl"`
}

// WSConfig controls the /ws duplex sessions.
type WSConfig struct {
	// Delivery is one of: piggyback | push.
	Delivery string `yaml:"delivery"`

	// PongWait is the read deadline refreshed by every pong. The server pings
	// at 9/10 of this interval. Zero disables keepalive.
	PongWait time.Duration `yaml:"pong_wait"`

	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxMessageBytes caps an inbound frame.
	MaxMessageBytes int64 `yaml:"max_message_bytes"`

	// SendBuffer is the per-session outbound queue depth.
	SendBuffer int `yaml:"send_buffer"`
}

// OSCConfig controls the optional OSC forwarder for armed events.
type OSCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}
	return parse(data)
}

// parse applies data over Defaults and validates the result.
func parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Log:      LogConfig{Level: DefaultLogLevel},
			WS: WSConfig{
				Delivery:        DefaultDelivery,
				PongWait:        DefaultPongWait,
				WriteTimeout:    DefaultWriteTimeout,
				MaxMessageBytes: DefaultMaxMessageBytes,
				SendBuffer:      DefaultSendBuffer,
			},
			OSC: OSCConfig{
				Host: DefaultOSCHost,
				Port: DefaultOSCPort,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		return fmt.Errorf("server.log.level %q unknown: want debug|info|warn|error", s.Log.Level)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Users.TTL < 0 {
		return fmt.Errorf("server.users.ttl must not be negative")
	}
	switch s.WS.Delivery {
	case DeliveryPiggyback, DeliveryPush:
	default:
		return fmt.Errorf("server.ws.delivery %q unknown: want piggyback|push", s.WS.Delivery)
	}
	if s.WS.PongWait < 0 {
		return fmt.Errorf("server.ws.pong_wait must not be negative")
	}
	if s.WS.WriteTimeout <= 0 {
		return fmt.Errorf("server.ws.write_timeout must be positive")
	}
	if s.WS.MaxMessageBytes <= 0 {
		return fmt.Errorf("server.ws.max_message_bytes must be positive")
	}
	if s.WS.SendBuffer <= 0 {
		return fmt.Errorf("server.ws.send_buffer must be positive")
	}
	if s.OSC.Enabled {
		if s.OSC.Host == "" {
			return fmt.Errorf("server.osc.host is required when osc is enabled")
		}
		if s.OSC.Port <= 0 || s.OSC.Port > 65535 {
			return fmt.Errorf("server.osc.port %d is out of range [1, 65535]", s.OSC.Port)
		}
	}
	return nil
}
