// Package config provides Viper-based configuration loading for the game server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// MaxConnections caps concurrently open client connections, push streams included.
	MaxConnections int `mapstructure:"max_connections"`
	// ReadTimeout bounds reading a full request (headers and body).
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout bounds a single push write on a stream connection.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AllowedOrigin is sent as Access-Control-Allow-Origin.
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionConfig holds session registry settings.
type SessionConfig struct {
	// MaxSessions is the fixed capacity of the session registry.
	MaxSessions int `mapstructure:"max_sessions"`
	// PushBuffer is the number of events queued per push channel before it is torn down.
	PushBuffer int `mapstructure:"push_buffer"`
	// HeartbeatInterval is the period of keep-alive frames on push streams; 0 disables them.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// RoomsConfig holds room registry and round rules.
type RoomsConfig struct {
	// MaxRooms is the number of room slots.
	MaxRooms int `mapstructure:"max_rooms"`
	// MaxPlayers is the per-room player capacity.
	MaxPlayers int `mapstructure:"max_players"`
	// MinRounds is the smallest accepted max_rounds request; smaller requests get DefaultRounds.
	MinRounds int `mapstructure:"min_rounds"`
	// MaxRounds is the largest accepted max_rounds request; larger requests are clamped to it.
	MaxRounds int `mapstructure:"max_rounds"`
	// DefaultRounds is used when a request omits max_rounds or goes below MinRounds.
	DefaultRounds int `mapstructure:"default_rounds"`
	// ScorePerCorrect is awarded for each correct answer.
	ScorePerCorrect int `mapstructure:"score_per_correct"`
	// AllowEndless permits creating rooms with no round limit.
	AllowEndless bool `mapstructure:"allow_endless"`
	// LeaveOnDisconnect removes a player from their room when their push stream dies.
	LeaveOnDisconnect bool `mapstructure:"leave_on_disconnect"`
}

// CatalogConfig holds item dataset settings.
type CatalogConfig struct {
	// Path is the item file (.yaml/.yml or legacy .txt). Empty selects the built-in items.
	Path string `mapstructure:"path"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Session SessionConfig `mapstructure:"session"`
	Rooms   RoomsConfig   `mapstructure:"rooms"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSession(c.Session); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRooms(c.Rooms); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 0 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 0-65535, got %d", s.Port))
	}
	if s.MaxConnections < 1 {
		errs = append(errs, fmt.Sprintf("server.max_connections must be >= 1, got %d", s.MaxConnections))
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout must not be negative")
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	if s.AllowedOrigin == "" {
		errs = append(errs, "server.allowed_origin must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSession(s SessionConfig) error {
	var errs []string
	if s.MaxSessions < 1 {
		errs = append(errs, fmt.Sprintf("session.max_sessions must be >= 1, got %d", s.MaxSessions))
	}
	if s.PushBuffer < 1 {
		errs = append(errs, fmt.Sprintf("session.push_buffer must be >= 1, got %d", s.PushBuffer))
	}
	if s.HeartbeatInterval < 0 {
		errs = append(errs, "session.heartbeat_interval must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRooms(r RoomsConfig) error {
	var errs []string
	if r.MaxRooms < 1 {
		errs = append(errs, fmt.Sprintf("rooms.max_rooms must be >= 1, got %d", r.MaxRooms))
	}
	if r.MaxPlayers < 1 {
		errs = append(errs, fmt.Sprintf("rooms.max_players must be >= 1, got %d", r.MaxPlayers))
	}
	if r.MinRounds < 1 {
		errs = append(errs, fmt.Sprintf("rooms.min_rounds must be >= 1, got %d", r.MinRounds))
	}
	if r.MaxRounds < r.MinRounds {
		errs = append(errs, "rooms.max_rounds must not be less than rooms.min_rounds")
	}
	if r.DefaultRounds < r.MinRounds || r.DefaultRounds > r.MaxRounds {
		errs = append(errs, fmt.Sprintf("rooms.default_rounds must be within [%d, %d], got %d", r.MinRounds, r.MaxRounds, r.DefaultRounds))
	}
	if r.ScorePerCorrect < 0 {
		errs = append(errs, fmt.Sprintf("rooms.score_per_correct must be >= 0, got %d", r.ScorePerCorrect))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path skips the file and uses
// defaults plus environment overrides only.
//
// Precondition: path must be empty or a valid path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with HILO_ prefix
	v.SetEnvPrefix("HILO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with no file or environment applied.
//
// Postcondition: The returned Config passes Validate.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_connections", 100)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "5s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origin", "*")

	v.SetDefault("session.max_sessions", 100)
	v.SetDefault("session.push_buffer", 64)
	v.SetDefault("session.heartbeat_interval", "15s")

	v.SetDefault("rooms.max_rooms", 20)
	v.SetDefault("rooms.max_players", 50)
	v.SetDefault("rooms.min_rounds", 5)
	v.SetDefault("rooms.max_rounds", 50)
	v.SetDefault("rooms.default_rounds", 10)
	v.SetDefault("rooms.score_per_correct", 10)
	v.SetDefault("rooms.allow_endless", false)
	v.SetDefault("rooms.leave_on_disconnect", false)

	v.SetDefault("catalog.path", "data/items.yaml")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
