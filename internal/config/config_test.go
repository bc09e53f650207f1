package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxConnections:  100,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigin:   "*",
		},
		Session: SessionConfig{
			MaxSessions:       100,
			PushBuffer:        64,
			HeartbeatInterval: 15 * time.Second,
		},
		Rooms: RoomsConfig{
			MaxRooms:        20,
			MaxPlayers:      50,
			MinRounds:       5,
			MaxRounds:       50,
			DefaultRounds:   10,
			ScorePerCorrect: 10,
		},
		Catalog: CatalogConfig{Path: "data/items.yaml"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, validConfig(), cfg)
}

func TestServerAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 9090
  max_connections: 8
session:
  max_sessions: 4
rooms:
  max_rooms: 3
  allow_endless: true
logging:
  level: debug
  format: console
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, 8, cfg.Server.MaxConnections)
	assert.Equal(t, 4, cfg.Session.MaxSessions)
	assert.Equal(t, 64, cfg.Session.PushBuffer, "unset keys keep their defaults")
	assert.Equal(t, 3, cfg.Rooms.MaxRooms)
	assert.True(t, cfg.Rooms.AllowEndless)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Rooms.MaxRooms)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HILO_ROOMS_MAX_PLAYERS", "7")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Rooms.MaxPlayers)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rooms:\n  max_rooms: 0\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rooms.max_rooms")
}

func TestValidateReportsEveryViolation(t *testing.T) {
	cfg := validConfig()
	cfg.Server.MaxConnections = 0
	cfg.Session.PushBuffer = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.max_connections")
	assert.Contains(t, err.Error(), "session.push_buffer")
	assert.Contains(t, err.Error(), "logging.format")
}

func TestValidateRoundBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Rooms.MaxRounds = 4
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Rooms.DefaultRounds = 60
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Rooms.DefaultRounds = 3
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateServerPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = -1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Server.Port = 65536
	assert.Error(t, cfg.Validate())
}

func TestValidateAllowedOriginEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.Server.AllowedOrigin = ""
	assert.Error(t, cfg.Validate())
}

// Property-based tests

func TestPropertyValidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(0, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid port %d rejected: %v", port, err)
		}
	})
}

func TestPropertyInvalidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.OneOf(
			rapid.IntRange(-1000, -1),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		if err := cfg.Validate(); err == nil {
			t.Fatalf("invalid port %d accepted", port)
		}
	})
}

func TestPropertyDefaultRoundsWithinBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		minRounds := rapid.IntRange(1, 20).Draw(t, "min")
		maxRounds := rapid.IntRange(minRounds, 100).Draw(t, "max")
		def := rapid.IntRange(-10, 120).Draw(t, "default")

		cfg := validConfig()
		cfg.Rooms.MinRounds = minRounds
		cfg.Rooms.MaxRounds = maxRounds
		cfg.Rooms.DefaultRounds = def

		err := cfg.Validate()
		inRange := def >= minRounds && def <= maxRounds
		if inRange && err != nil {
			t.Fatalf("default %d in [%d,%d] rejected: %v", def, minRounds, maxRounds, err)
		}
		if !inRange && err == nil {
			t.Fatalf("default %d outside [%d,%d] accepted", def, minRounds, maxRounds)
		}
	})
}
