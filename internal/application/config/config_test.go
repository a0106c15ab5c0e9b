package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	req := require.New(t)

	// Given only the required secret
	t.Setenv("ENV_FILE", "")
	t.Setenv("JWT_SECRET", "secret")

	// When
	cfg, err := New()

	// Then
	req.NoError(err)
	req.Equal(StorageDriverPostgres, cfg.Storage.Driver)
	req.Equal(45*time.Second, cfg.Calls.RingTimeout)
	req.Equal(60*time.Second, cfg.Websocket.PongTimeout)
	req.Equal(200, cfg.Chat.HistoryLimit)
	req.Empty(cfg.ICEServers())
	req.Equal(slog.LevelInfo, cfg.SlogLevel())
}

func TestNew_EnvFile(t *testing.T) {
	req := require.New(t)

	// Given a .env file with turn settings
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	req.NoError(os.WriteFile(path, []byte("COTURN_HOST=turn.example.com:3478\nSTORAGE_DRIVER=memory\n"), 0o600))

	t.Setenv("ENV_FILE", path)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("COTURN_HOST", "")
	os.Unsetenv("COTURN_HOST")
	t.Setenv("STORAGE_DRIVER", "")
	os.Unsetenv("STORAGE_DRIVER")

	// When
	cfg, err := New()

	// Then
	req.NoError(err)
	req.Equal(StorageDriverMemory, cfg.Storage.Driver)
	req.Len(cfg.ICEServers(), 2)
	req.Equal("turn:turn.example.com:3478?transport=udp", cfg.ICEServers()[0].URLs[0])
}

func TestNew_Invalid(t *testing.T) {
	req := require.New(t)

	t.Setenv("ENV_FILE", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "mongo")

	_, err := New()
	req.Error(err)

	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("WS_PING_INTERVAL", "2m")

	_, err = New()
	req.Error(err)
}

func TestNew_NonPositivePingInterval(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "memory")

	for _, interval := range []string{"0s", "-5s"} {
		t.Run(interval, func(t *testing.T) {
			// Given
			t.Setenv("WS_PING_INTERVAL", interval)

			// When
			_, err := New()

			// Then
			require.ErrorContains(t, err, "ping interval must be positive")
		})
	}
}

func TestSlogLevel(t *testing.T) {
	req := require.New(t)

	req.Equal(slog.LevelWarn, (&Config{LogLevel: "WARN"}).SlogLevel())
	req.Equal(slog.LevelDebug, (&Config{LogLevel: "error", Debug: true}).SlogLevel())
}

func TestPostgresDSN(t *testing.T) {
	req := require.New(t)

	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "goldlink", SSL: "disable"}
	req.Equal("postgresql://u:p@db:5432/goldlink?sslmode=disable", p.DSN())

	p.URL = "postgres://override"
	req.Equal("postgres://override", p.DSN())
}

func TestNew_EmbeddedTurn(t *testing.T) {
	req := require.New(t)

	t.Setenv("ENV_FILE", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("TURN_EMBEDDED", "true")
	t.Setenv("TURN_PUBLIC_IP", "203.0.113.7")

	// Without COTURN_SECRET embedded turn cannot check credentials
	_, err := New()
	req.Error(err)

	t.Setenv("COTURN_SECRET", "shared")

	cfg, err := New()
	req.NoError(err)
	req.Equal("turn:203.0.113.7:3478?transport=tcp", cfg.ICEServers()[1].URLs[0])
}
