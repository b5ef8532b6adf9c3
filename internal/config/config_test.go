package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadFromFile(t *testing.T) {
	p := writeConfig(t, `
app:
  env: production
  port: 9000
  media_base_url: https://cdn.example.com/media/
jwt:
  algorithm: HS256
  hs_secret: s3cret
storage:
  driver: mongo
kafka:
  brokers: ["k1:9092", "k2:9092"]
ws:
  ping_interval_seconds: 5
  rate_limit_per_sec: 20
`)
	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 9000, c.App.Port)
	assert.Equal(t, "9000", c.App.PortString())
	assert.False(t, c.App.IsDevelopment())
	assert.Equal(t, "mongo", c.Storage.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, c.PingInterval)
	assert.Equal(t, 10*time.Second, c.WriteDeadline)
	assert.Equal(t, int64(65536), c.WS.MaxMessageSizeBytes)
	assert.Equal(t, 20, c.WS.RateLimitPerSec)
	assert.Equal(t, 256, c.WS.SendBuffer)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JWT_HS_SECRET", "from-env")
	t.Setenv("APP_PORT", "7070")
	t.Setenv("KAFKA_BROKERS", "a:1,b:2")

	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.JWT.HSSecret)
	assert.Equal(t, 7070, c.App.Port)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, []string{"a:1", "b:2"}, c.Kafka.Brokers)
	assert.Equal(t, 24*time.Hour, c.PresenceTTL)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing secret", "jwt:\n  algorithm: HS256\n"},
		{"rs256 without key", "jwt:\n  algorithm: RS256\n"},
		{"unknown algorithm", "jwt:\n  algorithm: none\n  hs_secret: x\n"},
		{"unknown driver", "jwt:\n  hs_secret: x\nstorage:\n  driver: sqlite\n"},
		{"postgres without dsn", "jwt:\n  hs_secret: x\nstorage:\n  driver: postgres\n"},
		{"bad port", "jwt:\n  hs_secret: x\napp:\n  port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMemorySeed(t *testing.T) {
	c, err := Load(writeConfig(t, `
jwt:
  hs_secret: x
memory:
  users:
    - {id: 7, username: alice, first_name: Alice}
    - {id: 9, username: coach, avatar: p/coach.png}
  rooms:
    - {id: 42, user: 7, trainer: 9}
`))
	require.NoError(t, err)
	require.Len(t, c.Memory.Users, 2)
	assert.Equal(t, "Alice", c.Memory.Users[0].FirstName)
	assert.Equal(t, "p/coach.png", c.Memory.Users[1].Avatar)
	assert.Equal(t, []SeedRoom{{ID: 42, User: 7, Trainer: 9}}, c.Memory.Rooms)
	assert.Equal(t, 60*time.Second, c.PongWait)
}

func TestLoadMemorySeedValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown participant", "memory:\n  users:\n    - {id: 7}\n  rooms:\n    - {id: 1, user: 7, trainer: 9}\n"},
		{"self room", "memory:\n  users:\n    - {id: 7}\n  rooms:\n    - {id: 1, user: 7, trainer: 7}\n"},
		{"bad user id", "memory:\n  users:\n    - {id: 0}\n"},
		{"pong shorter than ping", "ws:\n  ping_interval_seconds: 30\n  pong_wait_seconds: 20\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "jwt:\n  hs_secret: x\n"+tt.body))
			assert.Error(t, err)
		})
	}
}
