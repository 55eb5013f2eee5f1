package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, Duration(3*time.Second), cfg.Redis.OpTimeout)
	assert.Equal(t, 256, cfg.WebSocket.SendBufferSize)
	assert.Equal(t, "livehub:broadcast", cfg.WebSocket.BroadcastChannel)
	assert.Equal(t, "HS256", cfg.Auth.JWT.SigningMethod)
}

func TestLoadFromYAML(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "9090"
redis:
  host: redis.internal
  op_timeout: 5s
websocket:
  send_buffer_size: 128
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0600))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "redis.internal", cfg.Redis.Host)
	assert.Equal(t, Duration(5*time.Second), cfg.Redis.OpTimeout)
	assert.Equal(t, 128, cfg.WebSocket.SendBufferSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched values keep their defaults.
	assert.Equal(t, "5432", cfg.Postgres.Port)
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("REDIS_HOST", "from-env")
	t.Setenv("SERVER_READ_TIMEOUT", "15s")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOGGING_IS_DEV", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Redis.Host)
	assert.Equal(t, Duration(15*time.Second), cfg.Server.ReadTimeout)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.True(t, cfg.Logging.IsDev)
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwt.secret")
}

func TestLoadRejectsBadSigningMethod(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_SIGNING_METHOD", "none")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing_method")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")

	_, err := Load("")
	assert.Error(t, err)
}
