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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"SERVER_PORT", "DATABASE_DRIVER", "DATABASE_DSN", "REDIS_ADDR", "REDIS_PASSWORD",
		"TOGETHER_API_KEY_DEFAULT", "JWT_SECRET", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: "9090"
database:
  dsn: "from-file"
auth:
  jwt_secret: "file-secret"
ai:
  timeout: 45s
`)
	t.Setenv("DATABASE_DSN", "from-env")
	t.Setenv("TOGETHER_API_KEY_DEFAULT", "server-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "from-env", cfg.Database.DSN)
	assert.Equal(t, "server-key", cfg.AI.DefaultAPIKey)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 45*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "fast", cfg.AI.DefaultModel)
	assert.Equal(t, 7*24*time.Hour, cfg.RateLimit.Window)
	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.Equal(t, int64(10<<20), cfg.Storage.MaxUploadBytes)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	t.Run("unknown driver", func(t *testing.T) {
		path := writeConfig(t, "database:\n  driver: sqlite\nauth:\n  jwt_secret: x\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "unsupported database driver")
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: \":8080\"\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "jwt_secret")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
