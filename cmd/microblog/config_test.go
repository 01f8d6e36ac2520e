package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, level, err := loadConfig(envMap(nil), configFlags{})
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, defaultDBPath, cfg.DBPath)
	assert.Equal(t, defaultUploadDir, cfg.UploadDir)
	assert.True(t, cfg.EnforceNonEmpty)
	assert.False(t, cfg.SecureCookies)
	assert.Zero(t, cfg.SessionTTL)
	assert.False(t, cfg.GitHubEnabled())
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.GitHubCallbackURL)
	assert.Empty(t, level)
}

func TestLoadConfig_Environment(t *testing.T) {
	cfg, level, err := loadConfig(envMap(map[string]string{
		"PORT":                 "9090",
		"DB_PATH":              "/tmp/blog.db",
		"JWT_SECRET":           "0123456789abcdef",
		"SESSION_TTL":          "2h",
		"UPLOAD_DIR":           "/tmp/up",
		"ENFORCE_NON_EMPTY":    "false",
		"SECURE_COOKIES":       "true",
		"LOG_LEVEL":            "debug",
		"GITHUB_CLIENT_ID":     "id",
		"GITHUB_CLIENT_SECRET": "secret",
	}), configFlags{})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/tmp/blog.db", cfg.DBPath)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "/tmp/up", cfg.UploadDir)
	assert.False(t, cfg.EnforceNonEmpty)
	assert.True(t, cfg.SecureCookies)
	assert.True(t, cfg.GitHubEnabled())
	assert.Equal(t, "http://localhost:9090/auth/github/callback", cfg.GitHubCallbackURL)
	assert.Equal(t, "debug", level)
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	cfg, level, err := loadConfig(envMap(map[string]string{
		"PORT":      "9090",
		"DB_PATH":   "/tmp/blog.db",
		"LOG_LEVEL": "debug",
	}), configFlags{port: 7000, dbPath: "other.db", logLevel: "error"})
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "other.db", cfg.DBPath)
	assert.Equal(t, "error", level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"port":         {"PORT": "http"},
		"port range":   {"PORT": "70000"},
		"ttl":          {"SESSION_TTL": "forever"},
		"negative ttl": {"SESSION_TTL": "-1h"},
		"bool":         {"ENFORCE_NON_EMPTY": "maybe"},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := loadConfig(envMap(env), configFlags{})
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	ctx := context.Background()
	assert.True(t, newLogger("debug").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger("").Enabled(ctx, slog.LevelDebug))
	assert.True(t, newLogger("").Enabled(ctx, slog.LevelInfo))
	assert.False(t, newLogger("error").Enabled(ctx, slog.LevelWarn))
}
