package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sakif/microblog/internal/server"
)

// Environment variables and their defaults:
//
//	PORT                  8080
//	DB_PATH               data/microblog.db
//	JWT_SECRET            (required for serve, at least 16 characters)
//	SESSION_TTL           24h (Go duration)
//	SESSION_KEY           random per process (flash-message cookie key, 32+ bytes)
//	SECURE_COOKIES        false
//	UPLOAD_DIR            data/uploads
//	ENFORCE_NON_EMPTY     true
//	LOG_LEVEL             info
//	GITHUB_CLIENT_ID      (GitHub sign-in is off unless both are set)
//	GITHUB_CLIENT_SECRET
//	GITHUB_CALLBACK_URL   http://localhost:<port>/auth/github/callback
const (
	defaultPort      = 8080
	defaultDBPath    = "data/microblog.db"
	defaultUploadDir = "data/uploads"
)

// configFlags are the command-line overrides. Zero values mean "not set".
type configFlags struct {
	port     int
	dbPath   string
	logLevel string
}

// loadConfig reads the environment through getenv and applies the flags.
func loadConfig(getenv func(string) string, flags configFlags) (server.Config, string, error) {
	cfg := server.Config{
		Port:               defaultPort,
		DBPath:             defaultDBPath,
		JWTSecret:          getenv("JWT_SECRET"),
		SessionKey:         getenv("SESSION_KEY"),
		UploadDir:          defaultUploadDir,
		EnforceNonEmpty:    true,
		GitHubClientID:     getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  getenv("GITHUB_CALLBACK_URL"),
	}

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return cfg, "", fmt.Errorf("invalid PORT value %q", v)
		}
		cfg.Port = port
	}
	if v := getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := getenv("SESSION_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return cfg, "", fmt.Errorf("invalid SESSION_TTL value %q", v)
		}
		cfg.SessionTTL = ttl
	}

	var err error
	if cfg.EnforceNonEmpty, err = boolEnv(getenv, "ENFORCE_NON_EMPTY", true); err != nil {
		return cfg, "", err
	}
	if cfg.SecureCookies, err = boolEnv(getenv, "SECURE_COOKIES", false); err != nil {
		return cfg, "", err
	}

	logLevel := getenv("LOG_LEVEL")

	if flags.port != 0 {
		cfg.Port = flags.port
	}
	if flags.dbPath != "" {
		cfg.DBPath = flags.dbPath
	}
	if flags.logLevel != "" {
		logLevel = flags.logLevel
	}

	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}
	return cfg, logLevel, nil
}

func boolEnv(getenv func(string) string, name string, def bool) (bool, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s value %q", name, v)
	}
	return b, nil
}

// ensureDBDir creates the directory holding the database file
// (like `mkdir -p`). In-memory databases need none.
func ensureDBDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	return nil
}
