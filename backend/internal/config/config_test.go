package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"iqupdate/backend/internal/infra/logger"

	"go.uber.org/zap"
)

func prepareEnv(t *testing.T) {
	t.Helper()
	dotenv.reset(true)
	t.Cleanup(func() { dotenv.reset(false) })
	for _, env := range envBindings {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
	t.Setenv("CONFIG_PATH", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	prepareEnv(t)
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("unexpected port %q", cfg.Server.Port)
	}
	if cfg.Server.APIPrefix != "/iq7/v1" || cfg.Server.AdminPrefix != "/admin" {
		t.Fatalf("unexpected prefixes %q %q", cfg.Server.APIPrefix, cfg.Server.AdminPrefix)
	}
	if cfg.Server.UpdatesPath() != "/iq7/v1/updates" {
		t.Fatalf("unexpected updates path %q", cfg.Server.UpdatesPath())
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Fatalf("expected sqlite driver, got %s", cfg.Database.Driver)
	}
	if !cfg.Database.AutoMigrate {
		t.Fatalf("expected auto migrate enabled by default")
	}
	if cfg.Auth.SessionTTL != 12*time.Hour {
		t.Fatalf("unexpected session ttl %s", cfg.Auth.SessionTTL)
	}
	if cfg.RateLimit.LoginLimit != 10 || cfg.RateLimit.LoginWindow != time.Minute {
		t.Fatalf("unexpected login rate limit %d/%s", cfg.RateLimit.LoginLimit, cfg.RateLimit.LoginWindow)
	}
	if cfg.RateLimit.PublicLimit != 0 {
		t.Fatalf("public rate limit should be off by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	prepareEnv(t)
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("SERVER_MODE", "debug")
	t.Setenv("API_PREFIX", "api/")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("MYSQL_HOST", "db.internal")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.APIPrefix != "/api" {
		t.Fatalf("prefix not normalised: %q", cfg.Server.APIPrefix)
	}
	if cfg.Auth.SessionTTL != 30*time.Minute {
		t.Fatalf("unexpected ttl %s", cfg.Auth.SessionTTL)
	}
	if len(cfg.Server.CORSAllowedOrigins) != 2 || cfg.Server.CORSAllowedOrigins[1] != "http://b.example" {
		t.Fatalf("unexpected origins %#v", cfg.Server.CORSAllowedOrigins)
	}
	if cfg.Database.Driver != DriverMySQL || cfg.Database.MySQL.Host != "db.internal" {
		t.Fatalf("unexpected database config %+v", cfg.Database)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	prepareEnv(t)
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", dir)
	content := []byte("server:\n  port: \"9090\"\n  mode: debug\nauth:\n  jwt_secret: from-file\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Fatalf("env should override file, got port %q", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "from-file" {
		t.Fatalf("expected secret from file, got %q", cfg.Auth.JWTSecret)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {},
		"short secret in release": {
			"JWT_SECRET": "short",
		},
		"unknown driver": {
			"JWT_SECRET":  "x",
			"SERVER_MODE": "debug",
			"DB_DRIVER":   "oracle",
		},
		"same prefixes": {
			"JWT_SECRET":   "x",
			"SERVER_MODE":  "debug",
			"API_PREFIX":   "/admin",
			"ADMIN_PREFIX": "/admin/",
		},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			prepareEnv(t)
			for key, value := range env {
				t.Setenv(key, value)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadEnvFilesKeepProcessEnv(t *testing.T) {
	prepareEnv(t)
	t.Cleanup(logger.Replace(zap.NewNop()))

	dir := t.TempDir()
	local := "SERVER_PORT=6000\nAPI_PREFIX=/from-local\n"
	base := "SERVER_PORT=5000\nAPI_PREFIX=/from-env\nADMIN_PREFIX=/from-env-admin\nJWT_SECRET=0123456789abcdef0123456789abcdef\n"
	if err := os.WriteFile(filepath.Join(dir, ".env.local"), []byte(local), 0o600); err != nil {
		t.Fatalf("write .env.local: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(base), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	chdirForTest(t, dir)
	dotenv.reset(false)

	t.Setenv("SERVER_PORT", "7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Fatalf("process env should beat .env files, got port %q", cfg.Server.Port)
	}
	if cfg.Server.APIPrefix != "/from-local" {
		t.Fatalf(".env.local should beat .env, got %q", cfg.Server.APIPrefix)
	}
	if cfg.Server.AdminPrefix != "/from-env-admin" {
		t.Fatalf(".env should fill missing keys, got %q", cfg.Server.AdminPrefix)
	}
	if cfg.Auth.JWTSecret == "" {
		t.Fatalf("secret from .env not applied")
	}
}

func TestLoadEnvFilesDisabled(t *testing.T) {
	prepareEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SERVER_PORT=5000\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	chdirForTest(t, dir)
	dotenv.reset(false)
	t.Setenv("CONFIG_SKIP_ENV_LOAD", "1")

	if files := LoadEnvFiles(); len(files) != 0 {
		t.Fatalf("expected no files when skipped, got %v", files)
	}
	if _, ok := os.LookupEnv("SERVER_PORT"); ok {
		t.Fatalf("SERVER_PORT should remain unset")
	}
}

// chdirForTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore cwd: %v", err)
		}
	})
}
