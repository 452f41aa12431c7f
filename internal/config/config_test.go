package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantrychef/internal/auth"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pantry")
	t.Setenv("GEMINI_API_KEY", "key-123")
	t.Setenv("PANTRYCHEF_SERVER_PORT", "9090")
	t.Setenv("PANTRYCHEF_QUOTA_MAX_CALLS", "3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address())
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/pantry", cfg.Store.DatabaseURL)
	assert.Equal(t, "key-123", cfg.AI.GeminiAPIKey)
	assert.Equal(t, ProviderGemini, cfg.AI.Provider)
	assert.Equal(t, 45*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 3, cfg.Quota.MaxCalls)
	assert.Equal(t, QuotaBackendProfile, cfg.Quota.Backend)
	assert.Equal(t, auth.ModeDisabled, cfg.Auth.Mode)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.App.Development())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"app": {"env": "development", "log_level": "debug"},
		"store": {"driver": "firestore", "project_id": "pantry-prod"},
		"quota": {"backend": "redis", "redis_addr": "redis:6379", "max_calls": 10},
		"ai": {"provider": "local", "timeout": "20s"},
		"auth": {"mode": "token", "users": [{"token": "t1", "user_id": "u1", "email": "a@example.com"}]}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.App.Development())
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, DriverFirestore, cfg.Store.Driver)
	assert.Equal(t, "pantry-prod", cfg.Store.ProjectID)
	assert.Equal(t, QuotaBackendRedis, cfg.Quota.Backend)
	assert.Equal(t, "redis:6379", cfg.Quota.RedisAddr)
	assert.Equal(t, 10, cfg.Quota.MaxCalls)
	assert.Equal(t, ProviderLocal, cfg.AI.Provider)
	assert.Equal(t, 20*time.Second, cfg.AI.Timeout)
	require.Len(t, cfg.Auth.Users, 1)
	assert.Equal(t, auth.User{Token: "t1", UserID: "u1", Email: "a@example.com"}, cfg.Auth.Users[0])
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pantry")
	t.Setenv("GEMINI_API_KEY", "k")

	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.NoError(t, err)
}

func validConfig() Config {
	return Config{
		App:    AppConfig{Env: "production", LogLevel: "info"},
		Server: ServerConfig{Port: 8080},
		Store:  StoreConfig{Driver: DriverPostgres, DatabaseURL: "postgres://x"},
		Quota:  QuotaConfig{Backend: QuotaBackendProfile, MaxCalls: 5},
		AI:     AIConfig{Provider: ProviderGemini, GeminiAPIKey: "k", Timeout: time.Second},
		Images: ImagesConfig{Dir: "./images", MaxUploadBytes: 1 << 20, MaxFiles: 5},
		Auth:   AuthConfig{Mode: auth.ModeDisabled},
		Cache:  CacheConfig{TTL: 30 * time.Minute, CleanupInterval: 5 * time.Minute},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }, "store"},
		{"postgres without url", func(c *Config) { c.Store.DatabaseURL = "" }, "store"},
		{"firestore without project", func(c *Config) { c.Store.Driver = DriverFirestore }, "store"},
		{"unknown quota backend", func(c *Config) { c.Quota.Backend = "memcached" }, "quota"},
		{"negative max calls", func(c *Config) { c.Quota.MaxCalls = -1 }, "quota"},
		{"gemini without key", func(c *Config) { c.AI.GeminiAPIKey = "" }, "ai"},
		{"local needs no key", func(c *Config) { c.AI.Provider = ProviderLocal; c.AI.GeminiAPIKey = ""; c.AI.LocalURL = "http://x" }, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server"},
		{"bad log level", func(c *Config) { c.App.LogLevel = "verbose" }, "app"},
		{"token mode without users", func(c *Config) { c.Auth.Mode = auth.ModeToken }, "no users"},
		{"user without token", func(c *Config) { c.Auth.Users = []auth.User{{UserID: "u1"}} }, "needs both"},
		{"unknown auth mode", func(c *Config) { c.Auth.Mode = "oauth" }, "auth"},
		{"zero cache ttl", func(c *Config) { c.Cache.TTL = 0 }, "cache"},
		{"sub-second cache ttl", func(c *Config) { c.Cache.TTL = time.Millisecond }, "cache"},
		{"negative cleanup interval", func(c *Config) { c.Cache.CleanupInterval = -time.Second }, "cache"},
		{"cleanup disabled", func(c *Config) { c.Cache.CleanupInterval = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidate_EmptyAuthModeDefaultsToDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, auth.ModeDisabled, cfg.Auth.Mode)
}
