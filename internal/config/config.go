// Package config loads the service configuration from config.json, a .env
// file and PANTRYCHEF_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pantrychef/internal/auth"
)

// Store drivers.
const (
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"
)

// Quota backends.
const (
	QuotaBackendProfile = "profile"
	QuotaBackendRedis   = "redis"
)

// AI providers.
const (
	ProviderGemini = "gemini"
	ProviderLocal  = "local"
)

// EnvPrefix prefixes every environment override, e.g. PANTRYCHEF_SERVER_PORT.
const EnvPrefix = "PANTRYCHEF"

// Config represents the application configuration.
type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Quota  QuotaConfig  `mapstructure:"quota"`
	AI     AIConfig     `mapstructure:"ai"`
	Images ImagesConfig `mapstructure:"images"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Cache  CacheConfig  `mapstructure:"cache"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// Development reports whether the service runs in development mode.
func (c AppConfig) Development() bool {
	return c.Env == "development"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
}

// Address returns the HTTP listen address.
func (c ServerConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// StoreConfig selects and configures the bookmark and profile backend.
type StoreConfig struct {
	Driver          string `mapstructure:"driver"`
	DatabaseURL     string `mapstructure:"database_url"`
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// QuotaConfig configures the free tier.
type QuotaConfig struct {
	Backend       string `mapstructure:"backend"`
	MaxCalls      int    `mapstructure:"max_calls"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// AIConfig selects and configures the model provider.
type AIConfig struct {
	Provider     string        `mapstructure:"provider"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	GeminiModel  string        `mapstructure:"gemini_model"`
	LocalURL     string        `mapstructure:"local_url"`
	LocalModel   string        `mapstructure:"local_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ImagesConfig configures where uploaded photos are kept.
type ImagesConfig struct {
	Dir            string `mapstructure:"dir"`
	BaseURL        string `mapstructure:"base_url"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	MaxFiles       int    `mapstructure:"max_files"`
}

// AuthConfig configures request authentication.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): the caller is named by the X-User-ID header, for local dev.
//   - "token": the auth-token cookie or a Bearer token must match one of Users.
type AuthConfig struct {
	Mode  string      `mapstructure:"mode"`
	Users []auth.User `mapstructure:"users"`
}

// CacheConfig configures the per-user results cache.
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// Load reads the configuration file at path (missing is fine), applies
// overrides from .env and the environment, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by earlier deployments.
	_ = v.BindEnv("ai.gemini_api_key", EnvPrefix+"_AI_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("store.database_url", EnvPrefix+"_STORE_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("app.log_level", EnvPrefix+"_APP_LOG_LEVEL", "LOG_LEVEL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allow_origins", []string{"http://localhost:8081"})

	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.project_id", "")
	v.SetDefault("store.credentials_file", "")

	v.SetDefault("quota.backend", QuotaBackendProfile)
	v.SetDefault("quota.max_calls", 5)
	v.SetDefault("quota.redis_addr", "localhost:6379")
	v.SetDefault("quota.redis_password", "")
	v.SetDefault("quota.redis_db", 0)

	v.SetDefault("ai.provider", ProviderGemini)
	v.SetDefault("ai.gemini_api_key", "")
	v.SetDefault("ai.gemini_model", "gemini-2.0-flash")
	v.SetDefault("ai.local_url", "http://localhost:1234/v1/chat/completions")
	v.SetDefault("ai.local_model", "gemma-3-12b-it:2")
	v.SetDefault("ai.timeout", "45s")

	v.SetDefault("images.dir", "./images")
	v.SetDefault("images.base_url", "/images")
	v.SetDefault("images.max_upload_bytes", 10<<20)
	v.SetDefault("images.max_files", 5)

	v.SetDefault("auth.mode", auth.ModeDisabled)

	v.SetDefault("cache.ttl", "30m")
	v.SetDefault("cache.cleanup_interval", "5m")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.App,
		validation.Field(&c.App.LogLevel, validation.In("debug", "info", "warn", "error")),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := validation.ValidateStruct(&c.Store,
		validation.Field(&c.Store.Driver, validation.Required, validation.In(DriverPostgres, DriverFirestore)),
		validation.Field(&c.Store.DatabaseURL, validation.When(c.Store.Driver == DriverPostgres, validation.Required)),
		validation.Field(&c.Store.ProjectID, validation.When(c.Store.Driver == DriverFirestore, validation.Required)),
	); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if err := validation.ValidateStruct(&c.Quota,
		validation.Field(&c.Quota.Backend, validation.Required, validation.In(QuotaBackendProfile, QuotaBackendRedis)),
		validation.Field(&c.Quota.MaxCalls, validation.Min(0)),
		validation.Field(&c.Quota.RedisAddr, validation.When(c.Quota.Backend == QuotaBackendRedis, validation.Required)),
	); err != nil {
		return fmt.Errorf("quota: %w", err)
	}

	if err := validation.ValidateStruct(&c.AI,
		validation.Field(&c.AI.Provider, validation.Required, validation.In(ProviderGemini, ProviderLocal)),
		validation.Field(&c.AI.GeminiAPIKey, validation.When(c.AI.Provider == ProviderGemini, validation.Required)),
		validation.Field(&c.AI.LocalURL, validation.When(c.AI.Provider == ProviderLocal, validation.Required)),
		validation.Field(&c.AI.Timeout, validation.Required),
	); err != nil {
		return fmt.Errorf("ai: %w", err)
	}

	if err := validation.ValidateStruct(&c.Images,
		validation.Field(&c.Images.Dir, validation.Required),
		validation.Field(&c.Images.MaxUploadBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.Images.MaxFiles, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("images: %w", err)
	}

	if c.Auth.Mode == "" {
		c.Auth.Mode = auth.ModeDisabled
	}
	if err := validation.ValidateStruct(&c.Auth,
		validation.Field(&c.Auth.Mode, validation.Required, validation.In(auth.ModeDisabled, auth.ModeToken)),
	); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if c.Auth.Mode == auth.ModeToken && len(c.Auth.Users) == 0 {
		return fmt.Errorf("auth: mode is %q but no users are configured", auth.ModeToken)
	}
	for i, u := range c.Auth.Users {
		if u.Token == "" || u.UserID == "" {
			return fmt.Errorf("auth: user %d needs both token and user_id", i)
		}
	}

	if err := validation.ValidateStruct(&c.Cache,
		validation.Field(&c.Cache.TTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Cache.CleanupInterval, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	return nil
}
