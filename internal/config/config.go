package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Session   SessionConfig   `mapstructure:"session"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Ephemeral EphemeralConfig `mapstructure:"ephemeral"`
}

// ServerConfig defines listen addresses
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	AdminPort   int    `mapstructure:"admin_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// StorageConfig selects the persistent store backend
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	KeyPrefix    string `mapstructure:"key_prefix"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SessionConfig defines admin session lifetime enforcement.
// An inactivity_timeout of "0" disables inactivity tracking.
type SessionConfig struct {
	AbsoluteTimeout   string `mapstructure:"absolute_timeout"`
	InactivityTimeout string `mapstructure:"inactivity_timeout"`
	CheckInterval     string `mapstructure:"check_interval"`
	ActivityThrottle  string `mapstructure:"activity_throttle"`
}

// AdminConfig defines admin interface settings
type AdminConfig struct {
	InitialUsername string   `mapstructure:"initial_username"`
	InitialPassword string   `mapstructure:"initial_password"`
	JWTSecret       string   `mapstructure:"jwt_secret"`
	TokenExpiration string   `mapstructure:"token_expiration"`
	LoginRateLimit  float64  `mapstructure:"login_rate_limit"` // attempts per second per client
	LoginBurst      int      `mapstructure:"login_burst"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	SecureCookies   bool     `mapstructure:"secure_cookies"`
}

// EphemeralConfig sizes the in-process store that carries one-shot values
// such as the logout reason between requests.
type EphemeralConfig struct {
	Capacity int    `mapstructure:"capacity"`
	TTL      string `mapstructure:"ttl"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration built from default values alone,
// without validation.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Keys returns every recognised configuration key.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	return v.AllKeys()
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.admin_port", 8080)
	v.SetDefault("server.metrics_port", 9090)

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/folio/folio.bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.key_prefix", "folio:")
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Session defaults
	v.SetDefault("session.absolute_timeout", "2h")
	v.SetDefault("session.inactivity_timeout", "0")
	v.SetDefault("session.check_interval", "60s")
	v.SetDefault("session.activity_throttle", "30s")

	// Admin defaults
	v.SetDefault("admin.initial_username", "admin")
	v.SetDefault("admin.initial_password", "changeme")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.token_expiration", "12h")
	v.SetDefault("admin.login_rate_limit", 0.2)
	v.SetDefault("admin.login_burst", 5)
	v.SetDefault("admin.allowed_origins", []string{})
	v.SetDefault("admin.secure_cookies", true)

	// Ephemeral store defaults
	v.SetDefault("ephemeral.capacity", 128)
	v.SetDefault("ephemeral.ttl", "10m")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.AdminPort <= 0 || cfg.Server.AdminPort > 65535 {
		return fmt.Errorf("invalid admin port: %d", cfg.Server.AdminPort)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	durations := map[string]string{
		"session.absolute_timeout":   cfg.Session.AbsoluteTimeout,
		"session.inactivity_timeout": cfg.Session.InactivityTimeout,
		"session.check_interval":     cfg.Session.CheckInterval,
		"session.activity_throttle":  cfg.Session.ActivityThrottle,
		"admin.token_expiration":     cfg.Admin.TokenExpiration,
		"ephemeral.ttl":              cfg.Ephemeral.TTL,
	}
	for key, value := range durations {
		if _, err := ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
	}

	// The session guard owns the absolute deadline. A token that lapses
	// first would end the login before the guard can record why.
	absolute, _ := ParseDuration(cfg.Session.AbsoluteTimeout)
	if absolute <= 0 {
		return fmt.Errorf("session.absolute_timeout must be positive")
	}
	tokenLifetime, _ := ParseDuration(cfg.Admin.TokenExpiration)
	if tokenLifetime <= absolute {
		return fmt.Errorf("admin.token_expiration %q must be longer than session.absolute_timeout %q",
			cfg.Admin.TokenExpiration, cfg.Session.AbsoluteTimeout)
	}

	if cfg.Admin.JWTSecret == "" {
		return fmt.Errorf("admin.jwt_secret is required")
	}
	if cfg.Admin.LoginRateLimit <= 0 {
		return fmt.Errorf("admin.login_rate_limit must be positive, got %v", cfg.Admin.LoginRateLimit)
	}

	if cfg.Ephemeral.Capacity <= 0 {
		return fmt.Errorf("ephemeral capacity must be positive, got %d", cfg.Ephemeral.Capacity)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "bolt"
	}

	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	return nil
}

// ParseDuration parses a duration setting. A bare "0" or an empty string
// means zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// Duration parses a duration string with a fallback
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
