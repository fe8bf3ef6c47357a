// Package config loads the admission service configuration from a YAML file
// and ADMISSION_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/KanavDutta/admission/cache"
	"github.com/KanavDutta/admission/ratelimit"
)

// EnvPrefix prefixes every environment override, e.g.
// ADMISSION_RATELIMIT_LIMITS_SAVE=50.
const EnvPrefix = "ADMISSION"

// Cache backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

const redacted = "<redacted>"

// Config is the complete service configuration.
type Config struct {
	// Namespace prefixes every cache key of this deployment
	Namespace string `mapstructure:"namespace" yaml:"namespace"`

	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit" yaml:"ratelimit"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency" yaml:"idempotency"`
	Auth        AuthConfig        `mapstructure:"auth" yaml:"auth"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// CacheConfig selects and configures the shared cache.
type CacheConfig struct {
	// Backend is "memory" (single instance only) or "redis"
	Backend string `mapstructure:"backend" yaml:"backend"`

	// JanitorInterval is how often the memory backend sweeps expired entries
	JanitorInterval time.Duration `mapstructure:"janitor_interval" yaml:"janitor_interval"`

	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addrs        []string      `mapstructure:"addrs" yaml:"addrs"`
	Password     string        `mapstructure:"password" yaml:"password,omitempty"`
	DB           int           `mapstructure:"db" yaml:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// RateLimitConfig configures the sliding window limiter. Limits are keyed by
// lower-case category name.
type RateLimitConfig struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled"`
	Window   time.Duration  `mapstructure:"window" yaml:"window"`
	Segments int            `mapstructure:"segments" yaml:"segments"`
	Limits   map[string]int `mapstructure:"limits" yaml:"limits"`
}

// IdempotencyConfig configures the idempotency filter.
type IdempotencyConfig struct {
	ResponseTTL  time.Duration `mapstructure:"response_ttl" yaml:"response_ttl"`
	LockTTL      time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	// JWTSecret is the HS256 key. Empty disables token validation and
	// requests carry no claims.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("namespace", "admission")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.janitor_interval", time.Minute)
	v.SetDefault("cache.redis.addrs", []string{"localhost:6379"})
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.dial_timeout", 2*time.Second)
	v.SetDefault("cache.redis.read_timeout", 500*time.Millisecond)
	v.SetDefault("cache.redis.write_timeout", 500*time.Millisecond)

	rl := ratelimit.DefaultConfig()
	v.SetDefault("ratelimit.enabled", rl.Enabled)
	v.SetDefault("ratelimit.window", rl.Window)
	v.SetDefault("ratelimit.segments", rl.Segments)
	for category, limit := range rl.Limits {
		v.SetDefault("ratelimit.limits."+strings.ToLower(string(category)), limit)
	}

	v.SetDefault("idempotency.response_ttl", 24*time.Hour)
	v.SetDefault("idempotency.lock_ttl", 2*time.Minute)
	v.SetDefault("idempotency.max_body_bytes", int64(1<<20))

	v.SetDefault("auth.jwt_secret", "")
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	cfg, err := load(viper.New(), "")
	if err != nil {
		panic(fmt.Sprintf("config: defaults do not load: %v", err))
	}
	return cfg
}

// Load reads the YAML file at path, when non-empty, applies ADMISSION_*
// environment overrides on top and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return load(v, path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidConfig, path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to decode: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Namespace) == "" {
		return fmt.Errorf("%w: namespace must not be empty", ErrInvalidConfig)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr must not be empty", ErrInvalidConfig)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}

	switch c.Cache.Backend {
	case BackendMemory:
		if c.Cache.JanitorInterval <= 0 {
			return fmt.Errorf("%w: cache.janitor_interval must be positive", ErrInvalidConfig)
		}
	case BackendRedis:
		if len(c.Cache.Redis.Addrs) == 0 {
			return fmt.Errorf("%w: cache.redis.addrs must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.Cache.Backend)
	}

	if _, err := c.RateLimitConfig(); err != nil {
		return fmt.Errorf("%w: ratelimit: %v", ErrInvalidConfig, err)
	}

	if c.Idempotency.ResponseTTL <= 0 {
		return fmt.Errorf("%w: idempotency.response_ttl must be positive", ErrInvalidConfig)
	}
	if c.Idempotency.LockTTL <= 0 {
		return fmt.Errorf("%w: idempotency.lock_ttl must be positive", ErrInvalidConfig)
	}
	if c.Idempotency.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: idempotency.max_body_bytes must be positive", ErrInvalidConfig)
	}
	return nil
}

// RateLimitConfig converts the limiter section into a ratelimit.Config.
// Categories missing from Limits keep their default limit.
func (c *Config) RateLimitConfig() (ratelimit.Config, error) {
	out := ratelimit.DefaultConfig()
	out.Enabled = c.RateLimit.Enabled
	out.Window = c.RateLimit.Window
	out.Segments = c.RateLimit.Segments

	for name, limit := range c.RateLimit.Limits {
		category, err := ratelimit.ParseCategory(name)
		if err != nil {
			return ratelimit.Config{}, err
		}
		out.Limits[category] = limit
	}
	return out, out.Validate()
}

// RedisCacheConfig converts the Redis section into a cache.RedisConfig.
func (c *Config) RedisCacheConfig() cache.RedisConfig {
	r := c.Cache.Redis
	return cache.RedisConfig{
		Addrs:        append([]string(nil), r.Addrs...),
		Password:     r.Password,
		DB:           r.DB,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
		Namespace:    c.Namespace,
	}
}

// Dump renders the configuration as YAML with secrets redacted.
func (c *Config) Dump() ([]byte, error) {
	out := *c
	if out.Cache.Redis.Password != "" {
		out.Cache.Redis.Password = redacted
	}
	if out.Auth.JWTSecret != "" {
		out.Auth.JWTSecret = redacted
	}
	return yaml.Marshal(&out)
}
