// Package config loads SRest server configuration from TOML files and
// environment variables and builds the loggers described by it.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Suhaibinator/SRest/pkg/route"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding file settings,
// e.g. SREST_SERVER_ADDR overrides server.addr.
const EnvPrefix = "SREST"

// DefaultConfigName is the base name of the config file searched for when no
// explicit path is given.
const DefaultConfigName = "srest"

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the top-level configuration of an SRest server.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     toml:"server"`
	Log        LogConfig        `mapstructure:"log"        toml:"log"`
	Middleware MiddlewareConfig `mapstructure:"middleware" toml:"middleware"`
}

// ServerConfig holds the transport settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             toml:"addr"`
	MaxBodySize     int64         `mapstructure:"max_body_size"    toml:"max_body_size"`
	FlowTimeout     time.Duration `mapstructure:"flow_timeout"     toml:"flow_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     toml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    toml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"     toml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" toml:"shutdown_timeout"`
	Unresolved      string        `mapstructure:"unresolved"       toml:"unresolved"` // "pending" or "not_acceptable"
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"       toml:"level"`
	Development bool   `mapstructure:"development" toml:"development"`
}

// MiddlewareConfig selects the built-in pipeline stages.
type MiddlewareConfig struct {
	Trace     TraceConfig     `mapstructure:"trace"      toml:"trace"`
	Logging   bool            `mapstructure:"logging"    toml:"logging"`
	CORS      CORSConfig      `mapstructure:"cors"       toml:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" toml:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"    toml:"metrics"`
	Cache     CacheConfig     `mapstructure:"cache"      toml:"cache"`
}

// TraceConfig controls trace ID assignment.
type TraceConfig struct {
	Enabled     bool `mapstructure:"enabled"      toml:"enabled"`
	TrustHeader bool `mapstructure:"trust_header" toml:"trust_header"`
}

// CORSConfig controls the CORS stages.
type CORSConfig struct {
	Enabled bool     `mapstructure:"enabled" toml:"enabled"`
	Origins []string `mapstructure:"origins" toml:"origins"`
	Methods []string `mapstructure:"methods" toml:"methods"`
	Headers []string `mapstructure:"headers" toml:"headers"`
	MaxAge  int      `mapstructure:"max_age" toml:"max_age"` // seconds
}

// RateLimitConfig controls the rate limiting stage.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"  toml:"enabled"`
	Limit    int           `mapstructure:"limit"    toml:"limit"`
	Window   time.Duration `mapstructure:"window"   toml:"window"`
	Strategy string        `mapstructure:"strategy" toml:"strategy"` // "ip" or "user"
}

// MetricsConfig controls the Prometheus stage and endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"   toml:"enabled"`
	Path      string `mapstructure:"path"      toml:"path"`
	Namespace string `mapstructure:"namespace" toml:"namespace"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" toml:"enabled"`
	Size    int           `mapstructure:"size"    toml:"size"`
	TTL     time.Duration `mapstructure:"ttl"     toml:"ttl"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MaxBodySize:     1 << 20,
			FlowTimeout:     30 * time.Second,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    35 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Unresolved:      "pending",
		},
		Log: LogConfig{
			Level: "info",
		},
		Middleware: MiddlewareConfig{
			Trace:   TraceConfig{Enabled: true},
			Logging: true,
			CORS: CORSConfig{
				Methods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS", "HEAD"},
				Headers: []string{"Content-Type", "Authorization"},
			},
			RateLimit: RateLimitConfig{
				Limit:    100,
				Window:   time.Minute,
				Strategy: "ip",
			},
			Metrics: MetricsConfig{
				Path:      "/metrics",
				Namespace: "srest",
			},
			Cache: CacheConfig{
				Size: 1024,
				TTL:  time.Minute,
			},
		},
	}
}

// Load reads configuration with the following precedence:
//  1. Environment variables (SREST_ prefix, _ as separator)
//  2. The file at path if non-empty, otherwise ./srest.toml if present
//  3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every known key with viper so that environment
// overrides work even when no config file is present.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("server.flow_timeout", d.Server.FlowTimeout)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.unresolved", d.Server.Unresolved)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)

	m := d.Middleware
	v.SetDefault("middleware.trace.enabled", m.Trace.Enabled)
	v.SetDefault("middleware.trace.trust_header", m.Trace.TrustHeader)
	v.SetDefault("middleware.logging", m.Logging)
	v.SetDefault("middleware.cors.enabled", m.CORS.Enabled)
	v.SetDefault("middleware.cors.origins", m.CORS.Origins)
	v.SetDefault("middleware.cors.methods", m.CORS.Methods)
	v.SetDefault("middleware.cors.headers", m.CORS.Headers)
	v.SetDefault("middleware.cors.max_age", m.CORS.MaxAge)
	v.SetDefault("middleware.rate_limit.enabled", m.RateLimit.Enabled)
	v.SetDefault("middleware.rate_limit.limit", m.RateLimit.Limit)
	v.SetDefault("middleware.rate_limit.window", m.RateLimit.Window)
	v.SetDefault("middleware.rate_limit.strategy", m.RateLimit.Strategy)
	v.SetDefault("middleware.metrics.enabled", m.Metrics.Enabled)
	v.SetDefault("middleware.metrics.path", m.Metrics.Path)
	v.SetDefault("middleware.metrics.namespace", m.Metrics.Namespace)
	v.SetDefault("middleware.cache.enabled", m.Cache.Enabled)
	v.SetDefault("middleware.cache.size", m.Cache.Size)
	v.SetDefault("middleware.cache.ttl", m.Cache.TTL)
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr must not be empty", ErrInvalidConfig)
	}
	if c.Server.MaxBodySize < 0 {
		return fmt.Errorf("%w: server.max_body_size must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Server.UnresolvedPolicy(); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if rl := c.Middleware.RateLimit; rl.Enabled {
		if rl.Limit <= 0 || rl.Window <= 0 {
			return fmt.Errorf("%w: middleware.rate_limit needs a positive limit and window", ErrInvalidConfig)
		}
		if rl.Strategy != "ip" && rl.Strategy != "user" {
			return fmt.Errorf("%w: unknown rate limit strategy %q", ErrInvalidConfig, rl.Strategy)
		}
	}
	if mc := c.Middleware.Metrics; mc.Enabled && !strings.HasPrefix(mc.Path, "/") {
		return fmt.Errorf("%w: middleware.metrics.path must start with /", ErrInvalidConfig)
	}
	if cc := c.Middleware.Cache; cc.Enabled && cc.Size <= 0 {
		return fmt.Errorf("%w: middleware.cache.size must be positive", ErrInvalidConfig)
	}
	return nil
}

// UnresolvedPolicy maps the unresolved setting to a route.UnresolvedPolicy.
func (s ServerConfig) UnresolvedPolicy() (route.UnresolvedPolicy, error) {
	switch s.Unresolved {
	case "", "pending":
		return route.LeavePending, nil
	case "not_acceptable":
		return route.RespondNotAcceptable, nil
	}
	return route.LeavePending, fmt.Errorf("%w: unknown server.unresolved policy %q", ErrInvalidConfig, s.Unresolved)
}

// Export renders the configuration as TOML.
func Export(c *Config) ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshalling config: %w", err)
	}
	return data, nil
}
