package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the full application configuration loaded from file/env.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Atlassian AtlassianConfig `mapstructure:"atlassian"`
	Client    ClientConfig    `mapstructure:"client"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

// ServerConfig holds process-level options.
type ServerConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// AtlassianConfig describes the Jira instance to talk to.
type AtlassianConfig struct {
	Site string        `mapstructure:"site"`
	Jira ServiceConfig `mapstructure:"jira"`
}

// ServiceConfig pairs a site with the credentials used against it. An
// empty Site falls back to AtlassianConfig.Site.
type ServiceConfig struct {
	Site               string `mapstructure:"site"`
	ServiceCredentials `mapstructure:",squash"`
}

// ServiceCredentials describes authentication for a single Atlassian product.
type ServiceCredentials struct {
	Email      string `mapstructure:"email"`
	APIToken   string `mapstructure:"api_token"`
	OAuthToken string `mapstructure:"oauth_token"`
}

// ClientConfig tunes the HTTP client, rate limiter and retry policy.
type ClientConfig struct {
	Timeout   time.Duration   `mapstructure:"timeout"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Retry     RetryConfig     `mapstructure:"retry"`
}

// RateLimitConfig sizes the outbound token bucket.
type RateLimitConfig struct {
	Capacity  int     `mapstructure:"capacity"`
	PerSecond float64 `mapstructure:"per_second"`
}

// RetryConfig controls backoff for transient failures.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// CacheConfig sets per-kind cache lifetimes and the default page size.
type CacheConfig struct {
	TicketTTL      time.Duration `mapstructure:"ticket_ttl"`
	SearchTTL      time.Duration `mapstructure:"search_ttl"`
	MetadataTTL    time.Duration `mapstructure:"metadata_ttl"`
	TransitionsTTL time.Duration `mapstructure:"transitions_ttl"`
	PageSize       int           `mapstructure:"page_size"`
}

// LoadOption customises Load.
type LoadOption func(*viper.Viper) error

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":  "server.log_level",
	"log-format": "server.log_format",
	"site":       "atlassian.jira.site",
	"page-size":  "cache.page_size",
}

// WithFlags binds the known flags present in fs so that flags set on the
// command line override file and environment values.
func WithFlags(fs *pflag.FlagSet) LoadOption {
	return func(v *viper.Viper) error {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("config: bind flag %s: %w", name, err)
			}
		}
		return nil
	}
}

// Load reads configuration from the provided directory or file and
// LAZYJIRA_* environment variables.
func Load(path string, opts ...LoadOption) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if path != "" {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			v.AddConfigPath(path)
		} else {
			v.SetConfigFile(path)
		}
	} else {
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(dir + "/lazyjira")
		}
	}

	v.SetEnvPrefix("lazyjira")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.Atlassian.Jira.Site == "" {
		cfg.Atlassian.Jira.Site = cfg.Atlassian.Site
	}

	if err := cfg.applyNetrcDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a Config holding only default values, for callers that
// assemble configuration themselves.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := new(Config)
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("client.timeout", 30*time.Second)
	v.SetDefault("client.rate_limit.capacity", 100)
	v.SetDefault("client.rate_limit.per_second", 100.0/60.0)
	v.SetDefault("client.retry.max_attempts", 5)
	v.SetDefault("client.retry.base_delay", 100*time.Millisecond)
	v.SetDefault("client.retry.max_delay", 10*time.Second)
	v.SetDefault("cache.ticket_ttl", 5*time.Minute)
	v.SetDefault("cache.search_ttl", 30*time.Second)
	v.SetDefault("cache.metadata_ttl", time.Hour)
	v.SetDefault("cache.transitions_ttl", 15*time.Second)
	v.SetDefault("cache.page_size", 50)

	// Environment-only keys are invisible to Unmarshal unless registered.
	for _, key := range []string{"atlassian.site", "atlassian.jira.site", "atlassian.jira.email", "atlassian.jira.api_token", "atlassian.jira.oauth_token"} {
		v.SetDefault(key, "")
	}
}

func (c *Config) validate() error {
	if c.Atlassian.Jira.Site == "" {
		return fmt.Errorf("config: atlassian.site is required")
	}

	if err := c.Atlassian.Jira.validate("jira"); err != nil {
		return err
	}

	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Client.RateLimit.Capacity < 1 {
		return fmt.Errorf("config: client.rate_limit.capacity must be at least 1")
	}
	if c.Client.RateLimit.PerSecond <= 0 {
		return fmt.Errorf("config: client.rate_limit.per_second must be positive")
	}
	if c.Client.Retry.MaxAttempts < 1 {
		return fmt.Errorf("config: client.retry.max_attempts must be at least 1")
	}

	for name, ttl := range map[string]time.Duration{
		"ticket_ttl":      c.Cache.TicketTTL,
		"search_ttl":      c.Cache.SearchTTL,
		"metadata_ttl":    c.Cache.MetadataTTL,
		"transitions_ttl": c.Cache.TransitionsTTL,
	} {
		if ttl < 0 {
			return fmt.Errorf("config: cache.%s must not be negative", name)
		}
	}

	return nil
}

func (s ServiceCredentials) validate(name string) error {
	if s.OAuthToken == "" && (s.Email == "" || s.APIToken == "") {
		return fmt.Errorf("config: %s requires either oauth_token or email/api_token", name)
	}
	return nil
}
