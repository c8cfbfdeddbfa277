package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultAPIBase is used when neither API_BASE_URL nor API_BASE is set.
const DefaultAPIBase = "http://localhost:5000"

// Config stores all configuration for the web front.
type Config struct {
	Port            string        `mapstructure:"PORT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	LogFormat       string        `mapstructure:"LOG_FORMAT"`
	DBPath          string        `mapstructure:"DB_PATH"`
	APIBaseURL      string        `mapstructure:"API_BASE_URL"`
	APIBase         string        `mapstructure:"API_BASE"`
	GoogleClientID  string        `mapstructure:"GOOGLE_CLIENT_ID"`
	SessionSecret   string        `mapstructure:"SESSION_SECRET"`
	SessionTTL      time.Duration `mapstructure:"SESSION_TTL"`
	CookieSecure    bool          `mapstructure:"COOKIE_SECURE"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	ContentCacheTTL time.Duration `mapstructure:"CONTENT_CACHE_TTL"`
	PollInterval    time.Duration `mapstructure:"POLL_INTERVAL"`
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// A missing .env is fine; production configures through the environment.
	_ = v.ReadInConfig()

	v.SetDefault("PORT", "10000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("DB_PATH", "aivis.db")
	v.SetDefault("API_BASE_URL", "")
	v.SetDefault("API_BASE", "")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_TTL", "720h")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("CONTENT_CACHE_TTL", "5m")
	v.SetDefault("POLL_INTERVAL", "15s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	return &cfg, nil
}

// BaseURL resolves the backend API base: API_BASE_URL, then API_BASE, then
// DefaultAPIBase. Trailing slashes are stripped.
func (c *Config) BaseURL() string {
	for _, candidate := range []string{c.APIBaseURL, c.APIBase, DefaultAPIBase} {
		candidate = strings.TrimSpace(candidate)
		if candidate != "" {
			return strings.TrimRight(candidate, "/")
		}
	}
	return DefaultAPIBase
}

// GoogleEnabled reports whether Google sign-in is offered.
func (c *Config) GoogleEnabled() bool {
	return strings.TrimSpace(c.GoogleClientID) != ""
}
