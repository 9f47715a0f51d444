package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig           `mapstructure:"server"`
	Redis     RedisConfig            `mapstructure:"redis"`
	RateLimit RateLimitConfig        `mapstructure:"rate_limit"`
	Database  DatabaseConfig         `mapstructure:"database"`
	Tracing   TracingConfig          `mapstructure:"tracing"`
	Providers []ProviderConfig       `mapstructure:"providers"`
	Routes    map[string]RouteConfig `mapstructure:"routes"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Env             string        `mapstructure:"env"`
	AdminKeys       []string      `mapstructure:"admin_keys"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	// SampleRatio is the fraction of root traces kept; outside (0, 1] means all.
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// ProviderConfig describes one upstream vendor account. APIKey is the
// server-side key used only when the caller supplies no credential.
type ProviderConfig struct {
	ID      string            `mapstructure:"id" validate:"required"`
	Type    string            `mapstructure:"type" validate:"required"`
	Name    string            `mapstructure:"name"`
	APIKey  string            `mapstructure:"api_key"`
	BaseURL string            `mapstructure:"base_url" validate:"omitempty,url"`
	Enabled bool              `mapstructure:"enabled"`
	Config  map[string]string `mapstructure:"config"`
}

// RouteConfig is the ordered failover chain of a route.
type RouteConfig struct {
	Attempts []AttemptConfig `mapstructure:"attempts" validate:"required,min=1,max=2,dive"`
}

// AttemptConfig frames a prompt for one provider within a route.
type AttemptConfig struct {
	Provider     string        `mapstructure:"provider" validate:"required"`
	Model        string        `mapstructure:"model" validate:"required"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	MaxTokens    int           `mapstructure:"max_tokens" validate:"gte=0"`
	Temperature  float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Width        int           `mapstructure:"width" validate:"gte=0"`
	Height       int           `mapstructure:"height" validate:"gte=0"`
}

const DefaultAttemptTimeout = 30 * time.Second

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("./internal/config")
	}

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.admin_keys", []string{})
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.dsn", "file:gateway.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "content-gateway")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}
	if len(cfg.Routes) == 0 {
		cfg.Routes = DefaultRoutes()
	}

	for i, p := range cfg.Providers {
		cfg.Providers[i].APIKey = resolveKey(v, p.APIKey)
	}

	for name, r := range cfg.Routes {
		for i := range r.Attempts {
			if r.Attempts[i].Timeout == 0 {
				r.Attempts[i].Timeout = DefaultAttemptTimeout
			}
		}
		cfg.Routes[name] = r
	}

	return &cfg, nil
}

// resolveKey expands "ENV:NAME" indirections.
func resolveKey(v *viper.Viper, key string) string {
	if !strings.HasPrefix(key, "ENV:") {
		return key
	}
	envVar := strings.TrimPrefix(key, "ENV:")
	// process environment first, then whatever viper picked up
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return v.GetString(envVar)
}
