// Package config loads service configuration and opens the backing stores.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultJWTSecret is only acceptable outside production.
const DefaultJWTSecret = "supersecretjwtkey"

// Config holds application configuration values loaded from the environment.
type Config struct {
	Port                    string `mapstructure:"PORT"`
	Env                     string `mapstructure:"ENV"`
	MetricsPort             string `mapstructure:"METRICS_PORT"`
	MongoURI                string `mapstructure:"MONGO_URI"`
	MongoDatabase           string `mapstructure:"MONGO_DATABASE"`
	PostgresURL             string `mapstructure:"POSTGRES_URL"`
	RedisURL                string `mapstructure:"REDIS_URL"`
	JWTSecret               string `mapstructure:"JWT_SECRET"`
	JWTTTLHours             int    `mapstructure:"JWT_TTL_HOURS"`
	FirebaseCredentialsPath string `mapstructure:"FIREBASE_CREDENTIALS_PATH"`
	UploadDir               string `mapstructure:"UPLOAD_DIR"`
	AllowedOrigins          string `mapstructure:"ALLOWED_ORIGINS"`
	ViewDedupMinutes        int    `mapstructure:"VIEW_DEDUP_MINUTES"`
}

var defaults = map[string]any{
	"PORT":                      "8080",
	"ENV":                       "development",
	"METRICS_PORT":              "9090",
	"MONGO_URI":                 "",
	"MONGO_DATABASE":            "shiningstars",
	"POSTGRES_URL":              "",
	"REDIS_URL":                 "localhost:6379",
	"JWT_SECRET":                DefaultJWTSecret,
	"JWT_TTL_HOURS":             72,
	"FIREBASE_CREDENTIALS_PATH": "",
	"UPLOAD_DIR":                "./public/uploads",
	"ALLOWED_ORIGINS":           "*",
	"VIEW_DEDUP_MINUTES":        30,
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required values are present and that production runs
// with a real signing secret.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.MongoURI == "" {
		return errors.New("MONGO_URI is required")
	}
	if c.PostgresURL == "" {
		return errors.New("POSTGRES_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTTTLHours <= 0 {
		return errors.New("JWT_TTL_HOURS must be positive")
	}

	if c.IsProduction() {
		if c.JWTSecret == DefaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.AllowedOrigins == "*" {
			slog.Warn("ALLOWED_ORIGINS is '*' in production")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters")
	}
	return nil
}

// TokenTTL is the lifetime of issued JWTs.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// ViewDedupWindow is how long a user's view of a post is remembered.
func (c *Config) ViewDedupWindow() time.Duration {
	return time.Duration(c.ViewDedupMinutes) * time.Minute
}

// Origins splits ALLOWED_ORIGINS into a list.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
