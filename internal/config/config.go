package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort           = 3100
	defaultEnv            = "development"
	defaultHandlerTimeout = 10_000 * time.Millisecond
)

// AppConfig holds runtime startup configuration. Values come from an optional
// YAML file, then environment variables override.
type AppConfig struct {
	Port             int           `yaml:"port"`
	DSN              string        `yaml:"dsn"` // MySQL DSN, or sqlite://<path>
	RedisURL         string        `yaml:"redis_url"`
	Env              string        `yaml:"env"` // "development" | "production"
	SessionSecret    string        `yaml:"session_secret"`
	HandlerTimeout   time.Duration `yaml:"-"`
	HandlerTimeoutMS int           `yaml:"handler_timeout_ms"`
	CascadeDelete    *bool         `yaml:"cascade_delete"`

	GeneratorAPIKey string `yaml:"generator_api_key"`
	GeneratorModel  string `yaml:"generator_model"`

	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
}

// Load reads the optional YAML config file and applies environment overrides.
// A missing file is not an error; env-only deployments are the common case.
func Load(configPath string) (*AppConfig, error) {
	cfg := &AppConfig{
		Port:             defaultPort,
		Env:              defaultEnv,
		HandlerTimeoutMS: int(defaultHandlerTimeout / time.Millisecond),
	}

	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}
	if content, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d, expected 1-65535", cfg.Port)
	}
	if cfg.HandlerTimeoutMS <= 0 {
		cfg.HandlerTimeoutMS = int(defaultHandlerTimeout / time.Millisecond)
	}
	cfg.HandlerTimeout = time.Duration(cfg.HandlerTimeoutMS) * time.Millisecond
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_DSN")); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" && cfg.DSN == "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_SECRET")); v != "" {
		cfg.SessionSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("HANDLER_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HandlerTimeoutMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CASCADE_DELETE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CascadeDelete = &b
		}
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.GeneratorAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GENERATOR_MODEL")); v != "" {
		cfg.GeneratorModel = v
	}
	if v := strings.TrimSpace(os.Getenv("ADMIN_USERNAME")); v != "" {
		cfg.AdminUsername = v
	}
	if v := strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")); v != "" {
		cfg.AdminPassword = v
	}
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

// ShouldCascadeDelete reports whether deleting a project removes its endpoints
// and pages. Defaults to true.
func (c *AppConfig) ShouldCascadeDelete() bool {
	if c.CascadeDelete == nil {
		return true
	}
	return *c.CascadeDelete
}
