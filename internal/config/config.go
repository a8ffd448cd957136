// Package config loads and validates server configuration. Values come from
// built-in defaults, then an optional YAML file named by CONFIG_FILE, then
// environment variables, each layer overriding the previous one.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration values for the server.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string `yaml:"port"`

	// LogLevel is one of debug, info, warn, error. Defaults to "info".
	LogLevel string `yaml:"log_level"`

	// StoreBackend selects the document store: "postgres" (default) or
	// "memory". The memory backend needs neither DATABASE_URL nor REDIS_URL.
	StoreBackend string `yaml:"store_backend"`

	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	// BearerToken guards every route except health. Required.
	BearerToken string `yaml:"bearer_token"`

	CORSOrigins []string `yaml:"cors_origins"`

	OpenTripMapKey    string `yaml:"opentripmap_key"`
	KMAServiceKey     string `yaml:"kma_service_key"`
	NaverClientID     string `yaml:"naver_client_id"`
	NaverClientSecret string `yaml:"naver_client_secret"`

	// RefreshCron is the enrichment schedule in standard cron syntax or a
	// descriptor such as "@every 10m".
	RefreshCron string `yaml:"refresh_cron"`

	// CacheTTL bounds how long geocoding results are kept in Redis.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Port:         "8080",
		LogLevel:     "info",
		StoreBackend: BackendPostgres,
		CORSOrigins:  []string{"http://localhost:5173"},
		RefreshCron:  "*/30 * * * *",
		CacheTTL:     24 * time.Hour,
	}
}

// Load builds a Config from defaults, CONFIG_FILE and the environment, and
// returns an error naming every required value that is missing.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", cfg.StoreBackend))
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.BearerToken = getEnv("BEARER_TOKEN", cfg.BearerToken)
	cfg.OpenTripMapKey = getEnv("OPENTRIPMAP_API_KEY", cfg.OpenTripMapKey)
	cfg.KMAServiceKey = getEnv("KMA_SERVICE_KEY", cfg.KMAServiceKey)
	cfg.NaverClientID = getEnv("NAVER_CLIENT_ID", cfg.NaverClientID)
	cfg.NaverClientSecret = getEnv("NAVER_CLIENT_SECRET", cfg.NaverClientSecret)
	cfg.RefreshCron = getEnv("REFRESH_CRON", cfg.RefreshCron)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = ttl
	}
	return nil
}

func (c Config) validate() error {
	var missing []string
	if c.BearerToken == "" {
		missing = append(missing, "BEARER_TOKEN")
	}

	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
		if c.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want %s or %s)", c.StoreBackend, BackendPostgres, BackendMemory)
	}

	if len(missing) > 0 {
		return fmt.Errorf("required configuration not set: %s", strings.Join(missing, ", "))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown LOG_LEVEL %q", c.LogLevel)
	}

	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("parsing REFRESH_CRON %q: %w", c.RefreshCron, err)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	return nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
