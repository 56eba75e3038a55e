// Package config provides configuration loading for the PDF renamer.
// Supports YAML files, .env files, environment variables, and flag overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

// DefaultTemplate renders date, merchant and amount.
const DefaultTemplate = "{date}_{merchant}_{amount}"

// Config holds all configuration for the renamer.
type Config struct {
	Rename        domain.RenameConfig                     `yaml:"rename"`
	Raster        RasterConfig                            `yaml:"raster"`
	Providers     map[domain.ProviderKind]ProviderConfig `yaml:"providers"`
	Cache         CacheConfig                             `yaml:"cache"`
	Journal       JournalConfig                           `yaml:"journal"`
	Export        ExportConfig                            `yaml:"export"`
	Server        ServerConfig                            `yaml:"server"`
	Observability ObservabilityConfig                     `yaml:"observability"`
}

// Raster bounds accepted by Validate
const (
	MinRasterScale   = 1.5
	MaxRasterScale   = 2.0
	MinRasterQuality = 80
	MaxRasterQuality = 90
)

// RasterConfig holds page rendering settings.
type RasterConfig struct {
	Scale   float64 `yaml:"scale"`
	Quality int     `yaml:"quality"`
}

// ProviderConfig holds per-backend settings. The credential itself is read
// from APIKeyEnv at call time and never stored here.
type ProviderConfig struct {
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// CacheConfig holds extraction cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"` // host:port or redis:// URL
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JournalConfig holds rename journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ExportConfig holds the fallback output directory for files without a write capability.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig holds status API settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		cfg.fillProviderDefaults()
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Rename: domain.RenameConfig{
			Template:        DefaultTemplate,
			SanitizeEnabled: true,
			Provider:        domain.ProviderOpenAI,
		},
		Raster: RasterConfig{
			Scale:   1.5,
			Quality: 85,
		},
		Providers: DefaultProviders(),
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        24 * time.Hour,
			MaxEntries: 1000,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    defaultJournalPath(),
		},
		Export: ExportConfig{
			Dir: "renamed",
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8087",
			AllowedOrigins: []string{"*"},
			RequestTimeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// DefaultProviders returns the built-in backend settings.
func DefaultProviders() map[domain.ProviderKind]ProviderConfig {
	return map[domain.ProviderKind]ProviderConfig{
		domain.ProviderOpenAI: {
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
			Timeout:   120 * time.Second,
		},
		domain.ProviderOpenRouter: {
			Model:     "google/gemini-2.5-flash",
			APIKeyEnv: "OPENROUTER_API_KEY",
			Timeout:   120 * time.Second,
		},
		domain.ProviderGemini: {
			Model:     "gemini-2.5-flash",
			APIKeyEnv: "GEMINI_API_KEY",
			Timeout:   120 * time.Second,
		},
	}
}

// fillProviderDefaults restores fields a partial YAML providers block left empty.
func (c *Config) fillProviderDefaults() {
	defaults := DefaultProviders()
	if c.Providers == nil {
		c.Providers = defaults
		return
	}
	for kind, def := range defaults {
		p, ok := c.Providers[kind]
		if !ok {
			c.Providers[kind] = def
			continue
		}
		if p.Model == "" {
			p.Model = def.Model
		}
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = def.APIKeyEnv
		}
		if p.Timeout <= 0 {
			p.Timeout = def.Timeout
		}
		c.Providers[kind] = p
	}
}

// Provider returns the settings for kind.
func (c *Config) Provider(kind domain.ProviderKind) ProviderConfig {
	if p, ok := c.Providers[kind]; ok {
		return p
	}
	return DefaultProviders()[kind]
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := domain.ParseProviderKind(string(c.Rename.Provider)); err != nil {
		return err
	}

	for kind := range c.Providers {
		if _, err := domain.ParseProviderKind(string(kind)); err != nil {
			return err
		}
	}

	if c.Raster.Quality < MinRasterQuality || c.Raster.Quality > MaxRasterQuality {
		return fmt.Errorf("raster quality must be between %d and %d, got %d", MinRasterQuality, MaxRasterQuality, c.Raster.Quality)
	}

	if c.Raster.Scale < MinRasterScale || c.Raster.Scale > MaxRasterScale {
		return fmt.Errorf("raster scale must be between %g and %g, got %g", MinRasterScale, MaxRasterScale, c.Raster.Scale)
	}

	switch c.Cache.Driver {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Path) == "" {
		return fmt.Errorf("journal path is required when the journal is enabled")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RENAME_TEMPLATE"); v != "" {
		cfg.Rename.Template = v
	}

	if v := os.Getenv("RENAME_PROVIDER"); v != "" {
		cfg.Rename.Provider = domain.ProviderKind(strings.ToLower(strings.TrimSpace(v)))
	}

	if v := os.Getenv("RENAME_SANITIZE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Rename.SanitizeEnabled = b
		}
	}

	if v := os.Getenv("RASTER_SCALE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Raster.Scale = f
		}
	}

	if v := os.Getenv("RASTER_QUALITY"); v != "" {
		if q, err := strconv.Atoi(v); err == nil {
			cfg.Raster.Quality = q
		}
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		p := cfg.Provider(cfg.Rename.Provider)
		p.Model = v
		cfg.Providers[cfg.Rename.Provider] = p
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = v
	}

	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	if v := os.Getenv("EXPORT_DIR"); v != "" {
		cfg.Export.Dir = v
	}

	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

func defaultJournalPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".pdf-renamer-journal.db"
	}
	return filepath.Join(dir, "pdf-renamer", "journal.db")
}
