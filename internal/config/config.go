package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr       string
	CORSOrigin string
	// Redmine backend
	RedmineURL     string
	RedmineAPIKey  string
	RedmineTimeout time.Duration
	// Logging
	LogLevel  string
	LogFormat string
}

// fileConfig mirrors Config for YAML files. Zero values mean "not set".
type fileConfig struct {
	Addr           string `yaml:"addr"`
	CORSOrigin     string `yaml:"cors_origin"`
	RedmineURL     string `yaml:"redmine_url"`
	RedmineAPIKey  string `yaml:"redmine_api_key"`
	TimeoutSeconds int    `yaml:"redmine_timeout_seconds"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
}

func Default() Config {
	return Config{
		Addr:           ":8787",
		CORSOrigin:     "*",
		RedmineTimeout: 30 * time.Second,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load builds the configuration from defaults overridden by the environment.
func Load() Config {
	return applyEnv(Default())
}

// LoadFile reads a YAML file on top of the defaults; environment variables
// still take precedence over values from the file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg := Default()
	if fc.Addr != "" {
		cfg.Addr = fc.Addr
	}
	if fc.CORSOrigin != "" {
		cfg.CORSOrigin = fc.CORSOrigin
	}
	if fc.RedmineURL != "" {
		cfg.RedmineURL = fc.RedmineURL
	}
	if fc.RedmineAPIKey != "" {
		cfg.RedmineAPIKey = fc.RedmineAPIKey
	}
	if fc.TimeoutSeconds > 0 {
		cfg.RedmineTimeout = time.Duration(fc.TimeoutSeconds) * time.Second
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		cfg.LogFormat = fc.LogFormat
	}
	return applyEnv(cfg), nil
}

func applyEnv(cfg Config) Config {
	cfg.Addr = getenv("API_ADDR", cfg.Addr)
	cfg.CORSOrigin = getenv("REPORTS_CORS_ORIGIN", cfg.CORSOrigin)
	cfg.RedmineURL = getenv("REDMINE_URL", cfg.RedmineURL)
	cfg.RedmineAPIKey = getenv("REDMINE_API_KEY", cfg.RedmineAPIKey)
	cfg.RedmineTimeout = time.Duration(getenvInt("REDMINE_TIMEOUT_SECONDS", int(cfg.RedmineTimeout/time.Second))) * time.Second
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("LOG_FORMAT", cfg.LogFormat)
	return cfg
}

// Validate reports every missing or malformed required setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.RedmineURL) == "" {
		errs = append(errs, errors.New("REDMINE_URL is required"))
	} else if u, err := url.Parse(c.RedmineURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("REDMINE_URL %q is not an absolute URL", c.RedmineURL))
	}
	if strings.TrimSpace(c.RedmineAPIKey) == "" {
		errs = append(errs, errors.New("REDMINE_API_KEY is required"))
	}
	if c.RedmineTimeout <= 0 {
		errs = append(errs, errors.New("REDMINE_TIMEOUT_SECONDS must be positive"))
	}
	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
