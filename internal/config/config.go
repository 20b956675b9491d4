package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the gateway. Values come from
// Defaults, then the optional YAML file, then the environment.
type Config struct {
	Port             int           `env:"PORT"                yaml:"port"             json:"port"`
	BackendURL       string        `env:"GUSTEAU_API_URL"     yaml:"backendUrl"       json:"backendUrl"`
	GatewayURL       string        `env:"GUSTEAU_GATEWAY_URL" yaml:"gatewayUrl"       json:"gatewayUrl"`
	RestaurantID     string        `env:"RESTAURANT_ID"       yaml:"restaurantId"     json:"restaurantId"`
	GatewayToken     string        `env:"GATEWAY_TOKEN"       yaml:"gatewayToken"     json:"gatewayToken"`
	DebugPhoneNumber string        `env:"DEBUG_PHONE_NUMBER"  yaml:"debugPhoneNumber" json:"debugPhoneNumber,omitempty"`
	StorageDir       string        `env:"STORAGE_DIR"         yaml:"storageDir"       json:"storageDir"`
	LogLevel         string        `env:"LOG_LEVEL"           yaml:"logLevel"         json:"logLevel"`
	LogFormat        string        `env:"LOG_FORMAT"          yaml:"logFormat"        json:"logFormat"`
	BackendTimeout   time.Duration `env:"BACKEND_TIMEOUT"     yaml:"backendTimeout"   json:"backendTimeout"`
	MediaReplyText   string        `env:"MEDIA_REPLY_TEXT"    yaml:"mediaReplyText"   json:"mediaReplyText"`
	MetricsEnabled   bool          `env:"METRICS_ENABLED"     yaml:"metricsEnabled"   json:"metricsEnabled"`
	QRTerminal       bool          `env:"QR_TERMINAL"         yaml:"qrTerminal"       json:"qrTerminal"`
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are kept. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("cannot load %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		path = ExpandPath(path)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}

		// Substitute environment variables: ${VAR} and ${VAR:-default}
		data = []byte(ExpandEnvVars(string(data)))

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("cannot parse environment: %w", err)
	}

	if cfg.GatewayURL == "" {
		cfg.GatewayURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	cfg.GatewayURL = strings.TrimRight(cfg.GatewayURL, "/")
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	cfg.StorageDir = ExpandPath(cfg.StorageDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, "PORT must be between 1 and 65535")
	}

	if cfg.BackendURL == "" {
		errs = append(errs, "GUSTEAU_API_URL is required")
	} else if u, err := url.Parse(cfg.BackendURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "GUSTEAU_API_URL must be an absolute http(s) URL")
	}

	if strings.TrimSpace(cfg.RestaurantID) == "" {
		errs = append(errs, "RESTAURANT_ID is required")
	}
	if cfg.GatewayToken == "" {
		errs = append(errs, "GATEWAY_TOKEN is required")
	}
	if cfg.StorageDir == "" {
		errs = append(errs, "STORAGE_DIR must not be empty")
	}
	if cfg.BackendTimeout <= 0 {
		errs = append(errs, "BACKEND_TIMEOUT must be positive")
	}
	if cfg.MediaReplyText == "" {
		errs = append(errs, "MEDIA_REPLY_TEXT must not be empty")
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "LOG_LEVEL must be one of: debug, info, warn, error")
	}
	switch cfg.LogFormat {
	case "text", "json":
		// valid
	default:
		errs = append(errs, "LOG_FORMAT must be one of: text, json")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Sanitize returns a copy of cfg with secrets masked, safe to print.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	if out.GatewayToken != "" {
		out.GatewayToken = maskSecret(out.GatewayToken)
	}
	return &out
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
