package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Session backend names accepted in SessionsConfig.Backends
const (
	BackendFile      = "file"
	BackendEncrypted = "encrypted"
	BackendKeyring   = "keyring"
	BackendEnv       = "env"
)

// Config holds all configuration options for the feed API
type Config struct {
	// HTTP listener and inbound limits
	Server ServerConfig `yaml:"server" json:"server"`

	// Bearer token issuance
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// Per-username session persistence
	Sessions SessionsConfig `yaml:"sessions" json:"sessions"`

	// Upstream web API client
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `yaml:"address" json:"address"`
	Debug             bool          `yaml:"debug" json:"debug"`
	ReadTimeout       time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	MetricsEnabled    bool          `yaml:"metrics_enabled" json:"metrics_enabled"`
}

// AuthConfig holds token and two-factor settings
type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret" json:"-"`
	TokenTTL     time.Duration `yaml:"token_ttl" json:"token_ttl"`
	ChallengeTTL time.Duration `yaml:"challenge_ttl" json:"challenge_ttl"`
}

// SessionsConfig selects and configures session store backends
type SessionsConfig struct {
	Backends   []string `yaml:"backends" json:"backends"`
	Directory  string   `yaml:"directory" json:"directory"`
	Passphrase string   `yaml:"passphrase" json:"-"`
}

// InstagramConfig holds upstream client configuration
type InstagramConfig struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	// JSON forces structured output on stdout instead of the console writer
	JSON bool `yaml:"json" json:"json"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:           ":5000",
			Debug:             false,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RequestsPerSecond: 5,
			Burst:             10,
			MetricsEnabled:    true,
		},
		Auth: AuthConfig{
			TokenTTL:     90 * 24 * time.Hour,
			ChallengeTTL: 10 * time.Minute,
		},
		Sessions: SessionsConfig{
			Backends:  []string{BackendFile},
			Directory: "sessions",
		},
		Instagram: InstagramConfig{
			BaseURL:           "https://www.instagram.com",
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			RetryDelay:        time.Second,
			RequestsPerMinute: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if addr := os.Getenv("IGFEED_ADDR"); addr != "" {
		c.Server.Address = addr
	}
	if debug := os.Getenv("IGFEED_DEBUG"); debug != "" {
		c.Server.Debug = parseBool(debug)
	}
	if rps := os.Getenv("IGFEED_REQUESTS_PER_SECOND"); rps != "" {
		val, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGFEED_REQUESTS_PER_SECOND: %w", err))
		} else {
			c.Server.RequestsPerSecond = val
		}
	}
	if metrics := os.Getenv("IGFEED_METRICS_ENABLED"); metrics != "" {
		c.Server.MetricsEnabled = parseBool(metrics)
	}

	// JWT_SECRET_KEY is still honoured for deployments of the older service
	if secret := os.Getenv("JWT_SECRET_KEY"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if secret := os.Getenv("IGFEED_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if ttl := os.Getenv("IGFEED_TOKEN_TTL"); ttl != "" {
		val, err := time.ParseDuration(ttl)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGFEED_TOKEN_TTL: %w", err))
		} else {
			c.Auth.TokenTTL = val
		}
	}

	if backends := os.Getenv("IGFEED_SESSION_BACKENDS"); backends != "" {
		c.Sessions.Backends = splitList(backends)
	}
	if dir := os.Getenv("IGFEED_SESSION_DIR"); dir != "" {
		c.Sessions.Directory = dir
	}
	if pass := os.Getenv("IGFEED_SESSION_PASSPHRASE"); pass != "" {
		c.Sessions.Passphrase = pass
	}

	if baseURL := os.Getenv("IGFEED_INSTAGRAM_BASE_URL"); baseURL != "" {
		c.Instagram.BaseURL = baseURL
	}
	if userAgent := os.Getenv("IGFEED_USER_AGENT"); userAgent != "" {
		c.Instagram.UserAgent = userAgent
	}
	if rpm := os.Getenv("IGFEED_REQUESTS_PER_MINUTE"); rpm != "" {
		val, err := strconv.Atoi(rpm)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGFEED_REQUESTS_PER_MINUTE: %w", err))
		} else if val > 0 {
			c.Instagram.RequestsPerMinute = val
		}
	}
	if retries := os.Getenv("IGFEED_MAX_RETRIES"); retries != "" {
		val, err := strconv.Atoi(retries)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGFEED_MAX_RETRIES: %w", err))
		} else {
			c.Instagram.MaxRetries = val
		}
	}

	if logLevel := os.Getenv("IGFEED_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("IGFEED_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}
	if logJSON := os.Getenv("IGFEED_LOG_JSON"); logJSON != "" {
		c.Logging.JSON = parseBool(logJSON)
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".igfeed.yaml",
		".igfeed.yml",
		filepath.Join(home, ".config", "igfeed", "config.yaml"),
		filepath.Join(home, ".config", "igfeed", "config.yml"),
		filepath.Join(home, ".igfeed.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Address == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if c.Server.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests per second cannot be negative"))
	}
	if c.Server.RequestsPerSecond > 0 && c.Server.Burst <= 0 {
		errs = append(errs, errors.New("burst must be positive when rate limiting is enabled"))
	}

	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.Auth.ChallengeTTL <= 0 {
		errs = append(errs, errors.New("challenge ttl must be positive"))
	}

	if len(c.Sessions.Backends) == 0 {
		errs = append(errs, errors.New("at least one session backend is required"))
	}
	for _, b := range c.Sessions.Backends {
		switch b {
		case BackendFile, BackendKeyring, BackendEnv:
		case BackendEncrypted:
			if c.Sessions.Passphrase == "" {
				errs = append(errs, errors.New("encrypted session backend requires a passphrase"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown session backend %q", b))
		}
	}
	if c.Sessions.Directory == "" {
		errs = append(errs, errors.New("session directory is required"))
	}

	if c.Instagram.BaseURL == "" {
		errs = append(errs, errors.New("instagram base url is required"))
	}
	if c.Instagram.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Instagram.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Instagram.Timeout <= 0 {
		errs = append(errs, errors.New("instagram timeout must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// RequireSecret reports an error when no JWT secret is configured.
// Only commands that issue or verify tokens call it.
func (c *Config) RequireSecret() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required (set IGFEED_JWT_SECRET)")
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if addr, ok := flags["addr"].(string); ok && addr != "" {
		c.Server.Address = addr
	}
	if debug, ok := flags["debug"].(bool); ok && debug {
		c.Server.Debug = true
	}
	if secret, ok := flags["jwt-secret"].(string); ok && secret != "" {
		c.Auth.JWTSecret = secret
	}
	if dir, ok := flags["sessions-dir"].(string); ok && dir != "" {
		c.Sessions.Directory = dir
	}
	if backends, ok := flags["session-backends"].([]string); ok && len(backends) > 0 {
		c.Sessions.Backends = backends
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igfeed.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
