// Package config loads console configuration from defaults, an optional
// YAML file, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // display.timezone must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable holding the YAML config path.
const FileEnv = "ADMIN_CONFIG"

// Config is the full console configuration.
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Poll      PollConfig      `yaml:"poll"`
	HTTP      HTTPConfig      `yaml:"http"`
	Display   DisplayConfig   `yaml:"display"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	PubSub    PubSubConfig    `yaml:"pubsub"`
}

// BackendConfig locates and authenticates against the admin backend.
type BackendConfig struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Token is a pre-issued bearer token; when set, login is skipped.
	Token string `yaml:"token"`
}

// PollConfig controls the dashboard poller.
type PollConfig struct {
	Interval  time.Duration `yaml:"interval"`
	StatsDays int           `yaml:"stats_days"`
}

// HTTPConfig controls each backend call.
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries uint64        `yaml:"max_retries"`
}

// DisplayConfig controls how times are shown.
type DisplayConfig struct {
	// Timezone is an IANA name, or "Local".
	Timezone string `yaml:"timezone"`
}

// ServerConfig controls the dashboard HTTP server.
type ServerConfig struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// PubSubConfig enables the trigger listener when both fields are set.
type PubSubConfig struct {
	ProjectID    string `yaml:"project_id"`
	Subscription string `yaml:"subscription"`
}

// Enabled reports whether the trigger listener should run.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.Subscription != ""
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:  "http://localhost:8080",
			Username: "admin",
		},
		Poll: PollConfig{
			Interval:  30 * time.Second,
			StatsDays: 7,
		},
		HTTP: HTTPConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 2,
		},
		Display: DisplayConfig{Timezone: "Local"},
		Server: ServerConfig{
			Port:        "8081",
			Environment: "development",
		},
		Log: LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
		},
	}
}

// Load builds the configuration. file is the YAML path; when empty, the
// ADMIN_CONFIG variable is consulted and a missing file is not an error.
// envFiles are loaded with godotenv without overriding variables already
// set; with none given, ".env" is tried.
func Load(file string, envFiles ...string) (Config, error) {
	cfg := Default()

	explicit := file != ""
	if !explicit {
		file = os.Getenv(FileEnv)
	}
	if file != "" {
		if err := cfg.loadFile(file, explicit); err != nil {
			return Config{}, err
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from environment variables. Every malformed
// value is reported.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := parseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str("ADMIN_BASE_URL", &c.Backend.BaseURL)
	str("ADMIN_USERNAME", &c.Backend.Username)
	str("ADMIN_PASSWORD", &c.Backend.Password)
	str("ADMIN_TOKEN", &c.Backend.Token)
	dur("POLL_INTERVAL", &c.Poll.Interval)
	dur("HTTP_TIMEOUT", &c.HTTP.Timeout)
	str("DISPLAY_TIMEZONE", &c.Display.Timezone)
	str("APP_PORT", &c.Server.Port)
	str("APP_ENV", &c.Server.Environment)
	str("LOG_LEVEL", &c.Log.Level)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
	str("PUBSUB_PROJECT_ID", &c.PubSub.ProjectID)
	str("PUBSUB_SUBSCRIPTION", &c.PubSub.Subscription)

	if v, ok := lookup("STATS_DAYS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("STATS_DAYS: %w", err))
		} else {
			c.Poll.StatsDays = n
		}
	}
	if v, ok := lookup("HTTP_MAX_RETRIES"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("HTTP_MAX_RETRIES: %w", err))
		} else {
			c.HTTP.MaxRetries = n
		}
	}
	if v, ok := lookup("OTEL_ENABLED"); ok && v != "" {
		c.Telemetry.Enabled = v == "true"
	}

	return errors.Join(errs...)
}

// parseDuration accepts Go durations ("30s") and bare seconds ("30").
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate checks the configuration and reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.base_url %q must be an absolute http(s) URL", c.Backend.BaseURL))
	}
	if c.Poll.Interval < time.Second {
		errs = append(errs, fmt.Errorf("poll.interval %s must be at least 1s", c.Poll.Interval))
	}
	if c.Poll.StatsDays < 1 {
		errs = append(errs, fmt.Errorf("poll.stats_days %d must be positive", c.Poll.StatsDays))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout %s must be positive", c.HTTP.Timeout))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("display.timezone: %w", err))
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %q must be a TCP port", c.Server.Port))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Subscription == "") {
		errs = append(errs, errors.New("pubsub.project_id and pubsub.subscription must be set together"))
	}

	return errors.Join(errs...)
}

// ValidateCredentials checks that the smoke flow can authenticate.
func (c Config) ValidateCredentials() error {
	if c.Backend.Token != "" {
		return nil
	}
	if c.Backend.Username == "" || c.Backend.Password == "" {
		return errors.New("backend username and password are required unless a token is set")
	}
	return nil
}

// Location returns the display time zone.
func (c Config) Location() (*time.Location, error) {
	if c.Display.Timezone == "" || c.Display.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Display.Timezone)
}

// LogLevel returns the configured zerolog level, defaulting to info.
func (c Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
