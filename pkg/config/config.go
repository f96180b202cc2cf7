package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/foxsync/foxsync-go/pkg/ratelimit"
)

// Poll interval bounds, in minutes.
const (
	DefaultPollMinutes = 5
	MinPollMinutes     = 1
	MaxPollMinutes     = 60
)

// DefaultFailureThreshold is the consecutive poll failures before the
// link is reported degraded.
const DefaultFailureThreshold = 3

// ErrMissingAPIKey is returned when the config has no API key.
var ErrMissingAPIKey = errors.New("config: apiKey is required")

// MQTT configures the optional telemetry bridge.
type MQTT struct {
	// Enabled turns the bridge on. Broker is required when set.
	Enabled bool `yaml:"enabled"`

	// Broker is the connection URL, e.g. tcp://10.0.0.2:1883.
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"clientID"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// TopicPrefix is prepended to every published topic.
	TopicPrefix string `yaml:"topicPrefix"`
}

// Config is the full configuration document.
type Config struct {
	// APIKey is the personal FoxESS Cloud API key.
	APIKey string `yaml:"apiKey"`

	// DeviceSN selects the inverter. Empty means the account's
	// only device.
	DeviceSN string `yaml:"deviceSN"`

	// BaseURL overrides the cloud endpoint, for testing.
	BaseURL  string `yaml:"baseURL"`
	Lang     string `yaml:"lang"`
	Timezone string `yaml:"timezone"`

	// PollMinutes is the telemetry refresh period. Clamped to
	// [MinPollMinutes, MaxPollMinutes].
	PollMinutes int `yaml:"pollMinutes"`

	// DailyQuota caps API calls per local day. Zero means the
	// provider default; negative means unlimited.
	DailyQuota int `yaml:"dailyQuota"`

	// MinCallSeconds is the minimum spacing between calls. Zero
	// means the default; negative disables spacing.
	MinCallSeconds int `yaml:"minCallSeconds"`

	// FailureThreshold is the consecutive poll failures before the
	// telemetry link is reported degraded.
	FailureThreshold int `yaml:"failureThreshold"`

	// StateFile is where staged values and the budget window are
	// persisted. Empty disables persistence.
	StateFile string `yaml:"stateFile"`

	// AuditLog is the CBOR audit trail path. Empty disables it.
	AuditLog string `yaml:"auditLog"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"logLevel"`

	MQTT MQTT `yaml:"mqtt"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Lang:             "en",
		Timezone:         "UTC",
		PollMinutes:      DefaultPollMinutes,
		DailyQuota:       ratelimit.DefaultDailyQuota,
		MinCallSeconds:   int(ratelimit.DefaultMinInterval / time.Second),
		FailureThreshold: DefaultFailureThreshold,
		LogLevel:         "info",
	}
}

// Load reads path, overlays it on Default and normalizes the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// ReadFile reads path and overlays it on Default without normalizing
// or validating, so callers can apply overrides first.
func ReadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Parse overlays YAML data on Default and normalizes the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize clamps out-of-range values to their bounds.
func (c *Config) Normalize() {
	switch {
	case c.PollMinutes == 0:
		c.PollMinutes = DefaultPollMinutes
	case c.PollMinutes < MinPollMinutes:
		c.PollMinutes = MinPollMinutes
	case c.PollMinutes > MaxPollMinutes:
		c.PollMinutes = MaxPollMinutes
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.Lang == "" {
		c.Lang = "en"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
}

// Validate checks the fields that have no sensible fallback.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("config: mqtt.broker is required when mqtt is enabled")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// PollInterval returns the normalized poll period as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollMinutes) * time.Minute
}

// MinCallInterval returns the call spacing as a duration. A negative
// MinCallSeconds collapses the spacing to effectively nothing.
func (c *Config) MinCallInterval() time.Duration {
	if c.MinCallSeconds < 0 {
		return time.Nanosecond
	}
	return time.Duration(c.MinCallSeconds) * time.Second
}

// Location resolves the configured timezone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
