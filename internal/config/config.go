// Package config loads residencyd settings from a file and the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"residencyd/internal/catalog"
	"residencyd/internal/residency"
)

// Defaults applied by WithDefaults for zero values.
const (
	DefaultAddr           = ":8080"
	DefaultZombieSeconds  = 30
	DefaultPollSeconds    = 10
	DefaultSettleDelayMS  = 1000
	DefaultBackendSeconds = 600
	DefaultMaxBodyBytes   = 1 << 20
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	RegistryFile string `json:"registry_file" yaml:"registry_file" toml:"registry_file"`

	GhostThresholdMB   float64            `json:"ghost_threshold_mb" yaml:"ghost_threshold_mb" toml:"ghost_threshold_mb"`
	HighSeverityMB     float64            `json:"high_severity_mb" yaml:"high_severity_mb" toml:"high_severity_mb"`
	DefaultFootprintMB float64            `json:"default_footprint_mb" yaml:"default_footprint_mb" toml:"default_footprint_mb"`
	Footprints         map[string]float64 `json:"footprints" yaml:"footprints" toml:"footprints"`

	ZombieKillerEnabled         bool `json:"zombie_killer_enabled" yaml:"zombie_killer_enabled" toml:"zombie_killer_enabled"`
	ZombieKillerIntervalSeconds int  `json:"zombie_killer_interval_seconds" yaml:"zombie_killer_interval_seconds" toml:"zombie_killer_interval_seconds"`
	PollIntervalSeconds         int  `json:"poll_interval_seconds" yaml:"poll_interval_seconds" toml:"poll_interval_seconds"`
	SettleDelayMS               int  `json:"settle_delay_ms" yaml:"settle_delay_ms" toml:"settle_delay_ms"`
	DeviceIndex                 int  `json:"device_index" yaml:"device_index" toml:"device_index"`

	// Backends maps a model family name to the base URL of its worker.
	Backends              map[string]string `json:"backends" yaml:"backends" toml:"backends"`
	BackendTimeoutSeconds int               `json:"backend_timeout_seconds" yaml:"backend_timeout_seconds" toml:"backend_timeout_seconds"`

	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers"`
	MaxBodyBytes       int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// WithDefaults returns a copy with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.GhostThresholdMB == 0 {
		c.GhostThresholdMB = residency.DefaultGhostThresholdMB
	}
	if c.HighSeverityMB == 0 {
		c.HighSeverityMB = residency.DefaultHighSeverityMB
	}
	if c.DefaultFootprintMB == 0 {
		c.DefaultFootprintMB = catalog.DefaultFootprintMB
	}
	if c.ZombieKillerIntervalSeconds == 0 {
		c.ZombieKillerIntervalSeconds = DefaultZombieSeconds
	}
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = DefaultPollSeconds
	}
	if c.SettleDelayMS == 0 {
		c.SettleDelayMS = DefaultSettleDelayMS
	}
	if c.BackendTimeoutSeconds == 0 {
		c.BackendTimeoutSeconds = DefaultBackendSeconds
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	return c
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	switch {
	case c.GhostThresholdMB < 0:
		return fmt.Errorf("ghost_threshold_mb must not be negative")
	case c.HighSeverityMB < 0:
		return fmt.Errorf("high_severity_mb must not be negative")
	case c.HighSeverityMB > 0 && c.GhostThresholdMB > c.HighSeverityMB:
		return fmt.Errorf("high_severity_mb (%v) must not be below ghost_threshold_mb (%v)", c.HighSeverityMB, c.GhostThresholdMB)
	case c.DefaultFootprintMB < 0:
		return fmt.Errorf("default_footprint_mb must not be negative")
	case c.ZombieKillerIntervalSeconds < 0:
		return fmt.Errorf("zombie_killer_interval_seconds must not be negative")
	case c.PollIntervalSeconds < 0:
		return fmt.Errorf("poll_interval_seconds must not be negative")
	case c.DeviceIndex < 0:
		return fmt.Errorf("device_index must not be negative")
	}
	for id, mb := range c.Footprints {
		if mb < 0 {
			return fmt.Errorf("footprint for %q must not be negative", id)
		}
	}
	for fam, url := range c.Backends {
		if _, err := catalog.ParseFamily(fam); err != nil {
			return fmt.Errorf("backends: %w", err)
		}
		if strings.TrimSpace(url) == "" {
			return fmt.Errorf("backends: empty url for %s", fam)
		}
	}
	switch c.LogFormat {
	case "", "json", "console":
	default:
		return fmt.Errorf("unsupported log_format %q", c.LogFormat)
	}
	return nil
}

// Catalog builds the footprint catalog from the builtin table, registry
// descriptors and configured overrides, in that order of precedence.
func (c Config) Catalog(registry []catalog.Descriptor) *catalog.Catalog {
	return catalog.FromDescriptors(c.DefaultFootprintMB, registry).WithOverrides(c.Footprints)
}
