// Package config loads pldmd's daemon tunables from environment
// variables, a config file, and defaults, in that order of decreasing
// precedence, the way dittofs's settings loader layers viper over a
// struct of mapstructure-tagged fields.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/openbmc/pldm-sub002/internal/constants"
	"github.com/spf13/viper"
)

// Config is pldmd's full daemon configuration.
//
// Sources, highest precedence first:
//  1. Environment variables (PLDM_*)
//  2. Configuration file (YAML)
//  3. Defaults (DefaultConfig)
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Transport  TransportConfig  `mapstructure:"transport"`
	Requester  RequesterConfig  `mapstructure:"requester"`
	EventPump  EventPumpConfig  `mapstructure:"event_pump"`
	Dictionary DictionaryConfig `mapstructure:"dictionary"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	DBus       DBusConfig       `mapstructure:"dbus"`
}

// LoggingConfig controls the process-wide logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error (case-insensitive).
	Level string `mapstructure:"level"`
	// Format is "text" or "json".
	Format string `mapstructure:"format"`
}

// TransportConfig selects and configures the MCTP transport backend.
type TransportConfig struct {
	// Backend is "mctp-demux" or "af-mctp".
	Backend string `mapstructure:"backend"`
	// SocketPath is the mctp-demux-daemon unix socket path; unused for
	// af-mctp, which binds a raw AF_MCTP socket instead.
	SocketPath string `mapstructure:"socket_path"`
	// MinEID/MaxEID bound (inclusively) the EIDs the terminus manager
	// probes at startup; MinEID is also this agent's own EID. The
	// transport's identity EID<->TID map always covers the full valid EID
	// range from internal/constants.
	MinEID uint8 `mapstructure:"min_eid"`
	MaxEID uint8 `mapstructure:"max_eid"`
}

// RequesterConfig tunes the request/response correlation runtime.
type RequesterConfig struct {
	// ResponseTimeout is how long a single attempt waits before retrying
	// or giving up.
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
	// Retries is the number of retries after the first attempt.
	Retries int `mapstructure:"retries"`
}

// EventPumpConfig tunes the PollForPlatformEventMessage loop.
type EventPumpConfig struct {
	// BufferSize is this agent's event-message buffer size offered in
	// EventMessageBufferSize, and also the critical-event queue capacity.
	BufferSize int `mapstructure:"buffer_size"`
	// PollInterval is the pump's tick interval: on each tick an idle pump
	// pops one queued event and polls its terminus for it.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// DictionaryConfig configures on-disk dictionary/registry persistence.
type DictionaryConfig struct {
	// Root is the directory dictionaries and resource registries are
	// written under, one subdirectory per device UUID.
	Root string `mapstructure:"root"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// DBusConfig configures the system bus connection used to emit Redfish
// resource-change signals.
type DBusConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultConfig returns the configuration used when no file or
// environment override is present, matching the documented defaults in
// internal/constants.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Transport: TransportConfig{
			Backend:    "mctp-demux",
			SocketPath: "/run/mctp/mctp-demux.sock",
			MinEID:     constants.MinValidEID,
			MaxEID:     constants.MaxValidEID,
		},
		Requester: RequesterConfig{
			ResponseTimeout: constants.DefaultResponseTimeout,
			Retries:         constants.DefaultRetries,
		},
		EventPump: EventPumpConfig{
			BufferSize:   constants.DefaultEventBufferSize,
			PollInterval: constants.DefaultPollInterval,
		},
		Dictionary: DictionaryConfig{
			Root: constants.DictRoot,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Listen:  ":9100",
		},
		DBus: DBusConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from configPath (or the default search path
// if empty), layering it over defaults, with environment variables taking
// precedence over both. A missing file leaves defaults plus environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)
	bindDefaults(v, DefaultConfig())

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook)); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setupViper wires up environment variable and config-file search
// behavior. Environment variables use the PLDM_ prefix with underscores
// in place of the nested key's dots, e.g. PLDM_REQUESTER_RETRIES.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("PLDM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(defaultConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// bindDefaults seeds viper with default's values so a config file or
// environment override only needs to name the keys it changes.
func bindDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetDefault("transport.backend", defaults.Transport.Backend)
	v.SetDefault("transport.socket_path", defaults.Transport.SocketPath)
	v.SetDefault("transport.min_eid", defaults.Transport.MinEID)
	v.SetDefault("transport.max_eid", defaults.Transport.MaxEID)

	v.SetDefault("requester.response_timeout", defaults.Requester.ResponseTimeout)
	v.SetDefault("requester.retries", defaults.Requester.Retries)

	v.SetDefault("event_pump.buffer_size", defaults.EventPump.BufferSize)
	v.SetDefault("event_pump.poll_interval", defaults.EventPump.PollInterval)

	v.SetDefault("dictionary.root", defaults.Dictionary.Root)

	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.listen", defaults.Metrics.Listen)

	v.SetDefault("dbus.enabled", defaults.DBus.Enabled)
}

// readConfigFile reads the config file if present, returning
// (false, nil) when none exists so the caller can fall back to defaults.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: failed to read config file: %w", err)
	}
	return true, nil
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pldmd")
	}
	return "/etc/pldmd"
}

// Validate checks invariants Load can't express through viper defaults
// alone.
func Validate(cfg *Config) error {
	if cfg.Transport.Backend != "mctp-demux" && cfg.Transport.Backend != "af-mctp" {
		return fmt.Errorf("transport.backend must be \"mctp-demux\" or \"af-mctp\", got %q", cfg.Transport.Backend)
	}
	if cfg.Transport.MinEID > cfg.Transport.MaxEID {
		return fmt.Errorf("transport.min_eid (%d) must not exceed transport.max_eid (%d)", cfg.Transport.MinEID, cfg.Transport.MaxEID)
	}
	if cfg.Requester.Retries < 0 {
		return fmt.Errorf("requester.retries must be >= 0, got %d", cfg.Requester.Retries)
	}
	if cfg.Requester.ResponseTimeout <= 0 {
		return fmt.Errorf("requester.response_timeout must be positive, got %s", cfg.Requester.ResponseTimeout)
	}
	if cfg.EventPump.BufferSize <= 0 {
		return fmt.Errorf("event_pump.buffer_size must be positive, got %d", cfg.EventPump.BufferSize)
	}
	if cfg.Dictionary.Root == "" {
		return fmt.Errorf("dictionary.root must not be empty")
	}
	return nil
}

// durationDecodeHook converts config values destined for time.Duration
// fields, so config files and environment variables can use
// human-readable strings like "5s" or "250ms" instead of raw nanoseconds.
func durationDecodeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return time.ParseDuration(v)
	case int:
		return time.Duration(v), nil
	case int64:
		return time.Duration(v), nil
	case float64:
		return time.Duration(v), nil
	default:
		return data, nil
	}
}

var _ mapstructure.DecodeHookFunc = durationDecodeHook
