// Package config defines the daemon configuration, loaded from a TOML file
// with flag and environment overrides layered on top by the CLI.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"
)

// NOTE: Most of the structs & relevant comments + the
// default configuration options were used to manually
// generate the config.toml. Please reflect any changes
// made here in the defaultConfigTemplate constant in
// config/toml.go
var (
	// DefaultAuctionDir is the home directory when none is given.
	DefaultAuctionDir = ".auctiond"

	defaultConfigDir = "config"
	defaultDataDir   = "data"

	defaultConfigFileName = "config.toml"
	defaultEventLogName   = "commands.json"

	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
	defaultEventLogPath   = filepath.Join(defaultDataDir, defaultEventLogName)
)

// Event log backends.
const (
	EventLogBackendFile  = "file"
	EventLogBackendKV    = "kv"
	EventLogBackendMulti = "multi"
)

// Config defines the top level configuration for an auction daemon.
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	EventLog        *EventLogConfig        `mapstructure:"eventlog"`
	RPC             *RPCConfig             `mapstructure:"rpc"`
	Webhook         *WebhookConfig         `mapstructure:"webhook"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for an auction daemon.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		EventLog:        DefaultEventLogConfig(),
		RPC:             DefaultRPCConfig(),
		Webhook:         DefaultWebhookConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing.
func TestConfig() *Config {
	cfg := DefaultConfig()
	cfg.BaseConfig.LogLevel = "debug"
	cfg.EventLog.Backend = EventLogBackendKV
	cfg.RPC.ListenAddress = "tcp://127.0.0.1:0"
	return cfg
}

// SetRoot sets the RootDir for all Config structs.
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	cfg.EventLog.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.EventLog.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [eventlog] section: %w", err)
	}
	if err := cfg.RPC.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [rpc] section: %w", err)
	}
	if err := cfg.Webhook.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [webhook] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for an auction daemon.
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// A custom human readable name for this node
	Moniker string `mapstructure:"moniker"`

	// Output level for logging
	LogLevel string `mapstructure:"log-level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log-format"`
}

// DefaultBaseConfig returns a default base configuration.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		Moniker:   "anonymous",
		LogLevel:  "info",
		LogFormat: "plain",
	}
}

//-----------------------------------------------------------------------------
// EventLogConfig

// EventLogConfig configures the durable command log.
type EventLogConfig struct {
	RootDir string `mapstructure:"home"`

	// Backend is one of "file", "kv" or "multi". "multi" appends to both the
	// file and the kv store and treats their union as the history.
	Backend string `mapstructure:"backend"`

	// Path of the JSON lines file, relative to the root directory. Used by
	// the "file" and "multi" backends.
	Path string `mapstructure:"path"`

	// DBPath is the directory of the key-value store, relative to the root
	// directory. Used by the "kv" and "multi" backends.
	DBPath string `mapstructure:"db-path"`
}

// DefaultEventLogConfig returns a default event log configuration.
func DefaultEventLogConfig() *EventLogConfig {
	return &EventLogConfig{
		Backend: EventLogBackendFile,
		Path:    defaultEventLogPath,
		DBPath:  defaultDataDir,
	}
}

// ValidateBasic performs basic validation and returns an error if any check
// fails.
func (cfg *EventLogConfig) ValidateBasic() error {
	switch cfg.Backend {
	case EventLogBackendFile, EventLogBackendKV, EventLogBackendMulti:
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if cfg.Path == "" && cfg.Backend != EventLogBackendKV {
		return fmt.Errorf("path must not be empty")
	}
	return nil
}

// File returns the full path of the JSON lines file.
func (cfg *EventLogConfig) File() string {
	return rootify(cfg.Path, cfg.RootDir)
}

// DBDir returns the full path of the key-value store directory.
func (cfg *EventLogConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

//-----------------------------------------------------------------------------
// RPCConfig

// RPCConfig defines the configuration options for the HTTP API server.
type RPCConfig struct {
	// TCP or UNIX socket address for the server to listen on
	ListenAddress string `mapstructure:"laddr"`

	// A list of origins a cross-domain request can be executed from.
	// If the special '*' value is present in the list, all origins will be
	// allowed. An origin may contain a wildcard (*) to replace 0 or more
	// characters (i.e.: http://*.domain.com).
	CORSAllowedOrigins []string `mapstructure:"cors-allowed-origins"`
}

// DefaultRPCConfig returns a default RPC configuration.
func DefaultRPCConfig() *RPCConfig {
	return &RPCConfig{
		ListenAddress:      "tcp://127.0.0.1:8083",
		CORSAllowedOrigins: []string{},
	}
}

// IsCorsEnabled returns true if cross-origin requests are allowed.
func (cfg *RPCConfig) IsCorsEnabled() bool {
	return len(cfg.CORSAllowedOrigins) != 0
}

// ValidateBasic performs basic validation and returns an error if any check
// fails.
func (cfg *RPCConfig) ValidateBasic() error {
	if cfg.ListenAddress == "" {
		return fmt.Errorf("laddr must not be empty")
	}
	return nil
}

//-----------------------------------------------------------------------------
// WebhookConfig

// WebhookConfig configures outbound result notifications.
type WebhookConfig struct {
	// URLs receiving a POST per produced result. Empty disables the sink.
	URLs []string `mapstructure:"urls"`

	// Timeout bounds a single delivery attempt.
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultWebhookConfig returns a default webhook configuration.
func DefaultWebhookConfig() *WebhookConfig {
	return &WebhookConfig{
		URLs:    []string{},
		Timeout: 10 * time.Second,
	}
}

// ValidateBasic performs basic validation and returns an error if any check
// fails.
func (cfg *WebhookConfig) ValidateBasic() error {
	for _, u := range cfg.URLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			return fmt.Errorf("invalid webhook url %q: %w", u, err)
		}
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus-listen-addr"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default instrumentation
// configuration.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		Namespace:            "auctions",
	}
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
