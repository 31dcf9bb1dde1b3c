// Package config loads and validates the VitalRelay YAML configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// UserID is the account the daemon syncs. Must be a UUID.
	UserID string `yaml:"user_id"`

	// DeviceID tags every persisted record with the originating device.
	// Defaults to the hostname if unset.
	DeviceID string `yaml:"device_id"`

	// GatewayURL is the base URL of the local health gateway
	// (e.g. "http://localhost:8099").
	GatewayURL string `yaml:"gateway_url"`

	// GatewayToken is the bearer token used to authenticate with the gateway.
	GatewayToken string `yaml:"gateway_token"`

	// RemoteDSN is the PostgreSQL connection string of the remote record store.
	RemoteDSN string `yaml:"remote_dsn"`

	// SyncInterval controls how often a sync cycle runs.
	// Minimum 10s, maximum 10m. Defaults to 60s if unset.
	SyncInterval time.Duration `yaml:"sync_interval"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "vitalrelay".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request. Equivalent to the OTEL_EXPORTER_OTLP_HEADERS environment
	// variable. Use this for authentication tokens, e.g.:
	//   Authorization: "Bearer <token>"
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/vitalrelay/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "vitalrelay", "config.yaml"), nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required fields are present and well-formed.
func (c *Config) validate() error {
	if c.UserID == "" {
		return fmt.Errorf("user_id is required")
	}

	if c.DeviceID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			return fmt.Errorf("device_id is required (could not derive one from the hostname)")
		}
		c.DeviceID = host
	}

	if c.GatewayURL == "" {
		return fmt.Errorf("gateway_url is required")
	}
	u, err := url.ParseRequestURI(c.GatewayURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("gateway_url %q must be a valid http or https URL", c.GatewayURL)
	}

	if c.GatewayToken == "" {
		return fmt.Errorf("gateway_token is required")
	}

	if c.RemoteDSN == "" {
		return fmt.Errorf("remote_dsn is required")
	}

	if c.SyncInterval == 0 {
		c.SyncInterval = 60 * time.Second
	}
	if c.SyncInterval < 10*time.Second {
		return fmt.Errorf("sync_interval %v is too short (minimum 10s)", c.SyncInterval)
	}
	if c.SyncInterval > 10*time.Minute {
		return fmt.Errorf("sync_interval %v is too long (maximum 10m)", c.SyncInterval)
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}
