// Package config holds the bridge's runtime configuration.
//
// Everything has a working default; a YAML file is optional and flags in
// cmd/bridged override individual fields on top of it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport modes.
const (
	TransportStdio = "stdio"
	TransportWS    = "ws"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full runtime configuration.
type Config struct {
	// HTTPAddr is where the REST gateway listens.
	HTTPAddr string `yaml:"http_addr"`
	// Transport selects the extension channel: "stdio" or "ws".
	Transport string `yaml:"transport"`
	// WSAddr is the WebSocket listen address, used when Transport is "ws".
	WSAddr string `yaml:"ws_addr"`
	// CallTimeout bounds how long a call waits for the extension.
	CallTimeout Duration `yaml:"call_timeout"`
	// ReconnectDelay is the pause before re-reading a dead channel.
	ReconnectDelay Duration `yaml:"reconnect_delay"`
	// RateLimit caps gateway requests per second; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file or flags say
// otherwise. The port matches what the extension is built to dial.
func Default() Config {
	return Config{
		HTTPAddr:       "127.0.0.1:6277",
		Transport:      TransportStdio,
		WSAddr:         "127.0.0.1:6278",
		CallTimeout:    Duration(30 * time.Second),
		ReconnectDelay: Duration(time.Second),
		RateLimit:      50,
		RateBurst:      100,
		LogLevel:       "info",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the bridge cannot run with.
func (c Config) Validate() error {
	if c.Transport != TransportStdio && c.Transport != TransportWS {
		return fmt.Errorf("unknown transport %q (want %q or %q)", c.Transport, TransportStdio, TransportWS)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive, got %s", c.CallTimeout.Std())
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be positive, got %s", c.ReconnectDelay.Std())
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %v", c.RateLimit)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
