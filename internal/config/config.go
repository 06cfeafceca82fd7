// Package config handles TOML configuration parsing and validation for
// crabbletalkd.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for crabbletalkd.
type Config struct {
	Interface    string `toml:"interface"`
	LogLevel     string `toml:"log_level"`
	LogFormat    string `toml:"log_format"`
	MetricsAddr  string `toml:"metrics_addr"`
	LocalMAC     string `toml:"local_mac"`        // empty = generate a random locally-administered MAC
	VendorDBPath string `toml:"vendor_db_path"`   // empty = vendor names omitted from diagnostics
	AuditDBPath  string `toml:"audit_db_path"`    // empty = address-history audit log disabled

	ProbeIntervalMS int `toml:"probe_interval_ms"`
	ProbeWindowMS   int `toml:"probe_window_ms"`
	LookupTimeoutMS int `toml:"lookup_timeout_ms"`

	TransportEgressBuffer int `toml:"transport_egress_buffer"`
	SocketBuffer          int `toml:"socket_buffer"`
	IngressBuffer         int `toml:"ingress_buffer"`
}

// ProbeInterval returns the configured probe tick as a time.Duration.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalMS) * time.Millisecond
}

// ProbeWindow returns the configured tentative-address window as a
// time.Duration.
func (c *Config) ProbeWindow() time.Duration {
	return time.Duration(c.ProbeWindowMS) * time.Millisecond
}

// LookupTimeout returns how long an unresolved address lookup is kept
// pending before it is swept off as Transient.
func (c *Config) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutMS) * time.Millisecond
}

// Load reads and parses a TOML config file, filling in any unset fields
// with Defaults() and validating the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Interface == "" {
		return fmt.Errorf("interface must be set")
	}
	if cfg.ProbeIntervalMS <= 0 {
		return fmt.Errorf("probe_interval_ms must be positive, got %d", cfg.ProbeIntervalMS)
	}
	if cfg.ProbeWindowMS <= 0 {
		return fmt.Errorf("probe_window_ms must be positive, got %d", cfg.ProbeWindowMS)
	}
	if cfg.LookupTimeoutMS <= 0 {
		return fmt.Errorf("lookup_timeout_ms must be positive, got %d", cfg.LookupTimeoutMS)
	}
	if cfg.TransportEgressBuffer < 1 {
		return fmt.Errorf("transport_egress_buffer must be at least 1, got %d", cfg.TransportEgressBuffer)
	}
	return nil
}
