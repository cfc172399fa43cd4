// Package config loads the server configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the server configuration file. Everything is optional; the
// required listen port comes from the command line.
type Config struct {
	Host         string   `yaml:"host"`          // listen host, default all interfaces
	Codec        string   `yaml:"codec"`         // "json" or "binary", client-side default
	DrainTimeout Duration `yaml:"drain_timeout"` // graceful shutdown bound
	CallTimeout  Duration `yaml:"call_timeout"`  // per-call client deadline

	// Middleware knobs. RateLimit 0 disables the limiter.
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
	HandlerTimeout Duration `yaml:"handler_timeout"`

	// Discovery. Empty endpoints means no registry.
	Etcd struct {
		Endpoints     []string `yaml:"endpoints"`
		AdvertiseAddr string   `yaml:"advertise_addr"`
	} `yaml:"etcd"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Codec:        "json",
		DrainTimeout: Duration(10 * time.Second),
		CallTimeout:  Duration(10 * time.Second),
		RateBurst:    1,
	}
}

// Load reads path into a Config on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Codec != "json" && cfg.Codec != "binary" {
		return nil, fmt.Errorf("unknown codec %q, want \"json\" or \"binary\"", cfg.Codec)
	}
	return cfg, nil
}
