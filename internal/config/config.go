// Package config assembles runtime configuration from environment variables
// with an optional TOML file overlay. Environment variables win, so deployed
// instances can override a checked-in file.
package config

import (
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Duration parses TOML duration strings like "500ms" or "12s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// DetectorConfig tunes the host-runtime detection schedule.
type DetectorConfig struct {
	MaxAttempts     uint64   `toml:"max_attempts"`
	InitialInterval Duration `toml:"initial_interval"`
	MaxInterval     Duration `toml:"max_interval"`
	MaxElapsed      Duration `toml:"max_elapsed"`
}

// Config is the application configuration.
type Config struct {
	AppName     string         `toml:"app_name"`
	AppID       string         `toml:"app_id"`
	Environment string         `toml:"environment"`
	BackendURL  string         `toml:"backend_url"`
	HTTPTimeout Duration       `toml:"http_timeout"`
	Detector    DetectorConfig `toml:"detector"`
}

func defaults() Config {
	return Config{
		AppName:     "ORB Lotto",
		Environment: "DEV",
		BackendURL:  "http://localhost:3000",
		HTTPTimeout: Duration{15 * time.Second},
		Detector: DetectorConfig{
			MaxAttempts:     10,
			InitialInterval: Duration{500 * time.Millisecond},
			MaxInterval:     Duration{2 * time.Second},
			MaxElapsed:      Duration{12 * time.Second},
		},
	}
}

// Load builds the configuration: defaults, then the TOML file at path (if
// any), then environment variables.
func Load(path string) (Config, error) {
	c := defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &c); err != nil {
			return Config{}, errors.Wrapf(err, "[config.Load] decode %s", path)
		}
	}

	c.AppName = GetEnv("APP_NAME", c.AppName)
	c.AppID = GetEnv("APP_ID", c.AppID)
	c.Environment = GetEnv("ENV", c.Environment)
	c.BackendURL = GetEnv("BACKEND_URL", c.BackendURL)

	if v := GetEnv("HTTP_TIMEOUT", ""); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "[config.Load] HTTP_TIMEOUT")
		}
		c.HTTPTimeout = Duration{parsed}
	}
	if v := GetEnv("DETECTOR_MAX_ATTEMPTS", ""); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, errors.Wrap(err, "[config.Load] DETECTOR_MAX_ATTEMPTS")
		}
		c.Detector.MaxAttempts = parsed
	}

	return c, nil
}

// IsProduction reports whether the degraded fallbacks (synthesized sign-in
// session, simulated tickets) must be disabled.
func (c Config) IsProduction() bool {
	switch c.Environment {
	case "PROD", "prod", "production", "PRODUCTION":
		return true
	}
	return false
}
