// Package config holds application configuration and logger setup.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds tunables for scanning, connections, and output.
type Config struct {
	LogLevel        string        `yaml:"log_level" default:"info"`
	ScanDuration    time.Duration `yaml:"scan_duration" default:"10s"`
	RefreshInterval time.Duration `yaml:"refresh_interval" default:"0s"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" default:"30s"`
	PollInterval    time.Duration `yaml:"poll_interval" default:"5s"`
	OutputFormat    string        `yaml:"output_format" default:"table"` // table, json
}

// Default returns a Config populated from struct-tag defaults.
func Default() *Config {
	cfg := new(Config)
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file over the defaults. A missing file is
// not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// UnmarshalYAML decodes durations from their human-readable form
// ("10s", "1m30s"). Absent keys keep their current values, so a file
// only needs to name what it overrides.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		LogLevel        string `yaml:"log_level"`
		ScanDuration    string `yaml:"scan_duration"`
		RefreshInterval string `yaml:"refresh_interval"`
		ConnectTimeout  string `yaml:"connect_timeout"`
		PollInterval    string `yaml:"poll_interval"`
		OutputFormat    string `yaml:"output_format"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.LogLevel != "" {
		c.LogLevel = raw.LogLevel
	}
	if raw.OutputFormat != "" {
		c.OutputFormat = raw.OutputFormat
	}

	for _, field := range []struct {
		text string
		dst  *time.Duration
		name string
	}{
		{raw.ScanDuration, &c.ScanDuration, "scan_duration"},
		{raw.RefreshInterval, &c.RefreshInterval, "refresh_interval"},
		{raw.ConnectTimeout, &c.ConnectTimeout, "connect_timeout"},
		{raw.PollInterval, &c.PollInterval, "poll_interval"},
	} {
		if field.text == "" {
			continue
		}
		d, err := time.ParseDuration(field.text)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", field.name, err)
		}
		*field.dst = d
	}
	return nil
}

// NewLogger creates a logger configured from the config's log level.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}
