package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/russellvd/probefinder/pkg/config"
)

// loadConfig builds the effective configuration and logger for a
// command invocation. --log-level takes precedence over --verbose,
// which takes precedence over the config file.
func loadConfig(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, nil, err
		}
	} else {
		cfg = config.Default()
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	} else if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	} else if path == "" {
		// Keep normal CLI output clean unless asked for logs.
		cfg.LogLevel = "error"
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
