package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports configuration problems that would prevent the daemon from
// operating correctly. API keys are not required here so read-only commands
// work without credentials; stage adapters fail with a configuration error
// when a key is missing at invocation time.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir is required")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir is required")
	}
	if err := c.validateSummary(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSummary() error {
	for name, focus := range map[string]int{
		"summary.short_focus":    c.Summary.ShortFocus,
		"summary.balanced_focus": c.Summary.BalancedFocus,
		"summary.detailed_focus": c.Summary.DetailedFocus,
	} {
		if focus < 1 || focus > 10 {
			return fmt.Errorf("%s must be between 1 and 10, got %d", name, focus)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
