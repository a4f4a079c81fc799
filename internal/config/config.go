// Package config resolves ledgerd settings from flags, LEDGERD_*
// environment variables, a TOML file and defaults, in that order of
// precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
)

// Config holds the settings of one ledgerd process.
type Config struct {
	Socket   string
	Database string

	// Secret is the at-rest key passphrase. Empty opens the store unkeyed.
	Secret   string
	SaltPath string

	InitialBalance string

	RateLimitRPS   float64
	RateLimitBurst int

	MetricsAddr     string
	AllowDisconnect bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	dir := DefaultDataDir()
	return Config{
		Socket:         filepath.Join(dir, "ledgerd.sock"),
		Database:       filepath.Join(dir, "ledger.db"),
		InitialBalance: "100",
		RateLimitRPS:   50,
		RateLimitBurst: 100,
	}
}

// DefaultDataDir returns ~/.ledgerd, or the working directory when the
// home directory is unknown.
func DefaultDataDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".ledgerd")
	}
	return "."
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.toml")
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Socket == "" {
		return fmt.Errorf("socket is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}

	if _, err := c.Balance(); err != nil {
		return err
	}

	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit burst must not be negative")
	}

	if c.Secret != "" && c.SaltPath == "" {
		c.SaltPath = c.Database + ".salt"
	}

	return nil
}

// Balance parses InitialBalance.
func (c *Config) Balance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.InitialBalance)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("initial balance %q: %w", c.InitialBalance, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("initial balance must not be negative")
	}
	return d, nil
}

// Masked returns a copy that is safe to log.
func (c Config) Masked() Config {
	if len(c.Secret) > 0 {
		c.Secret = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat takes a pointer so an explicit zero in the file is applied.
func (s *configSetter) setFloat(flag string, value *float64, dst *float64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination.
// Zero is a valid value; Validate rejects negatives.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = f
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
