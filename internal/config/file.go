package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config as it appears in config.toml.
type FileConfig struct {
	Socket          string   `toml:"socket"`
	Database        string   `toml:"database"`
	Secret          string   `toml:"secret"`
	SaltPath        string   `toml:"salt_path"`
	InitialBalance  string   `toml:"initial_balance"`
	RateLimitRPS    *float64 `toml:"rate_limit_rps"`
	RateLimitBurst  int      `toml:"rate_limit_burst"`
	MetricsAddr     string   `toml:"metrics_addr"`
	AllowDisconnect *bool    `toml:"allow_disconnect"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) {
	s := newConfigSetter(changed)

	s.setString("socket", fc.Socket, &cfg.Socket)
	s.setString("database", fc.Database, &cfg.Database)
	s.setString("secret", fc.Secret, &cfg.Secret)
	s.setString("salt", fc.SaltPath, &cfg.SaltPath)
	s.setString("initial-balance", fc.InitialBalance, &cfg.InitialBalance)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	s.setFloat("rate-limit", fc.RateLimitRPS, &cfg.RateLimitRPS)
	s.setInt("rate-burst", fc.RateLimitBurst, &cfg.RateLimitBurst)

	s.setBool("allow-disconnect", fc.AllowDisconnect, &cfg.AllowDisconnect)
}

// ApplyEnvConfig applies LEDGERD_* environment variables. They override
// file values but not explicitly set flags.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("socket", os.Getenv("LEDGERD_SOCKET"), &cfg.Socket)
	s.setString("database", os.Getenv("LEDGERD_DATABASE"), &cfg.Database)
	s.setString("secret", os.Getenv("LEDGERD_SECRET"), &cfg.Secret)
	s.setString("salt", os.Getenv("LEDGERD_SALT_PATH"), &cfg.SaltPath)
	s.setString("initial-balance", os.Getenv("LEDGERD_INITIAL_BALANCE"), &cfg.InitialBalance)
	s.setString("metrics-addr", os.Getenv("LEDGERD_METRICS_ADDR"), &cfg.MetricsAddr)

	if err := s.setFloatFromString("rate-limit", os.Getenv("LEDGERD_RATE_LIMIT_RPS"), &cfg.RateLimitRPS); err != nil {
		return err
	}
	if err := s.setIntFromString("rate-burst", os.Getenv("LEDGERD_RATE_LIMIT_BURST"), &cfg.RateLimitBurst); err != nil {
		return err
	}

	s.setBoolFromString("allow-disconnect", os.Getenv("LEDGERD_ALLOW_DISCONNECT"), &cfg.AllowDisconnect)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
