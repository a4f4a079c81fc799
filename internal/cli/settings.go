package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/ledgerd/internal/config"
	"github.com/roach88/ledgerd/internal/store"
)

// flagKeys maps CLI flag names to the keys config uses for precedence.
var flagKeys = map[string]string{
	"db": "database",
}

// resolveConfig layers the config file and LEDGERD_* environment under the
// flags the user set explicitly, then validates.
func resolveConfig(cmd *cobra.Command, opts *RootOptions) (config.Config, error) {
	cfg := opts.Config

	// Build set of changed flags
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			changed[key] = true
			return
		}
		changed[f.Name] = true
	})

	cfgFile := opts.ConfigPath
	if cfgFile == "" {
		cfgFile = config.DefaultConfigPath()
	}
	if opts.ConfigPath != "" || config.FileExists(cfgFile) {
		fc, err := config.LoadFileConfig(cfgFile)
		if err != nil {
			return cfg, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		config.ApplyFileConfig(&cfg, fc, changed)
	}

	// Environment overrides the file but not explicit flags
	if err := config.ApplyEnvConfig(&cfg, changed); err != nil {
		return cfg, WrapExitError(ExitCommandError, "invalid environment", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// openStore derives key material from the configured secret and opens the
// ledger.
func openStore(cfg config.Config) (*store.Store, error) {
	key, err := store.DeriveKey(cfg.Secret, cfg.SaltPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to derive store key", err)
	}
	st, err := store.Open(cfg.Database, key)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
