package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerd/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Config is filled from defaults and bound to flags; resolveConfig
	// layers the file and environment on top.
	Config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ledgerd CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Config: config.DefaultConfig()})
}

func newRootCommand(opts *RootOptions) *cobra.Command {

	cmd := &cobra.Command{
		Use:   "ledgerd",
		Short: "ledgerd - local ledger service",
		Long: `A local ledger service. Clients talk to a single-writer ledger worker
over a Unix socket, one JSON message per line.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.ledgerd/config.toml)")
	cmd.PersistentFlags().StringVar(&opts.Config.Socket, "socket", opts.Config.Socket, "path to the service socket")
	cmd.PersistentFlags().StringVar(&opts.Config.Database, "db", opts.Config.Database, "path to the ledger database")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
