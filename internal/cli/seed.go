package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerd/internal/engine"
	"github.com/roach88/ledgerd/internal/fixture"
	"github.com/roach88/ledgerd/internal/logging"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions

	// PasswordCost overrides the bcrypt cost (for testing). Zero keeps the
	// worker default.
	PasswordCost int
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return newSeedCommand(&SeedOptions{RootOptions: rootOpts})
}

func newSeedCommand(opts *SeedOptions) *cobra.Command {
	cfg := &opts.Config

	cmd := &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load a YAML fixture into the ledger",
		Long: `Load a YAML fixture into the ledger through an in-process worker.

Users are registered first, then raw entries are bulk-inserted, then sends
are performed. Seeding stops at the first failure; earlier commands stay
committed.

Example:
  ledgerd seed ./fixtures/demo.yaml --db ./ledger.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&cfg.InitialBalance, "initial-balance", cfg.InitialBalance, "balance credited to new accounts")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command, path string) error {
	log := logging.New(cmd.ErrOrStderr(), opts.Verbose)

	fx, err := fixture.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load fixture", err)
	}

	cfg, err := resolveConfig(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	balance, err := cfg.Balance()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	workerOpts := []engine.Option{
		engine.WithLogger(log),
		engine.WithInitialBalance(balance),
	}
	if opts.PasswordCost > 0 {
		workerOpts = append(workerOpts, engine.WithPasswordCost(opts.PasswordCost))
	}
	w := engine.New(st, workerOpts...)

	ctx := cmdContext(cmd)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	sum, applyErr := fx.Apply(ctx, w)
	w.Stop()
	if err := <-done; err != nil && applyErr == nil {
		applyErr = err
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if applyErr != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("seed %s failed after %d users, %d entries, %d sends",
			fx.Name, sum.Users, sum.Entries, sum.Sends), applyErr)
	}

	if opts.Format == "json" {
		return formatter.Success(sum)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s: %d users, %d entries, %d sends\n",
		fx.Name, sum.Users, sum.Entries, sum.Sends)
	return nil
}
