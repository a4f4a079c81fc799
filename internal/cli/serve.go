package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/ledgerd/internal/engine"
	"github.com/roach88/ledgerd/internal/logging"
	"github.com/roach88/ledgerd/internal/metrics"
	"github.com/roach88/ledgerd/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions

	// IDGenerator allows overriding the command id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator

	// Ready, if set, is closed once the socket accepts connections.
	Ready chan struct{}
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cfg := &opts.Config

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger service",
		Long: `Run the ledger service.

Opens (creating if needed) the ledger database, starts the single-writer
worker and accepts client connections on the Unix socket until interrupted
or, with --allow-disconnect, until a client sends a disconnect command.

Example:
  ledgerd serve --db ./ledger.db --socket /tmp/ledgerd.sock
  LEDGERD_SECRET=hunter2 ledgerd serve --metrics-addr 127.0.0.1:9464`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&cfg.SaltPath, "salt", "", "salt file for key derivation (default <db>.salt)")
	cmd.Flags().StringVar(&cfg.InitialBalance, "initial-balance", cfg.InitialBalance, "balance credited to new accounts")
	cmd.Flags().Float64Var(&cfg.RateLimitRPS, "rate-limit", cfg.RateLimitRPS, "messages per second per connection (0 disables)")
	cmd.Flags().IntVar(&cfg.RateLimitBurst, "rate-burst", cfg.RateLimitBurst, "rate limit burst per connection")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().BoolVar(&cfg.AllowDisconnect, "allow-disconnect", false, "let clients stop the service with a disconnect command")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	log := logging.New(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := resolveConfig(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	log.Info().Interface("config", cfg.Masked()).Msg("configuration")

	balance, err := cfg.Balance()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("error closing database")
		}
	}()
	log.Info().Str("db", cfg.Database).Bool("keyed", cfg.Secret != "").Msg("database ready")

	m := metrics.New()
	workerOpts := []engine.Option{
		engine.WithLogger(log.With().Str("component", "worker").Logger()),
		engine.WithMetrics(m),
		engine.WithInitialBalance(balance),
	}
	if opts.IDGenerator != nil {
		workerOpts = append(workerOpts, engine.WithIDGenerator(opts.IDGenerator))
	}
	w := engine.New(st, workerOpts...)

	l, err := server.Listen(cfg.Socket)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open socket", err)
	}
	defer os.Remove(cfg.Socket)

	srv := server.New(l, w,
		server.WithLogger(log.With().Str("component", "server").Logger()),
		server.WithMetrics(m),
		server.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		server.WithAllowDisconnect(cfg.AllowDisconnect),
	)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(ctx, cfg.MetricsAddr, m, log)
		defer stopMetrics()
	}

	// The worker stopping (disconnect) takes the front-end down with it.
	workerErr := make(chan error, 1)
	go func() {
		err := w.Run(ctx)
		cancel()
		workerErr <- err
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "ledgerd listening on %s\n", cfg.Socket)
	if opts.Ready != nil {
		close(opts.Ready)
	}

	serveErr := srv.Serve(ctx)
	cancel()
	runErr := <-workerErr

	if serveErr != nil {
		return WrapExitError(ExitFailure, "server error", serveErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "worker error", runErr)
	}

	log.Info().Msg("ledgerd stopped gracefully")
	return nil
}

// serveMetrics exposes m on addr/metrics until the returned stop func is
// called.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, log zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		hs.Shutdown(shutdownCtx)
	}
}
