package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerd/internal/config"
	"github.com/roach88/ledgerd/internal/ledger"
	"github.com/roach88/ledgerd/internal/server"
)

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	Timeout time.Duration
}

// AuditResult is the JSON output of the audit command.
type AuditResult struct {
	User string               `json:"user"`
	Rows []ledger.LedgerEntry `json:"rows"`
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit <user>",
		Short: "Print every ledger row a user sent or received",
		Long: `Print every ledger row a user sent or received.

When a service answers on the socket the audit runs through it. Otherwise
the database is opened directly; the store is never opened while a service
holds it.

Example:
  ledgerd audit alice
  ledgerd audit alice --db ./ledger.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(opts, cmd, args[0])
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "how long to wait for a running service")

	return cmd
}

func runAudit(opts *AuditOptions, cmd *cobra.Command, user string) error {
	cfg, err := resolveConfig(cmd, opts.RootOptions)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdContext(cmd), opts.Timeout)
	defer cancel()

	rows, err := auditViaService(ctx, cfg, user)
	if errors.Is(err, errNoService) {
		rows, err = auditOffline(ctx, cfg, user)
	}
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(AuditResult{User: user, Rows: rows})
	}

	printRows(cmd, rows)
	return nil
}

var errNoService = errors.New("no service on socket")

// auditViaService runs the audit kind on a live service. It returns
// errNoService only when nothing is listening on the socket.
func auditViaService(ctx context.Context, cfg config.Config, user string) ([]ledger.LedgerEntry, error) {
	client, err := server.Dial(ctx, cfg.Socket)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
			return nil, errNoService
		}
		return nil, WrapExitError(ExitCommandError, "service socket unreachable", err)
	}
	defer client.Close()

	resp, err := client.Call(ctx, "audit", user)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "audit failed", err)
	}
	if resp.Error != nil {
		return nil, WrapExitError(ExitFailure, "audit rejected ["+strconv.Itoa(resp.Error.Code)+"]", resp.Error)
	}
	if resp.Kind != "rows" {
		return nil, NewExitError(ExitFailure, fmt.Sprintf("audit returned %s, want rows", resp.Kind))
	}

	var rows []ledger.LedgerEntry
	if err := json.Unmarshal(resp.Value, &rows); err != nil {
		return nil, WrapExitError(ExitFailure, "decode rows", err)
	}
	return rows, nil
}

// auditOffline reads the database directly. Only used when no service
// holds the store.
func auditOffline(ctx context.Context, cfg config.Config, user string) ([]ledger.LedgerEntry, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	rows, err := st.RowsByUser(ctx, user)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read ledger", err)
	}
	return rows, nil
}
