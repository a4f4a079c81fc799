package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerd/internal/ledger"
	"github.com/roach88/ledgerd/internal/protocol"
	"github.com/roach88/ledgerd/internal/server"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Timeout time.Duration
}

// CallResult is the decoded reply of one call.
type CallResult struct {
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <kind> [args...]",
		Short: "Send one command to a running service",
		Long: `Send one command to a running ledgerd and print the reply.

The remaining arguments are joined with spaces and sent as the args field.

Example:
  ledgerd call register alice s3cret
  ledgerd call send alice bob 12.5
  ledgerd call query source alice --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, cmd, args[0], strings.Join(args[1:], " "))
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "how long to wait for the reply")

	return cmd
}

func runCall(opts *CallOptions, cmd *cobra.Command, kind, args string) error {
	cfg, err := resolveConfig(cmd, opts.RootOptions)
	if err != nil {
		return err
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	ctx, cancel := context.WithTimeout(cmdContext(cmd), opts.Timeout)
	defer cancel()

	client, err := server.Dial(ctx, cfg.Socket)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	defer client.Close()

	formatter.VerboseLog("-> %s %q", kind, args)

	var resp *protocol.Response
	if strings.EqualFold(kind, "disconnect") && args == "" {
		resp, err = client.Disconnect(ctx)
		if err == nil && resp == nil {
			if opts.Format == "json" {
				return formatter.Success(CallResult{Kind: "disconnect"})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Disconnected.")
			return nil
		}
	} else {
		resp, err = client.Call(ctx, kind, args)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "call failed", err)
	}

	if resp.Error != nil {
		if err := formatter.Error(strconv.Itoa(resp.Error.Code), resp.Error.Kind+": "+resp.Error.Details, nil); err != nil {
			return err
		}
		return WrapExitError(ExitFailure, "command failed", resp.Error)
	}

	if opts.Format == "json" {
		return formatter.Success(CallResult{Kind: resp.Kind, Value: resp.Value})
	}
	return printValue(cmd, resp.Kind, resp.Value)
}

// printValue renders a reply value for humans.
func printValue(cmd *cobra.Command, kind string, raw json.RawMessage) error {
	if kind != "rows" {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode %s value: %w", kind, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	}

	var rows []ledger.LedgerEntry
	if err := json.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	printRows(cmd, rows)
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
