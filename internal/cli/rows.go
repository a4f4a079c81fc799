package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerd/internal/ledger"
)

// printRows writes ledger rows one per line in id order.
func printRows(cmd *cobra.Command, rows []ledger.LedgerEntry) {
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No rows.")
		return
	}

	fmt.Fprintf(out, "%-6s %-10s %-20s %-12s %-12s %12s  %s\n",
		"ID", "TYPE", "TIMESTAMP", "SOURCE", "DESTINATION", "AMOUNT", "RECEIPT")
	for _, r := range rows {
		fmt.Fprintf(out, "%-6d %-10s %-20s %-12s %-12s %12s  %s\n",
			r.ID, r.TransactionType, r.Timestamp, r.Source, r.Destination,
			formatAmount(r.Amount), r.ReceiptHash)
	}
	fmt.Fprintf(out, "%d row(s)\n", len(rows))
}

func formatAmount(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
