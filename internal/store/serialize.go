package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/ledgerd/internal/ledger"
	"github.com/roach88/ledgerd/internal/querysql"
)

// SerializeRows turns a ledger result set into records, preserving result
// order. The rows must carry the nine ledger columns in querysql.LedgerColumns
// order. The first row that fails to scan fails the whole call with a
// SerializationError naming its index; no partial result is returned.
//
// Returns an empty slice (not nil) when there are no rows. The caller
// closes rows.
func SerializeRows(rows *sql.Rows) ([]ledger.LedgerEntry, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	if len(cols) != len(querysql.LedgerColumns) {
		return nil, &ledger.SerializationError{
			Row: 0,
			Err: fmt.Errorf("expected %d columns, got %d", len(querysql.LedgerColumns), len(cols)),
		}
	}

	entries := []ledger.LedgerEntry{}
	for i := 0; rows.Next(); i++ {
		var e ledger.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.TransactionType, &e.Timestamp, &e.Source, &e.Destination,
			&e.Amount, &e.LedgerHash, &e.ReceiptID, &e.ReceiptHash,
		); err != nil {
			return nil, &ledger.SerializationError{Row: i, Err: err}
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}

	return entries, nil
}
