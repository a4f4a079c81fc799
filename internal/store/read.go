package store

import (
	"context"
	"fmt"

	"github.com/roach88/ledgerd/internal/ledger"
	"github.com/roach88/ledgerd/internal/querysql"
)

// RowsByUser returns every ledger row the user sent or received, in id
// order. It bypasses the command queue and is meant for trusted in-process
// callers only; it still shares the store's single connection.
//
// Returns an empty slice (not nil) if the user has no rows.
func (s *Store) RowsByUser(ctx context.Context, user string) ([]ledger.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, querysql.RowsByUserQuery, user, user)
	if err != nil {
		return nil, fmt.Errorf("query rows by user: %w", err)
	}
	defer rows.Close()

	return SerializeRows(rows)
}
