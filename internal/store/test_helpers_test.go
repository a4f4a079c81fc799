package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerd/internal/ledger"
)

// createTestStore creates a new unkeyed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntry creates a ledger entry with every column set.
func createTestEntry(source, destination string, amount float64) ledger.LedgerEntry {
	return ledger.LedgerEntry{
		TransactionType: "send",
		Timestamp:       "2019-06-01T12:00:00Z",
		Source:          source,
		Destination:     destination,
		Amount:          amount,
		LedgerHash:      "hash-" + source + "-" + destination,
		ReceiptID:       0,
		ReceiptHash:     "receipt-" + source,
	}
}

// insertEntries writes entries in one transaction and returns their ids.
func insertEntries(t *testing.T, s *Store, entries ...ledger.LedgerEntry) []uint32 {
	t.Helper()
	var ids []uint32
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		for _, e := range entries {
			id, err := tx.InsertEntry(context.Background(), e)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	require.NoError(t, err)
	return ids
}
