package store

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerd/internal/ledger"
	"github.com/roach88/ledgerd/internal/querysql"
)

func countLedger(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM ledger").Scan(&n))
	return n
}

func TestWithTx_Commits(t *testing.T) {
	s := createTestStore(t)

	ids := insertEntries(t, s, createTestEntry("Bob", "Alice", 1), createTestEntry("Bob", "Carol", 2))

	assert.Equal(t, []uint32{1, 2}, ids, "ids are store-assigned and monotonic")
	assert.Equal(t, 2, countLedger(t, s))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.InsertEntry(ctx, createTestEntry("Bob", "Alice", 1)); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countLedger(t, s))
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(tx *Tx) error {
			if _, err := tx.InsertEntry(ctx, createTestEntry("Bob", "Alice", 1)); err != nil {
				return err
			}
			panic("handler bug")
		})
	})

	assert.Equal(t, 0, countLedger(t, s))

	// The connection is usable afterwards.
	insertEntries(t, s, createTestEntry("Bob", "Alice", 1))
	assert.Equal(t, 1, countLedger(t, s))
}

func TestTx_QueryAndUpdate(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertEntries(t, s,
		createTestEntry("Bob", "Alice", 1),
		createTestEntry("Bob", "Carol", 2),
		createTestEntry("Dave", "Carol", 3),
	)

	update := ledger.NewCommand(ledger.KindBulkUpdate, ledger.BySource("Bob"), ledger.NewConduit(),
		ledger.WithSet(ledger.ByTransactionType("contested")))
	stmts, err := querysql.Compile(update)
	require.NoError(t, err)

	var affected int64
	err = s.WithTx(ctx, func(tx *Tx) error {
		n, _, err := tx.Exec(ctx, stmts[0])
		affected = n
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	query := ledger.NewCommand(ledger.KindBulkQuery, ledger.ByTransactionType("contested"), ledger.NewConduit())
	stmts, err = querysql.Compile(query)
	require.NoError(t, err)

	var got []ledger.LedgerEntry
	err = s.WithTx(ctx, func(tx *Tx) error {
		got, err = tx.Query(ctx, stmts[0])
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got[0].Destination)
	assert.Equal(t, "Carol", got[1].Destination)
}

func TestTx_LastLedgerHashAndReceipt(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		hash, err := tx.LastLedgerHash(ctx)
		require.NoError(t, err)
		assert.Equal(t, "", hash, "empty ledger has no previous hash")

		id, err := tx.InsertEntry(ctx, createTestEntry("Bob", "Alice", 1))
		require.NoError(t, err)
		require.NoError(t, tx.SetReceipt(ctx, id, "receipt-1"))

		hash, err = tx.LastLedgerHash(ctx)
		require.NoError(t, err)
		assert.Equal(t, "hash-Bob-Alice", hash)
		return nil
	})
	require.NoError(t, err)

	rows, err := s.RowsByUser(ctx, "Bob")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rows[0].ID, rows[0].ReceiptID)
	assert.Equal(t, "receipt-1", rows[0].ReceiptHash)
}

func TestTx_Users(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		id, err := tx.InsertUser(ctx, ledger.UserAccount{
			Name: "alice", PasswordHash: "h", Balance: 10, Created: "2019-06-01T00:00:00Z",
		})
		require.NoError(t, err)
		assert.Equal(t, uint32(1), id)

		_, err = tx.InsertUser(ctx, ledger.UserAccount{Name: "alice", PasswordHash: "h", Created: "x"})
		assert.ErrorIs(t, err, ErrUserExists)

		_, err = tx.UserByName(ctx, "nobody")
		assert.ErrorIs(t, err, ErrUserNotFound)

		require.NoError(t, tx.SetBalance(ctx, id, 7.25))
		require.NoError(t, tx.TouchLogin(ctx, id, "2019-06-02T00:00:00Z"))

		u, err := tx.UserByName(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 7.25, u.Balance)
		assert.Equal(t, "2019-06-02T00:00:00Z", u.LastLogin)

		n, err := tx.RenameUser(ctx, "alice", "alicia")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = tx.RenameUser(ctx, "ghost", "spirit")
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
		return nil
	})
	require.NoError(t, err)
}

func TestTx_RenameCollision(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		for _, name := range []string{"alice", "bob"} {
			if _, err := tx.InsertUser(ctx, ledger.UserAccount{Name: name, PasswordHash: "h", Created: "x"}); err != nil {
				return err
			}
		}
		_, err := tx.RenameUser(ctx, "alice", "bob")
		return err
	})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRowID(t *testing.T) {
	tests := []struct {
		name    string
		in      int64
		want    uint32
		wantErr bool
	}{
		{"zero", 0, 0, false},
		{"max", math.MaxUint32, math.MaxUint32, false},
		{"overflow", math.MaxUint32 + 1, 0, true},
		{"negative", -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RowID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrIDOverflow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInsertEntry_IDBeyondUint32Fails(t *testing.T) {
	s := createTestStore(t)
	_, err := s.db.Exec("INSERT INTO ledger (id, type) VALUES (?, 'seed')", int64(math.MaxUint32))
	require.NoError(t, err)

	err = s.WithTx(context.Background(), func(tx *Tx) error {
		_, err := tx.InsertEntry(context.Background(), createTestEntry("Bob", "Alice", 1))
		return err
	})
	assert.ErrorIs(t, err, ErrIDOverflow)
}
