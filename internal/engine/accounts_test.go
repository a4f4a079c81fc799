package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerd/internal/ledger"
	"github.com/roach88/ledgerd/internal/store"
)

func register(t *testing.T, w *Worker, name, password string) uint32 {
	t.Helper()
	reply := do(t, w, ledger.KindRegister, nil, ledger.WithArgs(name, password))
	id, ok := reply.(ledger.IntReply)
	require.True(t, ok, "register %s: %#v", name, reply)
	return uint32(id)
}

func balance(t *testing.T, w *Worker, name string) float64 {
	t.Helper()
	reply := do(t, w, ledger.KindBalance, nil, ledger.WithArgs(name))
	f, ok := reply.(ledger.FloatReply)
	require.True(t, ok, "balance %s: %#v", name, reply)
	return float64(f)
}

func TestRegister(t *testing.T) {
	w, s := startWorker(t, WithInitialBalance(decimal.NewFromInt(50)))

	assert.Equal(t, uint32(1), register(t, w, "alice", "pw"))
	assert.Equal(t, uint32(2), register(t, w, "bob", "pw"))
	assert.Equal(t, 50.0, balance(t, w, "alice"))

	err := s.WithTx(context.Background(), func(tx *store.Tx) error {
		u, err := tx.UserByName(context.Background(), "alice")
		require.NoError(t, err)
		assert.NotEqual(t, "pw", u.PasswordHash, "password must be hashed")
		assert.Equal(t, "2019-06-01T00:00:00Z", u.Created)
		return nil
	})
	require.NoError(t, err)
}

func TestRegister_Duplicate(t *testing.T) {
	w, _ := startWorker(t)
	register(t, w, "alice", "pw")

	reply := do(t, w, ledger.KindRegister, nil, ledger.WithArgs("alice", "other"))
	requireError(t, reply, ledger.ErrCodeValidation)
}

func TestRegister_NormalizesName(t *testing.T) {
	w, _ := startWorker(t)

	// "é" precomposed vs. "e" + combining acute
	register(t, w, "caf\u00e9", "pw")
	reply := do(t, w, ledger.KindRegister, nil, ledger.WithArgs("cafe\u0301", "pw"))
	requireError(t, reply, ledger.ErrCodeValidation)
}

func TestRegister_WrongArity(t *testing.T) {
	w, _ := startWorker(t)

	reply := do(t, w, ledger.KindRegister, nil, ledger.WithArgs("alice"))
	ce := requireError(t, reply, ledger.ErrCodeValidation)
	assert.Contains(t, ce.Message, "expected 2 args, got 1")
}

func TestWhoami(t *testing.T) {
	w, _ := startWorker(t)
	register(t, w, "alice", "secret")

	reply := do(t, w, ledger.KindWhoami, nil, ledger.WithArgs("alice", "secret"))
	assert.Equal(t, ledger.TextReply("alice"), reply)

	reply = do(t, w, ledger.KindWhoami, nil, ledger.WithArgs("alice", "wrong"))
	requireError(t, reply, ledger.ErrCodeValidation)

	reply = do(t, w, ledger.KindWhoami, nil, ledger.WithArgs("mallory", "secret"))
	requireError(t, reply, ledger.ErrCodeValidation)
}

func TestRename(t *testing.T) {
	w, _ := startWorker(t)
	register(t, w, "alice", "pw")
	register(t, w, "bob", "pw")

	reply := do(t, w, ledger.KindRename, nil, ledger.WithArgs("alice", "alicia"))
	assert.Equal(t, ledger.IntReply(1), reply)
	assert.Equal(t, 100.0, balance(t, w, "alicia"))

	reply = do(t, w, ledger.KindRename, nil, ledger.WithArgs("alicia", "bob"))
	requireError(t, reply, ledger.ErrCodeValidation)

	reply = do(t, w, ledger.KindRename, nil, ledger.WithArgs("ghost", "spirit"))
	requireError(t, reply, ledger.ErrCodeValidation)
}

func TestBalance_UnknownUser(t *testing.T) {
	w, _ := startWorker(t)

	reply := do(t, w, ledger.KindBalance, nil, ledger.WithArgs("nobody"))
	requireError(t, reply, ledger.ErrCodeValidation)
}

func TestSend(t *testing.T) {
	w, _ := startWorker(t)
	register(t, w, "alice", "pw")
	register(t, w, "bob", "pw")

	reply := do(t, w, ledger.KindSend, nil, ledger.WithArgs("bob", "alice", "12.5"))
	assert.Equal(t, ledger.IntReply(1), reply)

	assert.Equal(t, 87.5, balance(t, w, "bob"))
	assert.Equal(t, 112.5, balance(t, w, "alice"))

	rows := do(t, w, ledger.KindQuery, ledger.ByID(1)).(ledger.RowsReply)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, TransactionSend, row.TransactionType)
	assert.Equal(t, "bob", row.Source)
	assert.Equal(t, "alice", row.Destination)
	assert.Equal(t, 12.5, row.Amount)
	assert.Len(t, row.LedgerHash, 64)
	assert.Equal(t, uint32(1), row.ReceiptID)
	assert.Equal(t, receiptHash(1, row.LedgerHash), row.ReceiptHash)
}

func TestSend_HashChain(t *testing.T) {
	w, _ := startWorker(t)
	register(t, w, "alice", "pw")
	register(t, w, "bob", "pw")

	do(t, w, ledger.KindSend, nil, ledger.WithArgs("bob", "alice", "1"))
	do(t, w, ledger.KindSend, nil, ledger.WithArgs("alice", "bob", "2"))

	rows := do(t, w, ledger.KindAudit, nil, ledger.WithArgs("bob")).(ledger.RowsReply)
	require.Len(t, rows, 2)

	first, second := rows[0], rows[1]
	assert.Equal(t, chainHash("", ledger.LedgerEntry{
		TransactionType: first.TransactionType,
		Timestamp:       first.Timestamp,
		Source:          first.Source,
		Destination:     first.Destination,
		Amount:          first.Amount,
	}), first.LedgerHash)
	assert.Equal(t, chainHash(first.LedgerHash, ledger.LedgerEntry{
		TransactionType: second.TransactionType,
		Timestamp:       second.Timestamp,
		Source:          second.Source,
		Destination:     second.Destination,
		Amount:          second.Amount,
	}), second.LedgerHash)
}

func TestSend_Rejections(t *testing.T) {
	w, _ := startWorker(t)
	register(t, w, "alice", "pw")
	register(t, w, "bob", "pw")

	tests := []struct {
		name string
		args []string
	}{
		{"not a number", []string{"bob", "alice", "lots"}},
		{"zero", []string{"bob", "alice", "0"}},
		{"negative", []string{"bob", "alice", "-5"}},
		{"self", []string{"bob", "bob", "1"}},
		{"unknown source", []string{"mallory", "alice", "1"}},
		{"unknown destination", []string{"bob", "mallory", "1"}},
		{"insufficient funds", []string{"bob", "alice", "100.01"}},
		{"arity", []string{"bob", "alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := do(t, w, ledger.KindSend, nil, ledger.WithArgs(tt.args...))
			requireError(t, reply, ledger.ErrCodeValidation)
		})
	}

	// Nothing moved, nothing written
	assert.Equal(t, 100.0, balance(t, w, "bob"))
	assert.Equal(t, 100.0, balance(t, w, "alice"))
	assert.Equal(t, ledger.RowsReply{}, do(t, w, ledger.KindQuery, ledger.ByTransactionType(TransactionSend)))
}

func TestSend_DecimalArithmetic(t *testing.T) {
	w, _ := startWorker(t)
	register(t, w, "alice", "pw")
	register(t, w, "bob", "pw")

	for i := 0; i < 3; i++ {
		do(t, w, ledger.KindSend, nil, ledger.WithArgs("bob", "alice", "0.1"))
	}

	assert.Equal(t, 99.7, balance(t, w, "bob"))
	assert.Equal(t, 100.3, balance(t, w, "alice"))
}

func TestAudit_MatchesStoreRowsByUser(t *testing.T) {
	w, s := startWorker(t)
	seedEntries(t, w,
		bobToAlice(1),
		ledger.LedgerEntry{TransactionType: "send", Source: "Carol", Destination: "Dave", Amount: 2},
		ledger.LedgerEntry{TransactionType: "send", Source: "Alice", Destination: "Carol", Amount: 3},
	)

	reply := do(t, w, ledger.KindAudit, nil, ledger.WithArgs("Alice"))
	rows := reply.(ledger.RowsReply)
	require.Len(t, rows, 2)
	assert.Equal(t, uint32(1), rows[0].ID)
	assert.Equal(t, uint32(3), rows[1].ID)

	direct, err := s.RowsByUser(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, []ledger.LedgerEntry(rows), direct)
}
