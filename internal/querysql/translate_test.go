package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerd/internal/ledger"
)

func TestColumn_AllSelectors(t *testing.T) {
	tests := []struct {
		sel     ledger.Selector
		wantCol string
		wantVal any
	}{
		{ledger.ByID(4), "id", int64(4)},
		{ledger.ByTransactionType("send"), "type", "send"},
		{ledger.ByTimestamp("2019-06-01T00:00:00Z"), "timestamp", "2019-06-01T00:00:00Z"},
		{ledger.BySource("Bob"), "source", "Bob"},
		{ledger.ByDestination("Alice"), "destination", "Alice"},
		{ledger.ByAmount(12.5), "amount", 12.5},
		{ledger.ByLedgerHash("abc"), "ledger_hash", "abc"},
		{ledger.ByReceiptID(7), "receipt_id", int64(7)},
		{ledger.ByReceiptHash("def"), "receipt_hash", "def"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCol, func(t *testing.T) {
			col, val, err := Column(tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCol, col)
			assert.Equal(t, tt.wantVal, val)
		})
	}
}

func TestColumn_NilSelector(t *testing.T) {
	_, _, err := Column(nil)
	assert.Error(t, err)
}

func TestWhere_NeverInterpolates(t *testing.T) {
	hostile := "a'; DROP TABLE ledger;--"

	sql, params, err := Where(ledger.BySource(hostile))
	require.NoError(t, err)

	assert.Equal(t, "source = ?", sql)
	assert.NotContains(t, sql, "DROP")
	assert.Equal(t, []any{hostile}, params)
}

func TestShapeOf(t *testing.T) {
	tests := []struct {
		kind ledger.Kind
		want Shape
	}{
		{ledger.KindQuery, ShapeQuery},
		{ledger.KindBulkQuery, ShapeQuery},
		{ledger.KindSingleQuery, ShapeQuery},
		{ledger.KindBulkInsert, ShapeInsert},
		{ledger.KindSingleInsert, ShapeInsert},
		{ledger.KindBulkUpdate, ShapeUpdate},
		{ledger.KindSingleUpdate, ShapeUpdate},
		{ledger.KindRegister, ShapeNone},
		{ledger.KindDisconnect, ShapeNone},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ShapeOf(tt.kind))
		})
	}
}

func TestCompile_BulkQuery(t *testing.T) {
	cmd := ledger.NewCommand(ledger.KindBulkQuery, ledger.ByDestination("Nobody"), ledger.NewConduit())

	stmts, err := Compile(cmd)
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	stmt := stmts[0]
	assert.Equal(t, ShapeQuery, stmt.Shape)
	assert.Equal(t,
		"SELECT id, type, timestamp, source, destination, amount, ledger_hash, receipt_id, receipt_hash FROM ledger WHERE destination = ? ORDER BY id ASC",
		stmt.SQL)
	assert.Equal(t, []any{"Nobody"}, stmt.Params)
}

func TestCompile_SingleQueryLimits(t *testing.T) {
	cmd := ledger.NewCommand(ledger.KindSingleQuery, ledger.ByAmount(1.5), ledger.NewConduit())

	stmts, err := Compile(cmd)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0].SQL, "WHERE amount = ?")
	assert.Contains(t, stmts[0].SQL, "LIMIT 1")
}

func TestCompile_QueryWithoutSelector(t *testing.T) {
	cmd := ledger.NewCommand(ledger.KindQuery, nil, ledger.NewConduit())

	_, err := Compile(cmd)
	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))
}

func TestCompile_Inserts(t *testing.T) {
	entries := []ledger.LedgerEntry{
		{TransactionType: "send", Source: "Bob", Destination: "Alice", Amount: 12.5, ReceiptID: 9},
		{TransactionType: "send", Source: "Alice", Destination: "Bob", Amount: -3},
	}
	cmd := ledger.NewCommand(ledger.KindBulkInsert, nil, ledger.NewConduit(), ledger.WithEntries(entries...))

	stmts, err := Compile(cmd)
	require.NoError(t, err)
	require.Len(t, stmts, 2)

	assert.Equal(t, ShapeInsert, stmts[0].Shape)
	assert.Equal(t,
		"INSERT INTO ledger (type, timestamp, source, destination, amount, ledger_hash, receipt_id, receipt_hash) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		stmts[0].SQL)
	assert.Equal(t, []any{"send", "", "Bob", "Alice", 12.5, "", int64(9), ""}, stmts[0].Params)
	assert.Equal(t, -3.0, stmts[1].Params[4])
}

func TestCompile_InsertArity(t *testing.T) {
	none := ledger.NewCommand(ledger.KindBulkInsert, nil, ledger.NewConduit())
	_, err := Compile(none)
	assert.True(t, ledger.IsValidation(err))

	two := ledger.NewCommand(ledger.KindSingleInsert, nil, ledger.NewConduit(),
		ledger.WithEntries(ledger.LedgerEntry{}, ledger.LedgerEntry{}))
	_, err = Compile(two)
	assert.True(t, ledger.IsValidation(err))
}

func TestCompile_BulkUpdate(t *testing.T) {
	cmd := ledger.NewCommand(ledger.KindBulkUpdate, ledger.BySource("Bob"), ledger.NewConduit(),
		ledger.WithSet(ledger.ByTransactionType("contested")))

	stmts, err := Compile(cmd)
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	assert.Equal(t, ShapeUpdate, stmts[0].Shape)
	assert.Equal(t, "UPDATE ledger SET type = ? WHERE source = ?", stmts[0].SQL)
	assert.Equal(t, []any{"contested", "Bob"}, stmts[0].Params)
}

func TestCompile_SingleUpdateTargetsOneRow(t *testing.T) {
	cmd := ledger.NewCommand(ledger.KindSingleUpdate, ledger.BySource("Bob"), ledger.NewConduit(),
		ledger.WithSet(ledger.ByAmount(2)))

	stmts, err := Compile(cmd)
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE ledger SET amount = ? WHERE id = (SELECT id FROM ledger WHERE source = ? ORDER BY id ASC LIMIT 1)",
		stmts[0].SQL)
	assert.Equal(t, []any{2.0, "Bob"}, stmts[0].Params)
}

func TestCompile_UpdateRejections(t *testing.T) {
	tests := []struct {
		name string
		cmd  *ledger.Command
	}{
		{
			name: "missing set",
			cmd:  ledger.NewCommand(ledger.KindBulkUpdate, ledger.BySource("Bob"), ledger.NewConduit()),
		},
		{
			name: "assign id",
			cmd: ledger.NewCommand(ledger.KindBulkUpdate, ledger.BySource("Bob"), ledger.NewConduit(),
				ledger.WithSet(ledger.ByID(1))),
		},
		{
			name: "missing where",
			cmd: ledger.NewCommand(ledger.KindSingleUpdate, nil, ledger.NewConduit(),
				ledger.WithSet(ledger.BySource("x"))),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.cmd)
			require.Error(t, err)
			assert.True(t, ledger.IsValidation(err))
		})
	}
}

func TestCompile_AccountKindHasNoShape(t *testing.T) {
	cmd := ledger.NewCommand(ledger.KindRegister, nil, ledger.NewConduit(), ledger.WithArgs("alice", "pw"))

	_, err := Compile(cmd)
	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))
}

func TestRowsByUserQuery(t *testing.T) {
	assert.Contains(t, RowsByUserQuery, "(destination = ? OR source = ?)")
	assert.Contains(t, RowsByUserQuery, "ORDER BY id ASC")
}
