package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/ledgerd/internal/ledger"
)

// Shape is the statement family a Kind compiles to.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeQuery
	ShapeInsert
	ShapeUpdate
)

func (s Shape) String() string {
	switch s {
	case ShapeQuery:
		return "query"
	case ShapeInsert:
		return "insert"
	case ShapeUpdate:
		return "update"
	default:
		return "none"
	}
}

// LedgerColumns is the fixed column order of the ledger table. Row
// serialization depends on it.
var LedgerColumns = []string{
	"id", "type", "timestamp", "source", "destination",
	"amount", "ledger_hash", "receipt_id", "receipt_hash",
}

var selectLedger = "SELECT " + strings.Join(LedgerColumns, ", ") + " FROM ledger"

// RowsByUserQuery selects every row a user sent or received.
// Bind the user name twice.
var RowsByUserQuery = selectLedger + " WHERE (destination = ? OR source = ?) ORDER BY id ASC"

// Statement is a compiled, parameterized SQL statement.
type Statement struct {
	Shape  Shape
	SQL    string
	Params []any
}

// ShapeOf returns the statement family for kind. Account kinds have no
// generic shape and return ShapeNone.
func ShapeOf(kind ledger.Kind) Shape {
	switch kind {
	case ledger.KindQuery, ledger.KindBulkQuery, ledger.KindSingleQuery:
		return ShapeQuery
	case ledger.KindBulkInsert, ledger.KindSingleInsert:
		return ShapeInsert
	case ledger.KindBulkUpdate, ledger.KindSingleUpdate:
		return ShapeUpdate
	default:
		return ShapeNone
	}
}

// Column maps a selector to its ledger column and a bound value of the
// matching type.
func Column(sel ledger.Selector) (string, any, error) {
	switch s := sel.(type) {
	case ledger.ByID:
		return "id", int64(s), nil
	case ledger.ByTransactionType:
		return "type", string(s), nil
	case ledger.ByTimestamp:
		return "timestamp", string(s), nil
	case ledger.BySource:
		return "source", string(s), nil
	case ledger.ByDestination:
		return "destination", string(s), nil
	case ledger.ByAmount:
		return "amount", float64(s), nil
	case ledger.ByLedgerHash:
		return "ledger_hash", string(s), nil
	case ledger.ByReceiptID:
		return "receipt_id", int64(s), nil
	case ledger.ByReceiptHash:
		return "receipt_hash", string(s), nil
	case nil:
		return "", nil, fmt.Errorf("missing selector")
	default:
		return "", nil, fmt.Errorf("unsupported selector type: %T", sel)
	}
}

// Where compiles a selector to a "column = ?" fragment.
// CRITICAL: the value is never interpolated, it is always the single param.
func Where(sel ledger.Selector) (string, []any, error) {
	col, val, err := Column(sel)
	if err != nil {
		return "", nil, err
	}
	return col + " = ?", []any{val}, nil
}

// Compile turns a command into the statements the worker executes inside
// one transaction. Query and update kinds produce exactly one statement;
// insert kinds produce one per entry.
func Compile(cmd *ledger.Command) ([]Statement, error) {
	kind := cmd.Kind()
	switch ShapeOf(kind) {
	case ShapeQuery:
		stmt, err := compileSelect(kind, cmd.Selector())
		if err != nil {
			return nil, err
		}
		return []Statement{stmt}, nil
	case ShapeInsert:
		return compileInserts(kind, cmd.Entries())
	case ShapeUpdate:
		stmt, err := compileUpdate(kind, cmd.Set(), cmd.Selector())
		if err != nil {
			return nil, err
		}
		return []Statement{stmt}, nil
	default:
		return nil, ledger.NewValidationError(kind, "kind has no ledger statement shape")
	}
}

// compileSelect builds the read path. Rows come back in id order so audits
// are stable.
func compileSelect(kind ledger.Kind, sel ledger.Selector) (Statement, error) {
	where, params, err := Where(sel)
	if err != nil {
		return Statement{}, ledger.NewValidationError(kind, "%v", err)
	}

	sql := selectLedger + " WHERE " + where + " ORDER BY id ASC"
	if kind == ledger.KindSingleQuery {
		sql += " LIMIT 1"
	}

	return Statement{Shape: ShapeQuery, SQL: sql, Params: params}, nil
}

// InsertEntry builds the INSERT for one entry. The id column is left to
// the store.
func InsertEntry(e ledger.LedgerEntry) Statement {
	cols := LedgerColumns[1:]
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return Statement{
		Shape: ShapeInsert,
		SQL:   fmt.Sprintf("INSERT INTO ledger (%s) VALUES (%s)", strings.Join(cols, ", "), placeholders),
		Params: []any{
			e.TransactionType,
			e.Timestamp,
			e.Source,
			e.Destination,
			e.Amount,
			e.LedgerHash,
			int64(e.ReceiptID),
			e.ReceiptHash,
		},
	}
}

func compileInserts(kind ledger.Kind, entries []ledger.LedgerEntry) ([]Statement, error) {
	switch {
	case len(entries) == 0:
		return nil, ledger.NewValidationError(kind, "no entries to insert")
	case kind == ledger.KindSingleInsert && len(entries) != 1:
		return nil, ledger.NewValidationError(kind, "expected 1 entry, got %d", len(entries))
	}

	stmts := make([]Statement, 0, len(entries))
	for _, e := range entries {
		stmts = append(stmts, InsertEntry(e))
	}
	return stmts, nil
}

// compileUpdate builds "UPDATE ledger SET col = ? WHERE pred". A single
// update touches only the lowest matching id.
func compileUpdate(kind ledger.Kind, set, where ledger.Selector) (Statement, error) {
	if set == nil {
		return Statement{}, ledger.NewValidationError(kind, "missing column assignment")
	}
	setCol, setVal, err := Column(set)
	if err != nil {
		return Statement{}, ledger.NewValidationError(kind, "%v", err)
	}
	if setCol == "id" {
		return Statement{}, ledger.NewValidationError(kind, "id is assigned by the store")
	}

	pred, predParams, err := Where(where)
	if err != nil {
		return Statement{}, ledger.NewValidationError(kind, "%v", err)
	}

	var sql string
	if kind == ledger.KindSingleUpdate {
		sql = fmt.Sprintf("UPDATE ledger SET %s = ? WHERE id = (SELECT id FROM ledger WHERE %s ORDER BY id ASC LIMIT 1)", setCol, pred)
	} else {
		sql = fmt.Sprintf("UPDATE ledger SET %s = ? WHERE %s", setCol, pred)
	}

	params := append([]any{setVal}, predParams...)
	return Statement{Shape: ShapeUpdate, SQL: sql, Params: params}, nil
}
