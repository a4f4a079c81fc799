package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/ledgerd/internal/ledger"
	"github.com/roach88/ledgerd/internal/querysql"
)

// ErrIDOverflow is returned when a store id or count does not fit the
// 32-bit integers the wire format carries.
var ErrIDOverflow = errors.New("value exceeds uint32 range")

// RowID narrows a store id or count to uint32, failing instead of
// truncating.
func RowID(n int64) (uint32, error) {
	if n < 0 || n > math.MaxUint32 {
		return 0, fmt.Errorf("%d: %w", n, ErrIDOverflow)
	}
	return uint32(n), nil
}

// Tx is one open transaction on the store connection. It is only valid
// inside the function passed to WithTx.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back on error or panic; a panic is re-raised after
// the rollback.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Query runs a compiled ledger query and serializes the rows.
func (t *Tx) Query(ctx context.Context, stmt querysql.Statement) ([]ledger.LedgerEntry, error) {
	rows, err := t.tx.QueryContext(ctx, stmt.SQL, stmt.Params...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	return SerializeRows(rows)
}

// Exec runs a compiled insert or update and returns rows affected and the
// last inserted id.
func (t *Tx) Exec(ctx context.Context, stmt querysql.Statement) (affected int64, lastID int64, err error) {
	result, err := t.tx.ExecContext(ctx, stmt.SQL, stmt.Params...)
	if err != nil {
		return 0, 0, fmt.Errorf("exec %s: %w", stmt.Shape, err)
	}

	affected, err = result.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("exec %s: rows affected: %w", stmt.Shape, err)
	}

	if stmt.Shape == querysql.ShapeInsert {
		lastID, err = result.LastInsertId()
		if err != nil {
			return 0, 0, fmt.Errorf("exec %s: last insert id: %w", stmt.Shape, err)
		}
	}

	return affected, lastID, nil
}

// InsertEntry writes one ledger row and returns its store-assigned id.
func (t *Tx) InsertEntry(ctx context.Context, e ledger.LedgerEntry) (uint32, error) {
	_, id, err := t.Exec(ctx, querysql.InsertEntry(e))
	if err != nil {
		return 0, err
	}
	return RowID(id)
}

// SetReceipt fills the receipt columns of a row once its id is known.
func (t *Tx) SetReceipt(ctx context.Context, id uint32, receiptHash string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE ledger SET receipt_id = ?, receipt_hash = ? WHERE id = ?
	`, int64(id), receiptHash, int64(id))
	if err != nil {
		return fmt.Errorf("set receipt: %w", err)
	}
	return nil
}

// LastLedgerHash returns the ledger_hash of the newest row, or "" for an
// empty ledger.
func (t *Tx) LastLedgerHash(ctx context.Context) (string, error) {
	var hash sql.NullString
	err := t.tx.QueryRowContext(ctx, `
		SELECT ledger_hash FROM ledger ORDER BY id DESC LIMIT 1
	`).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last ledger hash: %w", err)
	}
	return hash.String, nil
}

// RowsForUser is RowsByUser inside an open transaction.
func (t *Tx) RowsForUser(ctx context.Context, user string) ([]ledger.LedgerEntry, error) {
	return t.Query(ctx, querysql.Statement{
		Shape:  querysql.ShapeQuery,
		SQL:    querysql.RowsByUserQuery,
		Params: []any{user, user},
	})
}
