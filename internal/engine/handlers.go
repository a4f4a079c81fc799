package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/roach88/ledgerd/internal/ledger"
	"github.com/roach88/ledgerd/internal/querysql"
	"github.com/roach88/ledgerd/internal/store"
)

// dispatch routes cmd to its handler. It runs inside the command's
// transaction; returning an error rolls it back.
func (w *Worker) dispatch(ctx context.Context, tx *store.Tx, cmd *ledger.Command, log zerolog.Logger) (ledger.Reply, error) {
	switch querysql.ShapeOf(cmd.Kind()) {
	case querysql.ShapeQuery:
		return w.handleQuery(ctx, tx, cmd)
	case querysql.ShapeInsert:
		return w.handleInsert(ctx, tx, cmd)
	case querysql.ShapeUpdate:
		return w.handleUpdate(ctx, tx, cmd, log)
	}

	switch cmd.Kind() {
	case ledger.KindRegister:
		return w.handleRegister(ctx, tx, cmd)
	case ledger.KindWhoami:
		return w.handleWhoami(ctx, tx, cmd)
	case ledger.KindRename:
		return w.handleRename(ctx, tx, cmd, log)
	case ledger.KindBalance:
		return w.handleBalance(ctx, tx, cmd)
	case ledger.KindSend:
		return w.handleSend(ctx, tx, cmd, log)
	case ledger.KindAudit:
		return w.handleAudit(ctx, tx, cmd)
	default:
		log.Warn().Strs("args", cmd.Args()).Msg("kind has no handler")
		return nil, &ledger.CommandError{
			Code:    ledger.ErrCodeValidation,
			Kind:    cmd.Kind(),
			Message: "kind is routed but has no handler",
			Err:     ledger.ErrNotImplemented,
		}
	}
}

func (w *Worker) handleQuery(ctx context.Context, tx *store.Tx, cmd *ledger.Command) (ledger.Reply, error) {
	stmts, err := querysql.Compile(cmd)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, stmts[0])
	if err != nil {
		return nil, err
	}
	return ledger.RowsReply(rows), nil
}

// handleInsert replies with the new id for SingleInsert and the number of
// rows written for BulkInsert.
func (w *Worker) handleInsert(ctx context.Context, tx *store.Tx, cmd *ledger.Command) (ledger.Reply, error) {
	stmts, err := querysql.Compile(cmd)
	if err != nil {
		return nil, err
	}

	var lastID int64
	for _, stmt := range stmts {
		_, id, err := tx.Exec(ctx, stmt)
		if err != nil {
			return nil, err
		}
		lastID = id
	}

	if cmd.Kind() == ledger.KindSingleInsert {
		return intReply(lastID)
	}
	return intReply(int64(len(stmts)))
}

// handleUpdate rewrites existing ledger rows. Every update is logged at
// info level since it alters history.
func (w *Worker) handleUpdate(ctx context.Context, tx *store.Tx, cmd *ledger.Command, log zerolog.Logger) (ledger.Reply, error) {
	stmts, err := querysql.Compile(cmd)
	if err != nil {
		return nil, err
	}

	affected, _, err := tx.Exec(ctx, stmts[0])
	if err != nil {
		return nil, err
	}

	setCol, _, _ := querysql.Column(cmd.Set())
	whereCol, _, _ := querysql.Column(cmd.Selector())
	log.Info().
		Str("set", setCol).
		Str("where", whereCol).
		Int64("affected", affected).
		Msg("audited ledger update")

	return intReply(affected)
}

// intReply narrows a store count or id for the wire. An out-of-range value
// fails the command, which rolls the transaction back.
func intReply(n int64) (ledger.Reply, error) {
	v, err := store.RowID(n)
	if err != nil {
		return nil, err
	}
	return ledger.IntReply(v), nil
}

func (w *Worker) handleAudit(ctx context.Context, tx *store.Tx, cmd *ledger.Command) (ledger.Reply, error) {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return nil, err
	}

	rows, err := tx.RowsForUser(ctx, args[0])
	if err != nil {
		return nil, err
	}
	return ledger.RowsReply(rows), nil
}

// requireArgs returns the command's args if there are exactly n of them.
func requireArgs(cmd *ledger.Command, n int) ([]string, error) {
	args := cmd.Args()
	if len(args) != n {
		return nil, ledger.NewValidationError(cmd.Kind(), "expected %d args, got %d", n, len(args))
	}
	return args, nil
}
