package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/ledgerd/internal/ledger"
	"github.com/roach88/ledgerd/internal/store"
)

// TransactionSend is the ledger type written for a funds transfer.
const TransactionSend = "send"

// accountName normalizes a user name to NFC so visually equal names
// collide on the UNIQUE constraint.
func accountName(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

func (w *Worker) handleRegister(ctx context.Context, tx *store.Tx, cmd *ledger.Command) (ledger.Reply, error) {
	args, err := requireArgs(cmd, 2)
	if err != nil {
		return nil, err
	}

	name := accountName(args[0])
	if name == "" {
		return nil, ledger.NewValidationError(cmd.Kind(), "empty user name")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(args[1]), w.passwordCost)
	if err != nil {
		return nil, ledger.NewValidationError(cmd.Kind(), "unusable password: %v", err)
	}

	now := w.timestamp()
	id, err := tx.InsertUser(ctx, ledger.UserAccount{
		Name:         name,
		PasswordHash: string(hash),
		Balance:      w.initialBalance.InexactFloat64(),
		Created:      now,
		LastLogin:    now,
	})
	if errors.Is(err, store.ErrUserExists) {
		return nil, ledger.NewValidationError(cmd.Kind(), "user %q already exists", name)
	}
	if err != nil {
		return nil, err
	}

	return ledger.IntReply(id), nil
}

// handleWhoami checks credentials. Unknown users and wrong passwords get
// the same answer.
func (w *Worker) handleWhoami(ctx context.Context, tx *store.Tx, cmd *ledger.Command) (ledger.Reply, error) {
	args, err := requireArgs(cmd, 2)
	if err != nil {
		return nil, err
	}

	u, err := tx.UserByName(ctx, accountName(args[0]))
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, ledger.NewValidationError(cmd.Kind(), "bad credentials")
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(args[1])); err != nil {
		return nil, ledger.NewValidationError(cmd.Kind(), "bad credentials")
	}

	if err := tx.TouchLogin(ctx, u.ID, w.timestamp()); err != nil {
		return nil, err
	}
	return ledger.TextReply(u.Name), nil
}

func (w *Worker) handleRename(ctx context.Context, tx *store.Tx, cmd *ledger.Command, log zerolog.Logger) (ledger.Reply, error) {
	args, err := requireArgs(cmd, 2)
	if err != nil {
		return nil, err
	}

	from, to := accountName(args[0]), accountName(args[1])
	if to == "" {
		return nil, ledger.NewValidationError(cmd.Kind(), "empty user name")
	}

	n, err := tx.RenameUser(ctx, from, to)
	if errors.Is(err, store.ErrUserExists) {
		return nil, ledger.NewValidationError(cmd.Kind(), "user %q already exists", to)
	}
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ledger.NewValidationError(cmd.Kind(), "unknown user %q", from)
	}

	log.Info().Str("from", from).Str("to", to).Msg("account renamed")
	return intReply(n)
}

func (w *Worker) handleBalance(ctx context.Context, tx *store.Tx, cmd *ledger.Command) (ledger.Reply, error) {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return nil, err
	}

	u, err := tx.UserByName(ctx, accountName(args[0]))
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, ledger.NewValidationError(cmd.Kind(), "unknown user %q", args[0])
	}
	if err != nil {
		return nil, err
	}
	return ledger.FloatReply(u.Balance), nil
}

// handleSend moves amount from one account to another and appends a
// chained "send" row. Balances are computed in decimal and stored as REAL.
func (w *Worker) handleSend(ctx context.Context, tx *store.Tx, cmd *ledger.Command, log zerolog.Logger) (ledger.Reply, error) {
	args, err := requireArgs(cmd, 3)
	if err != nil {
		return nil, err
	}

	fromName, toName := accountName(args[0]), accountName(args[1])
	amount, err := decimal.NewFromString(args[2])
	if err != nil {
		return nil, ledger.NewValidationError(cmd.Kind(), "invalid amount %q", args[2])
	}
	if !amount.IsPositive() {
		return nil, ledger.NewValidationError(cmd.Kind(), "amount must be positive")
	}
	if fromName == toName {
		return nil, ledger.NewValidationError(cmd.Kind(), "cannot send to self")
	}

	from, err := w.lookupUser(ctx, tx, cmd, fromName)
	if err != nil {
		return nil, err
	}
	to, err := w.lookupUser(ctx, tx, cmd, toName)
	if err != nil {
		return nil, err
	}

	fromBalance := decimal.NewFromFloat(from.Balance)
	if fromBalance.LessThan(amount) {
		return nil, ledger.NewValidationError(cmd.Kind(), "insufficient funds")
	}

	if err := tx.SetBalance(ctx, from.ID, fromBalance.Sub(amount).InexactFloat64()); err != nil {
		return nil, err
	}
	toBalance := decimal.NewFromFloat(to.Balance).Add(amount)
	if err := tx.SetBalance(ctx, to.ID, toBalance.InexactFloat64()); err != nil {
		return nil, err
	}

	prev, err := tx.LastLedgerHash(ctx)
	if err != nil {
		return nil, err
	}

	entry := ledger.LedgerEntry{
		TransactionType: TransactionSend,
		Timestamp:       w.timestamp(),
		Source:          from.Name,
		Destination:     to.Name,
		Amount:          amount.InexactFloat64(),
	}
	entry.LedgerHash = chainHash(prev, entry)

	id, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	if err := tx.SetReceipt(ctx, id, receiptHash(id, entry.LedgerHash)); err != nil {
		return nil, err
	}

	log.Info().
		Uint32("ledger_id", id).
		Str("from", from.Name).
		Str("to", to.Name).
		Str("amount", amount.String()).
		Msg("funds sent")

	return ledger.IntReply(id), nil
}

func (w *Worker) lookupUser(ctx context.Context, tx *store.Tx, cmd *ledger.Command, name string) (ledger.UserAccount, error) {
	u, err := tx.UserByName(ctx, name)
	if errors.Is(err, store.ErrUserNotFound) {
		return ledger.UserAccount{}, ledger.NewValidationError(cmd.Kind(), "unknown user %q", name)
	}
	return u, err
}
