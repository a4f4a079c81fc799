package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/ledgerd/internal/ledger"
)

var (
	// ErrUserExists is returned when a name is already registered.
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound is returned when no account has the given name.
	ErrUserNotFound = errors.New("user not found")
)

// InsertUser creates an account and returns its id.
func (t *Tx) InsertUser(ctx context.Context, u ledger.UserAccount) (uint32, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO users (name, pass, balance, created, last_login)
		VALUES (?, ?, ?, ?, ?)
	`, u.Name, u.PasswordHash, u.Balance, u.Created, u.LastLogin)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert user %q: %w", u.Name, ErrUserExists)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert user: last insert id: %w", err)
	}
	return RowID(id)
}

// UserByName looks up an account. Returns ErrUserNotFound if none exists.
func (t *Tx) UserByName(ctx context.Context, name string) (ledger.UserAccount, error) {
	var u ledger.UserAccount
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, pass, balance, created, last_login
		FROM users
		WHERE name = ?
	`, name).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.Balance, &u.Created, &u.LastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.UserAccount{}, fmt.Errorf("user %q: %w", name, ErrUserNotFound)
	}
	if err != nil {
		return ledger.UserAccount{}, fmt.Errorf("read user: %w", err)
	}
	return u, nil
}

// SetBalance overwrites an account balance.
func (t *Tx) SetBalance(ctx context.Context, id uint32, balance float64) error {
	if _, err := t.tx.ExecContext(ctx, `
		UPDATE users SET balance = ? WHERE id = ?
	`, balance, int64(id)); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

// TouchLogin records a successful login.
func (t *Tx) TouchLogin(ctx context.Context, id uint32, at string) error {
	if _, err := t.tx.ExecContext(ctx, `
		UPDATE users SET last_login = ? WHERE id = ?
	`, at, int64(id)); err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	return nil
}

// RenameUser changes an account name and returns the number of rows
// changed. Returns ErrUserExists if the new name is taken.
func (t *Tx) RenameUser(ctx context.Context, from, to string) (int64, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE users SET name = ? WHERE name = ?
	`, to, from)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("rename to %q: %w", to, ErrUserExists)
		}
		return 0, fmt.Errorf("rename user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rename user: rows affected: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
