// Package store provides the SQLite-backed ledger store.
//
// The store holds two tables:
//   - ledger: settled transactions, one row per LedgerEntry
//   - users: accounts with password hash and balance
//
// # Single Connection
//
// The connection pool is capped at one connection. Every transaction, and
// the trusted RowsByUser read path, goes through that same connection, so
// nothing ever opens a second handle on the file. Only the engine worker
// writes.
//
// # Connection Setup
//
// Each connection runs, in order:
//   - PRAGMA key with caller-supplied key material (skipped when empty)
//   - journal_mode=WAL, synchronous=NORMAL, busy_timeout=5000, foreign_keys=ON
//
// The key pragma is honored by SQLCipher-enabled SQLite builds. Stock
// SQLite ignores unknown pragmas.
//
// # Row Layout
//
// Ledger rows are always selected in the fixed column order of
// querysql.LedgerColumns and turned into records by SerializeRows.
package store
