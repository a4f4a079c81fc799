package engine

import "errors"

var (
	// ErrStopped is returned by Submit once the worker no longer accepts
	// commands.
	ErrStopped = errors.New("ledger worker stopped")

	// ErrNoReply is returned by Await when a conduit is closed without a
	// reply. Callers should treat the service as unavailable.
	ErrNoReply = errors.New("ledger worker closed the reply conduit")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("ledger worker already running")
)
