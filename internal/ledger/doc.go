// Package ledger defines the records and the command protocol shared by the
// ledger worker and everything that talks to it.
//
// Nothing in this package performs I/O. A Command is built once by a caller
// (usually through the protocol decoder), consumed once by the worker, and
// answered with exactly one Reply on its conduit. Validation of commands is
// the decoder's job; the worker rejects anything it cannot execute with an
// ErrorReply.
package ledger
