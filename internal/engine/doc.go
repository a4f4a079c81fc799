// Package engine implements the ledger store worker.
//
// ARCHITECTURE:
//
// Single-Writer Command Loop:
// One goroutine (Worker.Run) owns the store for the life of the process.
// Every other goroutine talks to the ledger by submitting a Command and
// waiting on its reply conduit. This ensures:
// - No two transactions are ever open at once
// - Commands are executed in the order they were dequeued (FIFO)
// - Each dequeued command gets exactly one reply
//
// Command Processing Flow:
// 1. Submit() stamps a correlation id and appends to the unbounded queue
// 2. Run() dequeues one command at a time
// 3. Disconnect stops the loop; every other kind runs inside store.WithTx
// 4. The handler's reply (or its error, as an ErrorReply) is sent on the conduit
//
// A handler error never ends the loop. A handler panic is recovered at the
// command boundary, the transaction is rolled back and the caller receives
// an INTERNAL ErrorReply.
//
// When the loop stops on Disconnect, commands still waiting in the queue
// have their conduits closed so their callers can tell the service is gone.
package engine
