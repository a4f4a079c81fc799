package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/ledgerd/internal/ledger"
	"github.com/roach88/ledgerd/internal/metrics"
	"github.com/roach88/ledgerd/internal/store"
)

// State is the worker lifecycle phase.
type State int32

const (
	StateStarting State = iota
	StateReady
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DefaultInitialBalance is credited to every newly registered account.
var DefaultInitialBalance = decimal.NewFromInt(100)

// Worker is the single owner of the ledger store.
//
// CRITICAL: All store access for commands happens in the Run goroutine.
// External callers use Submit() or Do() to hand work to it.
//
// Thread-safety model:
//   - Submit(), Do(), Stop(), State(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Worker struct {
	store   *store.Store
	queue   *commandQueue
	clock   *Clock
	ids     IDGenerator
	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Metrics

	initialBalance decimal.Decimal
	passwordCost   int

	state atomic.Int32

	// Open transaction accounting. peakTx never exceeds 1 while the
	// single-writer loop is intact.
	activeTx atomic.Int32
	peakTx   atomic.Int32

	// beforeDispatch runs inside the transaction ahead of the handler.
	// Tests use it to inject faults.
	beforeDispatch func(*ledger.Command)
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker logger. The default discards output.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Worker) {
		w.log = log
	}
}

// WithMetrics records command outcomes and queue depth in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithIDGenerator sets the correlation id source.
// Default: UUIDv7Generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(w *Worker) {
		w.ids = gen
	}
}

// WithClock sets the wall clock used for ledger and account timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// WithInitialBalance sets the balance given to new accounts.
func WithInitialBalance(balance decimal.Decimal) Option {
	return func(w *Worker) {
		w.initialBalance = balance
	}
}

// WithPasswordCost sets the bcrypt cost for new password hashes.
// Use bcrypt.MinCost in tests.
func WithPasswordCost(cost int) Option {
	return func(w *Worker) {
		w.passwordCost = cost
	}
}

// New creates a Worker bound to s. The store must stay open until Run
// returns.
func New(s *store.Store, opts ...Option) *Worker {
	w := &Worker{
		store:          s,
		queue:          newCommandQueue(),
		clock:          NewClock(),
		ids:            UUIDv7Generator{},
		now:            time.Now,
		log:            zerolog.Nop(),
		initialBalance: DefaultInitialBalance,
		passwordCost:   bcrypt.DefaultCost,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// State returns the current lifecycle phase.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// PeakTransactions returns the highest number of transactions that were
// ever open at the same time.
func (w *Worker) PeakTransactions() int32 {
	return w.peakTx.Load()
}

// Submit stamps cmd with a correlation id and queues it for the Run loop.
// Thread-safe: may be called from any goroutine. Never waits on the worker.
//
// Returns ErrStopped once the worker has stopped accepting commands.
func (w *Worker) Submit(cmd *ledger.Command) error {
	if cmd == nil {
		return fmt.Errorf("submit: nil command")
	}

	cmd.Stamp(w.ids.Generate())

	if !w.queue.Enqueue(cmd) {
		return ErrStopped
	}

	w.metrics.SetQueueDepth(w.queue.Len())
	return nil
}

// Do submits a command built from kind, sel and opts and waits for its
// reply. Cancelling ctx abandons the wait; the worker still runs the
// command.
func (w *Worker) Do(ctx context.Context, kind ledger.Kind, sel ledger.Selector, opts ...ledger.CommandOption) (ledger.Reply, error) {
	conduit := ledger.NewConduit()
	if err := w.Submit(ledger.NewCommand(kind, sel, conduit, opts...)); err != nil {
		return nil, err
	}
	return Await(ctx, conduit)
}

// Await waits for the single reply on conduit.
// Returns ErrNoReply if the conduit is closed first.
func Await(ctx context.Context, conduit <-chan ledger.Reply) (ledger.Reply, error) {
	select {
	case reply, ok := <-conduit:
		if !ok {
			return nil, ErrNoReply
		}
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop closes the queue. Commands already queued are still executed, then
// Run returns. Thread-safe.
func (w *Worker) Stop() {
	w.queue.Close()
}

// Run starts the single-writer command loop.
// Blocks until a Disconnect is dequeued, Stop() drains the queue, or ctx
// is cancelled.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: a failing command is answered with an ErrorReply and the
// loop continues. Only Disconnect and cancellation end it.
func (w *Worker) Run(ctx context.Context) error {
	if !w.state.CompareAndSwap(int32(StateStarting), int32(StateReady)) {
		return ErrAlreadyRunning
	}

	w.log.Info().Str("db", w.store.Path()).Msg("ledger worker ready")

	for {
		// Try non-blocking dequeue first
		cmd, ok := w.queue.TryDequeue()
		if ok {
			w.metrics.SetQueueDepth(w.queue.Len())

			if cmd.Kind() == ledger.KindDisconnect {
				w.log.Info().Str("command_id", cmd.ID()).Msg("disconnect received, stopping")
				// Disconnect has no reply; the closed conduit is its answer.
				if conduit := cmd.ReplyTo(); conduit != nil {
					close(conduit)
				}
				w.shutdown()
				return nil
			}

			w.process(ctx, cmd)
			continue
		}

		// Queue empty - wait for signal or context cancellation
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ledger worker stopping: context cancelled")
			w.shutdown()
			return ctx.Err()
		case <-w.queue.Wait():
			// A closed queue keeps its signal channel readable; stop once
			// nothing is left to drain.
			if w.queue.Closed() && w.queue.Len() == 0 {
				w.log.Info().Msg("ledger worker stopped")
				w.shutdown()
				return nil
			}
		}
	}
}

// shutdown rejects further submissions and closes the conduits of
// commands that were queued but never dequeued.
func (w *Worker) shutdown() {
	w.queue.Close()
	w.state.Store(int32(StateStopped))

	pending := w.queue.Drain()
	for _, cmd := range pending {
		if conduit := cmd.ReplyTo(); conduit != nil {
			close(conduit)
		}
	}
	if len(pending) > 0 {
		w.log.Warn().Int("pending", len(pending)).Msg("closed conduits of unprocessed commands")
	}
	w.metrics.SetQueueDepth(0)
}

// process executes one command and delivers its reply.
func (w *Worker) process(ctx context.Context, cmd *ledger.Command) {
	started := time.Now()
	log := w.log.With().
		Str("command_id", cmd.ID()).
		Str("kind", cmd.Kind().String()).
		Int64("seq", w.clock.Next()).
		Logger()

	log.Debug().Msg("command dequeued")

	reply, outcome := w.execute(ctx, cmd, log)

	w.metrics.ObserveCommand(cmd.Kind().String(), outcome, time.Since(started))
	log.Debug().Str("outcome", outcome).Dur("took", time.Since(started)).Msg("command settled")

	w.deliver(cmd, reply, log)
}

// execute runs the handler for cmd inside one transaction. A panic is
// recovered here, after the transaction has been rolled back.
func (w *Worker) execute(ctx context.Context, cmd *ledger.Command, log zerolog.Logger) (reply ledger.Reply, outcome string) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("command panicked, transaction rolled back")
			reply = ledger.ErrorReply{Err: &ledger.CommandError{
				Code:    ledger.ErrCodeInternal,
				Kind:    cmd.Kind(),
				Message: fmt.Sprintf("recovered panic: %v", p),
			}}
			outcome = metrics.OutcomePanic
		}
	}()

	// An in-flight command finishes even if the loop is being cancelled.
	txCtx := context.WithoutCancel(ctx)

	var result ledger.Reply
	err := w.store.WithTx(txCtx, func(tx *store.Tx) error {
		w.enterTx()
		defer w.exitTx()

		if w.beforeDispatch != nil {
			w.beforeDispatch(cmd)
		}

		r, err := w.dispatch(txCtx, tx, cmd, log)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		ce := ledger.AsCommandError(cmd.Kind(), err)
		log.Warn().Err(err).Str("code", string(ce.Code)).Msg("command failed")
		return ledger.ErrorReply{Err: ce}, metrics.OutcomeError
	}

	return result, metrics.OutcomeOK
}

// deliver sends reply without blocking. A conduit that is nil or already
// holds a value is skipped with a warning.
func (w *Worker) deliver(cmd *ledger.Command, reply ledger.Reply, log zerolog.Logger) {
	select {
	case cmd.ReplyTo() <- reply:
	default:
		log.Warn().Msg("reply conduit unavailable, reply dropped")
	}
}

func (w *Worker) enterTx() {
	n := w.activeTx.Add(1)
	for {
		peak := w.peakTx.Load()
		if n <= peak || w.peakTx.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (w *Worker) exitTx() {
	w.activeTx.Add(-1)
}

// timestamp returns the current time in the ledger's RFC 3339 UTC form.
func (w *Worker) timestamp() string {
	return w.now().UTC().Format(time.RFC3339)
}
