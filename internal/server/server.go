// Package server is the Unix socket front-end of the ledger service.
//
// Each connection is served by its own goroutine. Messages are framed one
// JSON object per line; each decoded command is handed to the worker and
// its reply written back as one line before the next message is read.
package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/roach88/ledgerd/internal/engine"
	"github.com/roach88/ledgerd/internal/ledger"
	"github.com/roach88/ledgerd/internal/metrics"
	"github.com/roach88/ledgerd/internal/protocol"
)

// DefaultMaxLineBytes bounds one client message.
const DefaultMaxLineBytes = 64 * 1024

// Submitter accepts commands for the ledger worker.
// Implemented by *engine.Worker.
type Submitter interface {
	Submit(cmd *ledger.Command) error
}

// Server accepts client connections and relays their commands.
type Server struct {
	listener net.Listener
	worker   Submitter
	log      zerolog.Logger
	metrics  *metrics.Metrics

	rps             float64
	burst           int
	allowDisconnect bool
	maxLineBytes    int

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[string]net.Conn
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithMetrics records open connections in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithRateLimit limits each connection to rps messages per second with the
// given burst. A non-positive rps or burst disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.rps = rps
		s.burst = burst
	}
}

// WithAllowDisconnect lets clients stop the worker with a disconnect
// command. Off by default.
func WithAllowDisconnect(allow bool) Option {
	return func(s *Server) {
		s.allowDisconnect = allow
	}
}

// WithMaxLineBytes bounds one message. Longer lines end the connection.
func WithMaxLineBytes(n int) Option {
	return func(s *Server) {
		s.maxLineBytes = n
	}
}

// New creates a server that reads from l and submits to worker.
func New(l net.Listener, worker Submitter, opts ...Option) *Server {
	s := &Server{
		listener:     l,
		worker:       worker,
		log:          zerolog.Nop(),
		maxLineBytes: DefaultMaxLineBytes,
		conns:        make(map[string]net.Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen opens a Unix socket at path, replacing a stale socket file left
// by an earlier run. The socket is only accessible to the owner.
func Listen(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}

	if err := os.Chmod(path, 0o600); err != nil {
		l.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return l, nil
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed. Open connections are closed on the way out and Serve waits for
// their goroutines.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.listener.Close()
		s.closeConns()
	})
	defer stop()

	s.log.Info().Str("addr", s.listener.Addr().String()).Msg("accepting connections")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		id := uuid.NewString()
		s.track(id, conn)
		if ctx.Err() != nil {
			// Accepted while shutting down, after closeConns ran.
			conn.Close()
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(id)
			s.handle(ctx, id, conn)
		}()
	}
}

func (s *Server) track(id string, conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[id] = conn
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		conn.Close()
	}
}

// handle serves one connection until the peer hangs up, the line is too
// long, or a forwarded disconnect stops the worker.
func (s *Server) handle(ctx context.Context, id string, conn net.Conn) {
	log := s.log.With().Str("conn", id).Logger()
	log.Debug().Msg("connection opened")

	s.metrics.ConnOpened()
	defer s.metrics.ConnClosed()
	defer conn.Close()

	var limiter *rate.Limiter
	if s.rps > 0 && s.burst > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.rps), s.burst)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), s.maxLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if limiter != nil && !limiter.Allow() {
			log.Debug().Msg("rate limited")
			if !s.writeError(conn, log, protocol.NewErrorBody(protocol.CodeRateLimited, "too many messages")) {
				return
			}
			continue
		}

		if !s.relay(ctx, conn, line, log) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			s.writeError(conn, log, protocol.NewErrorBody(protocol.CodeJSON, "message exceeds %d bytes", s.maxLineBytes))
		}
		log.Debug().Err(err).Msg("connection read failed")
	}
	log.Debug().Msg("connection closed")
}

// relay decodes one message, submits it and writes the reply. It returns
// false when the connection should be dropped.
func (s *Server) relay(ctx context.Context, conn net.Conn, line []byte, log zerolog.Logger) bool {
	conduit := ledger.NewConduit()

	// JSON errors are written by Decode itself.
	cmd, err := protocol.Decode(line, conduit, conn)
	if err != nil {
		var derr *protocol.DecodeError
		if errors.As(err, &derr) && derr.Code != protocol.CodeJSON {
			return s.writeError(conn, log, derr.Body())
		}
		log.Debug().Err(err).Msg("undecodable message")
		return true
	}

	if cmd.Kind() == ledger.KindDisconnect && !s.allowDisconnect {
		log.Warn().Msg("client disconnect refused")
		return s.writeError(conn, log, protocol.NewErrorBody(protocol.CodeValidation, "disconnect: not permitted"))
	}

	if err := s.worker.Submit(cmd); err != nil {
		log.Warn().Err(err).Str("kind", cmd.Kind().String()).Msg("submit rejected")
		return s.writeError(conn, log, protocol.NewErrorBody(protocol.CodeUnavailable, "ledger worker is not accepting commands"))
	}

	log = log.With().Str("command_id", cmd.ID()).Str("kind", cmd.Kind().String()).Logger()

	// Disconnect has no reply.
	if cmd.Kind() == ledger.KindDisconnect {
		log.Info().Msg("disconnect forwarded to worker")
		return false
	}

	reply, err := engine.Await(ctx, conduit)
	if errors.Is(err, engine.ErrNoReply) {
		return s.writeError(conn, log, protocol.NewErrorBody(protocol.CodeUnavailable, "ledger worker stopped before replying"))
	}
	if err != nil {
		log.Debug().Err(err).Msg("gave up waiting for reply")
		return false
	}

	if err := protocol.WriteReply(conn, reply); err != nil {
		log.Debug().Err(err).Msg("write reply failed")
		return false
	}
	return true
}

func (s *Server) writeError(conn net.Conn, log zerolog.Logger, body protocol.ErrorBody) bool {
	if err := protocol.WriteError(conn, body); err != nil {
		log.Debug().Err(err).Msg("write error failed")
		return false
	}
	return true
}
