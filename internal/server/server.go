// Package server implements the line-oriented TCP front-end: a listener that
// serves each client connection in its own goroutine, bounded by a session
// cap, and the per-connection protocol handler.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/ashureev/zkverify/internal/config"
	"github.com/ashureev/zkverify/internal/metrics"
	"github.com/ashureev/zkverify/internal/store"
)

// Server accepts client connections and runs one session handler per
// connection. A slow or failing proof only ever blocks its own session.
type Server struct {
	addr     string
	prover   Prover
	repo     store.Repository
	registry *Registry
	sem      chan struct{}

	ln net.Listener
	wg sync.WaitGroup
}

// New builds a Server. repo may be nil to disable the audit trail (tests).
func New(cfg *config.Config, p Prover, repo store.Repository, registry *Registry) *Server {
	return &Server{
		addr:     ":" + cfg.Port,
		prover:   p,
		repo:     repo,
		registry: registry,
		sem:      make(chan struct{}, cfg.MaxSessions),
	}
}

// Listen binds the TCP port. A bind failure is fatal to startup; callers are
// expected to exit.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}
	s.ln = ln
	slog.Info("Listener started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address. Valid after Listen.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve runs the accept loop until ctx is done. Per-connection accept errors
// are logged and do not stop the loop. When the session cap is reached new
// connections are rejected with a busy message rather than queued, so clients
// see the overload instead of silently waiting behind multi-second proofs.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			slog.Error("Accept failed", "error", err)
			continue
		}

		select {
		case s.sem <- struct{}{}:
		default:
			metrics.SessionsRejected.Inc()
			slog.Warn("Session cap reached, rejecting connection", "remote_addr", conn.RemoteAddr())
			_, _ = conn.Write([]byte(busyMsg))
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

// ListenAndServe binds the port and runs the accept loop.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Shutdown waits for in-flight sessions to finish; when ctx expires first,
// lingering connections are force-closed.
func (s *Server) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Shutdown grace period expired, closing lingering sessions")
		s.registry.CloseAll()
		<-done
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() { <-s.sem }()
	defer conn.Close()

	id := uuid.NewString()
	s.registry.Register(id, conn)
	defer s.registry.Unregister(id)

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	log := slog.With("session_id", id, "remote_addr", conn.RemoteAddr().String())
	log.Info("Session started")

	sess := &session{
		id:     id,
		conn:   conn,
		reader: bufio.NewReader(conn),
		prover: s.prover,
		repo:   s.repo,
		log:    log,
	}
	sess.run(ctx)

	log.Info("Session ended")
}
