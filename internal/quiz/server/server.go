// Package server runs the TCP listener: it enforces the client cap, gives
// each connection its own goroutine and session and feeds complete lines to
// the protocol dispatcher.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/protocol"
)

// Dispatcher is implemented by *protocol.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, s *protocol.Session, line string) []string
}

type Server struct {
	addr       string
	dispatcher Dispatcher
	slots      *Slots
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closing  bool

	wg sync.WaitGroup
}

func New(addr string, d Dispatcher, slots *Slots, logger *slog.Logger) *Server {
	return &Server{
		addr:       addr,
		dispatcher: d,
		slots:      slots,
		logger:     logger,
		conns:      make(map[net.Conn]struct{}),
	}
}

// Listen binds the listening socket. Separate from Serve so callers (and
// tests using ":0") can learn the bound address first.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until Shutdown closes the listener, then returns
// nil. ctx is the parent of every connection context.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server: Serve called before Listen")
	}

	s.logger.Info("math server listening",
		slog.String("addr", ln.Addr().String()),
		slog.Int("max_clients", s.slots.Max()),
	)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept failed", slog.Any("error", err))
			continue
		}

		if !s.slots.TryAcquire() {
			s.logger.Warn("client limit reached, rejecting connection",
				slog.String("remote_addr", conn.RemoteAddr().String()),
			)
			reject(conn)
			continue
		}

		if !s.track(conn) {
			s.slots.Release()
			_ = conn.Close()
			continue
		}

		go func() {
			defer s.wg.Done()
			defer s.slots.Release()
			defer s.untrack(conn)

			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()

	_ = conn.Close()
}

// Shutdown stops accepting, closes every client connection and waits for
// their goroutines, or until ctx is done. A command being processed finishes
// before its goroutine notices the closed socket.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
