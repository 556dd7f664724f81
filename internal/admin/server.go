package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"

	"doghair/internal/logging"
)

// Dispatch executes one operator command and returns its reply line (or an
// error). Handed in by cmd/coordinator.go, bound to a *core.Coordinator.
type Dispatch func(method string) (string, error)

// Server is a JSON-RPC-over-UDS listener fronting a Dispatch.
type Server struct {
	socketPath string
	dispatch   Dispatch

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	stopped  bool
}

// NewServer builds a Server bound to socketPath, not yet listening.
func NewServer(socketPath string, dispatch Dispatch) *Server {
	return &Server{
		socketPath: socketPath,
		dispatch:   dispatch,
		conns:      make(map[net.Conn]struct{}),
	}
}

// Start listens on the configured socket and serves until ctx is
// cancelled. Blocks; run it in its own goroutine.
func (s *Server) Start(ctx context.Context) error {
	log := logging.For("admin")

	_ = os.RemoveAll(s.socketPath)
	lis, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		lis.Close()
		return err
	}
	s.listener = lis
	log.WithField("socket", s.socketPath).Info("admin channel listening")

	go s.acceptLoop()

	<-ctx.Done()
	return s.Stop()
}

func (s *Server) acceptLoop() {
	log := logging.For("admin")
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return
			}
			log.WithError(err).Warn("admin accept error")
			continue
		}

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	log := logging.For("admin")
	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			enc.Encode(Response{Error: err.Error()})
			continue
		}

		result, err := s.dispatch(req.Method)
		if err != nil {
			enc.Encode(Response{Error: err.Error()})
			continue
		}
		if err := enc.Encode(Response{Result: result}); err != nil {
			log.WithError(err).Warn("admin: failed to write response")
			return
		}
	}
}

// Stop closes the listener, every open connection, and removes the socket
// file. Safe to call more than once.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return os.RemoveAll(s.socketPath)
}
