package server

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"localforge/mcpd/pkg/mcp"
	"localforge/mcpd/pkg/tenant"
)

// Config holds the transport settings of the daemon listener.
type Config struct {
	// ListenAddress is the TCP address to bind, e.g. "127.0.0.1:8700".
	ListenAddress string

	// MaxConnections caps concurrent client connections. Connections
	// past the cap are closed immediately. Zero means unlimited.
	MaxConnections int

	// MaxLineBytes caps the size of a single inbound message line.
	MaxLineBytes int

	// IdleTimeout disconnects a client that sends nothing for this
	// long. Zero disables the idle check.
	IdleTimeout time.Duration

	// ShutdownTimeout bounds the graceful drain on shutdown.
	ShutdownTimeout time.Duration
}

// PrincipalFunc extracts the opaque tenant principal from a connection.
// The default returns the empty principal, which the resolver is free
// to treat as admin, anonymous, or unknown.
type PrincipalFunc func(conn net.Conn) string

// Server is the daemon's TCP front end.
type Server struct {
	config    Config
	handler   *mcp.Handler
	resolver  tenant.Resolver
	principal PrincipalFunc
	logger    *slog.Logger

	listener net.Listener
	connCtx  context.Context
	connStop context.CancelFunc
	wg       sync.WaitGroup

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Option configures a Server.
type Option func(*Server)

// WithPrincipalFunc overrides how the per-connection principal is
// extracted.
func WithPrincipalFunc(f PrincipalFunc) Option {
	return func(s *Server) { s.principal = f }
}

// NewServer creates a server over the given handler and tenant
// resolver.
func NewServer(cfg Config, handler *mcp.Handler, resolver tenant.Resolver, opts ...Option) *Server {
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 1 << 20
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		config:       cfg,
		handler:      handler,
		resolver:     resolver,
		principal:    func(net.Conn) string { return "" },
		logger:       slog.Default().With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and blocks until shutdown: context
// cancellation, SIGINT/SIGTERM, an explicit Shutdown, or a fatal
// accept error.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.listener = ln
	s.connCtx, s.connStop = context.WithCancel(context.Background())
	s.isRunning = true
	s.mu.Unlock()

	s.logger.Info("listening", "address", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.acceptLoop(ln)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	case err := <-errChan:
		if err != nil {
			s.Shutdown(context.Background())
			return err
		}
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting, cancels in-flight request contexts and
// waits for connection goroutines to drain, bounded by
// ShutdownTimeout. Safe to call from any goroutine, more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		ln := s.listener
		stop := s.connStop
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		// Cancel before closing the listener: the accept loop decides
		// "clean shutdown vs fatal accept error" by checking connCtx,
		// so the cancellation must be observable by the time Accept
		// returns its error.
		if stop != nil {
			stop()
		}
		if ln != nil {
			ln.Close()
		}

		drainCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-drainCtx.Done():
			shutdownErr = fmt.Errorf("shutdown drain timed out: %w", drainCtx.Err())
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// Stop requests an asynchronous shutdown of a blocked Start.
func (s *Server) Stop() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// IsRunning reports whether the server is currently serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// acceptLoop accepts connections until the listener closes. A closed
// listener is the normal shutdown path and returns nil.
func (s *Server) acceptLoop(ln net.Listener) error {
	var count int
	var countMu sync.Mutex

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.connCtx.Done():
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		if s.config.MaxConnections > 0 {
			countMu.Lock()
			if count >= s.config.MaxConnections {
				countMu.Unlock()
				s.logger.Warn("connection limit reached, rejecting",
					"remote", conn.RemoteAddr().String(),
					"limit", s.config.MaxConnections,
				)
				conn.Close()
				continue
			}
			count++
			countMu.Unlock()
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				if s.config.MaxConnections > 0 {
					countMu.Lock()
					count--
					countMu.Unlock()
				}
			}()
			s.serveConn(conn)
		}()
	}
}

// serveConn runs one connection's read-handle-write loop.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	logger := s.logger.With("remote", remote)

	ctx := s.connCtx
	principal := s.principal(conn)
	if id, err := s.resolver.Resolve(ctx, principal); err != nil {
		// Served without identity; the handler rejects each request.
		logger.Warn("tenant resolution failed", "error", err)
	} else {
		ctx = tenant.NewContext(ctx, id)
		logger = logger.With("tenant", id.ID)
	}

	logger.Debug("connection opened")

	// Close the socket when the server drains so a blocked read
	// unwinds promptly.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-s.connCtx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), s.config.MaxLineBytes)

	for {
		if s.config.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		reply := s.handler.ProcessMessage(ctx, line)
		if _, err := conn.Write(append(reply, '\n')); err != nil {
			logger.Debug("write failed, closing connection", "error", err)
			return
		}
	}

	if err := scanner.Err(); err != nil && s.connCtx.Err() == nil {
		logger.Debug("read ended", "error", err)
	}
	logger.Debug("connection closed")
}
