package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// shutdownTimeout is the maximum time to wait for in-flight sessions
// during graceful shutdown. Sessions are never forcibly cancelled; they
// run to their next read timeout or natural completion.
const shutdownTimeout = 30 * time.Second

// ServerConfig holds the configuration for the submission server.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":2525").
	ListenAddr string

	// Hostname is the name used in the banner and HELO/EHLO replies.
	Hostname string

	// Delivery runs the publish pipeline for each finalized message.
	Delivery Delivery

	// ClaimTLS makes the banner claim TLS readiness without enforcing it.
	ClaimTLS bool

	// TLSConfig, when set, wraps every accepted connection with
	// tls.Server before the session starts. Nil means plaintext.
	TLSConfig *tls.Config
}

// Server accepts register connections and runs one Session per
// connection.
type Server struct {
	config ServerConfig

	mu       sync.Mutex
	listener net.Listener

	// wg tracks in-flight session goroutines for graceful shutdown.
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new Server with the given configuration.
func New(cfg ServerConfig) *Server {
	if cfg.Hostname == "" {
		cfg.Hostname = "localhost"
	}

	return &Server{config: cfg}
}

// ListenAndServe starts the server and blocks until the context is
// cancelled or Shutdown is called. On stop it closes the listener and
// waits up to 30 seconds for in-flight sessions.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	slog.Info("SMTP server listening",
		"addr", ln.Addr().String(),
		"claim_tls", s.config.ClaimTLS,
		"wrap_tls", s.config.TLSConfig != nil,
	)

	// Cancellation closes the listener, which unblocks Accept. At most
	// one extra connection may slip in between cancel and close; its
	// session simply runs out like any other.
	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				// Expected error from the listener close during shutdown
				s.waitForSessions()
				return nil
			default:
			}
			if isClosed(err) {
				s.waitForSessions()
				return nil
			}
			slog.Error("accept error", "error", err)
			continue
		}

		slog.Info("connection accepted", "remote", conn.RemoteAddr().String())

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// Shutdown closes the listening socket. It is idempotent and safe to
// call from any goroutine; in-flight sessions keep running.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		slog.Info("shutting down SMTP server")
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()
	})
}

// Addr returns the listener address, or empty string if not listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// serveConn optionally wraps the connection with TLS and runs its
// session.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	if s.config.TLSConfig != nil {
		tlsConn := tls.Server(conn, s.config.TLSConfig)
		if err := tlsConn.Handshake(); err != nil {
			slog.Error("TLS handshake failed", "remote", conn.RemoteAddr().String(), "error", err)
			conn.Close()
			return
		}
		conn = tlsConn
	}

	session := NewSession(conn, s.config.Delivery, s.config.Hostname, s.config.ClaimTLS)
	session.Handle(ctx)

	slog.Info("connection closed", "remote", conn.RemoteAddr().String())
}

// waitForSessions waits for all in-flight sessions to complete, with a
// maximum timeout to prevent indefinite blocking.
func (s *Server) waitForSessions() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("all sessions completed")
	case <-time.After(shutdownTimeout):
		slog.Warn("shutdown timeout reached, abandoning remaining sessions")
	}
}

// isClosed reports whether err came from accepting on a closed listener.
func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
