// Package smtp implements the permissive mail-submission endpoint the
// cash registers talk to: enough of the SMTP dialog to satisfy embedded
// clients, with theatrical authentication and a generic success for
// anything unrecognized. A submission must never fail on protocol
// strictness; the only goal is getting the report through.
package smtp

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"
)

// readTimeout is the per-line inactivity limit; an idle register is
// assumed gone.
const readTimeout = 30 * time.Second

// bannerDelay emulates the handshake latency some legacy register
// firmware expects before the opening banner.
const bannerDelay = 100 * time.Millisecond

// Authentication sub-stages. The stage is a permanent field of the
// session, never attached or removed at runtime.
const (
	authNone = iota
	authUsername
	authPassword
)

// Delivery receives the finalized raw message with its envelope and runs
// the publish pipeline.
type Delivery interface {
	Deliver(ctx context.Context, raw string, envelopeFrom string, rcpts []string) error
}

// Session represents a single register connection and drives the
// permissive SMTP state machine.
type Session struct {
	conn     net.Conn
	reader   *bufio.Reader
	writer   *bufio.Writer
	hostname string
	claimTLS bool
	delivery Delivery

	// Current transaction
	inData     bool
	authStage  int
	mailFrom   string
	rcptTo     []string
	dataBuffer strings.Builder
}

// NewSession creates a new session for the given connection.
func NewSession(conn net.Conn, delivery Delivery, hostname string, claimTLS bool) *Session {
	return &Session{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		writer:   bufio.NewWriter(conn),
		hostname: hostname,
		claimTLS: claimTLS,
		delivery: delivery,
	}
}

// Handle runs the session, processing lines until the client disconnects,
// sends QUIT, or the read deadline passes.
func (s *Session) Handle(ctx context.Context) {
	defer s.conn.Close()

	time.Sleep(bannerDelay)

	if s.claimTLS {
		s.writeLine("220 %s ESMTP Ready (TLS)", s.hostname)
	} else {
		s.writeLine("220 %s ESMTP Ready", s.hostname)
	}

	for {
		select {
		case <-ctx.Done():
			s.writeLine("421 4.3.0 Service shutting down")
			return
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			slog.Error("failed to set connection deadline", "error", err)
			return
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				slog.Debug("connection read error", "error", err)
			}
			return
		}

		line = strings.TrimRight(line, "\r\n")

		if s.inData {
			s.handleDataLine(ctx, line)
			continue
		}

		if line == "" {
			continue
		}

		if s.authStage != authNone {
			s.handleAuthLine(line)
			continue
		}

		cmd, arg := parseCommand(line)
		if done := s.handleCommand(cmd, arg, line); done {
			return
		}
	}
}

// handleCommand processes a single command and returns true if the
// session should end. Unrecognized commands are acknowledged, never
// rejected: an unidentified register dialect must not abort a submission.
func (s *Session) handleCommand(cmd, arg, full string) bool {
	switch cmd {
	case "HELO":
		s.writeLine("250 %s Hello %s", s.hostname, helloArg(arg))
	case "EHLO":
		s.writeLine("250-%s Hello %s\r\n250-AUTH LOGIN PLAIN\r\n250-8BITMIME\r\n250-SIZE 52428800\r\n250 HELP",
			s.hostname, helloArg(arg))
	case "AUTH":
		s.handleAUTH(arg)
	case "MAIL":
		if idx := strings.Index(strings.ToUpper(full), "FROM:"); idx >= 0 {
			s.mailFrom = extractAddress(full[idx+len("FROM:"):])
			slog.Debug("envelope sender", "from", s.mailFrom)
		}
		s.writeLine("250 2.1.0 OK")
	case "RCPT":
		if idx := strings.Index(strings.ToUpper(full), "TO:"); idx >= 0 {
			rcpt := extractAddress(full[idx+len("TO:"):])
			s.rcptTo = append(s.rcptTo, rcpt)
			slog.Debug("envelope recipient", "to", rcpt)
		}
		s.writeLine("250 2.1.5 OK")
	case "DATA":
		s.writeLine("354 End data with <CR><LF>.<CR><LF>")
		s.dataBuffer.Reset()
		s.inData = true
	case "RSET":
		s.resetTransaction()
		s.authStage = authNone
		s.writeLine("250 2.0.0 OK")
	case "NOOP":
		s.writeLine("250 2.0.0 OK")
	case "HELP":
		s.writeLine("214 2.0.0 Help available")
	case "QUIT":
		s.writeLine("221 2.0.0 Bye")
		return true
	default:
		slog.Debug("unrecognized command acknowledged", "command", cmd)
		s.writeLine("250 2.0.0 OK")
	}
	return false
}

// handleAUTH starts the theatrical authentication exchange. Any
// credential is accepted; register firmware cannot be told to skip AUTH,
// and access control is not this server's job.
func (s *Session) handleAUTH(arg string) {
	mechanism := "LOGIN"
	parts := strings.Fields(arg)
	if len(parts) > 0 {
		mechanism = strings.ToUpper(parts[0])
	}

	switch mechanism {
	case "LOGIN":
		s.authStage = authUsername
		s.writeLine("334 VXNlcm5hbWU6")
	case "PLAIN":
		if len(parts) > 1 {
			s.writeLine("235 2.7.0 Authentication successful")
			return
		}
		s.authStage = authUsername
		s.writeLine("334 ")
	default:
		s.writeLine("235 2.7.0 Authentication successful")
	}
}

// handleAuthLine consumes one credential line. The base64 decode is for
// debug logging only; failure to decode never terminates the exchange.
func (s *Session) handleAuthLine(line string) {
	decoded, err := base64.StdEncoding.DecodeString(line)
	if err != nil {
		slog.Debug("credential not base64, accepting anyway", "raw", line)
	}

	switch s.authStage {
	case authUsername:
		if err == nil {
			slog.Debug("auth username", "username", string(decoded))
		}
		s.authStage = authPassword
		s.writeLine("334 UGFzc3dvcmQ6")
	case authPassword:
		if err == nil {
			slog.Debug("auth password received")
		}
		s.authStage = authNone
		s.writeLine("235 2.7.0 Authentication successful")
	}
}

// handleDataLine accumulates message body lines until the lone-dot
// terminator, then finalizes.
func (s *Session) handleDataLine(ctx context.Context, line string) {
	if line == "." {
		s.inData = false
		s.finalize(ctx)
		return
	}

	// Dot-stuffing: lines starting with ".." have the leading dot removed
	if strings.HasPrefix(line, "..") {
		line = line[1:]
	}

	s.dataBuffer.WriteString(line)
	s.dataBuffer.WriteString("\n")
}

// finalize hands the buffered message to the delivery pipeline. A
// pipeline failure is answered as a temporary failure so the register may
// resubmit; the session stays open either way.
func (s *Session) finalize(ctx context.Context) {
	raw := s.dataBuffer.String()
	from := s.mailFrom
	rcpts := s.rcptTo
	s.resetTransaction()

	err := s.deliver(ctx, raw, from, rcpts)
	if err != nil {
		slog.Error("failed to process message", "from", from, "error", err)
		s.writeLine("450 4.0.0 Temporary failure, try again")
		return
	}

	s.writeLine("250 2.0.0 Message accepted for delivery")
}

// deliver invokes the pipeline, converting a panic anywhere inside it
// into an error. The session is an isolation boundary: nothing from the
// pipeline may take down the acceptor or other sessions.
func (s *Session) deliver(ctx context.Context, raw, from string, rcpts []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return s.delivery.Deliver(ctx, raw, from, rcpts)
}

// resetTransaction clears the per-message state. The data buffer is
// non-empty only while receiving a body.
func (s *Session) resetTransaction() {
	s.mailFrom = ""
	s.rcptTo = nil
	s.dataBuffer.Reset()
	s.inData = false
}

// writeLine writes a formatted reply line to the client, followed by \r\n.
func (s *Session) writeLine(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if _, err := s.writer.WriteString(line + "\r\n"); err != nil {
		slog.Error("failed to write to client", "error", err)
		return
	}
	if err := s.writer.Flush(); err != nil {
		slog.Error("failed to flush to client", "error", err)
	}
}

// parseCommand splits a command line into the uppercased verb and its
// argument.
func parseCommand(line string) (string, string) {
	parts := strings.SplitN(line, " ", 2)
	cmd := strings.ToUpper(strings.TrimSpace(parts[0]))
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}
	return cmd, arg
}

// extractAddress extracts an address from a MAIL FROM / RCPT TO payload,
// tolerating both angle-bracket and bare forms.
func extractAddress(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<")
	if idx := strings.Index(s, ">"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// helloArg names the peer in HELO/EHLO replies.
func helloArg(arg string) string {
	if arg == "" {
		return "unknown"
	}
	return arg
}
