package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"
)

// maxReply bounds how much of a reply is buffered while waiting for the
// expect string.
const maxReply = 64 * 1024

// link is an open channel the handshake can talk to.
type link interface {
	io.Writer
	// readUntil reads into buf, giving up at deadline. A read that times
	// out returns 0 and an error satisfying os.IsTimeout, or 0 and nil.
	readUntil(buf []byte, deadline time.Time) (int, error)
	Close() error
}

// Session probes one device. It implements device.Session.
//
// Thread Safety:
//   - Check and Close are safe for concurrent use; they serialise on an
//     internal mutex.
type Session struct {
	cfg      Config
	timeout  time.Duration
	openPort PortOpener
	dial     DialFunc
	logger   Logger

	mu     sync.Mutex
	link   link
	closed bool
}

// Config returns the decoded comm section.
func (s *Session) Config() Config { return s.cfg }

// Check opens the channel on first use and runs the probe handshake.
// It returns nil when the device answered.
func (s *Session) Check(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.link == nil {
		l, err := s.connect(ctx)
		if err != nil {
			return fmt.Errorf("%w: %s %s: %w", ErrOpenFailed, s.cfg.Channel(), s.cfg.Address(), err)
		}
		s.link = l
		s.logger.Debug("probe channel open", "channel", s.cfg.Channel(), "address", s.cfg.Address())
	}

	if s.cfg.Probe.Send == "" && s.cfg.Probe.Expect == "" {
		return nil
	}
	return s.handshake(ctx)
}

// Close releases the channel. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.link == nil {
		return nil
	}
	err := s.link.Close()
	s.link = nil
	return err
}

func (s *Session) connect(ctx context.Context) (link, error) {
	if s.cfg.Serial != nil {
		port, err := s.openPort(s.cfg.Serial.Port, s.cfg.Serial.mode())
		if err != nil {
			return nil, err
		}
		if err := port.ResetInputBuffer(); err != nil {
			port.Close()
			return nil, fmt.Errorf("reset input buffer: %w", err)
		}
		return &serialLink{port: port}, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.dial(dialCtx, "tcp", hostPort(s.cfg.TCP.Host, s.cfg.TCP.Port))
	if err != nil {
		return nil, err
	}
	return &tcpLink{conn: conn}, nil
}

// handshake writes the send string and waits for the expect string.
func (s *Session) handshake(ctx context.Context) error {
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if send := s.cfg.Probe.Send; send != "" {
		if _, err := io.WriteString(s.link, send); err != nil {
			return fmt.Errorf("%w: write: %w", ErrHandshakeFailed, err)
		}
	}

	expect := []byte(s.cfg.Probe.Expect)
	if len(expect) == 0 {
		return nil
	}

	var reply bytes.Buffer
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %q not received within %s", ErrHandshakeFailed, expect, s.timeout)
		}

		n, err := s.link.readUntil(buf, deadline)
		reply.Write(buf[:n])
		if bytes.Contains(reply.Bytes(), expect) {
			return nil
		}
		if reply.Len() > maxReply {
			return fmt.Errorf("%w: %d bytes without %q", ErrHandshakeFailed, reply.Len(), expect)
		}
		if err != nil && !os.IsTimeout(err) {
			return fmt.Errorf("%w: read: %w", ErrHandshakeFailed, err)
		}
	}
}

// serialLink adapts a Port. Reads that time out return 0, nil.
type serialLink struct {
	port Port
}

func (l *serialLink) Write(p []byte) (int, error) { return l.port.Write(p) }
func (l *serialLink) Close() error                { return l.port.Close() }

func (l *serialLink) readUntil(buf []byte, deadline time.Time) (int, error) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, nil
	}
	if err := l.port.SetReadTimeout(remaining); err != nil {
		return 0, fmt.Errorf("set read timeout: %w", err)
	}
	return l.port.Read(buf)
}

// tcpLink adapts a net.Conn.
type tcpLink struct {
	conn net.Conn
}

func (l *tcpLink) Write(p []byte) (int, error) { return l.conn.Write(p) }
func (l *tcpLink) Close() error                { return l.conn.Close() }

func (l *tcpLink) readUntil(buf []byte, deadline time.Time) (int, error) {
	if err := l.conn.SetReadDeadline(deadline); err != nil {
		return 0, fmt.Errorf("set read deadline: %w", err)
	}
	n, err := l.conn.Read(buf)
	if errors.Is(err, io.EOF) {
		return n, fmt.Errorf("connection closed by peer: %w", err)
	}
	return n, err
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
