package session

import (
	"context"
	"io"
	"net"
	"time"

	"go.bug.st/serial"

	"github.com/nerrad567/devsel/internal/device"
)

// DefaultTimeout bounds a probe whose comm section sets no timeout.
const DefaultTimeout = 2 * time.Second

// Port is the subset of serial.Port a session uses.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// PortOpener opens a serial port. The default wraps serial.Open.
type PortOpener func(name string, mode *serial.Mode) (Port, error)

// DialFunc dials a network address. The default is net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Logger defines the logging interface used by sessions.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures a Factory.
type Option func(*Factory)

// WithTimeout sets the probe bound used when a comm section sets none.
func WithTimeout(d time.Duration) Option {
	return func(f *Factory) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithPortOpener replaces the serial port opener.
func WithPortOpener(open PortOpener) Option {
	return func(f *Factory) {
		if open != nil {
			f.openPort = open
		}
	}
}

// WithDialer replaces the TCP dialer.
func WithDialer(dial DialFunc) Option {
	return func(f *Factory) {
		if dial != nil {
			f.dial = dial
		}
	}
}

// WithLogger sets the logger handed to every session.
func WithLogger(logger Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Factory builds sessions from comm sections.
type Factory struct {
	timeout  time.Duration
	openPort PortOpener
	dial     DialFunc
	logger   Logger
}

// NewFactory creates a factory with the given options.
func NewFactory(opts ...Option) *Factory {
	var d net.Dialer
	f := &Factory{
		timeout:  DefaultTimeout,
		openPort: openSerial,
		dial:     d.DialContext,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open decodes comm and returns an unopened session. Its signature matches
// device.SessionFactory.
func (f *Factory) Open(comm device.Section) (device.Session, error) {
	cfg, err := Decode(comm)
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg:      cfg,
		timeout:  cfg.timeout(f.timeout),
		openPort: f.openPort,
		dial:     f.dial,
		logger:   f.logger,
	}, nil
}

func openSerial(name string, mode *serial.Mode) (Port, error) {
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}
