package session

import "errors"

// Domain errors for the session package.
var (
	// ErrNoChannel is returned when a comm section names neither a serial
	// port nor a TCP endpoint.
	ErrNoChannel = errors.New("session: no serial or tcp channel configured")

	// ErrInvalidConfig is returned when a comm section cannot be decoded or
	// carries out-of-range values.
	ErrInvalidConfig = errors.New("session: invalid comm configuration")

	// ErrOpenFailed is returned when the port cannot be opened or the
	// endpoint cannot be dialled.
	ErrOpenFailed = errors.New("session: open failed")

	// ErrHandshakeFailed is returned when the probe handshake does not see
	// the expected reply before the timeout.
	ErrHandshakeFailed = errors.New("session: handshake failed")

	// ErrClosed is returned when Check is called on a closed session.
	ErrClosed = errors.New("session: closed")
)
