package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when an operation needs an open session
	ErrNotConnected = errors.New("no active connection")

	// ErrConnectInProgress rejects a connect issued while another is opening
	ErrConnectInProgress = errors.New("connection already in progress")

	// ErrDisconnectWhileConnecting rejects a disconnect issued while opening
	ErrDisconnectWhileConnecting = errors.New("cannot disconnect while connecting")

	// ErrManagerClosed is returned once the manager has been shut down
	ErrManagerClosed = errors.New("session manager closed")
)

// ConfigError reports an unusable session configuration
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid session config: %s: %s", e.Field, e.Message)
}

// EnumerationError reports a failed device listing. It is a warning: the
// listing still succeeds with no ports.
type EnumerationError struct {
	Err error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("port enumeration failed: %v", e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// ConnectionError reports a failed open attempt
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError is a fault raised by an open connection
type TransportError struct {
	Port string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error on %s: %v", e.Port, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SendError reports a failed write. The session stays open.
type SendError struct {
	Port string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Port, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
