package serial

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrPortClosed is returned by operations on a port that has been closed
var ErrPortClosed = errors.New("port is closed")

const readBufferSize = 4096

// Binding turns an open Port into push-style notifications.
//
// Exactly one goroutine reads each Binding, so onData and onError calls for a
// given Binding never overlap and arrive in read order. Consumers that keep
// per-connection buffers rely on this instead of locking them across
// deliveries.
type Binding struct {
	port   *PortWithStats
	logger *slog.Logger

	mu        sync.Mutex
	listening bool
	closed    bool
	done      chan struct{}
}

// NewBinding wraps an open port
func NewBinding(port Port, logger *slog.Logger) *Binding {
	return &Binding{
		port:   NewPortWithStats(port),
		logger: logger.With("device", port.Device()),
		done:   make(chan struct{}),
	}
}

// Listen starts the read loop. onData receives a private copy of every chunk;
// onError is called at most once, when the port fails while the binding is
// still open. Calling Listen more than once has no effect.
func (b *Binding) Listen(onData func([]byte), onError func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listening || b.closed {
		return
	}
	b.listening = true
	go b.readLoop(onData, onError)
}

func (b *Binding) readLoop(onData func([]byte), onError func(error)) {
	defer close(b.done)

	buf := make([]byte, readBufferSize)
	for {
		n, err := b.port.Read(buf)
		if n > 0 {
			if b.isClosed() {
				return
			}
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			onData(chunk)
		}
		if err != nil {
			if b.isClosed() {
				return
			}
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("device closed the line: %w", err)
			}
			b.port.IncrementErrors()
			b.logger.Debug("Read loop stopped", "error", err)
			onError(err)
			return
		}
	}
}

// Write writes data to the underlying port
func (b *Binding) Write(data []byte) (int, error) {
	if b.isClosed() {
		return 0, ErrPortClosed
	}
	return b.port.Write(data)
}

// Close closes the port. Chunks or errors read after Close are dropped.
// Close does not wait for the read loop; use Done for that.
func (b *Binding) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	listening := b.listening
	b.mu.Unlock()

	err := b.port.Close()
	if !listening {
		close(b.done)
	}
	return err
}

// Done is closed once the read loop has exited
func (b *Binding) Done() <-chan struct{} {
	return b.done
}

// Device returns the device path
func (b *Binding) Device() string {
	return b.port.Device()
}

// Stats returns the traffic counters of the underlying port
func (b *Binding) Stats() Stats {
	return b.port.Stats()
}

func (b *Binding) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
