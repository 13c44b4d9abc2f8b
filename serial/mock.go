package serial

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MockPort implements Port for testing purposes. Bytes pushed with Feed are
// returned by Read in order; Fail makes the next Read return an error.
type MockPort struct {
	mu       sync.Mutex
	buffer   bytes.Buffer
	device   string
	isOpen   bool
	writes   [][]byte
	writeErr error // If set, Write will return this error
	onClose  func()

	pr *io.PipeReader
	pw *io.PipeWriter
}

// NewMockPort creates a new mock port
func NewMockPort(device string) *MockPort {
	pr, pw := io.Pipe()
	return &MockPort{
		device: device,
		isOpen: true,
		writes: make([][]byte, 0),
		pr:     pr,
		pw:     pw,
	}
}

// Read blocks until bytes are fed, the port fails or it is closed
func (p *MockPort) Read(buf []byte) (int, error) {
	return p.pr.Read(buf)
}

// Feed delivers data to the reader. It returns once the reader has consumed
// all of it.
func (p *MockPort) Feed(data []byte) error {
	_, err := p.pw.Write(data)
	return err
}

// FeedString is Feed for text
func (p *MockPort) FeedString(s string) error {
	return p.Feed([]byte(s))
}

// Fail makes pending and future reads return err, simulating a transport fault
func (p *MockPort) Fail(err error) {
	p.pw.CloseWithError(err)
}

// Write writes data to the mock port buffer
func (p *MockPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isOpen {
		return 0, ErrPortClosed
	}

	if p.writeErr != nil {
		return 0, p.writeErr
	}

	// Store a copy of the data
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	p.writes = append(p.writes, dataCopy)

	return p.buffer.Write(data)
}

// Close closes the mock port
func (p *MockPort) Close() error {
	p.mu.Lock()
	if !p.isOpen {
		p.mu.Unlock()
		return nil
	}
	p.isOpen = false
	onClose := p.onClose
	p.mu.Unlock()

	p.pr.Close()
	if onClose != nil {
		onClose()
	}
	return nil
}

// Device returns the mock device path
func (p *MockPort) Device() string {
	return p.device
}

// IsOpen returns true if the mock port is open
func (p *MockPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isOpen
}

// GetWrittenData returns all data written to the mock port
func (p *MockPort) GetWrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.buffer.Bytes()...)
}

// GetWrites returns all individual write operations
func (p *MockPort) GetWrites() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([][]byte, len(p.writes))
	for i, w := range p.writes {
		result[i] = make([]byte, len(w))
		copy(result[i], w)
	}
	return result
}

// SetWriteError sets an error to be returned on subsequent writes
func (p *MockPort) SetWriteError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

// ClearWriteError clears any write error
func (p *MockPort) ClearWriteError() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = nil
}

// MockDriver implements Driver over MockPorts and keeps an ordered log of
// open/close calls so tests can check handle lifecycles.
type MockDriver struct {
	mu       sync.Mutex
	ports    []PortDescriptor
	listErr  error
	openErr  error
	openHook func(cfg PortConfig)
	opened   []*MockPort
	configs  []PortConfig
	events   []string
}

// NewMockDriver creates a driver that lists the given ports
func NewMockDriver(ports ...PortDescriptor) *MockDriver {
	return &MockDriver{ports: ports}
}

// List returns the configured descriptors or the configured error
func (d *MockDriver) List(ctx context.Context) ([]PortDescriptor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listErr != nil {
		return nil, d.listErr
	}
	return append([]PortDescriptor(nil), d.ports...), nil
}

// Open returns a fresh MockPort for cfg.Device
func (d *MockDriver) Open(ctx context.Context, cfg PortConfig) (Port, error) {
	d.mu.Lock()
	hook := d.openHook
	d.mu.Unlock()
	if hook != nil {
		hook(cfg)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.configs = append(d.configs, cfg)
	if d.openErr != nil {
		d.events = append(d.events, "open-failed "+cfg.Device)
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, d.openErr)
	}

	port := NewMockPort(cfg.Device)
	port.onClose = func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.events = append(d.events, "close "+cfg.Device)
	}
	d.opened = append(d.opened, port)
	d.events = append(d.events, "open "+cfg.Device)
	return port, nil
}

// SetListError makes List fail
func (d *MockDriver) SetListError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listErr = err
}

// SetOpenError makes Open fail; nil restores success
func (d *MockDriver) SetOpenError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
}

// SetOpenHook installs a function run at the start of every Open. A hook
// that blocks keeps the caller in the middle of opening.
func (d *MockDriver) SetOpenHook(hook func(cfg PortConfig)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openHook = hook
}

// Opened returns every port handed out so far
func (d *MockDriver) Opened() []*MockPort {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*MockPort(nil), d.opened...)
}

// Last returns the most recently opened port, or nil
func (d *MockDriver) Last() *MockPort {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.opened) == 0 {
		return nil
	}
	return d.opened[len(d.opened)-1]
}

// Configs returns the configurations passed to Open
func (d *MockDriver) Configs() []PortConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PortConfig(nil), d.configs...)
}

// Events returns the open/close log, e.g. "open /dev/ttyUSB0"
func (d *MockDriver) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

// StdoutPort implements Port writing to stdout (useful for debugging)
type StdoutPort struct {
	device string
	isOpen bool
}

// NewStdoutPort creates a new stdout port
func NewStdoutPort(device string) *StdoutPort {
	return &StdoutPort{
		device: device,
		isOpen: true,
	}
}

// Read reports end of stream; stdout has no inbound direction
func (p *StdoutPort) Read([]byte) (int, error) {
	return 0, io.EOF
}

// Write writes data to stdout
func (p *StdoutPort) Write(data []byte) (int, error) {
	if !p.isOpen {
		return 0, ErrPortClosed
	}
	fmt.Printf("[%s][%s] %s", p.device, time.Now().Format("15:04:05.000"), string(data))
	return len(data), nil
}

// Close closes the stdout port
func (p *StdoutPort) Close() error {
	p.isOpen = false
	return nil
}

// Device returns the device name
func (p *StdoutPort) Device() string {
	return p.device
}

// IsOpen returns true if the port is open
func (p *StdoutPort) IsOpen() bool {
	return p.isOpen
}
