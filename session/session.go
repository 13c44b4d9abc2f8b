// Package session owns the single serial connection of the process: its
// state machine, the framing of inbound bytes into records, and the fan-out
// of records, errors and state changes to subscribers.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"serialbridge/framer"
	"serialbridge/serial"
)

// State represents the current state of the session
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosing    State = "closing"
	StateFaulted    State = "faulted"
)

// Status messages returned to callers
const (
	MsgConnected    = "Connected successfully"
	MsgDisconnected = "Disconnected successfully"
	MsgNoConnection = "No active connection"
	MsgSent         = "Data sent successfully"
)

// Stats contains counters for the session across connections
type Stats struct {
	RecordsReceived int64     `json:"records_received"`
	BytesReceived   int64     `json:"bytes_received"`
	BytesSent       int64     `json:"bytes_sent"`
	Errors          int64     `json:"errors"`
	Connects        int64     `json:"connects"`
	LastRecordTime  time.Time `json:"last_record_time"`
	ConnectedAt     time.Time `json:"connected_at"`
	LastError       string    `json:"last_error,omitempty"`
}

// Info is a snapshot of the session for external consumers
type Info struct {
	State       State   `json:"state"`
	Config      *Config `json:"config,omitempty"`
	Buffered    int     `json:"buffered_bytes"`
	Subscribers int     `json:"subscribers"`
	Stats       Stats   `json:"stats"`
}

// Manager mediates every command on the serial line and owns the open handle.
//
// All state lives behind mu. Connect, Disconnect, Send and the transport
// callbacks take it, so their effects on state and the frame buffer never
// interleave. Connect drops the lock while the driver opens the port; the
// connecting state makes concurrent commands fail fast instead of racing.
type Manager struct {
	driver serial.Driver
	logger *slog.Logger
	events *bus

	mu      sync.Mutex
	state   State
	config  *Config
	binding *serial.Binding
	framer  *framer.Framer
	// generation identifies the current handle; callbacks from older handles
	// are dropped.
	generation uint64
	closed     bool
	stats      Stats
	// traffic of handles already released, so Stats stays cumulative
	retiredIn  int64
	retiredOut int64
}

// NewManager creates an idle session manager over driver
func NewManager(driver serial.Driver, logger *slog.Logger) *Manager {
	return &Manager{
		driver: driver,
		logger: logger.With("component", "session"),
		events: newBus(logger),
		state:  StateIdle,
		framer: framer.New(),
	}
}

// ListPorts enumerates available ports. It never fails: on enumeration error
// the list is empty and the returned *EnumerationError is only a warning.
func (m *Manager) ListPorts(ctx context.Context) ([]serial.PortDescriptor, error) {
	ports, err := m.driver.List(ctx)
	if err != nil {
		m.logger.Warn("Failed to list serial ports", "error", err)
		return []serial.PortDescriptor{}, &EnumerationError{Err: err}
	}
	if ports == nil {
		ports = []serial.PortDescriptor{}
	}
	m.logger.Debug("Listed serial ports", "count", len(ports))
	return ports, nil
}

// Connect opens the port described by cfg. An open session is closed first.
// On failure the session is left faulted and a *ConnectionError is returned.
func (m *Manager) Connect(ctx context.Context, cfg Config) (string, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return "", err
	}
	if !IsStandardBaudRate(cfg.BaudRate) {
		m.logger.Warn("Non-standard baud rate requested", "port", cfg.PortPath, "baud_rate", cfg.BaudRate)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrManagerClosed
	}
	switch m.state {
	case StateConnecting:
		m.mu.Unlock()
		return "", ErrConnectInProgress
	case StateOpen:
		m.logger.Info("Closing active connection before reconnect", "port", m.config.PortPath)
		m.closeLocked()
	}

	m.generation++
	gen := m.generation
	m.config = &cfg
	m.framer.Reset()
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	port, openErr := m.driver.Open(ctx, cfg.portConfig())

	m.mu.Lock()
	defer m.mu.Unlock()

	if openErr != nil {
		m.recordErrorLocked(openErr)
		m.setStateLocked(StateFaulted)
		m.logger.Error("Failed to open serial port", "port", cfg.PortPath, "error", openErr)
		return "", &ConnectionError{Port: cfg.PortPath, Err: openErr}
	}

	if m.closed {
		port.Close()
		m.setStateLocked(StateIdle)
		return "", ErrManagerClosed
	}

	binding := serial.NewBinding(port, m.logger)
	m.binding = binding
	m.stats.Connects++
	m.stats.ConnectedAt = time.Now()
	m.setStateLocked(StateOpen)

	binding.Listen(
		func(data []byte) { m.handleData(gen, data) },
		func(err error) { m.handleTransportError(gen, err) },
	)

	m.logger.Info("Serial port connected", "port", cfg.PortPath, "baud_rate", cfg.BaudRate)
	return MsgConnected, nil
}

// Disconnect closes the session. It is a no-op when nothing is connected.
func (m *Manager) Disconnect(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateIdle:
		return MsgNoConnection, nil
	case StateConnecting:
		return "", ErrDisconnectWhileConnecting
	}

	port := ""
	if m.config != nil {
		port = m.config.PortPath
	}
	m.closeLocked()
	m.logger.Info("Serial port disconnected", "port", port)
	return MsgDisconnected, nil
}

// Send writes payload verbatim; the caller supplies any terminator. A write
// failure is returned as *SendError and leaves the session open.
func (m *Manager) Send(ctx context.Context, payload string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateOpen || m.binding == nil {
		return "", ErrNotConnected
	}

	n, err := m.binding.Write([]byte(payload))
	if err != nil {
		m.recordErrorLocked(err)
		m.logger.Warn("Failed to write to port", "port", m.config.PortPath, "error", err)
		return "", &SendError{Port: m.config.PortPath, Err: err}
	}
	if n != len(payload) {
		err := fmt.Errorf("short write: %d of %d bytes", n, len(payload))
		m.recordErrorLocked(err)
		return "", &SendError{Port: m.config.PortPath, Err: err}
	}

	m.logger.Debug("Sent payload", "port", m.config.PortPath, "bytes", n)
	return MsgSent, nil
}

// handleData runs on the binding's read goroutine
func (m *Manager) handleData(gen uint64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation || m.state != StateOpen {
		m.logger.Debug("Discarding bytes from inactive connection", "bytes", len(data))
		return
	}

	now := time.Now()
	for _, payload := range m.framer.Feed(data) {
		rec := Record{
			SourcePort: m.config.PortPath,
			Payload:    payload,
			ObservedAt: now,
		}
		m.stats.RecordsReceived++
		m.stats.LastRecordTime = now
		m.logger.Debug("Received record", "port", rec.SourcePort, "data", rec.Payload)
		m.events.publish(Event{Kind: EventRecord, Record: &rec})
	}
}

// handleTransportError runs on the binding's read goroutine
func (m *Manager) handleTransportError(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation || m.state != StateOpen {
		m.logger.Debug("Ignoring error from inactive connection", "error", err)
		return
	}

	terr := &TransportError{Port: m.config.PortPath, Err: err}
	m.logger.Error("Serial port error", "port", m.config.PortPath, "error", err)
	m.recordErrorLocked(err)
	m.releaseLocked()
	m.setStateLocked(StateFaulted)
	m.events.publish(Event{Kind: EventError, Error: terr.Error()})
}

// closeLocked walks open/faulted -> closing -> idle
func (m *Manager) closeLocked() {
	m.setStateLocked(StateClosing)
	m.releaseLocked()
	m.setStateLocked(StateIdle)
}

// releaseLocked closes the handle and clears the frame buffer
func (m *Manager) releaseLocked() {
	if m.binding != nil {
		stats := m.binding.Stats()
		m.retiredIn += stats.BytesReceived
		m.retiredOut += stats.BytesSent
		if err := m.binding.Close(); err != nil {
			m.logger.Warn("Error closing serial port", "error", err)
		}
		m.binding = nil
	}
	m.framer.Reset()
}

func (m *Manager) recordErrorLocked(err error) {
	m.stats.Errors++
	m.stats.LastError = err.Error()
}

func (m *Manager) setStateLocked(state State) {
	if m.state == state {
		return
	}
	change := StateChange{From: m.state, To: state, At: time.Now()}
	if m.config != nil {
		change.Port = m.config.PortPath
	}
	m.state = state
	m.logger.Debug("Session state changed", "from", change.From, "to", change.To)
	m.events.publish(Event{Kind: EventState, State: &change})
}

// State returns the current session state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Config returns the configuration of the current or last session
func (m *Manager) Config() (Config, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		return Config{}, false
	}
	return *m.config, true
}

// Stats returns a copy of the current statistics
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

func (m *Manager) statsLocked() Stats {
	stats := m.stats
	stats.BytesReceived = m.retiredIn
	stats.BytesSent = m.retiredOut
	if m.binding != nil {
		live := m.binding.Stats()
		stats.BytesReceived += live.BytesReceived
		stats.BytesSent += live.BytesSent
	}
	return stats
}

// Info returns a snapshot of the session
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := Info{
		State:       m.state,
		Buffered:    m.framer.Buffered(),
		Subscribers: m.events.count(),
		Stats:       m.statsLocked(),
	}
	if m.config != nil {
		cfg := *m.config
		info.Config = &cfg
	}
	return info
}

// Subscribe registers handler for every event and returns its subscription ID
func (m *Manager) Subscribe(handler func(Event)) string {
	return m.events.subscribe(handler)
}

// OnRecord registers a handler for framed records
func (m *Manager) OnRecord(handler func(Record)) string {
	return m.events.subscribe(func(ev Event) {
		if ev.Kind == EventRecord {
			handler(*ev.Record)
		}
	})
}

// OnError registers a handler for transport error messages
func (m *Manager) OnError(handler func(message string)) string {
	return m.events.subscribe(func(ev Event) {
		if ev.Kind == EventError {
			handler(ev.Error)
		}
	})
}

// OnStateChange registers a handler for state transitions
func (m *Manager) OnStateChange(handler func(StateChange)) string {
	return m.events.subscribe(func(ev Event) {
		if ev.Kind == EventState {
			handler(*ev.State)
		}
	})
}

// Unsubscribe detaches one subscription. It reports whether id was known.
func (m *Manager) Unsubscribe(id string) bool {
	return m.events.unsubscribe(id)
}

// RemoveAllSubscriptions detaches every subscriber; undelivered events are
// dropped.
func (m *Manager) RemoveAllSubscriptions() {
	n := m.events.removeAll()
	m.logger.Debug("Removed all subscriptions", "count", n)
}

// Close shuts the manager down: the connection is closed and subscribers are
// detached. Further commands fail with ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	if m.state == StateOpen || m.state == StateFaulted {
		m.closeLocked()
	}
	m.mu.Unlock()

	m.RemoveAllSubscriptions()
	return nil
}
