package serial

import (
	"context"
	"io"
	"sync"
	"time"
)

// PortConfig contains serial port configuration settings
type PortConfig struct {
	Device   string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string // "none", "odd", "even", "mark", "space"
}

// PortDescriptor is a snapshot of one enumerated serial device.
// Optional fields are empty when the platform does not report them.
type PortDescriptor struct {
	Path         string `json:"path"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Product      string `json:"product,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	VendorID     string `json:"vendor_id,omitempty"`
	ProductID    string `json:"product_id,omitempty"`
	IsUSB        bool   `json:"is_usb"`
}

// Port defines the interface for serial port operations
type Port interface {
	io.ReadWriteCloser

	// Device returns the device path
	Device() string

	// IsOpen returns true if the port is currently open
	IsOpen() bool
}

// Driver enumerates and opens ports. SystemDriver talks to real hardware;
// MockDriver and the simulator's driver provide alternative byte sources.
type Driver interface {
	List(ctx context.Context) ([]PortDescriptor, error)
	Open(ctx context.Context, cfg PortConfig) (Port, error)
}

// Stats tracks traffic counters for an open port
type Stats struct {
	BytesSent     int64
	BytesReceived int64
	Errors        int64
	LastReadTime  time.Time
	OpenedAt      time.Time
}

// PortWithStats wraps a Port with statistics tracking
type PortWithStats struct {
	Port

	mu    sync.Mutex
	stats Stats
}

// NewPortWithStats creates a new port wrapper with statistics
func NewPortWithStats(port Port) *PortWithStats {
	return &PortWithStats{
		Port: port,
		stats: Stats{
			OpenedAt: time.Now(),
		},
	}
}

// Read reads from the port and tracks received bytes
func (p *PortWithStats) Read(buf []byte) (int, error) {
	n, err := p.Port.Read(buf)
	p.mu.Lock()
	defer p.mu.Unlock()
	if n > 0 {
		p.stats.BytesReceived += int64(n)
		p.stats.LastReadTime = time.Now()
	}
	return n, err
}

// Write writes data to the port and tracks statistics
func (p *PortWithStats) Write(data []byte) (int, error) {
	n, err := p.Port.Write(data)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.stats.Errors++
		return n, err
	}
	p.stats.BytesSent += int64(n)
	return n, nil
}

// IncrementErrors increments the error counter
func (p *PortWithStats) IncrementErrors() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Errors++
}

// Stats returns a copy of the current statistics
func (p *PortWithStats) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
