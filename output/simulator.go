package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"serialbridge/config"
	"serialbridge/generator"
	"serialbridge/serial"
)

// SimulatorDriver serves a synthetic scale/barcode device next to the ports
// of an optional fallback driver. Opening the simulator path returns a port
// whose inbound bytes come from a Channel running in the background.
type SimulatorDriver struct {
	cfg      config.SimulatorConfig
	fallback serial.Driver
	logger   *slog.Logger

	mu     sync.Mutex
	active *SimulatedPort
}

// NewSimulatorDriver creates a driver for cfg. fallback may be nil.
func NewSimulatorDriver(cfg config.SimulatorConfig, fallback serial.Driver, logger *slog.Logger) *SimulatorDriver {
	return &SimulatorDriver{
		cfg:      cfg,
		fallback: fallback,
		logger:   logger.With("component", "simulator"),
	}
}

// Descriptor describes the simulated device in port listings
func (d *SimulatorDriver) Descriptor() serial.PortDescriptor {
	return serial.PortDescriptor{
		Path:         config.SimulatorDevice,
		Manufacturer: "serialbridge",
		Product:      "Simulated scale and barcode reader",
	}
}

// List returns the fallback's ports followed by the simulator
func (d *SimulatorDriver) List(ctx context.Context) ([]serial.PortDescriptor, error) {
	var ports []serial.PortDescriptor
	if d.fallback != nil {
		list, err := d.fallback.List(ctx)
		if err != nil {
			d.logger.Warn("Fallback port listing failed", "error", err)
		} else {
			ports = append(ports, list...)
		}
	}
	return append(ports, d.Descriptor()), nil
}

// Open starts a simulated device for the simulator path and defers every
// other path to the fallback driver
func (d *SimulatorDriver) Open(ctx context.Context, cfg serial.PortConfig) (serial.Port, error) {
	if cfg.Device != config.SimulatorDevice {
		if d.fallback == nil {
			return nil, fmt.Errorf("failed to open serial port %s: no such device", cfg.Device)
		}
		return d.fallback.Open(ctx, cfg)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gen, err := generator.New(&d.cfg, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to start simulator: %w", err)
	}

	port := newSimulatedPort(cfg.Device, gen, d.logger)

	d.mu.Lock()
	prev := d.active
	d.active = port
	d.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	d.logger.Info("Simulated device opened", "baud_rate", cfg.BaudRate, "interval", d.cfg.GetInterval())
	return port, nil
}

// Active returns the currently open simulated port, or nil
func (d *SimulatorDriver) Active() *SimulatedPort {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active != nil && !d.active.IsOpen() {
		return nil
	}
	return d.active
}

// SimulatedPort is the host side of a simulated device. Lines produced by the
// device are returned by Read; bytes written by the host are counted and
// dropped, as the device does not answer.
type SimulatedPort struct {
	device  string
	pr      *io.PipeReader
	channel *Channel
	logger  *slog.Logger

	mu       sync.Mutex
	open     bool
	received int64
}

func newSimulatedPort(device string, gen *generator.Generator, logger *slog.Logger) *SimulatedPort {
	pr, pw := io.Pipe()
	p := &SimulatedPort{
		device: device,
		pr:     pr,
		logger: logger,
		open:   true,
	}
	p.channel = NewChannel(&deviceSide{device: device, pw: pw}, gen, logger)
	p.channel.Start(context.Background())
	return p
}

// Read returns bytes written by the simulated device
func (p *SimulatedPort) Read(buf []byte) (int, error) {
	return p.pr.Read(buf)
}

// Write accepts host bytes
func (p *SimulatedPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return 0, serial.ErrPortClosed
	}
	p.received += int64(len(data))
	p.logger.Debug("Simulated device received data", "data", string(data))
	return len(data), nil
}

// Close stops the device and ends pending reads
func (p *SimulatedPort) Close() error {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return nil
	}
	p.open = false
	p.mu.Unlock()

	p.channel.Stop()
	return p.pr.Close()
}

// Device returns the simulator path
func (p *SimulatedPort) Device() string {
	return p.device
}

// IsOpen reports whether the port is open
func (p *SimulatedPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Received returns how many bytes the host has written
func (p *SimulatedPort) Received() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received
}

// Stats returns the device-side output statistics
func (p *SimulatedPort) Stats() ChannelStats {
	return p.channel.Stats()
}

// deviceSide is the device end of the pipe; the Channel writes into it
type deviceSide struct {
	device string
	pw     *io.PipeWriter

	mu     sync.Mutex
	closed bool
}

func (s *deviceSide) Read([]byte) (int, error) {
	return 0, io.EOF
}

func (s *deviceSide) Write(data []byte) (int, error) {
	return s.pw.Write(data)
}

func (s *deviceSide) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.pw.Close()
}

func (s *deviceSide) Device() string {
	return s.device
}

func (s *deviceSide) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}
