package serial

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// readTimeout bounds a single Read so a Binding can notice Close promptly on
// platforms where closing does not interrupt a blocked read.
const readTimeout = 500 * time.Millisecond

// allow tests to override the platform calls
var (
	openPort         = serial.Open
	getDetailedPorts = enumerator.GetDetailedPortsList
	getPortsList     = serial.GetPortsList
)

// RealPort implements Port using a real serial port
type RealPort struct {
	port   serial.Port
	config PortConfig

	mu     sync.Mutex
	isOpen bool
}

// Open opens a serial port with the given configuration
func Open(config PortConfig) (*RealPort, error) {
	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
		StopBits: convertStopBits(config.StopBits),
		Parity:   convertParity(config.Parity),
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}

	port, err := openPort(config.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", config.Device, err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &RealPort{
		port:   port,
		config: config,
		isOpen: true,
	}, nil
}

// Read reads available bytes. A timeout yields (0, nil).
func (p *RealPort) Read(buf []byte) (int, error) {
	if !p.IsOpen() {
		return 0, ErrPortClosed
	}
	return p.port.Read(buf)
}

// Write writes data to the serial port
func (p *RealPort) Write(data []byte) (int, error) {
	if !p.IsOpen() {
		return 0, ErrPortClosed
	}
	return p.port.Write(data)
}

// Close closes the serial port
func (p *RealPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isOpen {
		return nil
	}
	p.isOpen = false
	return p.port.Close()
}

// Flush waits until all output has been transmitted
func (p *RealPort) Flush() error {
	if !p.IsOpen() {
		return ErrPortClosed
	}
	return p.port.Drain()
}

// Device returns the device path
func (p *RealPort) Device() string {
	return p.config.Device
}

// IsOpen returns true if the port is currently open
func (p *RealPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isOpen
}

// SystemDriver opens and enumerates ports through go.bug.st/serial.
type SystemDriver struct{}

// NewSystemDriver returns the hardware-backed driver
func NewSystemDriver() *SystemDriver {
	return &SystemDriver{}
}

// Open opens the configured device
func (d *SystemDriver) Open(ctx context.Context, cfg PortConfig) (Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Open(cfg)
}

// List returns the available serial ports with USB details where the
// platform provides them.
func (d *SystemDriver) List(ctx context.Context) ([]PortDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ListPorts()
}

// ListPorts returns a list of available serial ports
func ListPorts() ([]PortDescriptor, error) {
	details, err := getDetailedPorts()
	if err == nil {
		ports := make([]PortDescriptor, 0, len(details))
		for _, d := range details {
			ports = append(ports, PortDescriptor{
				Path:         d.Name,
				Product:      d.Product,
				SerialNumber: d.SerialNumber,
				VendorID:     d.VID,
				ProductID:    d.PID,
				IsUSB:        d.IsUSB,
			})
		}
		return ports, nil
	}

	// Detailed enumeration is unsupported on some platforms; fall back to names.
	names, listErr := getPortsList()
	if listErr != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", listErr)
	}
	ports := make([]PortDescriptor, 0, len(names))
	for _, name := range names {
		ports = append(ports, PortDescriptor{Path: name})
	}
	return ports, nil
}

func convertStopBits(bits int) serial.StopBits {
	switch bits {
	case 1:
		return serial.OneStopBit
	case 2:
		return serial.TwoStopBits
	default:
		return serial.OneStopBit
	}
}

func convertParity(parity string) serial.Parity {
	switch parity {
	case "odd":
		return serial.OddParity
	case "even":
		return serial.EvenParity
	case "mark":
		return serial.MarkParity
	case "space":
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}
