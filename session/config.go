package session

import (
	"slices"
	"strings"

	"serialbridge/serial"
)

// DefaultBaudRate is used when a connect request leaves the rate unset
const DefaultBaudRate = 9600

// StandardBaudRates are the rates offered to users. Other positive rates are
// passed through to the transport.
var StandardBaudRates = []int{9600, 19200, 38400, 57600, 115200}

// Config describes one connection. It is fixed for the life of a session.
type Config struct {
	PortPath string `json:"port"`
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits,omitempty"`
	StopBits int    `json:"stop_bits,omitempty"`
	Parity   string `json:"parity,omitempty"`
}

// Normalize applies defaults and validates the configuration
func (c Config) Normalize() (Config, error) {
	cfg := c
	cfg.PortPath = strings.TrimSpace(cfg.PortPath)
	if cfg.PortPath == "" {
		return cfg, &ConfigError{Field: "port", Message: "port path is required"}
	}

	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.BaudRate < 0 {
		return cfg, &ConfigError{Field: "baud_rate", Message: "must be positive"}
	}

	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.DataBits < 5 || cfg.DataBits > 8 {
		return cfg, &ConfigError{Field: "data_bits", Message: "must be between 5 and 8"}
	}

	if cfg.StopBits == 0 {
		cfg.StopBits = 1
	}
	if cfg.StopBits != 1 && cfg.StopBits != 2 {
		return cfg, &ConfigError{Field: "stop_bits", Message: "must be 1 or 2"}
	}

	cfg.Parity = strings.ToLower(strings.TrimSpace(cfg.Parity))
	switch cfg.Parity {
	case "":
		cfg.Parity = "none"
	case "none", "odd", "even", "mark", "space":
	default:
		return cfg, &ConfigError{Field: "parity", Message: "must be none, odd, even, mark or space"}
	}

	return cfg, nil
}

// IsStandardBaudRate reports whether rate is one of StandardBaudRates
func IsStandardBaudRate(rate int) bool {
	return slices.Contains(StandardBaudRates, rate)
}

func (c Config) portConfig() serial.PortConfig {
	return serial.PortConfig{
		Device:   c.PortPath,
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		StopBits: c.StopBits,
		Parity:   c.Parity,
	}
}
