package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"serialbridge/session"
)

// SimulatorDevice is the port path served by the built-in simulator driver
const SimulatorDevice = "sim://scale-barcode"

// DefaultBarcodes is the pool the simulator draws barcode lines from
var DefaultBarcodes = []string{
	"1234567890123",
	"9876543210987",
	"4567891234567",
	"7891234567890",
	"ABC123DEF456",
	"555666777888",
}

// Config is the root configuration structure
type Config struct {
	App        AppConfig        `json:"app"`
	Session    SessionConfig    `json:"session"`
	Simulator  SimulatorConfig  `json:"simulator"`
	Logging    LoggingConfig    `json:"logging"`
	Monitoring MonitoringConfig `json:"monitoring"`
	Slack      SlackConfig      `json:"slack"`
}

// AppConfig contains application metadata
type AppConfig struct {
	Name       string `json:"name"`
	InstanceID string `json:"instance_id"`
}

// SessionConfig holds the connection opened on startup
type SessionConfig struct {
	Port        string `json:"port"`
	BaudRate    int    `json:"baud_rate"`
	DataBits    int    `json:"data_bits"`
	StopBits    int    `json:"stop_bits"`
	Parity      string `json:"parity"`
	AutoConnect bool   `json:"auto_connect"`
}

// SimulatorConfig controls the synthetic scale/barcode device
type SimulatorConfig struct {
	Enabled bool `json:"enabled"`

	// Sequence is the repeating pattern of line formats, e.g. scale, scale, barcode
	Sequence      []string `json:"sequence"`
	IntervalMs    int      `json:"interval_ms"`
	JitterPercent float64  `json:"jitter_percent"`
	MinWeight     float64  `json:"min_weight"`
	MaxWeight     float64  `json:"max_weight"`
	Barcodes      []string `json:"barcodes"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level      string `json:"level"`
	BasePath   string `json:"base_path"`
	Filename   string `json:"filename"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	Compress   bool   `json:"compress"`
}

// MonitoringConfig defines the HTTP control and monitoring surface
type MonitoringConfig struct {
	Port             int `json:"port"`
	StatsIntervalSec int `json:"stats_interval_sec"`
	RecentRecords    int `json:"recent_records"`

	// CommandsPerSecond limits connect/disconnect/send requests
	CommandsPerSecond float64 `json:"commands_per_second"`
	CommandBurst      int     `json:"command_burst"`
}

// SlackConfig defines Slack notification settings
type SlackConfig struct {
	WebhookURL     string `json:"webhook_url"`
	NotifyStartup  bool   `json:"notify_startup"`
	NotifyShutdown bool   `json:"notify_shutdown"`
	NotifyErrors   bool   `json:"notify_errors"`
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a JSON configuration and applies defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Save writes cfg to path as indented JSON
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyDefaults sets default values for unspecified fields
func (c *Config) applyDefaults() {
	// App defaults
	if c.App.Name == "" {
		c.App.Name = "SerialBridge"
	}
	if c.App.InstanceID == "" {
		hostname, _ := os.Hostname()
		c.App.InstanceID = hostname
	}

	// Session defaults
	if c.Session.BaudRate == 0 {
		c.Session.BaudRate = session.DefaultBaudRate
	}
	if c.Session.DataBits == 0 {
		c.Session.DataBits = 8
	}
	if c.Session.StopBits == 0 {
		c.Session.StopBits = 1
	}
	if c.Session.Parity == "" {
		c.Session.Parity = "none"
	}

	// Simulator defaults
	if len(c.Simulator.Sequence) == 0 {
		c.Simulator.Sequence = []string{"scale", "scale", "barcode"}
	}
	if c.Simulator.IntervalMs == 0 {
		c.Simulator.IntervalMs = 3000
	}
	if c.Simulator.JitterPercent == 0 {
		c.Simulator.JitterPercent = 10.0
	}
	if c.Simulator.MinWeight == 0 && c.Simulator.MaxWeight == 0 {
		c.Simulator.MinWeight = 0.1
		c.Simulator.MaxWeight = 10.1
	}
	if len(c.Simulator.Barcodes) == 0 {
		c.Simulator.Barcodes = append([]string(nil), DefaultBarcodes...)
	}
	if c.Simulator.Enabled && c.Session.Port == "" {
		c.Session.Port = SimulatorDevice
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Filename == "" {
		c.Logging.Filename = "serialbridge.log"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 50
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}

	// Monitoring defaults
	if c.Monitoring.Port == 0 {
		c.Monitoring.Port = 8080
	}
	if c.Monitoring.StatsIntervalSec == 0 {
		c.Monitoring.StatsIntervalSec = 60
	}
	if c.Monitoring.RecentRecords == 0 {
		c.Monitoring.RecentRecords = 100
	}
	if c.Monitoring.CommandsPerSecond == 0 {
		c.Monitoring.CommandsPerSecond = 5
	}
	if c.Monitoring.CommandBurst == 0 {
		c.Monitoring.CommandBurst = 10
	}
}

// ToSession converts the startup connection settings
func (c *SessionConfig) ToSession() session.Config {
	return session.Config{
		PortPath: c.Port,
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		StopBits: c.StopBits,
		Parity:   c.Parity,
	}
}

// GetInterval returns the nominal time between simulated lines
func (c *SimulatorConfig) GetInterval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// GetStatsInterval returns the period of the stats log line
func (c *MonitoringConfig) GetStatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalSec) * time.Second
}
