package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// ValidationError contains details about configuration validation failures
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors. availableFormats lists the
// line formats the simulator may reference.
func Validate(cfg *Config, availableFormats []string) error {
	var errors ValidationErrors

	errors = append(errors, validateSession(&cfg.Session)...)

	if cfg.Simulator.Enabled {
		errors = append(errors, validateSimulator(&cfg.Simulator, availableFormats)...)
	}

	// Validate logging
	if cfg.Logging.BasePath != "" {
		if info, err := os.Stat(cfg.Logging.BasePath); err != nil || !info.IsDir() {
			errors = append(errors, ValidationError{
				Field:   "logging.base_path",
				Message: fmt.Sprintf("directory does not exist: %s", cfg.Logging.BasePath),
			})
		}
	}
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(cfg.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level: %s (must be one of %s)", cfg.Logging.Level, strings.Join(validLevels, ", ")),
		})
	}

	// Validate monitoring
	if cfg.Monitoring.Port < 1 || cfg.Monitoring.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "monitoring.port",
			Message: "must be between 1 and 65535",
		})
	}
	if cfg.Monitoring.RecentRecords < 1 {
		errors = append(errors, ValidationError{
			Field:   "monitoring.recent_records",
			Message: "must be at least 1",
		})
	}
	if cfg.Monitoring.CommandsPerSecond <= 0 {
		errors = append(errors, ValidationError{
			Field:   "monitoring.commands_per_second",
			Message: "must be greater than 0",
		})
	}
	if cfg.Monitoring.CommandBurst < 1 {
		errors = append(errors, ValidationError{
			Field:   "monitoring.command_burst",
			Message: "must be at least 1",
		})
	}

	// Validate slack
	if cfg.Slack.WebhookURL != "" && !strings.HasPrefix(cfg.Slack.WebhookURL, "https://") {
		errors = append(errors, ValidationError{
			Field:   "slack.webhook_url",
			Message: "must be an https URL",
		})
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func validateSession(s *SessionConfig) ValidationErrors {
	var errors ValidationErrors

	if s.AutoConnect && strings.TrimSpace(s.Port) == "" {
		errors = append(errors, ValidationError{
			Field:   "session.port",
			Message: "port is required when auto_connect is set",
		})
	}

	// Non-standard rates are allowed; the session logs a warning for them
	if s.BaudRate < 0 {
		errors = append(errors, ValidationError{
			Field:   "session.baud_rate",
			Message: fmt.Sprintf("invalid baud rate: %d", s.BaudRate),
		})
	}

	if s.DataBits < 5 || s.DataBits > 8 {
		errors = append(errors, ValidationError{
			Field:   "session.data_bits",
			Message: "must be between 5 and 8",
		})
	}

	if s.StopBits != 1 && s.StopBits != 2 {
		errors = append(errors, ValidationError{
			Field:   "session.stop_bits",
			Message: "must be 1 or 2",
		})
	}

	validParity := []string{"none", "odd", "even", "mark", "space"}
	if !slices.Contains(validParity, strings.ToLower(s.Parity)) {
		errors = append(errors, ValidationError{
			Field:   "session.parity",
			Message: fmt.Sprintf("invalid parity: %s", s.Parity),
		})
	}

	return errors
}

func validateSimulator(sim *SimulatorConfig, availableFormats []string) ValidationErrors {
	var errors ValidationErrors

	for i, name := range sim.Sequence {
		if !slices.Contains(availableFormats, strings.ToLower(name)) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("simulator.sequence[%d]", i),
				Message: fmt.Sprintf("unknown format: %s (available: %s)", name, strings.Join(availableFormats, ", ")),
			})
		}
	}

	if sim.IntervalMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "simulator.interval_ms",
			Message: "must be at least 1 millisecond",
		})
	}

	if sim.JitterPercent < 0 || sim.JitterPercent > 100 {
		errors = append(errors, ValidationError{
			Field:   "simulator.jitter_percent",
			Message: "must be between 0 and 100",
		})
	}

	if sim.MinWeight < 0 {
		errors = append(errors, ValidationError{
			Field:   "simulator.min_weight",
			Message: "must not be negative",
		})
	}
	if sim.MaxWeight <= sim.MinWeight {
		errors = append(errors, ValidationError{
			Field:   "simulator.max_weight",
			Message: "must be greater than min_weight",
		})
	}

	for i, code := range sim.Barcodes {
		if len(code) <= 5 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("simulator.barcodes[%d]", i),
				Message: "must be longer than 5 characters",
			})
		}
	}

	return errors
}
