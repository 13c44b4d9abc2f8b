package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"serialbridge/config"
	"serialbridge/format"
	"serialbridge/monitoring"
	"serialbridge/notify"
	"serialbridge/output"
	"serialbridge/serial"
	"serialbridge/session"

	// Import format packages for side-effect registration
	_ "serialbridge/format/barcode"
	_ "serialbridge/format/scale"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (defaults are used when omitted)")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	listPorts := flag.Bool("list-ports", false, "List available serial ports and exit")
	listFormats := flag.Bool("list-formats", false, "List registered device line formats and exit")
	simulate := flag.Bool("simulate", false, "Enable the simulated scale/barcode device")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Display version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "SerialBridge - serial session service for scale and barcode readers\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  %s -config config.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config config.json -validate\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -simulate -debug\n", os.Args[0])
	}

	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Printf("SerialBridge version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Handle list-ports flag
	if *listPorts {
		ports, err := serial.ListPorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing ports: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Available serial ports:")
		if len(ports) == 0 {
			fmt.Println("  (none found)")
		} else {
			for _, port := range ports {
				fmt.Printf("  %s\n", describePort(port))
			}
		}
		os.Exit(0)
	}

	// Handle list-formats flag
	if *listFormats {
		fmt.Println("Registered line formats:")
		if format.Count() == 0 {
			fmt.Println("  (none registered)")
		} else {
			format.ForEach(func(name string, f format.DeviceFormat) {
				fmt.Printf("  %-10s - %s\n", name, f.Description())
			})
		}
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath, *simulate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := config.Validate(cfg, format.List()); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed:\n  %v\n", err)
		os.Exit(1)
	}

	// Handle validate flag
	if *validate {
		fmt.Println("Configuration is valid")
		fmt.Printf("  Instance: %s\n", cfg.App.InstanceID)
		fmt.Printf("  Port: %s (%d baud, auto connect %t)\n", cfg.Session.Port, cfg.Session.BaudRate, cfg.Session.AutoConnect)
		if cfg.Simulator.Enabled {
			fmt.Printf("  Simulator: %v every %s\n", cfg.Simulator.Sequence, cfg.Simulator.GetInterval())
		}
		fmt.Printf("  Monitoring port: %d\n", cfg.Monitoring.Port)
		os.Exit(0)
	}

	// Setup logging
	logger := setupLogging(cfg, *debug)
	slog.SetDefault(logger)

	logger.Info("SerialBridge starting",
		"version", version,
		"instance", cfg.App.InstanceID,
		"port", cfg.Session.Port,
		"simulator", cfg.Simulator.Enabled,
	)

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", "signal", sig)
		cancel()
	}()

	// Session manager over the selected driver
	manager := session.NewManager(newDriver(cfg, logger), logger)

	// Create Slack notifier
	slackNotifier := notify.NewSlackNotifier(&cfg.Slack, &cfg.App, logger)
	if slackNotifier.IsEnabled() {
		slackNotifier.Watch(manager)
	}

	manager.OnStateChange(func(change session.StateChange) {
		logger.Info("Session state", "from", change.From, "to", change.To, "port", change.Port)
	})

	// Start monitoring server
	serverConfigPath := *configPath
	if serverConfigPath == "" {
		serverConfigPath = monitoring.DefaultConfigPath
	}
	monitorServer := monitoring.NewServerWithConfigPath(&cfg.Monitoring, cfg.App.InstanceID, version, manager, logger, serverConfigPath)
	if err := monitorServer.Start(); err != nil {
		logger.Error("Failed to start monitoring server", "error", err)
	}

	if cfg.Session.AutoConnect {
		autoConnect(ctx, manager, cfg.Session.ToSession(), logger)
	}

	// Send startup notification
	if err := slackNotifier.NotifyStartup(ctx, cfg.Session.Port); err != nil {
		logger.Warn("Failed to send startup notification", "error", err)
	}

	startTime := time.Now()
	logger.Info("SerialBridge running", "monitoring_port", cfg.Monitoring.Port)

	go logStats(ctx, manager, cfg.Monitoring.GetStatsInterval(), logger)

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	logger.Info("SerialBridge shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := monitorServer.Stop(shutdownCtx); err != nil {
		logger.Warn("Error stopping monitoring server", "error", err)
	}

	stats := manager.Stats()
	if err := manager.Close(); err != nil {
		logger.Warn("Error closing session", "error", err)
	}

	// Send shutdown notification
	uptime := time.Since(startTime)
	if err := slackNotifier.NotifyShutdown(shutdownCtx, stats, uptime); err != nil {
		logger.Warn("Failed to send shutdown notification", "error", err)
	}

	logger.Info("SerialBridge stopped",
		"uptime", uptime,
		"records_received", stats.RecordsReceived,
	)
}

func loadConfig(path string, simulate bool) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.Parse([]byte(`{}`))
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}

	if simulate && !cfg.Simulator.Enabled {
		cfg.Simulator.Enabled = true
		if cfg.Session.Port == "" {
			cfg.Session.Port = config.SimulatorDevice
		}
	}
	return cfg, nil
}

func newDriver(cfg *config.Config, logger *slog.Logger) serial.Driver {
	system := serial.NewSystemDriver()
	if !cfg.Simulator.Enabled {
		return system
	}
	return output.NewSimulatorDriver(cfg.Simulator, system, logger)
}

// autoConnect opens the configured port once; failures leave the session
// faulted for an operator to retry
func autoConnect(ctx context.Context, manager *session.Manager, cfg session.Config, logger *slog.Logger) {
	msg, err := manager.Connect(ctx, cfg)
	if err != nil {
		logger.Error("Auto connect failed", "port", cfg.PortPath, "error", err)
		return
	}
	logger.Info(msg, "port", cfg.PortPath)
}

func logStats(ctx context.Context, manager *session.Manager, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info := manager.Info()
			logger.Info("Session stats",
				"state", info.State,
				"records", info.Stats.RecordsReceived,
				"bytes_in", info.Stats.BytesReceived,
				"bytes_out", info.Stats.BytesSent,
				"errors", info.Stats.Errors,
				"subscribers", info.Subscribers,
			)
		}
	}
}

func describePort(p serial.PortDescriptor) string {
	s := p.Path
	if p.Product != "" {
		s += " - " + p.Product
	}
	if p.IsUSB {
		s += fmt.Sprintf(" [USB %s:%s]", p.VendorID, p.ProductID)
	}
	if p.SerialNumber != "" {
		s += " S/N " + p.SerialNumber
	}
	return s
}

func setupLogging(cfg *config.Config, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	} else {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler

	// If base path is set, use file logging with rotation
	if cfg.Logging.BasePath != "" {
		logPath := filepath.Join(cfg.Logging.BasePath, cfg.Logging.Filename)
		writer := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		}
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		// Use console logging
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With("app", cfg.App.Name)
}
