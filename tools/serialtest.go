package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"serialbridge/config"
	"serialbridge/format"
	_ "serialbridge/format/barcode"
	_ "serialbridge/format/scale"
	"serialbridge/framer"
	"serialbridge/generator"
	"serialbridge/output"
	"serialbridge/serial"
)

func main() {
	mode := flag.String("mode", "listen", "Mode: list, listen, send, simulate, or loopback")
	device := flag.String("device", "/dev/ttyS0", "Serial device")
	baud := flag.Int("baud", 9600, "Baud rate")
	message := flag.String("message", "TEST", "Message to send")
	count := flag.Int("count", 10, "Number of messages")
	interval := flag.Duration("interval", 1*time.Second, "Interval between sends or simulated lines")
	duration := flag.Duration("duration", 30*time.Second, "How long simulate runs (0 = until Ctrl+C)")
	demo := flag.Bool("demo", false, "Simulate to stdout instead of a serial port")
	flag.Parse()

	cfg := serial.PortConfig{
		Device:   *device,
		BaudRate: *baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
	}

	switch *mode {
	case "list":
		listPorts()
	case "listen":
		listenTest(cfg)
	case "send":
		sendTest(cfg, *message, *count, *interval)
	case "simulate":
		simulate(cfg, *interval, *duration, *demo)
	case "loopback":
		loopbackTest(cfg, *message)
	default:
		log.Fatal("Invalid mode. Use: list, listen, send, simulate, or loopback")
	}
}

func listPorts() {
	ports, err := serial.ListPorts()
	if err != nil {
		log.Fatalf("Failed to list ports: %v", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return
	}
	for _, p := range ports {
		line := p.Path
		if p.IsUSB {
			line += fmt.Sprintf("  USB %s:%s %s %s", p.VendorID, p.ProductID, p.Product, p.SerialNumber)
		}
		fmt.Println(line)
	}
}

// listenTest prints every framed line with its classification
func listenTest(cfg serial.PortConfig) {
	port, err := serial.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open port: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	binding := serial.NewBinding(port, logger)
	defer binding.Close()

	fmt.Printf("Listening on %s at %d baud\n", cfg.Device, cfg.BaudRate)
	fmt.Print("Press Ctrl+C to stop\n\n")

	f := framer.New()
	binding.Listen(func(data []byte) {
		for _, payload := range f.Feed(data) {
			reading, err := format.Parse(payload)
			stamp := time.Now().Format("15:04:05.000")
			switch {
			case err != nil:
				fmt.Printf("[%s] %-8s %q (%v)\n", stamp, "invalid", payload, err)
			case reading.Kind == "scale":
				fmt.Printf("[%s] %-8s %.2f\n", stamp, reading.Kind, reading.Weight)
			case reading.Kind == "barcode":
				fmt.Printf("[%s] %-8s %s\n", stamp, reading.Kind, reading.Code)
			default:
				fmt.Printf("[%s] %-8s %q\n", stamp, reading.Kind, payload)
			}
		}
	}, func(err error) {
		fmt.Printf("Read error: %v\n", err)
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-binding.Done():
	}
	fmt.Printf("\n%d bytes pending without terminator\n", f.Buffered())
}

func sendTest(cfg serial.PortConfig, message string, count int, interval time.Duration) {
	port, err := serial.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open port: %v", err)
	}
	defer port.Close()

	fmt.Printf("Sending on %s at %d baud\n", cfg.Device, cfg.BaudRate)
	fmt.Printf("Message: %s\n", message)
	fmt.Printf("Count: %d, Interval: %v\n\n", count, interval)

	for i := 0; i < count; i++ {
		n, err := port.Write([]byte(message + format.Terminator))
		if err != nil {
			log.Printf("Write error: %v", err)
			continue
		}
		fmt.Printf("Sent %d bytes: %s\n", n, message)
		time.Sleep(interval)
	}
	fmt.Println("\nSend test complete")
}

// simulate plays a scale/barcode device on cfg.Device, or stdout with demo
func simulate(cfg serial.PortConfig, interval, duration time.Duration, demo bool) {
	simCfg, err := config.Parse([]byte(`{"simulator":{"enabled":true}}`))
	if err != nil {
		log.Fatalf("Failed to build simulator config: %v", err)
	}
	simCfg.Simulator.IntervalMs = int(interval / time.Millisecond)

	gen, err := generator.New(&simCfg.Simulator, time.Now().UnixNano())
	if err != nil {
		log.Fatalf("Failed to create generator: %v", err)
	}

	var port serial.Port
	if demo {
		port = serial.NewStdoutPort("stdout")
	} else {
		port, err = serial.Open(cfg)
		if err != nil {
			log.Fatalf("Failed to open port: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ch := output.NewChannel(port, gen, logger)

	fmt.Fprintf(os.Stderr, "Simulating %v on %s every %v\n", gen.Sequence(), port.Device(), interval)
	ch.Start(ctx)

	select {
	case <-ctx.Done():
	case <-ch.Done():
	}
	ch.Stop()

	stats := ch.Stats()
	fmt.Fprintf(os.Stderr, "Sent %d lines (%d bytes), %d errors\n", stats.LinesSent, stats.BytesSent, stats.Errors)
}

func loopbackTest(cfg serial.PortConfig, message string) {
	port, err := serial.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open port: %v", err)
	}
	defer port.Close()

	fmt.Printf("Loopback test on %s at %d baud\n", cfg.Device, cfg.BaudRate)
	fmt.Print("Connect pins 2 and 3 (TX and RX) with a jumper\n\n")

	f := framer.New()
	buf := make([]byte, 256)

	for i := 0; i < 5; i++ {
		testMsg := fmt.Sprintf("%s-%d", message, i+1)
		fmt.Printf("Sending: %s\n", testMsg)

		if _, err := port.Write([]byte(testMsg + format.Terminator)); err != nil {
			log.Printf("Write error: %v", err)
			continue
		}

		// Try to receive with timeout
		time.Sleep(100 * time.Millisecond)
		n, err := port.Read(buf)
		switch {
		case err != nil:
			fmt.Printf("  ✗ No data received (error: %v)\n", err)
		case n == 0:
			fmt.Printf("  ✗ No data received (timeout)\n")
		default:
			lines := f.Feed(buf[:n])
			if len(lines) == 1 && lines[0] == testMsg {
				fmt.Printf("  ✓ Loopback OK: %s\n", lines[0])
			} else {
				fmt.Printf("  ? Received different: %q\n", buf[:n])
				f.Reset()
			}
		}

		time.Sleep(1 * time.Second)
	}
}
