package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"serialbridge/generator"
	"serialbridge/serial"
)

// ChannelState represents the current state of an output channel
type ChannelState string

const (
	StateInitializing ChannelState = "initializing"
	StateRunning      ChannelState = "running"
	StateStopped      ChannelState = "stopped"
	StateError        ChannelState = "error"
)

// flusher is implemented by ports that buffer writes
type flusher interface {
	Flush() error
}

// Channel writes generated device lines to one port at the generator's rate
type Channel struct {
	generator *generator.Generator
	port      serial.Port
	portStats *serial.PortWithStats
	logger    *slog.Logger

	state      ChannelState
	stateMutex sync.RWMutex

	// Statistics
	stats      ChannelStats
	statsMutex sync.RWMutex

	// Control
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// ChannelStats contains statistics for an output channel
type ChannelStats struct {
	LinesSent    int64     `json:"lines_sent"`
	BytesSent    int64     `json:"bytes_sent"`
	Errors       int64     `json:"errors"`
	LastLineTime time.Time `json:"last_line_time"`
	StartTime    time.Time `json:"start_time"`
	LastError    string    `json:"last_error,omitempty"`
}

// NewChannel creates an output channel over an already open port
func NewChannel(port serial.Port, gen *generator.Generator, logger *slog.Logger) *Channel {
	return &Channel{
		generator: gen,
		port:      port,
		portStats: serial.NewPortWithStats(port),
		logger:    logger.With("device", port.Device()),
		state:     StateInitializing,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		stats: ChannelStats{
			StartTime: time.Now(),
		},
	}
}

// Start begins writing lines until ctx ends, Stop is called or the port fails
func (c *Channel) Start(ctx context.Context) {
	c.setState(StateRunning)
	c.logger.Info("Output channel started", "sequence", c.generator.Sequence())

	c.wg.Add(1)
	go c.outputLoop(ctx)
	go func() {
		c.wg.Wait()
		close(c.done)
	}()
}

// Stop halts the loop and closes the port
func (c *Channel) Stop() {
	c.stopOnce.Do(func() {
		c.logger.Info("Stopping output channel")
		close(c.stopCh)
		// closing first unblocks a write stuck on a slow reader
		if err := c.port.Close(); err != nil {
			c.logger.Warn("Error closing port", "error", err)
		}
		c.wg.Wait()

		if c.State() != StateError {
			c.setState(StateStopped)
		}
		stats := c.Stats()
		c.logger.Info("Output channel stopped",
			"lines_sent", stats.LinesSent,
			"bytes_sent", stats.BytesSent,
		)
	})
}

// Done is closed once the output loop has exited
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// State returns the current channel state
func (c *Channel) State() ChannelState {
	c.stateMutex.RLock()
	defer c.stateMutex.RUnlock()
	return c.state
}

// Stats returns a copy of the current statistics
func (c *Channel) Stats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

// Device returns the device path
func (c *Channel) Device() string {
	return c.port.Device()
}

func (c *Channel) setState(state ChannelState) {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	c.state = state
}

func (c *Channel) stopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Channel) outputLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := generator.NewTicker(c.generator.RateLimiter())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			if err := c.sendNextLine(ctx); err != nil {
				if c.stopping() || ctx.Err() != nil {
					return
				}
				if !c.handleError(err) {
					return
				}
			}
		}
	}
}

func (c *Channel) sendNextLine(ctx context.Context) error {
	line, err := c.generator.NextLine(ctx)
	if err != nil {
		return fmt.Errorf("failed to get next line: %w", err)
	}

	n, err := c.portStats.Write(line.Output())
	if err != nil {
		return fmt.Errorf("failed to write to port: %w", err)
	}

	if f, ok := c.port.(flusher); ok {
		if err := f.Flush(); err != nil {
			c.logger.Warn("Failed to flush port", "error", err)
		}
	}

	c.statsMutex.Lock()
	c.stats.LinesSent++
	c.stats.BytesSent += int64(n)
	c.stats.LastLineTime = time.Now()
	c.statsMutex.Unlock()

	c.logger.Debug("Sent line", "format", line.Format, "data", line.Text, "bytes", n)
	return nil
}

// handleError records err and reports whether the loop may continue
func (c *Channel) handleError(err error) bool {
	c.statsMutex.Lock()
	c.stats.Errors++
	c.stats.LastError = err.Error()
	c.statsMutex.Unlock()

	c.logger.Error("Output error", "error", err)

	if !c.port.IsOpen() || errors.Is(err, serial.ErrPortClosed) || errors.Is(err, io.ErrClosedPipe) {
		c.setState(StateError)
		return false
	}
	return true
}
