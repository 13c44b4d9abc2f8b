package generator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"serialbridge/config"
	"serialbridge/format"
)

// Generator produces device lines following a repeating format sequence,
// e.g. scale, scale, barcode
type Generator struct {
	sequence    []format.DeviceFormat
	rateLimiter *RateLimiter
	genContext  *format.GenerationContext

	mu    sync.Mutex
	index int
}

// New creates a generator for the simulator configuration. The formats named
// in the sequence must already be registered.
func New(cfg *config.SimulatorConfig, seed int64) (*Generator, error) {
	if len(cfg.Sequence) == 0 {
		return nil, fmt.Errorf("simulator sequence is empty")
	}

	sequence := make([]format.DeviceFormat, 0, len(cfg.Sequence))
	for _, name := range cfg.Sequence {
		f, err := format.Get(name)
		if err != nil {
			return nil, fmt.Errorf("unknown format %s: %w", name, err)
		}
		sequence = append(sequence, f)
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	genContext := format.NewGenerationContext(seed)
	genContext.MinWeight = cfg.MinWeight
	genContext.MaxWeight = cfg.MaxWeight
	if len(cfg.Barcodes) > 0 {
		genContext.Barcodes = append([]string(nil), cfg.Barcodes...)
	}

	return &Generator{
		sequence:    sequence,
		rateLimiter: NewRateLimiter(cfg.GetInterval(), cfg.JitterPercent),
		genContext:  genContext,
	}, nil
}

// NextLine returns the next line in the sequence
func (g *Generator) NextLine(ctx context.Context) (*format.Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	f := g.sequence[g.index%len(g.sequence)]
	g.index++

	g.genContext.CurrentTime = time.Now()
	line, err := f.GenerateLine(g.genContext)
	if err != nil {
		return nil, fmt.Errorf("%s line: %w", f.Name(), err)
	}
	return line, nil
}

// RateLimiter returns the rate limiter for this generator
func (g *Generator) RateLimiter() *RateLimiter {
	return g.rateLimiter
}

// Sequence returns the format names in emission order
func (g *Generator) Sequence() []string {
	names := make([]string, len(g.sequence))
	for i, f := range g.sequence {
		names[i] = f.Name()
	}
	return names
}

// LinesGenerated returns how many lines have been produced
func (g *Generator) LinesGenerated() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.index
}
