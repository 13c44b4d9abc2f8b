package format

import (
	"math/rand"
	"time"
)

// Terminator ends every line a device writes
const Terminator = "\r\n"

// Line is a single synthetic device line
type Line struct {
	Format    string    // Name of the format that produced it
	Text      string    // Payload without terminator
	Timestamp time.Time // When it was generated
}

// Output returns the line as it is written to the wire
func (l *Line) Output() []byte {
	return []byte(l.Text + Terminator)
}

// Reading is a payload interpreted by a format
type Reading struct {
	Kind   string  `json:"kind"`
	Raw    string  `json:"raw"`
	Weight float64 `json:"weight,omitempty"`
	Code   string  `json:"code,omitempty"`
}

// GenerationContext provides the data pools for synthetic line generation
type GenerationContext struct {
	MinWeight   float64
	MaxWeight   float64
	Barcodes    []string
	CurrentTime time.Time
	LineNumber  int
	Random      *rand.Rand
}

// DeviceFormat defines the interface that every device line format implements.
// This is the extension point for new devices on the line.
type DeviceFormat interface {
	// Name returns the unique identifier for this format (e.g., "scale", "barcode")
	Name() string

	// Description returns a human-readable description
	Description() string

	// Priority orders formats during classification, lowest first
	Priority() int

	// Matches reports whether a framed payload belongs to this format
	Matches(payload string) bool

	// ParseLine interprets a payload that Matches accepted
	ParseLine(payload string) (*Reading, error)

	// GenerateLine creates a new synthetic line
	GenerateLine(ctx *GenerationContext) (*Line, error)
}

// NewGenerationContext creates a generation context with the default pools
func NewGenerationContext(seed int64) *GenerationContext {
	return &GenerationContext{
		MinWeight:   0.1,
		MaxWeight:   10.1,
		Barcodes:    defaultBarcodes(),
		CurrentTime: time.Now(),
		Random:      rand.New(rand.NewSource(seed)),
	}
}

func defaultBarcodes() []string {
	return []string{
		"1234567890123",
		"9876543210987",
		"4567891234567",
		"7891234567890",
		"ABC123DEF456",
		"555666777888",
	}
}

// RandomWeight returns a weight in [MinWeight, MaxWeight)
func (ctx *GenerationContext) RandomWeight() float64 {
	return ctx.MinWeight + ctx.Random.Float64()*(ctx.MaxWeight-ctx.MinWeight)
}

// RandomBarcode returns a code from the pool
func (ctx *GenerationContext) RandomBarcode() string {
	if len(ctx.Barcodes) == 0 {
		return ""
	}
	return ctx.Barcodes[ctx.Random.Intn(len(ctx.Barcodes))]
}

// NextLineNumber increments and returns the line counter
func (ctx *GenerationContext) NextLineNumber() int {
	ctx.LineNumber++
	return ctx.LineNumber
}

func (ctx *GenerationContext) now() time.Time {
	if ctx.CurrentTime.IsZero() {
		return time.Now()
	}
	return ctx.CurrentTime
}

// NewLine stamps text produced by the named format
func (ctx *GenerationContext) NewLine(format, text string) *Line {
	return &Line{Format: format, Text: text, Timestamp: ctx.now()}
}
