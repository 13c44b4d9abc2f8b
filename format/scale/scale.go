package scale

import (
	"serialbridge/format"
)

func init() {
	format.MustRegister(&ScaleFormat{})
}

// ScaleFormat implements the DeviceFormat interface for weighing scales that
// print the net weight as a bare decimal number
type ScaleFormat struct{}

// Name returns the format identifier
func (f *ScaleFormat) Name() string {
	return "scale"
}

// Description returns a human-readable description
func (f *ScaleFormat) Description() string {
	return "Weighing scale (decimal weight per line)"
}

// Priority places scale before barcode: an all-digit line is a weight
func (f *ScaleFormat) Priority() int {
	return 10
}

// Matches reports whether payload is a decimal weight
func (f *ScaleFormat) Matches(payload string) bool {
	return IsWeight(payload)
}

// ParseLine parses a weight line
func (f *ScaleFormat) ParseLine(payload string) (*format.Reading, error) {
	return ParseWeight(payload)
}

// GenerateLine creates a synthetic weight line
func (f *ScaleFormat) GenerateLine(ctx *format.GenerationContext) (*format.Line, error) {
	return GenerateWeightLine(ctx)
}
