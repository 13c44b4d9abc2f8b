package barcode

import (
	"serialbridge/format"
)

func init() {
	format.MustRegister(&BarcodeFormat{})
}

// BarcodeFormat implements the DeviceFormat interface for barcode readers in
// keyboard-wedge style, one code per line
type BarcodeFormat struct{}

// Name returns the format identifier
func (f *BarcodeFormat) Name() string {
	return "barcode"
}

// Description returns a human-readable description
func (f *BarcodeFormat) Description() string {
	return "Barcode reader (one code per line)"
}

// Priority returns the classification order
func (f *BarcodeFormat) Priority() int {
	return 20
}

// Matches reports whether payload is long enough to be a code
func (f *BarcodeFormat) Matches(payload string) bool {
	return IsBarcode(payload)
}

// ParseLine parses a barcode line
func (f *BarcodeFormat) ParseLine(payload string) (*format.Reading, error) {
	return ParseBarcode(payload)
}

// GenerateLine picks a code from the pool
func (f *BarcodeFormat) GenerateLine(ctx *format.GenerationContext) (*format.Line, error) {
	return GenerateBarcodeLine(ctx)
}
