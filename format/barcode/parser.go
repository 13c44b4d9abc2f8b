package barcode

import (
	"fmt"
	"unicode/utf8"

	"serialbridge/format"
)

// MinLength is the shortest payload accepted as a barcode
const MinLength = 6

// IsBarcode reports whether payload is long enough to be a scanned code
func IsBarcode(payload string) bool {
	return utf8.RuneCountInString(payload) >= MinLength
}

// ParseBarcode converts a barcode line into a Reading
func ParseBarcode(payload string) (*format.Reading, error) {
	if !IsBarcode(payload) {
		return nil, fmt.Errorf("barcode too short: %q", payload)
	}
	return &format.Reading{
		Kind: "barcode",
		Raw:  payload,
		Code: payload,
	}, nil
}
