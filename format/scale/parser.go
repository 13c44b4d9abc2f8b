package scale

import (
	"fmt"
	"regexp"
	"strconv"

	"serialbridge/format"
)

var weightPattern = regexp.MustCompile(`^\d+\.?\d*$`)

// IsWeight reports whether payload looks like "12", "12." or "12.34"
func IsWeight(payload string) bool {
	return weightPattern.MatchString(payload)
}

// ParseWeight converts a weight line into a Reading
func ParseWeight(payload string) (*format.Reading, error) {
	if !IsWeight(payload) {
		return nil, fmt.Errorf("not a weight: %q", payload)
	}

	weight, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid weight %q: %w", payload, err)
	}

	return &format.Reading{
		Kind:   "scale",
		Raw:    payload,
		Weight: weight,
	}, nil
}
