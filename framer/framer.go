// Package framer splits a serial byte stream into text lines.
//
// Lines end with CR LF. Surrounding whitespace is trimmed and blank lines are
// dropped. The framer knows nothing about what a line means; a payload that
// itself contains CR LF is split in two, which is a limitation of the wire
// format rather than something the framer tries to repair.
package framer

import (
	"bytes"
	"strings"
)

// Terminator ends every line on the wire
var Terminator = []byte("\r\n")

// Framer accumulates bytes for one connection. It is not safe for concurrent
// use; callers feed it from a single goroutine or under their own lock.
type Framer struct {
	buf []byte
	// scanned is how much of buf is known not to hold a terminator start
	scanned int
}

// New returns an empty framer
func New() *Framer {
	return &Framer{}
}

// Feed appends data and returns the payloads of every line completed by it,
// in order. Unterminated bytes stay buffered for the next call.
func (f *Framer) Feed(data []byte) []string {
	f.buf = append(f.buf, data...)

	var lines []string
	start := 0
	for {
		idx := bytes.Index(f.buf[start+f.scanned:], Terminator)
		if idx < 0 {
			break
		}
		end := start + f.scanned + idx
		if payload := strings.TrimSpace(string(f.buf[start:end])); payload != "" {
			lines = append(lines, payload)
		}
		start = end + len(Terminator)
		f.scanned = 0
	}

	if start > 0 {
		f.buf = append(f.buf[:0], f.buf[start:]...)
	}
	// A trailing CR may be the first half of a terminator split across chunks.
	f.scanned = len(f.buf) - (len(Terminator) - 1)
	if f.scanned < 0 {
		f.scanned = 0
	}
	return lines
}

// Buffered returns the number of bytes waiting for a terminator
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset discards any buffered bytes
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.scanned = 0
}
