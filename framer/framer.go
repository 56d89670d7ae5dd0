// Package framer converts an unbounded byte stream into discrete
// newline-delimited lines, retaining partial trailing data across feeds.
package framer

import (
	"bytes"
	"unicode/utf8"
)

// Kind classifies a framed line.
type Kind int

const (
	// Text is a line that decoded cleanly.
	Text Kind = iota

	// Undecodable is a line holding bytes that are not valid text. It is
	// reported as data, never silently dropped.
	Undecodable
)

// Line is one complete delimiter-stripped line. Text is set for Kind
// Text; Raw carries the original bytes for Kind Undecodable.
type Line struct {
	Kind Kind
	Text string
	Raw  []byte
}

// Framer accumulates bytes and splits out complete lines on '\n'. A
// trailing '\r' before the delimiter is stripped. An unterminated line is
// held until its delimiter arrives; the buffer is deliberately uncapped,
// so a delimiter-less sender grows it without bound.
//
// The zero value is ready to use.
type Framer struct {
	buf []byte
}

// Feed appends p to the buffer and returns every complete line found. No
// byte is ever dropped or duplicated across calls, regardless of where
// chunk boundaries fall. Returned lines do not alias the internal buffer.
func (f *Framer) Feed(p []byte) []Line {
	f.buf = append(f.buf, p...)

	var lines []Line
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		raw := f.buf[:i]
		if n := len(raw); n > 0 && raw[n-1] == '\r' {
			raw = raw[:n-1]
		}
		lines = append(lines, classify(raw))
		f.buf = f.buf[i+1:]
	}

	if len(f.buf) == 0 {
		f.buf = nil
	}
	return lines
}

// Pending returns a copy of the buffered partial line.
func (f *Framer) Pending() []byte {
	if len(f.buf) == 0 {
		return nil
	}
	out := make([]byte, len(f.buf))
	copy(out, f.buf)
	return out
}

// Reset discards any buffered partial line.
func (f *Framer) Reset() {
	f.buf = nil
}

func classify(raw []byte) Line {
	if utf8.Valid(raw) {
		return Line{Kind: Text, Text: string(raw)}
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return Line{Kind: Undecodable, Raw: out}
}
