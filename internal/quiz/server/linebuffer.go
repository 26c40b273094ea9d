package server

import "bytes"

// MaxLineLength bounds a single command line. Longer lines are dropped and
// reported as TooLong so the client still gets exactly one response.
const MaxLineLength = 64 * 1024

// Line is one complete input line with its terminator removed.
type Line struct {
	Text    string
	TooLong bool
}

// LineBuffer reassembles lines from arbitrarily split reads. Lines end with
// "\n", optionally preceded by "\r". Bytes after the last newline stay
// buffered until more data arrives.
type LineBuffer struct {
	buf        []byte
	max        int
	discarding bool
}

func NewLineBuffer(limit int) *LineBuffer {
	if limit <= 0 {
		limit = MaxLineLength
	}
	return &LineBuffer{max: limit}
}

// Feed appends p and returns every line completed by it, in order.
func (b *LineBuffer) Feed(p []byte) []Line {
	b.buf = append(b.buf, p...)

	var lines []Line
	start := 0
	for {
		i := bytes.IndexByte(b.buf[start:], '\n')
		if i < 0 {
			break
		}
		raw := b.buf[start : start+i]
		start += i + 1

		if b.discarding {
			b.discarding = false
			lines = append(lines, Line{TooLong: true})
			continue
		}

		raw = bytes.TrimSuffix(raw, []byte{'\r'})
		if len(raw) > b.max {
			lines = append(lines, Line{TooLong: true})
			continue
		}
		lines = append(lines, Line{Text: string(raw)})
	}

	// Keep the partial tail at the front of the buffer.
	n := copy(b.buf, b.buf[start:])
	b.buf = b.buf[:n]

	if len(b.buf) > b.max {
		b.discarding = true
		b.buf = b.buf[:0]
	}
	return lines
}

// Pending is the number of buffered bytes not yet forming a line.
func (b *LineBuffer) Pending() int { return len(b.buf) }

// Reset drops everything buffered.
func (b *LineBuffer) Reset() {
	b.buf = nil
	b.discarding = false
}
