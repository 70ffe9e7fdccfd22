package protocol

import (
	"bytes"
	"unicode/utf8"
)

// LineSplitter turns an arbitrary chunking of text into complete lines.
// A trailing partial line is held until the next Push or Flush.
type LineSplitter struct {
	buf []byte
}

// Push appends chunk and returns every line it completed, without the
// terminator. Blank lines and markdown fences are skipped.
func (s *LineSplitter) Push(chunk []byte) [][]byte {
	s.buf = append(s.buf, chunk...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			break
		}
		if line := clean(s.buf[:i]); line != nil {
			lines = append(lines, line)
		}
		s.buf = s.buf[i+1:]
	}

	// Compact once the consumed prefix dominates the buffer.
	if len(s.buf) == 0 {
		s.buf = nil
	} else if cap(s.buf) > 4096 && len(s.buf) < cap(s.buf)/4 {
		s.buf = append([]byte(nil), s.buf...)
	}
	return lines
}

// Flush returns the residual partial line, if any, and resets the splitter.
func (s *LineSplitter) Flush() []byte {
	line := clean(s.buf)
	s.buf = nil
	return line
}

// Pending reports how many bytes are waiting for a newline.
func (s *LineSplitter) Pending() int {
	return len(s.buf)
}

func clean(b []byte) []byte {
	line := bytes.TrimSpace(b)
	if len(line) == 0 || bytes.HasPrefix(line, []byte("```")) {
		return nil
	}
	return append([]byte(nil), line...)
}

// utf8Decoder holds back an incomplete trailing rune so a frame boundary
// inside a multi-byte character never reaches the splitter.
type utf8Decoder struct {
	pending []byte
}

func (d *utf8Decoder) Decode(frame []byte) []byte {
	b := make([]byte, 0, len(d.pending)+len(frame))
	b = append(b, d.pending...)
	b = append(b, frame...)
	d.pending = nil

	cut := len(b)
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				cut = i
			}
			break
		}
	}
	if cut < len(b) {
		d.pending = append([]byte(nil), b[cut:]...)
	}
	return b[:cut]
}

// Flush returns whatever is still held; at end of stream that is an
// invalid sequence and decodes as replacement characters downstream.
func (d *utf8Decoder) Flush() []byte {
	out := d.pending
	d.pending = nil
	return out
}
