package boardlink

import (
	"bytes"
	"strings"
)

// A Chunk is either a complete text line or a single protocol byte.
type Chunk struct {
	Line   string
	Byte   byte
	IsLine bool
}

// A StreamSplitter separates the text printed by a master board from the raw response bytes of a slave.
type StreamSplitter struct {
	buf []byte
}

func (s *StreamSplitter) Feed(p []byte) {
	s.buf = append(s.buf, p...)
}

// Next returns the next available chunk.
// Printable bytes that are not yet terminated by a line feed stay buffered.
func (s *StreamSplitter) Next() (Chunk, bool) {
	for len(s.buf) > 0 {
		if !printable(s.buf[0]) {
			b := s.buf[0]
			s.buf = s.buf[1:]
			return Chunk{Byte: b}, true
		}

		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			return Chunk{}, false
		}

		line := strings.TrimSpace(string(s.buf[:i]))
		s.buf = s.buf[i+1:]
		if line == "" {
			continue
		}
		return Chunk{Line: line, IsLine: true}, true
	}

	return Chunk{}, false
}

// Pending returns the number of buffered bytes.
func (s *StreamSplitter) Pending() int {
	return len(s.buf)
}

func printable(b byte) bool {
	return (b >= 0x20 && b <= 0x7E) || b == '\t' || b == '\r' || b == '\n'
}
