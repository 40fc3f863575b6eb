package boardlink

import "io"

// ReadSSE reads one event written by the monitor (a JSON document followed by an empty line).
func ReadSSE(r io.Reader) ([]byte, error) {
	buf := make([]byte, 64<<10) // A board state is far below 64kB.

	var n int
	var lf uint8
	var err error
	for n < len(buf) {
		_, err = r.Read(buf[n : n+1])
		if err != nil {
			return buf[:n], err
		}

		if buf[n] == '\n' {
			lf++
		} else {
			lf = 0
		}

		if lf == 2 {
			return buf[:n-1], nil
		}

		n++
	}

	return buf[:n], io.ErrShortBuffer
}
