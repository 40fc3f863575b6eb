package boardlink

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/mdouchement/logger"
)

func testLogger() logger.Logger {
	return logger.WrapSlogHandler(logger.NewSlogTextHandler(io.Discard, &logger.SlogTextOption{
		Level: slog.LevelDebug,
	}))
}

// testStream replays the given frames and records the responses.
type testStream struct {
	in  *bytes.Reader
	out bytes.Buffer
}

func newTestStream(frames ...[]byte) *testStream {
	return &testStream{in: bytes.NewReader(bytes.Join(frames, nil))}
}

func (s *testStream) Read(p []byte) (int, error) {
	return s.in.Read(p)
}

func (s *testStream) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// drainStream records the number of bytes written each time it is drained.
type drainStream struct {
	*testStream
	drained []int
}

func (s *drainStream) Drain() error {
	s.drained = append(s.drained, s.out.Len())
	return nil
}
