package boardlink

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mdouchement/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct {
	io.Reader
}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("port closed")
}

func TestMasterHandle(t *testing.T) {
	var link, out bytes.Buffer
	m := NewMaster(&link, &out, testLogger())

	require.NoError(t, m.Handle("pwm 2 128"))
	require.NoError(t, m.Handle(""))
	require.NoError(t, m.Handle("blink"))
	require.NoError(t, m.Handle("neo ff"))
	require.NoError(t, m.Handle("servo 300"))
	m.HandleResponse(0x01)
	m.HandleResponse(0x42)
	require.NoError(t, m.Handle("status"))

	assert.Equal(t, []byte{0x01, 0x02, 0x80, 0x04, 0x00, 0xFF, 0x03, 0x00, 0x2C}, link.Bytes())
	assert.Equal(t, strings.Join([]string{
		"→ PWM M2=128",
		"Command not recognized: blink",
		"→ NEO=white",
		"→ SERVO=300°",
		"← Slave resp: 0x01 (PWM OK)",
		"← Slave resp: 0x42 (unknown)",
		"Status: 3 frames sent - 2 responses received",
	}, "\n")+"\n", out.String())
}

func TestMasterStatus(t *testing.T) {
	var link, out bytes.Buffer
	m := NewMaster(&link, &out, testLogger())
	m.SetStatus(func() string {
		return "/dev/ttyUSB0 @ 9600 baud"
	})

	require.NoError(t, m.Handle("status"))
	assert.Equal(t, "Status: /dev/ttyUSB0 @ 9600 baud - 0 frames sent - 0 responses received\n", out.String())
	assert.Zero(t, link.Len())
}

func TestMasterHandleFailure(t *testing.T) {
	var out bytes.Buffer
	m := NewMaster(failingWriter{Reader: strings.NewReader("")}, &out, testLogger())

	err := m.Handle("ping")
	assert.ErrorContains(t, err, "send: port closed")
	assert.Equal(t, "Could not send [F0 00 00]: port closed\n", out.String())
}

func TestMasterRun(t *testing.T) {
	t.Run("relay", func(t *testing.T) {
		d, _, _ := newTestDispatcher(t)

		master, slave := net.Pipe()
		t.Cleanup(func() {
			master.Close()
			slave.Close()
		})
		go d.Serve(context.Background(), slave) //nolint:errcheck

		var out bytes.Buffer
		m := NewMaster(master, &out, testLogger())

		console := strings.NewReader("ping\npwm 2 128\ndigital 21 1\nneo ff\npwm 9 16\n")
		err := m.Run(context.Background(), console)
		require.NoError(t, err)

		// Echoes and responses may interleave.
		var echoes, responses []string
		for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
			if strings.HasPrefix(line, "←") {
				responses = append(responses, line)
				continue
			}
			echoes = append(echoes, line)
		}

		assert.Equal(t, []string{
			"→ PING",
			"→ PWM M2=128",
			"→ DIGITAL 0x21=1",
			"→ NEO=white",
			"→ PWM M9=16",
		}, echoes)
		assert.Equal(t, []string{
			"← Slave resp: 0xAA (PONG / OK)",
			"← Slave resp: 0x01 (PWM OK)",
			"← Slave resp: 0x02 (DIGITAL OK)",
			"← Slave resp: 0x04 (NEOPIXEL OK)",
			"← Slave resp: 0xEE (ERROR)",
		}, responses)
	})

	t.Run("dummy slave flood", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, cfg.Validate())

		log := testLogger()
		ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
		defer cancel()

		master, slave := net.Pipe()
		t.Cleanup(func() {
			master.Close()
			slave.Close()
		})
		go Supervise(ctx, slave, DummySlave(cfg, log, nil, nil)) //nolint:errcheck

		var out bytes.Buffer
		m := NewMaster(master, &out, log)

		done := make(chan error, 1)
		go func() {
			done <- m.Run(ctx, strings.NewReader(strings.Repeat("ping\n", 5000)))
		}()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("master relay is stuck")
		}

		assert.Equal(t, 5000, strings.Count(out.String(), "→ PING\n"))
		assert.Equal(t, 5000, strings.Count(out.String(), "← Slave resp: 0xAA (PONG / OK)\n"))
	})

	t.Run("link closed", func(t *testing.T) {
		var out bytes.Buffer
		m := NewMaster(&onceStream{}, &out, testLogger())

		console, _ := io.Pipe()
		err := m.Run(context.Background(), console)
		assert.NoError(t, err)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		master, slave := net.Pipe()
		t.Cleanup(func() {
			master.Close()
			slave.Close()
		})
		console, _ := io.Pipe()
		err := NewMaster(master, io.Discard, testLogger()).Run(ctx, console)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// onceStream is a link that is already closed.
type onceStream struct{}

func (onceStream) Read(p []byte) (int, error)  { return 0, io.EOF }
func (onceStream) Write(p []byte) (int, error) { return len(p), nil }
