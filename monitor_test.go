package boardlink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mdouchement/boardlink/protocol"
	"github.com/mdouchement/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readState(t *testing.T, resp *http.Response) BoardState {
	t.Helper()

	payload, err := ReadSSE(resp.Body)
	require.NoError(t, err)

	var state BoardState
	require.NoError(t, json.Unmarshal(payload, &state))
	return state
}

func TestMonitor(t *testing.T) {
	log := testLogger()
	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	m := newMonitor(NewMetrics())
	m.Launch(ctx)

	server := httptest.NewServer(m.Handler(log))
	defer server.Close()

	m.Publish(BoardState{Restarts: 1})

	resp, err := http.Get(server.URL + "/monitor")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The current state is sent as soon as the client is connected.
	state := readState(t, resp)
	assert.Equal(t, 1, state.Restarts)

	r := Record{
		At:       time.Now().UTC(),
		Frame:    protocol.NewFrame(protocol.OpcodeNeoPixel, 0, protocol.ColorRed),
		Response: protocol.ResponseNeoPixelOK,
	}
	m.Publish(BoardState{
		Pins:     map[int]string{48: "neopixel"},
		Shown:    protocol.Color{R: 255},
		Restarts: 1,
		Last:     &r,
	})

	state = readState(t, resp)
	assert.Equal(t, "neopixel", state.Pins[48])
	assert.Equal(t, protocol.Color{R: 255}, state.Shown)
	require.NotNil(t, state.Last)
	assert.Equal(t, r.Frame, state.Last.Frame)
	assert.Equal(t, protocol.ResponseNeoPixelOK, state.Last.Response)
}

func TestMonitorStopped(t *testing.T) {
	log := testLogger()
	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))

	m := newMonitor(nil)
	m.Launch(ctx)
	cancel()
	<-m.done

	// Publishing on a stopped monitor must not block.
	m.Publish(BoardState{})

	w := httptest.NewRecorder()
	m.Handler(log).ServeHTTP(w, httptest.NewRequest("GET", "/monitor", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDummySlaveMonitor(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	log := testLogger()
	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	m := newMonitor(nil)
	m.Launch(ctx)

	server := httptest.NewServer(m.Handler(log))
	defer server.Close()

	err := Supervise(ctx, newTestStream([]byte{0x01, 0x03, 0xFF}), DummySlave(cfg, log, nil, m))
	require.Error(t, err) // EOF

	resp, err := http.Get(server.URL + "/monitor")
	require.NoError(t, err)
	defer resp.Body.Close()

	state := readState(t, resp)
	require.NotNil(t, state.Last)
	assert.Equal(t, protocol.ResponsePWMOK, state.Last.Response)

	m3, _ := cfg.Motor(protocol.Motor3)
	assert.EqualValues(t, 1023, state.Duties[m3.Enable])
	assert.Equal(t, "motor3.enable", state.Pins[m3.Enable])
}
