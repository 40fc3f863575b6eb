package boardlink

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/mdouchement/boardlink/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *DummyBoard, Config) {
	t.Helper()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	cfg.ResetGrace = Duration{Duration: time.Millisecond}

	board := NewDummyBoard()
	d := NewDispatcher(cfg, board, testLogger())
	require.NoError(t, d.Setup())
	return d, board, cfg
}

func TestDispatcherSetup(t *testing.T) {
	_, board, cfg := newTestDispatcher(t)

	for _, m := range cfg.SortedMotors() {
		assert.True(t, board.Attached(m.Enable), m.Label)

		duty, ok := board.Duty(m.Enable)
		assert.True(t, ok)
		assert.Zero(t, duty)

		for _, pin := range []int{m.In1, m.In2} {
			high, ok := board.Level(pin)
			assert.True(t, ok)
			assert.False(t, high)
		}
	}

	assert.True(t, board.Attached(cfg.Servo.Pin))
	assert.Equal(t, protocol.Color{}, board.Shown())
}

func TestDispatcherSetupFailure(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	cfg.Servo.Resolution = 0

	d := NewDispatcher(cfg, NewDummyBoard(), testLogger())
	assert.ErrorContains(t, d.Setup(), "servo: attach")
}

func TestDispatchPWM(t *testing.T) {
	d, board, cfg := newTestDispatcher(t)

	for _, m := range cfg.SortedMotors() {
		for _, v := range []uint8{0, 1, 64, 127, 128, 200, 254, 255} {
			r, err := d.Dispatch(protocol.NewFrame(protocol.OpcodePWM, m.ID, v))
			require.NoError(t, err)
			assert.Equal(t, protocol.ResponsePWMOK, r)

			duty, _ := board.Duty(m.Enable)
			expected := uint32(math.Floor(float64(v)*1023/255 + 0.5))
			assert.Equal(t, expected, duty, "motor%d <- %d", m.ID, v)
		}
	}

	dutyOf := func(target protocol.Target, v uint8) uint32 {
		_, err := d.Dispatch(protocol.NewFrame(protocol.OpcodePWM, target, v))
		require.NoError(t, err)
		m, _ := cfg.Motor(target)
		duty, _ := board.Duty(m.Enable)
		return duty
	}
	assert.EqualValues(t, 0, dutyOf(protocol.Motor1, 0))
	assert.EqualValues(t, 514, dutyOf(protocol.Motor2, 128))
	assert.EqualValues(t, 1023, dutyOf(protocol.Motor3, 255))

	t.Run("invalid target", func(t *testing.T) {
		for _, target := range []protocol.Target{0x00, 0x05, 0x09, 0x11, 0xFF} {
			writes := board.Writes()

			r, err := d.Dispatch(protocol.NewFrame(protocol.OpcodePWM, target, 0x10))
			assert.Equal(t, protocol.ResponseError, r)
			assert.ErrorIs(t, err, ErrInvalidTarget)

			var perr *ProtocolError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, target, perr.Frame.Target)

			assert.Equal(t, writes, board.Writes(), "target 0x%02X", target)
		}
	})
}

func TestDispatchDigital(t *testing.T) {
	d, board, cfg := newTestDispatcher(t)

	for _, target := range protocol.DigitalTargets() {
		ref, ok := protocol.DigitalPin(target)
		require.True(t, ok)
		m, _ := cfg.Motor(ref.Motor)
		pin, _ := m.Terminal(ref.Terminal)

		for _, tc := range []struct {
			value uint8
			high  bool
		}{
			{value: 1, high: true},
			{value: 0, high: false},
			{value: 0x7F, high: true},
		} {
			r, err := d.Dispatch(protocol.NewFrame(protocol.OpcodeDigital, target, tc.value))
			require.NoError(t, err)
			assert.Equal(t, protocol.ResponseDigitalOK, r)

			high, _ := board.Level(pin)
			assert.Equal(t, tc.high, high, "%s <- %d", ref, tc.value)
		}
	}

	t.Run("invalid target", func(t *testing.T) {
		for _, target := range []protocol.Target{0x00, 0x01, 0x10, 0x13, 0x23, 0x51, 0xFF} {
			writes := board.Writes()

			r, err := d.Dispatch(protocol.NewFrame(protocol.OpcodeDigital, target, 1))
			assert.Equal(t, protocol.ResponseError, r)
			assert.ErrorIs(t, err, ErrInvalidTarget)
			assert.Equal(t, writes, board.Writes(), "target 0x%02X", target)
		}
	})
}

func TestDispatchServo(t *testing.T) {
	d, board, cfg := newTestDispatcher(t)

	tests := []struct {
		value uint8
		duty  uint32
	}{
		{value: 0, duty: 1638},
		{value: 90, duty: 4915},
		{value: 180, duty: 8192},
		{value: 200, duty: uint32(ServoCurve.Eval(200))}, // Not validated
	}

	for _, tc := range tests {
		// Target is ignored.
		r, err := d.Dispatch(protocol.NewFrame(protocol.OpcodeServo, 0x42, tc.value))
		require.NoError(t, err)
		assert.Equal(t, protocol.ResponseServoOK, r)

		duty, _ := board.Duty(cfg.Servo.Pin)
		assert.Equal(t, tc.duty, duty, "servo <- %d", tc.value)
	}
}

func TestDispatchNeoPixel(t *testing.T) {
	d, board, _ := newTestDispatcher(t)

	tests := []struct {
		value uint8
		color protocol.Color
	}{
		{value: protocol.ColorRed, color: protocol.Color{R: 255}},
		{value: protocol.ColorGreen, color: protocol.Color{G: 255}},
		{value: protocol.ColorBlue, color: protocol.Color{B: 255}},
		{value: protocol.ColorWhite, color: protocol.Color{R: 255, G: 255, B: 255}},
		{value: protocol.ColorWhite, color: protocol.Color{R: 255, G: 255, B: 255}},
		{value: protocol.ColorOff, color: protocol.Color{}},
	}

	for _, tc := range tests {
		r, err := d.Dispatch(protocol.NewFrame(protocol.OpcodeNeoPixel, 0, tc.value))
		require.NoError(t, err)
		assert.Equal(t, protocol.ResponseNeoPixelOK, r)
		assert.Equal(t, tc.color, d.Color())
		assert.Equal(t, tc.color, board.Shown())
	}

	t.Run("unknown color", func(t *testing.T) {
		_, err := d.Dispatch(protocol.NewFrame(protocol.OpcodeNeoPixel, 0, protocol.ColorBlue))
		require.NoError(t, err)

		for _, v := range []uint8{0x04, 0x10, 0x80, 0xFE} {
			r, err := d.Dispatch(protocol.NewFrame(protocol.OpcodeNeoPixel, 0, v))
			assert.Equal(t, protocol.ResponseError, r)
			assert.ErrorIs(t, err, ErrUnknownColor)

			assert.Equal(t, protocol.Color{B: 255}, d.Color())
			assert.Equal(t, protocol.Color{B: 255}, board.Shown())
		}
	})
}

func TestDispatchPing(t *testing.T) {
	d, board, _ := newTestDispatcher(t)
	writes := board.Writes()

	for range 5 {
		r, err := d.Dispatch(protocol.NewFrame(protocol.OpcodePing, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, protocol.ResponseReady, r)
	}

	// Target and value are ignored.
	r, err := d.Dispatch(protocol.NewFrame(protocol.OpcodePing, 0x12, 0x34))
	require.NoError(t, err)
	assert.Equal(t, protocol.ResponseReady, r)

	assert.Equal(t, writes, board.Writes())
}

func TestDispatchReset(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	r, err := d.Dispatch(protocol.NewFrame(protocol.OpcodeReset, 0, 0))
	assert.Equal(t, protocol.ResponseResetOK, r)
	assert.ErrorIs(t, err, ErrRestart)
}

func TestDispatchUnknownOpcode(t *testing.T) {
	d, board, _ := newTestDispatcher(t)
	writes := board.Writes()

	for _, op := range []protocol.Opcode{0x00, 0x05, 0x10, 0xAA, 0xEF, 0xF1, 0xFE} {
		r, err := d.Dispatch(protocol.NewFrame(op, 0x01, 0x01))
		assert.Equal(t, protocol.ResponseError, r)
		assert.ErrorIs(t, err, ErrUnknownOpcode, "opcode 0x%02X", uint8(op))
	}

	assert.Equal(t, writes, board.Writes())
}

func TestDispatcherServe(t *testing.T) {
	t.Run("scenarios", func(t *testing.T) {
		d, board, cfg := newTestDispatcher(t)

		var records []Record
		d.OnDispatch(func(r Record) {
			records = append(records, r)
		})

		stream := newTestStream(
			Encode("pwm 2 128").Frame.Bytes(),
			Encode("digital 21 1").Frame.Bytes(),
			Encode("neo ff").Frame.Bytes(),
			[]byte{0x01, 0x09, 0x10},
		)

		err := d.Serve(context.Background(), stream)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, []byte{0x01, 0x02, 0x04, 0xEE}, stream.out.Bytes())

		m2, _ := cfg.Motor(protocol.Motor2)
		duty, _ := board.Duty(m2.Enable)
		assert.EqualValues(t, 514, duty)

		high, _ := board.Level(m2.In1)
		assert.True(t, high)

		assert.Equal(t, protocol.Color{R: 255, G: 255, B: 255}, board.Shown())

		require.Len(t, records, 4)
		assert.Empty(t, records[0].Error)
		assert.Equal(t, protocol.ResponseError, records[3].Response)
		assert.Contains(t, records[3].Error, ErrInvalidTarget.Error())
	})

	t.Run("reset", func(t *testing.T) {
		d, _, _ := newTestDispatcher(t)

		stream := newTestStream(
			[]byte{0xF0, 0x00, 0x00},
			[]byte{0xFF, 0x00, 0x00},
			[]byte{0xF0, 0x00, 0x00}, // Not served by this dispatcher
		)

		err := d.Serve(context.Background(), stream)
		assert.ErrorIs(t, err, ErrRestart)
		assert.Equal(t, []byte{0xAA, 0xBB}, stream.out.Bytes())
		assert.Equal(t, 3, stream.in.Len())
	})

	t.Run("reset flush", func(t *testing.T) {
		d, _, _ := newTestDispatcher(t)

		stream := &drainStream{testStream: newTestStream([]byte{0xF0, 0x00, 0x00}, []byte{0xFF, 0x00, 0x00})}

		err := d.Serve(context.Background(), stream)
		assert.ErrorIs(t, err, ErrRestart)
		assert.Equal(t, []int{2}, stream.drained) // After RESET_OK only
	})

	t.Run("partial frame", func(t *testing.T) {
		d, _, _ := newTestDispatcher(t)

		stream := newTestStream([]byte{0xF0, 0x00, 0x00}, []byte{0x01, 0x02})

		err := d.Serve(context.Background(), stream)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.Equal(t, []byte{0xAA}, stream.out.Bytes())
	})

	t.Run("canceled", func(t *testing.T) {
		d, _, _ := newTestDispatcher(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := d.Serve(ctx, newTestStream([]byte{0xF0, 0x00, 0x00}))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
