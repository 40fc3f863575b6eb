package boardlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mdouchement/boardlink/protocol"
	"github.com/mdouchement/logger"
)

var (
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrInvalidTarget = errors.New("invalid target")
	ErrUnknownColor  = errors.New("unknown color")

	// ErrRestart is returned once a RESET has been acknowledged.
	// The caller must throw the dispatcher away and start a fresh one.
	ErrRestart = errors.New("restart requested")
)

// A ProtocolError is a frame the slave refused. It is answered with ResponseError.
type ProtocolError struct {
	Frame protocol.Frame
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Frame.Opcode, e.Frame, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// A Dispatcher decodes frames into board actions, one at a time.
type Dispatcher struct {
	cfg       Config
	board     Board
	log       logger.Logger
	color     protocol.Color
	observers []func(Record)
}

func NewDispatcher(cfg Config, board Board, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:   cfg,
		board: board,
		log:   log,
	}
}

// OnDispatch registers fn to be called after each response has been written by Serve.
func (d *Dispatcher) OnDispatch(fn func(Record)) {
	d.observers = append(d.observers, fn)
}

// Color returns the current color of the indicator.
func (d *Dispatcher) Color() protocol.Color {
	return d.color
}

// Setup attaches the PWM channels and puts every output in its idle state.
func (d *Dispatcher) Setup() error {
	for _, m := range d.cfg.SortedMotors() {
		if err := d.board.Attach(m.Enable, d.cfg.PWM.Frequency, d.cfg.PWM.Resolution); err != nil {
			return fmt.Errorf("motor%d: attach: %w", m.ID, err)
		}
		d.board.Write(m.Enable, 0)
		d.board.Drive(m.In1, false)
		d.board.Drive(m.In2, false)
	}

	if err := d.board.Attach(d.cfg.Servo.Pin, d.cfg.Servo.Frequency, d.cfg.Servo.Resolution); err != nil {
		return fmt.Errorf("servo: attach: %w", err)
	}

	d.color = protocol.Color{}
	d.board.SetColor(0, 0, 0)
	d.board.Show()
	return nil
}

// Dispatch performs the action requested by f and returns the response to send back.
// The error is a *ProtocolError when the response is ResponseError, or ErrRestart after a RESET.
func (d *Dispatcher) Dispatch(f protocol.Frame) (protocol.Response, error) {
	switch f.Opcode {
	case protocol.OpcodePWM:
		return d.pwm(f)
	case protocol.OpcodeDigital:
		return d.digital(f)
	case protocol.OpcodeServo:
		return d.servo(f)
	case protocol.OpcodeNeoPixel:
		return d.neopixel(f)
	case protocol.OpcodePing:
		return protocol.ResponseReady, nil
	case protocol.OpcodeReset:
		return protocol.ResponseResetOK, ErrRestart
	}

	return protocol.ResponseError, &ProtocolError{Frame: f, Err: ErrUnknownOpcode}
}

func (d *Dispatcher) pwm(f protocol.Frame) (protocol.Response, error) {
	if !f.Target.Motor() {
		return protocol.ResponseError, &ProtocolError{Frame: f, Err: ErrInvalidTarget}
	}

	m, ok := d.cfg.Motor(f.Target)
	if !ok {
		// Validated configurations always wire the 4 channels.
		return protocol.ResponseError, &ProtocolError{Frame: f, Err: ErrInvalidTarget}
	}

	duty := PWMCurve.Eval(int(f.Value))
	d.board.Write(m.Enable, uint32(duty))
	return protocol.ResponsePWMOK, nil
}

func (d *Dispatcher) digital(f protocol.Frame) (protocol.Response, error) {
	ref, ok := protocol.DigitalPin(f.Target)
	if !ok {
		return protocol.ResponseError, &ProtocolError{Frame: f, Err: ErrInvalidTarget}
	}

	m, ok := d.cfg.Motor(ref.Motor)
	if !ok {
		return protocol.ResponseError, &ProtocolError{Frame: f, Err: ErrInvalidTarget}
	}
	pin, _ := m.Terminal(ref.Terminal)

	d.board.Drive(pin, f.Value != 0)
	return protocol.ResponseDigitalOK, nil
}

func (d *Dispatcher) servo(f protocol.Frame) (protocol.Response, error) {
	duty := ServoCurve.Eval(int(f.Value))
	d.board.Write(d.cfg.Servo.Pin, uint32(duty))
	return protocol.ResponseServoOK, nil
}

func (d *Dispatcher) neopixel(f protocol.Frame) (protocol.Response, error) {
	c, ok := protocol.PaletteColor(f.Value)
	if !ok {
		return protocol.ResponseError, &ProtocolError{Frame: f, Err: ErrUnknownColor}
	}

	d.color = c
	d.board.SetColor(c.R, c.G, c.B)
	d.board.Show()
	return protocol.ResponseNeoPixelOK, nil
}

// Serve reads frames from rw and answers each of them until ctx is done, rw fails or a RESET is received.
// After a RESET, the acknowledgment is flushed (when rw can be drained), the reset grace delay elapses
// and ErrRestart is returned.
func (d *Dispatcher) Serve(ctx context.Context, rw io.ReadWriter) error {
	resp := make([]byte, protocol.ResponseSize)

	for {
		f, err := protocol.ReadFrame(ctx, rw)
		if err != nil {
			return err
		}

		r, derr := d.Dispatch(f)

		resp[0] = byte(r)
		if _, err = rw.Write(resp); err != nil {
			return fmt.Errorf("response: %w", err)
		}

		record := Record{At: time.Now(), Frame: f, Response: r}
		if derr != nil && !errors.Is(derr, ErrRestart) {
			record.Error = derr.Error()
			d.log.WithError(derr).Warnf("Refused frame %s", f)
		} else {
			d.log.Debugf("Frame %s => 0x%02X (%s)", f, byte(r), r)
		}
		for _, fn := range d.observers {
			fn(record)
		}

		if errors.Is(derr, ErrRestart) {
			d.log.Info("Reset requested, restarting")
			if drainer, ok := rw.(interface{ Drain() error }); ok {
				if err = drainer.Drain(); err != nil {
					d.log.WithError(err).Warnf("Could not flush reset acknowledgment on %T", rw)
				}
			}
			if err = wait(ctx, d.cfg.ResetGrace.Duration); err != nil {
				return err
			}
			return ErrRestart
		}
	}
}
