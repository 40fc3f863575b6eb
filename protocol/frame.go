package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	ErrShortFrame = errors.New("short frame")
	ErrHexByte    = errors.New("invalid hex byte")
)

func NewFrame(op Opcode, target Target, value uint8) Frame {
	return Frame{Opcode: op, Target: target, Value: value}
}

// ParseFrame decodes exactly FrameSize bytes.
func ParseFrame(p []byte) (Frame, error) {
	if len(p) != FrameSize {
		return Frame{}, fmt.Errorf("%w: got %d bytes", ErrShortFrame, len(p))
	}

	return Frame{Opcode: Opcode(p[0]), Target: Target(p[1]), Value: p[2]}, nil
}

func (f Frame) Bytes() []byte {
	return []byte{byte(f.Opcode), byte(f.Target), f.Value}
}

// Text renders f as the console command a master board understands.
// Frames without a console equivalent are rendered as their three decimal bytes.
func (f Frame) Text() string {
	switch f.Opcode {
	case OpcodePing:
		return "ping"
	case OpcodeReset:
		return "reset"
	case OpcodePWM:
		return fmt.Sprintf("pwm %d %d", f.Target, f.Value)
	case OpcodeServo:
		return fmt.Sprintf("servo %d", f.Value)
	case OpcodeDigital:
		pin := int(f.Target>>4)*10 + int(f.Target&0x0F)
		return fmt.Sprintf("digital %d %d", pin, f.Value)
	case OpcodeNeoPixel:
		if f.Value == ColorWhite {
			return "neo ff"
		}
		return fmt.Sprintf("neo %d", f.Value)
	}

	return fmt.Sprintf("%d %d %d", f.Opcode, f.Target, f.Value)
}

func (f Frame) String() string {
	return fmt.Sprintf("[%02X %02X %02X]", uint8(f.Opcode), uint8(f.Target), f.Value)
}

// ParseHex parses whitespace separated hexadecimal bytes such as "01 02 80" or "0xF0 0 0".
func ParseHex(s string) ([]byte, error) {
	fields := strings.Fields(s)
	buf := make([]byte, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(field), "0x"), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrHexByte, strconv.Quote(field))
		}
		buf = append(buf, byte(v))
	}

	return buf, nil
}

// ReadFrame blocks until FrameSize bytes have been read from r.
// Reads returning no data (e.g. a serial read timeout) are retried; ctx is checked between reads.
// A partial frame is never returned: EOF in the middle of a frame is io.ErrUnexpectedEOF.
func ReadFrame(ctx context.Context, r io.Reader) (Frame, error) {
	var buf [FrameSize]byte
	var n int

	for n < FrameSize {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}

		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			if n == FrameSize {
				break
			}
			if errors.Is(err, io.EOF) && n > 0 {
				return Frame{}, io.ErrUnexpectedEOF
			}
			return Frame{}, err
		}
	}

	return ParseFrame(buf[:])
}
