package boardlink

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mdouchement/boardlink/protocol"
)

type Action int

const (
	ActionNone Action = iota
	ActionSend
	ActionStatus
	ActionUnrecognized
)

// Encoded is the outcome of one console line.
type Encoded struct {
	Action Action
	Frame  protocol.Frame
	Echo   string
	// OutOfRange is set when a number was outside its documented range.
	// It is still sent, truncated to 8 bits.
	OutOfRange bool
}

// digitalAliases maps the decimal pin names typed by the operator to DIGITAL target tags.
var digitalAliases = map[int]protocol.Target{
	11: 0x11, 12: 0x12,
	21: 0x21, 22: 0x22,
	31: 0x31, 32: 0x32,
	41: 0x41, 42: 0x42,
}

type arg struct {
	v  int
	lo int
	hi int
}

func (a arg) raw() uint8 {
	return uint8(a.v) // Truncated on purpose, the slave receives the raw low byte.
}

func (a arg) outOfRange() bool {
	return a.v < a.lo || a.v > a.hi
}

// Encode translates an operator command into a frame.
// Commands with a wrong number of arguments or a non-decimal argument are unrecognized.
func Encode(line string) Encoded {
	line = strings.TrimSpace(line)
	if line == "" {
		return Encoded{Action: ActionNone}
	}

	fields := strings.Fields(line)
	unrecognized := Encoded{
		Action: ActionUnrecognized,
		Echo:   fmt.Sprintf("Command not recognized: %s", line),
	}

	parse := func(i, lo, hi int) (arg, bool) {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return arg{}, false
		}
		return arg{v: v, lo: lo, hi: hi}, true
	}

	send := func(f protocol.Frame, echo string, args ...arg) Encoded {
		e := Encoded{Action: ActionSend, Frame: f, Echo: "→ " + echo}
		for _, a := range args {
			e.OutOfRange = e.OutOfRange || a.outOfRange()
		}
		return e
	}

	switch fields[0] {
	case "ping":
		if len(fields) != 1 {
			return unrecognized
		}
		return send(protocol.NewFrame(protocol.OpcodePing, 0, 0), "PING")

	case "reset":
		if len(fields) != 1 {
			return unrecognized
		}
		return send(protocol.NewFrame(protocol.OpcodeReset, 0, 0), "RESET")

	case "status":
		if len(fields) != 1 {
			return unrecognized
		}
		return Encoded{Action: ActionStatus}

	case "pwm":
		if len(fields) != 3 {
			return unrecognized
		}
		m, ok := parse(1, 1, protocol.MotorCount)
		if !ok {
			return unrecognized
		}
		v, ok := parse(2, 0, 255)
		if !ok {
			return unrecognized
		}
		return send(protocol.NewFrame(protocol.OpcodePWM, protocol.Target(m.raw()), v.raw()),
			fmt.Sprintf("PWM M%d=%d", m.v, v.v), m, v)

	case "servo":
		if len(fields) != 2 {
			return unrecognized
		}
		v, ok := parse(1, 0, 180)
		if !ok {
			return unrecognized
		}
		return send(protocol.NewFrame(protocol.OpcodeServo, 0, v.raw()), fmt.Sprintf("SERVO=%d°", v.v), v)

	case "neo":
		if len(fields) != 2 {
			return unrecognized
		}
		if strings.EqualFold(fields[1], "ff") {
			return send(protocol.NewFrame(protocol.OpcodeNeoPixel, 0, protocol.ColorWhite), "NEO=white")
		}
		c, ok := parse(1, 0, 255)
		if !ok {
			return unrecognized
		}
		e := send(protocol.NewFrame(protocol.OpcodeNeoPixel, 0, c.raw()),
			fmt.Sprintf("NEO=%s", protocol.ColorName(c.raw())), c)
		_, known := protocol.PaletteColor(c.raw())
		e.OutOfRange = e.OutOfRange || !known
		return e

	case "digital":
		if len(fields) != 3 {
			return unrecognized
		}
		p, ok := parse(1, 0, 255)
		if !ok {
			return unrecognized
		}
		v, ok := parse(2, 0, 1)
		if !ok {
			return unrecognized
		}

		target, known := digitalAliases[p.v]
		if !known {
			target = protocol.Target(p.raw())
		}
		e := send(protocol.NewFrame(protocol.OpcodeDigital, target, v.raw()),
			fmt.Sprintf("DIGITAL 0x%02X=%d", uint8(target), v.v), p, v)
		e.OutOfRange = e.OutOfRange || !known
		return e
	}

	return unrecognized
}
