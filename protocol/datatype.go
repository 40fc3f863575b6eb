package protocol

import "fmt"

type (
	Opcode   uint8
	Response uint8
	Target   uint8
)

// A Frame is the fixed size request sent by the master to the slave.
type Frame struct {
	Opcode Opcode `json:"opcode"`
	Target Target `json:"target"`
	Value  uint8  `json:"value"`
}

// PinRef identifies one of the two polarity terminals of a motor driver.
type PinRef struct {
	Motor    Target `json:"motor"`
	Terminal uint8  `json:"terminal"`
}

type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

var (
	opcodes = map[Opcode]string{
		OpcodePWM:      "PWM",
		OpcodeDigital:  "DIGITAL",
		OpcodeServo:    "SERVO",
		OpcodeNeoPixel: "NEOPIXEL",
		OpcodePing:     "PING",
		OpcodeReset:    "RESET",
	}

	responses = map[Response]string{
		ResponseReady:      "PONG / OK",
		ResponsePWMOK:      "PWM OK",
		ResponseDigitalOK:  "DIGITAL OK",
		ResponseServoOK:    "SERVO OK",
		ResponseNeoPixelOK: "NEOPIXEL OK",
		ResponseResetOK:    "RESET OK",
		ResponseError:      "ERROR",
	}

	digitalPins = map[Target]PinRef{
		0x11: {Motor: Motor1, Terminal: 1},
		0x12: {Motor: Motor1, Terminal: 2},
		0x21: {Motor: Motor2, Terminal: 1},
		0x22: {Motor: Motor2, Terminal: 2},
		0x31: {Motor: Motor3, Terminal: 1},
		0x32: {Motor: Motor3, Terminal: 2},
		0x41: {Motor: Motor4, Terminal: 1},
		0x42: {Motor: Motor4, Terminal: 2},
	}

	palette = map[uint8]Color{
		ColorOff:   {},
		ColorRed:   {R: 255},
		ColorGreen: {G: 255},
		ColorBlue:  {B: 255},
		ColorWhite: {R: 255, G: 255, B: 255},
	}

	colorNames = map[uint8]string{
		ColorOff:   "off",
		ColorRed:   "red",
		ColorGreen: "green",
		ColorBlue:  "blue",
		ColorWhite: "white",
	}
)

func (o Opcode) Valid() bool {
	_, ok := opcodes[o]
	return ok
}

func (o Opcode) String() string {
	if s, ok := opcodes[o]; ok {
		return s
	}
	return fmt.Sprintf("0x%02X", uint8(o))
}

func (r Response) Known() bool {
	_, ok := responses[r]
	return ok
}

// String returns the human meaning of the response byte.
func (r Response) String() string {
	if s, ok := responses[r]; ok {
		return s
	}
	return "unknown"
}

// Motor reports whether t is one of the PWM motor channels.
func (t Target) Motor() bool {
	return t >= Motor1 && t <= Motor4
}

// DigitalPin resolves a DIGITAL target tag.
func DigitalPin(t Target) (PinRef, bool) {
	ref, ok := digitalPins[t]
	return ref, ok
}

// DigitalTargets returns the 8 valid DIGITAL target tags in ascending order.
func DigitalTargets() []Target {
	return []Target{0x11, 0x12, 0x21, 0x22, 0x31, 0x32, 0x41, 0x42}
}

// PaletteColor resolves a NEOPIXEL value.
func PaletteColor(v uint8) (Color, bool) {
	c, ok := palette[v]
	return c, ok
}

// ColorName returns the palette name of v, or its hex form.
func ColorName(v uint8) string {
	if s, ok := colorNames[v]; ok {
		return s
	}
	return fmt.Sprintf("0x%02X", v)
}

func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (r PinRef) String() string {
	return fmt.Sprintf("M%d.%d", r.Motor, r.Terminal)
}
