package protocol

const (
	FrameSize    = 3
	ResponseSize = 1

	DefaultBaudRate = 9600
)

const (
	OpcodePWM      Opcode = 0x01
	OpcodeDigital  Opcode = 0x02
	OpcodeServo    Opcode = 0x03
	OpcodeNeoPixel Opcode = 0x04
	OpcodePing     Opcode = 0xF0
	OpcodeReset    Opcode = 0xFF
)

const (
	ResponseReady      Response = 0xAA // Also the answer to PING (PONG)
	ResponsePWMOK      Response = 0x01
	ResponseDigitalOK  Response = 0x02
	ResponseServoOK    Response = 0x03
	ResponseNeoPixelOK Response = 0x04
	ResponseResetOK    Response = 0xBB
	ResponseError      Response = 0xEE
)

const (
	Motor1 Target = iota + 1 // 0x01
	Motor2
	Motor3
	Motor4

	MotorCount = 4
)

const (
	ColorOff   byte = 0x00
	ColorRed   byte = 0x01
	ColorGreen byte = 0x02
	ColorBlue  byte = 0x03
	ColorWhite byte = 0xFF
)
