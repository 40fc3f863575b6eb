package boardlink

import (
	"time"

	"github.com/mdouchement/boardlink/protocol"
)

// PWM is a PWM signal generator.
type PWM interface {
	Attach(pin int, frequency uint32, resolution uint8) error
	Write(pin int, duty uint32)
}

// GPIO drives digital output pins.
type GPIO interface {
	Drive(pin int, high bool)
}

// Indicator is a single RGB pixel.
type Indicator interface {
	SetColor(r, g, b uint8)
	Show()
}

// A Board bundles the peripherals driven by the dispatcher.
type Board interface {
	PWM
	GPIO
	Indicator
}

// A Record describes one dispatched frame.
type Record struct {
	At       time.Time         `json:"at"`
	Frame    protocol.Frame    `json:"frame"`
	Response protocol.Response `json:"response"`
	Error    string            `json:"error,omitempty"`
}

// BoardState is the observable state of a board, streamed by the monitor.
type BoardState struct {
	Pins     map[int]string `json:"pins"`   // pin => wiring name
	Duties   map[int]uint32 `json:"duties"` // pin => duty
	Levels   map[int]bool   `json:"levels"` // pin => high
	Color    protocol.Color `json:"color"`
	Shown    protocol.Color `json:"shown"`
	Restarts int            `json:"restarts"`
	Last     *Record        `json:"last,omitempty"`
}

func ToPtr[T any](v T) *T {
	return &v
}

const (
	eventUpdate  = "update"
	eventWatch   = "watch"
	eventUnwatch = "unwatch"
)

type event struct {
	name      string
	state     BoardState
	monitorID int64
	monitor   chan<- []byte
}

func genID() int64 {
	time.Sleep(time.Nanosecond)
	return time.Now().UnixNano()
}
