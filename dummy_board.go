package boardlink

import (
	"fmt"
	"maps"
	"sync"

	"github.com/mdouchement/boardlink/protocol"
	"github.com/mdouchement/logger"
)

// A DummyBoard records what the dispatcher drives. It should only be used for dev & tests.
type DummyBoard struct {
	sync     sync.Mutex
	attached map[int]uint32
	duties   map[int]uint32
	levels   map[int]bool
	color    protocol.Color
	shown    protocol.Color
	writes   int
	log      logger.Logger
}

func NewDummyBoard() *DummyBoard {
	return &DummyBoard{
		attached: make(map[int]uint32),
		duties:   make(map[int]uint32),
		levels:   make(map[int]bool),
	}
}

func (b *DummyBoard) SetLogger(l logger.Logger) {
	b.log = l
}

func (b *DummyBoard) Attach(pin int, frequency uint32, resolution uint8) error {
	b.sync.Lock()
	defer b.sync.Unlock()

	if frequency == 0 || resolution == 0 || resolution > 16 {
		return fmt.Errorf("pin %d: invalid frequency/resolution %d/%d", pin, frequency, resolution)
	}

	b.attached[pin] = frequency
	if b.log != nil {
		b.log.Debugf("Attach pin %d @ %dHz/%dbit", pin, frequency, resolution)
	}
	return nil
}

func (b *DummyBoard) Write(pin int, duty uint32) {
	b.sync.Lock()
	defer b.sync.Unlock()

	b.writes++
	b.duties[pin] = duty
	if b.log != nil {
		b.log.Infof("PWM pin %d duty %d", pin, duty)
	}
}

func (b *DummyBoard) Drive(pin int, high bool) {
	b.sync.Lock()
	defer b.sync.Unlock()

	b.writes++
	b.levels[pin] = high
	if b.log != nil {
		b.log.Infof("GPIO pin %d high=%t", pin, high)
	}
}

func (b *DummyBoard) SetColor(r, g, bl uint8) {
	b.sync.Lock()
	defer b.sync.Unlock()

	b.color = protocol.Color{R: r, G: g, B: bl}
}

func (b *DummyBoard) Show() {
	b.sync.Lock()
	defer b.sync.Unlock()

	b.shown = b.color
	if b.log != nil {
		b.log.Infof("NeoPixel %s", b.shown.Hex())
	}
}

// Attached reports whether pin has been attached to a PWM generator.
func (b *DummyBoard) Attached(pin int) bool {
	b.sync.Lock()
	defer b.sync.Unlock()

	_, ok := b.attached[pin]
	return ok
}

// Duty returns the last duty written on pin.
func (b *DummyBoard) Duty(pin int) (uint32, bool) {
	b.sync.Lock()
	defer b.sync.Unlock()

	v, ok := b.duties[pin]
	return v, ok
}

// Level returns the last level driven on pin.
func (b *DummyBoard) Level(pin int) (bool, bool) {
	b.sync.Lock()
	defer b.sync.Unlock()

	v, ok := b.levels[pin]
	return v, ok
}

// Writes returns the number of PWM and GPIO writes so far.
func (b *DummyBoard) Writes() int {
	b.sync.Lock()
	defer b.sync.Unlock()

	return b.writes
}

// Shown returns the color currently displayed by the indicator.
func (b *DummyBoard) Shown() protocol.Color {
	b.sync.Lock()
	defer b.sync.Unlock()

	return b.shown
}

func (b *DummyBoard) Snapshot() BoardState {
	b.sync.Lock()
	defer b.sync.Unlock()

	return BoardState{
		Duties: maps.Clone(b.duties),
		Levels: maps.Clone(b.levels),
		Color:  b.color,
		Shown:  b.shown,
	}
}
