package boardlink

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/mdouchement/boardlink/protocol"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Debug      bool              `yaml:"debug"`
	Socket     string            `yaml:"socket"`
	ResetGrace Duration          `yaml:"reset_grace"`
	Link       LinkSettings      `yaml:"link"`
	PWM        PWMSettings       `yaml:"pwm"`
	Servo      ServoSettings     `yaml:"servo"`
	NeoPixel   NeoPixelSettings  `yaml:"neopixel"`
	Motors     map[string]*Motor `yaml:"motors"`
}

type LinkSettings struct {
	Port     string `yaml:"port"` // Empty means auto-detect
	BaudRate int    `yaml:"baud_rate"`
}

type PWMSettings struct {
	Frequency  uint32 `yaml:"frequency"`
	Resolution uint8  `yaml:"resolution"`
}

type ServoSettings struct {
	Pin        int    `yaml:"pin"`
	Frequency  uint32 `yaml:"frequency"`
	Resolution uint8  `yaml:"resolution"`
}

type NeoPixelSettings struct {
	Pin int `yaml:"pin"`
}

// A Motor is the wiring of one H-bridge channel: a PWM enable pin and two direction terminals.
type Motor struct {
	ID     protocol.Target `yaml:"-"`
	Label  string          `yaml:"label"`
	Enable int             `yaml:"enable"`
	In1    int             `yaml:"in1"`
	In2    int             `yaml:"in2"`
}

// Default returns the wiring of the reference ESP32-S3 test board.
func Default() Config {
	return Config{
		ResetGrace: Duration{Duration: 100 * time.Millisecond},
		Link: LinkSettings{
			BaudRate: protocol.DefaultBaudRate,
		},
		PWM: PWMSettings{
			Frequency:  1000,
			Resolution: 10,
		},
		Servo: ServoSettings{
			Pin:        13,
			Frequency:  50,
			Resolution: 16,
		},
		NeoPixel: NeoPixelSettings{
			Pin: 48,
		},
		Motors: map[string]*Motor{
			"motor1": {ID: protocol.Motor1, Label: "motor1", Enable: 4, In1: 5, In2: 6},
			"motor2": {ID: protocol.Motor2, Label: "motor2", Enable: 7, In1: 15, In2: 16},
			"motor3": {ID: protocol.Motor3, Label: "motor3", Enable: 17, In1: 18, In2: 8},
			"motor4": {ID: protocol.Motor4, Label: "motor4", Enable: 9, In1: 10, In2: 11},
		},
	}
}

func Load(path string) (Config, error) {
	c := Default()

	f, err := os.Open(path)
	if err != nil {
		return c, err
	}
	defer f.Close()

	codec := yaml.NewDecoder(f)
	err = codec.Decode(&c)
	if err != nil {
		return c, err
	}

	return c, c.Validate()
}

// Validate checks the settings and assigns the motor IDs.
func (c *Config) Validate() error {
	if c.Link.BaudRate <= 0 {
		return fmt.Errorf("link: invalid baud_rate %d", c.Link.BaudRate)
	}
	if c.PWM.Frequency == 0 || c.PWM.Resolution == 0 || c.PWM.Resolution > 16 {
		return fmt.Errorf("pwm: invalid frequency/resolution %d/%d", c.PWM.Frequency, c.PWM.Resolution)
	}
	if c.Servo.Frequency == 0 || c.Servo.Resolution == 0 || c.Servo.Resolution > 16 {
		return fmt.Errorf("servo: invalid frequency/resolution %d/%d", c.Servo.Frequency, c.Servo.Resolution)
	}
	if c.ResetGrace.Duration < 0 {
		return fmt.Errorf("reset_grace: must be positive")
	}

	//

	reName := regexp.MustCompile(`^motor(\d+)$`)
	seen := map[protocol.Target]bool{}
	pins := map[int]string{}
	for mname, motor := range c.Motors {
		match := reName.FindStringSubmatch(mname)
		if len(match) != 2 {
			return fmt.Errorf("%s: invalid name", mname)
		}
		id, err := strconv.ParseUint(match[1], 10, 8)
		if err != nil {
			return fmt.Errorf("%s: invalid number", mname) // Should not happen because of the regex check
		}
		if id < 1 || id > protocol.MotorCount {
			return fmt.Errorf("%s: invalid number range", mname)
		}
		if motor == nil {
			return fmt.Errorf("%s: no wiring provided", mname)
		}

		motor.ID = protocol.Target(id)
		if seen[motor.ID] {
			return fmt.Errorf("%s: motor%d defined twice", mname, id)
		}
		seen[motor.ID] = true
		if motor.Label == "" {
			motor.Label = mname
		}

		for _, pin := range []int{motor.Enable, motor.In1, motor.In2} {
			if pin < 0 {
				return fmt.Errorf("%s: invalid pin %d", mname, pin)
			}
			if other, ok := pins[pin]; ok {
				return fmt.Errorf("%s: pin %d already used by %s", mname, pin, other)
			}
			pins[pin] = mname
		}
	}

	for id := protocol.Motor1; id <= protocol.Motor4; id++ {
		if !seen[id] {
			return fmt.Errorf("motor%d: no wiring provided", id)
		}
	}

	return nil
}

// Motor returns the wiring of the given PWM channel.
func (c *Config) Motor(id protocol.Target) (*Motor, bool) {
	for _, m := range c.Motors {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// SortedMotors returns the motors ordered by channel.
func (c *Config) SortedMotors() []*Motor {
	motors := make([]*Motor, 0, len(c.Motors))
	for _, m := range c.Motors {
		motors = append(motors, m)
	}

	slices.SortFunc(motors, func(a, b *Motor) int {
		return int(a.ID) - int(b.ID)
	})
	return motors
}

// Terminal returns the physical pin of a motor polarity terminal (1 or 2).
func (m *Motor) Terminal(n uint8) (int, bool) {
	switch n {
	case 1:
		return m.In1, true
	case 2:
		return m.In2, true
	}
	return 0, false
}

// Pins names every wired output pin.
func (c *Config) Pins() map[int]string {
	pins := map[int]string{
		c.Servo.Pin:    "servo",
		c.NeoPixel.Pin: "neopixel",
	}
	for _, m := range c.Motors {
		pins[m.Enable] = m.Label + ".enable"
		pins[m.In1] = m.Label + ".in1"
		pins[m.In2] = m.Label + ".in2"
	}
	return pins
}
