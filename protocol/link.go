package protocol

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mdouchement/logger"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var ErrNotFound = errors.New("board not found/plugged")

// USB bridges commonly found on ESP32 boards.
var knownBridges = []struct {
	VID, PID string
	Name     string
}{
	{VID: "10c4", PID: "ea60", Name: "CP210x"},
	{VID: "1a86", PID: "7523", Name: "CH340"},
	{VID: "1a86", PID: "55d4", Name: "CH9102"},
	{VID: "0403", PID: "6001", Name: "FT232"},
	{VID: "303a", PID: "1001", Name: "ESP32 USB-JTAG"},
}

// A Link is a point-to-point serial connection (8N1) between the master and the slave.
// It implements io.ReadWriter; reads time out and then return no data without error.
type Link struct {
	sync   sync.Mutex
	pname  string
	serial serial.Port
	log    logger.Logger
}

// Ports lists the serial ports of the host, flagging the known ESP32 USB bridges.
func Ports() ([]*enumerator.PortDetails, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(ports, func(a, b *enumerator.PortDetails) int {
		return strings.Compare(a.Name, b.Name)
	})
	return ports, nil
}

// Bridge returns the name of the USB bridge of the given port if it is a known one.
func Bridge(p *enumerator.PortDetails) (string, bool) {
	if !p.IsUSB {
		return "", false
	}

	for _, b := range knownBridges {
		if strings.EqualFold(p.VID, b.VID) && strings.EqualFold(p.PID, b.PID) {
			return b.Name, true
		}
	}
	return "", false
}

func OpenAuto(baud int) (*Link, error) {
	ports, err := Ports()
	if err != nil {
		return nil, err
	}

	var port *enumerator.PortDetails
	for _, p := range ports {
		if _, ok := Bridge(p); ok {
			port = p
			break
		}
	}
	if port == nil {
		return nil, ErrNotFound
	}

	fmt.Printf("Found board on %s - VID: %s - PID: %s - SN: %s\n", port.Name, port.VID, port.PID, port.SerialNumber)
	return Open(port.Name, baud)
}

func Open(port string, baud int) (*Link, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	l := &Link{
		pname: port,
	}

	var err error
	l.serial, err = serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}

	if err = l.serial.SetReadTimeout(200 * time.Millisecond); err != nil {
		return nil, errors.Join(err, l.serial.Close())
	}

	if err = l.serial.ResetInputBuffer(); err != nil {
		return nil, errors.Join(err, l.serial.Close())
	}

	if err = l.serial.ResetOutputBuffer(); err != nil {
		return nil, errors.Join(err, l.serial.Close())
	}

	return l, nil
}

func (l *Link) SetLogger(log logger.Logger) {
	l.log = log
}

func (l *Link) Close() error {
	return errors.Join(l.serial.ResetOutputBuffer(), l.serial.Close())
}

func (l *Link) Port() string {
	return l.pname
}

func (l *Link) Read(p []byte) (int, error) {
	n, err := l.serial.Read(p)
	if err != nil {
		return n, fmt.Errorf("read: %w", err)
	}

	if n > 0 && l.log != nil {
		l.log.Debugf("rx % X", p[:n])
	}
	return n, nil
}

// Write sends p in one piece. Concurrent writers never interleave their bytes.
func (l *Link) Write(p []byte) (int, error) {
	l.sync.Lock()
	defer l.sync.Unlock()

	n, err := l.serial.Write(p)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}
	if n != len(p) && l.log != nil {
		l.log.Warnf("Invalid write: %d of %d", n, len(p))
	}

	if l.log != nil {
		l.log.Debugf("tx % X", p[:n])
	}
	return n, nil
}

// Drain waits until every written byte has been transmitted.
func (l *Link) Drain() error {
	l.sync.Lock()
	defer l.sync.Unlock()

	if err := l.serial.Drain(); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	return nil
}
