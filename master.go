package boardlink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mdouchement/boardlink/protocol"
	"github.com/mdouchement/logger"
)

const responseDrain = time.Second

// A responseQueue buffers the bytes read from the link until the console loop prints them.
type responseQueue struct {
	sync  sync.Mutex
	buf   []byte
	ready chan struct{}
}

func (q *responseQueue) push(p []byte) {
	if len(p) == 0 {
		return
	}

	q.sync.Lock()
	q.buf = append(q.buf, p...)
	q.sync.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *responseQueue) pop() []byte {
	q.sync.Lock()
	defer q.sync.Unlock()

	buf := q.buf
	q.buf = nil
	return buf
}

// A Master relays console commands to the slave and prints its responses.
type Master struct {
	link      io.ReadWriter
	out       io.Writer
	log       logger.Logger
	status    func() string
	sent      int
	responses int
}

func NewMaster(link io.ReadWriter, out io.Writer, log logger.Logger) *Master {
	return &Master{
		link: link,
		out:  out,
		log:  log,
	}
}

// SetStatus sets the description of the local configuration printed by the status command.
func (m *Master) SetStatus(fn func() string) {
	m.status = fn
}

// Handle processes one console line. It prints exactly one line unless the line is empty.
func (m *Master) Handle(line string) error {
	e := Encode(line)

	switch e.Action {
	case ActionNone:
		return nil
	case ActionStatus:
		status := fmt.Sprintf("%d frames sent - %d responses received", m.sent, m.responses)
		if m.status != nil {
			status = m.status() + " - " + status
		}
		fmt.Fprintf(m.out, "Status: %s\n", status)
		return nil
	case ActionUnrecognized:
		fmt.Fprintln(m.out, e.Echo)
		return nil
	}

	if e.OutOfRange {
		m.log.Warnf("%s: value out of range, sending %s as is", line, e.Frame)
	}

	if _, err := m.link.Write(e.Frame.Bytes()); err != nil {
		fmt.Fprintf(m.out, "Could not send %s: %s\n", e.Frame, err)
		return fmt.Errorf("send: %w", err)
	}
	m.sent++

	fmt.Fprintln(m.out, e.Echo)
	return nil
}

// HandleResponse prints a byte received from the slave.
func (m *Master) HandleResponse(b byte) {
	m.responses++
	fmt.Fprintf(m.out, "← Slave resp: 0x%02X (%s)\n", b, protocol.Response(b))
}

// Run relays console lines until the console is closed, ctx is done or the link fails.
func (m *Master) Run(ctx context.Context, console io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(console)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			m.log.WithError(err).Error("Could not read console")
		}
	}()

	// The link is always read, even while a frame is being written, so a slave blocked on its
	// response can never block the master in return.
	var received responseQueue
	received.ready = make(chan struct{}, 1)
	failure := make(chan error, 1)
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := m.link.Read(buf)
			received.push(buf[:n])
			if err != nil {
				failure <- err
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	// handleResponses reports whether every sent frame has been answered after the console is closed.
	handleResponses := func() bool {
		for _, b := range received.pop() {
			m.HandleResponse(b)
		}
		return lines == nil && m.responses >= m.sent
	}

	var drain <-chan time.Time
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				if m.responses >= m.sent {
					return nil
				}
				// Console closed, give the slave some time to answer the last commands.
				lines = nil
				drain = time.After(responseDrain)
				continue
			}
			if err := m.Handle(line); err != nil {
				return err
			}
		case <-received.ready:
			if handleResponses() {
				return nil
			}
		case <-drain:
			return nil
		case err := <-failure:
			handleResponses()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("link: %w", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
