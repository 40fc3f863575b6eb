package tester

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mdouchement/boardlink"
	"github.com/mdouchement/boardlink/protocol"
)

const (
	ModeMaster = "master"
	ModeSlave  = "slave"
)

const (
	colorMuted   = "#94a3b8"
	colorSent    = "#60a5fa"
	colorRaw     = "#c084fc"
	colorText    = "#86efac"
	colorFailure = "#f87171"
	colorInfo    = "#22d3ee"
)

var responseColors = map[protocol.Response]string{
	protocol.ResponseReady:      "#22c55e",
	protocol.ResponsePWMOK:      "#3b82f6",
	protocol.ResponseDigitalOK:  "#8b5cf6",
	protocol.ResponseServoOK:    "#f59e0b",
	protocol.ResponseNeoPixelOK: "#ec4899",
	protocol.ResponseResetOK:    "#06b6d4",
	protocol.ResponseError:      "#ef4444",
}

// Help and banner lines printed by a master board.
var skipPrefixes = []string{
	"===", "Commands", "  ping", "  pwm", "  servo", "  neo", "  digital", "  reset", "UART", "Status:",
}

type lostMsg struct {
	err error
}

type model struct {
	link  io.Writer
	mode  string
	info  string
	now   func() time.Time
	input textinput.Model
	logs  viewport.Model
	lines []string

	motors [protocol.MotorCount]uint8
	servo  uint8
	neo    uint8
}

func newTUI(link io.Writer, mode, info string) *model {
	input := textinput.New()
	input.Placeholder = "ping | pwm 2 128 | servo 90 | neo ff | digital 21 1 | raw 01 02 80"
	input.Prompt = mode + "> "
	input.Focus()

	m := &model{
		link:  link,
		mode:  mode,
		info:  info,
		now:   time.Now,
		input: input,
		logs:  viewport.New(80, 20),
		servo: 90,
	}
	m.log(fmt.Sprintf("Connected to %s (%s mode)", info, mode), colorInfo)
	return m
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.logs.Width = msg.Width
		m.logs.Height = max(msg.Height-4, 1)
		m.input.Width = msg.Width - len(m.input.Prompt) - 1
		m.refresh()
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := m.input.Value()
			m.input.Reset()
			m.send(text)
			return m, nil
		}
	case boardlink.Chunk:
		m.receive(msg)
		return m, nil
	case lostMsg:
		m.log(fmt.Sprintf("Connection lost: %s", msg.err), colorFailure)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.logs.View(),
		lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted)).Render(m.status()),
		m.input.View(),
	)
}

func (m *model) send(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if raw, ok := strings.CutPrefix(text, "raw "); ok {
		m.sendRaw(strings.TrimSpace(raw))
		return
	}

	e := boardlink.Encode(text)
	switch e.Action {
	case boardlink.ActionNone:
		return
	case boardlink.ActionUnrecognized:
		m.log(e.Echo, colorFailure)
		return
	case boardlink.ActionStatus:
		m.log(fmt.Sprintf("Status: %s (%s mode)", m.info, m.mode), colorInfo)
		return
	}

	if m.mode == ModeMaster {
		txt := e.Frame.Text()
		if err := m.write([]byte(txt + "\n")); err != nil {
			return
		}
		m.log("→ "+txt, colorSent)
	} else {
		if err := m.write(e.Frame.Bytes()); err != nil {
			return
		}
		m.log(e.Echo, colorSent)
	}

	switch e.Frame.Opcode {
	case protocol.OpcodePWM:
		if e.Frame.Target.Motor() {
			m.motors[e.Frame.Target-1] = e.Frame.Value
		}
	case protocol.OpcodeServo:
		m.servo = e.Frame.Value
	case protocol.OpcodeNeoPixel:
		m.neo = e.Frame.Value
	}
}

func (m *model) sendRaw(raw string) {
	if m.mode == ModeMaster {
		if err := m.write([]byte(raw + "\n")); err != nil {
			return
		}
		m.log("→ "+raw, colorRaw)
		return
	}

	buf, err := protocol.ParseHex(raw)
	if err != nil {
		m.log(fmt.Sprintf("Error: %s", err), colorFailure)
		return
	}
	if err = m.write(buf); err != nil {
		return
	}
	m.log(fmt.Sprintf("→ BIN % X", buf), colorRaw)
}

func (m *model) write(p []byte) error {
	_, err := m.link.Write(p)
	if err != nil {
		m.log(fmt.Sprintf("Error: %s", err), colorFailure)
	}
	return err
}

func (m *model) receive(chunk boardlink.Chunk) {
	if chunk.IsLine {
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(chunk.Line, prefix) {
				return
			}
		}
		m.log("← "+chunk.Line, colorText)
		return
	}

	r := protocol.Response(chunk.Byte)
	if !r.Known() {
		m.log(fmt.Sprintf("← 0x%02X", chunk.Byte), colorMuted)
		return
	}
	m.log("← "+r.String(), responseColors[r])
}

func (m *model) status() string {
	var b strings.Builder
	for i, v := range m.motors {
		fmt.Fprintf(&b, "M%d %3d  ", i+1, v)
	}
	fmt.Fprintf(&b, "| servo %3d° | neo %s", m.servo, protocol.ColorName(m.neo))
	return b.String()
}

func (m *model) log(msg, color string) {
	ts := lipgloss.NewStyle().Foreground(lipgloss.Color("#475569")).Render("[" + m.now().Format("15:04:05") + "]")
	m.lines = append(m.lines, ts+" "+lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(msg))
	m.refresh()
}

func (m *model) refresh() {
	m.logs.SetContent(strings.Join(m.lines, "\n"))
	m.logs.GotoBottom()
}
