package monitor

import (
	"fmt"
	"maps"
	"slices"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mdouchement/boardlink"
)

type model struct {
	table  table.Model
	footer string
}

func newTUI() *model {
	columns := []table.Column{
		{Title: "Pins", Width: 24},
		{Title: "Outputs", Width: 20},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		Foreground(lipgloss.Color("#00afff")).
		BorderForeground(lipgloss.Color("#00afff")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#ffffff")).
		Bold(false)
	t.SetStyles(s)

	return &model{
		table: t,
	}
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(msg.Height - 2)
	case boardlink.BoardState:
		m.update(msg)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	return m.table.View() + "\n" + m.footer
}

func (m *model) update(state boardlink.BoardState) {
	name := func(pin int) string {
		if n, ok := state.Pins[pin]; ok {
			return fmt.Sprintf("%s (%d)", n, pin)
		}
		return fmt.Sprintf("pin %d", pin)
	}

	rows := make([]table.Row, 0, len(state.Duties)+len(state.Levels)+1)
	for _, pin := range slices.Sorted(maps.Keys(state.Duties)) {
		rows = append(rows, table.Row{name(pin), fmt.Sprintf("duty %5d", state.Duties[pin])})
	}
	for _, pin := range slices.Sorted(maps.Keys(state.Levels)) {
		level := "LOW"
		if state.Levels[pin] {
			level = "HIGH"
		}
		rows = append(rows, table.Row{name(pin), level})
	}

	swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(state.Shown.Hex())).Render("●")
	rows = append(rows, table.Row{"neopixel", swatch + " " + state.Shown.Hex()})
	m.table.SetRows(rows)

	m.footer = fmt.Sprintf("restarts: %d", state.Restarts)
	if last := state.Last; last != nil {
		m.footer += fmt.Sprintf(" - last: %s %s => 0x%02X (%s)",
			last.Frame.Opcode, last.Frame, uint8(last.Response), last.Response)
		if last.Error != "" {
			m.footer += " - " + last.Error
		}
	}
}
