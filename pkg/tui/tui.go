// Package tui runs a calculator in the terminal with bubbletea.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/antibyte/retrocalc/pkg/calculator"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/screen"
)

type tickMsg time.Time

type styles struct {
	screen   lipgloss.Style
	inverse  lipgloss.Style
	status   lipgloss.Style
	errorMsg lipgloss.Style
	help     lipgloss.Style
}

func defaultStyles() styles {
	lcd := lipgloss.Color("#1c2b1c")
	return styles{
		screen: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#6b7d6b")).
			Foreground(lcd).
			Background(lipgloss.Color("#a8c0a0")).
			Padding(0, 1),
		inverse:  lipgloss.NewStyle().Reverse(true),
		status:   lipgloss.NewStyle().Faint(true),
		errorMsg: lipgloss.NewStyle().Foreground(lipgloss.Color("#d05050")).Bold(true),
		help:     lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")),
	}
}

// Model is the bubbletea model wrapping one calculator.
type Model struct {
	calc     *calculator.Calculator
	interval time.Duration
	keys     keyMap
	styles   styles
	showHelp bool
}

// New returns a model that ticks calc every interval.
func New(calc *calculator.Calculator, interval time.Duration) Model {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return Model{
		calc:     calc,
		interval: interval,
		keys:     defaultKeys,
		styles:   defaultStyles(),
	}
}

// Run shows the model full screen until the user quits.
func Run(calc *calculator.Calculator, interval time.Duration) error {
	_, err := tea.NewProgram(New(calc, interval), tea.WithAltScreen()).Run()
	return err
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.calc.Tick()
		return m, m.tick()
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		}
		code, text, ok := translateKey(msg)
		if !ok {
			return m, nil
		}
		// terminals only report presses
		m.calc.KeyDown(code)
		m.calc.KeyUp(code, text)
		logger.Debug(logger.AreaTUI, "key %s %q", code, text)
	}
	return m, nil
}

func (m Model) View() string {
	snap := m.calc.Snapshot()

	var body string
	if snap.Screen == calculator.ScreenMenu.String() {
		body = m.renderMenu(snap)
	} else {
		body = m.renderHome(snap)
	}

	var b strings.Builder
	b.WriteString(m.styles.screen.Render(body))
	b.WriteByte('\n')
	b.WriteString(m.renderStatus(snap))
	if m.showHelp {
		b.WriteByte('\n')
		b.WriteString(m.renderHelp())
	}
	return b.String()
}

func (m Model) renderHome(snap calculator.Snapshot) string {
	lines := make([]string, len(snap.Lines))
	for i, line := range snap.Lines {
		if snap.ShowCursor && i == snap.CursorRow {
			line = m.withCursor(line, snap.CursorCol)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// withCursor draws the cell at col in reverse video.
func (m Model) withCursor(line string, col int) string {
	var before, at, after strings.Builder
	pos := 0
	for _, r := range line {
		w := runewidth.RuneWidth(r)
		switch {
		case pos+w <= col:
			before.WriteRune(r)
		case pos <= col && at.Len() == 0:
			at.WriteRune(r)
		default:
			after.WriteRune(r)
		}
		pos += w
	}
	cell := at.String()
	if cell == "" {
		cell = " "
	}
	return before.String() + m.styles.inverse.Render(cell) + after.String()
}

func (m Model) renderMenu(snap calculator.Snapshot) string {
	rows := make([]string, 0, screen.Rows)
	rows = append(rows, m.styles.inverse.Render(runewidth.FillRight(snap.MenuTitle, screen.Cols)))
	for i, label := range snap.MenuLabels {
		if len(rows) == screen.Rows {
			break
		}
		num := fmt.Sprintf("%d", (i+1)%10)
		line := runewidth.FillRight(label, screen.Cols-2)
		if i == snap.MenuIndex {
			rows = append(rows, m.styles.inverse.Render(num+":")+line)
		} else {
			rows = append(rows, num+":"+line)
		}
	}
	for len(rows) < screen.Rows {
		rows = append(rows, strings.Repeat(" ", screen.Cols))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderStatus(snap calculator.Snapshot) string {
	name := snap.Program
	if name == "" {
		name = "-"
	}
	status := m.styles.status.Render(fmt.Sprintf("%s  %s  f1 help  esc quit", name, snap.Run))
	if snap.Error != "" {
		status += "\n" + m.styles.errorMsg.Render(snap.Error)
	}
	return status
}

func (m Model) renderHelp() string {
	bindings := append([]key.Binding{}, calcHelp...)
	bindings = append(bindings, m.keys.Help, m.keys.Quit)
	lines := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		lines = append(lines, fmt.Sprintf("%-6s %s", h.Key, h.Desc))
	}
	return m.styles.help.Render(strings.Join(lines, "\n"))
}
