// Package selector asks a human to pick the next transition of an
// interactive simulation.
package selector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhubert/spinrun/interactive"
)

// Terminal presents the choice as a bubbletea program. Up to MenuThreshold
// candidates are shown as a row of buttons; more become a scrolling list.
type Terminal struct {
	In  io.Reader
	Out io.Writer

	MenuThreshold int
	ButtonWidth   int
	ListRows      int
}

// Select implements interactive.Selector.
func (t *Terminal) Select(ctx context.Context, prompt string, labels []string) (int, error) {
	m := newModel(prompt, labels, t.layout(len(labels)), t.ButtonWidth, t.ListRows)

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if t.In != nil {
		opts = append(opts, tea.WithInput(t.In))
	}
	if t.Out != nil {
		opts = append(opts, tea.WithOutput(t.Out))
	}

	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("selection dialog: %w", err)
	}
	result, ok := final.(*model)
	if !ok {
		return 0, errors.New("selection dialog: unexpected model")
	}
	return result.choice, nil
}

func (t *Terminal) layout(n int) layout {
	if n > t.MenuThreshold {
		return layoutList
	}
	return layoutButtons
}

type layout int

const (
	layoutButtons layout = iota
	layoutList
)

var (
	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	buttonStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			Align(lipgloss.Center)
	activeButtonStyle = buttonStyle.
				BorderForeground(lipgloss.Color("212")).
				Bold(true)
	itemStyle       = lipgloss.NewStyle().PaddingLeft(2)
	activeItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	helpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type model struct {
	prompt      string
	labels      []string
	layout      layout
	buttonWidth int
	rows        int

	cursor int
	offset int
	// choice is the 1-based selection, or 0 to quit.
	choice int
}

func newModel(prompt string, labels []string, l layout, buttonWidth, rows int) *model {
	if buttonWidth <= 0 {
		buttonWidth = 15
	}
	if rows <= 0 {
		rows = 7
	}
	return &model{
		prompt:      prompt,
		labels:      labels,
		layout:      l,
		buttonWidth: buttonWidth,
		rows:        rows,
	}
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc", "q":
		m.choice = 0
		return m, tea.Quit
	case "enter", " ":
		if len(m.labels) == 0 {
			return m, nil
		}
		m.choice = m.cursor + 1
		return m, tea.Quit
	case "left", "up", "h", "k", "shift+tab":
		m.move(-1)
	case "right", "down", "l", "j", "tab":
		m.move(1)
	case "home", "g":
		m.move(-m.cursor)
	case "end", "G":
		m.move(len(m.labels) - 1 - m.cursor)
	default:
		// Single digits pick directly when every candidate has one.
		if n, err := strconv.Atoi(key.String()); err == nil && len(m.labels) < 10 && n >= 1 && n <= len(m.labels) {
			m.choice = n
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *model) move(delta int) {
	if len(m.labels) == 0 {
		return
	}
	m.cursor = (m.cursor + delta + len(m.labels)) % len(m.labels)
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.rows {
		m.offset = m.cursor - m.rows + 1
	}
}

func (m *model) View() string {
	var b strings.Builder
	if m.prompt != "" {
		b.WriteString(promptStyle.Render(strings.TrimRight(m.prompt, "\n")))
		b.WriteString("\n")
	}
	if m.layout == layoutButtons {
		b.WriteString(m.buttons())
	} else {
		b.WriteString(m.list())
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("←/→ move • enter choose • 1-9 pick • q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m *model) buttons() string {
	cells := make([]string, len(m.labels))
	for i, label := range m.labels {
		style := buttonStyle
		if i == m.cursor {
			style = activeButtonStyle
		}
		cells[i] = style.Width(m.buttonWidth).Render(fmt.Sprintf("%d %s", i+1, label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *model) list() string {
	var b strings.Builder
	end := min(m.offset+m.rows, len(m.labels))
	for i := m.offset; i < end; i++ {
		line := fmt.Sprintf("%2d  %s", i+1, m.labels[i])
		if i == m.cursor {
			b.WriteString(activeItemStyle.Render("> " + line))
		} else {
			b.WriteString(itemStyle.Render(line))
		}
		b.WriteString("\n")
	}
	if len(m.labels) > m.rows {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  %d-%d of %d", m.offset+1, end, len(m.labels))))
		b.WriteString("\n")
	}
	return b.String()
}

var _ interactive.Selector = (*Terminal)(nil)
