package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/callwire/codec"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// Record browser layout, in lines.
const (
	headerLines = 2
	detailLines = 6
	previewSize = 64
)

type browserModel struct {
	err      error
	filename string
	data     []byte
	nodes    []node
	viewport viewport.Model
	selected int
	ready    bool
}

func newBrowserModel(filename string, data []byte, nodes []node, err error) *browserModel {
	return &browserModel{
		filename: filename,
		data:     data,
		nodes:    nodes,
		err:      err,
	}
}

func (m *browserModel) Init() tea.Cmd {
	return nil
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - headerLines - detailLines - 2
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			m.move(-1)
		case "down", "j":
			m.move(1)
		case "pgup":
			m.move(-m.viewport.Height)
		case "pgdown":
			m.move(m.viewport.Height)
		case "home", "g":
			m.move(-len(m.nodes))
		case "end", "G":
			m.move(len(m.nodes))
		}
	}
	return m, nil
}

func (m *browserModel) move(delta int) {
	if len(m.nodes) == 0 {
		return
	}
	m.selected = min(max(m.selected+delta, 0), len(m.nodes)-1)
	m.refresh()
}

// refresh re-renders the list and keeps the selected record visible.
func (m *browserModel) refresh() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for i, n := range m.nodes {
		if i == m.selected {
			b.WriteString(selectedStyle.Render(n.String()))
		} else {
			line := n.String()
			b.WriteString(strings.Replace(line, n.tag.String(), tagStyle.Render(n.tag.String()), 1))
		}
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())

	switch {
	case m.selected < m.viewport.YOffset:
		m.viewport.SetYOffset(m.selected)
	case m.selected >= m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(m.selected - m.viewport.Height + 1)
	}
}

func (m *browserModel) detail() string {
	if len(m.nodes) == 0 {
		return ""
	}
	n := m.nodes[m.selected]
	end := min(n.offset+codec.HeaderSize+n.length, len(m.data))
	record := m.data[n.offset:end]
	more := ""
	if len(record) > previewSize {
		record = record[:previewSize]
		more = fmt.Sprintf("... %d more bytes", end-n.offset-previewSize)
	}
	return detailStyle.Render(strings.TrimRight(hex.Dump(record), "\n")) + "\n" + helpStyle.Render(more)
}

func (m *browserModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("callwire"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString(fmt.Sprintf("  %d records, %d bytes\n\n", len(m.nodes), len(m.data)))
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	b.WriteString(m.detail())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ select • pgup/pgdown scroll • q quit"))
	return b.String()
}

func runInteractive(filename string, data []byte, nodes []node, treeErr error) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	p := tea.NewProgram(newBrowserModel(filename, data, nodes, treeErr), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
