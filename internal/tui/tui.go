package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xab-mack/solbench/internal/engine"
	"github.com/xab-mack/solbench/internal/model"
)

type doneMsg struct{}

type modelT struct {
	total    int
	done     int
	byStatus map[model.Status]int
	recent   []string
	finished bool
}

const recentRows = 8

func initialModel(total int) modelT {
	return modelT{total: total, byStatus: make(map[model.Status]int)}
}

func (m modelT) Init() tea.Cmd { return nil }

func (m modelT) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case engine.Event:
		if msg.Terminal == "" {
			return m, nil
		}
		m.done++
		m.byStatus[msg.Terminal]++
		line := fmt.Sprintf("%-20s %-10s %s", msg.Analyzer, msg.Terminal, msg.Artifact)
		m.recent = append(m.recent, line)
		if len(m.recent) > recentRows {
			m.recent = m.recent[len(m.recent)-recentRows:]
		}
		return m, nil
	case doneMsg:
		m.finished = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m modelT) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Jobs %d/%d\n", m.done, m.total)
	statuses := make([]string, 0, len(m.byStatus))
	for s := range m.byStatus {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(&b, "  %s: %d\n", s, m.byStatus[model.Status(s)])
	}
	b.WriteString("\n")
	for _, line := range m.recent {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if !m.finished {
		b.WriteString("\n(q to detach)\n")
	}
	return b.String()
}

// Run renders a live job-status board until events closes.
func Run(total int, events <-chan engine.Event) error {
	p := tea.NewProgram(initialModel(total))
	go func() {
		for e := range events {
			p.Send(e)
		}
		p.Send(doneMsg{})
	}()
	_, err := p.Run()
	return err
}
