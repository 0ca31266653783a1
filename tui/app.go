package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ftahirops/cacheexplorer/model"
	"github.com/ftahirops/cacheexplorer/trace"
)

type tickMsg time.Time

type batchMsg struct {
	snap Snapshot
	done bool
	err  error
}

// Model is the bubbletea model driving the live cache-simulation
// dashboard, structured exactly like the teacher's ui.Model:
// tick-driven Update, accumulated Snapshot state, plain-string View.
type Model struct {
	source    trace.Source
	runner    Runner
	batchSize int
	interval  time.Duration

	snap Snapshot
	done bool
	err  error

	width, height int
	quitting      bool
}

// NewModel builds a dashboard Model that pulls events from source in
// batches of batchSize every interval and renders runner's Snapshot.
func NewModel(source trace.Source, runner Runner, batchSize int, interval time.Duration) Model {
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return Model{source: source, runner: runner, batchSize: batchSize, interval: interval}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(m.interval), collectBatch(m.source, m.runner, m.batchSize))
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func collectBatch(source trace.Source, runner Runner, batchSize int) tea.Cmd {
	return func() tea.Msg {
		events := make([]model.TraceEvent, 0, batchSize)
		done := false
		for len(events) < batchSize {
			event, ok, err := source.Next()
			if err != nil {
				return batchMsg{err: err}
			}
			if !ok {
				done = true
				break
			}
			events = append(events, event)
		}
		snap := runner.ProcessBatch(events)
		return batchMsg{snap: snap, done: done}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tickMsg:
		if m.done {
			return m, nil
		}
		return m, tea.Batch(tick(m.interval), collectBatch(m.source, m.runner, m.batchSize))
	case batchMsg:
		m.snap = msg.snap
		m.done = msg.done
		m.err = msg.err
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	snap := m.snap
	done := m.done
	err := m.err

	var b strings.Builder
	b.WriteString(titleStyle.Render("cache explorer") + "\n\n")

	if err != nil {
		b.WriteString(critStyle.Render(fmt.Sprintf("error: %v", err)) + "\n")
	}

	b.WriteString(panelStyle.Render(m.renderLevels(snap)) + "\n")
	b.WriteString(panelStyle.Render(m.renderHotLines(snap)) + "\n")
	if snap.MultiCore {
		b.WriteString(panelStyle.Render(m.renderCoherence(snap)) + "\n")
	}
	if done {
		b.WriteString(okStyle.Render("trace complete") + "\n")
	}
	b.WriteString(helpStyle.Render("q: quit") + "\n")
	return b.String()
}

func (m Model) renderLevels(snap Snapshot) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("cache levels") + "\n")
	b.WriteString(labelStyle.Render("events: ") + valueStyle.Render(fmt.Sprintf("%d", snap.EventsProcessed)) + "\n")
	b.WriteString(renderHitRateLine("l1", snap.L1HitRate))
	b.WriteString(renderHitRateLine("l2", snap.L2HitRate))
	if snap.HasL3 {
		b.WriteString(renderHitRateLine("l3", snap.L3HitRate))
	}
	return b.String()
}

func renderHitRateLine(name string, rate float64) string {
	return labelStyle.Render(name+" hit rate: ") + hitRateColor(rate).Render(fmt.Sprintf("%.1f%%", rate*100)) + "\n"
}

func (m Model) renderHotLines(snap Snapshot) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("hot lines") + "\n")
	if len(snap.HotLines) == 0 {
		b.WriteString(labelStyle.Render("(none yet)") + "\n")
		return b.String()
	}
	for _, h := range snap.HotLines {
		loc := fmt.Sprintf("%s:%d", h.File, h.Line)
		b.WriteString(valueStyle.Render(loc) + "  " + labelStyle.Render(fmt.Sprintf("misses=%d miss_rate=%.2f", h.Misses, h.MissRate())) + "\n")
	}
	return b.String()
}

func (m Model) renderCoherence(snap Snapshot) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("coherence") + "\n")
	b.WriteString(labelStyle.Render("invalidations: ") + valueStyle.Render(fmt.Sprintf("%d", snap.CoherenceInvalidations)) + "\n")
	style := okStyle
	if snap.FalseSharingEvents > 0 {
		style = critStyle
	}
	b.WriteString(labelStyle.Render("false sharing events: ") + style.Render(fmt.Sprintf("%d", snap.FalseSharingEvents)) + "\n")
	return b.String()
}
