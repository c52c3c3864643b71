package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/neuralfmu/internal/train"
)

const historyLen = 60

type stateMsg train.State

type doneMsg struct {
	state train.State
	err   error
}

type model struct {
	title   string
	total   int
	state   train.State
	losses  []float64
	started time.Time
	done    bool
	err     error
	width   int
}

func newModel(title string, total int) model {
	return model{title: title, total: total, started: time.Now(), width: 80}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case stateMsg:
		m.state = train.State(msg)
		m.losses = append(m.losses, msg.Loss)
		if len(m.losses) > historyLen {
			m.losses = m.losses[1:]
		}
	case doneMsg:
		m.done = true
		m.state = msg.state
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	icon, status := green.Render("●"), green.Render("training")
	switch {
	case m.err != nil:
		icon, status = red.Render("●"), red.Render("aborted")
	case m.done:
		icon, status = cyan.Render("●"), cyan.Render("converged")
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s\n", icon, cyan.Render(m.title), status))

	progress := 0.0
	if m.total > 0 {
		progress = math.Min(1, float64(m.state.Iteration)/float64(m.total))
	}
	barWidth := 36
	filled := int(progress * float64(barWidth))
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	b.WriteString(fmt.Sprintf("   %s %s  %s\n\n", bar,
		dim.Render(fmt.Sprintf("%d/%d", m.state.Iteration, m.total)),
		dim.Render(time.Since(m.started).Truncate(time.Second).String())))

	b.WriteString(fmt.Sprintf("   %s %s  %s %s  %s %s\n",
		dim.Render("loss"), white.Render(formatLoss(m.state.Loss)),
		dim.Render("best"), white.Render(formatLoss(m.state.BestLoss)),
		dim.Render("|∇|"), white.Render(fmt.Sprintf("%.3g", m.state.GradNorm))))

	if len(m.losses) > 1 {
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("loss"), yellow.Render(sparkline(m.losses, 40))))
	}
	if m.err != nil {
		b.WriteString("\n   " + red.Render(m.err.Error()) + "\n")
	}

	b.WriteString("\n" + dim.Render("   q stop") + "\n")
	return b.String()
}

func formatLoss(l float64) string {
	if math.IsNaN(l) || math.IsInf(l, 0) {
		return "-"
	}
	return fmt.Sprintf("%.4e", l)
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := len(data) / width
	if step < 1 {
		step = 1
	}
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / rang * 7)
		sb.WriteRune(chars[max(0, min(7, idx))])
	}
	return sb.String()
}

// Monitor shows a live view of a training run. Register it as a callback
// on the orchestrator, then call Run.
type Monitor struct {
	title string
	total int

	mu      sync.Mutex
	program *tea.Program
}

func NewMonitor(title string, iterations int) *Monitor {
	return &Monitor{title: title, total: iterations}
}

func (mon *Monitor) OnIteration(s train.State) error {
	mon.mu.Lock()
	p := mon.program
	mon.mu.Unlock()
	if p != nil {
		p.Send(stateMsg(s))
	}
	return nil
}

// Run trains o while rendering progress. Quitting the view cancels the
// training at the next iteration boundary.
func (mon *Monitor) Run(ctx context.Context, o *train.Orchestrator, opts ...tea.ProgramOption) (train.State, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(mon.title, mon.total), opts...)
	mon.mu.Lock()
	mon.program = p
	mon.mu.Unlock()
	defer func() {
		mon.mu.Lock()
		mon.program = nil
		mon.mu.Unlock()
	}()

	type result struct {
		state train.State
		err   error
	}
	done := make(chan result, 1)
	go func() {
		st, err := o.Run(ctx)
		done <- result{st, err}
		p.Send(doneMsg{state: st, err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return o.State(), fmt.Errorf("tui: %w", err)
	}
	cancel()
	r := <-done
	return r.state, r.err
}
