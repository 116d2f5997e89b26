package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bobarin/facelessrender/internal/pipeline"
)

const barWidth = 32

type progressMsg float64

type doneMsg struct {
	result *pipeline.Result
	err    error
}

type tickMsg time.Time

// renderModel shows the progress of one render. The render itself runs outside
// the program and reports through progressMsg and doneMsg.
type renderModel struct {
	file       string
	scenes     int
	progress   float64
	started    time.Time
	now        time.Time
	cancel     context.CancelFunc
	cancelling bool

	result *pipeline.Result
	err    error
}

func newRenderModel(file string, scenes int, cancel context.CancelFunc) renderModel {
	now := time.Now()
	return renderModel{file: file, scenes: scenes, started: now, now: now, cancel: cancel}
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m renderModel) Init() tea.Cmd {
	return tickCmd()
}

func (m renderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.cancelling && m.cancel != nil {
				m.cancel()
			}
			m.cancelling = true
		}
	case progressMsg:
		if p := float64(msg); p > m.progress {
			m.progress = p
		}
	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()
	case doneMsg:
		m.result, m.err = msg.result, msg.err
		if msg.err == nil {
			m.progress = 1
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m renderModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Rendering %s (%d scenes)", m.file, m.scenes)))
	b.WriteString("\n")

	b.WriteString(progressBar(m.progress))
	b.WriteString(fmt.Sprintf(" %3.0f%%  ", m.progress*100))
	if m.cancelling {
		b.WriteString(warningStyle.Render("Cancelling..."))
	} else {
		b.WriteString(stageLabel(m.progress))
	}
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("Elapsed %s | Press q or Ctrl+C to cancel", m.now.Sub(m.started).Truncate(time.Second))))
	b.WriteString("\n")
	return b.String()
}

func progressBar(p float64) string {
	filled := int(p * barWidth)
	filled = min(max(filled, 0), barWidth)
	return barFilledStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", barWidth-filled))
}

// stageLabel names the pipeline stage a progress value falls in.
func stageLabel(p float64) string {
	switch {
	case p >= 1:
		return "Done"
	case p >= 0.9:
		return "Encoding"
	case p >= 0.8:
		return "Mixing audio"
	case p >= 0.7:
		return "Chaining transitions"
	case p >= 0.2:
		return "Rendering scenes"
	}
	return "Resolving audio"
}
