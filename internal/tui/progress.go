package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

const maxBarWidth = 60

// ProgressMsg reports download completion as a fraction in [0, 1].
type ProgressMsg float64

// ProgressModel is a Bubble Tea model showing one download.
type ProgressModel struct {
	Title   string
	Percent float64
	bar     progress.Model
}

// NewProgressModel creates a progress bar titled title.
func NewProgressModel(title string) ProgressModel {
	return ProgressModel{
		Title: title,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return nil
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		m.Percent = float64(msg)
		if m.Percent >= 1 {
			m.Percent = 1
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 4
		if m.bar.Width > maxBarWidth {
			m.bar.Width = maxBarWidth
		}
	case tea.KeyMsg:
		// The download keeps going; ctrl+c only hides the bar.
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ProgressModel) View() string {
	return fmt.Sprintf("%s\n%s\n", m.Title, m.bar.ViewAs(m.Percent))
}

// progressRunner owns the Bubble Tea program for the download in flight.
type progressRunner struct {
	out     io.Writer
	program *tea.Program
	done    chan struct{}
}

func (r *progressRunner) update(percent int) {
	if r.program == nil {
		if percent >= 100 {
			return
		}
		r.program = tea.NewProgram(NewProgressModel("Downloading update"),
			tea.WithOutput(r.out), tea.WithInput(nil))
		r.done = make(chan struct{})
		go func(p *tea.Program, done chan struct{}) {
			defer close(done)
			_, _ = p.Run()
		}(r.program, r.done)
	}

	r.program.Send(ProgressMsg(float64(percent) / 100))
	if percent >= 100 {
		r.stop()
	}
}

// stop ends the program and waits for it to restore the terminal.
func (r *progressRunner) stop() {
	if r.program == nil {
		return
	}
	r.program.Quit()
	<-r.done
	r.program = nil
	r.done = nil
}
