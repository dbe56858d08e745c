package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/matzehuels/collage/pkg/device"
	"github.com/matzehuels/collage/pkg/ingest"
	"github.com/matzehuels/collage/pkg/pipeline"
	"github.com/matzehuels/collage/pkg/slots"
)

const (
	progressBarWidth = 24
	progressInterval = 50 * time.Millisecond
)

var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// interactive reports whether f is a terminal that can host the live view.
func interactive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// =============================================================================
// SlotsModel - live slot progress
// =============================================================================

type tickMsg time.Time

type ingestDoneMsg struct{}

// SlotsModel renders the slot store while a batch loads.
type SlotsModel struct {
	store     *slots.Store
	snap      [slots.Count]slots.Slot
	files     int
	done      bool
	cancelled bool
	cancel    context.CancelFunc
}

// NewSlotsModel creates a view over store for a batch of files.
func NewSlotsModel(store *slots.Store, files int, cancel context.CancelFunc) SlotsModel {
	return SlotsModel{
		store:  store,
		snap:   store.Snapshot(),
		files:  min(files, slots.Count),
		cancel: cancel,
	}
}

func tick() tea.Cmd {
	return tea.Tick(progressInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m SlotsModel) Init() tea.Cmd {
	return tick()
}

func (m SlotsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tickMsg:
		m.snap = m.store.Snapshot()
		return m, tick()
	case ingestDoneMsg:
		m.snap = m.store.Snapshot()
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m SlotsModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Loading photos"))
	b.WriteString("\n\n")
	for i := range m.files {
		sl := m.snap[i]
		b.WriteString(fmt.Sprintf("  %d %s %s %s\n",
			i,
			renderBar(sl),
			StyleDim.Render(fmt.Sprintf("%-11s", sl.State())),
			StyleValue.Render(sl.Name())))
	}
	if !m.done {
		b.WriteString("\n")
		b.WriteString(StyleDim.Render("q cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

// renderBar draws a slot's progress. Finished slots show a full bar in
// their outcome color.
func renderBar(sl slots.Slot) string {
	switch sl.State() {
	case slots.Ready:
		return styleIconSuccess.Render(strings.Repeat("█", progressBarWidth))
	case slots.Unsupported:
		return styleIconWarning.Render(strings.Repeat("█", progressBarWidth))
	case slots.Empty:
		return barEmptyStyle.Render(strings.Repeat("░", progressBarWidth))
	}
	filled := int(sl.Progress() / 100 * progressBarWidth)
	filled = max(0, min(filled, progressBarWidth))
	return barFullStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", progressBarWidth-filled))
}

// =============================================================================
// Ingest with feedback
// =============================================================================

// ingestWithView loads files through runner and shows progress: the live
// view on a terminal, a spinner otherwise. Runner logging is muted while the
// live view owns the screen.
func ingestWithView(ctx context.Context, runner *pipeline.Runner, store *slots.Store, files []ingest.File, live bool) (ingest.Report, error) {
	if !live {
		spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Loading %d photos...", min(len(files), slots.Count)))
		spinner.Start()
		report := runner.Ingest(ctx, store, files, device.Desktop)
		spinner.Stop()
		return report, ctx.Err()
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := runner.Logger
	runner.Logger = log.New(io.Discard)
	defer func() { runner.Logger = logger }()

	p := tea.NewProgram(NewSlotsModel(store, len(files), cancel), tea.WithOutput(os.Stderr))
	reports := make(chan ingest.Report, 1)
	go func() {
		reports <- runner.Ingest(ctx, store, files, device.Desktop)
		p.Send(ingestDoneMsg{})
	}()

	final, err := p.Run()
	cancel()
	report := <-reports
	if err != nil {
		return report, fmt.Errorf("progress view: %w", err)
	}
	if m, ok := final.(SlotsModel); ok && m.cancelled {
		return report, context.Canceled
	}
	return report, parent.Err()
}
