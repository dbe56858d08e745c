package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/collage/pkg/layout"
	"github.com/matzehuels/collage/pkg/slots"
)

func TestSlotsModelView(t *testing.T) {
	s := slots.NewStore(layout.Grid)
	tk, _, _ := s.Begin(0, "beach.jpg")
	s.Progress(tk, 50)
	u, _, _ := s.Begin(1, "phone.heic")
	s.MarkUnsupported(u)

	m := NewSlotsModel(s, 3, nil)
	view := m.View()
	for _, want := range []string{"beach.jpg", "phone.heic", "loading", "unsupported", "q cancel"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
	// Only as many rows as files.
	if strings.Count(view, "\n") != 7 {
		t.Errorf("View() has %d lines, want 7:\n%s", strings.Count(view, "\n"), view)
	}
}

func TestSlotsModelUpdate(t *testing.T) {
	s := slots.NewStore(layout.Grid)
	cancelled := false
	m := NewSlotsModel(s, 1, func() { cancelled = true })

	tk, _, _ := s.Begin(0, "a.png")
	s.Resolve(tk, slots.NewSource("image/png", nil))

	next, cmd := m.Update(ingestDoneMsg{})
	got := next.(SlotsModel)
	if !got.done || cmd == nil {
		t.Errorf("Update(done) = done %v, cmd %v; want done and quit", got.done, cmd)
	}
	if got.snap[0].State() != slots.Ready {
		t.Errorf("snapshot not refreshed: %v", got.snap[0].State())
	}
	if strings.Contains(got.View(), "q cancel") {
		t.Error("finished view still offers cancel")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !next.(SlotsModel).cancelled || !cancelled {
		t.Error("ctrl+c did not cancel the batch")
	}
}

func TestRenderBar(t *testing.T) {
	s := slots.NewStore(layout.Grid)
	tk, _, _ := s.Begin(0, "a.png")
	s.Progress(tk, 50)
	sl, _ := s.Slot(0)

	bar := renderBar(sl)
	if got := strings.Count(bar, "█"); got != progressBarWidth/2 {
		t.Errorf("half bar has %d filled cells, want %d", got, progressBarWidth/2)
	}
	if got := strings.Count(bar, "░"); got != progressBarWidth/2 {
		t.Errorf("half bar has %d empty cells, want %d", got, progressBarWidth/2)
	}
}
