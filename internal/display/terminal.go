package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Terminal draws the status lines as a bordered 16x2 box.
type Terminal struct {
	mu    sync.Mutex
	w     io.Writer
	box   lipgloss.Style
	lines [2]string
}

// NewTerminal draws to w. Colors follow the capabilities of w.
func NewTerminal(w io.Writer) *Terminal {
	r := lipgloss.NewRenderer(w)
	return &Terminal{
		w: w,
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241")).
			Foreground(lipgloss.Color("42")).
			Padding(0, 1),
	}
}

func (t *Terminal) Show(line1, line2 string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = [2]string{Truncate(line1), Truncate(line2)}
	t.draw()
}

func (t *Terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = [2]string{}
	t.draw()
}

// Lines returns what is currently shown.
func (t *Terminal) Lines() (string, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lines[0], t.lines[1]
}

func (t *Terminal) draw() {
	body := fmt.Sprintf("%-*s\n%-*s", Width, t.lines[0], Width, t.lines[1])
	_, _ = fmt.Fprintln(t.w, t.box.Render(body))
}
