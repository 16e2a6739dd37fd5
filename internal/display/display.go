// Package display shows the two-line controller status on the log, a
// terminal or several of them at once.
package display

import (
	"github.com/tphakala/sleepmon/internal/logger"
)

// Width is the number of characters per line, as on a 1602 LCD.
const Width = 16

// Display shows two short status lines.
type Display interface {
	Show(line1, line2 string)
	Clear()
}

// Truncate cuts s to Width runes.
func Truncate(s string) string {
	r := []rune(s)
	if len(r) <= Width {
		return s
	}
	return string(r[:Width])
}

// LogDisplay writes status lines to a logger.
type LogDisplay struct {
	log logger.Logger
}

// NewLogDisplay returns a display logging to l, or to the display module
// logger when l is nil.
func NewLogDisplay(l logger.Logger) *LogDisplay {
	if l == nil {
		l = logger.Global().Module("display")
	}
	return &LogDisplay{log: l}
}

func (d *LogDisplay) Show(line1, line2 string) {
	d.log.Info("status",
		logger.String("line1", Truncate(line1)),
		logger.String("line2", Truncate(line2)))
}

func (d *LogDisplay) Clear() {
	d.log.Debug("display cleared")
}

// Multi fans out to several displays.
type Multi []Display

func (m Multi) Show(line1, line2 string) {
	for _, d := range m {
		d.Show(line1, line2)
	}
}

func (m Multi) Clear() {
	for _, d := range m {
		d.Clear()
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) Show(string, string) {}
func (Nop) Clear()              {}
