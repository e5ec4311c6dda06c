// Package cli holds the terminal output helpers of the tpool command.
package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Console writes styled status lines. It is safe for concurrent use, so
// pool workers can report progress directly.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	isQuiet bool   // isQuiet suppresses everything but errors.
	Bold    *color.Color
	Green   *color.Color
	Yellow  *color.Color
	Red     *color.Color
	Cyan    *color.Color
}

// New creates a Console writing to stderr.
func New(quiet bool) *Console {
	return NewWithWriter(os.Stderr, quiet)
}

// NewWithWriter creates a Console writing to w.
func NewWithWriter(w io.Writer, quiet bool) *Console {
	return &Console{
		out:     w,
		isQuiet: quiet,
		Bold:    color.New(color.Bold),
		Green:   color.New(color.FgGreen),
		Yellow:  color.New(color.FgYellow),
		Red:     color.New(color.FgRed),
		Cyan:    color.New(color.FgCyan),
	}
}

func (c *Console) print(col *color.Color, prefix, format string, a ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := fmt.Sprintf(format, a...)
	if col == nil {
		fmt.Fprintf(c.out, "%s%s\n", prefix, msg)
		return
	}
	_, _ = col.Fprintf(c.out, "%s%s\n", prefix, msg)
}

// Info prints a standard informational message.
func (c *Console) Info(format string, a ...interface{}) {
	if c.isQuiet {
		return
	}
	c.print(nil, "", format, a...)
}

// Success prints a success message.
func (c *Console) Success(format string, a ...interface{}) {
	if c.isQuiet {
		return
	}
	c.print(c.Green, "✓ ", format, a...)
}

// Warn prints a warning message.
func (c *Console) Warn(format string, a ...interface{}) {
	if c.isQuiet {
		return
	}
	c.print(c.Yellow, "! ", format, a...)
}

// Error prints an error message. Errors are printed even in quiet mode.
func (c *Console) Error(format string, a ...interface{}) {
	c.print(c.Red, "✗ ", format, a...)
}
