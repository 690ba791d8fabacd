package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Color codes for terminal output.
const (
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
	colorCyan   = "\033[0;36m"
	colorBold   = "\033[1m"
	colorReset  = "\033[0m"
)

// UI provides colored terminal output for user-facing messages.
type UI struct {
	color  bool
	quiet  bool
	out    io.Writer
	errOut io.Writer
}

var (
	defaultUI   *UI
	defaultOnce sync.Once
)

// Default returns a shared UI instance with auto-detected color support.
func Default() *UI {
	defaultOnce.Do(func() {
		defaultUI = New(shouldColor())
	})
	return defaultUI
}

// New creates a UI writing to stdout/stderr with explicit color control.
func New(color bool) *UI {
	return &UI{color: color, out: os.Stdout, errOut: os.Stderr}
}

// NewWriter creates a UI that writes every message, errors included, to w.
func NewWriter(w io.Writer, color bool) *UI {
	return &UI{color: color, out: w, errOut: w}
}

// Quiet returns a copy of u that prints nothing. Callers still get errors
// back from the operations they run.
func (u *UI) Quiet(quiet bool) *UI {
	c := *u
	c.quiet = quiet
	return &c
}

// IsQuiet reports whether output is suppressed.
func (u *UI) IsQuiet() bool {
	return u.quiet
}

// Out is the writer used for regular messages.
func (u *UI) Out() io.Writer {
	if u.quiet {
		return io.Discard
	}
	return u.out
}

func shouldColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func (u *UI) colorize(color, s string) string {
	if !u.color {
		return s
	}
	return color + s + colorReset
}

func (u *UI) println(w io.Writer, s string) {
	if u.quiet {
		return
	}
	fmt.Fprintln(w, s)
}

// Info prints an informational message.
func (u *UI) Info(format string, args ...any) {
	u.println(u.out, u.colorize(colorBlue, "[INFO]")+" "+fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (u *UI) Success(format string, args ...any) {
	u.println(u.out, u.colorize(colorGreen, "[OK]")+" "+fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func (u *UI) Warn(format string, args ...any) {
	u.println(u.out, u.colorize(colorYellow, "[WARN]")+" "+fmt.Sprintf(format, args...))
}

// Error prints an error message to stderr.
func (u *UI) Error(format string, args ...any) {
	u.println(u.errOut, u.colorize(colorRed, "[ERROR]")+" "+fmt.Sprintf(format, args...))
}

// Step prints a section header.
func (u *UI) Step(format string, args ...any) {
	header := fmt.Sprintf("\n━━━ %s ━━━\n", fmt.Sprintf(format, args...))
	u.println(u.out, u.colorize(colorCyan+colorBold, header))
}

// Bold returns text wrapped in bold codes (if color enabled).
func (u *UI) Bold(s string) string {
	return u.colorize(colorBold, s)
}
