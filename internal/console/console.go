// Package console prints the human-facing progress lines of the command-line
// tools. Colors are used only when the destination is a terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// RuleWidth is the width of the separator printed by Rule.
const RuleWidth = 60

// Printer writes status lines to an io.Writer.
type Printer struct {
	w io.Writer

	info    func(io.Writer, string, ...interface{})
	success func(io.Writer, string, ...interface{})
	warn    func(io.Writer, string, ...interface{})
	fail    func(io.Writer, string, ...interface{})
	banner  func(io.Writer, string, ...interface{})
}

// New returns a Printer for w. Colors are enabled when w is a terminal and
// NO_COLOR is not set.
func New(w io.Writer) *Printer {
	return NewWithColor(w, IsTerminal(w) && !color.NoColor)
}

// NewWithColor returns a Printer with colors forced on or off.
func NewWithColor(w io.Writer, enabled bool) *Printer {
	mk := func(attrs ...color.Attribute) func(io.Writer, string, ...interface{}) {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.FprintfFunc()
	}

	return &Printer{
		w:       w,
		info:    mk(color.FgBlue),
		success: mk(color.FgGreen),
		warn:    mk(color.FgYellow),
		fail:    mk(color.FgRed),
		banner:  mk(color.FgCyan, color.Bold),
	}
}

// Discard returns a Printer that writes nothing.
func Discard() *Printer { return NewWithColor(io.Discard, false) }

// Writer returns the destination writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Printf writes an uncolored line.
func (p *Printer) Printf(format string, a ...interface{}) {
	fmt.Fprintf(p.w, format+"\n", a...)
}

// Infof writes an informational line.
func (p *Printer) Infof(format string, a ...interface{}) {
	p.info(p.w, format+"\n", a...)
}

// Successf writes a line marking a completed step.
func (p *Printer) Successf(format string, a ...interface{}) {
	p.success(p.w, format+"\n", a...)
}

// Warnf writes a line prefixed with "Warning: ".
func (p *Printer) Warnf(format string, a ...interface{}) {
	p.warn(p.w, "Warning: "+format+"\n", a...)
}

// Errorf writes a line prefixed with "Error: ".
func (p *Printer) Errorf(format string, a ...interface{}) {
	p.fail(p.w, "Error: "+format+"\n", a...)
}

// Failf writes a line marking a failed step, without the "Error: " prefix.
func (p *Printer) Failf(format string, a ...interface{}) {
	p.fail(p.w, format+"\n", a...)
}

// Bannerf writes a highlighted heading line.
func (p *Printer) Bannerf(format string, a ...interface{}) {
	p.banner(p.w, format+"\n", a...)
}

// Rule writes a separator line.
func (p *Printer) Rule() {
	fmt.Fprintln(p.w, strings.Repeat("=", RuleWidth))
}

// IsTerminal reports whether w is an *os.File attached to a terminal.
func IsTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
