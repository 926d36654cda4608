// Package console prints the human-readable progress of a scaffolding run.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
	"golang.org/x/term"
)

type Printer struct {
	w       io.Writer
	colored bool
}

// New colors output only when w is a terminal that supports color.
func New(w io.Writer) *Printer {
	f, ok := w.(*os.File)
	colored := ok && term.IsTerminal(int(f.Fd())) && color.SupportColor()
	return &Printer{w: w, colored: colored}
}

func (p *Printer) paint(c color.Color, s string) string {
	if !p.colored {
		return s
	}
	return c.Sprint(s)
}

// Step announces a pipeline stage, e.g. "Downloading project template...".
func (p *Printer) Step(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(color.Cyan, fmt.Sprintf(format, args...)))
}

func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.w, p.paint(color.Green, msg))
}

func (p *Printer) Error(err error) {
	fmt.Fprintln(p.w, p.paint(color.Red, "Error: "+err.Error()))
}

// NextSteps lists commands the user can run next. Text after " # " is
// rendered as a comment.
func (p *Printer) NextSteps(steps []string) {
	fmt.Fprintln(p.w)
	for _, s := range steps {
		cmd, comment, ok := strings.Cut(s, " # ")
		if !ok {
			fmt.Fprintln(p.w, cmd)
			continue
		}
		fmt.Fprintf(p.w, "%s %s\n", p.paint(color.Bold, cmd), p.paint(color.Gray, "# "+comment))
	}
}
