// Package report prints the changes made to each file.
package report

import (
	"fmt"
	"io"

	"github.com/morikuni/aec"
	"lab47.dev/fixoralib/pkg/ops"
)

// Printer writes a header line for each file followed by its changes, and a
// blank line once a file is done. A file that stopped partway is closed off
// when the next one starts.
type Printer struct {
	W     io.Writer
	Color bool

	current string
}

var _ ops.Reporter = (*Printer)(nil)

func (p *Printer) Change(file string, c ops.Change) {
	if p.current != file {
		if p.current != "" {
			fmt.Fprintln(p.W)
		}

		p.header(file)
		p.current = file
	}

	switch c.Kind {
	case ops.AddRPath:
		fmt.Fprintf(p.W, "   add rpath: %s\n", c.To)
	case ops.SetID:
		fmt.Fprintf(p.W, "   change identification name\n")
		fmt.Fprintf(p.W, "     from: %s\n", c.From)
		fmt.Fprintf(p.W, "       to: %s\n", c.To)
	case ops.ChangeDependency:
		fmt.Fprintf(p.W, "   change install name\n")
		fmt.Fprintf(p.W, "     from: %s\n", c.From)
		fmt.Fprintf(p.W, "       to: %s\n", c.To)
	}
}

func (p *Printer) Done(file string) {
	if p.current == file {
		fmt.Fprintln(p.W)
	}

	p.current = ""
}

func (p *Printer) header(file string) {
	line := file + ":"

	if p.Color {
		line = aec.Bold.Apply(line)
	}

	fmt.Fprintln(p.W, line)
}
