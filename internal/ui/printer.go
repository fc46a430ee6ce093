package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/muurk/mdnswatch/internal/discovery"
)

// Printer writes discovery results to a non-interactive output, one block
// per snapshot change.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// SetWidth overrides the detected terminal width.
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// PrintHosts prints the snapshot of one service type.
func (p *Printer) PrintHosts(service string, hosts []discovery.MatchedHost) {
	p.Println(RenderHosts(service, hosts, p.width))
	p.Println("")
}

// PrintConflict prints a conflict signal.
func (p *Printer) PrintConflict(sig discovery.ConflictSignal) {
	if sig.Active {
		p.Println(RenderConflict(sig.Hosts, p.width))
		return
	}
	p.Println(MutedStyle.Render("Naming conflict cleared"))
}

// PrintError prints an error box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, tips []string) {
	p.Println(RenderError(title, err, tips, p.width))
}
