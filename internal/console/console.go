// Package console formats banner and measurement output for a terminal.
package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/banshee-data/particulate.report/internal/opcn3"
)

// Defaults for Printer.
const (
	DefaultWidth = 100
	DefaultChar  = "#"
)

// Printer writes boxed lines of a fixed width.
type Printer struct {
	W     io.Writer
	Width int
	// Char is the border character. Only its first rune is used. A
	// multi-byte character is assumed to render double width.
	Char string
}

// NewPrinter returns a Printer with the default width and border.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{W: w, Width: DefaultWidth, Char: DefaultChar}
}

func (p *Printer) border() string {
	if p.Char == "" {
		return DefaultChar
	}
	r, size := utf8.DecodeRuneInString(p.Char)
	if r == utf8.RuneError && size <= 1 {
		return DefaultChar
	}
	return p.Char[:size]
}

func (p *Printer) width() int {
	if p.Width <= 4 {
		return DefaultWidth
	}
	return p.Width
}

// Line prints a full-width rule. Wide border characters halve the count and
// add one so the rule keeps roughly the same on-screen length.
func (p *Printer) Line() {
	c := p.border()
	n := p.width()
	if len(c) > 1 {
		n = n/2 + 1
	}
	fmt.Fprintln(p.W, strings.Repeat(c, n))
}

// Title prints s centred between two border characters.
func (p *Printer) Title(s string) {
	c := p.border()
	fmt.Fprintf(p.W, "%s %s %s\n", c, center(s, p.width()-4), c)
}

// Norm prints s left-justified between two border characters.
func (p *Printer) Norm(s string) {
	c := p.border()
	fmt.Fprintf(p.W, "%s %s %s\n", c, ljust(s, p.width()-4), c)
}

// Measurement prints a timestamp header and one line per field.
func (p *Printer) Measurement(ts time.Time, m opcn3.Measurement) {
	p.Line()
	p.Title(ts.Format("2006-01-02 15:04:05"))
	for _, line := range FormatMeasurement(m) {
		p.Norm(line)
	}
	p.Line()
}

// FormatMeasurement renders each field as "Name: value".
func FormatMeasurement(m opcn3.Measurement) []string {
	fields := m.Fields()
	width := 0
	for _, f := range fields {
		if n := utf8.RuneCountInString(f.Name); n > width {
			width = n
		}
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = ljust(f.Name+":", width+1) + " " + strconv.FormatFloat(f.Value, 'f', -1, 64)
	}
	return out
}

// center pads s to width the way Python's str.center does, so an odd
// margin puts the extra space on the left only when width is odd.
func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	marg := width - n
	left := marg/2 + (marg & width & 1)
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", marg-left)
}

func ljust(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
