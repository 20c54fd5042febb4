// Package emit is the text-emission primitive of the generator: an indented
// writer for Rust, C and Java source fragments.
package emit

import (
	"fmt"
	"strings"
)

// Writer accumulates indented source lines.
type Writer struct {
	sb     strings.Builder
	indent int
	unit   string
}

// NewWriter returns a Writer indenting with four spaces.
func NewWriter() *Writer {
	return &Writer{unit: "    "}
}

// Line formats and writes an indented line. A trailing newline is appended.
func (w *Writer) Line(format string, args ...any) {
	w.Text(fmt.Sprintf(format, args...))
}

// Text writes s as one indented line, verbatim.
func (w *Writer) Text(s string) {
	if s == "" {
		w.sb.WriteByte('\n')
		return
	}
	w.sb.WriteString(strings.Repeat(w.unitOrDefault(), w.indent))
	w.sb.WriteString(s)
	w.sb.WriteByte('\n')
}

// Blank writes an empty line.
func (w *Writer) Blank() { w.sb.WriteByte('\n') }

// Indent increases the indentation level.
func (w *Writer) Indent() { w.indent++ }

// Dedent decreases the indentation level.
func (w *Writer) Dedent() {
	if w.indent > 0 {
		w.indent--
	}
}

// Block writes open, runs body one level deeper, then writes close.
func (w *Writer) Block(open, close string, body func()) {
	w.Text(open)
	w.Indent()
	body()
	w.Dedent()
	w.Text(close)
}

// String returns the accumulated output.
func (w *Writer) String() string { return w.sb.String() }

func (w *Writer) unitOrDefault() string {
	if w.unit == "" {
		return "    "
	}
	return w.unit
}
