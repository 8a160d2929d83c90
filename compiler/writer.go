package compiler

import (
	"fmt"
	"strings"
)

// jsWriter manages indented JavaScript output for the code generator. It
// tracks the current output line so the source map can correlate emitted
// statements back to input positions.
type jsWriter struct {
	sb     strings.Builder
	indent int
	line   int // 1-based line the next write lands on
}

func newJSWriter() *jsWriter {
	return &jsWriter{line: 1}
}

// Linef writes an indented formatted line with a trailing newline.
func (w *jsWriter) Linef(format string, args ...interface{}) {
	w.sb.WriteString(strings.Repeat("  ", w.indent))
	fmt.Fprintf(&w.sb, format, args...)
	w.sb.WriteByte('\n')
	w.line++
}

// Blank writes an empty line.
func (w *jsWriter) Blank() {
	w.sb.WriteByte('\n')
	w.line++
}

// Raw writes unindented text directly; callers are responsible for
// newlines. The line counter is advanced for each newline in s.
func (w *jsWriter) Raw(s string) {
	w.sb.WriteString(s)
	w.line += strings.Count(s, "\n")
}

// Line returns the 1-based output line the next write lands on.
func (w *jsWriter) Line() int { return w.line }

// Col returns the 1-based column the next indented write starts at.
func (w *jsWriter) Col() int { return w.indent*2 + 1 }

// Indent increases the indentation level.
func (w *jsWriter) Indent() { w.indent++ }

// Dedent decreases the indentation level.
func (w *jsWriter) Dedent() { w.indent-- }

// String returns the accumulated output.
func (w *jsWriter) String() string { return w.sb.String() }
