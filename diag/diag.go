// Package diag collects the diagnostics produced by every stage of the
// strategy compiler. Lexical and parse errors are accumulated rather than
// returned as Go errors so that a single compile call can report every
// independent mistake it finds; only internal invariant violations travel
// as ordinary errors and abort the pipeline.
package diag

import (
	"fmt"
	"strings"
)

// Kind classifies a diagnostic.
type Kind int

const (
	Lexical  Kind = iota // unrecognized character sequence
	Parse                // grammar violation
	Semantic             // non-fatal advisory
	Internal             // pipeline invariant violation (a bug, not bad input)
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical error"
	case Parse:
		return "parse error"
	case Semantic:
		return "warning"
	case Internal:
		return "internal error"
	default:
		return "error"
	}
}

// Severity splits diagnostics into errors and warnings.
type Severity int

const (
	Error Severity = iota
	Warning
)

// Diagnostic is one positioned message. Line and Column are 1-based.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Message  string
	File     string
	Line     int
	Column   int
	Expected string // parse errors only: the expected-token context
}

func (d Diagnostic) String() string {
	msg := d.Message
	if d.Expected != "" {
		msg = fmt.Sprintf("%s (expected %s)", msg, d.Expected)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Kind, msg)
}

// Bag accumulates diagnostics across all stages of one compile call.
// It keeps the source text so reports can show an excerpt with a caret
// under the offending column.
type Bag struct {
	file   string
	source string
	diags  []Diagnostic
}

// NewBag creates an empty collector for one compile of the given source.
func NewBag(file, source string) *Bag {
	return &Bag{file: file, source: source}
}

// File returns the display name the bag was created with.
func (b *Bag) File() string { return b.file }

// AddLexical records an unrecognized character sequence at line:col.
func (b *Bag) AddLexical(line, col int, format string, args ...interface{}) {
	b.diags = append(b.diags, Diagnostic{
		Kind: Lexical, Severity: Error, File: b.file, Line: line, Column: col,
		Message: fmt.Sprintf(format, args...),
	})
}

// AddParse records a grammar violation. expected names the token context
// the parser was looking for and may be empty.
func (b *Bag) AddParse(line, col int, expected, format string, args ...interface{}) {
	b.diags = append(b.diags, Diagnostic{
		Kind: Parse, Severity: Error, File: b.file, Line: line, Column: col,
		Message: fmt.Sprintf(format, args...), Expected: expected,
	})
}

// AddWarning records a non-fatal semantic advisory.
func (b *Bag) AddWarning(line, col int, format string, args ...interface{}) {
	b.diags = append(b.diags, Diagnostic{
		Kind: Semantic, Severity: Warning, File: b.file, Line: line, Column: col,
		Message: fmt.Sprintf(format, args...),
	})
}

// Add records an already-built diagnostic, e.g. one replayed from a cache
// entry.
func (b *Bag) Add(d Diagnostic) {
	b.diags = append(b.diags, d)
}

// HasErrors reports whether any error-severity diagnostic was collected.
func (b *Bag) HasErrors() bool {
	for _, d := range b.diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Errors returns the error-severity diagnostics in collection order.
func (b *Bag) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range b.diags {
		if d.Severity == Error {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns the warning-severity diagnostics in collection order.
func (b *Bag) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range b.diags {
		if d.Severity == Warning {
			out = append(out, d)
		}
	}
	return out
}

// All returns every diagnostic in collection order.
func (b *Bag) All() []Diagnostic { return b.diags }

// Len returns the total number of collected diagnostics.
func (b *Bag) Len() int { return len(b.diags) }

// Report renders every diagnostic with a source excerpt and a caret under
// the offending column.
func (b *Bag) Report() string {
	var sb strings.Builder
	for i, d := range b.diags {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(d.String())
		sb.WriteByte('\n')
		sb.WriteString(b.excerpt(d.Line, d.Column))
	}
	return sb.String()
}

// excerpt returns the source line plus a caret line, or "" if the line
// is out of range (e.g. a diagnostic at EOF past the last newline).
func (b *Bag) excerpt(line, col int) string {
	lines := strings.Split(b.source, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	src := lines[line-1]
	var caret strings.Builder
	for i := 0; i < col-1 && i < len(src); i++ {
		if src[i] == '\t' {
			caret.WriteByte('\t')
		} else {
			caret.WriteByte(' ')
		}
	}
	caret.WriteByte('^')
	return "  " + src + "\n  " + caret.String() + "\n"
}

// InternalError signals that a later stage received input violating an
// established invariant. It always indicates a compiler defect and aborts
// the call instead of being collected.
type InternalError struct {
	Stage string
	Msg   string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %s", e.Stage, e.Msg)
}

// Internalf builds an InternalError for the given stage.
func Internalf(stage, format string, args ...interface{}) error {
	return &InternalError{Stage: stage, Msg: fmt.Sprintf(format, args...)}
}
