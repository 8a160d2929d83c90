package diag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBag_SeveritySplit(t *testing.T) {
	bag := NewBag("s.strat", "let x = ;\n")
	bag.AddParse(1, 9, "expression", "unexpected ';'")
	bag.AddWarning(1, 5, "x is never read")

	assert.True(t, bag.HasErrors())
	assert.Len(t, bag.Errors(), 1)
	assert.Len(t, bag.Warnings(), 1)
	assert.Equal(t, 2, bag.Len())
	assert.Len(t, bag.All(), 2)
}

func TestBag_WarningsAloneAreNotErrors(t *testing.T) {
	bag := NewBag("s.strat", "strategy S {}\n")
	bag.AddWarning(1, 1, "no trading rules defined")
	assert.False(t, bag.HasErrors())
}

func TestDiagnostic_String(t *testing.T) {
	d := Diagnostic{
		Kind: Parse, Severity: Error, File: "s.strat", Line: 3, Column: 7,
		Message: "unexpected '}'", Expected: "';'",
	}
	assert.Equal(t, "s.strat:3:7: parse error: unexpected '}' (expected ';')", d.String())

	d.Expected = ""
	d.Kind = Lexical
	assert.Equal(t, "s.strat:3:7: lexical error: unexpected '}'", d.String())
}

func TestReport_CaretUnderColumn(t *testing.T) {
	src := "let value = @;\n"
	bag := NewBag("s.strat", src)
	bag.AddLexical(1, 13, "unrecognized character sequence %q", "@")

	report := bag.Report()
	lines := strings.Split(report, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "s.strat:1:13")
	assert.Equal(t, "  let value = @;", lines[1])
	assert.Equal(t, "  "+strings.Repeat(" ", 12)+"^", lines[2])
}

func TestReport_TabsKeepCaretAligned(t *testing.T) {
	src := "\tbuy(;\n"
	bag := NewBag("s.strat", src)
	bag.AddParse(1, 6, "expression", "unexpected ';'")

	report := bag.Report()
	lines := strings.Split(report, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	// The caret line reuses tabs from the source so terminal columns match.
	assert.Equal(t, "  \tbuy(;", lines[1])
	assert.Equal(t, "  \t    ^", lines[2])
}

func TestReport_LineOutOfRange(t *testing.T) {
	bag := NewBag("s.strat", "one line\n")
	bag.AddParse(99, 1, "", "diagnostic past the end of input")
	report := bag.Report()
	assert.Contains(t, report, "99:1")
	assert.NotContains(t, report, "^")
}

func TestInternalError(t *testing.T) {
	err := Internalf("ast builder", "BadExpr survived into lowering at %d:%d", 3, 9)
	require.Error(t, err)
	assert.Equal(t, "internal error in ast builder: BadExpr survived into lowering at 3:9", err.Error())

	var internal *InternalError
	require.ErrorAs(t, err, &internal)
	assert.Equal(t, "ast builder", internal.Stage)
}
