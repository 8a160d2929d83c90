package ast

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stratlang/stratc/diag"
	"github.com/stratlang/stratc/lexer"
	"github.com/stratlang/stratc/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, src string) *Program {
	t.Helper()
	bag := diag.NewBag("test.strat", src)
	tokens := lexer.New(src, bag).Tokenize()
	file := parser.Parse(tokens, bag)
	require.False(t, bag.HasErrors(), bag.Report())
	prog, err := Build(file, "test.strat")
	require.NoError(t, err)
	return prog
}

func TestBuild_IndicatorBindingsPreserveOrder(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("strategy S {\n  indicators {\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&sb, "    ind%02d = SMA(close, %d);\n", i, i+1)
	}
	sb.WriteString("  }\n}\n")

	prog := build(t, sb.String())
	s := prog.Strategies()[0]
	require.Len(t, s.Indicators, 12)
	for i, b := range s.Indicators {
		assert.Equal(t, fmt.Sprintf("ind%02d", i), b.Name)
	}
}

func TestBuild_SpansComeFromTokens(t *testing.T) {
	src := "strategy S {\n  signals {\n    go = close > open;\n  }\n}\n"
	prog := build(t, src)
	s := prog.Strategies()[0]

	assert.Equal(t, 1, s.Span.Line)
	assert.Equal(t, 1, s.Span.Column)
	assert.Equal(t, 5, s.Span.EndLine, "strategy span should reach its closing brace")

	require.Len(t, s.Signals, 1)
	sig := s.Signals[0]
	assert.Equal(t, 3, sig.Span.Line)
	assert.Equal(t, 5, sig.Span.Column)

	cmp, ok := sig.Value.(*Binary)
	require.True(t, ok)
	assert.Equal(t, Greater, cmp.Op)
	assert.Equal(t, 3, cmp.Span.Line)
	assert.Equal(t, 10, cmp.Span.Column, "binary span starts at its left operand")
}

func TestBuild_TradingRuleLowering(t *testing.T) {
	src := `
strategy S {
  rules {
    when (rsi < 30) {
      buy(100);
      sell(50, limit);
      rebalance();
    }
  }
}`
	prog := build(t, src)
	s := prog.Strategies()[0]
	require.Len(t, s.Rules, 1)
	rule := s.Rules[0]

	cond, ok := rule.Cond.(*Binary)
	require.True(t, ok)
	assert.Equal(t, Less, cond.Op)

	require.Len(t, rule.Actions, 3)
	buy := rule.Actions[0]
	assert.Equal(t, Buy, buy.Verb)
	assert.Nil(t, buy.Price, "buy with one argument is a market order")
	qty, ok := buy.Qty.(*Literal)
	require.True(t, ok)
	assert.Equal(t, "100", qty.Value)

	sell := rule.Actions[1]
	assert.Equal(t, Sell, sell.Verb)
	assert.NotNil(t, sell.Price)

	call := rule.Actions[2]
	assert.True(t, call.IsCall())
}

func TestBuild_ParenthesesAreTransparent(t *testing.T) {
	src := "strategy S {\n  signals {\n    v = (a + b) * c;\n  }\n}\n"
	prog := build(t, src)
	mul := prog.Strategies()[0].Signals[0].Value.(*Binary)
	assert.Equal(t, Mul, mul.Op)
	add, ok := mul.Left.(*Binary)
	require.True(t, ok, "grouped sum should lower to its inner node")
	assert.Equal(t, Add, add.Op)
}

func TestBuild_NotInLowersToDistinctOp(t *testing.T) {
	src := "strategy S {\n  signals {\n    v = x not in xs;\n  }\n}\n"
	prog := build(t, src)
	bin := prog.Strategies()[0].Signals[0].Value.(*Binary)
	assert.Equal(t, NotIn, bin.Op)
}

func TestBuild_LiteralKinds(t *testing.T) {
	src := `
data feed {
  count = 42;
  label = "spx";
  start = 2024-01-02T09:30;
  live = true;
  empty = nil;
}`
	prog := build(t, src)
	d := prog.Decls[0].(*ObjectDecl)
	require.Len(t, d.Entries, 5)

	kinds := []LitKind{NumberLit, StringLit, DateLit, BoolLit, NilLit}
	for i, want := range kinds {
		lit, ok := d.Entries[i].Value.(*Literal)
		require.True(t, ok, "entry %d", i)
		assert.Equal(t, want, lit.Kind, "entry %d", i)
	}
	assert.True(t, d.Entries[3].Value.(*Literal).Bool)
}

func TestBuild_HandlerKinds(t *testing.T) {
	src := `
strategy S {
  on bar(b) { log(b); }
  on fill(f) { log(f); }
}`
	prog := build(t, src)
	s := prog.Strategies()[0]
	require.Len(t, s.Handlers, 2)
	assert.Equal(t, OnBar, s.Handlers[0].Kind)
	assert.Equal(t, OnFill, s.Handlers[1].Kind)
	require.Len(t, s.Handlers[0].Params, 1)
	assert.Equal(t, "b", s.Handlers[0].Params[0].Name)
}

func TestBuild_VarMutability(t *testing.T) {
	src := `
event tick() {
  let fixed = 1;
  var mutable = 2;
}`
	prog := build(t, src)
	body := prog.Decls[0].(*EventDecl).Body
	require.Len(t, body.Stmts, 2)
	assert.False(t, body.Stmts[0].(*VarDecl).Mutable)
	assert.True(t, body.Stmts[1].(*VarDecl).Mutable)
}

func TestBuild_SectionPresenceFlags(t *testing.T) {
	prog := build(t, "strategy Bare {}")
	s := prog.Strategies()[0]
	assert.False(t, s.HasRules)
	assert.False(t, s.HasRisk)

	prog = build(t, "strategy S { rules {} risk {} }")
	s = prog.Strategies()[0]
	assert.True(t, s.HasRules, "an empty rules block still counts as written")
	assert.True(t, s.HasRisk)
}

func TestBuild_ImportLowering(t *testing.T) {
	prog := build(t, `import "util/math" as m;`)
	require.Len(t, prog.Imports, 1)
	assert.Equal(t, "util/math", prog.Imports[0].Path)
	assert.Equal(t, "m", prog.Imports[0].Alias)
}

func TestBuild_RejectsBadNodes(t *testing.T) {
	src := "strategy S { indicators { rsi = ; } }"
	bag := diag.NewBag("test.strat", src)
	tokens := lexer.New(src, bag).Tokenize()
	file := parser.Parse(tokens, bag)
	require.True(t, bag.HasErrors())

	_, err := Build(file, "test.strat")
	require.Error(t, err, "lowering a broken parse is a pipeline defect")
	var internal *diag.InternalError
	assert.ErrorAs(t, err, &internal)
}
