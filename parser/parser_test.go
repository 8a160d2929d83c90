package parser

import (
	"strings"
	"testing"

	"github.com/stratlang/stratc/diag"
	"github.com/stratlang/stratc/lexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSrc(t *testing.T, src string) (*File, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag("test.strat", src)
	tokens := lexer.New(src, bag).Tokenize()
	return Parse(tokens, bag), bag
}

func parseExprSrc(t *testing.T, src string) (Expr, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag("test.strat", src)
	tokens := lexer.New(src, bag).Tokenize()
	return ParseExpr(tokens, bag), bag
}

func TestParseExpr_MultiplicationBindsTighter(t *testing.T) {
	e, bag := parseExprSrc(t, "a + b * c")
	require.Equal(t, 0, bag.Len())

	add, ok := e.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, lexer.PLUS, add.Op.Type)
	_, ok = add.Left.(*Ident)
	assert.True(t, ok, "left of + should be the bare identifier a")
	mul, ok := add.Right.(*BinaryExpr)
	require.True(t, ok, "right of + should be b * c")
	assert.Equal(t, lexer.STAR, mul.Op.Type)
}

func TestParseExpr_PowerIsRightAssociative(t *testing.T) {
	e, bag := parseExprSrc(t, "a ** b ** c")
	require.Equal(t, 0, bag.Len())

	outer, ok := e.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, lexer.POW, outer.Op.Type)
	_, ok = outer.Left.(*Ident)
	assert.True(t, ok)
	inner, ok := outer.Right.(*BinaryExpr)
	require.True(t, ok, "b ** c should nest on the right")
	assert.Equal(t, lexer.POW, inner.Op.Type)
}

func TestParseExpr_PowerBindsTighterThanNegation(t *testing.T) {
	e, bag := parseExprSrc(t, "-a ** b")
	require.Equal(t, 0, bag.Len())

	neg, ok := e.(*UnaryExpr)
	require.True(t, ok, "negation should wrap the whole power")
	assert.Equal(t, lexer.MINUS, neg.Op.Type)
	pow, ok := neg.Operand.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, lexer.POW, pow.Op.Type)
}

func TestParseExpr_PowerAcceptsUnaryRightOperand(t *testing.T) {
	e, bag := parseExprSrc(t, "2 ** -3")
	require.Equal(t, 0, bag.Len())

	pow, ok := e.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, lexer.POW, pow.Op.Type)
	_, ok = pow.Right.(*UnaryExpr)
	assert.True(t, ok)
}

func TestParseExpr_Membership(t *testing.T) {
	e, bag := parseExprSrc(t, "x in xs")
	require.Equal(t, 0, bag.Len())
	b, ok := e.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, lexer.IN, b.Op.Type)
	assert.False(t, b.NotIn)

	e, bag = parseExprSrc(t, "x not in xs")
	require.Equal(t, 0, bag.Len())
	b, ok = e.(*BinaryExpr)
	require.True(t, ok)
	assert.True(t, b.NotIn)
}

func TestParseExpr_PostfixChain(t *testing.T) {
	e, bag := parseExprSrc(t, "a.b[0](1, 2)")
	require.Equal(t, 0, bag.Len())

	call, ok := e.(*CallExpr)
	require.True(t, ok)
	require.Len(t, call.Args, 2)
	idx, ok := call.Fun.(*IndexExpr)
	require.True(t, ok)
	member, ok := idx.Recv.(*MemberExpr)
	require.True(t, ok)
	assert.Equal(t, "b", member.Name.Lit)
}

func TestParseExpr_Ternary(t *testing.T) {
	e, bag := parseExprSrc(t, "a ? b : c ? d : e")
	require.Equal(t, 0, bag.Len())
	outer, ok := e.(*CondExpr)
	require.True(t, ok)
	_, ok = outer.Else.(*CondExpr)
	assert.True(t, ok, "ternary should nest to the right")
}

func TestParseExpr_Comprehension(t *testing.T) {
	e, bag := parseExprSrc(t, "[x * 2 for x in xs if x > 0]")
	require.Equal(t, 0, bag.Len())
	c, ok := e.(*Comprehension)
	require.True(t, ok)
	assert.Equal(t, "x", c.Var.Lit)
	assert.NotNil(t, c.Cond)
}

func TestParseExpr_ArrayWithoutFor(t *testing.T) {
	e, bag := parseExprSrc(t, "[1, 2, 3]")
	require.Equal(t, 0, bag.Len())
	arr, ok := e.(*ArrayLit)
	require.True(t, ok)
	assert.Len(t, arr.Elems, 3)
}

func TestParseExpr_SliceAndIndex(t *testing.T) {
	e, bag := parseExprSrc(t, "xs[1:3]")
	require.Equal(t, 0, bag.Len())
	s, ok := e.(*SliceExpr)
	require.True(t, ok)
	assert.NotNil(t, s.Low)
	assert.NotNil(t, s.High)

	e, bag = parseExprSrc(t, "xs[:3]")
	require.Equal(t, 0, bag.Len())
	s, ok = e.(*SliceExpr)
	require.True(t, ok)
	assert.Nil(t, s.Low)
}

func TestParseExpr_NestingDepthLimit(t *testing.T) {
	src := strings.Repeat("(", 300) + "x" + strings.Repeat(")", 300)
	_, bag := parseExprSrc(t, src)
	require.True(t, bag.HasErrors())
	assert.Contains(t, bag.Errors()[0].Message, "nesting")
}

func TestParse_FullStrategy(t *testing.T) {
	src := `
strategy Momentum {
  params {
    period: int = 14;
    threshold: float = 30.0;
  }
  indicators {
    rsi = RSI(close, period);
    fastMA = SMA(close, 10);
  }
  signals {
    oversold = rsi < threshold;
  }
  rules {
    when (oversold) {
      buy(100);
    }
    when (rsi > 70) {
      sell(100, limitPrice);
    }
  }
  risk {
    maxDrawdown = 0.1;
  }
  on fill(order) {
    log(order);
  }
}`
	file, bag := parseSrc(t, src)
	require.Equal(t, 0, bag.Len(), bag.Report())
	require.Len(t, file.Decls, 1)

	s, ok := file.Decls[0].(*StrategyDecl)
	require.True(t, ok)
	assert.Equal(t, "Momentum", s.Name.Lit)
	require.Len(t, s.Sections, 6)

	params, ok := s.Sections[0].(*ParamsBlock)
	require.True(t, ok)
	assert.Len(t, params.Params, 2)
	assert.NotNil(t, params.Params[0].Default)

	inds, ok := s.Sections[1].(*IndicatorsBlock)
	require.True(t, ok)
	require.Len(t, inds.Bindings, 2)
	assert.Equal(t, "rsi", inds.Bindings[0].Name.Lit)

	rules, ok := s.Sections[3].(*RulesBlock)
	require.True(t, ok)
	require.Len(t, rules.Rules, 2)
	require.Len(t, rules.Rules[0].Actions, 1)
	assert.Equal(t, lexer.BUY, rules.Rules[0].Actions[0].Verb.Type)
	assert.Nil(t, rules.Rules[0].Actions[0].Price, "market order has no price")
	assert.NotNil(t, rules.Rules[1].Actions[0].Price, "limit order keeps its price")

	handler, ok := s.Sections[5].(*EventHandler)
	require.True(t, ok)
	assert.Equal(t, "fill", handler.Event.Lit)
}

func TestParse_TooManyOrderArguments(t *testing.T) {
	src := `strategy S { rules { when (x) { buy(100, 50, 1); } } }`
	_, bag := parseSrc(t, src)
	require.True(t, bag.HasErrors())
	assert.Contains(t, bag.Errors()[0].Message, "too many arguments")
}

func TestParse_ActionMustBeVerbOrCall(t *testing.T) {
	src := `strategy S { rules { when (x) { 42; } } }`
	_, bag := parseSrc(t, src)
	require.True(t, bag.HasErrors())
}

func TestParse_UnknownEventName(t *testing.T) {
	src := `strategy S { on quote(q) { log(q); } }`
	_, bag := parseSrc(t, src)
	require.True(t, bag.HasErrors())
	d := bag.Errors()[0]
	assert.Contains(t, d.Message, `unknown event name "quote"`)
}

func TestParse_ThreeIndependentErrors(t *testing.T) {
	src := `
strategy One {
  params {
    period int = 14;
  }
}
strategy Two {
  indicators {
    rsi = ;
  }
}
strategy Three {
  rules {
    when oversold { buy(1); }
  }
}`
	file, bag := parseSrc(t, src)
	assert.GreaterOrEqual(t, len(bag.Errors()), 3,
		"each strategy has one mistake; all should be reported:\n%s", bag.Report())
	// Recovery still yields all three strategy declarations.
	strategies := 0
	for _, d := range file.Decls {
		if _, ok := d.(*StrategyDecl); ok {
			strategies++
		}
	}
	assert.Equal(t, 3, strategies)
}

func TestParse_RecoversToNextDeclaration(t *testing.T) {
	src := `
strategy Broken {
  indicators {
    rsi = RSI(close period);
  }
}
strategy Fine {
  signals {
    go = true;
  }
}`
	file, bag := parseSrc(t, src)
	require.True(t, bag.HasErrors())
	require.Len(t, file.Decls, 2)
	s, ok := file.Decls[1].(*StrategyDecl)
	require.True(t, ok)
	assert.Equal(t, "Fine", s.Name.Lit)
	require.Len(t, s.Sections, 1)
}

func TestParse_ImportForms(t *testing.T) {
	src := `
import "indicators/talib";
import "util/math" as m;
`
	file, bag := parseSrc(t, src)
	require.Equal(t, 0, bag.Len(), bag.Report())
	require.Len(t, file.Decls, 2)

	first := file.Decls[0].(*ImportDecl)
	assert.Equal(t, "indicators/talib", first.Path.Lit)
	assert.Nil(t, first.Alias)

	second := file.Decls[1].(*ImportDecl)
	require.NotNil(t, second.Alias)
	assert.Equal(t, "m", second.Alias.Lit)
}

func TestParse_IndicatorDecl(t *testing.T) {
	src := `
indicator wma(values: float[], period: int): float {
  let total = 0;
  for (v in values) {
    total += v;
  }
  return total / period;
}`
	file, bag := parseSrc(t, src)
	require.Equal(t, 0, bag.Len(), bag.Report())
	d, ok := file.Decls[0].(*IndicatorDecl)
	require.True(t, ok)
	assert.Equal(t, "wma", d.Name.Lit)
	assert.Len(t, d.Params, 2)
	assert.NotNil(t, d.Return)
	assert.Len(t, d.Body.Stmts, 3)
}

func TestParse_ObjectDecls(t *testing.T) {
	src := `
data feed {
  source = "csv";
  resolution = "m5";
}
backtest config {
  start = 2024-01-02;
  end = 2024-06-28;
}`
	file, bag := parseSrc(t, src)
	require.Equal(t, 0, bag.Len(), bag.Report())
	require.Len(t, file.Decls, 2)
	d, ok := file.Decls[0].(*DataDecl)
	require.True(t, ok)
	assert.Len(t, d.Bindings, 2)
	b, ok := file.Decls[1].(*BacktestDecl)
	require.True(t, ok)
	lit, ok := b.Bindings[0].Value.(*Literal)
	require.True(t, ok)
	assert.Equal(t, lexer.DATE, lit.Tok.Type)
}

func TestParse_BlockVsObjectLiteralByPosition(t *testing.T) {
	// Statement position: a brace opens a block.
	src := `event rebalance() { { let x = 1; } }`
	file, bag := parseSrc(t, src)
	require.Equal(t, 0, bag.Len(), bag.Report())
	d := file.Decls[0].(*EventDecl)
	_, ok := d.Body.Stmts[0].(*BlockStmt)
	assert.True(t, ok)

	// Expression position: a brace opens an object literal.
	e, bag2 := parseExprSrc(t, `{ size: 100, side: "long" }`)
	require.Equal(t, 0, bag2.Len())
	obj, ok := e.(*ObjectLit)
	require.True(t, ok)
	assert.Len(t, obj.Fields, 2)
}

func TestParse_WhenGuardStatement(t *testing.T) {
	src := `event check() { when (x > 0) { log(x); } }`
	file, bag := parseSrc(t, src)
	require.Equal(t, 0, bag.Len(), bag.Report())
	d := file.Decls[0].(*EventDecl)
	_, ok := d.Body.Stmts[0].(*WhenStmt)
	assert.True(t, ok)
}

func TestParse_TypeAnnotations(t *testing.T) {
	src := `
strategy S {
  params {
    series: float[];
    lookup: map<string, float>;
    pick: (float, float) -> float;
    label: string | float;
    note: string?;
  }
}`
	file, bag := parseSrc(t, src)
	require.Equal(t, 0, bag.Len(), bag.Report())
	s := file.Decls[0].(*StrategyDecl)
	params := s.Sections[0].(*ParamsBlock).Params
	require.Len(t, params, 5)

	_, ok := params[0].Type.(*ArrayType)
	assert.True(t, ok)
	_, ok = params[1].Type.(*MapType)
	assert.True(t, ok)
	_, ok = params[2].Type.(*FuncType)
	assert.True(t, ok)
	_, ok = params[3].Type.(*UnionType)
	assert.True(t, ok)
	_, ok = params[4].Type.(*OptionalType)
	assert.True(t, ok)
}

func TestParse_EmptySourceIsValid(t *testing.T) {
	file, bag := parseSrc(t, "")
	require.Equal(t, 0, bag.Len())
	assert.Empty(t, file.Decls)
}

func TestParse_CascadeSuppression(t *testing.T) {
	// One malformed binding should not produce an error for every following
	// token before the synchronization point.
	src := `strategy S { indicators { rsi = = ; ma = SMA(close, 10); } }`
	file, bag := parseSrc(t, src)
	require.True(t, bag.HasErrors())
	assert.LessOrEqual(t, len(bag.Errors()), 3, bag.Report())
	s := file.Decls[0].(*StrategyDecl)
	inds := s.Sections[0].(*IndicatorsBlock)
	found := false
	for _, b := range inds.Bindings {
		if b.Name.Lit == "ma" {
			found = true
		}
	}
	assert.True(t, found, "parser should recover and keep the healthy binding")
}

func TestParse_DeclKeywordsAsIdentifiers(t *testing.T) {
	src := `
strategy S {
  rules {
    when (order.qty > 0 and portfolio in books) {
      log.info(order);
    }
  }
  on fill(order) {
    let data = { event: order.price };
    for (backtest in data.event) {
      track(backtest);
    }
  }
}

order Entry {
  kind = "limit";
}`
	file, bag := parseSrc(t, src)
	require.Equal(t, 0, bag.Len(), bag.Report())
	require.Len(t, file.Decls, 2)

	s, ok := file.Decls[0].(*StrategyDecl)
	require.True(t, ok)
	handler, ok := s.Sections[1].(*EventHandler)
	require.True(t, ok)
	require.Len(t, handler.Params, 1)
	assert.Equal(t, "order", handler.Params[0].Name.Lit)
	assert.Equal(t, lexer.IDENT, handler.Params[0].Name.Type)

	// At the top level the same word still opens a declaration.
	decl, ok := file.Decls[1].(*OrderDecl)
	require.True(t, ok)
	assert.Equal(t, "Entry", decl.Name.Lit)
}
