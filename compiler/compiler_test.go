package compiler

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const momentumSrc = `
strategy Momentum {
  params {
    period: int = 14;
  }
  indicators {
    rsi = RSI(close, period);
  }
  rules {
    when (rsi < 30) {
      buy(100);
    }
  }
  risk {
    maxDrawdown = 0.1;
  }
}`

func compileSrc(t *testing.T, src string, opts Options) *Result {
	t.Helper()
	res, err := New(opts).Compile(src, "test.strat")
	require.NoError(t, err)
	return res
}

func TestCompile_OutputIsDeterministic(t *testing.T) {
	first := compileSrc(t, momentumSrc, Options{})
	second := compileSrc(t, momentumSrc, Options{})
	if diff := cmp.Diff(first.Code, second.Code); diff != "" {
		t.Fatalf("identical input must produce identical output (-first +second):\n%s", diff)
	}
}

func TestCompile_BuyRuleLowersToRuntimeOrder(t *testing.T) {
	res := compileSrc(t, momentumSrc, Options{})
	require.False(t, res.Diagnostics.HasErrors(), res.Diagnostics.Report())

	assert.Contains(t, res.Code, "class Momentum {")
	assert.Contains(t, res.Code, "if ((rsi < 30)) {")
	assert.Contains(t, res.Code, "this.rt.buy(this.symbol, 100);")
	assert.Contains(t, res.Code, `this.rt.setIndicator("rsi", rsi);`)
	assert.Contains(t, res.Code, "static RISK = Object.freeze({")
	assert.Contains(t, res.Code, "export { Momentum };")
}

func TestCompile_ParamsResolveThroughThis(t *testing.T) {
	res := compileSrc(t, momentumSrc, Options{})
	assert.Contains(t, res.Code, "const rsi = RSI(close, this.params.period);")
	assert.Contains(t, res.Code, "period: 14,")
}

func TestCompile_Dialects(t *testing.T) {
	src := `import "util/math" as m;` + momentumSrc

	es := compileSrc(t, src, Options{Dialect: DialectES2022})
	assert.Contains(t, es.Code, `import * as m from "util/math";`)
	assert.Contains(t, es.Code, "export { Momentum };")
	assert.NotContains(t, es.Code, "use strict")

	cjs := compileSrc(t, src, Options{Dialect: DialectCommonJS})
	assert.Contains(t, cjs.Code, `"use strict";`)
	assert.Contains(t, cjs.Code, `const m = require("util/math");`)
	assert.Contains(t, cjs.Code, "module.exports = { Momentum };")
}

func TestCompile_ErrorsProduceNoCode(t *testing.T) {
	src := `strategy Broken { rules { when { buy(1); } } }`
	res := compileSrc(t, src, Options{})
	require.True(t, res.Diagnostics.HasErrors())
	assert.Empty(t, res.Code, "broken input must never yield partial output")
	assert.Nil(t, res.Program)
}

func TestCompile_LexErrorAlsoBlocksOutput(t *testing.T) {
	res := compileSrc(t, "strategy S {} @@@", Options{})
	require.True(t, res.Diagnostics.HasErrors())
	assert.Empty(t, res.Code)
}

func TestCompile_WarningsDoNotBlockOutput(t *testing.T) {
	res := compileSrc(t, "strategy Bare {}", Options{})
	require.False(t, res.Diagnostics.HasErrors())
	assert.Len(t, res.Diagnostics.Warnings(), 2)
	assert.Contains(t, res.Code, "class Bare {")
}

func TestCompile_ConstantGuardFolding(t *testing.T) {
	src := `
strategy S {
  rules {
    when (true) { buy(1); }
    when (false) { sell(1); }
    when (ready) { cover(1); }
  }
  risk { maxLoss = 1; }
}`
	plain := compileSrc(t, src, Options{Optimize: OptNone})
	assert.Contains(t, plain.Code, "if (true) {")
	assert.Contains(t, plain.Code, "if (false) {")

	opt := compileSrc(t, src, Options{Optimize: OptBasic})
	assert.NotContains(t, opt.Code, "if (true)")
	assert.Contains(t, opt.Code, "this.rt.buy(this.symbol, 1);", "true guard keeps its actions")
	assert.NotContains(t, opt.Code, "this.rt.sell", "false guard drops the whole rule")
	assert.Contains(t, opt.Code, "if (ready) {", "non-constant guards are untouched")
}

func TestCompile_PublicationElision(t *testing.T) {
	src := `
strategy S {
  indicators {
    used = SMA(close, 10);
    unused = SMA(close, 20);
  }
  rules {
    when (used > 0) { buy(1); }
  }
  risk { maxLoss = 1; }
}`
	plain := compileSrc(t, src, Options{Optimize: OptBasic})
	assert.Contains(t, plain.Code, `this.rt.setIndicator("unused", unused);`)

	opt := compileSrc(t, src, Options{Optimize: OptAggressive})
	assert.Contains(t, opt.Code, "const unused = ", "the computation itself is kept")
	assert.NotContains(t, opt.Code, `this.rt.setIndicator("unused"`, "unreferenced bindings are not published")
	assert.Contains(t, opt.Code, `this.rt.setIndicator("used", used);`)
}

func TestCompile_RuntimeChecks(t *testing.T) {
	src := `
strategy S {
  rules {
    when (go) { buy(qty, px); }
  }
  risk { maxLoss = 1; }
}`
	plain := compileSrc(t, src, Options{})
	assert.NotContains(t, plain.Code, "__checkNumber")

	checked := compileSrc(t, src, Options{RuntimeChecks: true})
	assert.Contains(t, checked.Code, "function __checkNumber(")
	assert.Contains(t, checked.Code,
		`this.rt.buy(this.symbol, __checkNumber("quantity", qty), __checkNumber("price", px));`)
}

func TestCompile_MembershipHelper(t *testing.T) {
	src := `
strategy S {
  signals {
    tracked = symbol in watchlist;
    ignored = symbol not in blocklist;
  }
  rules { when (tracked) { buy(1); } }
  risk { maxLoss = 1; }
}`
	res := compileSrc(t, src, Options{})
	assert.Contains(t, res.Code, "function __contains(")
	assert.Contains(t, res.Code, "const tracked = __contains(watchlist, symbol);")
	assert.Contains(t, res.Code, "const ignored = !__contains(blocklist, symbol);")

	// The helper is only included when membership is used.
	other := compileSrc(t, momentumSrc, Options{})
	assert.NotContains(t, other.Code, "__contains")
}

func TestCompile_DateLiteral(t *testing.T) {
	src := `
backtest config {
  start = 2024-01-02;
}`
	res := compileSrc(t, src, Options{})
	assert.Contains(t, res.Code, `start: new Date("2024-01-02"),`)
}

func TestCompile_AwaitMakesHandlerAsync(t *testing.T) {
	src := `
strategy S {
  rules { when (go) { buy(1); } }
  risk { maxLoss = 1; }
  on bar(b) {
    let quote = await fetchQuote(b);
    log(quote);
  }
  on tick(tk) {
    log(tk);
  }
}`
	res := compileSrc(t, src, Options{})
	assert.Contains(t, res.Code, "async onBar(b) {")
	assert.Contains(t, res.Code, "onTick(tk) {")
	assert.NotContains(t, res.Code, "async onTick")
}

func TestCompile_IndicatorDeclBecomesFunction(t *testing.T) {
	src := `
indicator double(x: float): float {
  return x * 2;
}`
	res := compileSrc(t, src, Options{})
	assert.Contains(t, res.Code, "function double(x) {")
	assert.Contains(t, res.Code, "return (x * 2);")
	assert.Contains(t, res.Code, "export { double };")
}

func TestCompile_ComprehensionLowering(t *testing.T) {
	src := `
strategy S {
  signals {
    gains = [p * 2 for p in prices if p > 0];
  }
  rules { when (go) { buy(1); } }
  risk { maxLoss = 1; }
}`
	res := compileSrc(t, src, Options{})
	assert.Contains(t, res.Code,
		"const gains = Array.from(prices).filter((p) => (p > 0)).map((p) => (p * 2));")
}

func TestCompile_SourceMap(t *testing.T) {
	res := compileSrc(t, momentumSrc, Options{SourceMap: true})
	require.NotNil(t, res.SourceMap)

	var sm struct {
		Version  int    `json:"version"`
		File     string `json:"file"`
		Mappings []struct {
			GenLine int `json:"genLine"`
			SrcLine int `json:"srcLine"`
		} `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(res.SourceMap, &sm))
	assert.Equal(t, "test.strat", sm.File)
	assert.NotEmpty(t, sm.Mappings)
	for _, m := range sm.Mappings {
		assert.Greater(t, m.GenLine, 0)
		assert.Greater(t, m.SrcLine, 0)
	}

	// Source maps are off by default.
	plain := compileSrc(t, momentumSrc, Options{})
	assert.Nil(t, plain.SourceMap)
}

func TestCompile_DeclarationsKeepSourceOrder(t *testing.T) {
	src := `
indicator first(x: float): float { return x; }
strategy Second { rules { when (go) { buy(1); } } risk { m = 1; } }
indicator third(x: float): float { return x; }
`
	res := compileSrc(t, src, Options{})
	iFirst := strings.Index(res.Code, "function first(")
	iSecond := strings.Index(res.Code, "class Second {")
	iThird := strings.Index(res.Code, "function third(")
	require.True(t, iFirst >= 0 && iSecond >= 0 && iThird >= 0)
	assert.Less(t, iFirst, iSecond)
	assert.Less(t, iSecond, iThird)
	assert.Contains(t, res.Code, "export { first, Second, third };")
}

func TestParseWithDiagnostics(t *testing.T) {
	c := New(Options{})
	prog, bag := c.ParseWithDiagnostics("strategy Bare {}", "test.strat")
	require.NotNil(t, prog)
	assert.Len(t, bag.Warnings(), 2)

	prog, bag = c.ParseWithDiagnostics("strategy {", "test.strat")
	assert.Nil(t, prog)
	assert.True(t, bag.HasErrors())
	assert.Equal(t, 2, c.Stats.Lexes)
	assert.Equal(t, 0, c.Stats.Generates)
}

func TestCompile_ClashingBindingsStayValidJS(t *testing.T) {
	src := `
strategy Clash {
  indicators {
    x = SMA(close, 10);
  }
  signals {
    x = x > 0;
  }
  rules {
    when (x) {
      buy(1);
    }
  }
  risk {
    maxDrawdown = 0.1;
  }
}`
	res := compileSrc(t, src, Options{})
	require.False(t, res.Diagnostics.HasErrors(), res.Diagnostics.Report())

	assert.Contains(t, res.Code, "const x = SMA(close, 10);")
	assert.Contains(t, res.Code, "const x_2 = (x > 0);")
	assert.Contains(t, res.Code, `this.rt.setIndicator("x", x);`)
	assert.Contains(t, res.Code, `this.rt.setSignal("x", x_2);`, "published under the source name")
	assert.Contains(t, res.Code, "if (x_2) {", "later binding wins for later references")
	assert.NotContains(t, res.Code, "const x = (x > 0);", "two consts of one name is a syntax error")

	warnings := res.Diagnostics.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, `signal "x" shadows the indicator of the same name`)
}

func TestCompile_SoftKeywordParameters(t *testing.T) {
	src := `
strategy Fills {
  rules {
    when (true) { buy(1); }
  }
  risk {
    maxDrawdown = 0.1;
  }
  on fill(order) {
    log(order.price);
  }
}`
	res := compileSrc(t, src, Options{})
	require.False(t, res.Diagnostics.HasErrors(), res.Diagnostics.Report())
	assert.Contains(t, res.Code, "onFill(order) {")
	assert.Contains(t, res.Code, "log(order.price);")
}
