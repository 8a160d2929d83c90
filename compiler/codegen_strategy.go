package compiler

import (
	"fmt"

	"github.com/stratlang/stratc/ast"
)

// strategy emits one strategy declaration as a class. The runtime
// constructs it with the collaborator object and optional parameter
// overrides; lifecycle callbacks map one-to-one to onBar/onTick/onFill/
// onReject methods.
func (g *codeGen) strategy(s *ast.StrategyDecl) error {
	g.mark(s.Span)
	g.w.Linef("class %s {", s.Name)
	g.w.Indent()
	g.strict = true
	defer func() { g.strict = false }()

	if len(s.Risk) > 0 {
		g.w.Linef("static RISK = Object.freeze({")
		g.w.Indent()
		for _, r := range s.Risk {
			v, err := g.expr(r.Value)
			if err != nil {
				return err
			}
			g.mark(r.Span)
			g.w.Linef("%s: %s,", r.Name, v)
		}
		g.w.Dedent()
		g.w.Linef("});")
		g.w.Blank()
	}

	if err := g.strategyConstructor(s); err != nil {
		return err
	}

	// Parameters resolve through this.params everywhere inside the class.
	base := make(map[string]string, len(s.Params))
	for _, p := range s.Params {
		base[p.Name] = "this.params." + p.Name
	}

	handlers := map[ast.HandlerKind]*ast.EventHandler{}
	for _, h := range s.Handlers {
		handlers[h.Kind] = h
	}

	if err := g.onBar(s, handlers[ast.OnBar], base); err != nil {
		return err
	}
	for _, kind := range []ast.HandlerKind{ast.OnTick, ast.OnFill, ast.OnReject} {
		h := handlers[kind]
		if h == nil {
			continue
		}
		if err := g.plainHandler(h, base); err != nil {
			return err
		}
	}

	g.w.Dedent()
	g.w.Linef("}")
	return nil
}

func (g *codeGen) strategyConstructor(s *ast.StrategyDecl) error {
	g.w.Linef("constructor(runtime, params = {}) {")
	g.w.Indent()
	g.w.Linef("this.rt = runtime;")
	g.w.Linef("this.symbol = runtime.symbol;")
	if len(s.Params) > 0 {
		g.w.Linef("this.params = Object.assign({")
		g.w.Indent()
		for _, p := range s.Params {
			if p.Default == nil {
				g.w.Linef("%s: undefined,", p.Name)
				continue
			}
			v, err := g.expr(p.Default)
			if err != nil {
				return err
			}
			g.mark(p.Span)
			g.w.Linef("%s: %s,", p.Name, v)
		}
		g.w.Dedent()
		g.w.Linef("}, params);")
	} else {
		g.w.Linef("this.params = params;")
	}
	g.w.Dedent()
	g.w.Linef("}")
	g.w.Blank()
	return nil
}

// onBar composes the generated bar callback: indicator bindings first,
// then signal bindings, then trading rules, then the author's own on-bar
// body when present. Omitted entirely when there is nothing to emit.
func (g *codeGen) onBar(s *ast.StrategyDecl, h *ast.EventHandler, base map[string]string) error {
	hasBody := len(s.Indicators) > 0 || len(s.Signals) > 0 || len(s.Rules) > 0 || h != nil
	if !hasBody {
		return nil
	}

	param := "bar"
	if h != nil && len(h.Params) > 0 {
		param = h.Params[0].Name
	}

	async := strategyUsesAwait(s, h)
	kw := ""
	if async {
		kw = "async "
	}
	g.mark(s.Span)
	g.w.Linef("%sonBar(%s) {", kw, param)
	g.w.Indent()

	saved := g.enterScope(base)
	defer g.leaveScope(saved)
	g.scope[param] = param

	published := map[string]bool{}
	if g.opts.Optimize >= OptAggressive {
		refs := strategyReferences(s, h)
		for name := range refs {
			published[name] = true
		}
	}
	publish := func(name string) bool {
		if g.opts.Optimize < OptAggressive {
			return true
		}
		return published[name]
	}

	declared := map[string]bool{param: true}
	for _, ind := range s.Indicators {
		v, err := g.expr(ind.Value)
		if err != nil {
			return err
		}
		local := localName(declared, ind.Name)
		g.mark(ind.Span)
		g.w.Linef("const %s = %s;", local, v)
		if publish(ind.Name) {
			g.w.Linef("this.rt.setIndicator(%s, %s);", jsString(ind.Name), local)
		}
		g.scope[ind.Name] = local
	}
	for _, sig := range s.Signals {
		v, err := g.expr(sig.Value)
		if err != nil {
			return err
		}
		local := localName(declared, sig.Name)
		g.mark(sig.Span)
		g.w.Linef("const %s = %s;", local, v)
		if publish(sig.Name) {
			g.w.Linef("this.rt.setSignal(%s, %s);", jsString(sig.Name), local)
		}
		g.scope[sig.Name] = local
	}

	for _, rule := range s.Rules {
		if err := g.tradingRule(rule); err != nil {
			return err
		}
	}

	if h != nil {
		if err := g.stmts(h.Body.Stmts); err != nil {
			return err
		}
	}

	g.w.Dedent()
	g.w.Linef("}")
	g.w.Blank()
	return nil
}

// localName returns a const name not yet declared in the generated
// callback, adding a numeric suffix when bindings collide. Only the local
// is renamed; the name published to the runtime is always the source name,
// and the later binding is the one later expressions see.
func localName(declared map[string]bool, name string) string {
	local := name
	for i := 2; declared[local]; i++ {
		local = fmt.Sprintf("%s_%d", name, i)
	}
	declared[local] = true
	return local
}

// tradingRule emits one guarded action block. With basic optimization a
// constant guard is folded: true loses the wrapper, false drops the rule.
func (g *codeGen) tradingRule(rule *ast.TradingRule) error {
	folded := false
	if g.opts.Optimize >= OptBasic {
		if lit, ok := rule.Cond.(*ast.Literal); ok && lit.Kind == ast.BoolLit {
			if !lit.Bool {
				return nil
			}
			folded = true
		}
	}
	if !folded {
		cond, err := g.expr(rule.Cond)
		if err != nil {
			return err
		}
		g.mark(rule.Span)
		g.w.Linef("if (%s) {", cond)
		g.w.Indent()
	}
	for _, a := range rule.Actions {
		if err := g.tradingAction(a); err != nil {
			return err
		}
	}
	if !folded {
		g.w.Dedent()
		g.w.Linef("}")
	}
	return nil
}

// tradingAction emits one order submission or plain call. An omitted price
// means a market order: the price argument is simply not passed.
func (g *codeGen) tradingAction(a *ast.TradingAction) error {
	if a.IsCall() {
		call, err := g.expr(a.Call)
		if err != nil {
			return err
		}
		g.mark(a.Span)
		g.w.Linef("%s;", call)
		return nil
	}
	qty, err := g.expr(a.Qty)
	if err != nil {
		return err
	}
	if g.opts.RuntimeChecks {
		qty = fmt.Sprintf("__checkNumber(%s, %s)", jsString("quantity"), qty)
	}
	g.mark(a.Span)
	if a.Price == nil {
		g.w.Linef("this.rt.%s(this.symbol, %s);", a.Verb, qty)
		return nil
	}
	price, err := g.expr(a.Price)
	if err != nil {
		return err
	}
	if g.opts.RuntimeChecks {
		price = fmt.Sprintf("__checkNumber(%s, %s)", jsString("price"), price)
	}
	g.w.Linef("this.rt.%s(this.symbol, %s, %s);", a.Verb, qty, price)
	return nil
}

// plainHandler emits a non-bar lifecycle method directly from its body.
func (g *codeGen) plainHandler(h *ast.EventHandler, base map[string]string) error {
	method := map[ast.HandlerKind]string{
		ast.OnTick:   "onTick",
		ast.OnFill:   "onFill",
		ast.OnReject: "onReject",
	}[h.Kind]

	kw := ""
	if usesAwait(h.Body) {
		kw = "async "
	}
	g.mark(h.Span)
	g.w.Linef("%s%s(%s) {", kw, method, paramNames(h.Params))
	g.w.Indent()
	saved := g.enterScope(base)
	for _, p := range h.Params {
		g.scope[p.Name] = p.Name
	}
	err := g.stmts(h.Body.Stmts)
	g.leaveScope(saved)
	if err != nil {
		return err
	}
	g.w.Dedent()
	g.w.Linef("}")
	g.w.Blank()
	return nil
}
