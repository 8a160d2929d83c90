package compiler

import (
	"fmt"
	"strings"

	"github.com/stratlang/stratc/ast"
)

// codeGen emits JavaScript from a typed AST. Output is deterministic:
// declarations are emitted in source order, helper functions are included
// based only on AST content, and nothing derived from maps is emitted
// without an explicit order.
type codeGen struct {
	w    *jsWriter
	opts Options
	sm   *sourceMap // nil when source maps are off

	// Strategy emission context.
	scope  map[string]string // identifier -> emitted form
	strict bool              // inside a strategy (runtime API gets this.rt)
}

// generate produces the target source for prog. The returned sourceMap is
// nil unless requested in opts.
func generate(prog *ast.Program, file string, opts Options) (string, *sourceMap, error) {
	g := &codeGen{w: newJSWriter(), opts: opts}
	if opts.SourceMap {
		g.sm = newSourceMap(file)
	}
	if err := g.program(prog, file); err != nil {
		return "", nil, err
	}
	return g.w.String(), g.sm, nil
}

// runtimeAPI names the collaborator entry points owned by the execution
// runtime. Calls to these inside a strategy go through this.rt.
var runtimeAPI = map[string]bool{
	"getPosition":  true,
	"getPortfolio": true,
	"getIndicator": true,
	"setIndicator": true,
	"getSignal":    true,
	"setSignal":    true,
	"submitOrder":  true,
	"cancelOrder":  true,
}

func (g *codeGen) program(prog *ast.Program, file string) error {
	g.w.Linef("// Generated by stratc from %s.", file)
	if g.opts.Dialect == DialectCommonJS {
		g.w.Linef("%q;", "use strict")
	}
	g.w.Blank()

	for _, imp := range prog.Imports {
		alias := imp.Alias
		if alias == "" {
			alias = importAlias(imp.Path)
		}
		g.mark(imp.Span)
		if g.opts.Dialect == DialectCommonJS {
			g.w.Linef("const %s = require(%s);", alias, jsString(imp.Path))
		} else {
			g.w.Linef("import * as %s from %s;", alias, jsString(imp.Path))
		}
	}
	if len(prog.Imports) > 0 {
		g.w.Blank()
	}

	if programUsesContains(prog) {
		g.w.Raw(containsHelper)
		g.w.Blank()
	}
	if g.opts.RuntimeChecks && programHasOrders(prog) {
		g.w.Raw(checkNumberHelper)
		g.w.Blank()
	}

	var exports []string
	for _, d := range prog.Decls {
		switch d := d.(type) {
		case *ast.IndicatorDecl:
			if err := g.indicatorDecl(d); err != nil {
				return err
			}
			exports = append(exports, d.Name)
		case *ast.EventDecl:
			if err := g.eventDecl(d); err != nil {
				return err
			}
			exports = append(exports, d.Name)
		case *ast.ObjectDecl:
			if err := g.objectDecl(d); err != nil {
				return err
			}
			exports = append(exports, d.Name)
		case *ast.StrategyDecl:
			if err := g.strategy(d); err != nil {
				return err
			}
			exports = append(exports, d.Name)
		default:
			return fmt.Errorf("code generation: unknown declaration %T", d)
		}
		g.w.Blank()
	}

	if len(exports) > 0 {
		if g.opts.Dialect == DialectCommonJS {
			g.w.Linef("module.exports = { %s };", strings.Join(exports, ", "))
		} else {
			g.w.Linef("export { %s };", strings.Join(exports, ", "))
		}
	}
	return nil
}

// mark records a source-map entry at the current output position.
func (g *codeGen) mark(span ast.Span) {
	if g.sm != nil {
		g.sm.add(g.w.Line(), g.w.Col(), span)
	}
}

const containsHelper = `function __contains(collection, value) {
  if (collection == null) return false;
  if (typeof collection.includes === "function") return collection.includes(value);
  return value in collection;
}
`

const checkNumberHelper = `function __checkNumber(name, value) {
  if (typeof value !== "number" || Number.isNaN(value)) {
    throw new TypeError(name + " must be a number, got " + typeof value);
  }
  return value;
}
`

// importAlias derives a default namespace alias from an import path.
func importAlias(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	var sb strings.Builder
	for i := 0; i < len(base); i++ {
		ch := base[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_':
			sb.WriteByte(ch)
		case ch >= '0' && ch <= '9' && sb.Len() > 0:
			sb.WriteByte(ch)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

func (g *codeGen) indicatorDecl(d *ast.IndicatorDecl) error {
	g.mark(d.Span)
	kw := "function"
	if usesAwait(d.Body) {
		kw = "async function"
	}
	g.w.Linef("%s %s(%s) {", kw, d.Name, paramNames(d.Params))
	g.w.Indent()
	saved := g.enterScope(nil)
	for _, p := range d.Params {
		g.scope[p.Name] = p.Name
	}
	if err := g.stmts(d.Body.Stmts); err != nil {
		return err
	}
	g.leaveScope(saved)
	g.w.Dedent()
	g.w.Linef("}")
	return nil
}

func (g *codeGen) eventDecl(d *ast.EventDecl) error {
	g.mark(d.Span)
	kw := "function"
	if usesAwait(d.Body) {
		kw = "async function"
	}
	g.w.Linef("%s %s(%s) {", kw, d.Name, paramNames(d.Params))
	g.w.Indent()
	saved := g.enterScope(nil)
	for _, p := range d.Params {
		g.scope[p.Name] = p.Name
	}
	if err := g.stmts(d.Body.Stmts); err != nil {
		return err
	}
	g.leaveScope(saved)
	g.w.Dedent()
	g.w.Linef("}")
	return nil
}

func (g *codeGen) objectDecl(d *ast.ObjectDecl) error {
	g.mark(d.Span)
	g.w.Linef("const %s = Object.freeze({", d.Name)
	g.w.Indent()
	g.w.Linef("__kind: %s,", jsString(d.Kind.String()))
	for _, e := range d.Entries {
		v, err := g.expr(e.Value)
		if err != nil {
			return err
		}
		g.mark(e.Span)
		g.w.Linef("%s: %s,", e.Name, v)
	}
	g.w.Dedent()
	g.w.Linef("});")
	return nil
}

func paramNames(params []*ast.Param) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

// enterScope installs a fresh identifier scope, returning the previous one.
func (g *codeGen) enterScope(base map[string]string) map[string]string {
	saved := g.scope
	g.scope = make(map[string]string, len(base))
	for k, v := range base {
		g.scope[k] = v
	}
	return saved
}

func (g *codeGen) leaveScope(saved map[string]string) {
	g.scope = saved
}
