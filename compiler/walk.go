package compiler

import "github.com/stratlang/stratc/ast"

// walkExpr calls fn for e and every expression nested under it. fn returning
// false stops descent into that subtree.
func walkExpr(e ast.Expr, fn func(ast.Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch e := e.(type) {
	case *ast.Binary:
		walkExpr(e.Left, fn)
		walkExpr(e.Right, fn)
	case *ast.Unary:
		walkExpr(e.Operand, fn)
	case *ast.Await:
		walkExpr(e.Operand, fn)
	case *ast.Call:
		walkExpr(e.Fun, fn)
		for _, a := range e.Args {
			walkExpr(a, fn)
		}
	case *ast.Member:
		walkExpr(e.X, fn)
	case *ast.Index:
		walkExpr(e.X, fn)
		walkExpr(e.Index, fn)
	case *ast.Slice:
		walkExpr(e.X, fn)
		walkExpr(e.Low, fn)
		walkExpr(e.High, fn)
	case *ast.Cond:
		walkExpr(e.Cond, fn)
		walkExpr(e.Then, fn)
		walkExpr(e.Else, fn)
	case *ast.Assign:
		walkExpr(e.Target, fn)
		walkExpr(e.Value, fn)
	case *ast.ArrayLit:
		for _, el := range e.Elems {
			walkExpr(el, fn)
		}
	case *ast.ObjectLit:
		for _, f := range e.Fields {
			walkExpr(f.Value, fn)
		}
	case *ast.Comprehension:
		walkExpr(e.Elem, fn)
		walkExpr(e.Iter, fn)
		walkExpr(e.Cond, fn)
	}
}

// walkStmt calls fn for every expression under s.
func walkStmt(s ast.Stmt, fn func(ast.Expr) bool) {
	switch s := s.(type) {
	case *ast.ExprStmt:
		walkExpr(s.X, fn)
	case *ast.VarDecl:
		walkExpr(s.Value, fn)
	case *ast.BlockStmt:
		for _, st := range s.Stmts {
			walkStmt(st, fn)
		}
	case *ast.IfStmt:
		walkExpr(s.Cond, fn)
		walkStmt(s.Then, fn)
		if s.Else != nil {
			walkStmt(s.Else, fn)
		}
	case *ast.WhileStmt:
		walkExpr(s.Cond, fn)
		walkStmt(s.Body, fn)
	case *ast.ForStmt:
		walkExpr(s.Iter, fn)
		walkStmt(s.Body, fn)
	case *ast.ReturnStmt:
		walkExpr(s.Value, fn)
	case *ast.WhenGuard:
		walkExpr(s.Cond, fn)
		walkStmt(s.Body, fn)
	}
}

// usesAwait reports whether any expression under body contains await.
func usesAwait(body *ast.BlockStmt) bool {
	if body == nil {
		return false
	}
	found := false
	walkStmt(body, func(e ast.Expr) bool {
		if _, ok := e.(*ast.Await); ok {
			found = true
		}
		return !found
	})
	return found
}

// strategyUsesAwait reports whether the generated onBar method must be
// async: an await anywhere in the indicator or signal bindings, rule
// guards or actions, or the author's bar handler body.
func strategyUsesAwait(s *ast.StrategyDecl, h *ast.EventHandler) bool {
	found := false
	mark := func(e ast.Expr) bool {
		if _, ok := e.(*ast.Await); ok {
			found = true
		}
		return !found
	}
	for _, b := range s.Indicators {
		walkExpr(b.Value, mark)
	}
	for _, b := range s.Signals {
		walkExpr(b.Value, mark)
	}
	for _, r := range s.Rules {
		walkExpr(r.Cond, mark)
		for _, a := range r.Actions {
			walkExpr(a.Qty, mark)
			walkExpr(a.Price, mark)
			walkExpr(a.Call, mark)
		}
	}
	if h != nil && usesAwait(h.Body) {
		found = true
	}
	return found
}

// strategyReferences collects every identifier name read by the strategy's
// rule guards, actions, signal bindings, and bar handler body. A binding whose
// name never appears here feeds nothing downstream within the strategy.
func strategyReferences(s *ast.StrategyDecl, h *ast.EventHandler) map[string]bool {
	refs := map[string]bool{}
	collect := func(e ast.Expr) bool {
		if id, ok := e.(*ast.Ident); ok {
			refs[id.Name] = true
		}
		return true
	}
	for _, b := range s.Signals {
		walkExpr(b.Value, collect)
	}
	for _, r := range s.Rules {
		walkExpr(r.Cond, collect)
		for _, a := range r.Actions {
			walkExpr(a.Qty, collect)
			walkExpr(a.Price, collect)
			walkExpr(a.Call, collect)
		}
	}
	if h != nil {
		walkStmt(h.Body, collect)
	}
	return refs
}

// programUsesContains reports whether any expression in the program uses a
// membership operator, which requires the __contains helper.
func programUsesContains(prog *ast.Program) bool {
	found := false
	mark := func(e ast.Expr) bool {
		if b, ok := e.(*ast.Binary); ok && (b.Op == ast.In || b.Op == ast.NotIn) {
			found = true
		}
		return !found
	}
	walkProgram(prog, mark)
	return found
}

// programHasOrders reports whether any strategy submits orders through the
// verb form of a trading action.
func programHasOrders(prog *ast.Program) bool {
	for _, s := range prog.Strategies() {
		for _, r := range s.Rules {
			for _, a := range r.Actions {
				if !a.IsCall() {
					return true
				}
			}
		}
	}
	return false
}

// walkProgram visits every expression in every declaration of prog.
func walkProgram(prog *ast.Program, fn func(ast.Expr) bool) {
	for _, d := range prog.Decls {
		switch d := d.(type) {
		case *ast.StrategyDecl:
			for _, p := range d.Params {
				walkExpr(p.Default, fn)
			}
			for _, b := range d.Indicators {
				walkExpr(b.Value, fn)
			}
			for _, b := range d.Signals {
				walkExpr(b.Value, fn)
			}
			for _, b := range d.Risk {
				walkExpr(b.Value, fn)
			}
			for _, r := range d.Rules {
				walkExpr(r.Cond, fn)
				for _, a := range r.Actions {
					walkExpr(a.Qty, fn)
					walkExpr(a.Price, fn)
					walkExpr(a.Call, fn)
				}
			}
			for _, h := range d.Handlers {
				walkStmt(h.Body, fn)
			}
		case *ast.IndicatorDecl:
			walkStmt(d.Body, fn)
		case *ast.EventDecl:
			walkStmt(d.Body, fn)
		case *ast.ObjectDecl:
			for _, e := range d.Entries {
				walkExpr(e.Value, fn)
			}
		}
	}
}
