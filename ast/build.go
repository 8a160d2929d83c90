package ast

import (
	"github.com/stratlang/stratc/diag"
	"github.com/stratlang/stratc/lexer"
	"github.com/stratlang/stratc/parser"
)

// Build lowers a CST into the typed AST. The transform is pure and
// deterministic: each CST rule maps to exactly one AST constructor and all
// positions are copied from the underlying tokens, never recomputed. Build
// returns an error only when the CST shape violates the grammar's
// invariants (Bad placeholders, missing required children), which means a
// pipeline defect upstream, not a user input error. Callers must only
// invoke Build on a CST produced without parse errors.
func Build(file *parser.File, name string) (*Program, error) {
	b := &builder{file: name}
	prog := &Program{}
	for _, d := range file.Decls {
		switch cst := d.(type) {
		case *parser.ImportDecl:
			imp, err := b.importDecl(cst)
			if err != nil {
				return nil, err
			}
			prog.Imports = append(prog.Imports, imp)
		case *parser.StrategyDecl:
			s, err := b.strategy(cst)
			if err != nil {
				return nil, err
			}
			prog.Decls = append(prog.Decls, s)
		case *parser.IndicatorDecl:
			ind, err := b.indicatorDecl(cst)
			if err != nil {
				return nil, err
			}
			prog.Decls = append(prog.Decls, ind)
		case *parser.EventDecl:
			ev, err := b.eventDecl(cst)
			if err != nil {
				return nil, err
			}
			prog.Decls = append(prog.Decls, ev)
		case *parser.DataDecl:
			obj, err := b.objectDecl(DataObject, cst.Keyword, cst.Name, cst.Bindings)
			if err != nil {
				return nil, err
			}
			prog.Decls = append(prog.Decls, obj)
		case *parser.OrderDecl:
			obj, err := b.objectDecl(OrderObject, cst.Keyword, cst.Name, cst.Bindings)
			if err != nil {
				return nil, err
			}
			prog.Decls = append(prog.Decls, obj)
		case *parser.PortfolioDecl:
			obj, err := b.objectDecl(PortfolioObject, cst.Keyword, cst.Name, cst.Bindings)
			if err != nil {
				return nil, err
			}
			prog.Decls = append(prog.Decls, obj)
		case *parser.BacktestDecl:
			obj, err := b.objectDecl(BacktestObject, cst.Keyword, cst.Name, cst.Bindings)
			if err != nil {
				return nil, err
			}
			prog.Decls = append(prog.Decls, obj)
		case *parser.MicrostructureDecl:
			obj, err := b.objectDecl(MicrostructureObject, cst.Keyword, cst.Name, cst.Bindings)
			if err != nil {
				return nil, err
			}
			prog.Decls = append(prog.Decls, obj)
		case *parser.BadDecl:
			return nil, diag.Internalf("ast builder", "BadDecl survived into lowering at %d:%d", cst.From.Line, cst.From.Column)
		default:
			return nil, diag.Internalf("ast builder", "unknown declaration node %T", d)
		}
	}
	if len(prog.Imports) > 0 {
		prog.Span = prog.Imports[0].Span
	} else if len(prog.Decls) > 0 {
		prog.Span = prog.Decls[0].Pos()
	} else {
		prog.Span = Span{File: name, Line: 1, Column: 1, EndLine: 1, EndColumn: 1}
	}
	for _, d := range prog.Decls {
		prog.Span = prog.Span.Join(d.Pos())
	}
	return prog, nil
}

type builder struct {
	file string
}

// tok converts a token to a span. Tokens never cross lines, so the end
// line equals the start line.
func (b *builder) tok(t lexer.Token) Span {
	return Span{
		File:      b.file,
		Line:      t.Line,
		Column:    t.Column,
		EndLine:   t.Line,
		EndColumn: t.Column + (t.End - t.Offset),
		Offset:    t.Offset,
		End:       t.End,
	}
}

func (b *builder) importDecl(cst *parser.ImportDecl) (*ImportDecl, error) {
	d := &ImportDecl{Path: cst.Path.Lit}
	d.Span = b.tok(cst.Keyword).Join(b.tok(cst.Path))
	if cst.Alias != nil {
		d.Alias = cst.Alias.Lit
		d.Span = d.Span.Join(b.tok(*cst.Alias))
	}
	return d, nil
}

func (b *builder) strategy(cst *parser.StrategyDecl) (*StrategyDecl, error) {
	s := &StrategyDecl{Name: cst.Name.Lit}
	s.Span = b.tok(cst.Keyword).Join(b.tok(cst.RBrace))
	for _, sec := range cst.Sections {
		switch sec := sec.(type) {
		case *parser.ParamsBlock:
			for _, pd := range sec.Params {
				p, err := b.paramDef(pd)
				if err != nil {
					return nil, err
				}
				s.Params = append(s.Params, p)
			}
		case *parser.IndicatorsBlock:
			bs, err := b.bindings(sec.Bindings)
			if err != nil {
				return nil, err
			}
			s.Indicators = append(s.Indicators, bs...)
		case *parser.SignalsBlock:
			bs, err := b.bindings(sec.Bindings)
			if err != nil {
				return nil, err
			}
			s.Signals = append(s.Signals, bs...)
		case *parser.RulesBlock:
			s.HasRules = true
			for _, r := range sec.Rules {
				rule, err := b.tradingRule(r)
				if err != nil {
					return nil, err
				}
				s.Rules = append(s.Rules, rule)
			}
		case *parser.RiskBlock:
			s.HasRisk = true
			bs, err := b.bindings(sec.Bindings)
			if err != nil {
				return nil, err
			}
			s.Risk = append(s.Risk, bs...)
		case *parser.EventHandler:
			h, err := b.eventHandler(sec)
			if err != nil {
				return nil, err
			}
			s.Handlers = append(s.Handlers, h)
		default:
			return nil, diag.Internalf("ast builder", "unknown strategy section %T", sec)
		}
	}
	return s, nil
}

func (b *builder) paramDef(cst *parser.ParamDef) (*ParamDef, error) {
	if cst.Type == nil {
		return nil, diag.Internalf("ast builder", "parameter %q has no type node", cst.Name.Lit)
	}
	typ, err := b.typeNode(cst.Type)
	if err != nil {
		return nil, err
	}
	p := &ParamDef{Name: cst.Name.Lit, Type: typ}
	p.Span = b.tok(cst.Name).Join(typ.Pos())
	if cst.Default != nil {
		def, err := b.expr(cst.Default)
		if err != nil {
			return nil, err
		}
		p.Default = def
		p.Span = p.Span.Join(def.Pos())
	}
	return p, nil
}

func (b *builder) bindings(cst []*parser.Binding) ([]*Binding, error) {
	var out []*Binding
	for _, bind := range cst {
		value, err := b.expr(bind.Value)
		if err != nil {
			return nil, err
		}
		n := &Binding{Name: bind.Name.Lit, Value: value}
		n.Span = b.tok(bind.Name).Join(value.Pos())
		out = append(out, n)
	}
	return out, nil
}

func (b *builder) tradingRule(cst *parser.TradingRule) (*TradingRule, error) {
	cond, err := b.expr(cst.Cond)
	if err != nil {
		return nil, err
	}
	r := &TradingRule{Cond: cond}
	r.Span = b.tok(cst.When).Join(b.tok(cst.RBrace))
	for _, a := range cst.Actions {
		action, err := b.tradingAction(a)
		if err != nil {
			return nil, err
		}
		r.Actions = append(r.Actions, action)
	}
	return r, nil
}

func (b *builder) tradingAction(cst *parser.TradingAction) (*TradingAction, error) {
	if cst.Verb == nil {
		call, err := b.expr(cst.Call)
		if err != nil {
			return nil, err
		}
		a := &TradingAction{Call: call}
		a.Span = call.Pos()
		return a, nil
	}
	var verb OrderVerb
	switch cst.Verb.Type {
	case lexer.BUY:
		verb = Buy
	case lexer.SELL:
		verb = Sell
	case lexer.SHORT:
		verb = Short
	case lexer.COVER:
		verb = Cover
	default:
		return nil, diag.Internalf("ast builder", "invalid order verb token %s", cst.Verb.Type)
	}
	if cst.Qty == nil {
		return nil, diag.Internalf("ast builder", "%s action has no quantity", verb)
	}
	qty, err := b.expr(cst.Qty)
	if err != nil {
		return nil, err
	}
	a := &TradingAction{Verb: verb, Qty: qty}
	a.Span = b.tok(*cst.Verb).Join(qty.Pos())
	if cst.Price != nil {
		price, err := b.expr(cst.Price)
		if err != nil {
			return nil, err
		}
		a.Price = price
		a.Span = a.Span.Join(price.Pos())
	}
	return a, nil
}

func (b *builder) eventHandler(cst *parser.EventHandler) (*EventHandler, error) {
	var kind HandlerKind
	switch cst.Event.Lit {
	case "bar":
		kind = OnBar
	case "tick":
		kind = OnTick
	case "fill":
		kind = OnFill
	case "reject":
		kind = OnReject
	default:
		return nil, diag.Internalf("ast builder", "unknown event name %q survived parsing", cst.Event.Lit)
	}
	params, err := b.params(cst.Params)
	if err != nil {
		return nil, err
	}
	body, err := b.block(cst.Body)
	if err != nil {
		return nil, err
	}
	h := &EventHandler{Kind: kind, Params: params, Body: body}
	h.Span = b.tok(cst.On).Join(body.Pos())
	return h, nil
}

func (b *builder) indicatorDecl(cst *parser.IndicatorDecl) (*IndicatorDecl, error) {
	params, err := b.params(cst.Params)
	if err != nil {
		return nil, err
	}
	body, err := b.block(cst.Body)
	if err != nil {
		return nil, err
	}
	d := &IndicatorDecl{Name: cst.Name.Lit, Params: params, Body: body}
	d.Span = b.tok(cst.Keyword).Join(body.Pos())
	if cst.Return != nil {
		ret, err := b.typeNode(cst.Return)
		if err != nil {
			return nil, err
		}
		d.Return = ret
	}
	return d, nil
}

func (b *builder) eventDecl(cst *parser.EventDecl) (*EventDecl, error) {
	params, err := b.params(cst.Params)
	if err != nil {
		return nil, err
	}
	body, err := b.block(cst.Body)
	if err != nil {
		return nil, err
	}
	d := &EventDecl{Name: cst.Name.Lit, Params: params, Body: body}
	d.Span = b.tok(cst.Keyword).Join(body.Pos())
	return d, nil
}

func (b *builder) objectDecl(kind ObjectKind, keyword, name lexer.Token, bindings []*parser.Binding) (*ObjectDecl, error) {
	entries, err := b.bindings(bindings)
	if err != nil {
		return nil, err
	}
	d := &ObjectDecl{Kind: kind, Name: name.Lit, Entries: entries}
	d.Span = b.tok(keyword).Join(b.tok(name))
	for _, e := range entries {
		d.Span = d.Span.Join(e.Span)
	}
	return d, nil
}

func (b *builder) params(cst []*parser.Param) ([]*Param, error) {
	var out []*Param
	for _, p := range cst {
		n := &Param{Name: p.Name.Lit}
		n.Span = b.tok(p.Name)
		if p.Type != nil {
			typ, err := b.typeNode(p.Type)
			if err != nil {
				return nil, err
			}
			n.Type = typ
			n.Span = n.Span.Join(typ.Pos())
		}
		out = append(out, n)
	}
	return out, nil
}

// --- statements ----------------------------------------------------------

func (b *builder) block(cst *parser.BlockStmt) (*BlockStmt, error) {
	if cst == nil {
		return nil, diag.Internalf("ast builder", "missing block")
	}
	out := &BlockStmt{}
	out.Span = b.tok(cst.LBrace).Join(b.tok(cst.RBrace))
	for _, s := range cst.Stmts {
		stmt, err := b.stmt(s)
		if err != nil {
			return nil, err
		}
		out.Stmts = append(out.Stmts, stmt)
	}
	return out, nil
}

func (b *builder) stmt(cst parser.Stmt) (Stmt, error) {
	switch cst := cst.(type) {
	case *parser.ExprStmt:
		x, err := b.expr(cst.X)
		if err != nil {
			return nil, err
		}
		s := &ExprStmt{X: x}
		s.Span = x.Pos()
		return s, nil
	case *parser.VarDecl:
		s := &VarDecl{Mutable: cst.Keyword.Type == lexer.VAR, Name: cst.Name.Lit}
		s.Span = b.tok(cst.Keyword).Join(b.tok(cst.Name))
		if cst.Type != nil {
			typ, err := b.typeNode(cst.Type)
			if err != nil {
				return nil, err
			}
			s.Type = typ
			s.Span = s.Span.Join(typ.Pos())
		}
		if cst.Value != nil {
			v, err := b.expr(cst.Value)
			if err != nil {
				return nil, err
			}
			s.Value = v
			s.Span = s.Span.Join(v.Pos())
		}
		return s, nil
	case *parser.BlockStmt:
		return b.block(cst)
	case *parser.IfStmt:
		cond, err := b.expr(cst.Cond)
		if err != nil {
			return nil, err
		}
		then, err := b.stmt(cst.Then)
		if err != nil {
			return nil, err
		}
		s := &IfStmt{Cond: cond, Then: then}
		s.Span = b.tok(cst.Keyword).Join(then.Pos())
		if cst.Else != nil {
			els, err := b.stmt(cst.Else)
			if err != nil {
				return nil, err
			}
			s.Else = els
			s.Span = s.Span.Join(els.Pos())
		}
		return s, nil
	case *parser.WhileStmt:
		cond, err := b.expr(cst.Cond)
		if err != nil {
			return nil, err
		}
		body, err := b.stmt(cst.Body)
		if err != nil {
			return nil, err
		}
		s := &WhileStmt{Cond: cond, Body: body}
		s.Span = b.tok(cst.Keyword).Join(body.Pos())
		return s, nil
	case *parser.ForStmt:
		iter, err := b.expr(cst.Iter)
		if err != nil {
			return nil, err
		}
		body, err := b.stmt(cst.Body)
		if err != nil {
			return nil, err
		}
		s := &ForStmt{Var: cst.Var.Lit, Iter: iter, Body: body}
		s.Span = b.tok(cst.Keyword).Join(body.Pos())
		return s, nil
	case *parser.ReturnStmt:
		s := &ReturnStmt{}
		s.Span = b.tok(cst.Keyword)
		if cst.Value != nil {
			v, err := b.expr(cst.Value)
			if err != nil {
				return nil, err
			}
			s.Value = v
			s.Span = s.Span.Join(v.Pos())
		}
		return s, nil
	case *parser.BreakStmt:
		s := &BreakStmt{}
		s.Span = b.tok(cst.Keyword)
		return s, nil
	case *parser.ContinueStmt:
		s := &ContinueStmt{}
		s.Span = b.tok(cst.Keyword)
		return s, nil
	case *parser.WhenStmt:
		cond, err := b.expr(cst.Cond)
		if err != nil {
			return nil, err
		}
		body, err := b.block(cst.Body)
		if err != nil {
			return nil, err
		}
		s := &WhenGuard{Cond: cond, Body: body}
		s.Span = b.tok(cst.Keyword).Join(body.Pos())
		return s, nil
	case *parser.BadStmt:
		return nil, diag.Internalf("ast builder", "BadStmt survived into lowering at %d:%d", cst.From.Line, cst.From.Column)
	default:
		return nil, diag.Internalf("ast builder", "unknown statement node %T", cst)
	}
}

// --- expressions -----------------------------------------------------------

var binaryOps = map[lexer.TokenType]BinaryOp{
	lexer.PLUS:    Add,
	lexer.MINUS:   Sub,
	lexer.STAR:    Mul,
	lexer.SLASH:   Div,
	lexer.PERCENT: Rem,
	lexer.POW:     Pow,
	lexer.EQ:      Eq,
	lexer.NEQ:     NotEq,
	lexer.LT:      Less,
	lexer.LTE:     LessEq,
	lexer.GT:      Greater,
	lexer.GTE:     GreaterEq,
	lexer.ANDAND:  LogicalAnd,
	lexer.AND:     LogicalAnd,
	lexer.OROR:    LogicalOr,
	lexer.OR:      LogicalOr,
	lexer.IN:      In,
}

var assignOps = map[lexer.TokenType]AssignOp{
	lexer.ASSIGN:       Set,
	lexer.PLUS_ASSIGN:  AddSet,
	lexer.MINUS_ASSIGN: SubSet,
	lexer.STAR_ASSIGN:  MulSet,
	lexer.SLASH_ASSIGN: DivSet,
}

func (b *builder) expr(cst parser.Expr) (Expr, error) {
	switch cst := cst.(type) {
	case *parser.Literal:
		return b.literal(cst)
	case *parser.Ident:
		e := &Ident{Name: cst.Tok.Lit}
		e.Span = b.tok(cst.Tok)
		return e, nil
	case *parser.BinaryExpr:
		left, err := b.expr(cst.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.expr(cst.Right)
		if err != nil {
			return nil, err
		}
		op, ok := binaryOps[cst.Op.Type]
		if !ok {
			return nil, diag.Internalf("ast builder", "unknown binary operator %s", cst.Op.Type)
		}
		if cst.NotIn {
			op = NotIn
		}
		e := &Binary{Op: op, Left: left, Right: right}
		e.Span = left.Pos().Join(right.Pos())
		return e, nil
	case *parser.UnaryExpr:
		operand, err := b.expr(cst.Operand)
		if err != nil {
			return nil, err
		}
		var op UnaryOp
		switch cst.Op.Type {
		case lexer.PLUS:
			op = Pos
		case lexer.MINUS:
			op = Neg
		case lexer.BANG, lexer.NOT:
			op = LogicalNot
		case lexer.TILDE:
			op = BitNot
		default:
			return nil, diag.Internalf("ast builder", "unknown unary operator %s", cst.Op.Type)
		}
		e := &Unary{Op: op, Operand: operand}
		e.Span = b.tok(cst.Op).Join(operand.Pos())
		return e, nil
	case *parser.AwaitExpr:
		operand, err := b.expr(cst.Operand)
		if err != nil {
			return nil, err
		}
		e := &Await{Operand: operand}
		e.Span = b.tok(cst.Keyword).Join(operand.Pos())
		return e, nil
	case *parser.CallExpr:
		fun, err := b.expr(cst.Fun)
		if err != nil {
			return nil, err
		}
		e := &Call{Fun: fun}
		for _, a := range cst.Args {
			arg, err := b.expr(a)
			if err != nil {
				return nil, err
			}
			e.Args = append(e.Args, arg)
		}
		e.Span = fun.Pos().Join(b.tok(cst.RParen))
		return e, nil
	case *parser.MemberExpr:
		recv, err := b.expr(cst.Recv)
		if err != nil {
			return nil, err
		}
		e := &Member{X: recv, Name: cst.Name.Lit}
		e.Span = recv.Pos().Join(b.tok(cst.Name))
		return e, nil
	case *parser.IndexExpr:
		recv, err := b.expr(cst.Recv)
		if err != nil {
			return nil, err
		}
		idx, err := b.expr(cst.Index)
		if err != nil {
			return nil, err
		}
		e := &Index{X: recv, Index: idx}
		e.Span = recv.Pos().Join(b.tok(cst.RBracket))
		return e, nil
	case *parser.SliceExpr:
		recv, err := b.expr(cst.Recv)
		if err != nil {
			return nil, err
		}
		e := &Slice{X: recv}
		if cst.Low != nil {
			low, err := b.expr(cst.Low)
			if err != nil {
				return nil, err
			}
			e.Low = low
		}
		if cst.High != nil {
			high, err := b.expr(cst.High)
			if err != nil {
				return nil, err
			}
			e.High = high
		}
		e.Span = recv.Pos().Join(b.tok(cst.RBracket))
		return e, nil
	case *parser.CondExpr:
		cond, err := b.expr(cst.Cond)
		if err != nil {
			return nil, err
		}
		then, err := b.expr(cst.Then)
		if err != nil {
			return nil, err
		}
		els, err := b.expr(cst.Else)
		if err != nil {
			return nil, err
		}
		e := &Cond{Cond: cond, Then: then, Else: els}
		e.Span = cond.Pos().Join(els.Pos())
		return e, nil
	case *parser.AssignExpr:
		target, err := b.expr(cst.Target)
		if err != nil {
			return nil, err
		}
		value, err := b.expr(cst.Value)
		if err != nil {
			return nil, err
		}
		op, ok := assignOps[cst.Op.Type]
		if !ok {
			return nil, diag.Internalf("ast builder", "unknown assignment operator %s", cst.Op.Type)
		}
		e := &Assign{Op: op, Target: target, Value: value}
		e.Span = target.Pos().Join(value.Pos())
		return e, nil
	case *parser.ArrayLit:
		e := &ArrayLit{}
		e.Span = b.tok(cst.LBracket).Join(b.tok(cst.RBracket))
		for _, el := range cst.Elems {
			elem, err := b.expr(el)
			if err != nil {
				return nil, err
			}
			e.Elems = append(e.Elems, elem)
		}
		return e, nil
	case *parser.ObjectLit:
		e := &ObjectLit{}
		e.Span = b.tok(cst.LBrace).Join(b.tok(cst.RBrace))
		for _, f := range cst.Fields {
			value, err := b.expr(f.Value)
			if err != nil {
				return nil, err
			}
			field := &Field{Key: f.Key.Lit, Value: value}
			field.Span = b.tok(f.Key).Join(value.Pos())
			e.Fields = append(e.Fields, field)
		}
		return e, nil
	case *parser.Comprehension:
		elem, err := b.expr(cst.Elem)
		if err != nil {
			return nil, err
		}
		iter, err := b.expr(cst.Iter)
		if err != nil {
			return nil, err
		}
		e := &Comprehension{Elem: elem, Var: cst.Var.Lit, Iter: iter}
		if cst.Cond != nil {
			cond, err := b.expr(cst.Cond)
			if err != nil {
				return nil, err
			}
			e.Cond = cond
		}
		e.Span = b.tok(cst.LBracket).Join(b.tok(cst.RBracket))
		return e, nil
	case *parser.ParenExpr:
		// Parentheses are grouping only; the inner node keeps its span.
		return b.expr(cst.Inner)
	case *parser.BadExpr:
		return nil, diag.Internalf("ast builder", "BadExpr survived into lowering at %d:%d", cst.From.Line, cst.From.Column)
	default:
		return nil, diag.Internalf("ast builder", "unknown expression node %T", cst)
	}
}

func (b *builder) literal(cst *parser.Literal) (*Literal, error) {
	e := &Literal{Value: cst.Tok.Lit}
	e.Span = b.tok(cst.Tok)
	switch cst.Tok.Type {
	case lexer.NUMBER:
		e.Kind = NumberLit
	case lexer.STRING:
		e.Kind = StringLit
	case lexer.DATE:
		e.Kind = DateLit
	case lexer.TRUE:
		e.Kind = BoolLit
		e.Bool = true
	case lexer.FALSE:
		e.Kind = BoolLit
	case lexer.NIL:
		e.Kind = NilLit
	default:
		return nil, diag.Internalf("ast builder", "unknown literal token %s", cst.Tok.Type)
	}
	return e, nil
}

// --- types ---------------------------------------------------------------

func (b *builder) typeNode(cst parser.TypeExpr) (TypeNode, error) {
	switch cst := cst.(type) {
	case *parser.NamedType:
		if len(cst.Args) == 0 {
			t := &PrimitiveType{Name: cst.Name.Lit}
			t.Span = b.tok(cst.Name)
			return t, nil
		}
		t := &NamedType{Name: cst.Name.Lit}
		t.Span = b.tok(cst.Name)
		for _, a := range cst.Args {
			arg, err := b.typeNode(a)
			if err != nil {
				return nil, err
			}
			t.Args = append(t.Args, arg)
			t.Span = t.Span.Join(arg.Pos())
		}
		return t, nil
	case *parser.ArrayType:
		elem, err := b.typeNode(cst.Elem)
		if err != nil {
			return nil, err
		}
		t := &ArrayType{Elem: elem}
		t.Span = elem.Pos().Join(b.tok(cst.LBracket))
		return t, nil
	case *parser.MapType:
		key, err := b.typeNode(cst.Key)
		if err != nil {
			return nil, err
		}
		value, err := b.typeNode(cst.Value)
		if err != nil {
			return nil, err
		}
		t := &MapType{Key: key, Value: value}
		t.Span = b.tok(cst.Keyword).Join(value.Pos())
		return t, nil
	case *parser.FuncType:
		t := &FuncType{}
		t.Span = b.tok(cst.LParen)
		for _, p := range cst.Params {
			param, err := b.typeNode(p)
			if err != nil {
				return nil, err
			}
			t.Params = append(t.Params, param)
		}
		result, err := b.typeNode(cst.Result)
		if err != nil {
			return nil, err
		}
		t.Result = result
		t.Span = t.Span.Join(result.Pos())
		return t, nil
	case *parser.UnionType:
		t := &UnionType{}
		for _, v := range cst.Variants {
			variant, err := b.typeNode(v)
			if err != nil {
				return nil, err
			}
			t.Variants = append(t.Variants, variant)
			if len(t.Variants) == 1 {
				t.Span = variant.Pos()
			} else {
				t.Span = t.Span.Join(variant.Pos())
			}
		}
		return t, nil
	case *parser.OptionalType:
		inner, err := b.typeNode(cst.Inner)
		if err != nil {
			return nil, err
		}
		t := &OptionalType{Inner: inner}
		t.Span = inner.Pos().Join(b.tok(cst.Question))
		return t, nil
	case *parser.BadType:
		return nil, diag.Internalf("ast builder", "BadType survived into lowering at %d:%d", cst.From.Line, cst.From.Column)
	default:
		return nil, diag.Internalf("ast builder", "unknown type node %T", cst)
	}
}
