package compiler

import (
	"fmt"
	"strings"

	"github.com/stratlang/stratc/ast"
)

// expr renders an expression as JavaScript. Binary and conditional
// subtrees are parenthesized so the emitted text always reproduces the
// parsed tree shape regardless of JavaScript's own precedence table.
func (g *codeGen) expr(e ast.Expr) (string, error) {
	switch e := e.(type) {
	case *ast.Literal:
		return g.literal(e), nil
	case *ast.Ident:
		if mapped, ok := g.scope[e.Name]; ok {
			return mapped, nil
		}
		return e.Name, nil
	case *ast.Binary:
		return g.binary(e)
	case *ast.Unary:
		operand, err := g.expr(e.Operand)
		if err != nil {
			return "", err
		}
		if e.Op == ast.Pos {
			// Unary plus is numeric coercion in JS; preserve it.
			return "(+" + operand + ")", nil
		}
		return "(" + e.Op.String() + operand + ")", nil
	case *ast.Await:
		operand, err := g.expr(e.Operand)
		if err != nil {
			return "", err
		}
		return "(await " + operand + ")", nil
	case *ast.Call:
		return g.call(e)
	case *ast.Member:
		x, err := g.expr(e.X)
		if err != nil {
			return "", err
		}
		return x + "." + e.Name, nil
	case *ast.Index:
		x, err := g.expr(e.X)
		if err != nil {
			return "", err
		}
		idx, err := g.expr(e.Index)
		if err != nil {
			return "", err
		}
		return x + "[" + idx + "]", nil
	case *ast.Slice:
		return g.slice(e)
	case *ast.Cond:
		cond, err := g.expr(e.Cond)
		if err != nil {
			return "", err
		}
		then, err := g.expr(e.Then)
		if err != nil {
			return "", err
		}
		els, err := g.expr(e.Else)
		if err != nil {
			return "", err
		}
		return "(" + cond + " ? " + then + " : " + els + ")", nil
	case *ast.Assign:
		target, err := g.expr(e.Target)
		if err != nil {
			return "", err
		}
		value, err := g.expr(e.Value)
		if err != nil {
			return "", err
		}
		return "(" + target + " " + e.Op.String() + " " + value + ")", nil
	case *ast.ArrayLit:
		parts := make([]string, len(e.Elems))
		for i, el := range e.Elems {
			s, err := g.expr(el)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case *ast.ObjectLit:
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			v, err := g.expr(f.Value)
			if err != nil {
				return "", err
			}
			parts[i] = jsString(f.Key) + ": " + v
		}
		return "{ " + strings.Join(parts, ", ") + " }", nil
	case *ast.Comprehension:
		return g.comprehension(e)
	default:
		return "", fmt.Errorf("code generation: unknown expression %T", e)
	}
}

func (g *codeGen) literal(e *ast.Literal) string {
	switch e.Kind {
	case ast.NumberLit:
		return e.Value
	case ast.StringLit:
		return jsString(e.Value)
	case ast.DateLit:
		return "new Date(" + jsString(e.Value) + ")"
	case ast.BoolLit:
		if e.Bool {
			return "true"
		}
		return "false"
	case ast.NilLit:
		return "null"
	}
	return "null"
}

var binaryJS = map[ast.BinaryOp]string{
	ast.Add:        "+",
	ast.Sub:        "-",
	ast.Mul:        "*",
	ast.Div:        "/",
	ast.Rem:        "%",
	ast.Pow:        "**",
	ast.Eq:         "===",
	ast.NotEq:      "!==",
	ast.Less:       "<",
	ast.LessEq:     "<=",
	ast.Greater:    ">",
	ast.GreaterEq:  ">=",
	ast.LogicalAnd: "&&",
	ast.LogicalOr:  "||",
}

func (g *codeGen) binary(e *ast.Binary) (string, error) {
	left, err := g.expr(e.Left)
	if err != nil {
		return "", err
	}
	right, err := g.expr(e.Right)
	if err != nil {
		return "", err
	}
	switch e.Op {
	case ast.In:
		return "__contains(" + right + ", " + left + ")", nil
	case ast.NotIn:
		return "!__contains(" + right + ", " + left + ")", nil
	}
	op, ok := binaryJS[e.Op]
	if !ok {
		return "", fmt.Errorf("code generation: unknown binary operator %v", e.Op)
	}
	return "(" + left + " " + op + " " + right + ")", nil
}

func (g *codeGen) call(e *ast.Call) (string, error) {
	fun, err := g.expr(e.Fun)
	if err != nil {
		return "", err
	}
	// Runtime collaborator entry points resolve through this.rt inside a
	// strategy class.
	if g.strict {
		if id, ok := e.Fun.(*ast.Ident); ok && runtimeAPI[id.Name] {
			if _, shadowed := g.scope[id.Name]; !shadowed {
				fun = "this.rt." + id.Name
			}
		}
	}
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		s, err := g.expr(a)
		if err != nil {
			return "", err
		}
		args[i] = s
	}
	return fun + "(" + strings.Join(args, ", ") + ")", nil
}

func (g *codeGen) slice(e *ast.Slice) (string, error) {
	x, err := g.expr(e.X)
	if err != nil {
		return "", err
	}
	low := "0"
	if e.Low != nil {
		low, err = g.expr(e.Low)
		if err != nil {
			return "", err
		}
	}
	if e.High == nil {
		return x + ".slice(" + low + ")", nil
	}
	high, err := g.expr(e.High)
	if err != nil {
		return "", err
	}
	return x + ".slice(" + low + ", " + high + ")", nil
}

func (g *codeGen) comprehension(e *ast.Comprehension) (string, error) {
	iter, err := g.expr(e.Iter)
	if err != nil {
		return "", err
	}
	// The loop variable shadows any outer mapping while rendering the
	// element and condition.
	saved, had := g.scope[e.Var]
	g.scope[e.Var] = e.Var
	defer func() {
		if had {
			g.scope[e.Var] = saved
		} else {
			delete(g.scope, e.Var)
		}
	}()

	out := "Array.from(" + iter + ")"
	if e.Cond != nil {
		cond, err := g.expr(e.Cond)
		if err != nil {
			return "", err
		}
		out += ".filter((" + e.Var + ") => " + cond + ")"
	}
	elem, err := g.expr(e.Elem)
	if err != nil {
		return "", err
	}
	return out + ".map((" + e.Var + ") => " + elem + ")", nil
}

// --- statements ------------------------------------------------------------

func (g *codeGen) stmts(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := g.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *codeGen) stmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.ExprStmt:
		x, err := g.expr(s.X)
		if err != nil {
			return err
		}
		g.mark(s.Span)
		g.w.Linef("%s;", x)
		return nil
	case *ast.VarDecl:
		kw := "let"
		if !s.Mutable && s.Value != nil {
			kw = "const"
		}
		g.scope[s.Name] = s.Name
		g.mark(s.Span)
		if s.Value == nil {
			g.w.Linef("%s %s;", kw, s.Name)
			return nil
		}
		v, err := g.expr(s.Value)
		if err != nil {
			return err
		}
		g.w.Linef("%s %s = %s;", kw, s.Name, v)
		return nil
	case *ast.BlockStmt:
		g.w.Linef("{")
		g.w.Indent()
		if err := g.stmts(s.Stmts); err != nil {
			return err
		}
		g.w.Dedent()
		g.w.Linef("}")
		return nil
	case *ast.IfStmt:
		cond, err := g.expr(s.Cond)
		if err != nil {
			return err
		}
		g.mark(s.Span)
		g.w.Linef("if (%s) {", cond)
		g.w.Indent()
		if err := g.bodyStmt(s.Then); err != nil {
			return err
		}
		g.w.Dedent()
		if s.Else == nil {
			g.w.Linef("}")
			return nil
		}
		g.w.Linef("} else {")
		g.w.Indent()
		if err := g.bodyStmt(s.Else); err != nil {
			return err
		}
		g.w.Dedent()
		g.w.Linef("}")
		return nil
	case *ast.WhileStmt:
		cond, err := g.expr(s.Cond)
		if err != nil {
			return err
		}
		g.mark(s.Span)
		g.w.Linef("while (%s) {", cond)
		g.w.Indent()
		if err := g.bodyStmt(s.Body); err != nil {
			return err
		}
		g.w.Dedent()
		g.w.Linef("}")
		return nil
	case *ast.ForStmt:
		iter, err := g.expr(s.Iter)
		if err != nil {
			return err
		}
		g.scope[s.Var] = s.Var
		g.mark(s.Span)
		g.w.Linef("for (const %s of %s) {", s.Var, iter)
		g.w.Indent()
		if err := g.bodyStmt(s.Body); err != nil {
			return err
		}
		g.w.Dedent()
		g.w.Linef("}")
		return nil
	case *ast.ReturnStmt:
		g.mark(s.Span)
		if s.Value == nil {
			g.w.Linef("return;")
			return nil
		}
		v, err := g.expr(s.Value)
		if err != nil {
			return err
		}
		g.w.Linef("return %s;", v)
		return nil
	case *ast.BreakStmt:
		g.mark(s.Span)
		g.w.Linef("break;")
		return nil
	case *ast.ContinueStmt:
		g.mark(s.Span)
		g.w.Linef("continue;")
		return nil
	case *ast.WhenGuard:
		cond, err := g.expr(s.Cond)
		if err != nil {
			return err
		}
		g.mark(s.Span)
		g.w.Linef("if (%s) {", cond)
		g.w.Indent()
		if err := g.stmts(s.Body.Stmts); err != nil {
			return err
		}
		g.w.Dedent()
		g.w.Linef("}")
		return nil
	default:
		return fmt.Errorf("code generation: unknown statement %T", s)
	}
}

// bodyStmt emits the body of a control statement. Blocks are flattened so
// `if (c) { ... }` does not double-brace.
func (g *codeGen) bodyStmt(s ast.Stmt) error {
	if b, ok := s.(*ast.BlockStmt); ok {
		return g.stmts(b.Stmts)
	}
	return g.stmt(s)
}

// jsString renders s as a double-quoted JavaScript string literal.
func jsString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if ch < 0x20 {
				fmt.Fprintf(&sb, `\x%02x`, ch)
			} else {
				sb.WriteByte(ch)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
