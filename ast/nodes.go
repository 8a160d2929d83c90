// Package ast defines the typed abstract syntax tree consumed by code
// generation and editor tooling, and the deterministic CST-to-AST builder.
// Every node carries a source span copied from the underlying tokens. The
// tree is immutable once built.
package ast

import "fmt"

// Span is a source region. Line and Column are 1-based; Offset/End are
// byte offsets into the source with End exclusive.
type Span struct {
	File      string
	Line      int
	Column    int
	EndLine   int
	EndColumn int
	Offset    int
	End       int
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// Join returns the smallest span covering both s and other.
func (s Span) Join(other Span) Span {
	out := s
	if other.Offset < out.Offset {
		out.Offset = other.Offset
		out.Line = other.Line
		out.Column = other.Column
	}
	if other.End > out.End {
		out.End = other.End
		out.EndLine = other.EndLine
		out.EndColumn = other.EndColumn
	}
	if out.File == "" {
		out.File = other.File
	}
	return out
}

// Node is the interface for all AST nodes.
type Node interface {
	Pos() Span
}

// Base carries the source span common to all nodes.
type Base struct {
	Span Span
}

func (b Base) Pos() Span { return b.Span }

// Decl is a top-level declaration.
type Decl interface {
	Node
	decl()
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmt()
}

// TypeNode is a type annotation node.
type TypeNode interface {
	Node
	typ()
}

// Program is the root node. Decls preserves the source order of all
// non-import declarations verbatim; Imports preserves import order.
type Program struct {
	Base
	Imports []*ImportDecl
	Decls   []Decl
}

// Strategies returns the strategy declarations in source order.
func (p *Program) Strategies() []*StrategyDecl {
	var out []*StrategyDecl
	for _, d := range p.Decls {
		if s, ok := d.(*StrategyDecl); ok {
			out = append(out, s)
		}
	}
	return out
}

// ImportDecl is a module import with an optional alias.
type ImportDecl struct {
	Base
	Path  string
	Alias string // "" when unaliased
}

// ParamDef is one strategy parameter: name, type, optional default.
type ParamDef struct {
	Base
	Name    string
	Type    TypeNode
	Default Expr // nil when absent
}

// Binding is one named entry of an indicators, signals, risk, or
// object-declaration block.
type Binding struct {
	Base
	Name  string
	Value Expr
}

// TradingRule is one guarded action group of a rules block.
type TradingRule struct {
	Base
	Cond    Expr
	Actions []*TradingAction
}

// OrderVerb is the order-submission entry point an action invokes.
type OrderVerb int

const (
	Buy OrderVerb = iota
	Sell
	Short
	Cover
)

func (v OrderVerb) String() string {
	switch v {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	case Short:
		return "short"
	case Cover:
		return "cover"
	}
	return "order"
}

// TradingAction is one action of a trading rule: either an order verb with
// quantity and optional price, or a plain call. Call is nil in the verb
// form; Qty/Price are nil in the call form. A nil Price means market order.
type TradingAction struct {
	Base
	Verb  OrderVerb
	Qty   Expr
	Price Expr
	Call  Expr
}

// IsCall reports whether the action is the plain-call form.
func (a *TradingAction) IsCall() bool { return a.Call != nil }

// HandlerKind names the lifecycle callback an event handler maps to.
type HandlerKind int

const (
	OnBar HandlerKind = iota
	OnTick
	OnFill
	OnReject
)

func (k HandlerKind) String() string {
	switch k {
	case OnBar:
		return "bar"
	case OnTick:
		return "tick"
	case OnFill:
		return "fill"
	case OnReject:
		return "reject"
	}
	return "event"
}

// Param is one parameter of a handler, indicator, or event declaration.
type Param struct {
	Base
	Name string
	Type TypeNode // nil when unannotated
}

// EventHandler is one lifecycle handler of a strategy.
type EventHandler struct {
	Base
	Kind   HandlerKind
	Params []*Param
	Body   *BlockStmt
}

// StrategyDecl is a named strategy: parameters, indicators, signals,
// trading rules, risk limits, and event handlers. Each slice preserves
// source order; strategies without a section have an empty slice for it.
type StrategyDecl struct {
	Base
	Name       string
	Params     []*ParamDef
	Indicators []*Binding
	Signals    []*Binding
	Rules      []*TradingRule
	Risk       []*Binding
	Handlers   []*EventHandler
	HasRules   bool // a rules block was written, even if empty
	HasRisk    bool // a risk block was written, even if empty
}

// IndicatorDecl is a user-defined indicator function.
type IndicatorDecl struct {
	Base
	Name   string
	Params []*Param
	Return TypeNode // nil when absent
	Body   *BlockStmt
}

// EventDecl is a user-defined event with a handler body.
type EventDecl struct {
	Base
	Name   string
	Params []*Param
	Body   *BlockStmt
}

// ObjectKind discriminates the named-bindings declarations.
type ObjectKind int

const (
	DataObject ObjectKind = iota
	OrderObject
	PortfolioObject
	BacktestObject
	MicrostructureObject
)

func (k ObjectKind) String() string {
	switch k {
	case DataObject:
		return "data"
	case OrderObject:
		return "order"
	case PortfolioObject:
		return "portfolio"
	case BacktestObject:
		return "backtest"
	case MicrostructureObject:
		return "microstructure"
	}
	return "object"
}

// ObjectDecl is a data, order, portfolio, backtest, or microstructure
// declaration: a named set of bindings handed to the runtime.
type ObjectDecl struct {
	Base
	Kind    ObjectKind
	Name    string
	Entries []*Binding
}

func (*StrategyDecl) decl()  {}
func (*IndicatorDecl) decl() {}
func (*EventDecl) decl()     {}
func (*ObjectDecl) decl()    {}

// --- expressions -----------------------------------------------------------

// LitKind discriminates literal values.
type LitKind int

const (
	NumberLit LitKind = iota
	StringLit
	DateLit
	BoolLit
	NilLit
)

// Literal is a literal value. Value holds the source text for numbers and
// dates and the unescaped text for strings; Bool is set for BoolLit.
type Literal struct {
	Base
	Kind  LitKind
	Value string
	Bool  bool
}

// Ident is a name reference.
type Ident struct {
	Base
	Name string
}

// BinaryOp is a binary operator.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Rem
	Pow
	Eq
	NotEq
	Less
	LessEq
	Greater
	GreaterEq
	LogicalAnd
	LogicalOr
	In
	NotIn
)

func (op BinaryOp) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Rem:
		return "%"
	case Pow:
		return "**"
	case Eq:
		return "=="
	case NotEq:
		return "!="
	case Less:
		return "<"
	case LessEq:
		return "<="
	case Greater:
		return ">"
	case GreaterEq:
		return ">="
	case LogicalAnd:
		return "and"
	case LogicalOr:
		return "or"
	case In:
		return "in"
	case NotIn:
		return "not in"
	}
	return "?"
}

// Binary is a binary operation.
type Binary struct {
	Base
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// UnaryOp is a prefix operator.
type UnaryOp int

const (
	Pos UnaryOp = iota
	Neg
	LogicalNot
	BitNot
)

func (op UnaryOp) String() string {
	switch op {
	case Pos:
		return "+"
	case Neg:
		return "-"
	case LogicalNot:
		return "!"
	case BitNot:
		return "~"
	}
	return "?"
}

// Unary is a prefix operation.
type Unary struct {
	Base
	Op      UnaryOp
	Operand Expr
}

// Await is an await expression.
type Await struct {
	Base
	Operand Expr
}

// Call is a function or method invocation.
type Call struct {
	Base
	Fun  Expr
	Args []Expr
}

// Member is property access: X.Name.
type Member struct {
	Base
	X    Expr
	Name string
}

// Index is subscripting: X[Index].
type Index struct {
	Base
	X     Expr
	Index Expr
}

// Slice is range subscripting: X[Low:High]; either bound may be nil.
type Slice struct {
	Base
	X    Expr
	Low  Expr
	High Expr
}

// Cond is the ternary conditional.
type Cond struct {
	Base
	Cond Expr
	Then Expr
	Else Expr
}

// AssignOp is an assignment operator.
type AssignOp int

const (
	Set AssignOp = iota
	AddSet
	SubSet
	MulSet
	DivSet
)

func (op AssignOp) String() string {
	switch op {
	case Set:
		return "="
	case AddSet:
		return "+="
	case SubSet:
		return "-="
	case MulSet:
		return "*="
	case DivSet:
		return "/="
	}
	return "="
}

// Assign is an assignment expression.
type Assign struct {
	Base
	Op     AssignOp
	Target Expr
	Value  Expr
}

// ArrayLit is an array literal.
type ArrayLit struct {
	Base
	Elems []Expr
}

// Field is one key/value pair of an object literal.
type Field struct {
	Base
	Key   string
	Value Expr
}

// ObjectLit is an object literal.
type ObjectLit struct {
	Base
	Fields []*Field
}

// Comprehension is an array comprehension: [Elem for Var in Iter if Cond].
type Comprehension struct {
	Base
	Elem Expr
	Var  string
	Iter Expr
	Cond Expr // nil when absent
}

func (*Literal) expr()       {}
func (*Ident) expr()         {}
func (*Binary) expr()        {}
func (*Unary) expr()         {}
func (*Await) expr()         {}
func (*Call) expr()          {}
func (*Member) expr()        {}
func (*Index) expr()         {}
func (*Slice) expr()         {}
func (*Cond) expr()          {}
func (*Assign) expr()        {}
func (*ArrayLit) expr()      {}
func (*ObjectLit) expr()     {}
func (*Comprehension) expr() {}

// --- statements --------------------------------------------------------

// ExprStmt is an expression evaluated for effect.
type ExprStmt struct {
	Base
	X Expr
}

// VarDecl is a local variable declaration. Mutable distinguishes 'var'
// from 'let'.
type VarDecl struct {
	Base
	Mutable bool
	Name    string
	Type    TypeNode // nil when unannotated
	Value   Expr     // nil when uninitialized
}

// BlockStmt is a braced statement list.
type BlockStmt struct {
	Base
	Stmts []Stmt
}

// IfStmt is a conditional statement.
type IfStmt struct {
	Base
	Cond Expr
	Then Stmt
	Else Stmt // nil when absent
}

// WhileStmt is a while loop.
type WhileStmt struct {
	Base
	Cond Expr
	Body Stmt
}

// ForStmt is iteration over a collection.
type ForStmt struct {
	Base
	Var  string
	Iter Expr
	Body Stmt
}

// ReturnStmt returns from the enclosing function.
type ReturnStmt struct {
	Base
	Value Expr // nil for bare return
}

// BreakStmt exits the enclosing loop.
type BreakStmt struct{ Base }

// ContinueStmt resumes the enclosing loop.
type ContinueStmt struct{ Base }

// WhenGuard is the guard statement form of 'when'.
type WhenGuard struct {
	Base
	Cond Expr
	Body *BlockStmt
}

func (*ExprStmt) stmt()     {}
func (*VarDecl) stmt()      {}
func (*BlockStmt) stmt()    {}
func (*IfStmt) stmt()       {}
func (*WhileStmt) stmt()    {}
func (*ForStmt) stmt()      {}
func (*ReturnStmt) stmt()   {}
func (*BreakStmt) stmt()    {}
func (*ContinueStmt) stmt() {}
func (*WhenGuard) stmt()    {}

// --- types ---------------------------------------------------------------

// PrimitiveType is a primitive or bare named type reference.
type PrimitiveType struct {
	Base
	Name string
}

// NamedType is a named reference with type arguments.
type NamedType struct {
	Base
	Name string
	Args []TypeNode
}

// ArrayType is an element-type array.
type ArrayType struct {
	Base
	Elem TypeNode
}

// MapType is a key/value map.
type MapType struct {
	Base
	Key   TypeNode
	Value TypeNode
}

// FuncType is a function type.
type FuncType struct {
	Base
	Params []TypeNode
	Result TypeNode
}

// UnionType is an alternative of types.
type UnionType struct {
	Base
	Variants []TypeNode
}

// OptionalType marks a type as optional.
type OptionalType struct {
	Base
	Inner TypeNode
}

func (*PrimitiveType) typ() {}
func (*NamedType) typ()     {}
func (*ArrayType) typ()     {}
func (*MapType) typ()       {}
func (*FuncType) typ()      {}
func (*UnionType) typ()     {}
func (*OptionalType) typ()  {}
