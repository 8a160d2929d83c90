package parser

import "github.com/stratlang/stratc/lexer"

// The concrete syntax tree keeps one node per grammar rule entered, with
// the significant tokens of each rule preserved so the AST builder can
// copy positions instead of recomputing them. CST nodes are purely
// structural and are discarded after lowering.

// Decl is a top-level declaration rule.
type Decl interface{ declNode() }

// File is the root CST node (rule: program). Declaration order is
// preserved verbatim from source.
type File struct {
	Decls []Decl
}

// ImportDecl is: 'import' STRING ('as' ID)? ';'?
type ImportDecl struct {
	Keyword lexer.Token
	Path    lexer.Token
	Alias   *lexer.Token
}

// StrategyDecl is: 'strategy' ID '{' strategySection* '}'
type StrategyDecl struct {
	Keyword  lexer.Token
	Name     lexer.Token
	Sections []StrategySection
	RBrace   lexer.Token
}

// StrategySection is one of the optional sub-blocks of a strategy.
type StrategySection interface{ sectionNode() }

// ParamsBlock is: 'params' '{' paramDef* '}'
type ParamsBlock struct {
	Keyword lexer.Token
	Params  []*ParamDef
}

// ParamDef is: ID ':' type ('=' expr)? ';'
type ParamDef struct {
	Name    lexer.Token
	Type    TypeExpr
	Default Expr // nil when absent
}

// IndicatorsBlock is: 'indicators' '{' binding* '}'
type IndicatorsBlock struct {
	Keyword  lexer.Token
	Bindings []*Binding
}

// SignalsBlock is: 'signals' '{' binding* '}'
type SignalsBlock struct {
	Keyword  lexer.Token
	Bindings []*Binding
}

// Binding is: ID '=' expr ';'
type Binding struct {
	Name  lexer.Token
	Value Expr
}

// RulesBlock is: 'rules' '{' tradingRule* '}'
type RulesBlock struct {
	Keyword lexer.Token
	Rules   []*TradingRule
}

// TradingRule is: 'when' '(' expr ')' '{' tradingAction* '}'
type TradingRule struct {
	When    lexer.Token
	Cond    Expr
	Actions []*TradingAction
	RBrace  lexer.Token
}

// TradingAction is either an order verb with quantity and optional price,
// or a bare call expression. Verb is nil in the call form.
type TradingAction struct {
	Verb  *lexer.Token
	Qty   Expr // verb form only
	Price Expr // verb form only, nil for market orders
	Call  Expr // call form only
}

// RiskBlock is: 'risk' '{' binding* '}'
type RiskBlock struct {
	Keyword  lexer.Token
	Bindings []*Binding
}

// EventHandler is: 'on' eventName '(' paramList? ')' block
type EventHandler struct {
	On     lexer.Token
	Event  lexer.Token // 'bar' | 'tick' | 'fill' | 'reject' (an IDENT)
	Params []*Param
	Body   *BlockStmt
}

// Param is: ID (':' type)?
type Param struct {
	Name lexer.Token
	Type TypeExpr // nil when unannotated
}

// IndicatorDecl is: 'indicator' ID '(' paramList? ')' (':' type)? block
type IndicatorDecl struct {
	Keyword lexer.Token
	Name    lexer.Token
	Params  []*Param
	Return  TypeExpr // nil when absent
	Body    *BlockStmt
}

// EventDecl is: 'event' ID '(' paramList? ')' block
type EventDecl struct {
	Keyword lexer.Token
	Name    lexer.Token
	Params  []*Param
	Body    *BlockStmt
}

// objectBody is the shared shape of the named-bindings declarations
// (data, order, portfolio, backtest, microstructure).
type objectBody struct {
	Keyword  lexer.Token
	Name     lexer.Token
	Bindings []*Binding
}

// DataDecl is: 'data' ID '{' binding* '}'
type DataDecl struct{ objectBody }

// OrderDecl is: 'order' ID '{' binding* '}'
type OrderDecl struct{ objectBody }

// PortfolioDecl is: 'portfolio' ID '{' binding* '}'
type PortfolioDecl struct{ objectBody }

// BacktestDecl is: 'backtest' ID '{' binding* '}'
type BacktestDecl struct{ objectBody }

// MicrostructureDecl is: 'microstructure' ID '{' binding* '}'
type MicrostructureDecl struct{ objectBody }

// BadDecl marks a top-level region the parser skipped while recovering.
type BadDecl struct {
	From lexer.Token
}

func (*ImportDecl) declNode()         {}
func (*StrategyDecl) declNode()       {}
func (*IndicatorDecl) declNode()      {}
func (*EventDecl) declNode()          {}
func (*DataDecl) declNode()           {}
func (*OrderDecl) declNode()          {}
func (*PortfolioDecl) declNode()      {}
func (*BacktestDecl) declNode()       {}
func (*MicrostructureDecl) declNode() {}
func (*BadDecl) declNode()            {}

func (*ParamsBlock) sectionNode()     {}
func (*IndicatorsBlock) sectionNode() {}
func (*SignalsBlock) sectionNode()    {}
func (*RulesBlock) sectionNode()      {}
func (*RiskBlock) sectionNode()       {}
func (*EventHandler) sectionNode()    {}

// Stmt is a statement rule.
type Stmt interface{ stmtNode() }

// ExprStmt is: expr ';'
type ExprStmt struct {
	X Expr
}

// VarDecl is: ('let'|'var') ID (':' type)? ('=' expr)? ';'
type VarDecl struct {
	Keyword lexer.Token
	Name    lexer.Token
	Type    TypeExpr // nil when unannotated
	Value   Expr     // nil when uninitialized
}

// BlockStmt is: '{' stmt* '}'
type BlockStmt struct {
	LBrace lexer.Token
	Stmts  []Stmt
	RBrace lexer.Token
}

// IfStmt is: 'if' '(' expr ')' stmt ('else' stmt)?
type IfStmt struct {
	Keyword lexer.Token
	Cond    Expr
	Then    Stmt
	Else    Stmt // nil when absent
}

// WhileStmt is: 'while' '(' expr ')' stmt
type WhileStmt struct {
	Keyword lexer.Token
	Cond    Expr
	Body    Stmt
}

// ForStmt is: 'for' '(' ID 'in' expr ')' stmt
type ForStmt struct {
	Keyword lexer.Token
	Var     lexer.Token
	Iter    Expr
	Body    Stmt
}

// ReturnStmt is: 'return' expr? ';'
type ReturnStmt struct {
	Keyword lexer.Token
	Value   Expr // nil for bare return
}

// BreakStmt is: 'break' ';'
type BreakStmt struct {
	Keyword lexer.Token
}

// ContinueStmt is: 'continue' ';'
type ContinueStmt struct {
	Keyword lexer.Token
}

// WhenStmt is the guard statement form: 'when' '(' expr ')' block
type WhenStmt struct {
	Keyword lexer.Token
	Cond    Expr
	Body    *BlockStmt
}

// BadStmt marks a statement region the parser skipped while recovering.
type BadStmt struct {
	From lexer.Token
}

func (*ExprStmt) stmtNode()     {}
func (*VarDecl) stmtNode()      {}
func (*BlockStmt) stmtNode()    {}
func (*IfStmt) stmtNode()       {}
func (*WhileStmt) stmtNode()    {}
func (*ForStmt) stmtNode()      {}
func (*ReturnStmt) stmtNode()   {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*WhenStmt) stmtNode()     {}
func (*BadStmt) stmtNode()      {}

// Expr is an expression rule.
type Expr interface{ exprNode() }

// AssignExpr is: target ('='|'+='|'-='|'*='|'/=') value (right associative)
type AssignExpr struct {
	Target Expr
	Op     lexer.Token
	Value  Expr
}

// CondExpr is the ternary: cond '?' then ':' else
type CondExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

// BinaryExpr covers all binary operator rules. NotIn marks the two-token
// 'not in' operator (Op holds the 'in' token).
type BinaryExpr struct {
	Left  Expr
	Op    lexer.Token
	NotIn bool
	Right Expr
}

// UnaryExpr is a prefix operator: '+' '-' '!' 'not' '~'
type UnaryExpr struct {
	Op      lexer.Token
	Operand Expr
}

// AwaitExpr is: 'await' unary
type AwaitExpr struct {
	Keyword lexer.Token
	Operand Expr
}

// CallExpr is: callee '(' args ')'
type CallExpr struct {
	Fun    Expr
	LParen lexer.Token
	Args   []Expr
	RParen lexer.Token
}

// MemberExpr is: recv '.' ID
type MemberExpr struct {
	Recv Expr
	Name lexer.Token
}

// IndexExpr is: recv '[' expr ']'
type IndexExpr struct {
	Recv     Expr
	LBracket lexer.Token
	Index    Expr
	RBracket lexer.Token
}

// SliceExpr is: recv '[' expr? ':' expr? ']'
type SliceExpr struct {
	Recv     Expr
	LBracket lexer.Token
	Low      Expr // nil when omitted
	High     Expr // nil when omitted
	RBracket lexer.Token
}

// Ident is a name reference.
type Ident struct {
	Tok lexer.Token
}

// Literal is a NUMBER, STRING, DATE, TRUE, FALSE, or NIL token.
type Literal struct {
	Tok lexer.Token
}

// ArrayLit is: '[' (expr (',' expr)*)? ']'
type ArrayLit struct {
	LBracket lexer.Token
	Elems    []Expr
	RBracket lexer.Token
}

// ObjectLit is: '{' (field (',' field)*)? '}' in expression position.
type ObjectLit struct {
	LBrace lexer.Token
	Fields []*ObjectField
	RBrace lexer.Token
}

// ObjectField is: (ID | STRING) ':' expr
type ObjectField struct {
	Key   lexer.Token
	Value Expr
}

// Comprehension is: '[' expr 'for' ID 'in' expr ('if' expr)? ']'
type Comprehension struct {
	LBracket lexer.Token
	Elem     Expr
	Var      lexer.Token
	Iter     Expr
	Cond     Expr // nil when absent
	RBracket lexer.Token
}

// ParenExpr is: '(' expr ')'
type ParenExpr struct {
	LParen lexer.Token
	Inner  Expr
	RParen lexer.Token
}

// BadExpr marks an expression region the parser could not make sense of.
type BadExpr struct {
	From lexer.Token
}

func (*AssignExpr) exprNode()    {}
func (*CondExpr) exprNode()      {}
func (*BinaryExpr) exprNode()    {}
func (*UnaryExpr) exprNode()     {}
func (*AwaitExpr) exprNode()     {}
func (*CallExpr) exprNode()      {}
func (*MemberExpr) exprNode()    {}
func (*IndexExpr) exprNode()     {}
func (*SliceExpr) exprNode()     {}
func (*Ident) exprNode()         {}
func (*Literal) exprNode()       {}
func (*ArrayLit) exprNode()      {}
func (*ObjectLit) exprNode()     {}
func (*ObjectField) exprNode()   {}
func (*Comprehension) exprNode() {}
func (*ParenExpr) exprNode()     {}
func (*BadExpr) exprNode()       {}

// TypeExpr is a type annotation rule.
type TypeExpr interface{ typeNode() }

// NamedType is a primitive or named reference with optional type arguments:
// ID ('<' type (',' type)* '>')?
type NamedType struct {
	Name lexer.Token
	Args []TypeExpr
}

// ArrayType is: elem '[' ']'
type ArrayType struct {
	Elem     TypeExpr
	LBracket lexer.Token
}

// MapType is: 'map' '<' type ',' type '>'
type MapType struct {
	Keyword lexer.Token
	Key     TypeExpr
	Value   TypeExpr
}

// FuncType is: '(' (type (',' type)*)? ')' '->' type
type FuncType struct {
	LParen lexer.Token
	Params []TypeExpr
	Result TypeExpr
}

// UnionType is: type ('|' type)+
type UnionType struct {
	Variants []TypeExpr
}

// OptionalType is: type '?'
type OptionalType struct {
	Inner    TypeExpr
	Question lexer.Token
}

// BadType marks a type annotation the parser skipped while recovering.
type BadType struct {
	From lexer.Token
}

func (*NamedType) typeNode()    {}
func (*ArrayType) typeNode()    {}
func (*MapType) typeNode()      {}
func (*FuncType) typeNode()     {}
func (*UnionType) typeNode()    {}
func (*OptionalType) typeNode() {}
func (*BadType) typeNode()      {}
