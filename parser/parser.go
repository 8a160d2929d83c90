// Package parser consumes the token stream and produces a strongly typed
// concrete syntax tree, one node per grammar rule. Parsing is recursive
// descent with a fixed-lookahead precedence ladder for expressions. On a
// token mismatch the parser records a positioned diagnostic with its
// expected-token context and enters recovery, skipping to the next
// statement or declaration boundary so a single pass can surface every
// independent mistake in the source.
package parser

import (
	"github.com/stratlang/stratc/diag"
	"github.com/stratlang/stratc/lexer"
)

// maxExprDepth bounds expression nesting so adversarial input cannot blow
// the stack through the mutually recursive rule functions.
const maxExprDepth = 200

// state tracks error recovery: a mismatch moves the parser to recovering,
// reaching a synchronization token moves it back to normal. While
// recovering, follow-on mismatches are suppressed as cascade noise.
type state int

const (
	normal state = iota
	recovering
)

// Parser holds the token cursor for one parse. It carries no state between
// calls; construct one per source unit.
type Parser struct {
	tokens []lexer.Token
	pos    int
	bag    *diag.Bag
	state  state
	depth  int
}

// Parse consumes tokens (as produced by lexer.Tokenize, EOF-terminated)
// and returns the CST root. Errors are collected in bag; the returned tree
// is always non-nil and contains Bad* placeholders for skipped regions.
func Parse(tokens []lexer.Token, bag *diag.Bag) *File {
	p := &Parser{tokens: tokens, bag: bag}
	return p.parseFile()
}

// ParseExpr parses a single expression from tokens. Used by tests and by
// editor tooling that checks expression fragments.
func ParseExpr(tokens []lexer.Token, bag *diag.Bag) Expr {
	p := &Parser{tokens: tokens, bag: bag}
	return p.parseExpr()
}

func (p *Parser) cur() lexer.Token { return p.tokens[p.pos] }

func (p *Parser) peek(ahead int) lexer.Token {
	if p.pos+ahead >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos+ahead]
}

func (p *Parser) at(tt lexer.TokenType) bool { return p.cur().Type == tt }

func (p *Parser) next() lexer.Token {
	tok := p.cur()
	if tok.Type != lexer.EOF {
		p.pos++
	}
	return tok
}

// accept consumes the current token when it matches.
func (p *Parser) accept(tt lexer.TokenType) (lexer.Token, bool) {
	if p.at(tt) {
		return p.next(), true
	}
	return p.cur(), false
}

// expect consumes a token of type tt or reports a mismatch. The returned
// bool is false when the token was missing; the cursor does not advance in
// that case.
func (p *Parser) expect(tt lexer.TokenType, context string) (lexer.Token, bool) {
	if p.at(tt) {
		return p.next(), true
	}
	p.err(tt.String(), "unexpected %s in %s", describe(p.cur()), context)
	return p.cur(), false
}

// isSoftKeyword reports whether tt is a soft keyword: a declaration keyword
// the grammar needs only at the start of a top-level declaration. Everywhere
// else these words are ordinary identifiers: `order` is both a declaration
// keyword and the natural name for a fill handler's parameter.
func isSoftKeyword(tt lexer.TokenType) bool {
	switch tt {
	case lexer.DATA, lexer.ORDER, lexer.EVENT, lexer.PORTFOLIO,
		lexer.BACKTEST, lexer.MICROSTRUCTURE:
		return true
	}
	return false
}

// expectIdent consumes an identifier, accepting soft declaration keywords
// and retyping them to IDENT so downstream consumers see one token kind.
func (p *Parser) expectIdent(context string) (lexer.Token, bool) {
	if p.at(lexer.IDENT) {
		return p.next(), true
	}
	if isSoftKeyword(p.cur().Type) {
		tok := p.next()
		tok.Type = lexer.IDENT
		return tok, true
	}
	p.err(lexer.IDENT.String(), "unexpected %s in %s", describe(p.cur()), context)
	return p.cur(), false
}

// err records a parse error unless the parser is already recovering.
func (p *Parser) err(expected, format string, args ...interface{}) {
	if p.state == recovering {
		return
	}
	tok := p.cur()
	p.bag.AddParse(tok.Line, tok.Column, expected, format, args...)
	p.state = recovering
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.EOF:
		return "end of input"
	case lexer.IDENT, lexer.NUMBER, lexer.STRING, lexer.DATE, lexer.ILLEGAL:
		return "'" + tok.Lit + "'"
	default:
		return "'" + tok.Type.String() + "'"
	}
}

// --- synchronization -------------------------------------------------------

func isDeclStart(tt lexer.TokenType) bool {
	switch tt {
	case lexer.IMPORT, lexer.STRATEGY, lexer.INDICATOR, lexer.DATA, lexer.ORDER,
		lexer.EVENT, lexer.PORTFOLIO, lexer.BACKTEST, lexer.MICROSTRUCTURE:
		return true
	}
	return false
}

func isStmtStart(tt lexer.TokenType) bool {
	switch tt {
	case lexer.LET, lexer.VAR, lexer.IF, lexer.WHILE, lexer.FOR, lexer.RETURN,
		lexer.BREAK, lexer.CONTINUE, lexer.WHEN:
		return true
	}
	return false
}

// syncDecl skips to the next top-level declaration keyword or EOF.
func (p *Parser) syncDecl() {
	for !p.at(lexer.EOF) && !isDeclStart(p.cur().Type) {
		p.next()
	}
	p.state = normal
}

// syncStmt skips to the next statement boundary: past a semicolon, or up to
// (not past) a closing brace or a statement keyword.
func (p *Parser) syncStmt() {
	for !p.at(lexer.EOF) {
		switch p.cur().Type {
		case lexer.SEMICOLON:
			p.next()
			p.state = normal
			return
		case lexer.RBRACE:
			p.state = normal
			return
		default:
			if isStmtStart(p.cur().Type) {
				p.state = normal
				return
			}
			p.next()
		}
	}
	p.state = normal
}

// recoverStmt is syncStmt with a progress guarantee: when the sync point is
// the very token that caused the failure (e.g. a misplaced statement
// keyword), it is consumed so the enclosing loop cannot spin.
func (p *Parser) recoverStmt(startPos int) {
	p.syncStmt()
	if p.pos == startPos && !p.at(lexer.EOF) && !p.at(lexer.RBRACE) {
		p.next()
	}
}

// syncSection skips to the next strategy section keyword or the closing
// brace of the strategy.
func (p *Parser) syncSection() {
	for !p.at(lexer.EOF) && !p.at(lexer.RBRACE) {
		switch p.cur().Type {
		case lexer.PARAMS, lexer.INDICATORS, lexer.SIGNALS, lexer.RULES,
			lexer.RISK, lexer.ON:
			p.state = normal
			return
		}
		p.next()
	}
	p.state = normal
}

// --- declarations ----------------------------------------------------------

func (p *Parser) parseFile() *File {
	f := &File{}
	for !p.at(lexer.EOF) {
		// A declaration keyword is a synchronization point: errors in the
		// next declaration are independent of whatever came before.
		if isDeclStart(p.cur().Type) {
			p.state = normal
		}
		switch p.cur().Type {
		case lexer.IMPORT:
			f.Decls = append(f.Decls, p.parseImport())
		case lexer.STRATEGY:
			f.Decls = append(f.Decls, p.parseStrategy())
		case lexer.INDICATOR:
			f.Decls = append(f.Decls, p.parseIndicatorDecl())
		case lexer.EVENT:
			f.Decls = append(f.Decls, p.parseEventDecl())
		case lexer.DATA:
			d := &DataDecl{}
			d.objectBody = p.parseObjectBody("data declaration")
			f.Decls = append(f.Decls, d)
		case lexer.ORDER:
			d := &OrderDecl{}
			d.objectBody = p.parseObjectBody("order declaration")
			f.Decls = append(f.Decls, d)
		case lexer.PORTFOLIO:
			d := &PortfolioDecl{}
			d.objectBody = p.parseObjectBody("portfolio declaration")
			f.Decls = append(f.Decls, d)
		case lexer.BACKTEST:
			d := &BacktestDecl{}
			d.objectBody = p.parseObjectBody("backtest declaration")
			f.Decls = append(f.Decls, d)
		case lexer.MICROSTRUCTURE:
			d := &MicrostructureDecl{}
			d.objectBody = p.parseObjectBody("microstructure declaration")
			f.Decls = append(f.Decls, d)
		default:
			from := p.cur()
			p.err("declaration", "unexpected %s at top level", describe(from))
			p.next()
			p.syncDecl()
			f.Decls = append(f.Decls, &BadDecl{From: from})
		}
	}
	return f
}

func (p *Parser) parseImport() *ImportDecl {
	d := &ImportDecl{}
	d.Keyword = p.next()
	path, ok := p.expect(lexer.STRING, "import declaration")
	if !ok {
		p.syncDecl()
		return d
	}
	d.Path = path
	if _, ok := p.accept(lexer.AS); ok {
		alias, ok := p.expectIdent("import alias")
		if ok {
			d.Alias = &alias
		}
	}
	p.accept(lexer.SEMICOLON)
	return d
}

func (p *Parser) parseStrategy() *StrategyDecl {
	d := &StrategyDecl{}
	d.Keyword = p.next()
	name, ok := p.expect(lexer.IDENT, "strategy declaration")
	if !ok {
		p.syncDecl()
		return d
	}
	d.Name = name
	if _, ok := p.expect(lexer.LBRACE, "strategy body"); !ok {
		p.syncDecl()
		return d
	}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		switch p.cur().Type {
		case lexer.PARAMS, lexer.INDICATORS, lexer.SIGNALS, lexer.RULES,
			lexer.RISK, lexer.ON:
			p.state = normal
		}
		switch p.cur().Type {
		case lexer.PARAMS:
			d.Sections = append(d.Sections, p.parseParamsBlock())
		case lexer.INDICATORS:
			d.Sections = append(d.Sections, p.parseIndicatorsBlock())
		case lexer.SIGNALS:
			d.Sections = append(d.Sections, p.parseSignalsBlock())
		case lexer.RULES:
			d.Sections = append(d.Sections, p.parseRulesBlock())
		case lexer.RISK:
			d.Sections = append(d.Sections, p.parseRiskBlock())
		case lexer.ON:
			d.Sections = append(d.Sections, p.parseEventHandler())
		default:
			p.err("strategy section", "unexpected %s in strategy body", describe(p.cur()))
			p.syncSection()
		}
	}
	d.RBrace, _ = p.expect(lexer.RBRACE, "strategy body")
	return d
}

func (p *Parser) parseParamsBlock() *ParamsBlock {
	b := &ParamsBlock{Keyword: p.next()}
	if _, ok := p.expect(lexer.LBRACE, "params block"); !ok {
		p.syncSection()
		return b
	}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		start := p.pos
		pd := p.parseParamDef()
		if pd == nil {
			p.recoverStmt(start)
			continue
		}
		b.Params = append(b.Params, pd)
	}
	p.expect(lexer.RBRACE, "params block")
	return b
}

func (p *Parser) parseParamDef() *ParamDef {
	name, ok := p.expectIdent("parameter definition")
	if !ok {
		return nil
	}
	pd := &ParamDef{Name: name}
	if _, ok := p.expect(lexer.COLON, "parameter definition"); !ok {
		return pd
	}
	pd.Type = p.parseType()
	if _, ok := p.accept(lexer.ASSIGN); ok {
		pd.Default = p.parseExpr()
	}
	p.expect(lexer.SEMICOLON, "parameter definition")
	return pd
}

func (p *Parser) parseIndicatorsBlock() *IndicatorsBlock {
	b := &IndicatorsBlock{Keyword: p.next()}
	b.Bindings = p.parseBindingBlock("indicators block")
	return b
}

func (p *Parser) parseSignalsBlock() *SignalsBlock {
	b := &SignalsBlock{Keyword: p.next()}
	b.Bindings = p.parseBindingBlock("signals block")
	return b
}

func (p *Parser) parseRiskBlock() *RiskBlock {
	b := &RiskBlock{Keyword: p.next()}
	b.Bindings = p.parseBindingBlock("risk block")
	return b
}

// parseBindingBlock parses '{' (ID '=' expr ';')* '}'. The keyword has
// already been consumed.
func (p *Parser) parseBindingBlock(context string) []*Binding {
	var bindings []*Binding
	if _, ok := p.expect(lexer.LBRACE, context); !ok {
		p.syncSection()
		return bindings
	}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		start := p.pos
		b := p.parseBinding(context)
		if b == nil {
			p.recoverStmt(start)
			continue
		}
		bindings = append(bindings, b)
	}
	p.expect(lexer.RBRACE, context)
	return bindings
}

func (p *Parser) parseBinding(context string) *Binding {
	name, ok := p.expectIdent(context)
	if !ok {
		return nil
	}
	if _, ok := p.expect(lexer.ASSIGN, context); !ok {
		return nil
	}
	b := &Binding{Name: name, Value: p.parseExpr()}
	p.expect(lexer.SEMICOLON, context)
	return b
}

func (p *Parser) parseRulesBlock() *RulesBlock {
	b := &RulesBlock{Keyword: p.next()}
	if _, ok := p.expect(lexer.LBRACE, "rules block"); !ok {
		p.syncSection()
		return b
	}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		if !p.at(lexer.WHEN) {
			p.err("'when'", "unexpected %s in rules block", describe(p.cur()))
			p.next()
			p.syncStmt()
			continue
		}
		b.Rules = append(b.Rules, p.parseTradingRule())
	}
	p.expect(lexer.RBRACE, "rules block")
	return b
}

func (p *Parser) parseTradingRule() *TradingRule {
	r := &TradingRule{When: p.next()}
	if _, ok := p.expect(lexer.LPAREN, "trading rule"); !ok {
		p.syncStmt()
		return r
	}
	r.Cond = p.parseExpr()
	p.expect(lexer.RPAREN, "trading rule condition")
	if _, ok := p.expect(lexer.LBRACE, "trading rule"); !ok {
		p.syncStmt()
		return r
	}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		start := p.pos
		a := p.parseTradingAction()
		if a == nil {
			p.recoverStmt(start)
			continue
		}
		r.Actions = append(r.Actions, a)
	}
	r.RBrace, _ = p.expect(lexer.RBRACE, "trading rule")
	return r
}

func (p *Parser) parseTradingAction() *TradingAction {
	if p.cur().IsOrderVerb() {
		verb := p.next()
		a := &TradingAction{Verb: &verb}
		if _, ok := p.expect(lexer.LPAREN, "order action"); !ok {
			return nil
		}
		a.Qty = p.parseExpr()
		if _, ok := p.accept(lexer.COMMA); ok {
			a.Price = p.parseExpr()
		}
		if p.at(lexer.COMMA) {
			p.err("')'", "too many arguments to %s: quantity and optional price", verb.Lit)
			return nil
		}
		if _, ok := p.expect(lexer.RPAREN, "order action"); !ok {
			return nil
		}
		p.expect(lexer.SEMICOLON, "order action")
		return a
	}

	call := p.parsePostfix()
	if _, ok := call.(*CallExpr); !ok {
		p.err("order verb or call", "trading actions must be buy/sell/short/cover or a call")
		return nil
	}
	p.expect(lexer.SEMICOLON, "trading action")
	return &TradingAction{Call: call}
}

func (p *Parser) parseEventHandler() *EventHandler {
	h := &EventHandler{On: p.next()}
	name, ok := p.expect(lexer.IDENT, "event handler")
	if !ok {
		p.syncSection()
		return h
	}
	switch name.Lit {
	case "bar", "tick", "fill", "reject":
	default:
		p.state = normal // the token itself was well-placed, keep parsing
		p.bag.AddParse(name.Line, name.Column, "'bar', 'tick', 'fill' or 'reject'",
			"unknown event name %q", name.Lit)
	}
	h.Event = name
	if _, ok := p.expect(lexer.LPAREN, "event handler"); !ok {
		p.syncSection()
		return h
	}
	h.Params = p.parseParamList()
	p.expect(lexer.RPAREN, "event handler")
	h.Body = p.parseBlock()
	return h
}

func (p *Parser) parseIndicatorDecl() *IndicatorDecl {
	d := &IndicatorDecl{Keyword: p.next()}
	name, ok := p.expect(lexer.IDENT, "indicator declaration")
	if !ok {
		p.syncDecl()
		return d
	}
	d.Name = name
	if _, ok := p.expect(lexer.LPAREN, "indicator declaration"); !ok {
		p.syncDecl()
		return d
	}
	d.Params = p.parseParamList()
	p.expect(lexer.RPAREN, "indicator declaration")
	if _, ok := p.accept(lexer.COLON); ok {
		d.Return = p.parseType()
	}
	d.Body = p.parseBlock()
	return d
}

func (p *Parser) parseEventDecl() *EventDecl {
	d := &EventDecl{Keyword: p.next()}
	name, ok := p.expect(lexer.IDENT, "event declaration")
	if !ok {
		p.syncDecl()
		return d
	}
	d.Name = name
	if _, ok := p.expect(lexer.LPAREN, "event declaration"); !ok {
		p.syncDecl()
		return d
	}
	d.Params = p.parseParamList()
	p.expect(lexer.RPAREN, "event declaration")
	d.Body = p.parseBlock()
	return d
}

func (p *Parser) parseObjectBody(context string) objectBody {
	b := objectBody{Keyword: p.next()}
	name, ok := p.expect(lexer.IDENT, context)
	if !ok {
		p.syncDecl()
		return b
	}
	b.Name = name
	b.Bindings = p.parseBindingBlock(context)
	return b
}

// parseParamList parses param (',' param)* and stops before ')'.
func (p *Parser) parseParamList() []*Param {
	var params []*Param
	if p.at(lexer.RPAREN) {
		return params
	}
	for {
		name, ok := p.expectIdent("parameter list")
		if !ok {
			return params
		}
		param := &Param{Name: name}
		if _, ok := p.accept(lexer.COLON); ok {
			param.Type = p.parseType()
		}
		params = append(params, param)
		if _, ok := p.accept(lexer.COMMA); !ok {
			return params
		}
	}
}

// --- statements ------------------------------------------------------------

func (p *Parser) parseBlock() *BlockStmt {
	b := &BlockStmt{}
	lbrace, ok := p.expect(lexer.LBRACE, "block")
	if !ok {
		p.syncStmt()
		return b
	}
	b.LBrace = lbrace
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		b.Stmts = append(b.Stmts, p.parseStmt())
	}
	b.RBrace, _ = p.expect(lexer.RBRACE, "block")
	return b
}

func (p *Parser) parseStmt() Stmt {
	switch p.cur().Type {
	case lexer.LET, lexer.VAR:
		return p.parseVarDecl()
	case lexer.LBRACE:
		// A brace in statement position always opens a block; object
		// literals occur only in expression position.
		return p.parseBlock()
	case lexer.IF:
		return p.parseIf()
	case lexer.WHILE:
		return p.parseWhile()
	case lexer.FOR:
		return p.parseFor()
	case lexer.WHEN:
		return p.parseWhenStmt()
	case lexer.RETURN:
		s := &ReturnStmt{Keyword: p.next()}
		if !p.at(lexer.SEMICOLON) && !p.at(lexer.RBRACE) {
			s.Value = p.parseExpr()
		}
		p.expect(lexer.SEMICOLON, "return statement")
		return s
	case lexer.BREAK:
		s := &BreakStmt{Keyword: p.next()}
		p.expect(lexer.SEMICOLON, "break statement")
		return s
	case lexer.CONTINUE:
		s := &ContinueStmt{Keyword: p.next()}
		p.expect(lexer.SEMICOLON, "continue statement")
		return s
	case lexer.SEMICOLON:
		// Stray semicolon: tolerate as an empty expression statement.
		from := p.next()
		return &BadStmt{From: from}
	}

	from := p.cur()
	x := p.parseExpr()
	if _, bad := x.(*BadExpr); bad {
		p.syncStmt()
		return &BadStmt{From: from}
	}
	if _, ok := p.expect(lexer.SEMICOLON, "expression statement"); !ok {
		p.syncStmt()
	}
	return &ExprStmt{X: x}
}

func (p *Parser) parseVarDecl() Stmt {
	d := &VarDecl{Keyword: p.next()}
	name, ok := p.expectIdent("variable declaration")
	if !ok {
		p.syncStmt()
		return &BadStmt{From: d.Keyword}
	}
	d.Name = name
	if _, ok := p.accept(lexer.COLON); ok {
		d.Type = p.parseType()
	}
	if _, ok := p.accept(lexer.ASSIGN); ok {
		d.Value = p.parseExpr()
	}
	if _, ok := p.expect(lexer.SEMICOLON, "variable declaration"); !ok {
		p.syncStmt()
	}
	return d
}

func (p *Parser) parseIf() Stmt {
	s := &IfStmt{Keyword: p.next()}
	if _, ok := p.expect(lexer.LPAREN, "if statement"); !ok {
		p.syncStmt()
		return &BadStmt{From: s.Keyword}
	}
	s.Cond = p.parseExpr()
	p.expect(lexer.RPAREN, "if condition")
	s.Then = p.parseStmt()
	if _, ok := p.accept(lexer.ELSE); ok {
		s.Else = p.parseStmt()
	}
	return s
}

func (p *Parser) parseWhile() Stmt {
	s := &WhileStmt{Keyword: p.next()}
	if _, ok := p.expect(lexer.LPAREN, "while statement"); !ok {
		p.syncStmt()
		return &BadStmt{From: s.Keyword}
	}
	s.Cond = p.parseExpr()
	p.expect(lexer.RPAREN, "while condition")
	s.Body = p.parseStmt()
	return s
}

func (p *Parser) parseFor() Stmt {
	s := &ForStmt{Keyword: p.next()}
	if _, ok := p.expect(lexer.LPAREN, "for statement"); !ok {
		p.syncStmt()
		return &BadStmt{From: s.Keyword}
	}
	name, ok := p.expectIdent("for statement")
	if !ok {
		p.syncStmt()
		return &BadStmt{From: s.Keyword}
	}
	s.Var = name
	if _, ok := p.expect(lexer.IN, "for statement"); !ok {
		p.syncStmt()
		return &BadStmt{From: s.Keyword}
	}
	s.Iter = p.parseExpr()
	p.expect(lexer.RPAREN, "for clause")
	s.Body = p.parseStmt()
	return s
}

func (p *Parser) parseWhenStmt() Stmt {
	s := &WhenStmt{Keyword: p.next()}
	if _, ok := p.expect(lexer.LPAREN, "when guard"); !ok {
		p.syncStmt()
		return &BadStmt{From: s.Keyword}
	}
	s.Cond = p.parseExpr()
	p.expect(lexer.RPAREN, "when condition")
	s.Body = p.parseBlock()
	return s
}

// --- expressions -----------------------------------------------------------

// parseExpr is the assignment level, the entry point of the precedence
// ladder. Assignment is right associative and requires an assignable
// target (identifier, member, or index).
func (p *Parser) parseExpr() Expr {
	if p.depth >= maxExprDepth {
		p.err("shallower expression", "expression nesting exceeds %d levels", maxExprDepth)
		return &BadExpr{From: p.cur()}
	}
	p.depth++
	defer func() { p.depth-- }()

	left := p.parseTernary()
	switch p.cur().Type {
	case lexer.ASSIGN, lexer.PLUS_ASSIGN, lexer.MINUS_ASSIGN,
		lexer.STAR_ASSIGN, lexer.SLASH_ASSIGN:
		op := p.next()
		if !assignable(left) {
			p.bag.AddParse(op.Line, op.Column, "assignable expression",
				"left side of %s is not assignable", op.Lit)
			p.state = recovering
		}
		return &AssignExpr{Target: left, Op: op, Value: p.parseExpr()}
	}
	return left
}

func assignable(e Expr) bool {
	switch e.(type) {
	case *Ident, *MemberExpr, *IndexExpr:
		return true
	}
	return false
}

func (p *Parser) parseTernary() Expr {
	cond := p.parseLogicalOr()
	if _, ok := p.accept(lexer.QUESTION); !ok {
		return cond
	}
	then := p.parseExpr()
	p.expect(lexer.COLON, "conditional expression")
	return &CondExpr{Cond: cond, Then: then, Else: p.parseTernary()}
}

func (p *Parser) parseLogicalOr() Expr {
	left := p.parseLogicalAnd()
	for p.at(lexer.OROR) || p.at(lexer.OR) {
		op := p.next()
		left = &BinaryExpr{Left: left, Op: op, Right: p.parseLogicalAnd()}
	}
	return left
}

func (p *Parser) parseLogicalAnd() Expr {
	left := p.parseMembership()
	for p.at(lexer.ANDAND) || p.at(lexer.AND) {
		op := p.next()
		left = &BinaryExpr{Left: left, Op: op, Right: p.parseMembership()}
	}
	return left
}

// parseMembership handles 'in' and the two-token 'not in'.
func (p *Parser) parseMembership() Expr {
	left := p.parseEquality()
	for {
		if p.at(lexer.IN) {
			op := p.next()
			left = &BinaryExpr{Left: left, Op: op, Right: p.parseEquality()}
			continue
		}
		if p.at(lexer.NOT) && p.peek(1).Type == lexer.IN {
			p.next()
			op := p.next()
			left = &BinaryExpr{Left: left, Op: op, NotIn: true, Right: p.parseEquality()}
			continue
		}
		return left
	}
}

func (p *Parser) parseEquality() Expr {
	left := p.parseRelational()
	for p.at(lexer.EQ) || p.at(lexer.NEQ) {
		op := p.next()
		left = &BinaryExpr{Left: left, Op: op, Right: p.parseRelational()}
	}
	return left
}

func (p *Parser) parseRelational() Expr {
	left := p.parseAdditive()
	for p.at(lexer.LT) || p.at(lexer.LTE) || p.at(lexer.GT) || p.at(lexer.GTE) {
		op := p.next()
		left = &BinaryExpr{Left: left, Op: op, Right: p.parseAdditive()}
	}
	return left
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for p.at(lexer.PLUS) || p.at(lexer.MINUS) {
		op := p.next()
		left = &BinaryExpr{Left: left, Op: op, Right: p.parseMultiplicative()}
	}
	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for p.at(lexer.STAR) || p.at(lexer.SLASH) || p.at(lexer.PERCENT) {
		op := p.next()
		left = &BinaryExpr{Left: left, Op: op, Right: p.parseUnary()}
	}
	return left
}

// parseUnary handles the prefix operators. A prefix operator's operand is
// parsed at the unary level again, and power binds tighter than a prefix
// on its left, so -a ** b parses as -(a ** b).
func (p *Parser) parseUnary() Expr {
	if p.depth >= maxExprDepth {
		p.err("shallower expression", "expression nesting exceeds %d levels", maxExprDepth)
		return &BadExpr{From: p.next()}
	}
	p.depth++
	defer func() { p.depth-- }()

	switch p.cur().Type {
	case lexer.PLUS, lexer.MINUS, lexer.BANG, lexer.NOT, lexer.TILDE:
		op := p.next()
		return &UnaryExpr{Op: op, Operand: p.parseUnary()}
	case lexer.AWAIT:
		kw := p.next()
		return &AwaitExpr{Keyword: kw, Operand: p.parseUnary()}
	}
	return p.parsePower()
}

// parsePower is right associative: a ** b ** c is a ** (b ** c). The right
// operand re-enters the unary level so 2 ** -3 parses.
func (p *Parser) parsePower() Expr {
	left := p.parsePostfix()
	if p.at(lexer.POW) {
		op := p.next()
		return &BinaryExpr{Left: left, Op: op, Right: p.parseUnary()}
	}
	return left
}

// parsePostfix chains member access, indexing/slicing, and calls
// left-to-right off one primary.
func (p *Parser) parsePostfix() Expr {
	x := p.parsePrimary()
	for {
		switch p.cur().Type {
		case lexer.DOT:
			p.next()
			name, ok := p.expectIdent("member access")
			if !ok {
				return x
			}
			x = &MemberExpr{Recv: x, Name: name}
		case lexer.LBRACKET:
			x = p.parseIndexOrSlice(x)
		case lexer.LPAREN:
			lparen := p.next()
			call := &CallExpr{Fun: x, LParen: lparen}
			for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
				call.Args = append(call.Args, p.parseExpr())
				if _, ok := p.accept(lexer.COMMA); !ok {
					break
				}
			}
			call.RParen, _ = p.expect(lexer.RPAREN, "call arguments")
			x = call
		default:
			return x
		}
	}
}

func (p *Parser) parseIndexOrSlice(recv Expr) Expr {
	lbracket := p.next()
	var low Expr
	if !p.at(lexer.COLON) {
		low = p.parseExpr()
	}
	if _, ok := p.accept(lexer.COLON); ok {
		s := &SliceExpr{Recv: recv, LBracket: lbracket, Low: low}
		if !p.at(lexer.RBRACKET) {
			s.High = p.parseExpr()
		}
		s.RBracket, _ = p.expect(lexer.RBRACKET, "slice expression")
		return s
	}
	idx := &IndexExpr{Recv: recv, LBracket: lbracket, Index: low}
	if low == nil {
		p.err("expression", "missing index expression")
	}
	idx.RBracket, _ = p.expect(lexer.RBRACKET, "index expression")
	return idx
}

func (p *Parser) parsePrimary() Expr {
	switch p.cur().Type {
	case lexer.NUMBER, lexer.STRING, lexer.DATE, lexer.TRUE, lexer.FALSE, lexer.NIL:
		return &Literal{Tok: p.next()}
	case lexer.IDENT:
		return &Ident{Tok: p.next()}
	case lexer.DATA, lexer.ORDER, lexer.EVENT, lexer.PORTFOLIO,
		lexer.BACKTEST, lexer.MICROSTRUCTURE:
		// Soft declaration keywords read as plain identifiers here.
		tok := p.next()
		tok.Type = lexer.IDENT
		return &Ident{Tok: tok}
	case lexer.LPAREN:
		lparen := p.next()
		inner := p.parseExpr()
		rparen, _ := p.expect(lexer.RPAREN, "parenthesized expression")
		return &ParenExpr{LParen: lparen, Inner: inner, RParen: rparen}
	case lexer.LBRACKET:
		return p.parseArrayOrComprehension()
	case lexer.LBRACE:
		return p.parseObjectLit()
	}
	from := p.cur()
	p.err("expression", "unexpected %s, expected an expression", describe(from))
	if !p.at(lexer.EOF) && !p.at(lexer.RBRACE) && !p.at(lexer.SEMICOLON) && !p.at(lexer.RPAREN) {
		p.next()
	}
	return &BadExpr{From: from}
}

// parseArrayOrComprehension decides between an array literal and a
// comprehension after the first element: a following 'for' keyword means
// comprehension. One token of lookahead, no backtracking.
func (p *Parser) parseArrayOrComprehension() Expr {
	lbracket := p.next()
	if p.at(lexer.RBRACKET) {
		return &ArrayLit{LBracket: lbracket, RBracket: p.next()}
	}
	first := p.parseExpr()
	if p.at(lexer.FOR) {
		c := &Comprehension{LBracket: lbracket, Elem: first}
		p.next()
		v, ok := p.expectIdent("comprehension")
		if !ok {
			return &BadExpr{From: lbracket}
		}
		c.Var = v
		if _, ok := p.expect(lexer.IN, "comprehension"); !ok {
			return &BadExpr{From: lbracket}
		}
		c.Iter = p.parseExpr()
		if _, ok := p.accept(lexer.IF); ok {
			c.Cond = p.parseExpr()
		}
		c.RBracket, _ = p.expect(lexer.RBRACKET, "comprehension")
		return c
	}
	a := &ArrayLit{LBracket: lbracket, Elems: []Expr{first}}
	for {
		if _, ok := p.accept(lexer.COMMA); !ok {
			break
		}
		if p.at(lexer.RBRACKET) { // trailing comma
			break
		}
		a.Elems = append(a.Elems, p.parseExpr())
	}
	a.RBracket, _ = p.expect(lexer.RBRACKET, "array literal")
	return a
}

func (p *Parser) parseObjectLit() Expr {
	o := &ObjectLit{LBrace: p.next()}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		var key lexer.Token
		switch {
		case p.at(lexer.IDENT) || p.at(lexer.STRING):
			key = p.next()
		case isSoftKeyword(p.cur().Type):
			key = p.next()
			key.Type = lexer.IDENT
		default:
			p.err("field name", "unexpected %s in object literal", describe(p.cur()))
			p.syncStmt()
			return o
		}
		if _, ok := p.expect(lexer.COLON, "object literal"); !ok {
			p.syncStmt()
			return o
		}
		o.Fields = append(o.Fields, &ObjectField{Key: key, Value: p.parseExpr()})
		if _, ok := p.accept(lexer.COMMA); !ok {
			break
		}
	}
	o.RBrace, _ = p.expect(lexer.RBRACE, "object literal")
	return o
}

// --- types -----------------------------------------------------------------

// parseType parses the full type grammar: unions of optional/array
// postfixed base types. A '<' after a name opens type arguments here only;
// in expression position it is always relational.
func (p *Parser) parseType() TypeExpr {
	first := p.parseTypePostfix()
	if !p.at(lexer.PIPE) {
		return first
	}
	u := &UnionType{Variants: []TypeExpr{first}}
	for {
		if _, ok := p.accept(lexer.PIPE); !ok {
			return u
		}
		u.Variants = append(u.Variants, p.parseTypePostfix())
	}
}

func (p *Parser) parseTypePostfix() TypeExpr {
	t := p.parseTypeBase()
	for {
		switch p.cur().Type {
		case lexer.QUESTION:
			q := p.next()
			t = &OptionalType{Inner: t, Question: q}
		case lexer.LBRACKET:
			if p.peek(1).Type != lexer.RBRACKET {
				return t
			}
			lbracket := p.next()
			p.next()
			t = &ArrayType{Elem: t, LBracket: lbracket}
		default:
			return t
		}
	}
}

func (p *Parser) parseTypeBase() TypeExpr {
	switch p.cur().Type {
	case lexer.MAP:
		m := &MapType{Keyword: p.next()}
		if _, ok := p.expect(lexer.LT, "map type"); !ok {
			return &BadType{From: m.Keyword}
		}
		m.Key = p.parseType()
		if _, ok := p.expect(lexer.COMMA, "map type"); !ok {
			return &BadType{From: m.Keyword}
		}
		m.Value = p.parseType()
		p.expect(lexer.GT, "map type")
		return m
	case lexer.LPAREN:
		f := &FuncType{LParen: p.next()}
		for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
			f.Params = append(f.Params, p.parseType())
			if _, ok := p.accept(lexer.COMMA); !ok {
				break
			}
		}
		p.expect(lexer.RPAREN, "function type")
		if _, ok := p.expect(lexer.ARROW, "function type"); !ok {
			return &BadType{From: f.LParen}
		}
		f.Result = p.parseType()
		return f
	case lexer.IDENT:
		n := &NamedType{Name: p.next()}
		if _, ok := p.accept(lexer.LT); ok {
			for {
				n.Args = append(n.Args, p.parseType())
				if _, ok := p.accept(lexer.COMMA); !ok {
					break
				}
			}
			p.expect(lexer.GT, "type arguments")
		}
		return n
	}
	from := p.cur()
	p.err("type", "unexpected %s, expected a type", describe(from))
	return &BadType{From: from}
}
