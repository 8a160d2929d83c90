// Package lexer turns strategy DSL source text into a token stream. The
// scan is byte-driven and longest-match: multi-character operators are
// checked before their prefixes, keywords win over identifiers only on an
// exact match, and ISO 8601 date literals are recognized before the number
// fallback. Lexing never stops at the first problem; unrecognized input
// becomes a positioned lexical error plus an ILLEGAL token and the scan
// continues, so the parser can still attempt recovery.
package lexer

import (
	"strings"

	"github.com/stratlang/stratc/diag"
)

// Lexer scans one source unit. It carries no state between calls to
// Tokenize; construct one per compile.
type Lexer struct {
	src  string
	bag  *diag.Bag
	pos  int
	line int
	col  int
}

// New creates a lexer for the given source. Diagnostics are appended to bag.
func New(src string, bag *diag.Bag) *Lexer {
	return &Lexer{src: src, bag: bag, line: 1, col: 1}
}

// Tokenize scans the whole source and returns the complete token stream,
// terminated by an EOF token. Comments and whitespace are discarded.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.next()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens
		}
	}
}

func (l *Lexer) next() Token {
	l.skipTrivia()
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Offset: l.pos, End: l.pos, Line: l.line, Column: l.col}
	}

	start, startLine, startCol := l.pos, l.line, l.col
	ch := l.src[l.pos]

	switch {
	case isDigit(ch):
		if lit, ok := l.tryDate(); ok {
			return l.emit(DATE, lit, start, startLine, startCol)
		}
		return l.emit(NUMBER, l.scanNumber(), start, startLine, startCol)
	case ch == '"' || ch == '\'':
		return l.emit(STRING, l.scanString(ch), start, startLine, startCol)
	case isIdentStart(ch):
		lit := l.scanIdent()
		if kw, ok := keywords[lit]; ok {
			return l.emit(kw, lit, start, startLine, startCol)
		}
		return l.emit(IDENT, lit, start, startLine, startCol)
	}

	if tt, lit, ok := l.scanOperator(); ok {
		return l.emit(tt, lit, start, startLine, startCol)
	}

	// Unrecognized byte run: one diagnostic per run, then keep going.
	l.advance()
	for l.pos < len(l.src) && !l.recognizable(l.src[l.pos]) {
		l.advance()
	}
	lit := l.src[start:l.pos]
	l.bag.AddLexical(startLine, startCol, "unrecognized character sequence %q", lit)
	return l.emit(ILLEGAL, lit, start, startLine, startCol)
}

func (l *Lexer) emit(tt TokenType, lit string, start, line, col int) Token {
	return Token{Type: tt, Lit: lit, Offset: start, End: l.pos, Line: line, Column: col}
}

// advance moves past the current byte, tracking line and column.
func (l *Lexer) advance() {
	if l.src[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

func (l *Lexer) peek(ahead int) byte {
	if l.pos+ahead >= len(l.src) {
		return 0
	}
	return l.src[l.pos+ahead]
}

// skipTrivia discards whitespace and comments; they carry no semantic weight.
func (l *Lexer) skipTrivia() {
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance()
		case ch == '/' && l.peek(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance()
			}
		case ch == '/' && l.peek(1) == '*':
			line, col := l.line, l.col
			l.advance()
			l.advance()
			closed := false
			for l.pos < len(l.src) {
				if l.src[l.pos] == '*' && l.peek(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				l.bag.AddLexical(line, col, "unterminated block comment")
			}
		default:
			return
		}
	}
}

func (l *Lexer) scanIdent() string {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.advance()
	}
	return l.src[start:l.pos]
}

// scanNumber scans integers, decimals, and exponent form. A '.' is consumed
// only when followed by a digit, so "close.high" lexes as member access.
func (l *Lexer) scanNumber() string {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.advance()
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' && isDigit(l.peek(1)) {
		l.advance()
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.advance()
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		next := l.peek(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peek(2))) {
			l.advance()
			if l.src[l.pos] == '+' || l.src[l.pos] == '-' {
				l.advance()
			}
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.advance()
			}
		}
	}
	return l.src[start:l.pos]
}

// tryDate recognizes YYYY-MM-DD with an optional THH:MM or THH:MM:SS
// qualifier. It only commits when the full date shape is present, so
// "2024-1" stays a number followed by operators.
func (l *Lexer) tryDate() (string, bool) {
	rest := l.src[l.pos:]
	n := dateLen(rest)
	if n == 0 {
		return "", false
	}
	lit := rest[:n]
	for i := 0; i < n; i++ {
		l.advance()
	}
	return lit, true
}

// dateLen returns the length of the date literal at the start of s, or 0.
func dateLen(s string) int {
	digits := func(off, count int) bool {
		if off+count > len(s) {
			return false
		}
		for i := off; i < off+count; i++ {
			if !isDigit(s[i]) {
				return false
			}
		}
		return true
	}
	if !digits(0, 4) || len(s) < 10 || s[4] != '-' || !digits(5, 2) || s[7] != '-' || !digits(8, 2) {
		return 0
	}
	n := 10
	// A trailing digit means this was not a date shape after all.
	if n < len(s) && isDigit(s[n]) {
		return 0
	}
	if n < len(s) && s[n] == 'T' && digits(n+1, 2) && n+3 < len(s) && s[n+3] == ':' && digits(n+4, 2) {
		n += 6
		if n < len(s) && s[n] == ':' && digits(n+1, 2) {
			n += 3
		}
	}
	return n
}

// scanString consumes a quoted literal with backslash escapes. The returned
// text excludes the quotes and has escapes resolved.
func (l *Lexer) scanString(quote byte) string {
	line, col := l.line, l.col
	l.advance() // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if ch == '\n' {
			break
		}
		if ch == quote {
			l.advance()
			return sb.String()
		}
		if ch == '\\' && l.pos+1 < len(l.src) {
			l.advance()
			switch l.src[l.pos] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			default:
				sb.WriteByte(l.src[l.pos])
			}
			l.advance()
			continue
		}
		sb.WriteByte(ch)
		l.advance()
	}
	l.bag.AddLexical(line, col, "unterminated string literal")
	return sb.String()
}

// scanOperator matches the operator and delimiter set, longest first.
func (l *Lexer) scanOperator() (TokenType, string, bool) {
	two := ""
	if l.pos+2 <= len(l.src) {
		two = l.src[l.pos : l.pos+2]
	}
	switch two {
	case "**":
		return l.op(POW, 2)
	case "==":
		return l.op(EQ, 2)
	case "!=":
		return l.op(NEQ, 2)
	case "<=":
		return l.op(LTE, 2)
	case ">=":
		return l.op(GTE, 2)
	case "&&":
		return l.op(ANDAND, 2)
	case "||":
		return l.op(OROR, 2)
	case "+=":
		return l.op(PLUS_ASSIGN, 2)
	case "-=":
		return l.op(MINUS_ASSIGN, 2)
	case "*=":
		return l.op(STAR_ASSIGN, 2)
	case "/=":
		return l.op(SLASH_ASSIGN, 2)
	case "->":
		return l.op(ARROW, 2)
	}
	switch l.src[l.pos] {
	case '+':
		return l.op(PLUS, 1)
	case '-':
		return l.op(MINUS, 1)
	case '*':
		return l.op(STAR, 1)
	case '/':
		return l.op(SLASH, 1)
	case '%':
		return l.op(PERCENT, 1)
	case '=':
		return l.op(ASSIGN, 1)
	case '<':
		return l.op(LT, 1)
	case '>':
		return l.op(GT, 1)
	case '!':
		return l.op(BANG, 1)
	case '~':
		return l.op(TILDE, 1)
	case '|':
		return l.op(PIPE, 1)
	case '?':
		return l.op(QUESTION, 1)
	case ':':
		return l.op(COLON, 1)
	case ';':
		return l.op(SEMICOLON, 1)
	case ',':
		return l.op(COMMA, 1)
	case '.':
		return l.op(DOT, 1)
	case '(':
		return l.op(LPAREN, 1)
	case ')':
		return l.op(RPAREN, 1)
	case '{':
		return l.op(LBRACE, 1)
	case '}':
		return l.op(RBRACE, 1)
	case '[':
		return l.op(LBRACKET, 1)
	case ']':
		return l.op(RBRACKET, 1)
	}
	return 0, "", false
}

func (l *Lexer) op(tt TokenType, width int) (TokenType, string, bool) {
	lit := l.src[l.pos : l.pos+width]
	for i := 0; i < width; i++ {
		l.advance()
	}
	return tt, lit, true
}

// recognizable reports whether ch can start a token or trivia; used to
// bound an unrecognized byte run.
func (l *Lexer) recognizable(ch byte) bool {
	if isIdentStart(ch) || isDigit(ch) || ch == '"' || ch == '\'' {
		return true
	}
	if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' {
		return true
	}
	return strings.IndexByte("+-*/%=<>!~|?:;,.(){}[]&", ch) >= 0
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool { return isIdentStart(ch) || isDigit(ch) }
