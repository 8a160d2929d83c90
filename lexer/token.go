package lexer

import "fmt"

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	EOF TokenType = iota
	ILLEGAL

	// Literals and names
	IDENT  // fastMA, rsi, close
	NUMBER // 123, 1.5, 2.5e-3
	STRING // "AAPL", 'm5'
	DATE   // 2024-01-02, 2024-01-02T09:30, 2024-01-02T09:30:00

	// Declaration keywords
	STRATEGY
	INDICATOR
	DATA
	ORDER
	EVENT
	PORTFOLIO
	BACKTEST
	MICROSTRUCTURE
	IMPORT
	AS

	// Strategy section keywords
	PARAMS
	INDICATORS
	SIGNALS
	RULES
	RISK
	ON
	WHEN

	// Order verbs
	BUY
	SELL
	SHORT
	COVER

	// Statement keywords
	LET
	VAR
	IF
	ELSE
	WHILE
	FOR
	IN
	RETURN
	BREAK
	CONTINUE

	// Expression keywords
	NOT
	AND
	OR
	TRUE
	FALSE
	NIL
	MAP
	AWAIT

	// Assignment operators
	ASSIGN       // =
	PLUS_ASSIGN  // +=
	MINUS_ASSIGN // -=
	STAR_ASSIGN  // *=
	SLASH_ASSIGN // /=

	// Operators
	QUESTION // ?
	COLON    // :
	OROR     // ||
	ANDAND   // &&
	BANG     // !
	TILDE    // ~
	EQ       // ==
	NEQ      // !=
	LT       // <
	LTE      // <=
	GT       // >
	GTE      // >=
	PLUS     // +
	MINUS    // -
	STAR     // *
	SLASH    // /
	PERCENT  // %
	POW      // **
	PIPE     // | (union types)
	ARROW    // -> (function types)

	// Delimiters
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]
	COMMA     // ,
	DOT       // .
	SEMICOLON // ;
)

var tokenNames = map[TokenType]string{
	EOF:            "EOF",
	ILLEGAL:        "ILLEGAL",
	IDENT:          "identifier",
	NUMBER:         "number",
	STRING:         "string",
	DATE:           "date",
	STRATEGY:       "strategy",
	INDICATOR:      "indicator",
	DATA:           "data",
	ORDER:          "order",
	EVENT:          "event",
	PORTFOLIO:      "portfolio",
	BACKTEST:       "backtest",
	MICROSTRUCTURE: "microstructure",
	IMPORT:         "import",
	AS:             "as",
	PARAMS:         "params",
	INDICATORS:     "indicators",
	SIGNALS:        "signals",
	RULES:          "rules",
	RISK:           "risk",
	ON:             "on",
	WHEN:           "when",
	BUY:            "buy",
	SELL:           "sell",
	SHORT:          "short",
	COVER:          "cover",
	LET:            "let",
	VAR:            "var",
	IF:             "if",
	ELSE:           "else",
	WHILE:          "while",
	FOR:            "for",
	IN:             "in",
	RETURN:         "return",
	BREAK:          "break",
	CONTINUE:       "continue",
	NOT:            "not",
	AND:            "and",
	OR:             "or",
	TRUE:           "true",
	FALSE:          "false",
	NIL:            "nil",
	MAP:            "map",
	AWAIT:          "await",
	ASSIGN:         "=",
	PLUS_ASSIGN:    "+=",
	MINUS_ASSIGN:   "-=",
	STAR_ASSIGN:    "*=",
	SLASH_ASSIGN:   "/=",
	QUESTION:       "?",
	COLON:          ":",
	OROR:           "||",
	ANDAND:         "&&",
	BANG:           "!",
	TILDE:          "~",
	EQ:             "==",
	NEQ:            "!=",
	LT:             "<",
	LTE:            "<=",
	GT:             ">",
	GTE:            ">=",
	PLUS:           "+",
	MINUS:          "-",
	STAR:           "*",
	SLASH:          "/",
	PERCENT:        "%",
	POW:            "**",
	PIPE:           "|",
	ARROW:          "->",
	LPAREN:         "(",
	RPAREN:         ")",
	LBRACE:         "{",
	RBRACE:         "}",
	LBRACKET:       "[",
	RBRACKET:       "]",
	COMMA:          ",",
	DOT:            ".",
	SEMICOLON:      ";",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// keywords maps identifier text to its keyword token type. A keyword wins
// over the generic identifier pattern only when the matched text is
// identical, so "strategyX" stays an identifier.
var keywords = map[string]TokenType{
	"strategy":       STRATEGY,
	"indicator":      INDICATOR,
	"data":           DATA,
	"order":          ORDER,
	"event":          EVENT,
	"portfolio":      PORTFOLIO,
	"backtest":       BACKTEST,
	"microstructure": MICROSTRUCTURE,
	"import":         IMPORT,
	"as":             AS,
	"params":         PARAMS,
	"indicators":     INDICATORS,
	"signals":        SIGNALS,
	"rules":          RULES,
	"risk":           RISK,
	"on":             ON,
	"when":           WHEN,
	"buy":            BUY,
	"sell":           SELL,
	"short":          SHORT,
	"cover":          COVER,
	"let":            LET,
	"var":            VAR,
	"if":             IF,
	"else":           ELSE,
	"while":          WHILE,
	"for":            FOR,
	"in":             IN,
	"return":         RETURN,
	"break":          BREAK,
	"continue":       CONTINUE,
	"not":            NOT,
	"and":            AND,
	"or":             OR,
	"true":           TRUE,
	"false":          FALSE,
	"nil":            NIL,
	"map":            MAP,
	"await":          AWAIT,
}

// Token is one lexeme with its position. Offsets are byte offsets into the
// source; End is exclusive. Line and Column are 1-based. Tokens are
// immutable once produced.
type Token struct {
	Type   TokenType
	Lit    string
	Offset int
	End    int
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Type, t.Lit, t.Line, t.Column)
}

// IsOrderVerb reports whether the token is one of the four order-submission
// keywords usable inside a rules block.
func (t Token) IsOrderVerb() bool {
	return t.Type == BUY || t.Type == SELL || t.Type == SHORT || t.Type == COVER
}
