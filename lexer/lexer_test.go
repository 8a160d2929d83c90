package lexer

import (
	"testing"

	"github.com/stratlang/stratc/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lex(t *testing.T, src string) ([]Token, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag("test.strat", src)
	return New(src, bag).Tokenize(), bag
}

func types(tokens []Token) []TokenType {
	out := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Type
	}
	return out
}

func TestTokenize_KeywordsVsIdentifiers(t *testing.T) {
	tokens, bag := lex(t, "strategy strategyX buy buyer when whenever")
	require.Equal(t, 0, bag.Len())
	assert.Equal(t, []TokenType{STRATEGY, IDENT, BUY, IDENT, WHEN, IDENT, EOF}, types(tokens))
	assert.Equal(t, "strategyX", tokens[1].Lit)
	assert.Equal(t, "buyer", tokens[3].Lit)
}

func TestTokenize_LongestMatchOperators(t *testing.T) {
	cases := []struct {
		src  string
		want []TokenType
	}{
		{"**", []TokenType{POW, EOF}},
		{"* *", []TokenType{STAR, STAR, EOF}},
		{"<= < =", []TokenType{LTE, LT, ASSIGN, EOF}},
		{"== =", []TokenType{EQ, ASSIGN, EOF}},
		{"!= !", []TokenType{NEQ, BANG, EOF}},
		{"-> - >", []TokenType{ARROW, MINUS, GT, EOF}},
		{"+= +", []TokenType{PLUS_ASSIGN, PLUS, EOF}},
		{"|| |", []TokenType{OROR, PIPE, EOF}},
	}
	for _, tc := range cases {
		tokens, bag := lex(t, tc.src)
		require.Equal(t, 0, bag.Len(), "source %q", tc.src)
		assert.Equal(t, tc.want, types(tokens), "source %q", tc.src)
	}
}

func TestTokenize_Numbers(t *testing.T) {
	tokens, bag := lex(t, "123 1.5 2.5e-3 1e10 0.001")
	require.Equal(t, 0, bag.Len())
	require.Equal(t, []TokenType{NUMBER, NUMBER, NUMBER, NUMBER, NUMBER, EOF}, types(tokens))
	assert.Equal(t, "2.5e-3", tokens[2].Lit)
}

func TestTokenize_DotBindsToMemberNotNumber(t *testing.T) {
	tokens, bag := lex(t, "close.high")
	require.Equal(t, 0, bag.Len())
	assert.Equal(t, []TokenType{IDENT, DOT, IDENT, EOF}, types(tokens))

	tokens, bag = lex(t, "1.foo")
	require.Equal(t, 0, bag.Len())
	assert.Equal(t, []TokenType{NUMBER, DOT, IDENT, EOF}, types(tokens))
	assert.Equal(t, "1", tokens[0].Lit)
}

func TestTokenize_Strings(t *testing.T) {
	tokens, bag := lex(t, `"AAPL" 'm5' "a\nb" "q\"q"`)
	require.Equal(t, 0, bag.Len())
	require.Equal(t, []TokenType{STRING, STRING, STRING, STRING, EOF}, types(tokens))
	assert.Equal(t, "AAPL", tokens[0].Lit)
	assert.Equal(t, "m5", tokens[1].Lit)
	assert.Equal(t, "a\nb", tokens[2].Lit)
	assert.Equal(t, `q"q`, tokens[3].Lit)
}

func TestTokenize_UnterminatedString(t *testing.T) {
	tokens, bag := lex(t, "\"open\nclose")
	require.Equal(t, 1, bag.Len())
	d := bag.Errors()[0]
	assert.Equal(t, diag.Lexical, d.Kind)
	assert.Equal(t, 1, d.Line)
	assert.Equal(t, 1, d.Column)
	// Lexing continues on the next line.
	assert.Equal(t, []TokenType{STRING, IDENT, EOF}, types(tokens))
}

func TestTokenize_Dates(t *testing.T) {
	cases := []struct {
		src string
		lit string
	}{
		{"2024-01-02", "2024-01-02"},
		{"2024-01-02T09:30", "2024-01-02T09:30"},
		{"2024-01-02T09:30:00", "2024-01-02T09:30:00"},
	}
	for _, tc := range cases {
		tokens, bag := lex(t, tc.src)
		require.Equal(t, 0, bag.Len(), "source %q", tc.src)
		require.Equal(t, []TokenType{DATE, EOF}, types(tokens), "source %q", tc.src)
		assert.Equal(t, tc.lit, tokens[0].Lit)
	}
}

func TestTokenize_DateShapeFallsBackToArithmetic(t *testing.T) {
	// Not a full date shape: stays numbers and minus operators.
	tokens, bag := lex(t, "2024-1-2")
	require.Equal(t, 0, bag.Len())
	assert.Equal(t, []TokenType{NUMBER, MINUS, NUMBER, MINUS, NUMBER, EOF}, types(tokens))

	// A trailing digit disqualifies the date reading.
	tokens, bag = lex(t, "2024-01-023")
	require.Equal(t, 0, bag.Len())
	assert.Equal(t, NUMBER, tokens[0].Type)
}

func TestTokenize_Comments(t *testing.T) {
	tokens, bag := lex(t, "a // line comment\nb /* block\ncomment */ c")
	require.Equal(t, 0, bag.Len())
	assert.Equal(t, []TokenType{IDENT, IDENT, IDENT, EOF}, types(tokens))
}

func TestTokenize_UnterminatedBlockComment(t *testing.T) {
	_, bag := lex(t, "a /* never closed")
	require.Equal(t, 1, bag.Len())
	assert.Contains(t, bag.Errors()[0].Message, "unterminated block comment")
}

func TestTokenize_UnrecognizedRunIsOneDiagnostic(t *testing.T) {
	tokens, bag := lex(t, "a @#$ b")
	require.Equal(t, 1, bag.Len())
	d := bag.Errors()[0]
	assert.Equal(t, diag.Lexical, d.Kind)
	assert.Equal(t, 1, d.Line)
	assert.Equal(t, 3, d.Column)
	assert.Contains(t, d.Message, `"@#$"`)
	assert.Equal(t, []TokenType{IDENT, ILLEGAL, IDENT, EOF}, types(tokens))
}

func TestTokenize_LoneAmpersandDoesNotStall(t *testing.T) {
	tokens, bag := lex(t, "a & b")
	require.Equal(t, 1, bag.Len())
	assert.Equal(t, []TokenType{IDENT, ILLEGAL, IDENT, EOF}, types(tokens))
}

func TestTokenize_MultipleIndependentErrors(t *testing.T) {
	_, bag := lex(t, "@ a $ b `")
	assert.Equal(t, 3, bag.Len())
}

func TestTokenize_Positions(t *testing.T) {
	tokens, bag := lex(t, "ab\n  cd")
	require.Equal(t, 0, bag.Len())
	require.Len(t, tokens, 3)
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 1, tokens[0].Column)
	assert.Equal(t, 2, tokens[1].Line)
	assert.Equal(t, 3, tokens[1].Column)
	assert.Equal(t, 5, tokens[1].Offset)
	assert.Equal(t, 7, tokens[1].End)
}

func TestTokenize_EmptySource(t *testing.T) {
	tokens, bag := lex(t, "")
	require.Equal(t, 0, bag.Len())
	require.Len(t, tokens, 1)
	assert.Equal(t, EOF, tokens[0].Type)
}
