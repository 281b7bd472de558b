package lexer

import (
	"testing"

	"github.com/tapelang/bfc/token"
)

type Test struct {
	expectedType    token.TokenType
	expectedLiteral string
}

func checkInput(t *testing.T, input string, tests []Test) {
	l := New("test.tl", input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q",
				i, tt.expectedType, tok.Type)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestNextToken(t *testing.T) {
	input := `five = 5
# Test comment
ten = 10
ten += five
ten -= 1
while ten > 0 {
    ten -= 1
}
if five <= ten {
    write five
} else {
    read five
}
print "hi"
five == 5
five != 10
!five & ten | five
(five < 10) >= 5
`

	tests := []Test{
		{token.IDENT, "five"},
		{token.ASSIGN, "="},
		{token.INT, "5"},
		{token.IDENT, "ten"},
		{token.ASSIGN, "="},
		{token.INT, "10"},
		{token.IDENT, "ten"},
		{token.ADD_ASSIGN, "+="},
		{token.IDENT, "five"},
		{token.IDENT, "ten"},
		{token.SUB_ASSIGN, "-="},
		{token.INT, "1"},
		{token.WHILE, "while"},
		{token.IDENT, "ten"},
		{token.GTR, ">"},
		{token.INT, "0"},
		{token.LBRACE, "{"},
		{token.IDENT, "ten"},
		{token.SUB_ASSIGN, "-="},
		{token.INT, "1"},
		{token.RBRACE, "}"},
		{token.IF, "if"},
		{token.IDENT, "five"},
		{token.LEQ, "<="},
		{token.IDENT, "ten"},
		{token.LBRACE, "{"},
		{token.WRITE, "write"},
		{token.IDENT, "five"},
		{token.RBRACE, "}"},
		{token.ELSE, "else"},
		{token.LBRACE, "{"},
		{token.READ, "read"},
		{token.IDENT, "five"},
		{token.RBRACE, "}"},
		{token.PRINT, "print"},
		{token.STRING, "hi"},
		{token.IDENT, "five"},
		{token.EQL, "=="},
		{token.INT, "5"},
		{token.IDENT, "five"},
		{token.NEQ, "!="},
		{token.INT, "10"},
		{token.NOT, "!"},
		{token.IDENT, "five"},
		{token.AND, "&"},
		{token.IDENT, "ten"},
		{token.OR, "|"},
		{token.IDENT, "five"},
		{token.LPAREN, "("},
		{token.IDENT, "five"},
		{token.LSS, "<"},
		{token.INT, "10"},
		{token.RPAREN, ")"},
		{token.GEQ, ">="},
		{token.INT, "5"},
		{token.EOF, ""},
	}

	checkInput(t, input, tests)
}

func TestCharLiterals(t *testing.T) {
	input := `a = 'x'
nl = '\n'
tab = '\t'
zero = '\0'
quote = '\''
`
	tests := []Test{
		{token.IDENT, "a"},
		{token.ASSIGN, "="},
		{token.CHAR, "x"},
		{token.IDENT, "nl"},
		{token.ASSIGN, "="},
		{token.CHAR, "\n"},
		{token.IDENT, "tab"},
		{token.ASSIGN, "="},
		{token.CHAR, "\t"},
		{token.IDENT, "zero"},
		{token.ASSIGN, "="},
		{token.CHAR, "\x00"},
		{token.IDENT, "quote"},
		{token.ASSIGN, "="},
		{token.CHAR, "'"},
		{token.EOF, ""},
	}

	checkInput(t, input, tests)
}

func TestStringEscapes(t *testing.T) {
	input := `print "line\n" print "a\tb"`
	tests := []Test{
		{token.PRINT, "print"},
		{token.STRING, "line\n"},
		{token.PRINT, "print"},
		{token.STRING, "a\tb"},
		{token.EOF, ""},
	}

	checkInput(t, input, tests)
}

func TestIllegalRune(t *testing.T) {
	l := New("test.tl", "x = $")
	var tok token.Token
	for tok = l.NextToken(); tok.Type != token.EOF; tok = l.NextToken() {
		if tok.Type == token.ILLEGAL {
			if tok.Literal != "$" {
				t.Fatalf("illegal literal wrong. expected=%q, got=%q", "$", tok.Literal)
			}
			return
		}
	}
	t.Fatal("expected an ILLEGAL token")
}

func TestLineAndColumn(t *testing.T) {
	input := "x = 1\ny = 2"
	l := New("test.tl", input)

	tok := l.NextToken() // x
	if tok.Line != 1 || tok.Column != 1 {
		t.Fatalf("x position wrong. got line=%d column=%d", tok.Line, tok.Column)
	}
	l.NextToken() // =
	l.NextToken() // 1

	tok = l.NextToken() // y
	if tok.Line != 2 || tok.Column != 1 {
		t.Fatalf("y position wrong. got line=%d column=%d", tok.Line, tok.Column)
	}
	if tok.FileName != "test.tl" {
		t.Fatalf("file name wrong. got %q", tok.FileName)
	}
}
