package token

import (
	"fmt"
	"strconv"
)

type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF

	literal_beg
	// Identifiers + literals
	IDENT  // x, counter, ...
	INT    // 42
	CHAR   // 'a'
	STRING // "abc"
	literal_end

	operator_beg
	ASSIGN // =
	NOT    // !

	ADD // +
	SUB // -

	AND // &
	OR  // |

	ADD_ASSIGN // +=
	SUB_ASSIGN // -=

	LPAREN // (
	RPAREN // )
	LBRACE // {
	RBRACE // }
	operator_end

	comparison_beg
	EQL // ==
	NEQ // !=
	LSS // <
	GTR // >
	LEQ // <=
	GEQ // >=
	comparison_end

	keyword_beg
	IF    // if
	ELSE  // else
	WHILE // while
	READ  // read
	WRITE // write
	PRINT // print
	keyword_end
)

var tokens = [...]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",

	IDENT:  "IDENT",
	INT:    "INT",
	CHAR:   "CHAR",
	STRING: "STRING",

	ASSIGN: "=",
	NOT:    "!",

	ADD: "+",
	SUB: "-",

	AND: "&",
	OR:  "|",

	ADD_ASSIGN: "+=",
	SUB_ASSIGN: "-=",

	LPAREN: "(",
	RPAREN: ")",
	LBRACE: "{",
	RBRACE: "}",

	EQL: "==",
	NEQ: "!=",
	LSS: "<",
	GTR: ">",
	LEQ: "<=",
	GEQ: ">=",

	IF:    "if",
	ELSE:  "else",
	WHILE: "while",
	READ:  "read",
	WRITE: "write",
	PRINT: "print",
}

var keywords = map[string]TokenType{
	"if":    IF,
	"else":  ELSE,
	"while": WHILE,
	"read":  READ,
	"write": WRITE,
	"print": PRINT,
}

// LookupIdent returns the keyword token type for ident, or IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

type Token struct {
	FileName string
	Type     TokenType
	Literal  string
	Line     int
	Column   int
}

func (t Token) IsComparison() bool {
	return comparison_beg < t.Type && t.Type < comparison_end
}

func (t Token) IsLiteral() bool {
	return literal_beg < t.Type && t.Type < literal_end
}

func (t Token) String() string {
	return t.Type.String()
}

func (tokenType TokenType) String() string {
	s := ""
	if 0 <= tokenType && tokenType < TokenType(len(tokens)) {
		s = tokens[tokenType]
	}

	if s == "" {
		s = "token(" + strconv.Itoa(int(tokenType)) + ")"
	}

	return s
}

// CompileError is a diagnostic tied to the source position of a token.
type CompileError struct {
	Token Token
	Msg   string
}

func (ce *CompileError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", ce.Token.FileName, ce.Token.Line, ce.Token.Column, ce.Msg)
}
