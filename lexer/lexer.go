package lexer

import (
	"github.com/tapelang/bfc/token"
)

type Lexer struct {
	fileName     string
	input        []rune
	position     int  // current position in input (points to current rune)
	readPosition int  // current reading position in input (after current rune)
	curr         rune // current rune under examination
	line         int
	column       int
}

func New(fileName, input string) *Lexer {
	l := &Lexer{
		fileName: fileName,
		input:    []rune(input),
		line:     1,
		column:   0,
	}
	l.readRune()
	return l
}

func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	tok := token.Token{
		FileName: l.fileName,
		Line:     l.line,
		Column:   l.column,
	}

	switch l.curr {
	case '=':
		if l.peekRune() == '=' {
			l.readRune()
			tok.Type, tok.Literal = token.EQL, "=="
		} else {
			tok.Type, tok.Literal = token.ASSIGN, "="
		}
	case '!':
		if l.peekRune() == '=' {
			l.readRune()
			tok.Type, tok.Literal = token.NEQ, "!="
		} else {
			tok.Type, tok.Literal = token.NOT, "!"
		}
	case '+':
		if l.peekRune() == '=' {
			l.readRune()
			tok.Type, tok.Literal = token.ADD_ASSIGN, "+="
		} else {
			tok.Type, tok.Literal = token.ADD, "+"
		}
	case '-':
		if l.peekRune() == '=' {
			l.readRune()
			tok.Type, tok.Literal = token.SUB_ASSIGN, "-="
		} else {
			tok.Type, tok.Literal = token.SUB, "-"
		}
	case '<':
		if l.peekRune() == '=' {
			l.readRune()
			tok.Type, tok.Literal = token.LEQ, "<="
		} else {
			tok.Type, tok.Literal = token.LSS, "<"
		}
	case '>':
		if l.peekRune() == '=' {
			l.readRune()
			tok.Type, tok.Literal = token.GEQ, ">="
		} else {
			tok.Type, tok.Literal = token.GTR, ">"
		}
	case '&':
		tok.Type, tok.Literal = token.AND, "&"
	case '|':
		tok.Type, tok.Literal = token.OR, "|"
	case '(':
		tok.Type, tok.Literal = token.LPAREN, "("
	case ')':
		tok.Type, tok.Literal = token.RPAREN, ")"
	case '{':
		tok.Type, tok.Literal = token.LBRACE, "{"
	case '}':
		tok.Type, tok.Literal = token.RBRACE, "}"
	case '\'':
		return l.readCharLiteral(tok)
	case '"':
		return l.readStringLiteral(tok)
	case 0:
		tok.Type, tok.Literal = token.EOF, ""
	default:
		if isLetter(l.curr) {
			tok.Literal = l.readIdentifier()
			tok.Type = token.LookupIdent(tok.Literal)
			return tok
		} else if isDigit(l.curr) {
			tok.Type = token.INT
			tok.Literal = l.readNumber()
			return tok
		}
		tok.Type, tok.Literal = token.ILLEGAL, string(l.curr)
	}

	l.readRune()
	return tok
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.curr == ' ' || l.curr == '\t' || l.curr == '\n' || l.curr == '\r':
			l.readRune()
		case l.curr == '#':
			for l.curr != '\n' && l.curr != 0 {
				l.readRune()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readRune() {
	if l.curr == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.curr = 0
	} else {
		l.curr = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) peekRune() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.curr) || isDigit(l.curr) {
		l.readRune()
	}
	return string(l.input[position:l.position])
}

func (l *Lexer) readNumber() string {
	position := l.position
	for isDigit(l.curr) {
		l.readRune()
	}
	return string(l.input[position:l.position])
}

// readCharLiteral scans 'a' (with the usual backslash escapes) and returns a
// CHAR token whose Literal is the unescaped character.
func (l *Lexer) readCharLiteral(tok token.Token) token.Token {
	l.readRune() // consume opening quote
	if l.curr == 0 {
		tok.Type, tok.Literal = token.ILLEGAL, "'"
		return tok
	}

	ch := l.curr
	if ch == '\\' {
		l.readRune()
		ch = unescape(l.curr)
	}
	l.readRune()

	if l.curr != '\'' {
		tok.Type, tok.Literal = token.ILLEGAL, string(ch)
		return tok
	}
	l.readRune() // consume closing quote

	tok.Type, tok.Literal = token.CHAR, string(ch)
	return tok
}

func (l *Lexer) readStringLiteral(tok token.Token) token.Token {
	l.readRune() // consume opening quote
	var out []rune
	for l.curr != '"' {
		if l.curr == 0 {
			tok.Type, tok.Literal = token.ILLEGAL, string(out)
			return tok
		}
		ch := l.curr
		if ch == '\\' {
			l.readRune()
			ch = unescape(l.curr)
		}
		out = append(out, ch)
		l.readRune()
	}
	l.readRune() // consume closing quote

	tok.Type, tok.Literal = token.STRING, string(out)
	return tok
}

func unescape(ch rune) rune {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return ch
	}
}

func isLetter(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}
