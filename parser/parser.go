package parser

import (
	"fmt"
	"strconv"

	"github.com/tapelang/bfc/ast"
	"github.com/tapelang/bfc/lexer"
	"github.com/tapelang/bfc/token"
)

const (
	_ int = iota
	LOWEST
	ORPREC      // |
	ANDPREC     // &
	EQUALS      // == or !=
	LESSGREATER // < > <= >=
	SUM         // + -
	PREFIX      // !X
)

var precedences = map[token.TokenType]int{
	token.OR:  ORPREC,
	token.AND: ANDPREC,
	token.EQL: EQUALS,
	token.NEQ: EQUALS,
	token.LSS: LESSGREATER,
	token.GTR: LESSGREATER,
	token.LEQ: LESSGREATER,
	token.GEQ: LESSGREATER,
	token.ADD: SUM,
	token.SUB: SUM,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

type Parser struct {
	l      *lexer.Lexer
	errors []*token.CompileError

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:      l,
		errors: []*token.CompileError{},
	}

	p.prefixParseFns = make(map[token.TokenType]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.CHAR, p.parseCharLiteral)
	p.registerPrefix(token.NOT, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)

	p.infixParseFns = make(map[token.TokenType]infixParseFn)
	for _, tt := range []token.TokenType{
		token.ADD, token.SUB, token.AND, token.OR,
		token.EQL, token.NEQ, token.LSS, token.GTR, token.LEQ, token.GEQ,
	} {
		p.registerInfix(tt, p.parseInfixExpression)
	}

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) registerPrefix(tokenType token.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType token.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

func (p *Parser) Errors() []*token.CompileError {
	return p.errors
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t token.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t token.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t token.TokenType) {
	p.errors = append(p.errors, &token.CompileError{
		Token: p.peekToken,
		Msg:   fmt.Sprintf("expected next token to be %s, got %s instead", t, p.peekToken),
	})
}

func (p *Parser) errorAt(tok token.Token, format string, args ...any) {
	p.errors = append(p.errors, &token.CompileError{
		Token: tok,
		Msg:   fmt.Sprintf(format, args...),
	})
}

func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{Statements: []ast.Statement{}}

	for !p.curTokenIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}

	return program
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.WHILE:
		return p.parseWhileStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.WRITE:
		return p.parseWriteStatement()
	case token.READ:
		return p.parseReadStatement()
	case token.PRINT:
		return p.parsePrintStatement()
	case token.LBRACE:
		return p.parseBlockStatement()
	case token.IDENT:
		return p.parseAssignStatement()
	default:
		p.errorAt(p.curToken, "unexpected token %s at statement start", p.curToken)
		return nil
	}
}

func (p *Parser) parseAssignStatement() ast.Statement {
	name := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.peekTokenIs(token.ASSIGN) && !p.peekTokenIs(token.ADD_ASSIGN) && !p.peekTokenIs(token.SUB_ASSIGN) {
		p.errorAt(p.peekToken, "expected =, += or -= after %q, got %s instead", name.Value, p.peekToken)
		return nil
	}
	p.nextToken()

	stmt := &ast.AssignStatement{Token: p.curToken, Name: name}

	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	return stmt
}

func (p *Parser) parseWriteStatement() ast.Statement {
	stmt := &ast.WriteStatement{Token: p.curToken}
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	return stmt
}

func (p *Parser) parseReadStatement() ast.Statement {
	stmt := &ast.ReadStatement{Token: p.curToken}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	return stmt
}

func (p *Parser) parsePrintStatement() ast.Statement {
	stmt := &ast.PrintStatement{Token: p.curToken}
	if !p.expectPeek(token.STRING) {
		return nil
	}
	for _, r := range p.curToken.Literal {
		if r > 127 {
			p.errorAt(p.curToken, "print strings must be ASCII, found %q", r)
			return nil
		}
	}
	stmt.Value = p.curToken.Literal
	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}

	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}

	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Then = p.parseBlockStatement()

	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		if !p.expectPeek(token.LBRACE) {
			return nil
		}
		stmt.Else = p.parseBlockStatement()
	}
	return stmt
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken, Statements: []ast.Statement{}}

	p.nextToken()
	for !p.curTokenIs(token.RBRACE) {
		if p.curTokenIs(token.EOF) {
			p.errorAt(p.curToken, "unexpected end of input, expected }")
			return block
		}
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}

	return block
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.errorAt(p.curToken, "no prefix parse function for %s found", p.curToken)
		return nil
	}
	leftExp := prefix()

	for precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}

	return leftExp
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	lit := &ast.IntegerLiteral{Token: p.curToken}

	value, err := strconv.ParseUint(p.curToken.Literal, 10, 8)
	if err != nil {
		p.errorAt(p.curToken, "could not parse %q as a cell value (0..255)", p.curToken.Literal)
		return nil
	}

	lit.Value = uint8(value)
	return lit
}

func (p *Parser) parseCharLiteral() ast.Expression {
	lit := &ast.IntegerLiteral{Token: p.curToken}

	if len(p.curToken.Literal) != 1 || p.curToken.Literal[0] > 127 {
		p.errorAt(p.curToken, "character literal %q is not a single ASCII character", p.curToken.Literal)
		return nil
	}

	lit.Value = p.curToken.Literal[0]
	return lit
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expression := &ast.PrefixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
	}

	p.nextToken()
	expression.Right = p.parseExpression(PREFIX)

	return expression
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curToken,
		Left:     left,
		Operator: p.curToken.Literal,
	}

	precedence := p.curPrecedence()
	p.nextToken()
	expression.Right = p.parseExpression(precedence)

	return expression
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()

	exp := p.parseExpression(LOWEST)

	if !p.expectPeek(token.RPAREN) {
		return nil
	}

	return exp
}
