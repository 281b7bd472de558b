package ast

import (
	"bytes"
	"strconv"

	"github.com/tapelang/bfc/token"
)

// The base Node interface
type Node interface {
	Tok() token.Token
	String() string
}

// All statement nodes implement this
type Statement interface {
	Node
	statementNode()
}

// All expression nodes implement this
type Expression interface {
	Node
	expressionNode()
}

type Program struct {
	Statements []Statement
}

func (p *Program) Tok() token.Token {
	if len(p.Statements) > 0 {
		return p.Statements[0].Tok()
	}
	return token.Token{Type: token.EOF}
}

func (p *Program) String() string {
	var out bytes.Buffer

	for i, s := range p.Statements {
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString(s.String())
	}

	return out.String()
}

// Statements

// AssignStatement covers declaration-or-assignment (`x = expr`) as well as
// the compound forms `x += expr` and `x -= expr`, distinguished by Token.Type.
type AssignStatement struct {
	Token token.Token // the =, += or -= token
	Name  *Identifier
	Value Expression
}

func (as *AssignStatement) statementNode()   {}
func (as *AssignStatement) Tok() token.Token { return as.Token }
func (as *AssignStatement) String() string {
	var out bytes.Buffer

	out.WriteString(as.Name.String())
	out.WriteString(" " + as.Token.Literal + " ")
	out.WriteString(as.Value.String())

	return out.String()
}

type WriteStatement struct {
	Token token.Token // the write token
	Value Expression
}

func (ws *WriteStatement) statementNode()   {}
func (ws *WriteStatement) Tok() token.Token { return ws.Token }
func (ws *WriteStatement) String() string   { return "write " + ws.Value.String() }

type ReadStatement struct {
	Token token.Token // the read token
	Name  *Identifier
}

func (rs *ReadStatement) statementNode()   {}
func (rs *ReadStatement) Tok() token.Token { return rs.Token }
func (rs *ReadStatement) String() string   { return "read " + rs.Name.String() }

type PrintStatement struct {
	Token token.Token // the print token
	Value string
}

func (ps *PrintStatement) statementNode()   {}
func (ps *PrintStatement) Tok() token.Token { return ps.Token }
func (ps *PrintStatement) String() string   { return "print " + strconv.Quote(ps.Value) }

type WhileStatement struct {
	Token     token.Token // the while token
	Condition Expression
	Body      *BlockStatement
}

func (ws *WhileStatement) statementNode()   {}
func (ws *WhileStatement) Tok() token.Token { return ws.Token }
func (ws *WhileStatement) String() string {
	var out bytes.Buffer

	out.WriteString("while ")
	out.WriteString(ws.Condition.String())
	out.WriteString(" ")
	out.WriteString(ws.Body.String())

	return out.String()
}

type IfStatement struct {
	Token     token.Token // the if token
	Condition Expression
	Then      *BlockStatement
	Else      *BlockStatement // nil when there is no else branch
}

func (is *IfStatement) statementNode()   {}
func (is *IfStatement) Tok() token.Token { return is.Token }
func (is *IfStatement) String() string {
	var out bytes.Buffer

	out.WriteString("if ")
	out.WriteString(is.Condition.String())
	out.WriteString(" ")
	out.WriteString(is.Then.String())
	if is.Else != nil {
		out.WriteString(" else ")
		out.WriteString(is.Else.String())
	}

	return out.String()
}

type BlockStatement struct {
	Token      token.Token // the { token
	Statements []Statement
}

func (bs *BlockStatement) statementNode()   {}
func (bs *BlockStatement) Tok() token.Token { return bs.Token }
func (bs *BlockStatement) String() string {
	var out bytes.Buffer

	out.WriteString("{ ")
	for _, s := range bs.Statements {
		out.WriteString(s.String())
		out.WriteString(" ")
	}
	out.WriteString("}")

	return out.String()
}

// Expressions

type Identifier struct {
	Token token.Token // the token.IDENT token
	Value string
}

func (i *Identifier) expressionNode()  {}
func (i *Identifier) Tok() token.Token { return i.Token }
func (i *Identifier) String() string   { return i.Value }

// IntegerLiteral holds both numeric literals and character literals; the
// target model's cells are bytes, so Value is a uint8.
type IntegerLiteral struct {
	Token token.Token
	Value uint8
}

func (il *IntegerLiteral) expressionNode()  {}
func (il *IntegerLiteral) Tok() token.Token { return il.Token }
func (il *IntegerLiteral) String() string   { return strconv.Itoa(int(il.Value)) }

type PrefixExpression struct {
	Token    token.Token // the prefix token, e.g. !
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()  {}
func (pe *PrefixExpression) Tok() token.Token { return pe.Token }
func (pe *PrefixExpression) String() string {
	var out bytes.Buffer

	out.WriteString("(")
	out.WriteString(pe.Operator)
	out.WriteString(pe.Right.String())
	out.WriteString(")")

	return out.String()
}

type InfixExpression struct {
	Token    token.Token // the operator token, e.g. +
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()  {}
func (ie *InfixExpression) Tok() token.Token { return ie.Token }
func (ie *InfixExpression) String() string {
	var out bytes.Buffer

	out.WriteString("(")
	out.WriteString(ie.Left.String())
	out.WriteString(" " + ie.Operator + " ")
	out.WriteString(ie.Right.String())
	out.WriteString(")")

	return out.String()
}
