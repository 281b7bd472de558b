package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tapelang/bfc/ast"
	"github.com/tapelang/bfc/lexer"
	"github.com/tapelang/bfc/token"
)

func mustParse(t *testing.T, input string) *ast.Program {
	t.Helper()
	l := lexer.New("test.tl", input)
	p := New(l)
	program := p.ParseProgram()
	require.Empty(t, p.Errors(), "parser errors for input %q", input)
	return program
}

func parseErrors(t *testing.T, input string) []*token.CompileError {
	t.Helper()
	l := lexer.New("test.tl", input)
	p := New(l)
	p.ParseProgram()
	require.NotEmpty(t, p.Errors(), "expected parser errors for input %q", input)
	return p.Errors()
}

func testIdentifier(t *testing.T, exp ast.Expression, value string) bool {
	ident, ok := exp.(*ast.Identifier)
	if !ok {
		t.Errorf("exp not *ast.Identifier. got=%T", exp)
		return false
	}
	if ident.Value != value {
		t.Errorf("ident.Value not %s. got=%s", value, ident.Value)
		return false
	}
	return true
}

func testIntegerLiteral(t *testing.T, exp ast.Expression, value uint8) bool {
	integ, ok := exp.(*ast.IntegerLiteral)
	if !ok {
		t.Errorf("exp not *ast.IntegerLiteral. got=%T", exp)
		return false
	}
	if integ.Value != value {
		t.Errorf("integ.Value not %d. got=%d", value, integ.Value)
		return false
	}
	return true
}

func testLiteralExpression(t *testing.T, exp ast.Expression, expected interface{}) bool {
	switch v := expected.(type) {
	case int:
		return testIntegerLiteral(t, exp, uint8(v))
	case string:
		return testIdentifier(t, exp, v)
	}
	t.Errorf("type of exp not handled. got=%T", expected)
	return false
}

func testInfixExpression(t *testing.T, exp ast.Expression, left interface{},
	operator string, right interface{}) bool {

	opExp, ok := exp.(*ast.InfixExpression)
	if !ok {
		t.Errorf("exp is not ast.InfixExpression. got=%T(%s)", exp, exp)
		return false
	}
	if !testLiteralExpression(t, opExp.Left, left) {
		return false
	}
	if opExp.Operator != operator {
		t.Errorf("exp.Operator is not '%s'. got=%q", operator, opExp.Operator)
		return false
	}
	return testLiteralExpression(t, opExp.Right, right)
}

func TestAssignStatements(t *testing.T) {
	tests := []struct {
		input    string
		name     string
		operator string
		value    interface{}
	}{
		{"x = 5", "x", "=", 5},
		{"y = x", "y", "=", "x"},
		{"count += 2", "count", "+=", 2},
		{"count -= y", "count", "-=", "y"},
		{"c = 'a'", "c", "=", int('a')},
	}

	for _, tt := range tests {
		program := mustParse(t, tt.input)
		require.Len(t, program.Statements, 1)

		stmt, ok := program.Statements[0].(*ast.AssignStatement)
		require.True(t, ok, "statement is %T", program.Statements[0])
		require.Equal(t, tt.name, stmt.Name.Value)
		require.Equal(t, tt.operator, stmt.Token.Literal)
		testLiteralExpression(t, stmt.Value, tt.value)
	}
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"x = a + b - c", "x = ((a + b) - c)"},
		{"x = a + b == c", "x = ((a + b) == c)"},
		{"x = a == b & c != d", "x = ((a == b) & (c != d))"},
		{"x = a & b | c", "x = ((a & b) | c)"},
		{"x = !a & b", "x = ((!a) & b)"},
		{"x = a < b + 1", "x = (a < (b + 1))"},
		{"x = (a | b) & c", "x = ((a | b) & c)"},
		{"x = a >= b | c <= d", "x = ((a >= b) | (c <= d))"},
	}

	for _, tt := range tests {
		program := mustParse(t, tt.input)
		require.Equal(t, tt.expected, program.String(), "input %q", tt.input)
	}
}

func TestWhileStatement(t *testing.T) {
	program := mustParse(t, `while x > 0 {
    x -= 1
}`)
	require.Len(t, program.Statements, 1)

	stmt, ok := program.Statements[0].(*ast.WhileStatement)
	require.True(t, ok, "statement is %T", program.Statements[0])
	testInfixExpression(t, stmt.Condition, "x", ">", 0)
	require.Len(t, stmt.Body.Statements, 1)

	body, ok := stmt.Body.Statements[0].(*ast.AssignStatement)
	require.True(t, ok)
	require.Equal(t, "x", body.Name.Value)
	require.Equal(t, token.SUB_ASSIGN, body.Token.Type)
}

func TestIfElseStatement(t *testing.T) {
	program := mustParse(t, `if x == 0 { write y } else { write z }`)
	require.Len(t, program.Statements, 1)

	stmt, ok := program.Statements[0].(*ast.IfStatement)
	require.True(t, ok, "statement is %T", program.Statements[0])
	testInfixExpression(t, stmt.Condition, "x", "==", 0)
	require.Len(t, stmt.Then.Statements, 1)
	require.NotNil(t, stmt.Else)
	require.Len(t, stmt.Else.Statements, 1)
}

func TestIfWithoutElse(t *testing.T) {
	program := mustParse(t, `if x { write x }`)
	stmt, ok := program.Statements[0].(*ast.IfStatement)
	require.True(t, ok)
	require.Nil(t, stmt.Else)
}

func TestReadWritePrint(t *testing.T) {
	program := mustParse(t, `read n
write n + 1
print "ok"`)
	require.Len(t, program.Statements, 3)

	rs, ok := program.Statements[0].(*ast.ReadStatement)
	require.True(t, ok)
	require.Equal(t, "n", rs.Name.Value)

	ws, ok := program.Statements[1].(*ast.WriteStatement)
	require.True(t, ok)
	testInfixExpression(t, ws.Value, "n", "+", 1)

	ps, ok := program.Statements[2].(*ast.PrintStatement)
	require.True(t, ok)
	require.Equal(t, "ok", ps.Value)
}

func TestNestedBlocks(t *testing.T) {
	program := mustParse(t, `{
    x = 1
    {
        y = 2
    }
}`)
	require.Len(t, program.Statements, 1)

	outer, ok := program.Statements[0].(*ast.BlockStatement)
	require.True(t, ok)
	require.Len(t, outer.Statements, 2)

	inner, ok := outer.Statements[1].(*ast.BlockStatement)
	require.True(t, ok)
	require.Len(t, inner.Statements, 1)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"x + 5", "expected =, += or -="},
		{"x = 256", "cell value"},
		{"while x { x -= 1", "unexpected end of input"},
		{"read 5", "expected next token to be IDENT"},
		{"print x", "expected next token to be STRING"},
		{"= 5", "unexpected token"},
	}

	for _, tt := range tests {
		errs := parseErrors(t, tt.input)
		require.Contains(t, errs[0].Error(), tt.want, "input %q", tt.input)
	}
}

func TestErrorPosition(t *testing.T) {
	errs := parseErrors(t, "x = 999")
	require.Contains(t, errs[0].Error(), "test.tl:1:5")
}
