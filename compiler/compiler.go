package compiler

import (
	"fmt"

	"github.com/tapelang/bfc/ast"
	"github.com/tapelang/bfc/token"
)

// Options is the full configuration surface of the core.
type Options struct {
	Debug    bool // embed source-derived annotations in the output
	Optimize bool // run the optimizer pipeline before emission
}

// Compiler lowers an AST into IR, using the allocator to map every binding
// and temporary to a tape address.
type Compiler struct {
	alloc *Allocator
	env   *Env
	prog  *Program
	opts  Options

	// loopDepth tracks how many loop bodies lowering is currently inside.
	// Inside a loop the clean flag of a newly allocated cell cannot be
	// trusted across iterations, so fresh always clears there and leaves
	// the removal of provably redundant clears to the optimizer.
	loopDepth int
}

func New(opts Options) *Compiler {
	return &Compiler{
		alloc: NewAllocator(),
		env:   NewEnv(),
		opts:  opts,
	}
}

// Allocator exposes the allocator's live state; the optimizer and tests
// consume its liveness and range facts.
func (c *Compiler) Allocator() *Allocator {
	return c.alloc
}

// Compile is the whole pipeline: lowering, optionally the optimizer, and
// emission, honoring opts.
func Compile(program *ast.Program, opts Options) (string, error) {
	c := New(opts)
	ir, err := c.Lower(program)
	if err != nil {
		return "", err
	}
	if opts.Optimize {
		c.Optimize(ir)
	}
	return c.Emit(ir), nil
}

// Lower walks the AST and produces the IR sequence.
func (c *Compiler) Lower(program *ast.Program) (*Program, error) {
	p := &Program{}
	c.prog = p
	if err := c.compileBlock(program.Statements); err != nil {
		return nil, err
	}
	return p, nil
}

// Emission primitives. Every one keeps the allocator's clean-tracking in
// step with the IR it emits.

func (c *Compiler) emit(in *Instr) {
	c.prog.Append(in)
}

func (c *Compiler) add(addr Address, delta int) {
	if delta%256 == 0 {
		return
	}
	c.emit(Add(addr, delta))
	c.alloc.MarkDirty(addr)
}

func (c *Compiler) zero(addr Address) {
	c.emit(Zero(addr))
	c.alloc.MarkClean(addr)
}

func (c *Compiler) inputAt(addr Address) {
	c.emit(Input(addr))
	c.alloc.MarkDirty(addr)
}

func (c *Compiler) outputAt(addr Address) {
	c.emit(Output(addr))
}

func (c *Compiler) note(format string, args ...any) {
	if c.opts.Debug {
		c.emit(Note(fmt.Sprintf(format, args...)))
	}
}

// fresh allocates an Owned address guaranteed to hold zero, clearing it
// only when the allocator cannot prove it is already clean.
func (c *Compiler) fresh() Address {
	addr := c.alloc.AllocateOwned()
	if c.loopDepth > 0 || !c.alloc.IsClean(addr) {
		c.zero(addr)
	}
	return addr
}

// scoped runs f inside a paired allocator scope and environment frame.
func (c *Compiler) scoped(f func() error) error {
	handle := c.alloc.EnterScope()
	c.env.Push()
	err := f()
	c.env.Pop()
	if exitErr := c.alloc.ExitScope(handle); err == nil {
		err = exitErr
	}
	return err
}

// loopWhile emits a loop over guard whose body is produced by f. After the
// loop the guard is known zero; everything else the body touches is dirty.
func (c *Compiler) loopWhile(guard Address, f func() error) error {
	body := &Program{}
	outer := c.prog
	c.prog = body
	c.loopDepth++
	err := f()
	c.loopDepth--
	c.prog = outer
	if err != nil {
		return err
	}
	c.emit(Loop(guard, body))
	for addr := range body.ModifiedAddresses() {
		c.alloc.MarkDirty(addr)
	}
	c.alloc.MarkClean(guard)
	return nil
}

// copyCell copies the value at src into dest without destroying src, going
// through an auxiliary cell. dest must hold zero on entry.
func (c *Compiler) copyCell(src, dest Address) error {
	return c.scoped(func() error {
		aux := c.fresh()
		if err := c.loopWhile(src, func() error {
			c.add(src, -1)
			c.add(dest, 1)
			c.add(aux, 1)
			return nil
		}); err != nil {
			return err
		}
		return c.loopWhile(aux, func() error {
			c.add(aux, -1)
			c.add(src, 1)
			return nil
		})
	})
}

// moveCell drains src into dest, adding sign per unit. src ends zero.
func (c *Compiler) moveCell(src, dest Address, sign int) error {
	return c.loopWhile(src, func() error {
		c.add(src, -1)
		c.add(dest, sign)
		return nil
	})
}

// ifElse lowers a one-shot conditional over the current value at cond. The
// condition is copied into a scratch cell first, so evaluating the guard
// does not consume the original storage; the scratch is forced to zero at
// the end of the branch's single pass. An else branch runs off a flag cell
// preloaded to one and decremented whenever the then branch fires.
func (c *Compiler) ifElse(cond Address, then func() error, els func() error) error {
	return c.scoped(func() error {
		check := c.fresh()
		if err := c.copyCell(cond, check); err != nil {
			return err
		}
		if els == nil {
			return c.loopWhile(check, func() error {
				if err := then(); err != nil {
					return err
				}
				c.zero(check)
				return nil
			})
		}
		flag := c.fresh()
		c.add(flag, 1)
		if err := c.loopWhile(check, func() error {
			if err := then(); err != nil {
				return err
			}
			c.add(flag, -1)
			c.zero(check)
			return nil
		}); err != nil {
			return err
		}
		return c.loopWhile(flag, func() error {
			if err := els(); err != nil {
				return err
			}
			c.add(flag, -1)
			return nil
		})
	})
}

// resolve looks name up in the environment and returns a borrowed view of
// its storage, validating liveness through the allocator.
func (c *Compiler) resolve(id *ast.Identifier) (Value, error) {
	v, ok := c.env.Get(id.Value)
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrUnboundIdentifier, id.Value)
	}
	if v.IsConstant() {
		return v, nil
	}
	addr, err := c.alloc.BindBorrowed(v.Addr)
	if err != nil {
		return Value{}, err
	}
	return BorrowedValue(addr), nil
}

// constEval folds an expression to a byte when every operand is known at
// compile time.
func (c *Compiler) constEval(e ast.Expression) (uint8, bool) {
	switch e := e.(type) {
	case *ast.IntegerLiteral:
		return e.Value, true
	case *ast.Identifier:
		if v, ok := c.env.Get(e.Value); ok && v.IsConstant() {
			return v.Byte, true
		}
		return 0, false
	case *ast.PrefixExpression:
		r, ok := c.constEval(e.Right)
		if !ok {
			return 0, false
		}
		if e.Operator == "!" {
			return boolByte(r == 0), true
		}
		return 0, false
	case *ast.InfixExpression:
		l, ok := c.constEval(e.Left)
		if !ok {
			return 0, false
		}
		r, ok := c.constEval(e.Right)
		if !ok {
			return 0, false
		}
		switch e.Operator {
		case "+":
			return l + r, true
		case "-":
			return l - r, true
		case "&":
			return boolByte(l != 0 && r != 0), true
		case "|":
			return boolByte(l != 0 || r != 0), true
		case "==":
			return boolByte(l == r), true
		case "!=":
			return boolByte(l != r), true
		case "<":
			return boolByte(l < r), true
		case ">":
			return boolByte(l > r), true
		case "<=":
			return boolByte(l <= r), true
		case ">=":
			return boolByte(l >= r), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// evalOwned evaluates an expression into a freshly allocated Owned cell
// registered in the current scope and returns its address.
func (c *Compiler) evalOwned(e ast.Expression) (Address, error) {
	if v, ok := c.constEval(e); ok {
		addr := c.fresh()
		c.add(addr, int(v))
		return addr, nil
	}

	switch e := e.(type) {
	case *ast.Identifier:
		src, err := c.resolve(e)
		if err != nil {
			return 0, err
		}
		dest := c.fresh()
		if err := c.copyCell(src.Addr, dest); err != nil {
			return 0, err
		}
		return dest, nil

	case *ast.PrefixExpression:
		if e.Operator != "!" {
			return 0, fmt.Errorf("unknown prefix operator %q", e.Operator)
		}
		result := c.fresh()
		c.add(result, 1)
		err := c.scoped(func() error {
			t, err := c.evalOwned(e.Right)
			if err != nil {
				return err
			}
			return c.loopWhile(t, func() error {
				c.zero(t)
				c.add(result, -1)
				return nil
			})
		})
		return result, err

	case *ast.InfixExpression:
		return c.evalInfix(e)

	default:
		return 0, fmt.Errorf("cannot evaluate expression %q", e.String())
	}
}

func (c *Compiler) evalInfix(e *ast.InfixExpression) (Address, error) {
	// A constant right operand of + or - folds into a single delta on the
	// evaluated left operand.
	if e.Operator == "+" || e.Operator == "-" {
		if v, ok := c.constEval(e.Right); ok {
			t, err := c.evalOwned(e.Left)
			if err != nil {
				return 0, err
			}
			sign := 1
			if e.Operator == "-" {
				sign = -1
			}
			c.add(t, sign*int(v))
			return t, nil
		}
	}

	switch e.Operator {
	case "+", "-":
		t, err := c.evalOwned(e.Left)
		if err != nil {
			return 0, err
		}
		sign := 1
		if e.Operator == "-" {
			sign = -1
		}
		err = c.scoped(func() error {
			u, err := c.evalOwned(e.Right)
			if err != nil {
				return err
			}
			return c.moveCell(u, t, sign)
		})
		return t, err

	case "&":
		result := c.fresh()
		err := c.scoped(func() error {
			a, err := c.evalOwned(e.Left)
			if err != nil {
				return err
			}
			b, err := c.evalOwned(e.Right)
			if err != nil {
				return err
			}
			return c.loopWhile(a, func() error {
				c.zero(a)
				return c.loopWhile(b, func() error {
					c.zero(b)
					c.add(result, 1)
					return nil
				})
			})
		})
		return result, err

	case "|":
		result := c.fresh()
		err := c.scoped(func() error {
			a, err := c.evalOwned(e.Left)
			if err != nil {
				return err
			}
			b, err := c.evalOwned(e.Right)
			if err != nil {
				return err
			}
			if err := c.loopWhile(a, func() error {
				c.zero(a)
				c.add(result, 1)
				return nil
			}); err != nil {
				return err
			}
			return c.loopWhile(b, func() error {
				c.zero(b)
				if err := c.loopWhile(result, func() error {
					c.zero(result)
					return nil
				}); err != nil {
					return err
				}
				c.add(result, 1)
				return nil
			})
		})
		return result, err

	case "==", "!=":
		result := c.fresh()
		if e.Operator == "==" {
			c.add(result, 1)
		}
		err := c.scoped(func() error {
			// diff ends up zero exactly when the operands are equal;
			// cells wrap, so subtraction works for any pair of bytes.
			diff, err := c.evalOwned(e.Left)
			if err != nil {
				return err
			}
			if err := c.scoped(func() error {
				u, err := c.evalOwned(e.Right)
				if err != nil {
					return err
				}
				return c.moveCell(u, diff, -1)
			}); err != nil {
				return err
			}
			sign := 1
			if e.Operator == "==" {
				sign = -1
			}
			return c.loopWhile(diff, func() error {
				c.zero(diff)
				c.add(result, sign)
				return nil
			})
		})
		return result, err

	case "<=":
		return c.evalLessEq(e.Left, e.Right)
	case ">=":
		return c.evalLessEq(e.Right, e.Left)
	case "<":
		geq, err := c.evalLessEq(e.Right, e.Left)
		if err != nil {
			return 0, err
		}
		return c.notOf(geq)
	case ">":
		leq, err := c.evalLessEq(e.Left, e.Right)
		if err != nil {
			return 0, err
		}
		return c.notOf(leq)

	default:
		return 0, fmt.Errorf("unknown infix operator %q", e.Operator)
	}
}

// evalLessEq lowers a <= b by counting both operands down in lockstep until
// one reaches zero. Whichever side runs out first decides the answer.
func (c *Compiler) evalLessEq(left, right ast.Expression) (Address, error) {
	result := c.fresh()
	err := c.scoped(func() error {
		a, err := c.evalOwned(left)
		if err != nil {
			return err
		}
		b, err := c.evalOwned(right)
		if err != nil {
			return err
		}
		guard := c.fresh()
		c.add(guard, 1)
		return c.loopWhile(guard, func() error {
			return c.ifElse(a, func() error {
				return c.ifElse(b, func() error {
					c.add(a, -1)
					c.add(b, -1)
					return nil
				}, func() error {
					// b ran out first: a > b
					c.zero(a)
					c.add(guard, -1)
					return nil
				})
			}, func() error {
				// a ran out first: a <= b
				c.zero(b)
				c.add(result, 1)
				c.add(guard, -1)
				return nil
			})
		})
	})
	return result, err
}

// notOf consumes the value at src and returns a fresh cell holding its
// logical negation.
func (c *Compiler) notOf(src Address) (Address, error) {
	result := c.fresh()
	c.add(result, 1)
	err := c.loopWhile(src, func() error {
		c.zero(src)
		c.add(result, -1)
		return nil
	})
	return result, err
}

// evalInto accumulates the value of e into dest, which must hold zero.
func (c *Compiler) evalInto(e ast.Expression, dest Address) error {
	if v, ok := c.constEval(e); ok {
		c.add(dest, int(v))
		return nil
	}
	if id, ok := e.(*ast.Identifier); ok {
		src, err := c.resolve(id)
		if err != nil {
			return err
		}
		return c.copyCell(src.Addr, dest)
	}
	return c.scoped(func() error {
		t, err := c.evalOwned(e)
		if err != nil {
			return err
		}
		return c.moveCell(t, dest, 1)
	})
}

// Statement lowering

func (c *Compiler) compileBlock(stmts []ast.Statement) error {
	for i, stmt := range stmts {
		if err := c.compileStatement(stmt, stmts[i+1:]); err != nil {
			return err
		}
	}
	return nil
}

// compileStatement lowers one statement. rest is the remainder of the
// enclosing block, used for the conservative is-it-ever-reassigned check on
// declarations.
func (c *Compiler) compileStatement(stmt ast.Statement, rest []ast.Statement) error {
	switch stmt := stmt.(type) {
	case *ast.AssignStatement:
		return c.compileAssign(stmt, rest)
	case *ast.ReadStatement:
		return c.compileRead(stmt)
	case *ast.WriteStatement:
		return c.compileWrite(stmt)
	case *ast.PrintStatement:
		return c.compilePrint(stmt)
	case *ast.WhileStatement:
		return c.compileWhile(stmt)
	case *ast.IfStatement:
		return c.compileIf(stmt)
	case *ast.BlockStatement:
		return c.scoped(func() error {
			return c.compileBlock(stmt.Statements)
		})
	default:
		return fmt.Errorf("unknown statement %q", stmt.String())
	}
}

func (c *Compiler) compileAssign(stmt *ast.AssignStatement, rest []ast.Statement) error {
	c.note("%s", stmt.String())
	name := stmt.Name.Value
	existing, bound := c.env.Get(name)

	switch stmt.Token.Type {
	case token.ASSIGN:
		if !bound {
			return c.compileDeclaration(stmt, rest)
		}
		if existing.IsConstant() {
			// The declaration scan already proved constants are never
			// reassigned.
			panic("assignment to constant binding " + name)
		}
		target, err := c.resolve(stmt.Name)
		if err != nil {
			return err
		}
		if v, ok := c.constEval(stmt.Value); ok {
			c.zero(target.Addr)
			c.add(target.Addr, int(v))
			return nil
		}
		if id, ok := stmt.Value.(*ast.Identifier); ok {
			src, err := c.resolve(id)
			if err != nil {
				return err
			}
			if src.Addr == target.Addr {
				// Self-assignment must emit nothing: zero-then-copy
				// would transiently corrupt the value.
				return nil
			}
			c.zero(target.Addr)
			return c.copyCell(src.Addr, target.Addr)
		}
		// A compound right-hand side may read the target, so it is
		// evaluated into a temporary before the target is cleared.
		return c.scoped(func() error {
			t, err := c.evalOwned(stmt.Value)
			if err != nil {
				return err
			}
			c.zero(target.Addr)
			return c.moveCell(t, target.Addr, 1)
		})

	case token.ADD_ASSIGN, token.SUB_ASSIGN:
		if !bound {
			return fmt.Errorf("%w: %q", ErrUnboundIdentifier, name)
		}
		if existing.IsConstant() {
			panic("compound assignment to constant binding " + name)
		}
		target, err := c.resolve(stmt.Name)
		if err != nil {
			return err
		}
		sign := 1
		if stmt.Token.Type == token.SUB_ASSIGN {
			sign = -1
		}
		if v, ok := c.constEval(stmt.Value); ok {
			c.add(target.Addr, sign*int(v))
			return nil
		}
		// The value is copied out first, so x += x and x -= x behave
		// even though source and target alias.
		return c.scoped(func() error {
			t, err := c.evalOwned(stmt.Value)
			if err != nil {
				return err
			}
			return c.moveCell(t, target.Addr, sign)
		})

	default:
		return fmt.Errorf("unknown assignment operator %s", stmt.Token)
	}
}

func (c *Compiler) compileDeclaration(stmt *ast.AssignStatement, rest []ast.Statement) error {
	name := stmt.Name.Value
	if v, ok := c.constEval(stmt.Value); ok && !reassigned(name, rest) {
		// Fully known and never reassigned: no storage, no IR.
		c.env.Put(name, ConstantValue(v))
		return nil
	}
	addr := c.fresh()
	if err := c.evalInto(stmt.Value, addr); err != nil {
		return err
	}
	c.env.Put(name, OwnedValue(addr))
	return nil
}

func (c *Compiler) compileRead(stmt *ast.ReadStatement) error {
	c.note("%s", stmt.String())
	name := stmt.Name.Value
	v, bound := c.env.Get(name)
	if !bound {
		// read declares its operand; input overwrites the cell, so no
		// clearing is needed.
		addr := c.alloc.AllocateOwned()
		c.env.Put(name, OwnedValue(addr))
		c.inputAt(addr)
		return nil
	}
	if v.IsConstant() {
		panic("read into constant binding " + name)
	}
	target, err := c.resolve(stmt.Name)
	if err != nil {
		return err
	}
	c.inputAt(target.Addr)
	return nil
}

func (c *Compiler) compileWrite(stmt *ast.WriteStatement) error {
	c.note("%s", stmt.String())
	if id, ok := stmt.Value.(*ast.Identifier); ok {
		v, err := c.resolve(id)
		if err != nil {
			return err
		}
		if !v.IsConstant() {
			c.outputAt(v.Addr)
			return nil
		}
	}
	// Constants and compound expressions go through a scratch cell that is
	// released as soon as the byte is out.
	return c.scoped(func() error {
		t, err := c.evalOwned(stmt.Value)
		if err != nil {
			return err
		}
		c.outputAt(t)
		return nil
	})
}

// compilePrint walks the string through a single scratch cell, nudging it
// by the delta between consecutive bytes instead of rebuilding each
// character from zero.
func (c *Compiler) compilePrint(stmt *ast.PrintStatement) error {
	c.note("%s", stmt.String())
	if stmt.Value == "" {
		return nil
	}
	return c.scoped(func() error {
		scratch := c.fresh()
		prev := 0
		for i := 0; i < len(stmt.Value); i++ {
			b := int(stmt.Value[i])
			c.add(scratch, b-prev)
			c.outputAt(scratch)
			prev = b
		}
		c.zero(scratch)
		return nil
	})
}

func (c *Compiler) compileWhile(stmt *ast.WhileStatement) error {
	c.note("while %s", stmt.Condition.String())

	if v, ok := c.constEval(stmt.Condition); ok {
		if v == 0 {
			return nil
		}
		// Constant nonzero guard: a genuine infinite loop.
		return c.scoped(func() error {
			guard := c.fresh()
			c.add(guard, 1)
			return c.loopWhile(guard, func() error {
				return c.scoped(func() error {
					return c.compileBlock(stmt.Body.Statements)
				})
			})
		})
	}

	if id, ok := stmt.Condition.(*ast.Identifier); ok {
		guard, err := c.resolve(id)
		if err != nil {
			return err
		}
		return c.loopWhile(guard.Addr, func() error {
			return c.scoped(func() error {
				return c.compileBlock(stmt.Body.Statements)
			})
		})
	}

	// Compound predicate: evaluate into a dedicated guard cell and
	// re-evaluate it after each pass of the body.
	return c.scoped(func() error {
		guard := c.fresh()
		if err := c.evalInto(stmt.Condition, guard); err != nil {
			return err
		}
		return c.loopWhile(guard, func() error {
			if err := c.scoped(func() error {
				return c.compileBlock(stmt.Body.Statements)
			}); err != nil {
				return err
			}
			c.zero(guard)
			return c.evalInto(stmt.Condition, guard)
		})
	})
}

func (c *Compiler) compileIf(stmt *ast.IfStatement) error {
	c.note("if %s", stmt.Condition.String())

	if v, ok := c.constEval(stmt.Condition); ok {
		if v != 0 {
			return c.scoped(func() error {
				return c.compileBlock(stmt.Then.Statements)
			})
		}
		if stmt.Else != nil {
			return c.scoped(func() error {
				return c.compileBlock(stmt.Else.Statements)
			})
		}
		return nil
	}

	return c.scoped(func() error {
		cond, err := c.evalOwned(stmt.Condition)
		if err != nil {
			return err
		}
		var els func() error
		if stmt.Else != nil {
			els = func() error {
				return c.scoped(func() error {
					return c.compileBlock(stmt.Else.Statements)
				})
			}
		}
		then := func() error {
			return c.scoped(func() error {
				return c.compileBlock(stmt.Then.Statements)
			})
		}
		if els == nil {
			return c.loopWhile(cond, func() error {
				if err := then(); err != nil {
					return err
				}
				c.zero(cond)
				return nil
			})
		}
		flag := c.fresh()
		c.add(flag, 1)
		if err := c.loopWhile(cond, func() error {
			if err := then(); err != nil {
				return err
			}
			c.add(flag, -1)
			c.zero(cond)
			return nil
		}); err != nil {
			return err
		}
		return c.loopWhile(flag, func() error {
			if err := els(); err != nil {
				return err
			}
			c.add(flag, -1)
			return nil
		})
	})
}

// reassigned conservatively reports whether any later statement in the
// block (or a nested body) writes to name.
func reassigned(name string, stmts []ast.Statement) bool {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.AssignStatement:
			if s.Name.Value == name {
				return true
			}
		case *ast.ReadStatement:
			if s.Name.Value == name {
				return true
			}
		case *ast.BlockStatement:
			if reassigned(name, s.Statements) {
				return true
			}
		case *ast.WhileStatement:
			if reassigned(name, s.Body.Statements) {
				return true
			}
		case *ast.IfStatement:
			if reassigned(name, s.Then.Statements) {
				return true
			}
			if s.Else != nil && reassigned(name, s.Else.Statements) {
				return true
			}
		}
	}
	return false
}
