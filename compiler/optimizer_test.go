package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func cloneProgram(p *Program) *Program {
	out := &Program{Instrs: make([]*Instr, 0, len(p.Instrs))}
	for _, in := range p.Instrs {
		dup := *in
		if in.Body != nil {
			dup.Body = cloneProgram(in.Body)
		}
		out.Append(&dup)
	}
	return out
}

// optimizerPrograms is the corpus for the preservation and idempotence
// properties: enough variety to exercise every pass.
var optimizerPrograms = []struct {
	name  string
	src   string
	input []byte
}{
	{"countdown", "read x\nwhile x {\n    write x\n    x -= 1\n}", []byte{4}},
	{"arith", "read a\nread b\nwrite a + b - 1", []byte{100, 50}},
	{"compare", "read a\nread b\nwrite a <= b\nwrite a == b", []byte{3, 9}},
	{"ifelse", "read x\nif x { print \"Y\" } else { print \"N\" }\nwrite x", []byte{0}},
	{"blocks", "{ a = 1\na += 1\nwrite a }\n{ b = 5\nb -= 1\nwrite b }", nil},
	{"alias", "read x\nx += x\nwrite x", []byte{40}},
	{"selfref", "read x\nread y\ny = x - y\nx = x + 1\nwrite x\nwrite y", []byte{9, 4}},
	{"logic", "read a\nread b\nwrite a & b\nwrite a | b\nwrite !a", []byte{0, 7}},
	{"print", "print \"hello\"", nil},
}

func TestOptimizerPreservesSemantics(t *testing.T) {
	for _, tt := range optimizerPrograms {
		t.Run(tt.name, func(t *testing.T) {
			c, ir := lowerSource(t, tt.src, Options{})
			before, err := Simulate(cloneProgram(ir), tt.input)
			require.NoError(t, err)

			c.Optimize(ir)
			after, err := Simulate(ir, tt.input)
			require.NoError(t, err)

			require.Equal(t, before, after)
		})
	}
}

func TestOptimizerIdempotent(t *testing.T) {
	for _, tt := range optimizerPrograms {
		t.Run(tt.name, func(t *testing.T) {
			c, ir := lowerSource(t, tt.src, Options{})
			c.Optimize(ir)
			once := ir.String()
			lenOnce := ir.Len()

			c.Optimize(ir)
			require.Equal(t, lenOnce, ir.Len())
			require.Equal(t, once, ir.String())
		})
	}
}

func TestOptimizerShrinksOrKeeps(t *testing.T) {
	for _, tt := range optimizerPrograms {
		c, ir := lowerSource(t, tt.src, Options{})
		before := ir.Len()
		c.Optimize(ir)
		require.LessOrEqual(t, ir.Len(), before, tt.name)
	}
}

// withCells returns a compiler whose allocator has handed out n cells in an
// already-exited scope, for building IR by hand over released scratch
// storage.
func withCells(n int) *Compiler {
	c := New(Options{})
	s := c.alloc.EnterScope()
	for i := 0; i < n; i++ {
		c.alloc.AllocateOwned()
	}
	if err := c.alloc.ExitScope(s); err != nil {
		panic(err)
	}
	return c
}

func TestDeadStoreElimination(t *testing.T) {
	c := withCells(2)
	p := &Program{}
	p.Append(Add(0, 5))
	p.Append(Output(0))
	p.Append(Add(1, 3)) // never read
	p.Append(Add(0, 2)) // never read after the output

	c.Optimize(p)
	require.Equal(t, 2, p.Len())
	require.Equal(t, OpAdd, p.Instrs[0].Op)
	require.Equal(t, OpOutput, p.Instrs[1].Op)
}

func TestFinalStoreToLiveCellKept(t *testing.T) {
	c := New(Options{})
	c.alloc.AllocateOwned() // root scope: still live at program end
	p := &Program{}
	p.Append(Input(0))
	p.Append(Add(0, 1)) // never read again, but the final value is observable

	c.Optimize(p)
	require.Equal(t, 2, p.Len())
}

func TestDeadStoreKeepsInput(t *testing.T) {
	c := withCells(1)
	p := &Program{}
	p.Append(Input(0)) // consumes a byte even though nothing reads the cell

	c.Optimize(p)
	require.Equal(t, 1, p.Len())
	require.Equal(t, OpInput, p.Instrs[0].Op)
}

func TestRedundantZeroElimination(t *testing.T) {
	c := withCells(2)
	p := &Program{}
	p.Append(Zero(0)) // tape starts zeroed
	p.Append(Add(0, 4))
	p.Append(Output(0))
	p.Append(Zero(1)) // never written, still zero
	p.Append(Output(1))

	c.Optimize(p)
	require.Equal(t, 3, p.Len())
	for _, in := range p.Instrs {
		require.NotEqual(t, OpZero, in.Op)
	}
}

func TestNecessaryZeroKept(t *testing.T) {
	c := withCells(1)
	p := &Program{}
	p.Append(Add(0, 4))
	p.Append(Zero(0))
	p.Append(Add(0, 1))
	p.Append(Output(0))

	c.Optimize(p)
	out, err := Simulate(p, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, out)
}

func TestZeroAfterLoopRemoved(t *testing.T) {
	// A loop's guard is zero once the loop exits, so a clear right after
	// it is redundant.
	c := withCells(1)
	body := &Program{}
	body.Append(Add(0, -1))
	p := &Program{}
	p.Append(Add(0, 3))
	p.Append(Loop(0, body))
	p.Append(Zero(0))
	p.Append(Add(0, 1))
	p.Append(Output(0))

	c.Optimize(p)
	for _, in := range p.Instrs {
		require.NotEqual(t, OpZero, in.Op)
	}
	out, err := Simulate(p, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, out)
}

func TestDeltaCoalescing(t *testing.T) {
	c := withCells(1)
	p := &Program{}
	p.Append(Add(0, 2))
	p.Append(Note("setup"))
	p.Append(Add(0, 3))
	p.Append(Output(0))

	c.Optimize(p)
	require.Equal(t, 2, p.Len())
	out, err := Simulate(p, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{5}, out)
}

func TestCancellingDeltasDropped(t *testing.T) {
	c := withCells(2)
	p := &Program{}
	p.Append(Add(0, 2))
	p.Append(Add(0, -2))
	p.Append(Output(1))

	c.Optimize(p)
	require.Equal(t, 1, p.Len())
	require.Equal(t, OpOutput, p.Instrs[0].Op)
}

func TestNeverRunLoopDropped(t *testing.T) {
	c := withCells(2)
	body := &Program{}
	body.Append(Add(1, 1))
	p := &Program{}
	p.Append(Loop(0, body)) // cell 0 untouched, provably zero
	p.Append(Output(1))

	c.Optimize(p)
	require.Equal(t, 1, p.Len())
	require.Equal(t, OpOutput, p.Instrs[0].Op)
}

func TestZeroInsideLoopKept(t *testing.T) {
	// The clear in the body is redundant on entry but not on the second
	// iteration, so it must stay.
	c := withCells(2)
	body := &Program{}
	body.Append(Zero(1))
	body.Append(Add(1, 1))
	body.Append(Output(1))
	body.Append(Add(0, -1))
	p := &Program{}
	p.Append(Add(0, 2))
	p.Append(Loop(0, body))

	c.Optimize(p)
	out, err := Simulate(p, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 1}, out)
}

func TestFreshCellCleanMeansZero(t *testing.T) {
	// When the allocator reports a cell clean at allocation, the cell must
	// actually simulate to zero: lowering writes through the primitives
	// that keep the flag honest.
	src := "read x\nwhile x { x -= 1 }\ny = x + 1\nwrite y"
	c, ir := lowerSource(t, src, Options{})
	require.True(t, c.Allocator().Balanced())

	out, err := Simulate(ir, []byte{200})
	require.NoError(t, err)
	require.Equal(t, []byte{1}, out)
}

func TestVerifyAddressRange(t *testing.T) {
	c := withCells(1)
	p := &Program{}
	p.Append(Add(5, 1)) // address never allocated
	p.Append(Output(5))

	require.Panics(t, func() { c.Optimize(p) })
}
