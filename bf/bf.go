// Package bf parses and interprets the single-tape target language: eight
// commands over a tape of wrapping byte cells, every other character a
// comment.
package bf

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrUnbalancedLoop reports a '[' without a matching ']' or the
	// reverse.
	ErrUnbalancedLoop = errors.New("unbalanced loop bracket")
	// ErrCursorOutOfRange reports a move left of the first cell.
	ErrCursorOutOfRange = errors.New("cursor moved out of range")
)

// Program is executable target code: the command characters plus a jump
// table pairing each bracket with its partner.
type Program struct {
	code  []byte
	jumps []int
}

// Parse strips comments from src and matches its brackets.
func Parse(src string) (*Program, error) {
	code := make([]byte, 0, len(src))
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '+', '-', '<', '>', '[', ']', ',', '.':
			code = append(code, src[i])
		}
	}

	jumps := make([]int, len(code))
	var stack []int
	for i, b := range code {
		switch b {
		case '[':
			stack = append(stack, i)
		case ']':
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: ']' at command %d", ErrUnbalancedLoop, i)
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			jumps[open] = i
			jumps[i] = open
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: '[' at command %d", ErrUnbalancedLoop, stack[len(stack)-1])
	}
	return &Program{code: code, jumps: jumps}, nil
}

// Len returns the number of commands after comment stripping.
func (p *Program) Len() int { return len(p.code) }

// Interpreter executes a parsed Program. The tape starts as a single zero
// cell and grows to the right on demand; cells wrap modulo 256.
type Interpreter struct {
	prog  *Program
	tape  []uint8
	ptr   int
	in    io.Reader
	out   io.Writer
	steps uint64
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithInput sets the reader backing the ',' command. Reading past its end
// leaves the cell at zero.
func WithInput(r io.Reader) Option {
	return func(i *Interpreter) { i.in = r }
}

// WithOutput sets the writer receiving '.' bytes.
func WithOutput(w io.Writer) Option {
	return func(i *Interpreter) { i.out = w }
}

func NewInterpreter(prog *Program, opts ...Option) *Interpreter {
	i := &Interpreter{
		prog: prog,
		tape: make([]uint8, 1),
		in:   eofReader{},
		out:  io.Discard,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run executes the program to completion.
func (i *Interpreter) Run() error {
	code, jumps := i.prog.code, i.prog.jumps
	for pc := 0; pc < len(code); pc++ {
		i.steps++
		switch code[pc] {
		case '+':
			i.tape[i.ptr]++
		case '-':
			i.tape[i.ptr]--
		case '>':
			i.ptr++
			if i.ptr == len(i.tape) {
				i.tape = append(i.tape, 0)
			}
		case '<':
			i.ptr--
			if i.ptr < 0 {
				return fmt.Errorf("%w: at command %d", ErrCursorOutOfRange, pc)
			}
		case '[':
			if i.tape[i.ptr] == 0 {
				pc = jumps[pc]
			}
		case ']':
			if i.tape[i.ptr] != 0 {
				pc = jumps[pc]
			}
		case ',':
			var buf [1]byte
			n, err := i.in.Read(buf[:])
			switch {
			case n == 1:
				i.tape[i.ptr] = buf[0]
			case err == io.EOF || err == nil:
				i.tape[i.ptr] = 0
			default:
				return fmt.Errorf("reading input: %w", err)
			}
		case '.':
			if _, err := i.out.Write([]byte{i.tape[i.ptr]}); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		}
	}
	return nil
}

// Steps returns the number of commands executed so far.
func (i *Interpreter) Steps() uint64 { return i.steps }

// Tape returns the live tape. Useful for inspecting final state in tests.
func (i *Interpreter) Tape() []uint8 { return i.tape }

// Run parses and executes src in one call.
func Run(src string, in io.Reader, out io.Writer) error {
	prog, err := Parse(src)
	if err != nil {
		return err
	}
	return NewInterpreter(prog, WithInput(in), WithOutput(out)).Run()
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
