package compiler

import "strings"

// Emitter flattens address-indexed IR into target text. It tracks the
// cursor position so every instruction becomes a relative walk followed by
// the operation, and every loop body ends with the cursor back on the
// guard cell.
type Emitter struct {
	sb     strings.Builder
	cursor Address
	debug  bool
}

// Emit renders p to target source. Annotations are dropped unless debug
// emission was requested, so hand-built IR carrying notes still produces
// command-only output by default.
func (c *Compiler) Emit(p *Program) string {
	e := &Emitter{debug: c.opts.Debug}
	e.program(p)
	return e.sb.String()
}

func (e *Emitter) program(p *Program) {
	for _, in := range p.Instrs {
		e.instr(in)
	}
}

func (e *Emitter) instr(in *Instr) {
	switch in.Op {
	case OpAdd:
		e.moveTo(in.Addr)
		reps := ((in.Delta % 256) + 256) % 256
		if reps > 128 {
			e.repeat('-', 256-reps)
		} else {
			e.repeat('+', reps)
		}
	case OpZero:
		e.moveTo(in.Addr)
		e.sb.WriteString("[-]")
	case OpInput:
		e.moveTo(in.Addr)
		e.sb.WriteByte(',')
	case OpOutput:
		e.moveTo(in.Addr)
		e.sb.WriteByte('.')
	case OpLoop:
		e.moveTo(in.Addr)
		e.sb.WriteByte('[')
		e.program(in.Body)
		e.moveTo(in.Addr)
		e.sb.WriteByte(']')
	case OpNote:
		if e.debug {
			e.note(in.Text)
		}
	}
}

func (e *Emitter) moveTo(addr Address) {
	for e.cursor < addr {
		e.sb.WriteByte('>')
		e.cursor++
	}
	for e.cursor > addr {
		e.sb.WriteByte('<')
		e.cursor--
	}
}

func (e *Emitter) repeat(b byte, n int) {
	for i := 0; i < n; i++ {
		e.sb.WriteByte(b)
	}
}

// note writes annotation text as a comment. Characters that are commands
// in the target language are stripped so an annotation can never change
// what the program does.
func (e *Emitter) note(text string) {
	var clean strings.Builder
	for _, r := range text {
		switch r {
		case '+', '-', '<', '>', '[', ']', ',', '.':
		default:
			clean.WriteRune(r)
		}
	}
	e.sb.WriteByte('\n')
	e.sb.WriteString(clean.String())
	e.sb.WriteByte('\n')
}
