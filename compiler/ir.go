package compiler

import (
	"fmt"
	"strings"
)

// Op enumerates the abstract tape operations. The IR carries no cursor
// position; the emitter derives movement from the address each instruction
// references, so the same IR is replayable under different scheduling
// strategies.
type Op int

const (
	OpAdd    Op = iota // add a constant delta to the cell at Addr
	OpZero             // set the cell at Addr to zero
	OpLoop             // run Body while the cell at Addr is nonzero
	OpInput            // read one byte of input into Addr
	OpOutput           // write the byte at Addr to output
	OpNote             // non-executable annotation, debug emission only
)

type Instr struct {
	Op    Op
	Addr  Address
	Delta int      // OpAdd only; cells wrap modulo 256
	Body  *Program // OpLoop only; owned by the loop, destroyed with it
	Text  string   // OpNote only
}

func Add(addr Address, delta int) *Instr { return &Instr{Op: OpAdd, Addr: addr, Delta: delta} }

func Zero(addr Address) *Instr { return &Instr{Op: OpZero, Addr: addr} }

func Loop(addr Address, b *Program) *Instr { return &Instr{Op: OpLoop, Addr: addr, Body: b} }

func Input(addr Address) *Instr { return &Instr{Op: OpInput, Addr: addr} }

func Output(addr Address) *Instr { return &Instr{Op: OpOutput, Addr: addr} }

func Note(text string) *Instr { return &Instr{Op: OpNote, Text: text} }

// Program is an ordered sequence of IR instructions.
type Program struct {
	Instrs []*Instr
}

func (p *Program) Append(in *Instr) {
	p.Instrs = append(p.Instrs, in)
}

// Len counts executable instructions, recursing into loop bodies.
// Annotations do not count; the optimizer's fixpoint test relies on that.
func (p *Program) Len() int {
	n := 0
	for _, in := range p.Instrs {
		switch in.Op {
		case OpNote:
		case OpLoop:
			n += 1 + in.Body.Len()
		default:
			n++
		}
	}
	return n
}

// UsedAddresses collects every address the program mentions.
func (p *Program) UsedAddresses() map[Address]bool {
	used := map[Address]bool{}
	p.collectUsed(used)
	return used
}

func (p *Program) collectUsed(used map[Address]bool) {
	for _, in := range p.Instrs {
		switch in.Op {
		case OpNote:
		case OpLoop:
			used[in.Addr] = true
			in.Body.collectUsed(used)
		default:
			used[in.Addr] = true
		}
	}
}

// ModifiedAddresses collects every address the program may write. A loop
// modifies its guard (it is zero once the loop exits) as well as whatever
// its body modifies.
func (p *Program) ModifiedAddresses() map[Address]bool {
	mod := map[Address]bool{}
	p.collectModified(mod)
	return mod
}

func (p *Program) collectModified(mod map[Address]bool) {
	for _, in := range p.Instrs {
		switch in.Op {
		case OpAdd, OpZero, OpInput:
			mod[in.Addr] = true
		case OpLoop:
			mod[in.Addr] = true
			in.Body.collectModified(mod)
		}
	}
}

func (p *Program) String() string {
	var sb strings.Builder
	p.dump(&sb, 0)
	return sb.String()
}

func (p *Program) dump(sb *strings.Builder, indent int) {
	pad := strings.Repeat("    ", indent)
	for _, in := range p.Instrs {
		switch in.Op {
		case OpAdd:
			fmt.Fprintf(sb, "%s&%d += %d\n", pad, in.Addr, in.Delta)
		case OpZero:
			fmt.Fprintf(sb, "%s&%d = 0\n", pad, in.Addr)
		case OpInput:
			fmt.Fprintf(sb, "%s&%d = read()\n", pad, in.Addr)
		case OpOutput:
			fmt.Fprintf(sb, "%swrite(&%d)\n", pad, in.Addr)
		case OpNote:
			fmt.Fprintf(sb, "%s# %s\n", pad, in.Text)
		case OpLoop:
			fmt.Fprintf(sb, "%swhile &%d {\n", pad, in.Addr)
			in.Body.dump(sb, indent+1)
			fmt.Fprintf(sb, "%s}\n", pad)
		}
	}
}
