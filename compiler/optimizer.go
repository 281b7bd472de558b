package compiler

import "fmt"

// Optimize runs the rewrite passes over p until the executable instruction
// count stops shrinking, then verifies the result against the allocator's
// address range. Every pass preserves the observable behavior of the
// program: the bytes written to output, and the final value of every
// address still owned by a live scope.
func (c *Compiler) Optimize(p *Program) {
	for {
		before := p.Len()
		elimDeadStores(p, c.alloc.LiveAddresses())
		elimRedundantZeros(p, map[Address]bool{})
		coalesceDeltas(p)
		if p.Len() >= before {
			break
		}
	}
	c.verifyAddressRange(p)
}

// elimDeadStores removes writes to addresses that are never read again.
// liveAfter is the set of addresses that may be read after p finishes.
// Loops are treated conservatively: anything a loop body mentions is live
// across it, and a loop kills nothing because it may run zero times.
func elimDeadStores(p *Program, liveAfter map[Address]bool) {
	live := make(map[Address]bool, len(liveAfter))
	for a := range liveAfter {
		live[a] = true
	}

	kept := make([]*Instr, 0, len(p.Instrs))
	for i := len(p.Instrs) - 1; i >= 0; i-- {
		in := p.Instrs[i]
		switch in.Op {
		case OpAdd:
			if !live[in.Addr] {
				continue
			}
		case OpZero:
			if !live[in.Addr] {
				continue
			}
			delete(live, in.Addr)
		case OpInput:
			// Kept even when the cell is dead: it consumes a byte of
			// the input stream.
			delete(live, in.Addr)
		case OpOutput:
			live[in.Addr] = true
		case OpLoop:
			bodyLive := make(map[Address]bool, len(live))
			for a := range live {
				bodyLive[a] = true
			}
			for a := range in.Body.UsedAddresses() {
				bodyLive[a] = true
			}
			bodyLive[in.Addr] = true
			elimDeadStores(in.Body, bodyLive)
			for a := range bodyLive {
				live[a] = true
			}
		}
		kept = append(kept, in)
	}

	// kept was built back to front
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	p.Instrs = kept

	for a := range live {
		liveAfter[a] = true
	}
}

// elimRedundantZeros removes clears of cells already known to hold zero,
// tracking zero-ness forward from program start. touched marks addresses
// whose value is no longer the tape's initial zero; an address absent from
// it is provably zero. A loop whose guard is provably zero never runs and
// is dropped whole.
func elimRedundantZeros(p *Program, touched map[Address]bool) {
	kept := p.Instrs[:0]
	for _, in := range p.Instrs {
		switch in.Op {
		case OpZero:
			if !touched[in.Addr] {
				continue
			}
			delete(touched, in.Addr)
		case OpAdd:
			touched[in.Addr] = true
		case OpInput:
			touched[in.Addr] = true
		case OpLoop:
			if !touched[in.Addr] {
				continue
			}
			// Entry state for the body must hold for every iteration,
			// so anything the body modifies is unknown inside it.
			for a := range in.Body.ModifiedAddresses() {
				touched[a] = true
			}
			elimRedundantZeros(in.Body, touched)
			for a := range in.Body.ModifiedAddresses() {
				touched[a] = true
			}
			delete(touched, in.Addr)
		}
		kept = append(kept, in)
	}
	p.Instrs = kept
}

// coalesceDeltas folds runs of additions to the same address into one
// instruction, modulo the cell width, dropping the run when it cancels out.
// Annotations do not break a run.
func coalesceDeltas(p *Program) {
	kept := p.Instrs[:0]
	for _, in := range p.Instrs {
		if in.Op == OpLoop {
			coalesceDeltas(in.Body)
		}
		if in.Op == OpAdd {
			if prev := lastAdd(kept, in.Addr); prev != nil {
				prev.Delta = (prev.Delta + in.Delta) % 256
				continue
			}
			in.Delta %= 256
		}
		kept = append(kept, in)
	}

	// Drop the runs that cancelled to zero.
	out := kept[:0]
	for _, in := range kept {
		if in.Op == OpAdd && in.Delta == 0 {
			continue
		}
		out = append(out, in)
	}
	p.Instrs = out
}

// lastAdd returns the trailing addition to addr in instrs, looking through
// annotations only.
func lastAdd(instrs []*Instr, addr Address) *Instr {
	for i := len(instrs) - 1; i >= 0; i-- {
		in := instrs[i]
		if in.Op == OpNote {
			continue
		}
		if in.Op == OpAdd && in.Addr == addr {
			return in
		}
		return nil
	}
	return nil
}

// verifyAddressRange checks that the optimized program only touches
// addresses the allocator handed out. A violation means a rewrite pass
// invented storage, which is a bug in this package, not in user code.
func (c *Compiler) verifyAddressRange(p *Program) {
	limit := c.alloc.HighWater()
	for addr := range p.UsedAddresses() {
		if addr < 0 || addr >= limit {
			panic(fmt.Sprintf("optimizer produced out of range address %d (allocated cells: %d)", addr, limit))
		}
	}
}
