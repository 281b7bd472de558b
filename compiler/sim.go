package compiler

import "errors"

// ErrSimDiverged reports a simulated program that exceeded its step budget.
var ErrSimDiverged = errors.New("simulation exceeded step budget")

// simStepBudget bounds simulation so a buggy rewrite that turns a
// terminating program into a spinning one fails the test instead of
// hanging it.
const simStepBudget = 1 << 22

type simulator struct {
	tape  map[Address]uint8
	input []byte
	out   []byte
	steps int
}

// Simulate executes IR directly, without emission, and returns the bytes
// the program writes. Reads past the end of input see zero. Tests use it
// to check that rewritten programs behave like their originals.
func Simulate(p *Program, input []byte) ([]byte, error) {
	s := &simulator{tape: make(map[Address]uint8), input: input}
	if err := s.run(p); err != nil {
		return nil, err
	}
	return s.out, nil
}

func (s *simulator) run(p *Program) error {
	for _, in := range p.Instrs {
		s.steps++
		if s.steps > simStepBudget {
			return ErrSimDiverged
		}
		switch in.Op {
		case OpAdd:
			s.tape[in.Addr] += uint8(((in.Delta % 256) + 256) % 256)
		case OpZero:
			s.tape[in.Addr] = 0
		case OpInput:
			if len(s.input) > 0 {
				s.tape[in.Addr] = s.input[0]
				s.input = s.input[1:]
			} else {
				s.tape[in.Addr] = 0
			}
		case OpOutput:
			s.out = append(s.out, s.tape[in.Addr])
		case OpLoop:
			for s.tape[in.Addr] != 0 {
				if err := s.run(in.Body); err != nil {
					return err
				}
				s.steps++
				if s.steps > simStepBudget {
					return ErrSimDiverged
				}
			}
		case OpNote:
		}
	}
	return nil
}
