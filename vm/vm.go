// Package vm executes Lua 5.3 function prototypes.
package vm

import (
	"fmt"

	. "github.com/Heliodex/minilua/types"
)

// State is one interpretation of a prototype. Registers belong to the state alone.
type State struct {
	Proto     *Proto
	Registers []Val

	// set by RETURN, half-open
	ReturnBegin, ReturnEnd int
}

// StepFunc executes a single non-RETURN instruction and reports the pc offset to apply on top of the usual +1.
// Any replacement for Step must produce the same registers and offsets.
type StepFunc func(s *State, i Inst, op OpCode, k []Val) (int, error)

// Error is a runtime error with the location it happened at.
type Error struct {
	Source string
	PC     int
	Op     OpCode
	Sub    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s\n%s", e.Source, e.PC, e.Op, e.Sub)
}

func (e *Error) Unwrap() error {
	return e.Sub
}

// NewState checks p and allocates its register file.
func NewState(p *Proto) (*State, error) {
	if err := Verify(p); err != nil {
		return nil, err
	}

	s := &State{
		Proto:     p,
		Registers: make([]Val, p.MaxStackSize),
	}
	s.Reset()
	return s, nil
}

// Reset clears all registers back to nil, ready for another run.
func (s *State) Reset() {
	for i := range s.Registers {
		s.Registers[i] = Nil{}
	}
	s.ReturnBegin, s.ReturnEnd = 0, 0
}

// Returns gives the values of the last RETURN.
func (s *State) Returns() []Val {
	return s.Registers[s.ReturnBegin:s.ReturnEnd]
}

func (s *State) forLoop(a, sbx int) (int, error) {
	r := s.Registers

	idx, err := Arith(OpAdd, r[a], r[a+2])
	if err != nil {
		return 0, err
	}
	r[a] = idx

	// always <=, descending loops just fall through
	ok, err := Le(idx, r[a+1])
	if err != nil {
		return 0, err
	} else if !ok {
		return 0, nil
	}

	r[a+3] = idx
	return sbx, nil
}

func (s *State) forPrep(a, sbx int) (int, error) {
	r := s.Registers

	idx, err := Arith(OpSub, r[a], r[a+2])
	if err != nil {
		return 0, err
	}
	r[a] = idx
	return sbx, nil
}

// Step is the interpreter's StepFunc.
func Step(s *State, i Inst, op OpCode, k []Val) (int, error) {
	r := s.Registers

	switch op {
	case OpMove:
		r[i.A()] = r[i.B()]
	case OpLoadK:
		r[i.A()] = k[i.Bx()]
	case OpAdd, OpSub, OpMul, OpMod, OpPow, OpDiv, OpIDiv:
		v, err := Arith(op, RK(i.B(), r, k), RK(i.C(), r, k))
		if err != nil {
			return 0, err
		}
		r[i.A()] = v
	case OpUnm:
		v, err := Unm(r[i.B()])
		if err != nil {
			return 0, err
		}
		r[i.A()] = v
	case OpNot:
		r[i.A()] = Not(r[i.B()])
	case OpJmp:
		// A would close upvalues, there are none
		return i.SBx(), nil
	case OpEq:
		if Eq(RK(i.B(), r, k), RK(i.C(), r, k)) != (i.A() != 0) {
			return 1, nil
		}
	case OpLt, OpLe:
		cmp := Lt
		if op == OpLe {
			cmp = Le
		}

		res, err := cmp(RK(i.B(), r, k), RK(i.C(), r, k))
		if err != nil {
			return 0, err
		} else if res != (i.A() != 0) {
			return 1, nil
		}
	case OpForLoop:
		return s.forLoop(i.A(), i.SBx())
	case OpForPrep:
		return s.forPrep(i.A(), i.SBx())
	default:
		return 0, fmt.Errorf("%w: opcode %s", ErrNotImplemented, op)
	}
	return 0, nil
}

func (s *State) ret(i Inst) error {
	b := i.B()
	if b == 0 {
		return fmt.Errorf("%w: RETURN with b == 0", ErrNotImplemented)
	}

	s.ReturnBegin = i.A()
	s.ReturnEnd = i.A() + b - 1
	return nil
}

// Run executes the prototype from the first instruction until RETURN, using step for everything else.
// There's no limit on the number of instructions executed.
func (s *State) Run(step StepFunc) error {
	code, k := s.Proto.Code, s.Proto.K

	for pc := 0; ; {
		if pc < 0 || pc >= len(code) {
			return fmt.Errorf("%s:%d: %w: ran off the end of the code", s.Proto.Source, pc, ErrFormat)
		}

		i := code[pc]
		op := i.Op()
		if op == OpReturn {
			if err := s.ret(i); err != nil {
				return &Error{s.Proto.Source, pc, op, err}
			}
			return nil
		}

		offset, err := step(s, i, op, k)
		if err != nil {
			return &Error{s.Proto.Source, pc, op, err}
		}
		pc += 1 + offset
	}
}

// Interpret runs the prototype with the built-in Step.
func (s *State) Interpret() error {
	return s.Run(Step)
}

// Execute loads a fresh state for p, runs it, and returns the values it returned.
func Execute(p *Proto) ([]Val, error) {
	s, err := NewState(p)
	if err != nil {
		return nil, err
	}
	if err = s.Interpret(); err != nil {
		return nil, err
	}
	return s.Returns(), nil
}
