package vm

import (
	"fmt"

	. "github.com/Heliodex/minilua/types"
)

type verifier struct {
	p    *Proto
	regs int
	pc   int
}

func (v *verifier) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at pc %d: %s", ErrFormat, v.p.Code[v.pc].Op(), v.pc, fmt.Sprintf(format, args...))
}

func (v *verifier) reg(r int) error {
	if r >= v.regs {
		return v.errorf("register %d out of range (%d registers)", r, v.regs)
	}
	return nil
}

func (v *verifier) k(x int) error {
	if x >= len(v.p.K) {
		return v.errorf("constant %d out of range (%d constants)", x, len(v.p.K))
	}
	return nil
}

func (v *verifier) rk(x int) error {
	if IsK(x) {
		return v.k(IndexK(x))
	}
	return v.reg(x)
}

func (v *verifier) jump(sbx int) error {
	if to := v.pc + 1 + sbx; to < 0 || to >= len(v.p.Code) {
		return v.errorf("jump to %d outside code", to)
	}
	return nil
}

func first(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (v *verifier) inst(i Inst) error {
	switch op := i.Op(); op {
	case OpMove, OpUnm, OpNot:
		return first(v.reg(i.A()), v.reg(i.B()))
	case OpLoadK:
		return first(v.reg(i.A()), v.k(i.Bx()))
	case OpAdd, OpSub, OpMul, OpMod, OpPow, OpDiv, OpIDiv:
		return first(v.reg(i.A()), v.rk(i.B()), v.rk(i.C()))
	case OpEq, OpLt, OpLe:
		return first(v.rk(i.B()), v.rk(i.C()))
	case OpJmp:
		return v.jump(i.SBx())
	case OpForLoop, OpForPrep:
		return first(v.reg(i.A()+3), v.jump(i.SBx()))
	case OpReturn:
		if b := i.B(); b > 0 && i.A()+b-1 > v.regs {
			return v.errorf("returns %d values from register %d (%d registers)", b-1, i.A(), v.regs)
		}
	}
	// anything else fails when it runs
	return nil
}

// Verify checks that every operand of the implemented instructions stays inside the register file and constant pool, and that jumps land inside the code.
func Verify(p *Proto) error {
	v := &verifier{p: p, regs: int(p.MaxStackSize)}
	if len(p.Code) == 0 {
		return fmt.Errorf("%w: empty code", ErrFormat)
	}

	for v.pc = range p.Code {
		if err := v.inst(p.Code[v.pc]); err != nil {
			return err
		}
	}
	return nil
}
