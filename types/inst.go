package types

import "fmt"

/*
All instructions are unsigned 32-bit words with the opcode in the low 6 bits.

	+---+---+---+----+
	| B | C | A | OP |    iABC
	+---+---+---+----+
	  9   9   8   6

	+-------+---+----+
	|   Bx  | A | OP |    iABx, iAsBx
	+-------+---+----+
	    18    8   6

	+-----------+----+
	|     Ax    | OP |    iAx
	+-----------+----+
	      26      6

sBx is stored in excess-K: the raw Bx minus MaxArgSBx, so 0 is the most negative offset.
*/

const (
	SizeC  = 9
	SizeB  = 9
	SizeBx = SizeC + SizeB
	SizeA  = 8
	SizeAx = SizeC + SizeB + SizeA
	SizeOp = 6

	PosOp = 0
	PosA  = PosOp + SizeOp
	PosC  = PosA + SizeA
	PosB  = PosC + SizeC
	PosBx = PosC
	PosAx = PosA

	MaxArgA   = 1<<SizeA - 1
	MaxArgB   = 1<<SizeB - 1
	MaxArgC   = 1<<SizeC - 1
	MaxArgAx  = 1<<SizeAx - 1
	MaxArgBx  = 1<<SizeBx - 1
	MaxArgSBx = MaxArgBx >> 1

	// BitRK set in a B or C field means the field indexes the constant pool
	BitRK = 1 << (SizeB - 1)
)

// Inst is a raw Lua 5.3 instruction word.
type Inst uint32

func (i Inst) Op() OpCode { return OpCode(i >> PosOp & (1<<SizeOp - 1)) }
func (i Inst) A() int     { return int(i >> PosA & MaxArgA) }
func (i Inst) B() int     { return int(i >> PosB & MaxArgB) }
func (i Inst) C() int     { return int(i >> PosC & MaxArgC) }
func (i Inst) Bx() int    { return int(i >> PosBx & MaxArgBx) }
func (i Inst) SBx() int   { return i.Bx() - MaxArgSBx }
func (i Inst) Ax() int    { return int(i >> PosAx & MaxArgAx) }

// ABC builds an iABC instruction. Fields are masked to their widths.
func ABC(op OpCode, a, b, c int) Inst {
	return Inst(op)&(1<<SizeOp-1)<<PosOp |
		Inst(a&MaxArgA)<<PosA |
		Inst(b&MaxArgB)<<PosB |
		Inst(c&MaxArgC)<<PosC
}

// ABx builds an iABx instruction.
func ABx(op OpCode, a, bx int) Inst {
	return Inst(op)&(1<<SizeOp-1)<<PosOp |
		Inst(a&MaxArgA)<<PosA |
		Inst(bx&MaxArgBx)<<PosBx
}

// AsBx builds an iAsBx instruction from a signed offset.
func AsBx(op OpCode, a, sbx int) Inst {
	return ABx(op, a, sbx+MaxArgSBx)
}

// Ax builds an iAx instruction.
func Ax(op OpCode, ax int) Inst {
	return Inst(op)&(1<<SizeOp-1)<<PosOp | Inst(ax&MaxArgAx)<<PosAx
}

// IsK reports whether an RK field addresses a constant.
func IsK(x int) bool { return x&BitRK != 0 }

// IndexK strips the constant bit from an RK field.
func IndexK(x int) int { return x &^ BitRK }

// RKAsK encodes a constant index as an RK field.
func RKAsK(x int) int { return x | BitRK }

// RK resolves an RK field against a register file and a constant pool.
func RK(x int, registers, k []Val) Val {
	if IsK(x) {
		return k[IndexK(x)]
	}
	return registers[x]
}

// OpCode is a Lua 5.3 opcode.
type OpCode uint8

const (
	OpMove     OpCode = iota // A B     R(A) := R(B)
	OpLoadK                  // A Bx    R(A) := Kst(Bx)
	OpLoadKX                 // A       R(A) := Kst(extra arg)
	OpLoadBool               // A B C   R(A) := (Bool)B; if (C) pc++
	OpLoadNil                // A B     R(A), R(A+1), ..., R(A+B) := nil
	OpGetUpval               // A B     R(A) := UpValue[B]
	OpGetTabUp               // A B C   R(A) := UpValue[B][RK(C)]
	OpGetTable               // A B C   R(A) := R(B)[RK(C)]
	OpSetTabUp               // A B C   UpValue[A][RK(B)] := RK(C)
	OpSetUpval               // A B     UpValue[B] := R(A)
	OpSetTable               // A B C   R(A)[RK(B)] := RK(C)
	OpNewTable               // A B C   R(A) := {} (size = B,C)
	OpSelf                   // A B C   R(A+1) := R(B); R(A) := R(B)[RK(C)]
	OpAdd                    // A B C   R(A) := RK(B) + RK(C)
	OpSub                    // A B C   R(A) := RK(B) - RK(C)
	OpMul                    // A B C   R(A) := RK(B) * RK(C)
	OpMod                    // A B C   R(A) := RK(B) % RK(C)
	OpPow                    // A B C   R(A) := RK(B) ^ RK(C)
	OpDiv                    // A B C   R(A) := RK(B) / RK(C)
	OpIDiv                   // A B C   R(A) := RK(B) // RK(C)
	OpBAnd                   // A B C   R(A) := RK(B) & RK(C)
	OpBOr                    // A B C   R(A) := RK(B) | RK(C)
	OpBXor                   // A B C   R(A) := RK(B) ~ RK(C)
	OpShl                    // A B C   R(A) := RK(B) << RK(C)
	OpShr                    // A B C   R(A) := RK(B) >> RK(C)
	OpUnm                    // A B     R(A) := -R(B)
	OpBNot                   // A B     R(A) := ~R(B)
	OpNot                    // A B     R(A) := not R(B)
	OpLen                    // A B     R(A) := length of R(B)
	OpConcat                 // A B C   R(A) := R(B).. ... ..R(C)
	OpJmp                    // A sBx   pc+=sBx; if (A) close all upvalues >= R(A - 1)
	OpEq                     // A B C   if ((RK(B) == RK(C)) ~= A) then pc++
	OpLt                     // A B C   if ((RK(B) <  RK(C)) ~= A) then pc++
	OpLe                     // A B C   if ((RK(B) <= RK(C)) ~= A) then pc++
	OpTest                   // A C     if not (R(A) <=> C) then pc++
	OpTestSet                // A B C   if (R(B) <=> C) then R(A) := R(B) else pc++
	OpCall                   // A B C   R(A), ... ,R(A+C-2) := R(A)(R(A+1), ... ,R(A+B-1))
	OpTailCall               // A B C   return R(A)(R(A+1), ... ,R(A+B-1))
	OpReturn                 // A B     return R(A), ... ,R(A+B-2)
	OpForLoop                // A sBx   R(A)+=R(A+2); if R(A) <?= R(A+1) then { pc+=sBx; R(A+3)=R(A) }
	OpForPrep                // A sBx   R(A)-=R(A+2); pc+=sBx
	OpTForCall               // A C     R(A+3), ... ,R(A+2+C) := R(A)(R(A+1), R(A+2))
	OpTForLoop               // A sBx   if R(A+1) ~= nil then { R(A)=R(A+1); pc += sBx }
	OpSetList                // A B C   R(A)[(C-1)*FPF+i] := R(A+i), 1 <= i <= B
	OpClosure                // A Bx    R(A) := closure(KPROTO[Bx])
	OpVararg                 // A B     R(A), R(A+1), ..., R(A+B-2) = vararg
	OpExtraArg               // Ax      extra (larger) argument for previous opcode

	NumOpCodes = int(OpExtraArg) + 1
)

var opNames = [NumOpCodes]string{
	"MOVE", "LOADK", "LOADKX", "LOADBOOL", "LOADNIL", "GETUPVAL",
	"GETTABUP", "GETTABLE", "SETTABUP", "SETUPVAL", "SETTABLE",
	"NEWTABLE", "SELF", "ADD", "SUB", "MUL", "MOD", "POW", "DIV", "IDIV",
	"BAND", "BOR", "BXOR", "SHL", "SHR", "UNM", "BNOT", "NOT", "LEN",
	"CONCAT", "JMP", "EQ", "LT", "LE", "TEST", "TESTSET", "CALL",
	"TAILCALL", "RETURN", "FORLOOP", "FORPREP", "TFORCALL", "TFORLOOP",
	"SETLIST", "CLOSURE", "VARARG", "EXTRAARG",
}

func (op OpCode) String() string {
	if int(op) < NumOpCodes {
		return opNames[op]
	}
	return fmt.Sprintf("OP_%d", uint8(op))
}

// OpMode is the field layout of an instruction.
type OpMode uint8

const (
	IABC OpMode = iota
	IABx
	IAsBx
	IAx
)

// Mode returns the field layout used by op.
func (op OpCode) Mode() OpMode {
	switch op {
	case OpLoadK, OpLoadKX, OpClosure:
		return IABx
	case OpJmp, OpForLoop, OpForPrep, OpTForLoop:
		return IAsBx
	case OpExtraArg:
		return IAx
	}
	return IABC
}
