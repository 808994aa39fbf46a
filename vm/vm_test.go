package vm

import (
	"errors"
	"slices"
	"strings"
	"testing"

	. "github.com/Heliodex/minilua/types"
	"github.com/Heliodex/minilua/vm/compile"
)

func Expect(t *testing.T, got, want any) {
	t.Helper()
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

// goes through the chunk format, same as luac output would
func load(t *testing.T, stack uint8, k []Val, code ...Inst) *State {
	t.Helper()

	p, err := compile.Deserialise(compile.Serialise(&Proto{
		Source:       "@test",
		MaxStackSize: stack,
		K:            k,
		Code:         code,
	}))
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewState(p)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func interpret(t *testing.T, s *State) []Val {
	t.Helper()
	if err := s.Interpret(); err != nil {
		t.Fatal(err)
	}
	return s.Returns()
}

func TestAddInts(t *testing.T) {
	s := load(t, 3, []Val{Int(2), Int(3)},
		ABx(OpLoadK, 0, 0),
		ABx(OpLoadK, 1, 1),
		ABC(OpAdd, 2, 0, 1),
		ABC(OpReturn, 2, 2, 0),
	)

	rets := interpret(t, s)
	Expect(t, s.ReturnBegin, 2)
	Expect(t, s.ReturnEnd, 3)
	Expect(t, len(rets), 1)
	Expect(t, s.Registers[2], Val(Int(5)))
}

func TestAddMixed(t *testing.T) {
	s := load(t, 3, []Val{Int(2), Float(3.5)},
		ABx(OpLoadK, 0, 0),
		ABx(OpLoadK, 1, 1),
		ABC(OpAdd, 2, 0, 1),
		ABC(OpReturn, 2, 2, 0),
	)

	interpret(t, s)
	Expect(t, s.ReturnBegin, 2)
	Expect(t, s.ReturnEnd, 3)
	Expect(t, s.Registers[2], Val(Float(5.5)))
}

func TestRK(t *testing.T) {
	// constants straight from the instruction, no LOADK
	s := load(t, 1, []Val{Int(10), Float(0.5)},
		ABC(OpMul, 0, RKAsK(0), RKAsK(1)),
		ABC(OpSub, 0, 0, RKAsK(0)),
		ABC(OpReturn, 0, 2, 0),
	)

	Expect(t, interpret(t, s)[0], Val(Float(-5)))
}

// for i = start, limit, step do n = n + 1 end return i, n
func forLoop(t *testing.T, start, limit, step Val) *State {
	return load(t, 5, []Val{Int(0), Int(1), start, limit, step},
		ABx(OpLoadK, 0, 2),
		ABx(OpLoadK, 1, 3),
		ABx(OpLoadK, 2, 4),
		ABx(OpLoadK, 4, 0),
		AsBx(OpForPrep, 0, 1),
		ABC(OpAdd, 4, 4, RKAsK(1)),
		AsBx(OpForLoop, 0, -2),
		ABC(OpReturn, 3, 3, 0),
	)
}

func TestForLoop(t *testing.T) {
	s := forLoop(t, Int(1), Int(3), Int(1))
	rets := interpret(t, s)
	Expect(t, len(rets), 2)
	Expect(t, rets[0], Val(Int(3))) // last i
	Expect(t, rets[1], Val(Int(3))) // iterations
	Expect(t, s.Registers[0], Val(Int(4)))

	s = forLoop(t, Int(1), Int(2), Float(0.5))
	rets = interpret(t, s)
	Expect(t, rets[0], Val(Float(2)))
	Expect(t, rets[1], Val(Int(3)))

	s = forLoop(t, Int(5), Int(1), Int(1))
	rets = interpret(t, s)
	Expect(t, rets[0], Val(Nil{}))
	Expect(t, rets[1], Val(Int(0)))
}

func TestForLoopDescending(t *testing.T) {
	// the limit test is always <=, so a negative step never enters the body
	s := forLoop(t, Int(3), Int(1), Int(-1))
	rets := interpret(t, s)
	Expect(t, rets[1], Val(Int(0)))
	Expect(t, s.Registers[0], Val(Int(3)))
}

func TestForLoopType(t *testing.T) {
	s := forLoop(t, Bool(true), Int(3), Int(1))
	err := s.Interpret()
	Expect(t, errors.Is(err, ErrType), true)

	var e *Error
	Expect(t, errors.As(err, &e), true)
	Expect(t, e.PC, 4)
	Expect(t, e.Op, OpForPrep)
	Expect(t, e.Source, "@test")
}

// if a <op> b then r = 1 else r = 2 end return r
func branch(t *testing.T, op OpCode, a, b Val) Val {
	s := load(t, 1, []Val{a, b, Int(1), Int(2)},
		ABC(op, 0, RKAsK(0), RKAsK(1)),
		AsBx(OpJmp, 0, 2),
		ABx(OpLoadK, 0, 2),
		AsBx(OpJmp, 0, 1),
		ABx(OpLoadK, 0, 3),
		ABC(OpReturn, 0, 2, 0),
	)
	return interpret(t, s)[0]
}

func TestBranches(t *testing.T) {
	yes, no := Val(Int(1)), Val(Int(2))

	for _, c := range []struct {
		op   OpCode
		a, b Val
		want Val
	}{
		{OpEq, Int(1), Int(1), yes},
		{OpEq, Int(1), Float(1), yes},
		{OpEq, Int(1), Int(2), no},
		{OpEq, Bool(true), Bool(true), yes},
		{OpEq, Bool(true), Bool(false), no},
		{OpEq, Nil{}, Nil{}, yes},
		{OpEq, Nil{}, Bool(false), no},
		{OpLt, Int(1), Int(2), yes},
		{OpLt, Int(2), Int(2), no},
		{OpLt, Float(-0.5), Int(0), yes},
		{OpLe, Int(2), Int(2), yes},
		{OpLe, Float(2.5), Int(2), no},
	} {
		Expect(t, branch(t, c.op, c.a, c.b), c.want)
	}
}

func TestSkip(t *testing.T) {
	s := load(t, 1, []Val{Int(1)}, ABC(OpReturn, 0, 1, 0))
	k := s.Proto.K

	// A is the result that doesn't skip
	off, err := Step(s, ABC(OpEq, 0, RKAsK(0), RKAsK(0)), OpEq, k)
	Expect(t, err, nil)
	Expect(t, off, 1)

	off, _ = Step(s, ABC(OpEq, 1, RKAsK(0), RKAsK(0)), OpEq, k)
	Expect(t, off, 0)

	off, _ = Step(s, AsBx(OpJmp, 0, -7), OpJmp, k)
	Expect(t, off, -7)
}

func TestMoveUnmNot(t *testing.T) {
	s := load(t, 4, []Val{Float(1.25)},
		ABx(OpLoadK, 0, 0),
		ABC(OpMove, 1, 0, 0),
		ABC(OpUnm, 2, 1, 0),
		ABC(OpNot, 3, 2, 0),
		ABC(OpReturn, 0, 5, 0),
	)

	rets := interpret(t, s)
	Expect(t, len(rets), 4)
	Expect(t, rets[1], Val(Float(1.25)))
	Expect(t, rets[2], Val(Float(-1.25)))
	Expect(t, rets[3], Val(Bool(false)))
}

func TestNotImplemented(t *testing.T) {
	s := load(t, 1, nil,
		ABC(OpGetTabUp, 0, 0, 0),
		ABC(OpReturn, 0, 1, 0),
	)

	err := s.Interpret()
	Expect(t, errors.Is(err, ErrNotImplemented), true)
	Expect(t, strings.Contains(err.Error(), "opcode GETTABUP"), true)

	s = load(t, 1, nil, ABC(OpReturn, 0, 0, 0))
	err = s.Interpret()
	Expect(t, errors.Is(err, ErrNotImplemented), true)
	Expect(t, strings.Contains(err.Error(), "RETURN with b == 0"), true)

	for _, op := range []OpCode{OpCall, OpConcat, OpLen, OpBAnd, OpLoadNil, OpTest, OpClosure, OpExtraArg} {
		_, err := Step(s, ABC(op, 0, 0, 0), op, nil)
		Expect(t, errors.Is(err, ErrNotImplemented), true)
	}
}

func TestRunOffEnd(t *testing.T) {
	// EQ skips past the last instruction
	s := load(t, 1, []Val{Int(1)},
		ABC(OpEq, 0, RKAsK(0), RKAsK(0)),
		ABC(OpReturn, 0, 1, 0),
	)

	err := s.Interpret()
	Expect(t, errors.Is(err, ErrFormat), true)
}

func TestVerify(t *testing.T) {
	for _, c := range []struct {
		name  string
		stack uint8
		k     []Val
		code  []Inst
	}{
		{"empty", 1, nil, nil},
		{"register", 2, nil, []Inst{ABC(OpMove, 2, 0, 0), ABC(OpReturn, 0, 1, 0)}},
		{"constant", 1, []Val{Int(1)}, []Inst{ABx(OpLoadK, 0, 1), ABC(OpReturn, 0, 1, 0)}},
		{"rk", 2, []Val{Int(1)}, []Inst{ABC(OpAdd, 0, 1, RKAsK(3)), ABC(OpReturn, 0, 1, 0)}},
		{"jump", 1, nil, []Inst{AsBx(OpJmp, 0, 5), ABC(OpReturn, 0, 1, 0)}},
		{"backwards", 1, nil, []Inst{AsBx(OpJmp, 0, -2), ABC(OpReturn, 0, 1, 0)}},
		{"for", 3, nil, []Inst{AsBx(OpForPrep, 0, 0), ABC(OpReturn, 0, 1, 0)}},
		{"return", 2, nil, []Inst{ABC(OpReturn, 1, 3, 0)}},
	} {
		_, err := NewState(&Proto{Source: "@test", MaxStackSize: c.stack, K: c.k, Code: c.code})
		if err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
		Expect(t, errors.Is(err, ErrFormat), true)
	}

	// unimplemented opcodes only fail when they run
	_, err := NewState(&Proto{MaxStackSize: 1, Code: []Inst{ABC(OpGetTable, 200, 200, 200), ABC(OpReturn, 0, 1, 0)}})
	Expect(t, err, nil)
}

func TestStepFunc(t *testing.T) {
	s := forLoop(t, Int(1), Int(3), Int(1))

	var steps int
	counting := func(s *State, i Inst, op OpCode, k []Val) (int, error) {
		steps++
		return Step(s, i, op, k)
	}

	if err := s.Run(counting); err != nil {
		t.Fatal(err)
	}
	want := slices.Clone(s.Returns())
	Expect(t, steps, 4+1+3*2+1) // loads, prep, body and loop, last loop
	Expect(t, want[1], Val(Int(3)))

	s.Reset()
	Expect(t, s.Registers[4], Val(Nil{}))
	rets := interpret(t, s)
	Expect(t, rets[0], want[0])
	Expect(t, rets[1], want[1])
}

func TestExecute(t *testing.T) {
	p := &Proto{
		MaxStackSize: 2,
		K:            []Val{Int(6), Int(7)},
		Code: []Inst{
			ABC(OpMul, 1, RKAsK(0), RKAsK(1)),
			ABC(OpReturn, 1, 2, 0),
		},
	}

	for range 3 {
		rets, err := Execute(p)
		if err != nil {
			t.Fatal(err)
		}
		Expect(t, rets[0], Val(Int(42)))
	}
}

func TestBadVersion(t *testing.T) {
	b := compile.Serialise(&Proto{
		Source:       "@test",
		MaxStackSize: 1,
		Code:         []Inst{ABC(OpReturn, 0, 1, 0)},
	})
	b[4] = 0x52

	p, err := compile.Deserialise(b)
	Expect(t, p == nil, true)
	Expect(t, errors.Is(err, ErrFormat), true)
	Expect(t, err.Error(), "bad binary chunk: lua version mismatch")
}
