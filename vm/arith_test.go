package vm

import (
	"errors"
	"math"
	"testing"

	. "github.com/Heliodex/minilua/types"
)

func TestArith(t *testing.T) {
	for _, c := range []struct {
		op   OpCode
		a, b Val
		want Val
	}{
		{OpAdd, Int(2), Int(3), Int(5)},
		{OpAdd, Int(2), Float(3.5), Float(5.5)},
		{OpAdd, Float(0.5), Float(0.25), Float(0.75)},
		{OpAdd, Int(math.MaxInt64), Int(1), Int(math.MinInt64)},
		{OpSub, Int(2), Int(3), Int(-1)},
		{OpSub, Float(2), Int(3), Float(-1)},
		{OpMul, Int(-4), Int(3), Int(-12)},
		{OpMul, Int(4), Float(0.5), Float(2)},
		{OpDiv, Int(7), Int(2), Float(3.5)},
		{OpDiv, Int(6), Int(3), Float(2)},
		{OpPow, Int(2), Int(10), Float(1024)},
		{OpPow, Float(9), Float(0.5), Float(3)},
		{OpIDiv, Int(7), Int(2), Int(3)},
		{OpIDiv, Int(-7), Int(2), Int(-3)},
		{OpIDiv, Float(7), Int(2), Float(3)},
		{OpIDiv, Float(-7), Int(2), Float(-4)},
		{OpIDiv, Int(math.MinInt64), Int(-1), Int(math.MinInt64)},
		{OpMod, Int(7), Int(3), Int(1)},
		{OpMod, Int(-7), Int(3), Int(-1)},
		{OpMod, Float(-7.5), Int(2), Float(-1.5)},
		{OpMod, Float(5.5), Float(2), Float(1.5)},
		{OpIDiv, Int(1), Float(0), Float(math.Inf(1))},
	} {
		got, err := Arith(c.op, c.a, c.b)
		if err != nil {
			t.Fatalf("%s %s %s: %v", ToString(c.a), c.op, ToString(c.b), err)
		}
		Expect(t, got, c.want)
	}
}

func TestArithNaN(t *testing.T) {
	v, err := Arith(OpMod, Float(1), Float(0))
	if err != nil {
		t.Fatal(err)
	}

	f, ok := v.(Float)
	Expect(t, ok, true)
	Expect(t, math.IsNaN(float64(f)), true)
}

func TestArithErrors(t *testing.T) {
	_, err := Arith(OpAdd, Nil{}, Int(1))
	Expect(t, errors.Is(err, ErrType), true)
	Expect(t, err.Error(), "type error: attempt to perform arithmetic (add) on nil and number")

	_, err = Arith(OpPow, Float(1), Bool(true))
	Expect(t, err.Error(), "type error: attempt to perform arithmetic (pow) on number and boolean")

	_, err = Arith(OpIDiv, Int(1), Int(0))
	Expect(t, errors.Is(err, ErrType), true)
	Expect(t, err.Error(), "type error: attempt to perform 'n//0'")

	_, err = Arith(OpMod, Int(1), Int(0))
	Expect(t, errors.Is(err, ErrType), true)

	_, err = Arith(OpJmp, Int(1), Int(0))
	Expect(t, errors.Is(err, ErrNotImplemented), true)
}

func TestUnm(t *testing.T) {
	v, err := Unm(Int(3))
	Expect(t, err, nil)
	Expect(t, v, Val(Int(-3)))

	v, _ = Unm(Int(math.MinInt64))
	Expect(t, v, Val(Int(math.MinInt64)))

	v, _ = Unm(Float(0.5))
	Expect(t, v, Val(Float(-0.5)))

	_, err = Unm(Bool(false))
	Expect(t, errors.Is(err, ErrType), true)
	Expect(t, err.Error(), "type error: attempt to perform arithmetic (unm) on boolean")
}

func TestNot(t *testing.T) {
	Expect(t, Not(Nil{}), Val(Bool(true)))
	Expect(t, Not(Bool(false)), Val(Bool(true)))
	Expect(t, Not(Int(0)), Val(Bool(false)))
	Expect(t, Not(Float(0)), Val(Bool(false)))
}

func TestCompare(t *testing.T) {
	for _, c := range []struct {
		a, b   Val
		lt, le bool
	}{
		{Int(1), Int(2), true, true},
		{Int(2), Int(2), false, true},
		{Int(3), Int(2), false, false},
		{Int(1), Float(1.5), true, true},
		{Float(2), Int(2), false, true},
		{Float(math.NaN()), Int(2), false, false},
		{Int(2), Float(math.NaN()), false, false},
		// exact above 2^53, no float rounding
		{Int(1<<53 + 1), Int(1<<53 + 2), true, true},
	} {
		lt, err := Lt(c.a, c.b)
		if err != nil {
			t.Fatal(err)
		}
		le, err := Le(c.a, c.b)
		if err != nil {
			t.Fatal(err)
		}
		Expect(t, lt, c.lt)
		Expect(t, le, c.le)
	}

	_, err := Lt(Bool(true), Int(1))
	Expect(t, errors.Is(err, ErrType), true)
	Expect(t, err.Error(), "type error: attempt to compare boolean < number")

	_, err = Le(Int(1), Nil{})
	Expect(t, err.Error(), "type error: attempt to compare number <= nil")
}

func TestEq(t *testing.T) {
	Expect(t, Eq(Nil{}, Nil{}), true)
	Expect(t, Eq(Bool(true), Bool(true)), true)
	Expect(t, Eq(Bool(false), Bool(false)), true)
	Expect(t, Eq(Bool(true), Bool(false)), false)
	Expect(t, Eq(Int(1), Float(1)), true)
	Expect(t, Eq(Int(0), Bool(false)), false)
	Expect(t, Eq(Nil{}, Bool(false)), false)
	Expect(t, Eq(Float(math.NaN()), Float(math.NaN())), false)
}
