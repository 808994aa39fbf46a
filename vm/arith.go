package vm

import (
	"fmt"
	"math"

	. "github.com/Heliodex/minilua/types"
)

var arithNames = map[OpCode]string{
	OpAdd:  "add",
	OpSub:  "sub",
	OpMul:  "mul",
	OpMod:  "mod",
	OpPow:  "pow",
	OpDiv:  "div",
	OpIDiv: "idiv",
}

func invalidArithmetic(op string, a, b Val) error {
	return fmt.Errorf("%w: attempt to perform arithmetic (%s) on %s and %s", ErrType, op, TypeName(a), TypeName(b))
}

func invalidUnm(v Val) error {
	return fmt.Errorf("%w: attempt to perform arithmetic (unm) on %s", ErrType, TypeName(v))
}

func invalidCompare(op string, a, b Val) error {
	return fmt.Errorf("%w: attempt to compare %s %s %s", ErrType, TypeName(a), op, TypeName(b))
}

func iArith(op OpCode, a, b int64) (Val, error) {
	switch op {
	case OpAdd:
		return Int(a + b), nil
	case OpSub:
		return Int(a - b), nil
	case OpMul:
		return Int(a * b), nil
	case OpMod:
		if b == 0 {
			return nil, fmt.Errorf("%w: attempt to perform 'n%%%%0'", ErrType)
		}
		return Int(a % b), nil
	case OpIDiv:
		if b == 0 {
			return nil, fmt.Errorf("%w: attempt to perform 'n//0'", ErrType)
		}
		return Int(a / b), nil
	}
	panic("unreachable")
}

func fArith(op OpCode, a, b float64) Val {
	switch op {
	case OpAdd:
		return Float(a + b)
	case OpSub:
		return Float(a - b)
	case OpMul:
		return Float(a * b)
	case OpMod:
		return Float(math.Mod(a, b)) // fmod, not floor modulo
	case OpPow:
		return Float(math.Pow(a, b))
	case OpDiv:
		return Float(a / b)
	case OpIDiv:
		return Float(math.Floor(a / b))
	}
	panic("unreachable")
}

// Arith applies a binary arithmetic opcode. Two integers stay integers (wrapping on overflow) except for / and ^, anything else is widened to float.
func Arith(op OpCode, a, b Val) (Val, error) {
	name, ok := arithNames[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an arithmetic opcode", ErrNotImplemented, op)
	}

	if ia, ok1 := a.(Int); ok1 && op != OpDiv && op != OpPow {
		if ib, ok2 := b.(Int); ok2 {
			return iArith(op, int64(ia), int64(ib))
		}
	}

	fa, ok1 := ToFloat(a)
	fb, ok2 := ToFloat(b)
	if !ok1 || !ok2 {
		return nil, invalidArithmetic(name, a, b)
	}
	return fArith(op, fa, fb), nil
}

// Unm negates a number, keeping its subtype.
func Unm(v Val) (Val, error) {
	switch n := v.(type) {
	case Int:
		return -n, nil
	case Float:
		return -n, nil
	}
	return nil, invalidUnm(v)
}

// Not is logical negation.
func Not(v Val) Val {
	return Bool(!Truthy(v))
}

// Eq never fails, values of different types are just unequal.
func Eq(a, b Val) bool {
	return Equal(a, b)
}

func compare(op string, a, b Val) (int, error) {
	if ia, ok := a.(Int); ok {
		if ib, ok := b.(Int); ok {
			switch {
			case ia < ib:
				return -1, nil
			case ia > ib:
				return 1, nil
			}
			return 0, nil
		}
	}

	fa, ok1 := ToFloat(a)
	fb, ok2 := ToFloat(b)
	if !ok1 || !ok2 {
		return 0, invalidCompare(op, a, b)
	}

	switch {
	case fa < fb:
		return -1, nil
	case fa > fb:
		return 1, nil
	case fa == fb:
		return 0, nil
	}
	return 2, nil // NaN, unordered
}

// Lt compares two numbers with <.
func Lt(a, b Val) (bool, error) {
	c, err := compare("<", a, b)
	return c == -1, err
}

// Le compares two numbers with <=.
func Le(a, b Val) (bool, error) {
	c, err := compare("<=", a, b)
	return c == -1 || c == 0, err
}
