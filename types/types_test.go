package types

import (
	"math"
	"testing"
)

func Expect(t *testing.T, got, want any) {
	t.Helper()
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestTruthy(t *testing.T) {
	Expect(t, Truthy(Nil{}), false)
	Expect(t, Truthy(Bool(false)), false)
	Expect(t, Truthy(Bool(true)), true)
	Expect(t, Truthy(Int(0)), true)
	Expect(t, Truthy(Float(0)), true)
}

func TestNumerical(t *testing.T) {
	Expect(t, IsNumerical(Int(1)), true)
	Expect(t, IsNumerical(Float(1)), true)
	Expect(t, IsNumerical(Nil{}), false)
	Expect(t, IsNumerical(Bool(true)), false)

	f, ok := ToFloat(Int(3))
	Expect(t, ok, true)
	Expect(t, f, 3.0)

	_, ok = ToFloat(Bool(true))
	Expect(t, ok, false)

	// 2^53+1 isn't representable, the widening rounds
	f, _ = ToFloat(Int(1<<53 + 1))
	Expect(t, f, float64(1<<53))
}

func TestEqual(t *testing.T) {
	Expect(t, Equal(Nil{}, Nil{}), true)
	Expect(t, Equal(Nil{}, Bool(false)), false)
	Expect(t, Equal(Bool(true), Bool(true)), true)
	Expect(t, Equal(Bool(true), Bool(false)), false)
	Expect(t, Equal(Bool(true), Int(1)), false)
	Expect(t, Equal(Int(2), Float(2)), true)
	Expect(t, Equal(Float(2.5), Int(2)), false)
	Expect(t, Equal(Float(math.NaN()), Float(math.NaN())), false)
}

func TestToString(t *testing.T) {
	for v, s := range map[Val]string{
		Nil{}:                   "nil",
		Bool(true):              "true",
		Int(-42):                "-42",
		Float(5.5):              "5.5",
		Float(3):                "3.0",
		Float(1e100):            "1e+100",
		Float(0.1):              "0.1",
		Float(math.Inf(1)):      "inf",
		Float(math.Inf(-1)):     "-inf",
		Float(100000):           "100000.0",
		Float(1.0 / 3.0):        "0.33333333333333",
		Int(math.MinInt64):      "-9223372036854775808",
		Float(-2.5e-7):          "-2.5e-07",
	} {
		Expect(t, ToString(v), s)
	}
}

func TestTypeName(t *testing.T) {
	Expect(t, TypeName(Nil{}), "nil")
	Expect(t, TypeName(Bool(false)), "boolean")
	Expect(t, TypeName(Int(1)), "number")
	Expect(t, TypeName(Float(1)), "number")
}
