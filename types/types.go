// package types holds type definitions for the minilua VM.
package types

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

type (
	// Val represents any possible register or constant value. Its dynamic type is always one of Nil, Bool, Int or Float.
	Val interface {
		val()
	}

	// Nil is the Lua nil value. Lua type `nil`
	Nil struct{}

	// Bool is a Lua boolean. Lua type `boolean`
	Bool bool

	// Int is a Lua 5.3 integer subtype of `number`.
	Int int64

	// Float is a Lua 5.3 float subtype of `number`.
	Float float64
)

func (Nil) val()   {}
func (Bool) val()  {}
func (Int) val()   {}
func (Float) val() {}

// error classes, every error returned by the loader or the vm wraps one of these
var (
	ErrFormat         = errors.New("bad binary chunk")
	ErrNotImplemented = errors.New("not implemented")
	ErrType           = errors.New("type error")
)

// IsNumerical reports whether v is an Int or a Float.
func IsNumerical(v Val) bool {
	switch v.(type) {
	case Int, Float:
		return true
	}
	return false
}

// ToFloat widens a number to a float64.
// Integers beyond 2^53 lose precision, same as a C (double) cast.
func ToFloat(v Val) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}

// Truthy reports whether v counts as true in a condition. Only nil and false are falsy.
func Truthy(v Val) bool {
	switch b := v.(type) {
	case nil, Nil:
		return false
	case Bool:
		return bool(b)
	}
	return true
}

// TypeName returns the Lua type name of a value, as type() would.
func TypeName(v Val) string {
	switch v.(type) {
	case Bool:
		return "boolean"
	case Int, Float:
		return "number"
	}
	return "nil"
}

// Equal implements raw equality: nil equals nil, booleans compare by value, and numbers compare across subtypes via float widening.
func Equal(a, b Val) bool {
	switch x := a.(type) {
	case nil, Nil:
		switch b.(type) {
		case nil, Nil:
			return true
		}
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Int:
		switch y := b.(type) {
		case Int:
			return x == y
		case Float:
			return float64(x) == float64(y)
		}
	case Float:
		switch y := b.(type) {
		case Float:
			return x == y
		case Int:
			return float64(x) == float64(y)
		}
	}
	return false
}

func fmtFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		if math.Signbit(f) {
			return "-nan"
		}
		return "nan"
	}

	s := strconv.FormatFloat(f, 'g', 14, 64)
	if strings.ContainsAny(s, "e.") {
		return s
	}
	return s + ".0" // looks like an int
}

// ToString formats a value the way Lua's tostring does.
func ToString(v Val) string {
	switch x := v.(type) {
	case Bool:
		if x {
			return "true"
		}
		return "false"
	case Int:
		return strconv.FormatInt(int64(x), 10)
	case Float:
		return fmtFloat(float64(x))
	}
	return "nil"
}
