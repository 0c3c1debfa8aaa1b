// Package fixedpoint implements signed 17.14 fixed-point arithmetic.
//
// The scheduler's load and CPU-usage formulas are specified against a
// fixed fractional bit width, not floating point. Values are stored as
// int32, with the low [FracBits] bits holding the fraction. Operations
// mixing two fixed-point values differ from operations mixing a
// fixed-point value with a plain integer; both variants are provided
// explicitly rather than overloading one method.
//
// Narrowing to an integer is available in two forms: [FP.Trunc]
// (toward zero) and [FP.Round] (to nearest, ties away from zero).
package fixedpoint

// FracBits is the fractional bit width of [FP].
const FracBits = 14

// one is the fixed-point representation of the integer 1.
const one = 1 << FracBits

// FP is a signed 17.14 fixed-point number.
//
// The zero value is the number zero. FP values may be compared directly
// with ==, <, etc., as the representation is order-preserving.
type FP int32

// FromInt converts a plain integer to fixed point.
func FromInt(n int) FP {
	return FP(n) * one
}

// Add returns x + y.
func (x FP) Add(y FP) FP { return x + y }

// Sub returns x - y.
func (x FP) Sub(y FP) FP { return x - y }

// AddInt returns x + n, where n is a plain integer.
func (x FP) AddInt(n int) FP { return x + FromInt(n) }

// SubInt returns x - n, where n is a plain integer.
func (x FP) SubInt(n int) FP { return x - FromInt(n) }

// Mul returns x * y, where both operands are fixed point. The
// intermediate product is widened to 64 bits before rescaling, so the
// operation does not overflow for in-range results.
func (x FP) Mul(y FP) FP {
	return FP(int64(x) * int64(y) / one)
}

// MulInt returns x * n, where n is a plain integer.
func (x FP) MulInt(n int) FP { return x * FP(n) }

// Div returns x / y, where both operands are fixed point. The dividend
// is widened and pre-scaled so no precision is lost to the quotient's
// fraction. Division by zero panics, as for the built-in operator.
func (x FP) Div(y FP) FP {
	return FP(int64(x) * one / int64(y))
}

// DivInt returns x / n, where n is a plain integer, truncating toward
// zero.
func (x FP) DivInt(n int) FP { return x / FP(n) }

// Trunc narrows x to an integer, rounding toward zero.
func (x FP) Trunc() int { return int(x / one) }

// Round narrows x to an integer, rounding to nearest with ties away
// from zero.
func (x FP) Round() int {
	if x >= 0 {
		return int((x + one/2) / one)
	}
	return int((x - one/2) / one)
}
