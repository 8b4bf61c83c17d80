// Package fixedpoint implements the ray (1e27), wad (1e18) and basis point
// arithmetic used by the lending pool. Every operation rounds half up and
// works on 256-bit unsigned integers with 512-bit intermediates. Results that
// do not fit 256 bits and divisions by zero panic with *OverflowError; callers
// that need an error value recover it at their operation boundary.
package fixedpoint

import (
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// PercentageFactor is 100.00% expressed in basis points.
	PercentageFactor uint64 = 10_000
	// SecondsPerYear is the annualisation period used for interest rates.
	SecondsPerYear uint64 = 365 * 24 * 60 * 60
)

var (
	ray             = uint256.MustFromDecimal("1000000000000000000000000000")
	halfRay         = uint256.MustFromDecimal("500000000000000000000000000")
	wad             = uint256.NewInt(1_000_000_000_000_000_000)
	halfWad         = uint256.NewInt(500_000_000_000_000_000)
	wadRayRatio     = uint256.NewInt(1_000_000_000)
	halfWadRayRatio = uint256.NewInt(500_000_000)
	percentage      = uint256.NewInt(PercentageFactor)
	halfPercentage  = uint256.NewInt(PercentageFactor / 2)
	secondsPerYear  = uint256.NewInt(SecondsPerYear)
)

// OverflowError reports an arithmetic result outside the 256-bit range or a
// division by zero.
type OverflowError struct {
	Op string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("fixedpoint: %s overflow", e.Op)
}

func fail(op string) {
	panic(&OverflowError{Op: op})
}

// Ray returns a fresh copy of 1e27.
func Ray() *uint256.Int { return new(uint256.Int).Set(ray) }

// HalfRay returns a fresh copy of 0.5e27.
func HalfRay() *uint256.Int { return new(uint256.Int).Set(halfRay) }

// Wad returns a fresh copy of 1e18.
func Wad() *uint256.Int { return new(uint256.Int).Set(wad) }

// MaxUint256 returns 2^256-1.
func MaxUint256() *uint256.Int { return new(uint256.Int).SetAllOne() }

// Zero returns a fresh zero value.
func Zero() *uint256.Int { return new(uint256.Int) }

// mulDivHalfUp computes (x*y + half) / d with a 512-bit product.
func mulDivHalfUp(op string, x, y, d, half *uint256.Int) *uint256.Int {
	if d.IsZero() {
		fail(op + " division by zero")
	}
	if x.IsZero() || y.IsZero() {
		return new(uint256.Int)
	}
	quotient, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		fail(op)
	}
	// The low 256 bits of x*y - q*d equal the true remainder since it is < d.
	remainder := new(uint256.Int).Mul(x, y)
	remainder.Sub(remainder, new(uint256.Int).Mul(quotient, d))
	threshold := new(uint256.Int).Sub(d, half)
	if !remainder.Lt(threshold) {
		if _, carry := quotient.AddOverflow(quotient, uint256.NewInt(1)); carry {
			fail(op)
		}
	}
	return quotient
}

// RayMul multiplies two ray values: (a*b + RAY/2) / RAY.
func RayMul(a, b *uint256.Int) *uint256.Int {
	return mulDivHalfUp("ray mul", a, b, ray, halfRay)
}

// RayDiv divides two ray values: (a*RAY + b/2) / b.
//
// Scaling an amount by an index and back, RayMul(RayDiv(a, i), i), is off
// from a by at most (i + RAY) / (2 * RAY) in integer division: one unit while
// i < 3 RAY, growing by one for every further 2 RAY of index.
func RayDiv(a, b *uint256.Int) *uint256.Int {
	return mulDivHalfUp("ray div", a, ray, b, new(uint256.Int).Rsh(b, 1))
}

// WadMul multiplies two wad values.
func WadMul(a, b *uint256.Int) *uint256.Int {
	return mulDivHalfUp("wad mul", a, b, wad, halfWad)
}

// WadDiv divides two wad values.
func WadDiv(a, b *uint256.Int) *uint256.Int {
	return mulDivHalfUp("wad div", a, wad, b, new(uint256.Int).Rsh(b, 1))
}

// PercentMul applies a basis point percentage to value.
func PercentMul(value *uint256.Int, bps uint64) *uint256.Int {
	return mulDivHalfUp("percent mul", value, uint256.NewInt(bps), percentage, halfPercentage)
}

// PercentDiv divides value by a basis point percentage.
func PercentDiv(value *uint256.Int, bps uint64) *uint256.Int {
	return mulDivHalfUp("percent div", value, percentage, uint256.NewInt(bps), uint256.NewInt(bps/2))
}

// RayToWad converts a ray to a wad, rounding half up.
func RayToWad(a *uint256.Int) *uint256.Int {
	quotient, remainder := new(uint256.Int).DivMod(a, wadRayRatio, new(uint256.Int))
	if !remainder.Lt(halfWadRayRatio) {
		quotient.AddUint64(quotient, 1)
	}
	return quotient
}

// WadToRay converts a wad to a ray.
func WadToRay(a *uint256.Int) *uint256.Int {
	return Mul(a, wadRayRatio)
}

// Add returns a+b and panics on overflow.
func Add(a, b *uint256.Int) *uint256.Int {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		fail("add")
	}
	return sum
}

// Sub returns a-b and panics on underflow.
func Sub(a, b *uint256.Int) *uint256.Int {
	diff, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		fail("sub")
	}
	return diff
}

// SubFloor returns max(a-b, 0).
func SubFloor(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}

// Mul returns a*b and panics on overflow.
func Mul(a, b *uint256.Int) *uint256.Int {
	product, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		fail("mul")
	}
	return product
}

// Div returns floor(a/b) and panics when b is zero.
func Div(a, b *uint256.Int) *uint256.Int {
	if b.IsZero() {
		fail("div division by zero")
	}
	return new(uint256.Int).Div(a, b)
}

// MulDiv returns floor(a*b/d) with a 512-bit product.
func MulDiv(a, b, d *uint256.Int) *uint256.Int {
	if d.IsZero() {
		fail("mul div division by zero")
	}
	result, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		fail("mul div")
	}
	return result
}

// Min returns a copy of the smaller value.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}

// Pow10 returns 10^exp. It panics when the result exceeds 256 bits.
func Pow10(exp uint64) *uint256.Int {
	if exp > 77 {
		fail("pow10")
	}
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(exp))
}
