package fixedpoint

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func mustDec(t *testing.T, value string) *uint256.Int {
	t.Helper()
	v, err := uint256.FromDecimal(value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return v
}

func expectOverflow(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected overflow panic")
		}
		err, ok := r.(error)
		var overflow *OverflowError
		if !ok || !errors.As(err, &overflow) {
			t.Fatalf("unexpected panic value %v", r)
		}
	}()
	fn()
}

func TestRayMulRoundsHalfUp(t *testing.T) {
	onePointFive := mustDec(t, "1500000000000000000000000000")
	two := mustDec(t, "2000000000000000000000000000")
	if got := RayMul(onePointFive, two); !got.Eq(mustDec(t, "3000000000000000000000000000")) {
		t.Fatalf("unexpected product %s", got.Dec())
	}
	if got := RayMul(uint256.NewInt(1), HalfRay()); !got.Eq(uint256.NewInt(1)) {
		t.Fatalf("half should round up, got %s", got.Dec())
	}
	below := new(uint256.Int).SubUint64(HalfRay(), 1)
	if got := RayMul(uint256.NewInt(1), below); !got.IsZero() {
		t.Fatalf("below half should round down, got %s", got.Dec())
	}
}

func TestRayDiv(t *testing.T) {
	if got := RayDiv(uint256.NewInt(1), uint256.NewInt(3)); !got.Eq(mustDec(t, "333333333333333333333333333")) {
		t.Fatalf("unexpected quotient %s", got.Dec())
	}
	if got := RayDiv(uint256.NewInt(2), Ray()); !got.Eq(uint256.NewInt(2)) {
		t.Fatalf("dividing by one ray should be identity, got %s", got.Dec())
	}
	expectOverflow(t, func() { RayDiv(uint256.NewInt(1), new(uint256.Int)) })
}

func TestScaledRoundTripBound(t *testing.T) {
	indices := []string{
		"1000000000000000000000000000",
		"1000000000000000000000000001",
		"1500000000000000000000000000",
		"1999999999999999999999999999",
		"2000000000000000000000000000",
		"2000000000000000000000000007",
		"2999999999999999999999999999",
		"3700000000000000000000000000",
		"5000000000000000000000000003",
		"12300000000000000000000000000",
	}
	amounts := []*uint256.Int{
		uint256.NewInt(1),
		uint256.NewInt(2),
		uint256.NewInt(3),
		uint256.NewInt(999_999_937),
		mustDec(t, "1000000000000000000"),
		mustDec(t, "1234567890123456789012"),
		mustDec(t, "99999999999999999999999999999"),
		mustDec(t, "340282366920938463463374607431768211455"),
	}
	step := mustDec(t, "7919000000000000000013")
	for k := uint64(1); k <= 64; k++ {
		amounts = append(amounts, Mul(step, uint256.NewInt(k*k+k)))
	}
	twoRay := Mul(Ray(), uint256.NewInt(2))
	for _, raw := range indices {
		index := mustDec(t, raw)
		bound := Div(Add(index, Ray()), twoRay)
		if index.Lt(Mul(Ray(), uint256.NewInt(3))) && !bound.Eq(uint256.NewInt(1)) {
			t.Fatalf("index %s: bound %s, want 1", raw, bound.Dec())
		}
		for _, amount := range amounts {
			got := RayMul(RayDiv(amount, index), index)
			var diff *uint256.Int
			if got.Gt(amount) {
				diff = Sub(got, amount)
			} else {
				diff = Sub(amount, got)
			}
			if diff.Gt(bound) {
				t.Fatalf("index %s amount %s: round trip %s off by %s, bound %s", raw, amount.Dec(), got.Dec(), diff.Dec(), bound.Dec())
			}
		}
	}
}

func TestRayDivWideIntermediate(t *testing.T) {
	// a*RAY exceeds 256 bits but the quotient fits.
	large := mustDec(t, "100000000000000000000000000000000000000000000000000000000000")
	if got := RayDiv(large, Ray()); !got.Eq(large) {
		t.Fatalf("unexpected quotient %s", got.Dec())
	}
	expectOverflow(t, func() { RayMul(MaxUint256(), mustDec(t, "2000000000000000000000000000")) })
}

func TestPercentMath(t *testing.T) {
	if got := PercentMul(uint256.NewInt(10_000), 5_000); got.Uint64() != 5_000 {
		t.Fatalf("expected 5000, got %s", got.Dec())
	}
	if got := PercentMul(uint256.NewInt(1), 5_000); got.Uint64() != 1 {
		t.Fatalf("expected half to round up, got %s", got.Dec())
	}
	if got := PercentMul(uint256.NewInt(1), 4_999); !got.IsZero() {
		t.Fatalf("expected round down, got %s", got.Dec())
	}
	if got := PercentDiv(uint256.NewInt(5_000), 5_000); got.Uint64() != 10_000 {
		t.Fatalf("expected 10000, got %s", got.Dec())
	}
	expectOverflow(t, func() { PercentDiv(uint256.NewInt(1), 0) })
}

func TestWadRayConversions(t *testing.T) {
	if got := RayToWad(uint256.NewInt(1_500_000_000)); got.Uint64() != 2 {
		t.Fatalf("expected 2, got %s", got.Dec())
	}
	if got := RayToWad(uint256.NewInt(1_400_000_000)); got.Uint64() != 1 {
		t.Fatalf("expected 1, got %s", got.Dec())
	}
	if got := WadToRay(uint256.NewInt(1)); got.Uint64() != 1_000_000_000 {
		t.Fatalf("expected 1e9, got %s", got.Dec())
	}
	if got := WadDiv(Wad(), new(uint256.Int).Mul(Wad(), uint256.NewInt(4))); got.Uint64() != 250_000_000_000_000_000 {
		t.Fatalf("expected 0.25 wad, got %s", got.Dec())
	}
}

func TestCheckedArithmetic(t *testing.T) {
	expectOverflow(t, func() { Add(MaxUint256(), uint256.NewInt(1)) })
	expectOverflow(t, func() { Sub(uint256.NewInt(1), uint256.NewInt(2)) })
	expectOverflow(t, func() { Mul(MaxUint256(), uint256.NewInt(2)) })
	if got := SubFloor(uint256.NewInt(1), uint256.NewInt(2)); !got.IsZero() {
		t.Fatalf("expected floor at zero, got %s", got.Dec())
	}
	if got := Pow10(18); !got.Eq(Wad()) {
		t.Fatalf("expected 1e18, got %s", got.Dec())
	}
}

func TestLinearInterest(t *testing.T) {
	tenPercent := mustDec(t, "100000000000000000000000000")
	if got := CalculateLinearInterest(tenPercent, 100, 100); !got.Eq(Ray()) {
		t.Fatalf("zero elapsed should return ray, got %s", got.Dec())
	}
	got := CalculateLinearInterest(tenPercent, 0, SecondsPerYear)
	if !got.Eq(mustDec(t, "1100000000000000000000000000")) {
		t.Fatalf("unexpected factor %s", got.Dec())
	}
}

func TestCompoundedInterest(t *testing.T) {
	tenPercent := mustDec(t, "100000000000000000000000000")
	cases := []struct {
		name    string
		rate    *uint256.Int
		elapsed uint64
		want    string
	}{
		{"zero elapsed", tenPercent, 0, "1000000000000000000000000000"},
		{"one second", tenPercent, 1, "1000000003170979198376458650"},
		{"one year", tenPercent, SecondsPerYear, "1105162042821782412575504000"},
		{"five percent thousand seconds", mustDec(t, "50000000000000000000000000"), 1000, "1000001585490854820473691715"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateCompoundedInterest(tc.rate, 1_000, 1_000+tc.elapsed)
			if !got.Eq(mustDec(t, tc.want)) {
				t.Fatalf("got %s want %s", got.Dec(), tc.want)
			}
		})
	}
	linear := CalculateLinearInterest(tenPercent, 0, SecondsPerYear)
	compounded := CalculateCompoundedInterest(tenPercent, 0, SecondsPerYear)
	if !compounded.Gt(linear) {
		t.Fatalf("compounded %s should exceed linear %s", compounded.Dec(), linear.Dec())
	}
}
