package lending

import (
	"github.com/holiman/uint256"

	fp "lendingpool/native/lending/fixedpoint"
)

// InterestRateStrategy is a two slope utilisation curve. All values are
// annualised rays.
type InterestRateStrategy struct {
	OptimalUsageRatio      uint256.Int
	BaseVariableBorrowRate uint256.Int
	VariableRateSlope1     uint256.Int
	VariableRateSlope2     uint256.Int
}

// RateParams captures the reserve state a strategy prices.
type RateParams struct {
	Unbacked                 *uint256.Int
	LiquidityAdded           *uint256.Int
	LiquidityTaken           *uint256.Int
	TotalDebt                *uint256.Int
	ReserveFactor            uint64
	VirtualUnderlyingBalance *uint256.Int
}

// Validate checks the curve parameters.
func (s InterestRateStrategy) Validate() error {
	if s.OptimalUsageRatio.IsZero() || s.OptimalUsageRatio.Gt(fp.Ray()) {
		return ErrInvalidOptimalUsageRatio
	}
	if s.VariableRateSlope1.Gt(&s.VariableRateSlope2) {
		return ErrInvalidReserveParams
	}
	return nil
}

// MaxVariableBorrowRate is the rate at full utilisation.
func (s InterestRateStrategy) MaxVariableBorrowRate() *uint256.Int {
	return fp.Add(fp.Add(&s.BaseVariableBorrowRate, &s.VariableRateSlope1), &s.VariableRateSlope2)
}

// Calculate returns the liquidity and variable borrow rates for the given
// reserve state.
func (s InterestRateStrategy) Calculate(params RateParams) (liquidityRate, borrowRate *uint256.Int) {
	borrowRate = new(uint256.Int).Set(&s.BaseVariableBorrowRate)
	if params.TotalDebt.IsZero() {
		return new(uint256.Int), borrowRate
	}
	available := fp.Sub(fp.Add(params.VirtualUnderlyingBalance, params.LiquidityAdded), params.LiquidityTaken)
	availablePlusDebt := fp.Add(available, params.TotalDebt)
	borrowUsage := fp.RayDiv(params.TotalDebt, availablePlusDebt)
	supplyUsage := fp.RayDiv(params.TotalDebt, fp.Add(availablePlusDebt, params.Unbacked))

	if borrowUsage.Gt(&s.OptimalUsageRatio) {
		excess := fp.RayDiv(fp.Sub(borrowUsage, &s.OptimalUsageRatio), fp.Sub(fp.Ray(), &s.OptimalUsageRatio))
		borrowRate = fp.Add(borrowRate, &s.VariableRateSlope1)
		borrowRate = fp.Add(borrowRate, fp.RayMul(&s.VariableRateSlope2, excess))
	} else {
		borrowRate = fp.Add(borrowRate, fp.RayDiv(fp.RayMul(&s.VariableRateSlope1, borrowUsage), &s.OptimalUsageRatio))
	}

	liquidityRate = fp.RayMul(borrowRate, supplyUsage)
	liquidityRate = fp.PercentMul(liquidityRate, PercentageFactor-params.ReserveFactor)
	return liquidityRate, borrowRate
}
