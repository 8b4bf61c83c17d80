package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	fp "lendingpool/native/lending/fixedpoint"
)

// Reserve is the ledger entry of one listed asset. Indexes and rates are
// rays; rates are annualised.
type Reserve struct {
	ID                          uint16
	Asset                       common.Address
	Configuration               ReserveConfiguration
	LiquidityIndex              uint256.Int
	VariableBorrowIndex         uint256.Int
	CurrentLiquidityRate        uint256.Int
	CurrentVariableBorrowRate   uint256.Int
	LastUpdateTimestamp         uint64
	DepositToken                common.Address
	DebtToken                   common.Address
	Strategy                    InterestRateStrategy
	IsolationModeTotalDebt      uint64
	AccruedToTreasury           uint256.Int
	Unbacked                    uint256.Int
	VirtualUnderlyingBalance    uint256.Int
	LiquidationGracePeriodUntil uint64
}

// NormalizedIncome returns the liquidity index accrued to now without
// mutating the reserve.
func (r *Reserve) NormalizedIncome(now uint64) *uint256.Int {
	if now <= r.LastUpdateTimestamp {
		return new(uint256.Int).Set(&r.LiquidityIndex)
	}
	factor := fp.CalculateLinearInterest(&r.CurrentLiquidityRate, r.LastUpdateTimestamp, now)
	return fp.RayMul(factor, &r.LiquidityIndex)
}

// NormalizedDebt returns the variable borrow index accrued to now without
// mutating the reserve.
func (r *Reserve) NormalizedDebt(now uint64) *uint256.Int {
	if now <= r.LastUpdateTimestamp {
		return new(uint256.Int).Set(&r.VariableBorrowIndex)
	}
	factor := fp.CalculateCompoundedInterest(&r.CurrentVariableBorrowRate, r.LastUpdateTimestamp, now)
	return fp.RayMul(factor, &r.VariableBorrowIndex)
}

// accrue moves both indexes to now and books the reserve factor share of the
// debt growth for the treasury.
func (r *Reserve) accrue(now uint64, scaledDebt *uint256.Int) {
	if now <= r.LastUpdateTimestamp {
		return
	}
	prevBorrowIndex := new(uint256.Int).Set(&r.VariableBorrowIndex)
	if !r.CurrentLiquidityRate.IsZero() {
		factor := fp.CalculateLinearInterest(&r.CurrentLiquidityRate, r.LastUpdateTimestamp, now)
		r.LiquidityIndex.Set(fp.RayMul(factor, &r.LiquidityIndex))
	}
	if !scaledDebt.IsZero() {
		factor := fp.CalculateCompoundedInterest(&r.CurrentVariableBorrowRate, r.LastUpdateTimestamp, now)
		r.VariableBorrowIndex.Set(fp.RayMul(factor, &r.VariableBorrowIndex))
	}
	r.accrueToTreasury(scaledDebt, prevBorrowIndex)
	r.LastUpdateTimestamp = now
}

func (r *Reserve) accrueToTreasury(scaledDebt, prevBorrowIndex *uint256.Int) {
	factor := r.Configuration.ReserveFactor()
	if factor == 0 || scaledDebt.IsZero() {
		return
	}
	prevDebt := fp.RayMul(scaledDebt, prevBorrowIndex)
	currDebt := fp.RayMul(scaledDebt, &r.VariableBorrowIndex)
	accrued := fp.PercentMul(fp.SubFloor(currDebt, prevDebt), factor)
	if accrued.IsZero() {
		return
	}
	r.AccruedToTreasury.Set(fp.Add(&r.AccruedToTreasury, fp.RayDiv(accrued, &r.LiquidityIndex)))
}

// updateInterestRates recomputes the rates for the liquidity change of the
// current operation and moves the virtual balance by added-taken.
func (r *Reserve) updateInterestRates(scaledDebt, added, taken *uint256.Int) {
	totalDebt := fp.RayMul(scaledDebt, &r.VariableBorrowIndex)
	liquidityRate, borrowRate := r.Strategy.Calculate(RateParams{
		Unbacked:                 &r.Unbacked,
		LiquidityAdded:           added,
		LiquidityTaken:           taken,
		TotalDebt:                totalDebt,
		ReserveFactor:            r.Configuration.ReserveFactor(),
		VirtualUnderlyingBalance: &r.VirtualUnderlyingBalance,
	})
	r.CurrentLiquidityRate.Set(liquidityRate)
	r.CurrentVariableBorrowRate.Set(borrowRate)
	balance := fp.Add(&r.VirtualUnderlyingBalance, added)
	r.VirtualUnderlyingBalance.Set(fp.Sub(balance, taken))
}

// cumulateToLiquidityIndex distributes amount to the suppliers of
// totalLiquidity by bumping the liquidity index.
func (r *Reserve) cumulateToLiquidityIndex(totalLiquidity, amount *uint256.Int) {
	if totalLiquidity.IsZero() || amount.IsZero() {
		return
	}
	ratio := fp.RayDiv(fp.WadToRay(amount), fp.WadToRay(totalLiquidity))
	r.LiquidityIndex.Set(fp.RayMul(fp.Add(ratio, fp.Ray()), &r.LiquidityIndex))
}

// ReserveData is the read model of a reserve with indexes accrued to the
// query time.
type ReserveData struct {
	Reserve
	AccruedLiquidityIndex      *uint256.Int
	AccruedVariableBorrowIndex *uint256.Int
	TotalDeposits              *uint256.Int
	TotalVariableDebt          *uint256.Int
	AvailableLiquidity         *uint256.Int
}
