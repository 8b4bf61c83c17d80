package lending

import (
	"github.com/holiman/uint256"

	"lendingpool/native/lending/fixedpoint"
)

const (
	moduleName = "lending"

	// PercentageFactor is 100% in basis points.
	PercentageFactor = fixedpoint.PercentageFactor
	// MaxReservesCount bounds the dense reserve id space of a user bitmap.
	MaxReservesCount = 128
	// DebtCeilingDecimals is the precision of isolation mode debt accounting.
	DebtCeilingDecimals = 2
	// DefaultLiquidationCloseFactor caps a liquidation at half of the debt.
	DefaultLiquidationCloseFactor uint64 = 5_000
	// MaxLiquidationCloseFactor allows the whole debt to be covered.
	MaxLiquidationCloseFactor uint64 = 10_000
	// MaxGracePeriod bounds liquidation grace windows in seconds.
	MaxGracePeriod uint64 = 4 * 60 * 60
)

// InterestRateMode selects how a borrow accrues interest. Only variable debt
// is supported; NoneRate is used by flash loans that repay in full.
type InterestRateMode uint8

const (
	NoneRate InterestRateMode = iota
	StableRate
	VariableRate
)

func (m InterestRateMode) String() string {
	switch m {
	case NoneRate:
		return "none"
	case StableRate:
		return "stable"
	case VariableRate:
		return "variable"
	default:
		return "unknown"
	}
}

var (
	// healthFactorLiquidationThreshold is 1.0 in wad.
	healthFactorLiquidationThreshold = uint256.NewInt(1_000_000_000_000_000_000)
	// closeFactorHFThreshold is 0.95 in wad.
	closeFactorHFThreshold = uint256.NewInt(950_000_000_000_000_000)
)

// HealthFactorLiquidationThreshold returns 1.0 in wad.
func HealthFactorLiquidationThreshold() *uint256.Int {
	return new(uint256.Int).Set(healthFactorLiquidationThreshold)
}

// MaxAmount requests the whole balance or debt on withdraw and repay.
func MaxAmount() *uint256.Int { return fixedpoint.MaxUint256() }

func isMax(v *uint256.Int) bool {
	return v != nil && v.Eq(fixedpoint.MaxUint256())
}
