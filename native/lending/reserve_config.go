package lending

import (
	"github.com/holiman/uint256"
)

// Bit layout of ReserveConfiguration.
const (
	ltvOffset                    = 0
	liquidationThresholdOffset   = 16
	liquidationBonusOffset       = 32
	decimalsOffset               = 48
	activeBit                    = 56
	frozenBit                    = 57
	borrowingEnabledBit          = 58
	pausedBit                    = 60
	borrowableInIsolationBit     = 61
	siloedBorrowingBit           = 62
	flashLoanEnabledBit          = 63
	reserveFactorOffset          = 64
	borrowCapOffset              = 80
	supplyCapOffset              = 116
	liquidationProtocolFeeOffset = 152
	eModeCategoryOffset          = 168
	unbackedMintCapOffset        = 176
	debtCeilingOffset            = 212
)

const (
	// Upper bounds of the packed fields.
	MaxValidLTV                    = 65535
	MaxValidLiquidationThreshold   = 65535
	MaxValidLiquidationBonus       = 65535
	MaxValidDecimals               = 255
	MaxValidReserveFactor          = 65535
	MaxValidBorrowCap              = 68_719_476_735
	MaxValidSupplyCap              = 68_719_476_735
	MaxValidLiquidationProtocolFee = 65535
	MaxValidEModeCategory          = 255
	MaxValidUnbackedMintCap        = 68_719_476_735
	MaxValidDebtCeiling            = 1_099_511_627_775
)

// ReserveConfiguration packs the risk parameters and flags of a reserve into
// a single 256-bit word.
type ReserveConfiguration struct {
	Data uint256.Int
}

func (c ReserveConfiguration) field(offset, width uint) uint64 {
	v := new(uint256.Int).Rsh(&c.Data, offset)
	mask := new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), width), 1)
	return v.And(v, mask).Uint64()
}

func (c *ReserveConfiguration) setField(offset, width uint, max, value uint64) error {
	if value > max {
		return ErrInvalidReserveParams
	}
	mask := new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), width), 1)
	mask.Lsh(mask, offset)
	c.Data.And(&c.Data, new(uint256.Int).Not(mask))
	c.Data.Or(&c.Data, new(uint256.Int).Lsh(uint256.NewInt(value), offset))
	return nil
}

func (c ReserveConfiguration) flag(bit uint) bool {
	return c.Data[bit/64]>>(bit%64)&1 == 1
}

func (c *ReserveConfiguration) setFlag(bit uint, on bool) {
	if on {
		c.Data[bit/64] |= 1 << (bit % 64)
	} else {
		c.Data[bit/64] &^= 1 << (bit % 64)
	}
}

func (c ReserveConfiguration) LTV() uint64 { return c.field(ltvOffset, 16) }

func (c *ReserveConfiguration) SetLTV(bps uint64) error {
	return c.setField(ltvOffset, 16, MaxValidLTV, bps)
}

func (c ReserveConfiguration) LiquidationThreshold() uint64 {
	return c.field(liquidationThresholdOffset, 16)
}

func (c *ReserveConfiguration) SetLiquidationThreshold(bps uint64) error {
	return c.setField(liquidationThresholdOffset, 16, MaxValidLiquidationThreshold, bps)
}

// LiquidationBonus is expressed in basis points where 10000 means no bonus.
func (c ReserveConfiguration) LiquidationBonus() uint64 {
	return c.field(liquidationBonusOffset, 16)
}

func (c *ReserveConfiguration) SetLiquidationBonus(bps uint64) error {
	return c.setField(liquidationBonusOffset, 16, MaxValidLiquidationBonus, bps)
}

func (c ReserveConfiguration) Decimals() uint64 { return c.field(decimalsOffset, 8) }

func (c *ReserveConfiguration) SetDecimals(decimals uint64) error {
	return c.setField(decimalsOffset, 8, MaxValidDecimals, decimals)
}

func (c ReserveConfiguration) Active() bool { return c.flag(activeBit) }

func (c *ReserveConfiguration) SetActive(on bool) { c.setFlag(activeBit, on) }

func (c ReserveConfiguration) Frozen() bool { return c.flag(frozenBit) }

func (c *ReserveConfiguration) SetFrozen(on bool) { c.setFlag(frozenBit, on) }

func (c ReserveConfiguration) BorrowingEnabled() bool { return c.flag(borrowingEnabledBit) }

func (c *ReserveConfiguration) SetBorrowingEnabled(on bool) { c.setFlag(borrowingEnabledBit, on) }

func (c ReserveConfiguration) Paused() bool { return c.flag(pausedBit) }

func (c *ReserveConfiguration) SetPaused(on bool) { c.setFlag(pausedBit, on) }

func (c ReserveConfiguration) BorrowableInIsolation() bool {
	return c.flag(borrowableInIsolationBit)
}

func (c *ReserveConfiguration) SetBorrowableInIsolation(on bool) {
	c.setFlag(borrowableInIsolationBit, on)
}

func (c ReserveConfiguration) SiloedBorrowing() bool { return c.flag(siloedBorrowingBit) }

func (c *ReserveConfiguration) SetSiloedBorrowing(on bool) { c.setFlag(siloedBorrowingBit, on) }

func (c ReserveConfiguration) FlashLoanEnabled() bool { return c.flag(flashLoanEnabledBit) }

func (c *ReserveConfiguration) SetFlashLoanEnabled(on bool) { c.setFlag(flashLoanEnabledBit, on) }

func (c ReserveConfiguration) ReserveFactor() uint64 { return c.field(reserveFactorOffset, 16) }

func (c *ReserveConfiguration) SetReserveFactor(bps uint64) error {
	return c.setField(reserveFactorOffset, 16, MaxValidReserveFactor, bps)
}

// BorrowCap is expressed in whole units of the asset; zero disables the cap.
func (c ReserveConfiguration) BorrowCap() uint64 { return c.field(borrowCapOffset, 36) }

func (c *ReserveConfiguration) SetBorrowCap(units uint64) error {
	return c.setField(borrowCapOffset, 36, MaxValidBorrowCap, units)
}

// SupplyCap is expressed in whole units of the asset; zero disables the cap.
func (c ReserveConfiguration) SupplyCap() uint64 { return c.field(supplyCapOffset, 36) }

func (c *ReserveConfiguration) SetSupplyCap(units uint64) error {
	return c.setField(supplyCapOffset, 36, MaxValidSupplyCap, units)
}

func (c ReserveConfiguration) LiquidationProtocolFee() uint64 {
	return c.field(liquidationProtocolFeeOffset, 16)
}

func (c *ReserveConfiguration) SetLiquidationProtocolFee(bps uint64) error {
	if bps > PercentageFactor {
		return ErrInvalidReserveParams
	}
	return c.setField(liquidationProtocolFeeOffset, 16, MaxValidLiquidationProtocolFee, bps)
}

func (c ReserveConfiguration) EModeCategory() uint8 {
	return uint8(c.field(eModeCategoryOffset, 8))
}

func (c *ReserveConfiguration) SetEModeCategory(id uint8) {
	_ = c.setField(eModeCategoryOffset, 8, MaxValidEModeCategory, uint64(id))
}

func (c ReserveConfiguration) UnbackedMintCap() uint64 {
	return c.field(unbackedMintCapOffset, 36)
}

func (c *ReserveConfiguration) SetUnbackedMintCap(units uint64) error {
	return c.setField(unbackedMintCapOffset, 36, MaxValidUnbackedMintCap, units)
}

// DebtCeiling is expressed with two decimals of the borrowed asset; a non-zero
// ceiling marks the reserve as an isolated collateral.
func (c ReserveConfiguration) DebtCeiling() uint64 { return c.field(debtCeilingOffset, 40) }

func (c *ReserveConfiguration) SetDebtCeiling(ceiling uint64) error {
	return c.setField(debtCeilingOffset, 40, MaxValidDebtCeiling, ceiling)
}

// Flags reports the state flags in one call.
func (c ReserveConfiguration) Flags() (active, frozen, borrowing, paused bool) {
	return c.Active(), c.Frozen(), c.BorrowingEnabled(), c.Paused()
}
