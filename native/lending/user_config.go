package lending

import (
	"math/bits"

	"github.com/holiman/uint256"
)

const (
	borrowingMask  uint64 = 0x5555555555555555
	collateralMask uint64 = 0xAAAAAAAAAAAAAAAA
)

// UserConfiguration tracks, two bits per reserve id, whether a user borrows a
// reserve (bit 2*id) and uses it as collateral (bit 2*id+1).
type UserConfiguration struct {
	Data uint256.Int
}

func (u UserConfiguration) bit(pos uint) bool {
	return u.Data[pos/64]>>(pos%64)&1 == 1
}

func (u *UserConfiguration) setBit(pos uint, on bool) {
	if on {
		u.Data[pos/64] |= 1 << (pos % 64)
	} else {
		u.Data[pos/64] &^= 1 << (pos % 64)
	}
}

// IsBorrowing reports whether the reserve with the given id is borrowed.
func (u UserConfiguration) IsBorrowing(id uint16) bool { return u.bit(uint(id) * 2) }

// IsUsingAsCollateral reports whether the reserve is enabled as collateral.
func (u UserConfiguration) IsUsingAsCollateral(id uint16) bool { return u.bit(uint(id)*2 + 1) }

func (u UserConfiguration) IsUsingAsCollateralOrBorrowing(id uint16) bool {
	return u.IsBorrowing(id) || u.IsUsingAsCollateral(id)
}

func (u *UserConfiguration) SetBorrowing(id uint16, on bool) { u.setBit(uint(id)*2, on) }

func (u *UserConfiguration) SetUsingAsCollateral(id uint16, on bool) { u.setBit(uint(id)*2+1, on) }

func (u UserConfiguration) IsEmpty() bool { return u.Data.IsZero() }

func (u UserConfiguration) count(mask uint64) int {
	total := 0
	for _, limb := range u.Data {
		total += bits.OnesCount64(limb & mask)
	}
	return total
}

func (u UserConfiguration) IsBorrowingAny() bool { return u.count(borrowingMask) > 0 }

func (u UserConfiguration) IsBorrowingOne() bool { return u.count(borrowingMask) == 1 }

func (u UserConfiguration) IsUsingAsCollateralAny() bool { return u.count(collateralMask) > 0 }

func (u UserConfiguration) IsUsingAsCollateralOne() bool { return u.count(collateralMask) == 1 }

// firstSet returns the reserve id of the lowest bit set under mask.
func (u UserConfiguration) firstSet(mask uint64) (uint16, bool) {
	for i, limb := range u.Data {
		if masked := limb & mask; masked != 0 {
			pos := uint(i)*64 + uint(bits.TrailingZeros64(masked))
			return uint16(pos / 2), true
		}
	}
	return 0, false
}

// FirstCollateral returns the id of the lowest reserve enabled as collateral.
func (u UserConfiguration) FirstCollateral() (uint16, bool) { return u.firstSet(collateralMask) }

// FirstBorrowed returns the id of the lowest borrowed reserve.
func (u UserConfiguration) FirstBorrowed() (uint16, bool) { return u.firstSet(borrowingMask) }
