package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// GetReserveData returns the reserve with indexes and totals accrued to the
// pool timestamp.
func (p *Pool) GetReserveData(asset common.Address) (data ReserveData, err error) {
	defer recoverMath(&err)
	r, err := p.getReserve(asset)
	if err != nil {
		return ReserveData{}, err
	}
	income := r.NormalizedIncome(p.now)
	debt := r.NormalizedDebt(p.now)
	return ReserveData{
		Reserve:                    r,
		AccruedLiquidityIndex:      income,
		AccruedVariableBorrowIndex: debt,
		TotalDeposits:              p.totalSupply(r.DepositToken, income),
		TotalVariableDebt:          p.totalSupply(r.DebtToken, debt),
		AvailableLiquidity:         new(uint256.Int).Set(&r.VirtualUnderlyingBalance),
	}, nil
}

// GetReservesList returns the listed assets in reserve id order.
func (p *Pool) GetReservesList() []common.Address {
	out := make([]common.Address, len(p.state.reservesList))
	copy(out, p.state.reservesList)
	return out
}

func (p *Pool) GetUserConfiguration(user common.Address) UserConfiguration {
	return p.state.user(user).Config
}

func (p *Pool) GetUserEMode(user common.Address) uint8 {
	return p.state.user(user).EMode
}

func (p *Pool) GetEModeCategory(id uint8) (EModeCategory, bool) {
	return p.state.eMode(id)
}

// GetReserveNormalizedIncome returns the liquidity index accrued to now.
func (p *Pool) GetReserveNormalizedIncome(asset common.Address) (index *uint256.Int, err error) {
	defer recoverMath(&err)
	r, err := p.getReserve(asset)
	if err != nil {
		return nil, err
	}
	return r.NormalizedIncome(p.now), nil
}

// GetReserveNormalizedVariableDebt returns the variable borrow index accrued
// to now.
func (p *Pool) GetReserveNormalizedVariableDebt(asset common.Address) (index *uint256.Int, err error) {
	defer recoverMath(&err)
	r, err := p.getReserve(asset)
	if err != nil {
		return nil, err
	}
	return r.NormalizedDebt(p.now), nil
}

// DepositBalance returns the deposit token balance of user including accrued
// interest.
func (p *Pool) DepositBalance(asset, user common.Address) (balance *uint256.Int, err error) {
	defer recoverMath(&err)
	r, err := p.getReserve(asset)
	if err != nil {
		return nil, err
	}
	return p.balanceOf(r.DepositToken, user, r.NormalizedIncome(p.now)), nil
}

// DebtBalance returns the variable debt of user including accrued interest.
func (p *Pool) DebtBalance(asset, user common.Address) (balance *uint256.Int, err error) {
	defer recoverMath(&err)
	r, err := p.getReserve(asset)
	if err != nil {
		return nil, err
	}
	return p.balanceOf(r.DebtToken, user, r.NormalizedDebt(p.now)), nil
}

// ScaledDepositBalance returns the raw scaled deposit balance of user.
func (p *Pool) ScaledDepositBalance(asset, user common.Address) (*uint256.Int, error) {
	r, err := p.getReserve(asset)
	if err != nil {
		return nil, err
	}
	return p.state.scaledBalance(r.DepositToken, user), nil
}

// ScaledDebtBalance returns the raw scaled variable debt of user.
func (p *Pool) ScaledDebtBalance(asset, user common.Address) (*uint256.Int, error) {
	r, err := p.getReserve(asset)
	if err != nil {
		return nil, err
	}
	return p.state.scaledBalance(r.DebtToken, user), nil
}

func (p *Pool) BorrowAllowance(asset, delegator, delegatee common.Address) (*uint256.Int, error) {
	r, err := p.getReserve(asset)
	if err != nil {
		return nil, err
	}
	return p.state.allowance(r.DebtToken, delegator, delegatee), nil
}

// Settings returns the configurator-editable pool parameters.
func (p *Pool) Settings() PoolSettings { return p.state.settings }

// FlashLoanReceipt looks up an open flash loan.
func (p *Pool) FlashLoanReceipt(id common.Hash) (FlashLoanReceipt, bool) {
	return p.state.receipt(id)
}

// OpenFlashLoans returns the number of unsettled flash loan legs.
func (p *Pool) OpenFlashLoans() int { return p.state.openReceipts() }
