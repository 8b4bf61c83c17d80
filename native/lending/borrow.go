package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendingpool/core/events"
	fp "lendingpool/native/lending/fixedpoint"
)

type borrowParams struct {
	caller            common.Address
	onBehalfOf        common.Address
	asset             common.Address
	amount            *uint256.Int
	mode              InterestRateMode
	referralCode      uint16
	releaseUnderlying bool
}

// Borrow draws amount of asset against the collateral of onBehalfOf and
// sends it to caller. Borrowing on behalf of another user consumes credit
// delegated with ApproveDelegation.
func (p *Pool) Borrow(caller, asset common.Address, amount *uint256.Int, mode InterestRateMode, referralCode uint16, onBehalfOf common.Address) error {
	return p.execute("borrow", func() error {
		return p.executeBorrow(borrowParams{
			caller:            caller,
			onBehalfOf:        onBehalfOf,
			asset:             asset,
			amount:            amount,
			mode:              mode,
			referralCode:      referralCode,
			releaseUnderlying: true,
		})
	})
}

func (p *Pool) executeBorrow(bp borrowParams) error {
	r, err := p.getReserve(bp.asset)
	if err != nil {
		return err
	}
	p.accrue(&r)
	rec := p.state.user(bp.onBehalfOf)
	profile := p.riskProfile(bp.onBehalfOf)
	if err := p.validateBorrow(borrowValidation{
		reserve:           &r,
		user:              bp.onBehalfOf,
		amount:            bp.amount,
		mode:              bp.mode,
		releaseUnderlying: bp.releaseUnderlying,
		config:            rec.Config,
		profile:           profile,
	}); err != nil {
		return err
	}
	if bp.caller != bp.onBehalfOf {
		if err := p.consumeAllowance(&r, bp.onBehalfOf, bp.caller, bp.amount); err != nil {
			return err
		}
	}

	first, err := p.mintScaled(r.DebtToken, bp.onBehalfOf, bp.amount, &r.VariableBorrowIndex)
	if err != nil {
		return err
	}
	if first {
		rec.Config.SetBorrowing(r.ID, true)
		p.state.putUser(bp.onBehalfOf, rec)
	}
	if profile.isolation.active {
		units := isolationDebtUnits(bp.amount, r.Configuration.Decimals())
		p.adjustIsolationDebt(profile.isolation.asset, func(current uint64) uint64 {
			return fp.Add(uint256.NewInt(current), units).Uint64()
		}, &r)
	}
	taken := zero()
	if bp.releaseUnderlying {
		taken = bp.amount
	}
	p.refreshRates(&r, zero(), taken)
	p.state.putReserve(r)

	if bp.releaseUnderlying {
		if err := p.transferAsset(bp.asset, r.DepositToken, bp.caller, bp.amount); err != nil {
			return err
		}
	}
	p.emit(events.LendingBorrow{
		Reserve:          bp.asset,
		User:             bp.caller,
		OnBehalfOf:       bp.onBehalfOf,
		Amount:           cloneAmount(bp.amount),
		InterestRateMode: bp.mode.String(),
		BorrowRate:       cloneAmount(&r.CurrentVariableBorrowRate),
		ReferralCode:     bp.referralCode,
	})
	return nil
}

// adjustIsolationDebt rewrites the isolation debt counter of the isolated
// collateral. A reserve held in flight by the caller is updated in place
// instead of the stored copy.
func (p *Pool) adjustIsolationDebt(collateralAsset common.Address, update func(uint64) uint64, inFlight ...*Reserve) {
	for _, r := range inFlight {
		if r.Asset == collateralAsset {
			r.IsolationModeTotalDebt = update(r.IsolationModeTotalDebt)
			p.emit(events.LendingIsolationModeTotalDebtUpdated{Asset: collateralAsset, TotalDebt: r.IsolationModeTotalDebt})
			return
		}
	}
	collateral, ok := p.state.reserve(collateralAsset)
	if !ok {
		return
	}
	collateral.IsolationModeTotalDebt = update(collateral.IsolationModeTotalDebt)
	p.state.putReserve(collateral)
	p.emit(events.LendingIsolationModeTotalDebtUpdated{Asset: collateralAsset, TotalDebt: collateral.IsolationModeTotalDebt})
}

// reduceIsolationDebt releases repaid debt from the isolated collateral of a
// user, flooring at zero.
func (p *Pool) reduceIsolationDebt(iso isolationState, debtReserve *Reserve, repaid *uint256.Int, inFlight ...*Reserve) {
	if !iso.active {
		return
	}
	units := isolationDebtUnits(repaid, debtReserve.Configuration.Decimals())
	p.adjustIsolationDebt(iso.asset, func(current uint64) uint64 {
		if !units.IsUint64() || units.Uint64() >= current {
			return 0
		}
		return current - units.Uint64()
	}, append(inFlight, debtReserve)...)
}

func (p *Pool) consumeAllowance(r *Reserve, delegator, delegatee common.Address, amount *uint256.Int) error {
	allowance := p.state.allowance(r.DebtToken, delegator, delegatee)
	if amount.Gt(allowance) {
		return ErrInsufficientBorrowAllowance
	}
	remaining := fp.Sub(allowance, amount)
	p.state.setAllowance(r.DebtToken, delegator, delegatee, remaining)
	p.emit(events.LendingBorrowAllowanceDelegated{
		Reserve:   r.Asset,
		Delegator: delegator,
		Delegatee: delegatee,
		Amount:    remaining,
	})
	return nil
}

// ApproveDelegation lets delegatee borrow up to amount of asset against the
// collateral of delegator. The allowance is replaced, not added to.
func (p *Pool) ApproveDelegation(delegator, asset, delegatee common.Address, amount *uint256.Int) error {
	return p.execute("approve_delegation", func() error {
		if amount == nil {
			return ErrInvalidAmount
		}
		r, err := p.getReserve(asset)
		if err != nil {
			return err
		}
		p.state.setAllowance(r.DebtToken, delegator, delegatee, amount)
		p.emit(events.LendingBorrowAllowanceDelegated{
			Reserve:   asset,
			Delegator: delegator,
			Delegatee: delegatee,
			Amount:    cloneAmount(amount),
		})
		return nil
	})
}

// Repay pays back debt of onBehalfOf with underlying pulled from caller.
// MaxAmount repays the whole debt and is only allowed for the caller's own
// position. The repaid amount is returned.
func (p *Pool) Repay(caller, asset common.Address, amount *uint256.Int, mode InterestRateMode, onBehalfOf common.Address) (*uint256.Int, error) {
	var repaid *uint256.Int
	err := p.execute("repay", func() error {
		var err error
		repaid, err = p.executeRepay(caller, asset, amount, mode, onBehalfOf, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return repaid, nil
}

// RepayWithATokens pays back caller's own debt by burning their deposit
// tokens of the same asset.
func (p *Pool) RepayWithATokens(caller, asset common.Address, amount *uint256.Int, mode InterestRateMode) (*uint256.Int, error) {
	var repaid *uint256.Int
	err := p.execute("repay_with_deposit", func() error {
		var err error
		repaid, err = p.executeRepay(caller, asset, amount, mode, caller, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return repaid, nil
}

func (p *Pool) executeRepay(caller, asset common.Address, amount *uint256.Int, mode InterestRateMode, onBehalfOf common.Address, useATokens bool) (*uint256.Int, error) {
	r, err := p.getReserve(asset)
	if err != nil {
		return nil, err
	}
	p.accrue(&r)
	debt := p.balanceOf(r.DebtToken, onBehalfOf, &r.VariableBorrowIndex)
	if err := validateRepay(&r, caller, onBehalfOf, amount, mode, debt); err != nil {
		return nil, err
	}
	payback := fp.Min(amount, debt)
	if useATokens {
		deposit := p.balanceOf(r.DepositToken, caller, &r.LiquidityIndex)
		if deposit.IsZero() {
			return nil, ErrInsufficientDepositBalance
		}
		payback = fp.Min(payback, deposit)
	}

	if err := p.burnScaled(r.DebtToken, onBehalfOf, payback, &r.VariableBorrowIndex); err != nil {
		return nil, err
	}
	rec := p.state.user(onBehalfOf)
	if p.state.scaledBalance(r.DebtToken, onBehalfOf).IsZero() {
		rec.Config.SetBorrowing(r.ID, false)
		p.state.putUser(onBehalfOf, rec)
	}
	p.reduceIsolationDebt(p.isolationMode(rec.Config), &r, payback)
	added := payback
	if useATokens {
		added = zero()
	}
	p.refreshRates(&r, added, zero())
	p.state.putReserve(r)

	if useATokens {
		if err := p.burnScaled(r.DepositToken, caller, payback, &r.LiquidityIndex); err != nil {
			return nil, err
		}
		callerRec := p.state.user(caller)
		if callerRec.Config.IsUsingAsCollateral(r.ID) && p.state.scaledBalance(r.DepositToken, caller).IsZero() {
			p.setCollateral(caller, &r, false)
		}
	} else if err := p.transferAsset(asset, caller, r.DepositToken, payback); err != nil {
		return nil, err
	}
	p.emit(events.LendingRepay{
		Reserve:    asset,
		User:       onBehalfOf,
		Repayer:    caller,
		Amount:     cloneAmount(payback),
		UseATokens: useATokens,
	})
	return cloneAmount(payback), nil
}
