package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendingpool/core/events"
	fp "lendingpool/native/lending/fixedpoint"
)

func cloneAmount(v *uint256.Int) *uint256.Int { return new(uint256.Int).Set(v) }

// Supply deposits amount of asset from caller and credits deposit tokens to
// onBehalfOf. The first deposit of a user enables the asset as collateral
// when the user's risk profile allows it.
func (p *Pool) Supply(caller, asset common.Address, amount *uint256.Int, onBehalfOf common.Address, referralCode uint16) error {
	return p.execute("supply", func() error {
		r, err := p.getReserve(asset)
		if err != nil {
			return err
		}
		p.accrue(&r)
		if err := p.validateSupply(&r, amount, onBehalfOf); err != nil {
			return err
		}
		p.refreshRates(&r, amount, zero())
		p.state.putReserve(r)

		first, err := p.mintScaled(r.DepositToken, onBehalfOf, amount, &r.LiquidityIndex)
		if err != nil {
			return err
		}
		if first {
			p.autoEnableCollateral(caller, onBehalfOf, &r)
		}
		if err := p.transferAsset(asset, caller, r.DepositToken, amount); err != nil {
			return err
		}
		p.emit(events.LendingSupply{
			Reserve:      asset,
			User:         caller,
			OnBehalfOf:   onBehalfOf,
			Amount:       cloneAmount(amount),
			ReferralCode: referralCode,
		})
		return nil
	})
}

func (p *Pool) autoEnableCollateral(caller, user common.Address, r *Reserve) {
	rec := p.state.user(user)
	if !p.validateAutomaticUseAsCollateral(caller, rec.Config, r.Configuration) {
		return
	}
	rec.Config.SetUsingAsCollateral(r.ID, true)
	p.state.putUser(user, rec)
	p.emit(events.LendingCollateralToggled{Reserve: r.Asset, User: user, Enabled: true})
}

func (p *Pool) setCollateral(user common.Address, r *Reserve, enabled bool) {
	rec := p.state.user(user)
	rec.Config.SetUsingAsCollateral(r.ID, enabled)
	p.state.putUser(user, rec)
	p.emit(events.LendingCollateralToggled{Reserve: r.Asset, User: user, Enabled: enabled})
}

// Withdraw redeems deposit tokens of caller for underlying sent to to.
// MaxAmount withdraws the whole balance. The withdrawn amount is returned.
func (p *Pool) Withdraw(caller, asset common.Address, amount *uint256.Int, to common.Address) (*uint256.Int, error) {
	var withdrawn *uint256.Int
	err := p.execute("withdraw", func() error {
		if amount == nil {
			return ErrInvalidAmount
		}
		r, err := p.getReserve(asset)
		if err != nil {
			return err
		}
		p.accrue(&r)
		balance := p.balanceOf(r.DepositToken, caller, &r.LiquidityIndex)
		toWithdraw := amount
		if isMax(amount) {
			toWithdraw = balance
		}
		if err := validateWithdraw(&r, toWithdraw, balance, to); err != nil {
			return err
		}
		p.refreshRates(&r, zero(), toWithdraw)
		p.state.putReserve(r)

		rec := p.state.user(caller)
		wasCollateral := rec.Config.IsUsingAsCollateral(r.ID)
		if wasCollateral && toWithdraw.Eq(balance) {
			p.setCollateral(caller, &r, false)
		}
		if err := p.burnScaled(r.DepositToken, caller, toWithdraw, &r.LiquidityIndex); err != nil {
			return err
		}
		if wasCollateral && rec.Config.IsBorrowingAny() {
			if err := p.validateHFAndLTV(caller, r); err != nil {
				return err
			}
		}
		if err := p.transferAsset(asset, r.DepositToken, to, toWithdraw); err != nil {
			return err
		}
		p.emit(events.LendingWithdraw{Reserve: asset, User: caller, To: to, Amount: cloneAmount(toWithdraw)})
		withdrawn = cloneAmount(toWithdraw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return withdrawn, nil
}

// SetUserUseReserveAsCollateral toggles whether caller's deposit in asset
// backs their debt.
func (p *Pool) SetUserUseReserveAsCollateral(caller, asset common.Address, useAsCollateral bool) error {
	return p.execute("set_collateral", func() error {
		r, err := p.getReserve(asset)
		if err != nil {
			return err
		}
		balance := p.balanceOf(r.DepositToken, caller, r.NormalizedIncome(p.now))
		if useAsCollateral && balance.IsZero() {
			return ErrUnderlyingBalanceZero
		}
		if err := requireActiveNotPaused(r.Configuration); err != nil {
			return err
		}
		rec := p.state.user(caller)
		if rec.Config.IsUsingAsCollateral(r.ID) == useAsCollateral {
			return nil
		}
		if useAsCollateral {
			if !p.validateUseAsCollateral(rec.Config, r.Configuration) {
				return ErrUserInIsolationModeOrLTVZero
			}
			p.setCollateral(caller, &r, true)
			return nil
		}
		p.setCollateral(caller, &r, false)
		if !balance.IsZero() && rec.Config.IsBorrowingAny() {
			return p.validateHFAndLTV(caller, r)
		}
		return nil
	})
}

// TransferDepositTokens moves amount of deposit tokens of asset from the
// caller's own balance. The sender must remain healthy when the tokens backed
// debt; a receiver without prior balance gets the asset enabled as collateral.
func (p *Pool) TransferDepositTokens(caller, asset, from, to common.Address, amount *uint256.Int) error {
	return p.execute("transfer_deposit", func() error {
		if caller != from {
			return ErrSignerAndOnBehalfOfNotSame
		}
		if amount == nil {
			return ErrInvalidAmount
		}
		r, err := p.getReserve(asset)
		if err != nil {
			return err
		}
		if r.Configuration.Paused() {
			return ErrReservePaused
		}
		return p.transferDeposit(&r, from, to, amount, r.NormalizedIncome(p.now), true)
	})
}

// transferDeposit moves deposit tokens and maintains both collateral flags.
// validate runs the sender health check; liquidations skip it.
func (p *Pool) transferDeposit(r *Reserve, from, to common.Address, amount, index *uint256.Int, validate bool) error {
	fromBalance := p.balanceOf(r.DepositToken, from, index)
	prevTo, err := p.transferScaled(r.DepositToken, from, to, amount, index)
	if err != nil {
		return err
	}
	if from != to {
		fromRec := p.state.user(from)
		if fromRec.Config.IsUsingAsCollateral(r.ID) {
			if validate && fromRec.Config.IsBorrowingAny() {
				if err := p.validateHFAndLTV(from, *r); err != nil {
					return err
				}
			}
			if fromBalance.Eq(amount) || p.state.scaledBalance(r.DepositToken, from).IsZero() {
				p.setCollateral(from, r, false)
			}
		}
		if prevTo.IsZero() && !amount.IsZero() {
			p.autoEnableCollateral(r.DepositToken, to, r)
		}
	}
	p.emit(events.LendingBalanceTransfer{Reserve: r.Asset, From: from, To: to, Amount: cloneAmount(amount)})
	return nil
}

// MintToTreasury converts the accrued treasury share of each asset into
// deposit tokens held by the treasury. Unknown or inactive assets are
// skipped.
func (p *Pool) MintToTreasury(assets []common.Address) error {
	return p.execute("mint_to_treasury", func() error {
		treasury := p.state.settings.Treasury
		for _, asset := range assets {
			r, ok := p.state.reserve(asset)
			if !ok || !r.Configuration.Active() {
				continue
			}
			if r.AccruedToTreasury.IsZero() {
				continue
			}
			p.accrue(&r)
			scaled := new(uint256.Int).Set(&r.AccruedToTreasury)
			r.AccruedToTreasury.Clear()
			p.state.putReserve(r)
			amount := fp.RayMul(scaled, &r.LiquidityIndex)
			if _, err := p.mintScaled(r.DepositToken, treasury, amount, &r.LiquidityIndex); err != nil {
				return err
			}
			p.emit(events.LendingMintedToTreasury{Reserve: asset, AmountMinted: amount})
		}
		return nil
	})
}
