package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendingpool/core/events"
	fp "lendingpool/native/lending/fixedpoint"
)

// MintUnbacked credits deposit tokens for liquidity that a bridge will back
// later. Only bridges may call it and the reserve's unbacked mint cap bounds
// the outstanding amount.
func (p *Pool) MintUnbacked(caller, asset common.Address, amount *uint256.Int, onBehalfOf common.Address, referralCode uint16) error {
	return p.execute("mint_unbacked", func() error {
		if p.acl == nil || !p.acl.IsBridge(caller) {
			return ErrCallerNotBridge
		}
		r, err := p.getReserve(asset)
		if err != nil {
			return err
		}
		p.accrue(&r)
		if err := p.validateSupply(&r, amount, onBehalfOf); err != nil {
			return err
		}
		unbacked := fp.Add(&r.Unbacked, amount)
		limit := fp.Mul(uint256.NewInt(r.Configuration.UnbackedMintCap()), fp.Pow10(r.Configuration.Decimals()))
		if unbacked.Gt(limit) {
			return ErrUnbackedMintCapExceeded
		}
		r.Unbacked.Set(unbacked)
		p.refreshRates(&r, zero(), zero())
		p.state.putReserve(r)

		first, err := p.mintScaled(r.DepositToken, onBehalfOf, amount, &r.LiquidityIndex)
		if err != nil {
			return err
		}
		if first {
			p.autoEnableCollateral(caller, onBehalfOf, &r)
		}
		p.emit(events.LendingUnbacked{
			Reserve:    asset,
			User:       caller,
			OnBehalfOf: onBehalfOf,
			Amount:     cloneAmount(amount),
			Fee:        zero(),
		})
		return nil
	})
}

// BackUnbacked pulls up to amount of outstanding unbacked liquidity plus fee
// from the bridge. The fee is split between suppliers and the treasury by
// the bridge protocol fee. The backed amount is returned.
func (p *Pool) BackUnbacked(caller, asset common.Address, amount, fee *uint256.Int) (*uint256.Int, error) {
	var backed *uint256.Int
	err := p.execute("back_unbacked", func() error {
		if p.acl == nil || !p.acl.IsBridge(caller) {
			return ErrCallerNotBridge
		}
		if amount == nil {
			return ErrInvalidAmount
		}
		if fee == nil {
			fee = zero()
		}
		r, err := p.getReserve(asset)
		if err != nil {
			return err
		}
		p.accrue(&r)
		backing := fp.Min(amount, &r.Unbacked)
		toProtocol := fp.PercentMul(fee, p.state.settings.BridgeProtocolFee)
		toSuppliers := fp.Sub(fee, toProtocol)
		totalLiquidity := fp.Add(
			p.totalSupply(r.DepositToken, &r.LiquidityIndex),
			fp.RayMul(&r.AccruedToTreasury, &r.LiquidityIndex),
		)
		r.cumulateToLiquidityIndex(totalLiquidity, toSuppliers)
		r.AccruedToTreasury.Set(fp.Add(&r.AccruedToTreasury, fp.RayDiv(toProtocol, &r.LiquidityIndex)))
		r.Unbacked.Set(fp.Sub(&r.Unbacked, backing))
		added := fp.Add(backing, fee)
		p.refreshRates(&r, added, zero())
		p.state.putReserve(r)

		if err := p.transferAsset(asset, caller, r.DepositToken, added); err != nil {
			return err
		}
		p.emit(events.LendingUnbacked{
			Backed:  true,
			Reserve: asset,
			User:    caller,
			Amount:  cloneAmount(backing),
			Fee:     cloneAmount(fee),
		})
		backed = backing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return backed, nil
}
