package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	fp "lendingpool/native/lending/fixedpoint"
)

// Deposit and debt tokens are scaled ledgers: a holder's real balance is its
// scaled balance times the reserve index.

func (p *Pool) balanceOf(token, holder common.Address, index *uint256.Int) *uint256.Int {
	return fp.RayMul(p.state.scaledBalance(token, holder), index)
}

func (p *Pool) totalSupply(token common.Address, index *uint256.Int) *uint256.Int {
	return fp.RayMul(p.state.scaledSupply(token), index)
}

// mintScaled credits amount to holder and reports whether the holder had no
// balance before.
func (p *Pool) mintScaled(token, holder common.Address, amount, index *uint256.Int) (bool, error) {
	scaled := fp.RayDiv(amount, index)
	if scaled.IsZero() {
		return false, ErrInvalidMintAmount
	}
	prev := p.state.scaledBalance(token, holder)
	p.state.setScaledBalance(token, holder, fp.Add(prev, scaled))
	p.state.setScaledSupply(token, fp.Add(p.state.scaledSupply(token), scaled))
	return prev.IsZero(), nil
}

// burnScaled debits amount from holder. A one unit excess caused by half-up
// rounding of a full repayment is absorbed.
func (p *Pool) burnScaled(token, holder common.Address, amount, index *uint256.Int) error {
	scaled := fp.RayDiv(amount, index)
	if scaled.IsZero() {
		return ErrInvalidBurnAmount
	}
	balance := p.state.scaledBalance(token, holder)
	if scaled.Gt(balance) {
		if fp.Sub(scaled, balance).GtUint64(1) {
			return ErrNotEnoughAvailableUserBalance
		}
		scaled = balance
	}
	p.state.setScaledBalance(token, holder, fp.Sub(balance, scaled))
	p.state.setScaledSupply(token, fp.SubFloor(p.state.scaledSupply(token), scaled))
	return nil
}

// transferScaled moves amount between holders and returns the receiver's
// scaled balance before the transfer. Like burnScaled it absorbs a one unit
// rounding excess.
func (p *Pool) transferScaled(token, from, to common.Address, amount, index *uint256.Int) (*uint256.Int, error) {
	scaled := fp.RayDiv(amount, index)
	fromBalance := p.state.scaledBalance(token, from)
	if scaled.Gt(fromBalance) {
		if fp.Sub(scaled, fromBalance).GtUint64(1) {
			return nil, ErrNotEnoughAvailableUserBalance
		}
		scaled = fromBalance
	}
	return p.moveScaled(token, from, to, scaled), nil
}

// moveScaled moves a scaled amount the caller has checked against the
// sender's balance.
func (p *Pool) moveScaled(token, from, to common.Address, scaled *uint256.Int) *uint256.Int {
	toBalance := p.state.scaledBalance(token, to)
	if from == to {
		return toBalance
	}
	p.state.setScaledBalance(token, from, fp.Sub(p.state.scaledBalance(token, from), scaled))
	p.state.setScaledBalance(token, to, fp.Add(toBalance, scaled))
	return toBalance
}
