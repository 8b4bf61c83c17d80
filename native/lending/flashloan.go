package lending

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"lendingpool/core/events"
	fp "lendingpool/native/lending/fixedpoint"
)

// FlashLoanReceipt is an open flash loan leg. It stays in the pool until
// settled by its receiver.
type FlashLoanReceipt struct {
	ID                common.Hash
	Sender            common.Address
	Receiver          common.Address
	OnBehalfOf        common.Address
	Asset             common.Address
	Amount            uint256.Int
	PremiumTotal      uint256.Int
	PremiumToProtocol uint256.Int
	InterestRateMode  InterestRateMode
	ReferralCode      uint16
	Complex           bool
}

// PremiumToLiquidityProviders is the premium share distributed to suppliers.
func (r FlashLoanReceipt) PremiumToLiquidityProviders() *uint256.Int {
	return fp.Sub(&r.PremiumTotal, &r.PremiumToProtocol)
}

// AmountOwed is what the receiver pays back on a full repayment.
func (r FlashLoanReceipt) AmountOwed() *uint256.Int {
	return fp.Add(&r.Amount, &r.PremiumTotal)
}

func (p *Pool) nextReceiptID(sender common.Address) common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], p.nonce)
	p.nonce++
	return crypto.Keccak256Hash(sender.Bytes(), buf[:])
}

// openFlashLoan moves amount to the receiver without touching rates and
// records the receipt.
func (p *Pool) openFlashLoan(receipt *FlashLoanReceipt) error {
	r, err := p.getReserve(receipt.Asset)
	if err != nil {
		return err
	}
	supply := p.totalSupply(r.DepositToken, r.NormalizedIncome(p.now))
	if err := validateFlashLoanReserve(&r, &receipt.Amount, supply); err != nil {
		return err
	}
	r.VirtualUnderlyingBalance.Set(fp.Sub(&r.VirtualUnderlyingBalance, &receipt.Amount))
	p.state.putReserve(r)
	receipt.ID = p.nextReceiptID(receipt.Sender)
	p.state.putReceipt(*receipt)
	return p.transferAsset(receipt.Asset, r.DepositToken, receipt.Receiver, &receipt.Amount)
}

func (p *Pool) premiums(amount *uint256.Int, waived bool) (total, toProtocol *uint256.Int) {
	if waived {
		return zero(), zero()
	}
	settings := p.state.settings
	total = fp.PercentMul(amount, settings.FlashLoanPremiumTotal)
	return total, fp.PercentMul(total, settings.FlashLoanPremiumToProtocol)
}

// FlashLoanSimple lends amount of asset to receiver until the receipt is
// settled with PayFlashLoanSimple.
func (p *Pool) FlashLoanSimple(caller, receiver, asset common.Address, amount *uint256.Int, referralCode uint16) (FlashLoanReceipt, error) {
	var receipt FlashLoanReceipt
	err := p.execute("flash_loan_simple", func() error {
		if amount == nil {
			return ErrInvalidAmount
		}
		total, toProtocol := p.premiums(amount, false)
		receipt = FlashLoanReceipt{
			Sender:           caller,
			Receiver:         receiver,
			OnBehalfOf:       caller,
			Asset:            asset,
			InterestRateMode: NoneRate,
			ReferralCode:     referralCode,
		}
		receipt.Amount.Set(amount)
		receipt.PremiumTotal.Set(total)
		receipt.PremiumToProtocol.Set(toProtocol)
		return p.openFlashLoan(&receipt)
	})
	if err != nil {
		return FlashLoanReceipt{}, err
	}
	return receipt, nil
}

// FlashLoan lends several assets at once. Legs with VariableRate are settled
// by opening debt for onBehalfOf instead of repaying, and pay no premium.
// Registered flash borrowers pay no premium and may act for another account.
func (p *Pool) FlashLoan(caller, receiver common.Address, assets []common.Address, amounts []*uint256.Int, modes []InterestRateMode, onBehalfOf common.Address, referralCode uint16) ([]FlashLoanReceipt, error) {
	var receipts []FlashLoanReceipt
	err := p.execute("flash_loan", func() error {
		if err := validateFlashLoanShape(assets, amounts, modes); err != nil {
			return err
		}
		authorized := p.acl != nil && p.acl.IsFlashBorrower(caller)
		if caller != onBehalfOf && !authorized {
			return ErrSignerAndOnBehalfOfNotSame
		}
		receipts = make([]FlashLoanReceipt, 0, len(assets))
		for i, asset := range assets {
			if amounts[i] == nil {
				return ErrInvalidAmount
			}
			total, toProtocol := p.premiums(amounts[i], authorized || modes[i] == VariableRate)
			receipt := FlashLoanReceipt{
				Sender:           caller,
				Receiver:         receiver,
				OnBehalfOf:       onBehalfOf,
				Asset:            asset,
				InterestRateMode: modes[i],
				ReferralCode:     referralCode,
				Complex:          true,
			}
			receipt.Amount.Set(amounts[i])
			receipt.PremiumTotal.Set(total)
			receipt.PremiumToProtocol.Set(toProtocol)
			if err := p.openFlashLoan(&receipt); err != nil {
				return err
			}
			receipts = append(receipts, receipt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

func (p *Pool) openReceipt(payer common.Address, id common.Hash, complexLoan bool) (FlashLoanReceipt, error) {
	receipt, ok := p.state.receipt(id)
	if !ok || receipt.Complex != complexLoan {
		return FlashLoanReceipt{}, ErrFlashLoanReceiptInvalid
	}
	if payer != receipt.Receiver {
		return FlashLoanReceipt{}, ErrFlashLoanPayerNotReceiver
	}
	return receipt, nil
}

// PayFlashLoanSimple settles a simple flash loan with amount plus premium
// pulled from payer, which must be the receipt's receiver.
func (p *Pool) PayFlashLoanSimple(payer common.Address, receipt FlashLoanReceipt) error {
	return p.execute("pay_flash_loan_simple", func() error {
		stored, err := p.openReceipt(payer, receipt.ID, false)
		if err != nil {
			return err
		}
		return p.repayFlashLoan(payer, stored)
	})
}

// PayFlashLoanComplex settles the legs of a multi asset flash loan.
func (p *Pool) PayFlashLoanComplex(payer common.Address, receipts []FlashLoanReceipt) error {
	return p.execute("pay_flash_loan", func() error {
		for _, receipt := range receipts {
			stored, err := p.openReceipt(payer, receipt.ID, true)
			if err != nil {
				return err
			}
			if stored.InterestRateMode == NoneRate {
				if err := p.repayFlashLoan(payer, stored); err != nil {
					return err
				}
				continue
			}
			p.state.deleteReceipt(stored.ID)
			if err := p.executeBorrow(borrowParams{
				caller:       stored.Sender,
				onBehalfOf:   stored.OnBehalfOf,
				asset:        stored.Asset,
				amount:       &stored.Amount,
				mode:         stored.InterestRateMode,
				referralCode: stored.ReferralCode,
			}); err != nil {
				return err
			}
			p.emitFlashLoan(stored)
		}
		return nil
	})
}

func (p *Pool) repayFlashLoan(payer common.Address, receipt FlashLoanReceipt) error {
	r, err := p.getReserve(receipt.Asset)
	if err != nil {
		return err
	}
	p.accrue(&r)
	totalLiquidity := fp.Add(
		p.totalSupply(r.DepositToken, &r.LiquidityIndex),
		fp.RayMul(&r.AccruedToTreasury, &r.LiquidityIndex),
	)
	r.cumulateToLiquidityIndex(totalLiquidity, receipt.PremiumToLiquidityProviders())
	r.AccruedToTreasury.Set(fp.Add(&r.AccruedToTreasury, fp.RayDiv(&receipt.PremiumToProtocol, &r.LiquidityIndex)))
	owed := receipt.AmountOwed()
	p.refreshRates(&r, owed, zero())
	p.state.putReserve(r)
	p.state.deleteReceipt(receipt.ID)
	if err := p.transferAsset(receipt.Asset, payer, r.DepositToken, owed); err != nil {
		return err
	}
	p.emitFlashLoan(receipt)
	return nil
}

func (p *Pool) emitFlashLoan(receipt FlashLoanReceipt) {
	p.emit(events.LendingFlashLoan{
		Target:           receipt.Receiver,
		Initiator:        receipt.Sender,
		Asset:            receipt.Asset,
		Amount:           cloneAmount(&receipt.Amount),
		InterestRateMode: receipt.InterestRateMode.String(),
		Premium:          cloneAmount(&receipt.PremiumTotal),
		ReferralCode:     receipt.ReferralCode,
	})
}

// Transact runs fn as one atomic caller transaction. Every pool operation
// invoked by fn joins it; fn failing or leaving a flash loan unsettled
// discards all of them.
func (p *Pool) Transact(fn func() error) error {
	return p.execute("transact", fn)
}
