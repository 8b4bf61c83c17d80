package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendingpool/core/events"
	fp "lendingpool/native/lending/fixedpoint"
)

// LiquidationResult reports the amounts moved by a liquidation.
type LiquidationResult struct {
	DebtCovered      *uint256.Int
	CollateralSeized *uint256.Int
	ProtocolFee      *uint256.Int
}

type liquidationAmounts struct {
	debt        *uint256.Int
	collateral  *uint256.Int
	protocolFee *uint256.Int
}

// LiquidationCall repays up to debtToCover of user's debt in debtAsset and
// seizes the equivalent collateral plus bonus. MaxAmount covers as much as
// the close factor allows.
func (p *Pool) LiquidationCall(liquidator, collateralAsset, debtAsset, user common.Address, debtToCover *uint256.Int, receiveAToken bool) (*LiquidationResult, error) {
	var result *LiquidationResult
	err := p.execute("liquidation_call", func() error {
		if debtToCover == nil || debtToCover.IsZero() {
			return ErrInvalidAmount
		}
		debt, err := p.getReserve(debtAsset)
		if err != nil {
			return err
		}
		collateral := &debt
		if collateralAsset != debtAsset {
			c, err := p.getReserve(collateralAsset)
			if err != nil {
				return err
			}
			collateral = &c
		}
		debtR := &debt
		p.accrue(debtR)
		if collateral != debtR {
			p.accrue(collateral)
		}

		rec := p.state.user(user)
		data, err := p.calculateAccountData(user, rec.Config, rec.EMode)
		if err != nil {
			return err
		}
		userDebt := p.balanceOf(debtR.DebtToken, user, &debtR.VariableBorrowIndex)
		if err := p.validateLiquidationCall(collateral, debtR, rec.Config, data, userDebt); err != nil {
			return err
		}

		amounts, collateralBalance, err := p.liquidationAmounts(collateral, debtR, user, rec.EMode, data, userDebt, debtToCover)
		if err != nil {
			return err
		}
		if err := p.settleLiquidation(liquidator, user, collateral, debtR, rec, amounts, collateralBalance, receiveAToken); err != nil {
			return err
		}
		result = &LiquidationResult{
			DebtCovered:      cloneAmount(amounts.debt),
			CollateralSeized: cloneAmount(amounts.collateral),
			ProtocolFee:      cloneAmount(amounts.protocolFee),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// liquidationAmounts applies the close factor, bonus, protocol fee and dust
// guard. The collateral amount excludes the protocol fee.
func (p *Pool) liquidationAmounts(collateral, debt *Reserve, user common.Address, eMode uint8, data AccountData, userDebt, debtToCover *uint256.Int) (liquidationAmounts, *uint256.Int, error) {
	collateralPrice, err := p.assetPrice(collateral.Asset)
	if err != nil {
		return liquidationAmounts{}, nil, err
	}
	debtPrice, err := p.assetPrice(debt.Asset)
	if err != nil {
		return liquidationAmounts{}, nil, err
	}
	collateralUnit := fp.Pow10(collateral.Configuration.Decimals())
	debtUnit := fp.Pow10(debt.Configuration.Decimals())
	collateralBalance := p.balanceOf(collateral.DepositToken, user, &collateral.LiquidityIndex)

	debtBase := fp.MulDiv(userDebt, debtPrice, debtUnit)
	collateralBase := fp.MulDiv(collateralBalance, collateralPrice, collateralUnit)
	threshold := uint256.NewInt(p.params.MinBaseMaxCloseFactorThreshold)
	closeFactor := MaxLiquidationCloseFactor
	if data.HealthFactor.Gt(closeFactorHFThreshold) && !debtBase.Lt(threshold) && !collateralBase.Lt(threshold) {
		closeFactor = DefaultLiquidationCloseFactor
	}
	maxDebt := fp.PercentMul(userDebt, closeFactor)
	debtAmount := fp.Min(debtToCover, maxDebt)

	bonus := collateral.Configuration.LiquidationBonus()
	if category, ok := p.eModeOverride(eMode, collateral.Configuration); ok {
		bonus = category.LiquidationBonus
	}
	baseCollateral := fp.MulDiv(fp.Mul(debtPrice, debtAmount), collateralUnit, fp.Mul(collateralPrice, debtUnit))
	collateralAmount := fp.PercentMul(baseCollateral, bonus)
	if collateralAmount.Gt(collateralBalance) {
		collateralAmount = collateralBalance
		debtAmount = fp.PercentDiv(fp.MulDiv(fp.Mul(collateralPrice, collateralAmount), debtUnit, fp.Mul(debtPrice, collateralUnit)), bonus)
	}

	fee := zero()
	if feeBps := collateral.Configuration.LiquidationProtocolFee(); feeBps != 0 {
		bonusCollateral := fp.Sub(collateralAmount, fp.PercentDiv(collateralAmount, bonus))
		fee = fp.PercentMul(bonusCollateral, feeBps)
		collateralAmount = fp.Sub(collateralAmount, fee)
	}

	seized := fp.Add(collateralAmount, fee)
	if debtAmount.Lt(userDebt) && seized.Lt(collateralBalance) {
		minLeftover := uint256.NewInt(p.params.MinLeftoverBase)
		leftoverDebt := fp.MulDiv(fp.Sub(userDebt, debtAmount), debtPrice, debtUnit)
		leftoverCollateral := fp.MulDiv(fp.Sub(collateralBalance, seized), collateralPrice, collateralUnit)
		if leftoverDebt.Lt(minLeftover) || leftoverCollateral.Lt(minLeftover) {
			return liquidationAmounts{}, nil, ErrMustNotLeaveDust
		}
	}
	if debtAmount.IsZero() || collateralAmount.IsZero() {
		return liquidationAmounts{}, nil, ErrInvalidAmount
	}
	return liquidationAmounts{debt: debtAmount, collateral: collateralAmount, protocolFee: fee}, collateralBalance, nil
}

func (p *Pool) settleLiquidation(liquidator, user common.Address, collateral, debt *Reserve, rec userRecord, amounts liquidationAmounts, collateralBalance *uint256.Int, receiveAToken bool) error {
	sameAsset := collateral == debt
	iso := p.isolationMode(rec.Config)
	fullSeizure := fp.Add(amounts.collateral, amounts.protocolFee).Eq(collateralBalance)
	if fullSeizure {
		rec.Config.SetUsingAsCollateral(collateral.ID, false)
		p.emit(events.LendingCollateralToggled{Reserve: collateral.Asset, User: user, Enabled: false})
	}

	if err := p.burnScaled(debt.DebtToken, user, amounts.debt, &debt.VariableBorrowIndex); err != nil {
		return err
	}
	if p.state.scaledBalance(debt.DebtToken, user).IsZero() {
		rec.Config.SetBorrowing(debt.ID, false)
	}
	p.state.putUser(user, rec)
	if sameAsset {
		p.reduceIsolationDebt(iso, debt, amounts.debt)
	} else {
		p.reduceIsolationDebt(iso, debt, amounts.debt, collateral)
	}
	p.refreshRates(debt, amounts.debt, zero())

	index := &collateral.LiquidityIndex
	if receiveAToken {
		if err := p.transferDeposit(collateral, user, liquidator, amounts.collateral, index, false); err != nil {
			return err
		}
	} else {
		p.refreshRates(collateral, zero(), amounts.collateral)
		if err := p.burnScaled(collateral.DepositToken, user, amounts.collateral, index); err != nil {
			return err
		}
	}
	if !amounts.protocolFee.IsZero() {
		treasury := p.state.settings.Treasury
		if fullSeizure {
			// The fee takes whatever the rounded collateral leg left behind.
			p.moveScaled(collateral.DepositToken, user, treasury, p.state.scaledBalance(collateral.DepositToken, user))
		} else if _, err := p.transferScaled(collateral.DepositToken, user, treasury, amounts.protocolFee, index); err != nil {
			return err
		}
		p.emit(events.LendingBalanceTransfer{Reserve: collateral.Asset, From: user, To: treasury, Amount: cloneAmount(amounts.protocolFee)})
	}
	p.state.putReserve(*debt)
	if !sameAsset {
		p.state.putReserve(*collateral)
	}

	if !receiveAToken {
		if err := p.transferAsset(collateral.Asset, collateral.DepositToken, liquidator, amounts.collateral); err != nil {
			return err
		}
	}
	if err := p.transferAsset(debt.Asset, liquidator, debt.DepositToken, amounts.debt); err != nil {
		return err
	}
	p.emit(events.LendingLiquidationCall{
		CollateralAsset:            collateral.Asset,
		DebtAsset:                  debt.Asset,
		User:                       user,
		DebtToCover:                cloneAmount(amounts.debt),
		LiquidatedCollateralAmount: cloneAmount(amounts.collateral),
		Liquidator:                 liquidator,
		ReceiveAToken:              receiveAToken,
	})
	return nil
}
