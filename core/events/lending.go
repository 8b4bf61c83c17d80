package events

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	TypeLendingSupply                        = "lending.supply"
	TypeLendingWithdraw                      = "lending.withdraw"
	TypeLendingBorrow                        = "lending.borrow"
	TypeLendingRepay                         = "lending.repay"
	TypeLendingLiquidationCall               = "lending.liquidation_call"
	TypeLendingFlashLoan                     = "lending.flash_loan"
	TypeLendingCollateralEnabled             = "lending.collateral_enabled"
	TypeLendingCollateralDisabled            = "lending.collateral_disabled"
	TypeLendingIsolationModeTotalDebtUpdated = "lending.isolation_debt_updated"
	TypeLendingUserEModeSet                  = "lending.user_emode_set"
	TypeLendingReserveDataUpdated            = "lending.reserve_data_updated"
	TypeLendingMintedToTreasury              = "lending.minted_to_treasury"
	TypeLendingBalanceTransfer               = "lending.balance_transfer"
	TypeLendingBorrowAllowanceDelegated      = "lending.borrow_allowance_delegated"
	TypeLendingMintUnbacked                  = "lending.mint_unbacked"
	TypeLendingBackUnbacked                  = "lending.back_unbacked"
	TypeLendingReserveInitialized            = "lending.reserve_initialized"
	TypeLendingReserveConfigured             = "lending.reserve_configured"
	TypeLendingEModeCategoryAdded            = "lending.emode_category_added"
)

// LendingSupply is emitted when underlying is deposited into a reserve.
type LendingSupply struct {
	Reserve      common.Address
	User         common.Address
	OnBehalfOf   common.Address
	Amount       *uint256.Int
	ReferralCode uint16
}

func (LendingSupply) EventType() string { return TypeLendingSupply }

func (e LendingSupply) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingSupply, Attributes: map[string]string{
		"reserve":      e.Reserve.Hex(),
		"user":         e.User.Hex(),
		"onBehalfOf":   e.OnBehalfOf.Hex(),
		"amount":       formatUint256(e.Amount),
		"referralCode": strconv.FormatUint(uint64(e.ReferralCode), 10),
	}}
}

// LendingWithdraw is emitted when deposit tokens are redeemed for underlying.
type LendingWithdraw struct {
	Reserve common.Address
	User    common.Address
	To      common.Address
	Amount  *uint256.Int
}

func (LendingWithdraw) EventType() string { return TypeLendingWithdraw }

func (e LendingWithdraw) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingWithdraw, Attributes: map[string]string{
		"reserve": e.Reserve.Hex(),
		"user":    e.User.Hex(),
		"to":      e.To.Hex(),
		"amount":  formatUint256(e.Amount),
	}}
}

// LendingBorrow is emitted when variable debt is opened.
type LendingBorrow struct {
	Reserve          common.Address
	User             common.Address
	OnBehalfOf       common.Address
	Amount           *uint256.Int
	InterestRateMode string
	BorrowRate       *uint256.Int
	ReferralCode     uint16
}

func (LendingBorrow) EventType() string { return TypeLendingBorrow }

func (e LendingBorrow) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingBorrow, Attributes: map[string]string{
		"reserve":          e.Reserve.Hex(),
		"user":             e.User.Hex(),
		"onBehalfOf":       e.OnBehalfOf.Hex(),
		"amount":           formatUint256(e.Amount),
		"interestRateMode": e.InterestRateMode,
		"borrowRate":       formatUint256(e.BorrowRate),
		"referralCode":     strconv.FormatUint(uint64(e.ReferralCode), 10),
	}}
}

// LendingRepay is emitted when debt is repaid with underlying or deposit
// tokens.
type LendingRepay struct {
	Reserve    common.Address
	User       common.Address
	Repayer    common.Address
	Amount     *uint256.Int
	UseATokens bool
}

func (LendingRepay) EventType() string { return TypeLendingRepay }

func (e LendingRepay) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingRepay, Attributes: map[string]string{
		"reserve":    e.Reserve.Hex(),
		"user":       e.User.Hex(),
		"repayer":    e.Repayer.Hex(),
		"amount":     formatUint256(e.Amount),
		"useATokens": strconv.FormatBool(e.UseATokens),
	}}
}

// LendingLiquidationCall is emitted once per successful liquidation.
type LendingLiquidationCall struct {
	CollateralAsset            common.Address
	DebtAsset                  common.Address
	User                       common.Address
	DebtToCover                *uint256.Int
	LiquidatedCollateralAmount *uint256.Int
	Liquidator                 common.Address
	ReceiveAToken              bool
}

func (LendingLiquidationCall) EventType() string { return TypeLendingLiquidationCall }

func (e LendingLiquidationCall) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingLiquidationCall, Attributes: map[string]string{
		"collateralAsset":            e.CollateralAsset.Hex(),
		"debtAsset":                  e.DebtAsset.Hex(),
		"user":                       e.User.Hex(),
		"debtToCover":                formatUint256(e.DebtToCover),
		"liquidatedCollateralAmount": formatUint256(e.LiquidatedCollateralAmount),
		"liquidator":                 e.Liquidator.Hex(),
		"receiveAToken":              strconv.FormatBool(e.ReceiveAToken),
	}}
}

// LendingFlashLoan is emitted when a flash loan leg is settled.
type LendingFlashLoan struct {
	Target           common.Address
	Initiator        common.Address
	Asset            common.Address
	Amount           *uint256.Int
	InterestRateMode string
	Premium          *uint256.Int
	ReferralCode     uint16
}

func (LendingFlashLoan) EventType() string { return TypeLendingFlashLoan }

func (e LendingFlashLoan) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingFlashLoan, Attributes: map[string]string{
		"target":           e.Target.Hex(),
		"initiator":        e.Initiator.Hex(),
		"asset":            e.Asset.Hex(),
		"amount":           formatUint256(e.Amount),
		"interestRateMode": e.InterestRateMode,
		"premium":          formatUint256(e.Premium),
		"referralCode":     strconv.FormatUint(uint64(e.ReferralCode), 10),
	}}
}

// LendingCollateralToggled is emitted when a user enables or disables a
// reserve as collateral.
type LendingCollateralToggled struct {
	Reserve common.Address
	User    common.Address
	Enabled bool
}

func (e LendingCollateralToggled) EventType() string {
	if e.Enabled {
		return TypeLendingCollateralEnabled
	}
	return TypeLendingCollateralDisabled
}

func (e LendingCollateralToggled) Envelope() *Envelope {
	return &Envelope{Type: e.EventType(), Attributes: map[string]string{
		"reserve": e.Reserve.Hex(),
		"user":    e.User.Hex(),
	}}
}

// LendingIsolationModeTotalDebtUpdated reports the new isolated debt of an
// isolated collateral, in units of 0.01.
type LendingIsolationModeTotalDebtUpdated struct {
	Asset     common.Address
	TotalDebt uint64
}

func (LendingIsolationModeTotalDebtUpdated) EventType() string {
	return TypeLendingIsolationModeTotalDebtUpdated
}

func (e LendingIsolationModeTotalDebtUpdated) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingIsolationModeTotalDebtUpdated, Attributes: map[string]string{
		"asset":     e.Asset.Hex(),
		"totalDebt": strconv.FormatUint(e.TotalDebt, 10),
	}}
}

type LendingUserEModeSet struct {
	User       common.Address
	CategoryID uint8
}

func (LendingUserEModeSet) EventType() string { return TypeLendingUserEModeSet }

func (e LendingUserEModeSet) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingUserEModeSet, Attributes: map[string]string{
		"user":       e.User.Hex(),
		"categoryId": strconv.FormatUint(uint64(e.CategoryID), 10),
	}}
}

// LendingReserveDataUpdated carries the rates and indexes after every rate
// refresh.
type LendingReserveDataUpdated struct {
	Reserve             common.Address
	LiquidityRate       *uint256.Int
	VariableBorrowRate  *uint256.Int
	LiquidityIndex      *uint256.Int
	VariableBorrowIndex *uint256.Int
}

func (LendingReserveDataUpdated) EventType() string { return TypeLendingReserveDataUpdated }

func (e LendingReserveDataUpdated) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingReserveDataUpdated, Attributes: map[string]string{
		"reserve":             e.Reserve.Hex(),
		"liquidityRate":       formatUint256(e.LiquidityRate),
		"variableBorrowRate":  formatUint256(e.VariableBorrowRate),
		"liquidityIndex":      formatUint256(e.LiquidityIndex),
		"variableBorrowIndex": formatUint256(e.VariableBorrowIndex),
	}}
}

type LendingMintedToTreasury struct {
	Reserve      common.Address
	AmountMinted *uint256.Int
}

func (LendingMintedToTreasury) EventType() string { return TypeLendingMintedToTreasury }

func (e LendingMintedToTreasury) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingMintedToTreasury, Attributes: map[string]string{
		"reserve":      e.Reserve.Hex(),
		"amountMinted": formatUint256(e.AmountMinted),
	}}
}

// LendingBalanceTransfer is emitted when deposit tokens move between
// holders.
type LendingBalanceTransfer struct {
	Reserve common.Address
	From    common.Address
	To      common.Address
	Amount  *uint256.Int
}

func (LendingBalanceTransfer) EventType() string { return TypeLendingBalanceTransfer }

func (e LendingBalanceTransfer) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingBalanceTransfer, Attributes: map[string]string{
		"reserve": e.Reserve.Hex(),
		"from":    e.From.Hex(),
		"to":      e.To.Hex(),
		"amount":  formatUint256(e.Amount),
	}}
}

type LendingBorrowAllowanceDelegated struct {
	Reserve   common.Address
	Delegator common.Address
	Delegatee common.Address
	Amount    *uint256.Int
}

func (LendingBorrowAllowanceDelegated) EventType() string {
	return TypeLendingBorrowAllowanceDelegated
}

func (e LendingBorrowAllowanceDelegated) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingBorrowAllowanceDelegated, Attributes: map[string]string{
		"reserve":   e.Reserve.Hex(),
		"delegator": e.Delegator.Hex(),
		"delegatee": e.Delegatee.Hex(),
		"amount":    formatUint256(e.Amount),
	}}
}

// LendingUnbacked covers both MintUnbacked and BackUnbacked.
type LendingUnbacked struct {
	Backed     bool
	Reserve    common.Address
	User       common.Address
	OnBehalfOf common.Address
	Amount     *uint256.Int
	Fee        *uint256.Int
}

func (e LendingUnbacked) EventType() string {
	if e.Backed {
		return TypeLendingBackUnbacked
	}
	return TypeLendingMintUnbacked
}

func (e LendingUnbacked) Envelope() *Envelope {
	attrs := map[string]string{
		"reserve": e.Reserve.Hex(),
		"user":    e.User.Hex(),
		"amount":  formatUint256(e.Amount),
	}
	if e.Backed {
		attrs["fee"] = formatUint256(e.Fee)
	} else {
		attrs["onBehalfOf"] = e.OnBehalfOf.Hex()
	}
	return &Envelope{Type: e.EventType(), Attributes: attrs}
}

// LendingReserveInitialized is emitted when the configurator lists an asset.
type LendingReserveInitialized struct {
	Asset        common.Address
	ID           uint16
	DepositToken common.Address
	DebtToken    common.Address
}

func (LendingReserveInitialized) EventType() string { return TypeLendingReserveInitialized }

func (e LendingReserveInitialized) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingReserveInitialized, Attributes: map[string]string{
		"asset":        e.Asset.Hex(),
		"id":           strconv.FormatUint(uint64(e.ID), 10),
		"depositToken": e.DepositToken.Hex(),
		"debtToken":    e.DebtToken.Hex(),
	}}
}

// LendingReserveConfigured is emitted for every configurator change to an
// existing reserve.
type LendingReserveConfigured struct {
	Asset  common.Address
	Change string
}

func (LendingReserveConfigured) EventType() string { return TypeLendingReserveConfigured }

func (e LendingReserveConfigured) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingReserveConfigured, Attributes: map[string]string{
		"asset":  e.Asset.Hex(),
		"change": e.Change,
	}}
}

type LendingEModeCategoryAdded struct {
	CategoryID           uint8
	LTV                  uint64
	LiquidationThreshold uint64
	LiquidationBonus     uint64
	Label                string
}

func (LendingEModeCategoryAdded) EventType() string { return TypeLendingEModeCategoryAdded }

func (e LendingEModeCategoryAdded) Envelope() *Envelope {
	return &Envelope{Type: TypeLendingEModeCategoryAdded, Attributes: map[string]string{
		"categoryId":           strconv.FormatUint(uint64(e.CategoryID), 10),
		"ltv":                  strconv.FormatUint(e.LTV, 10),
		"liquidationThreshold": strconv.FormatUint(e.LiquidationThreshold, 10),
		"liquidationBonus":     strconv.FormatUint(e.LiquidationBonus, 10),
		"label":                e.Label,
	}}
}
