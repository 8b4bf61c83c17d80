package engine

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"lendingpool/native/lending"
)

// Reserve is the query view of one listed asset. Indexes and rates are rays
// rendered as decimal strings.
type Reserve struct {
	ID                     uint16 `json:"id"`
	Asset                  string `json:"asset"`
	DepositToken           string `json:"depositToken"`
	DebtToken              string `json:"debtToken"`
	Decimals               uint64 `json:"decimals"`
	LTV                    uint64 `json:"ltv"`
	LiquidationThreshold   uint64 `json:"liquidationThreshold"`
	LiquidationBonus       uint64 `json:"liquidationBonus"`
	ReserveFactor          uint64 `json:"reserveFactor"`
	BorrowCap              uint64 `json:"borrowCap"`
	SupplyCap              uint64 `json:"supplyCap"`
	DebtCeiling            uint64 `json:"debtCeiling"`
	EModeCategory          uint8  `json:"eModeCategory"`
	Active                 bool   `json:"active"`
	Frozen                 bool   `json:"frozen"`
	Paused                 bool   `json:"paused"`
	BorrowingEnabled       bool   `json:"borrowingEnabled"`
	FlashLoanEnabled       bool   `json:"flashLoanEnabled"`
	LiquidityIndex         string `json:"liquidityIndex"`
	VariableBorrowIndex    string `json:"variableBorrowIndex"`
	LiquidityRate          string `json:"liquidityRate"`
	VariableBorrowRate     string `json:"variableBorrowRate"`
	TotalDeposits          string `json:"totalDeposits"`
	TotalVariableDebt      string `json:"totalVariableDebt"`
	AvailableLiquidity     string `json:"availableLiquidity"`
	AccruedToTreasury      string `json:"accruedToTreasury"`
	Unbacked               string `json:"unbacked"`
	IsolationModeTotalDebt uint64 `json:"isolationModeTotalDebt"`
	LastUpdateTimestamp    uint64 `json:"lastUpdateTimestamp"`
}

// Position is a user's holding in one reserve.
type Position struct {
	Asset             string `json:"asset"`
	Deposit           string `json:"deposit"`
	Debt              string `json:"debt"`
	UsingAsCollateral bool   `json:"usingAsCollateral"`
	Borrowing         bool   `json:"borrowing"`
}

// Account is the solvency view of a user. Base amounts carry the oracle's
// decimals; the health factor is a wad.
type Account struct {
	Address                     string     `json:"address"`
	EModeCategory               uint8      `json:"eModeCategory"`
	TotalCollateralBase         string     `json:"totalCollateralBase"`
	TotalDebtBase               string     `json:"totalDebtBase"`
	AvailableBorrowsBase        string     `json:"availableBorrowsBase"`
	CurrentLiquidationThreshold uint64     `json:"currentLiquidationThreshold"`
	LTV                         uint64     `json:"ltv"`
	HealthFactor                string     `json:"healthFactor"`
	Positions                   []Position `json:"positions"`
}

func reserveView(data lending.ReserveData) Reserve {
	cfg := data.Configuration
	return Reserve{
		ID:                     data.ID,
		Asset:                  data.Asset.Hex(),
		DepositToken:           data.DepositToken.Hex(),
		DebtToken:              data.DebtToken.Hex(),
		Decimals:               cfg.Decimals(),
		LTV:                    cfg.LTV(),
		LiquidationThreshold:   cfg.LiquidationThreshold(),
		LiquidationBonus:       cfg.LiquidationBonus(),
		ReserveFactor:          cfg.ReserveFactor(),
		BorrowCap:              cfg.BorrowCap(),
		SupplyCap:              cfg.SupplyCap(),
		DebtCeiling:            cfg.DebtCeiling(),
		EModeCategory:          cfg.EModeCategory(),
		Active:                 cfg.Active(),
		Frozen:                 cfg.Frozen(),
		Paused:                 cfg.Paused(),
		BorrowingEnabled:       cfg.BorrowingEnabled(),
		FlashLoanEnabled:       cfg.FlashLoanEnabled(),
		LiquidityIndex:         formatAmount(data.AccruedLiquidityIndex),
		VariableBorrowIndex:    formatAmount(data.AccruedVariableBorrowIndex),
		LiquidityRate:          data.CurrentLiquidityRate.Dec(),
		VariableBorrowRate:     data.CurrentVariableBorrowRate.Dec(),
		TotalDeposits:          formatAmount(data.TotalDeposits),
		TotalVariableDebt:      formatAmount(data.TotalVariableDebt),
		AvailableLiquidity:     formatAmount(data.AvailableLiquidity),
		AccruedToTreasury:      data.AccruedToTreasury.Dec(),
		Unbacked:               data.Unbacked.Dec(),
		IsolationModeTotalDebt: data.IsolationModeTotalDebt,
		LastUpdateTimestamp:    data.LastUpdateTimestamp,
	}
}

// Reserves lists every reserve in id order.
func (e *Engine) Reserves(ctx context.Context) ([]Reserve, error) {
	var out []Reserve
	err := e.read(ctx, func() error {
		assets := e.pool.GetReservesList()
		out = make([]Reserve, 0, len(assets))
		for _, asset := range assets {
			data, err := e.pool.GetReserveData(asset)
			if err != nil {
				return err
			}
			out = append(out, reserveView(data))
		}
		return nil
	})
	return out, err
}

// Reserve returns the reserve of asset.
func (e *Engine) Reserve(ctx context.Context, asset string) (Reserve, error) {
	addr, err := ParseAddress(asset)
	if err != nil {
		return Reserve{}, err
	}
	var out Reserve
	err = e.read(ctx, func() error {
		data, err := e.pool.GetReserveData(addr)
		if errors.Is(err, lending.ErrAssetNotListed) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out = reserveView(data)
		return nil
	})
	return out, err
}

// Account returns the solvency summary and positions of user.
func (e *Engine) Account(ctx context.Context, user string) (Account, error) {
	addr, err := ParseAddress(user)
	if err != nil {
		return Account{}, err
	}
	var out Account
	err = e.read(ctx, func() error {
		data, err := e.pool.GetUserAccountData(addr)
		if err != nil {
			return err
		}
		out = Account{
			Address:                     addr.Hex(),
			EModeCategory:               e.pool.GetUserEMode(addr),
			TotalCollateralBase:         formatAmount(data.TotalCollateralBase),
			TotalDebtBase:               formatAmount(data.TotalDebtBase),
			AvailableBorrowsBase:        formatAmount(data.AvailableBorrowsBase),
			CurrentLiquidationThreshold: data.CurrentLiquidationThreshold,
			LTV:                         data.LTV,
			HealthFactor:                formatAmount(data.HealthFactor),
		}
		out.Positions, err = e.positions(addr)
		return err
	})
	return out, err
}

func (e *Engine) positions(user common.Address) ([]Position, error) {
	cfg := e.pool.GetUserConfiguration(user)
	var out []Position
	for _, asset := range e.pool.GetReservesList() {
		data, err := e.pool.GetReserveData(asset)
		if err != nil {
			return nil, err
		}
		deposit, err := e.pool.DepositBalance(asset, user)
		if err != nil {
			return nil, err
		}
		debt, err := e.pool.DebtBalance(asset, user)
		if err != nil {
			return nil, err
		}
		if deposit.IsZero() && debt.IsZero() && !cfg.IsUsingAsCollateralOrBorrowing(data.ID) {
			continue
		}
		out = append(out, Position{
			Asset:             asset.Hex(),
			Deposit:           deposit.Dec(),
			Debt:              debt.Dec(),
			UsingAsCollateral: cfg.IsUsingAsCollateral(data.ID),
			Borrowing:         cfg.IsBorrowing(data.ID),
		})
	}
	return out, nil
}
