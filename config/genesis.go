package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendingpool/native/bank"
	"lendingpool/native/lending"
	"lendingpool/native/oracle"
)

// rayPerBasisPoint converts basis points into ray.
var rayPerBasisPoint = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(23))

// PoolParams returns the construction parameters of the pool.
func (cfg *Config) PoolParams() lending.Params {
	params := lending.DefaultParams()
	if cfg.Params.BaseCurrencyUnit != 0 {
		params.BaseCurrencyUnit = cfg.Params.BaseCurrencyUnit
	}
	if cfg.Params.MinBaseMaxCloseFactorThreshold != 0 {
		params.MinBaseMaxCloseFactorThreshold = cfg.Params.MinBaseMaxCloseFactorThreshold
	}
	if cfg.Params.MinLeftoverBase != 0 {
		params.MinLeftoverBase = cfg.Params.MinLeftoverBase
	}
	params.FlashLoanPremiumTotal = cfg.Params.FlashLoanPremiumTotal
	params.FlashLoanPremiumToProtocol = cfg.Params.FlashLoanPremiumToProtocol
	params.BridgeProtocolFee = cfg.Params.BridgeProtocolFee
	if cfg.Treasury != "" {
		params.Treasury = common.HexToAddress(cfg.Treasury)
	}
	return params
}

// AccessControl builds the static role sets.
func (cfg *Config) AccessControl() *lending.Roles {
	roles := &lending.Roles{}
	grant := func(role string, addrs []string) {
		for _, addr := range addrs {
			roles.Grant(role, common.HexToAddress(addr))
		}
	}
	grant("pool_admin", cfg.Roles.PoolAdmins)
	grant("risk_admin", cfg.Roles.RiskAdmins)
	grant("emergency_admin", cfg.Roles.EmergencyAdmins)
	grant("flash_borrower", cfg.Roles.FlashBorrowers)
	grant("bridge", cfg.Roles.Bridges)
	grant("isolated_collateral_supplier", cfg.Roles.IsolatedCollateralSuppliers)
	return roles
}

// Oracle returns a static oracle quoting every reserve with a configured
// price.
func (cfg *Config) Oracle() (*oracle.Static, error) {
	quotes := oracle.NewStatic()
	for _, reserve := range cfg.Reserves {
		if reserve.Price == "" {
			continue
		}
		price, err := parseAmount(reserve.Price)
		if err != nil {
			return nil, fmt.Errorf("reserve %s: price: %w", reserve.Asset, err)
		}
		quotes.SetPrice(common.HexToAddress(reserve.Asset), price)
	}
	return quotes, nil
}

// Genesis converts the reserve listing into the pool genesis.
func (cfg *Config) Genesis() lending.Genesis {
	g := lending.Genesis{
		Timestamp:                  cfg.Timestamp,
		FlashLoanPremiumTotal:      cfg.Params.FlashLoanPremiumTotal,
		FlashLoanPremiumToProtocol: cfg.Params.FlashLoanPremiumToProtocol,
		BridgeProtocolFee:          cfg.Params.BridgeProtocolFee,
	}
	if cfg.Treasury != "" {
		g.Treasury = common.HexToAddress(cfg.Treasury)
	}
	for _, category := range cfg.EModes {
		g.EModeCategories = append(g.EModeCategories, lending.EModeCategory{
			ID:                   category.ID,
			LTV:                  category.LTV,
			LiquidationThreshold: category.LiquidationThreshold,
			LiquidationBonus:     category.LiquidationBonus,
			Label:                category.Label,
		})
	}
	for _, reserve := range cfg.Reserves {
		g.Reserves = append(g.Reserves, lending.GenesisReserve{
			Input: lending.ReserveInput{
				Asset:    common.HexToAddress(reserve.Asset),
				Decimals: reserve.Decimals,
				Strategy: reserve.Strategy.rates(),
			},
			Params: lending.ReserveParams{
				LTV:                    reserve.LTV,
				LiquidationThreshold:   reserve.LiquidationThreshold,
				LiquidationBonus:       reserve.LiquidationBonus,
				ReserveFactor:          reserve.ReserveFactor,
				LiquidationProtocolFee: reserve.LiquidationProtocolFee,
				BorrowCap:              reserve.BorrowCap,
				SupplyCap:              reserve.SupplyCap,
				DebtCeiling:            reserve.DebtCeiling,
				UnbackedMintCap:        reserve.UnbackedMintCap,
				BorrowingEnabled:       reserve.BorrowingEnabled,
				BorrowableInIsolation:  reserve.BorrowableInIsolation,
				SiloedBorrowing:        reserve.SiloedBorrowing,
				FlashLoanEnabled:       reserve.FlashLoanEnabled,
			},
			EModeCategory: reserve.EModeCategory,
			Frozen:        reserve.Frozen,
			Paused:        reserve.Paused,
		})
	}
	return g
}

func (s Strategy) rates() lending.InterestRateStrategy {
	var out lending.InterestRateStrategy
	out.OptimalUsageRatio.Mul(uint256.NewInt(s.OptimalUsageBPS), rayPerBasisPoint)
	out.BaseVariableBorrowRate.Mul(uint256.NewInt(s.BaseRateBPS), rayPerBasisPoint)
	out.VariableRateSlope1.Mul(uint256.NewInt(s.Slope1BPS), rayPerBasisPoint)
	out.VariableRateSlope2.Mul(uint256.NewInt(s.Slope2BPS), rayPerBasisPoint)
	return out
}

// Fund mints the configured boot balances into ledger.
func (cfg *Config) Fund(ledger *bank.Ledger) error {
	for _, balance := range cfg.Balances {
		amount, err := parseAmount(balance.Amount)
		if err != nil {
			return fmt.Errorf("balance %s/%s: %w", balance.Asset, balance.Account, err)
		}
		if err := ledger.Mint(common.HexToAddress(balance.Asset), common.HexToAddress(balance.Account), amount); err != nil {
			return fmt.Errorf("balance %s/%s: %w", balance.Asset, balance.Account, err)
		}
	}
	if len(cfg.Balances) > 0 {
		ledger.Commit()
	}
	return nil
}
