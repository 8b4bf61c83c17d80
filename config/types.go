package config

// Params mirrors lending.Params. Base currency amounts carry the oracle's
// decimals; zero values fall back to the pool defaults.
type Params struct {
	BaseCurrencyUnit               uint64 `toml:"BaseCurrencyUnit" yaml:"base_currency_unit"`
	MinBaseMaxCloseFactorThreshold uint64 `toml:"MinBaseMaxCloseFactorThreshold" yaml:"min_base_max_close_factor_threshold"`
	MinLeftoverBase                uint64 `toml:"MinLeftoverBase" yaml:"min_leftover_base"`
	FlashLoanPremiumTotal          uint64 `toml:"FlashLoanPremiumTotal" yaml:"flash_loan_premium_total"`
	FlashLoanPremiumToProtocol     uint64 `toml:"FlashLoanPremiumToProtocol" yaml:"flash_loan_premium_to_protocol"`
	BridgeProtocolFee              uint64 `toml:"BridgeProtocolFee" yaml:"bridge_protocol_fee"`
}

// Roles lists the hex addresses granted each pool role.
type Roles struct {
	PoolAdmins                  []string `toml:"PoolAdmins" yaml:"pool_admins"`
	RiskAdmins                  []string `toml:"RiskAdmins" yaml:"risk_admins"`
	EmergencyAdmins             []string `toml:"EmergencyAdmins" yaml:"emergency_admins"`
	FlashBorrowers              []string `toml:"FlashBorrowers" yaml:"flash_borrowers"`
	Bridges                     []string `toml:"Bridges" yaml:"bridges"`
	IsolatedCollateralSuppliers []string `toml:"IsolatedCollateralSuppliers" yaml:"isolated_collateral_suppliers"`
}

// Pauses toggles whole modules off.
type Pauses struct {
	Lending bool `toml:"Lending" yaml:"lending"`
}

// IsPaused implements the module pause view consulted by the pool.
func (p Pauses) IsPaused(module string) bool {
	switch module {
	case "lending":
		return p.Lending
	default:
		return false
	}
}

// Strategy is an interest rate strategy expressed in basis points.
type Strategy struct {
	OptimalUsageBPS uint64 `toml:"OptimalUsageBPS" yaml:"optimal_usage_bps"`
	BaseRateBPS     uint64 `toml:"BaseRateBPS" yaml:"base_rate_bps"`
	Slope1BPS       uint64 `toml:"Slope1BPS" yaml:"slope1_bps"`
	Slope2BPS       uint64 `toml:"Slope2BPS" yaml:"slope2_bps"`
}

// Reserve lists one asset. Price is the oracle quote in the base currency
// unit; caps are whole units of the asset.
type Reserve struct {
	Asset                  string   `toml:"Asset" yaml:"asset"`
	Decimals               uint64   `toml:"Decimals" yaml:"decimals"`
	Price                  string   `toml:"Price" yaml:"price"`
	Strategy               Strategy `toml:"Strategy" yaml:"strategy"`
	LTV                    uint64   `toml:"LTV" yaml:"ltv"`
	LiquidationThreshold   uint64   `toml:"LiquidationThreshold" yaml:"liquidation_threshold"`
	LiquidationBonus       uint64   `toml:"LiquidationBonus" yaml:"liquidation_bonus"`
	ReserveFactor          uint64   `toml:"ReserveFactor" yaml:"reserve_factor"`
	LiquidationProtocolFee uint64   `toml:"LiquidationProtocolFee" yaml:"liquidation_protocol_fee"`
	BorrowCap              uint64   `toml:"BorrowCap" yaml:"borrow_cap"`
	SupplyCap              uint64   `toml:"SupplyCap" yaml:"supply_cap"`
	DebtCeiling            uint64   `toml:"DebtCeiling" yaml:"debt_ceiling"`
	UnbackedMintCap        uint64   `toml:"UnbackedMintCap" yaml:"unbacked_mint_cap"`
	BorrowingEnabled       bool     `toml:"BorrowingEnabled" yaml:"borrowing_enabled"`
	BorrowableInIsolation  bool     `toml:"BorrowableInIsolation" yaml:"borrowable_in_isolation"`
	SiloedBorrowing        bool     `toml:"SiloedBorrowing" yaml:"siloed_borrowing"`
	FlashLoanEnabled       bool     `toml:"FlashLoanEnabled" yaml:"flash_loan_enabled"`
	EModeCategory          uint8    `toml:"EModeCategory" yaml:"emode_category"`
	Frozen                 bool     `toml:"Frozen" yaml:"frozen"`
	Paused                 bool     `toml:"Paused" yaml:"paused"`
}

// EMode is an efficiency mode category.
type EMode struct {
	ID                   uint8  `toml:"ID" yaml:"id"`
	LTV                  uint64 `toml:"LTV" yaml:"ltv"`
	LiquidationThreshold uint64 `toml:"LiquidationThreshold" yaml:"liquidation_threshold"`
	LiquidationBonus     uint64 `toml:"LiquidationBonus" yaml:"liquidation_bonus"`
	Label                string `toml:"Label" yaml:"label"`
}

// Balance funds an account with underlying at boot. Amount is a decimal
// string in the asset's smallest unit.
type Balance struct {
	Asset   string `toml:"Asset" yaml:"asset"`
	Account string `toml:"Account" yaml:"account"`
	Amount  string `toml:"Amount" yaml:"amount"`
}
