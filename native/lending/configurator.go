package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"lendingpool/core/events"
	fp "lendingpool/native/lending/fixedpoint"
)

// ReserveInput lists a new asset. Token addresses are derived from the asset
// when left empty.
type ReserveInput struct {
	Asset        common.Address
	Decimals     uint64
	Strategy     InterestRateStrategy
	DepositToken common.Address
	DebtToken    common.Address
}

// ReserveParams are the risk parameters set by SetReserveConfiguration.
// Caps are in whole units of the asset.
type ReserveParams struct {
	LTV                    uint64
	LiquidationThreshold   uint64
	LiquidationBonus       uint64
	ReserveFactor          uint64
	LiquidationProtocolFee uint64
	BorrowCap              uint64
	SupplyCap              uint64
	DebtCeiling            uint64
	UnbackedMintCap        uint64
	BorrowingEnabled       bool
	BorrowableInIsolation  bool
	SiloedBorrowing        bool
	FlashLoanEnabled       bool
}

// DeriveTokenAddress returns the ledger address of a reserve token.
func DeriveTokenAddress(asset common.Address, kind string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("lending/"+kind), asset.Bytes()))
}

func (p *Pool) requirePoolAdmin(caller common.Address) error {
	if p.acl == nil || !p.acl.IsPoolAdmin(caller) {
		return ErrCallerNotPoolAdmin
	}
	return nil
}

func (p *Pool) requireRiskOrPoolAdmin(caller common.Address) error {
	if p.acl == nil || !(p.acl.IsRiskAdmin(caller) || p.acl.IsPoolAdmin(caller)) {
		return ErrCallerNotRiskOrPoolAdmin
	}
	return nil
}

func (p *Pool) requireEmergencyOrPoolAdmin(caller common.Address) error {
	if p.acl == nil || !(p.acl.IsEmergencyAdmin(caller) || p.acl.IsPoolAdmin(caller)) {
		return ErrCallerNotPoolOrEmergencyAdmin
	}
	return nil
}

func (p *Pool) configured(asset common.Address, change string) {
	p.emit(events.LendingReserveConfigured{Asset: asset, Change: change})
}

func (p *Pool) hasSuppliers(r Reserve) bool {
	return !p.state.scaledSupply(r.DepositToken).IsZero() || !r.AccruedToTreasury.IsZero()
}

// InitReserve lists a new asset, active and unfrozen with flash loans
// enabled and all risk parameters zero.
func (p *Pool) InitReserve(caller common.Address, input ReserveInput) error {
	return p.execute("init_reserve", func() error {
		if err := p.requirePoolAdmin(caller); err != nil {
			return err
		}
		return p.initReserve(input)
	})
}

func (p *Pool) initReserve(input ReserveInput) error {
	if input.Asset == (common.Address{}) {
		return ErrZeroAddressNotValid
	}
	if _, ok := p.state.reserve(input.Asset); ok {
		return ErrReserveAlreadyAdded
	}
	if len(p.state.reservesList) >= MaxReservesCount {
		return ErrNoMoreReservesAllowed
	}
	if err := input.Strategy.Validate(); err != nil {
		return err
	}
	if input.DepositToken == (common.Address{}) {
		input.DepositToken = DeriveTokenAddress(input.Asset, "deposit")
	}
	if input.DebtToken == (common.Address{}) {
		input.DebtToken = DeriveTokenAddress(input.Asset, "debt")
	}
	r := Reserve{
		Asset:               input.Asset,
		DepositToken:        input.DepositToken,
		DebtToken:           input.DebtToken,
		Strategy:            input.Strategy,
		LastUpdateTimestamp: p.now,
	}
	if err := r.Configuration.SetDecimals(input.Decimals); err != nil {
		return err
	}
	r.Configuration.SetActive(true)
	r.Configuration.SetFlashLoanEnabled(true)
	r.LiquidityIndex.Set(fp.Ray())
	r.VariableBorrowIndex.Set(fp.Ray())
	r.ID = p.state.appendReserve(input.Asset)
	p.state.putReserve(r)
	p.emit(events.LendingReserveInitialized{
		Asset:        r.Asset,
		ID:           r.ID,
		DepositToken: r.DepositToken,
		DebtToken:    r.DebtToken,
	})
	return nil
}

// SetReserveConfiguration replaces the risk parameters of a listed asset.
func (p *Pool) SetReserveConfiguration(caller, asset common.Address, params ReserveParams) error {
	return p.execute("set_reserve_configuration", func() error {
		if err := p.requireRiskOrPoolAdmin(caller); err != nil {
			return err
		}
		return p.configureReserve(asset, params)
	})
}

func (p *Pool) configureReserve(asset common.Address, params ReserveParams) error {
	r, err := p.getReserve(asset)
	if err != nil {
		return err
	}
	p.accrue(&r)
	if params.LTV > params.LiquidationThreshold {
		return ErrInvalidReserveParams
	}
	if params.LiquidationThreshold != 0 {
		if params.LiquidationBonus <= PercentageFactor {
			return ErrInvalidReserveParams
		}
		if fp.PercentMul(uint256.NewInt(params.LiquidationThreshold), params.LiquidationBonus).GtUint64(PercentageFactor) {
			return ErrInvalidReserveParams
		}
	} else {
		if params.LiquidationBonus != 0 {
			return ErrInvalidReserveParams
		}
		if r.Configuration.LiquidationThreshold() != 0 && p.hasSuppliers(r) {
			return ErrReserveLiquidityNotZero
		}
	}
	if id := r.Configuration.EModeCategory(); id != 0 {
		if category, ok := p.state.eMode(id); ok && params.LiquidationThreshold >= category.LiquidationThreshold {
			return ErrInvalidEModeCategoryParams
		}
	}
	prevCeiling := r.Configuration.DebtCeiling()
	if prevCeiling == 0 && params.DebtCeiling != 0 && p.hasSuppliers(r) {
		return ErrReserveLiquidityNotZero
	}

	cfg := r.Configuration
	for _, set := range []struct {
		fn    func(uint64) error
		value uint64
	}{
		{cfg.SetLTV, params.LTV},
		{cfg.SetLiquidationThreshold, params.LiquidationThreshold},
		{cfg.SetLiquidationBonus, params.LiquidationBonus},
		{cfg.SetReserveFactor, params.ReserveFactor},
		{cfg.SetLiquidationProtocolFee, params.LiquidationProtocolFee},
		{cfg.SetBorrowCap, params.BorrowCap},
		{cfg.SetSupplyCap, params.SupplyCap},
		{cfg.SetDebtCeiling, params.DebtCeiling},
		{cfg.SetUnbackedMintCap, params.UnbackedMintCap},
	} {
		if err := set.fn(set.value); err != nil {
			return err
		}
	}
	cfg.SetBorrowingEnabled(params.BorrowingEnabled)
	cfg.SetBorrowableInIsolation(params.BorrowableInIsolation)
	cfg.SetSiloedBorrowing(params.SiloedBorrowing)
	cfg.SetFlashLoanEnabled(params.FlashLoanEnabled)
	r.Configuration = cfg
	if params.DebtCeiling == 0 && r.IsolationModeTotalDebt != 0 {
		r.IsolationModeTotalDebt = 0
		p.emit(events.LendingIsolationModeTotalDebtUpdated{Asset: asset})
	}
	p.refreshRates(&r, zero(), zero())
	p.state.putReserve(r)
	p.configured(asset, "configuration")
	return nil
}

// SetReserveActive activates or deactivates a reserve. Deactivation requires
// the reserve to have no suppliers.
func (p *Pool) SetReserveActive(caller, asset common.Address, active bool) error {
	return p.execute("set_reserve_active", func() error {
		if err := p.requirePoolAdmin(caller); err != nil {
			return err
		}
		r, err := p.getReserve(asset)
		if err != nil {
			return err
		}
		if !active && p.hasSuppliers(r) {
			return ErrReserveLiquidityNotZero
		}
		r.Configuration.SetActive(active)
		p.state.putReserve(r)
		p.configured(asset, "active")
		return nil
	})
}

// SetReserveFreeze blocks new supply and borrow on a reserve while leaving
// withdraw, repay and liquidation open.
func (p *Pool) SetReserveFreeze(caller, asset common.Address, frozen bool) error {
	return p.execute("set_reserve_freeze", func() error {
		if err := p.requireRiskOrPoolAdmin(caller); err != nil {
			return err
		}
		r, err := p.getReserve(asset)
		if err != nil {
			return err
		}
		r.Configuration.SetFrozen(frozen)
		p.state.putReserve(r)
		p.configured(asset, "freeze")
		return nil
	})
}

// SetReservePause pauses or unpauses a reserve. Unpausing may open a
// liquidation grace period of gracePeriod seconds.
func (p *Pool) SetReservePause(caller, asset common.Address, paused bool, gracePeriod uint64) error {
	return p.execute("set_reserve_pause", func() error {
		if err := p.requireEmergencyOrPoolAdmin(caller); err != nil {
			return err
		}
		return p.pauseReserve(asset, paused, gracePeriod)
	})
}

func (p *Pool) pauseReserve(asset common.Address, paused bool, gracePeriod uint64) error {
	if gracePeriod > MaxGracePeriod {
		return ErrInvalidGracePeriod
	}
	r, err := p.getReserve(asset)
	if err != nil {
		return err
	}
	r.Configuration.SetPaused(paused)
	if !paused && gracePeriod != 0 {
		r.LiquidationGracePeriodUntil = p.now + gracePeriod
	}
	p.state.putReserve(r)
	p.configured(asset, "pause")
	return nil
}

// SetPoolPause applies SetReservePause to every listed reserve.
func (p *Pool) SetPoolPause(caller common.Address, paused bool, gracePeriod uint64) error {
	return p.execute("set_pool_pause", func() error {
		if err := p.requireEmergencyOrPoolAdmin(caller); err != nil {
			return err
		}
		for _, asset := range p.state.reservesList {
			if err := p.pauseReserve(asset, paused, gracePeriod); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetLiquidationGracePeriod blocks liquidations against asset for
// gracePeriod seconds from now.
func (p *Pool) SetLiquidationGracePeriod(caller, asset common.Address, gracePeriod uint64) error {
	return p.execute("set_liquidation_grace_period", func() error {
		if err := p.requireEmergencyOrPoolAdmin(caller); err != nil {
			return err
		}
		if gracePeriod > MaxGracePeriod {
			return ErrInvalidGracePeriod
		}
		r, err := p.getReserve(asset)
		if err != nil {
			return err
		}
		r.LiquidationGracePeriodUntil = p.now + gracePeriod
		p.state.putReserve(r)
		p.configured(asset, "grace_period")
		return nil
	})
}

// SetInterestRateStrategy replaces the rate curve of a reserve. Interest up
// to now accrues on the old curve.
func (p *Pool) SetInterestRateStrategy(caller, asset common.Address, strategy InterestRateStrategy) error {
	return p.execute("set_interest_rate_strategy", func() error {
		if err := p.requireRiskOrPoolAdmin(caller); err != nil {
			return err
		}
		if err := strategy.Validate(); err != nil {
			return err
		}
		r, err := p.getReserve(asset)
		if err != nil {
			return err
		}
		p.accrue(&r)
		r.Strategy = strategy
		p.refreshRates(&r, zero(), zero())
		p.state.putReserve(r)
		p.configured(asset, "strategy")
		return nil
	})
}

// SetEModeCategory adds or updates an eMode category. Assets already in the
// category must stay below its liquidation threshold.
func (p *Pool) SetEModeCategory(caller common.Address, category EModeCategory) error {
	return p.execute("set_emode_category", func() error {
		if err := p.requireRiskOrPoolAdmin(caller); err != nil {
			return err
		}
		return p.setEModeCategory(category)
	})
}

func (p *Pool) setEModeCategory(category EModeCategory) error {
	if err := category.Validate(); err != nil {
		return err
	}
	for _, asset := range p.state.reservesList {
		r, _ := p.state.reserve(asset)
		if r.Configuration.EModeCategory() == category.ID && r.Configuration.LiquidationThreshold() >= category.LiquidationThreshold {
			return ErrInvalidEModeCategoryParams
		}
	}
	p.state.putEMode(category)
	p.emit(events.LendingEModeCategoryAdded{
		CategoryID:           category.ID,
		LTV:                  category.LTV,
		LiquidationThreshold: category.LiquidationThreshold,
		LiquidationBonus:     category.LiquidationBonus,
		Label:                category.Label,
	})
	return nil
}

// SetAssetEModeCategory assigns asset to categoryID, or removes it with 0.
func (p *Pool) SetAssetEModeCategory(caller, asset common.Address, categoryID uint8) error {
	return p.execute("set_asset_emode_category", func() error {
		if err := p.requireRiskOrPoolAdmin(caller); err != nil {
			return err
		}
		return p.assignEModeCategory(asset, categoryID)
	})
}

func (p *Pool) assignEModeCategory(asset common.Address, categoryID uint8) error {
	r, err := p.getReserve(asset)
	if err != nil {
		return err
	}
	if categoryID != 0 {
		category, ok := p.state.eMode(categoryID)
		if !ok || category.LiquidationThreshold <= r.Configuration.LiquidationThreshold() {
			return ErrInvalidEModeCategoryAssignment
		}
	}
	r.Configuration.SetEModeCategory(categoryID)
	p.state.putReserve(r)
	p.configured(asset, "emode_category")
	return nil
}

// SetFlashLoanPremiums sets the flash loan premium and the protocol share of
// it, both in basis points.
func (p *Pool) SetFlashLoanPremiums(caller common.Address, total, toProtocol uint64) error {
	return p.execute("set_flash_loan_premiums", func() error {
		if err := p.requirePoolAdmin(caller); err != nil {
			return err
		}
		if total > PercentageFactor || toProtocol > PercentageFactor {
			return ErrFlashLoanPremiumInvalid
		}
		settings := p.state.settings
		settings.FlashLoanPremiumTotal = total
		settings.FlashLoanPremiumToProtocol = toProtocol
		p.state.setSettings(settings)
		p.configured(common.Address{}, "flash_loan_premiums")
		return nil
	})
}

func (p *Pool) SetBridgeProtocolFee(caller common.Address, bps uint64) error {
	return p.execute("set_bridge_protocol_fee", func() error {
		if err := p.requirePoolAdmin(caller); err != nil {
			return err
		}
		if bps > PercentageFactor {
			return ErrBridgeProtocolFeeInvalid
		}
		settings := p.state.settings
		settings.BridgeProtocolFee = bps
		p.state.setSettings(settings)
		p.configured(common.Address{}, "bridge_protocol_fee")
		return nil
	})
}

// SetTreasury changes the recipient of protocol fees.
func (p *Pool) SetTreasury(caller, treasury common.Address) error {
	return p.execute("set_treasury", func() error {
		if err := p.requirePoolAdmin(caller); err != nil {
			return err
		}
		if treasury == (common.Address{}) {
			return ErrZeroAddressNotValid
		}
		settings := p.state.settings
		settings.Treasury = treasury
		p.state.setSettings(settings)
		p.configured(common.Address{}, "treasury")
		return nil
	})
}
