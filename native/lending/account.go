package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	fp "lendingpool/native/lending/fixedpoint"
)

// AccountData aggregates a user's positions in base currency. HealthFactor is
// a wad; LTV and CurrentLiquidationThreshold are value-weighted basis points.
type AccountData struct {
	TotalCollateralBase         *uint256.Int
	TotalDebtBase               *uint256.Int
	AvailableBorrowsBase        *uint256.Int
	CurrentLiquidationThreshold uint64
	LTV                         uint64
	HealthFactor                *uint256.Int
	HasZeroLTVCollateral        bool
}

// isolationState describes the isolated collateral of a user, if any.
type isolationState struct {
	active  bool
	asset   common.Address
	ceiling uint64
}

// riskProfile resolves the modes of a user once per validation pass.
type riskProfile struct {
	eMode       uint8
	isolation   isolationState
	siloed      bool
	siloedAsset common.Address
}

func (p *Pool) isolationMode(cfg UserConfiguration) isolationState {
	if !cfg.IsUsingAsCollateralOne() {
		return isolationState{}
	}
	id, _ := cfg.FirstCollateral()
	r, ok := p.state.reserveAt(id)
	if !ok {
		return isolationState{}
	}
	ceiling := r.Configuration.DebtCeiling()
	if ceiling == 0 {
		return isolationState{}
	}
	return isolationState{active: true, asset: r.Asset, ceiling: ceiling}
}

func (p *Pool) siloedBorrowing(cfg UserConfiguration) (bool, common.Address) {
	if !cfg.IsBorrowingOne() {
		return false, common.Address{}
	}
	id, _ := cfg.FirstBorrowed()
	r, ok := p.state.reserveAt(id)
	if !ok || !r.Configuration.SiloedBorrowing() {
		return false, common.Address{}
	}
	return true, r.Asset
}

func (p *Pool) riskProfile(user common.Address) riskProfile {
	rec := p.state.user(user)
	siloed, siloedAsset := p.siloedBorrowing(rec.Config)
	return riskProfile{
		eMode:       rec.EMode,
		isolation:   p.isolationMode(rec.Config),
		siloed:      siloed,
		siloedAsset: siloedAsset,
	}
}

// valueInBase converts an asset amount to base currency, rounding down.
func valueInBase(amount, price *uint256.Int, decimals uint64) *uint256.Int {
	return fp.MulDiv(amount, price, fp.Pow10(decimals))
}

// calculateAccountData walks the reserves a user touches using indexes
// accrued to the pool timestamp.
func (p *Pool) calculateAccountData(user common.Address, cfg UserConfiguration, eMode uint8) (AccountData, error) {
	data := AccountData{
		TotalCollateralBase:  new(uint256.Int),
		TotalDebtBase:        new(uint256.Int),
		AvailableBorrowsBase: new(uint256.Int),
		HealthFactor:         fp.MaxUint256(),
	}
	if cfg.IsEmpty() {
		return data, nil
	}
	weightedLTV := new(uint256.Int)
	weightedThreshold := new(uint256.Int)
	for id := range p.state.reservesList {
		rid := uint16(id)
		if !cfg.IsUsingAsCollateralOrBorrowing(rid) {
			continue
		}
		r, ok := p.state.reserveAt(rid)
		if !ok {
			continue
		}
		price, err := p.assetPrice(r.Asset)
		if err != nil {
			return AccountData{}, err
		}
		decimals := r.Configuration.Decimals()
		ltv := r.Configuration.LTV()
		threshold := r.Configuration.LiquidationThreshold()
		if category, ok := p.eModeOverride(eMode, r.Configuration); ok {
			ltv = category.LTV
			threshold = category.LiquidationThreshold
		}
		if cfg.IsUsingAsCollateral(rid) && threshold != 0 {
			balance := p.balanceOf(r.DepositToken, user, r.NormalizedIncome(p.now))
			value := valueInBase(balance, price, decimals)
			data.TotalCollateralBase = fp.Add(data.TotalCollateralBase, value)
			if ltv != 0 {
				weightedLTV = fp.Add(weightedLTV, fp.Mul(value, uint256.NewInt(ltv)))
			} else {
				data.HasZeroLTVCollateral = true
			}
			weightedThreshold = fp.Add(weightedThreshold, fp.Mul(value, uint256.NewInt(threshold)))
		}
		if cfg.IsBorrowing(rid) {
			debt := p.balanceOf(r.DebtToken, user, r.NormalizedDebt(p.now))
			data.TotalDebtBase = fp.Add(data.TotalDebtBase, valueInBase(debt, price, decimals))
		}
	}
	if !data.TotalCollateralBase.IsZero() {
		data.LTV = fp.Div(weightedLTV, data.TotalCollateralBase).Uint64()
		data.CurrentLiquidationThreshold = fp.Div(weightedThreshold, data.TotalCollateralBase).Uint64()
	}
	if !data.TotalDebtBase.IsZero() {
		adjusted := fp.PercentMul(data.TotalCollateralBase, data.CurrentLiquidationThreshold)
		data.HealthFactor = fp.WadDiv(adjusted, data.TotalDebtBase)
	}
	data.AvailableBorrowsBase = availableBorrows(data.TotalCollateralBase, data.TotalDebtBase, data.LTV)
	return data, nil
}

func availableBorrows(collateral, debt *uint256.Int, ltv uint64) *uint256.Int {
	return fp.SubFloor(fp.PercentMul(collateral, ltv), debt)
}

// GetUserAccountData returns the aggregated position of user at the pool
// timestamp.
func (p *Pool) GetUserAccountData(user common.Address) (data AccountData, err error) {
	defer recoverMath(&err)
	rec := p.state.user(user)
	return p.calculateAccountData(user, rec.Config, rec.EMode)
}

// validateHealthFactor requires the user to stay at or above a health factor
// of one.
func (p *Pool) validateHealthFactor(user common.Address) error {
	_, err := p.validateHealthFactorData(user)
	return err
}

func (p *Pool) validateHealthFactorData(user common.Address) (AccountData, error) {
	rec := p.state.user(user)
	data, err := p.calculateAccountData(user, rec.Config, rec.EMode)
	if err != nil {
		return AccountData{}, err
	}
	if data.HealthFactor.Lt(healthFactorLiquidationThreshold) {
		return AccountData{}, ErrHealthFactorBelowThreshold
	}
	return data, nil
}

// validateHFAndLTV checks the health factor after asset stopped backing the
// user's debt and forbids freeing a non zero LTV asset while zero LTV
// collateral is held.
func (p *Pool) validateHFAndLTV(user common.Address, asset Reserve) error {
	data, err := p.validateHealthFactorData(user)
	if err != nil {
		return err
	}
	if data.HasZeroLTVCollateral && asset.Configuration.LTV() != 0 {
		return ErrLTVValidationFailed
	}
	return nil
}
