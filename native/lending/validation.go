package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	fp "lendingpool/native/lending/fixedpoint"
)

// Validation functions run their checks in a fixed order and return the
// first failure.

func requireActiveNotPaused(cfg ReserveConfiguration) error {
	if !cfg.Active() {
		return ErrReserveInactive
	}
	if cfg.Paused() {
		return ErrReservePaused
	}
	return nil
}

func (p *Pool) validateSupply(r *Reserve, amount *uint256.Int, onBehalfOf common.Address) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	if err := requireActiveNotPaused(r.Configuration); err != nil {
		return err
	}
	if r.Configuration.Frozen() {
		return ErrReserveFrozen
	}
	if onBehalfOf == r.DepositToken {
		return ErrSupplyToDepositToken
	}
	if supplyCap := r.Configuration.SupplyCap(); supplyCap != 0 {
		scaled := fp.Add(p.state.scaledSupply(r.DepositToken), &r.AccruedToTreasury)
		total := fp.Add(fp.RayMul(scaled, &r.LiquidityIndex), amount)
		limit := fp.Mul(uint256.NewInt(supplyCap), fp.Pow10(r.Configuration.Decimals()))
		if total.Gt(limit) {
			return ErrSupplyCapExceeded
		}
	}
	return nil
}

func validateWithdraw(r *Reserve, amount, balance *uint256.Int, to common.Address) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	if amount.Gt(balance) {
		return ErrNotEnoughAvailableUserBalance
	}
	if err := requireActiveNotPaused(r.Configuration); err != nil {
		return err
	}
	if to == r.DepositToken {
		return ErrWithdrawToDepositToken
	}
	if amount.Gt(&r.VirtualUnderlyingBalance) {
		return ErrInsufficientLiquidity
	}
	return nil
}

type borrowValidation struct {
	reserve           *Reserve
	user              common.Address
	amount            *uint256.Int
	mode              InterestRateMode
	releaseUnderlying bool
	config            UserConfiguration
	profile           riskProfile
}

func (p *Pool) validateBorrow(v borrowValidation) error {
	r := v.reserve
	cfg := r.Configuration
	if v.amount == nil || v.amount.IsZero() {
		return ErrInvalidAmount
	}
	if err := requireActiveNotPaused(cfg); err != nil {
		return err
	}
	if cfg.Frozen() {
		return ErrReserveFrozen
	}
	if !cfg.BorrowingEnabled() {
		return ErrBorrowingNotEnabled
	}
	if v.mode != VariableRate {
		return ErrInvalidInterestRateMode
	}
	if v.releaseUnderlying && v.amount.Gt(&r.VirtualUnderlyingBalance) {
		return ErrInsufficientLiquidity
	}
	decimals := cfg.Decimals()
	if borrowCap := cfg.BorrowCap(); borrowCap != 0 {
		totalDebt := fp.Add(fp.RayMul(p.state.scaledSupply(r.DebtToken), &r.VariableBorrowIndex), v.amount)
		if totalDebt.Gt(fp.Mul(uint256.NewInt(borrowCap), fp.Pow10(decimals))) {
			return ErrBorrowCapExceeded
		}
	}
	if v.profile.isolation.active {
		if !cfg.BorrowableInIsolation() {
			return ErrAssetNotBorrowableInIsolation
		}
		collateral, ok := p.state.reserve(v.profile.isolation.asset)
		if !ok {
			return ErrAssetNotListed
		}
		current := collateral.IsolationModeTotalDebt
		if collateral.Asset == r.Asset {
			current = r.IsolationModeTotalDebt
		}
		next := fp.Add(uint256.NewInt(current), isolationDebtUnits(v.amount, decimals))
		if next.GtUint64(v.profile.isolation.ceiling) {
			return ErrDebtCeilingExceeded
		}
	}
	if v.profile.eMode != 0 && cfg.EModeCategory() != v.profile.eMode {
		return ErrInconsistentEModeCategory
	}

	data, err := p.calculateAccountData(v.user, v.config, v.profile.eMode)
	if err != nil {
		return err
	}
	if data.TotalCollateralBase.IsZero() {
		return ErrCollateralBalanceIsZero
	}
	if data.LTV == 0 {
		return ErrLTVValidationFailed
	}
	if !data.HealthFactor.Gt(healthFactorLiquidationThreshold) {
		return ErrHealthFactorBelowThreshold
	}
	price, err := p.assetPrice(r.Asset)
	if err != nil {
		return err
	}
	amountBase := valueInBase(v.amount, price, decimals)
	needed := fp.PercentDiv(fp.Add(data.TotalDebtBase, amountBase), data.LTV)
	if needed.Gt(data.TotalCollateralBase) {
		return ErrCollateralCannotCoverNewBorrow
	}

	if v.config.IsBorrowingAny() {
		if v.profile.siloed {
			if v.profile.siloedAsset != r.Asset {
				return ErrSiloedBorrowingViolation
			}
		} else if cfg.SiloedBorrowing() {
			return ErrSiloedBorrowingViolation
		}
	}
	return nil
}

// isolationDebtUnits converts a debt amount into the two decimal units of
// isolation mode accounting.
func isolationDebtUnits(amount *uint256.Int, decimals uint64) *uint256.Int {
	if decimals >= DebtCeilingDecimals {
		return fp.Div(amount, fp.Pow10(decimals-DebtCeilingDecimals))
	}
	return fp.Mul(amount, fp.Pow10(DebtCeilingDecimals-decimals))
}

func validateRepay(r *Reserve, caller, onBehalfOf common.Address, amount *uint256.Int, mode InterestRateMode, debt *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	if mode != VariableRate {
		return ErrInvalidInterestRateMode
	}
	if isMax(amount) && caller != onBehalfOf {
		return ErrNoExplicitAmountToRepayOnBehalf
	}
	if err := requireActiveNotPaused(r.Configuration); err != nil {
		return err
	}
	if debt.IsZero() {
		return ErrNoDebtOfSelectedType
	}
	return nil
}

// validateUseAsCollateral decides whether a reserve may become collateral
// for a user holding cfg.
func (p *Pool) validateUseAsCollateral(cfg UserConfiguration, reserveCfg ReserveConfiguration) bool {
	if reserveCfg.LTV() == 0 {
		return false
	}
	if !cfg.IsUsingAsCollateralAny() {
		return true
	}
	return !p.isolationMode(cfg).active && reserveCfg.DebtCeiling() == 0
}

// validateAutomaticUseAsCollateral is validateUseAsCollateral for implicit
// enables; isolated assets additionally require the supplier role.
func (p *Pool) validateAutomaticUseAsCollateral(caller common.Address, cfg UserConfiguration, reserveCfg ReserveConfiguration) bool {
	if reserveCfg.DebtCeiling() != 0 {
		if p.acl == nil || !p.acl.IsIsolatedCollateralSupplier(caller) {
			return false
		}
	}
	return p.validateUseAsCollateral(cfg, reserveCfg)
}

func validateFlashLoanReserve(r *Reserve, amount, depositSupply *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	if err := requireActiveNotPaused(r.Configuration); err != nil {
		return err
	}
	if !r.Configuration.FlashLoanEnabled() {
		return ErrFlashLoanDisabled
	}
	if amount.Gt(depositSupply) || amount.Gt(&r.VirtualUnderlyingBalance) {
		return ErrInsufficientLiquidity
	}
	return nil
}

func validateFlashLoanShape(assets []common.Address, amounts []*uint256.Int, modes []InterestRateMode) error {
	if len(assets) == 0 || len(assets) != len(amounts) || len(assets) != len(modes) {
		return ErrInconsistentFlashLoanParams
	}
	seen := make(map[common.Address]struct{}, len(assets))
	for _, asset := range assets {
		if _, dup := seen[asset]; dup {
			return ErrInconsistentFlashLoanParams
		}
		seen[asset] = struct{}{}
	}
	for _, mode := range modes {
		if mode != NoneRate && mode != VariableRate {
			return ErrInvalidInterestRateMode
		}
	}
	return nil
}

func (p *Pool) validateSetUserEMode(cfg UserConfiguration, categoryID uint8) error {
	if categoryID != 0 {
		category, ok := p.state.eMode(categoryID)
		if !ok || category.LiquidationThreshold == 0 {
			return ErrInconsistentEModeCategory
		}
	}
	if cfg.IsEmpty() || categoryID == 0 {
		return nil
	}
	for id := range p.state.reservesList {
		rid := uint16(id)
		if !cfg.IsBorrowing(rid) {
			continue
		}
		r, ok := p.state.reserveAt(rid)
		if ok && r.Configuration.EModeCategory() != categoryID {
			return ErrInconsistentEModeCategory
		}
	}
	return nil
}

func (p *Pool) validateLiquidationCall(collateral, debt *Reserve, cfg UserConfiguration, data AccountData, userDebt *uint256.Int) error {
	if !collateral.Configuration.Active() || !debt.Configuration.Active() {
		return ErrReserveInactive
	}
	if collateral.Configuration.Paused() || debt.Configuration.Paused() {
		return ErrReservePaused
	}
	if collateral.LiquidationGracePeriodUntil > p.now || debt.LiquidationGracePeriodUntil > p.now {
		return ErrLiquidationGraceSentinelCheckFailed
	}
	if data.TotalDebtBase.IsZero() {
		return ErrNoDebtToLiquidate
	}
	if !data.HealthFactor.Lt(healthFactorLiquidationThreshold) {
		return ErrHealthFactorNotBelowThreshold
	}
	if userDebt.IsZero() {
		return ErrSpecifiedCurrencyNotBorrowedByUser
	}
	if collateral.Configuration.LiquidationThreshold() == 0 || !cfg.IsUsingAsCollateral(collateral.ID) {
		return ErrCollateralCannotBeLiquidated
	}
	return nil
}
