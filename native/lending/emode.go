package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendingpool/core/events"
	fp "lendingpool/native/lending/fixedpoint"
)

// EModeCategory groups correlated assets that borrow against each other with
// boosted risk parameters. Category 0 means no eMode.
type EModeCategory struct {
	ID                   uint8
	LTV                  uint64
	LiquidationThreshold uint64
	LiquidationBonus     uint64
	Label                string
}

// Validate checks the category risk parameters.
func (c EModeCategory) Validate() error {
	if c.ID == 0 {
		return ErrEModeCategoryReserved
	}
	if c.LTV == 0 || c.LiquidationThreshold == 0 || c.LTV > c.LiquidationThreshold {
		return ErrInvalidEModeCategoryParams
	}
	if c.LiquidationBonus <= PercentageFactor {
		return ErrInvalidEModeCategoryParams
	}
	bonusAdjusted := fp.PercentMul(uint256.NewInt(c.LiquidationThreshold), c.LiquidationBonus)
	if bonusAdjusted.GtUint64(PercentageFactor) {
		return ErrInvalidEModeCategoryParams
	}
	return nil
}

// SetUserEMode moves caller into categoryID, or out of eMode with 0.
func (p *Pool) SetUserEMode(caller common.Address, categoryID uint8) error {
	return p.execute("set_user_emode", func() error {
		rec := p.state.user(caller)
		if err := p.validateSetUserEMode(rec.Config, categoryID); err != nil {
			return err
		}
		prev := rec.EMode
		rec.EMode = categoryID
		p.state.putUser(caller, rec)
		p.emit(events.LendingUserEModeSet{User: caller, CategoryID: categoryID})
		if prev != 0 {
			return p.validateHealthFactor(caller)
		}
		return nil
	})
}

// eModeOverride returns the category applying to a reserve for a user in
// eMode userCategory, if any.
func (p *Pool) eModeOverride(userCategory uint8, cfg ReserveConfiguration) (EModeCategory, bool) {
	if userCategory == 0 || cfg.EModeCategory() != userCategory {
		return EModeCategory{}, false
	}
	return p.state.eMode(userCategory)
}
