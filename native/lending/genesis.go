package lending

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// GenesisReserve is one asset listed at pool creation.
type GenesisReserve struct {
	Input         ReserveInput
	Params        ReserveParams
	EModeCategory uint8
	Frozen        bool
	Paused        bool
}

// Genesis is the initial configuration of a pool, applied without access
// control checks.
type Genesis struct {
	Timestamp                  uint64
	Treasury                   common.Address
	FlashLoanPremiumTotal      uint64
	FlashLoanPremiumToProtocol uint64
	BridgeProtocolFee          uint64
	EModeCategories            []EModeCategory
	Reserves                   []GenesisReserve
}

// InitGenesis lists the genesis reserves and categories on an empty pool.
func (p *Pool) InitGenesis(g Genesis) error {
	if len(p.state.reservesList) != 0 {
		return fmt.Errorf("lending: genesis applied to a non-empty pool")
	}
	if g.Timestamp > p.now {
		p.now = g.Timestamp
	}
	return p.execute("genesis", func() error {
		if g.FlashLoanPremiumTotal > PercentageFactor || g.FlashLoanPremiumToProtocol > PercentageFactor {
			return ErrFlashLoanPremiumInvalid
		}
		if g.BridgeProtocolFee > PercentageFactor {
			return ErrBridgeProtocolFeeInvalid
		}
		settings := p.state.settings
		if g.Treasury != (common.Address{}) {
			settings.Treasury = g.Treasury
		}
		settings.FlashLoanPremiumTotal = g.FlashLoanPremiumTotal
		settings.FlashLoanPremiumToProtocol = g.FlashLoanPremiumToProtocol
		settings.BridgeProtocolFee = g.BridgeProtocolFee
		p.state.setSettings(settings)

		for _, gr := range g.Reserves {
			if err := p.initReserve(gr.Input); err != nil {
				return fmt.Errorf("reserve %s: %w", gr.Input.Asset.Hex(), err)
			}
			if err := p.configureReserve(gr.Input.Asset, gr.Params); err != nil {
				return fmt.Errorf("reserve %s: %w", gr.Input.Asset.Hex(), err)
			}
		}
		for _, category := range g.EModeCategories {
			if err := p.setEModeCategory(category); err != nil {
				return fmt.Errorf("emode category %d: %w", category.ID, err)
			}
		}
		for _, gr := range g.Reserves {
			if gr.EModeCategory != 0 {
				if err := p.assignEModeCategory(gr.Input.Asset, gr.EModeCategory); err != nil {
					return fmt.Errorf("reserve %s: %w", gr.Input.Asset.Hex(), err)
				}
			}
			if gr.Frozen || gr.Paused {
				r, _ := p.state.reserve(gr.Input.Asset)
				r.Configuration.SetFrozen(gr.Frozen)
				r.Configuration.SetPaused(gr.Paused)
				p.state.putReserve(r)
			}
		}
		p.logger.Info("lending genesis applied", "reserves", len(g.Reserves), "emodeCategories", len(g.EModeCategories))
		return nil
	})
}
