package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	MaxBasisPoints  = uint64(10_000)
	MaxReserves     = 128
	MaxDecimalsBits = uint64(255)
)

// ValidateConfig checks the structure of a pool configuration. Risk
// parameter consistency is enforced by the pool when genesis is applied.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if cfg.Treasury != "" && !common.IsHexAddress(cfg.Treasury) {
		return fmt.Errorf("treasury: invalid address %q", cfg.Treasury)
	}
	if cfg.Params.FlashLoanPremiumTotal > MaxBasisPoints || cfg.Params.FlashLoanPremiumToProtocol > MaxBasisPoints {
		return fmt.Errorf("params: flash loan premium above %d bps", MaxBasisPoints)
	}
	if cfg.Params.BridgeProtocolFee > MaxBasisPoints {
		return fmt.Errorf("params: bridge protocol fee above %d bps", MaxBasisPoints)
	}
	if err := cfg.Roles.validate(); err != nil {
		return fmt.Errorf("roles: %w", err)
	}

	categories := make(map[uint8]bool, len(cfg.EModes))
	for _, category := range cfg.EModes {
		if category.ID == 0 {
			return fmt.Errorf("emodes: category id 0 is reserved")
		}
		if categories[category.ID] {
			return fmt.Errorf("emodes: duplicate category %d", category.ID)
		}
		categories[category.ID] = true
	}

	if len(cfg.Reserves) > MaxReserves {
		return fmt.Errorf("reserves: at most %d reserves", MaxReserves)
	}
	listed := make(map[common.Address]bool, len(cfg.Reserves))
	for i, reserve := range cfg.Reserves {
		if !common.IsHexAddress(reserve.Asset) {
			return fmt.Errorf("reserves[%d]: invalid asset %q", i, reserve.Asset)
		}
		asset := common.HexToAddress(reserve.Asset)
		if listed[asset] {
			return fmt.Errorf("reserves[%d]: duplicate asset %s", i, reserve.Asset)
		}
		listed[asset] = true
		if reserve.Decimals > MaxDecimalsBits {
			return fmt.Errorf("reserves[%d]: decimals %d out of range", i, reserve.Decimals)
		}
		if reserve.Price != "" {
			if _, err := parseAmount(reserve.Price); err != nil {
				return fmt.Errorf("reserves[%d]: price: %w", i, err)
			}
		}
		if reserve.EModeCategory != 0 && !categories[reserve.EModeCategory] {
			return fmt.Errorf("reserves[%d]: unknown emode category %d", i, reserve.EModeCategory)
		}
	}

	for i, balance := range cfg.Balances {
		if !common.IsHexAddress(balance.Asset) || !common.IsHexAddress(balance.Account) {
			return fmt.Errorf("balances[%d]: invalid address", i)
		}
		if _, err := parseAmount(balance.Amount); err != nil {
			return fmt.Errorf("balances[%d]: %w", i, err)
		}
	}
	return nil
}

func (r Roles) validate() error {
	for _, set := range [][]string{
		r.PoolAdmins,
		r.RiskAdmins,
		r.EmergencyAdmins,
		r.FlashBorrowers,
		r.Bridges,
		r.IsolatedCollateralSuppliers,
	} {
		for _, addr := range set {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("invalid address %q", addr)
			}
		}
	}
	return nil
}

func parseAmount(value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}
