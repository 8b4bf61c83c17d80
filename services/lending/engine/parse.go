package engine

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendingpool/native/lending"
)

// ParseAddress decodes a 0x-prefixed hex account or asset address.
func ParseAddress(addr string) (common.Address, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("address required: %w", ErrInvalidAddress)
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q: %w", trimmed, ErrInvalidAddress)
	}
	return common.HexToAddress(trimmed), nil
}

// parseOptionalAddress returns fallback for an empty value.
func parseOptionalAddress(addr string, fallback common.Address) (common.Address, error) {
	if strings.TrimSpace(addr) == "" {
		return fallback, nil
	}
	return ParseAddress(addr)
}

// ParseAmount decodes a positive decimal amount in the asset's smallest
// unit. "max" selects the whole balance where the operation supports it.
func ParseAmount(amount string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required: %w", ErrInvalidAmount)
	}
	if strings.EqualFold(trimmed, "max") {
		return lending.MaxAmount(), nil
	}
	value, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", ErrInvalidAmount)
	}
	if value.IsZero() {
		return nil, fmt.Errorf("amount must be positive: %w", ErrInvalidAmount)
	}
	return value, nil
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
