package lending

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendingpool/core/events"
)

var stablecoins = EModeCategory{ID: 1, LTV: 9_000, LiquidationThreshold: 9_300, LiquidationBonus: 10_200, Label: "stablecoins"}

func eModeHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	if err := h.pool.SetEModeCategory(admin, stablecoins); err != nil {
		t.Fatalf("category: %v", err)
	}
	for _, asset := range []common.Address{assetA, assetB} {
		if err := h.pool.SetAssetEModeCategory(admin, asset, stablecoins.ID); err != nil {
			t.Fatalf("assign: %v", err)
		}
	}
	h.list(assetC, 18, usd(1), defaultReserveParams())
	h.supply(alice, assetA, units(1000))
	h.supply(alice, assetC, units(1000))
	h.supply(bob, assetB, units(1000))
	return h
}

func TestEModeRaisesBorrowingPower(t *testing.T) {
	h := eModeHarness(t)
	expectError(t, h.pool.Borrow(bob, assetA, units(880), VariableRate, 0, bob), ErrCollateralCannotCoverNewBorrow)

	if err := h.pool.SetUserEMode(bob, stablecoins.ID); err != nil {
		t.Fatalf("enter emode: %v", err)
	}
	if h.pool.GetUserEMode(bob) != stablecoins.ID {
		t.Fatalf("user category not recorded")
	}
	data := h.account(bob)
	if data.LTV != stablecoins.LTV || data.CurrentLiquidationThreshold != stablecoins.LiquidationThreshold {
		t.Fatalf("account data ignores category: ltv %d threshold %d", data.LTV, data.CurrentLiquidationThreshold)
	}
	h.borrow(bob, assetA, units(880))

	expectError(t, h.pool.SetUserEMode(bob, 0), ErrHealthFactorBelowThreshold)
	if h.pool.GetUserEMode(bob) != stablecoins.ID {
		t.Fatalf("rejected exit changed the category")
	}
	if len(h.recorder.OfType(events.TypeLendingUserEModeSet)) != 1 {
		t.Fatalf("expected a single category event")
	}
}

func TestEModeRejectsForeignAssets(t *testing.T) {
	h := eModeHarness(t)
	expectError(t, h.pool.SetUserEMode(bob, 7), ErrInconsistentEModeCategory)

	if err := h.pool.SetUserEMode(bob, stablecoins.ID); err != nil {
		t.Fatalf("enter emode: %v", err)
	}
	expectError(t, h.pool.Borrow(bob, assetC, units(10), VariableRate, 0, bob), ErrInconsistentEModeCategory)
	if err := h.pool.SetUserEMode(bob, 0); err != nil {
		t.Fatalf("exit emode: %v", err)
	}
	h.borrow(bob, assetC, units(10))
	expectError(t, h.pool.SetUserEMode(bob, stablecoins.ID), ErrInconsistentEModeCategory)
}

func TestEModeLiquidationBonus(t *testing.T) {
	h := eModeHarness(t)
	if err := h.pool.SetUserEMode(bob, stablecoins.ID); err != nil {
		t.Fatalf("enter emode: %v", err)
	}
	h.borrow(bob, assetA, units(880))
	h.setPrice(assetB, uint256.NewInt(90_000_000))
	h.fund(assetA, liquidator, units(440))

	result, err := h.pool.LiquidationCall(liquidator, assetB, assetA, bob, units(440), false)
	if err != nil {
		t.Fatalf("liquidation: %v", err)
	}
	expectAmount(t, "collateral seized", result.CollateralSeized, mustDec(t, "498666666666666666666"))
}

func TestEModeCategoryValidation(t *testing.T) {
	h := newHarness(t)
	reserved := stablecoins
	reserved.ID = 0
	expectError(t, h.pool.SetEModeCategory(admin, reserved), ErrEModeCategoryReserved)

	loose := stablecoins
	loose.LTV = 9_500
	expectError(t, h.pool.SetEModeCategory(admin, loose), ErrInvalidEModeCategoryParams)

	overpaid := stablecoins
	overpaid.LiquidationBonus = 10_800
	expectError(t, h.pool.SetEModeCategory(admin, overpaid), ErrInvalidEModeCategoryParams)

	expectError(t, h.pool.SetEModeCategory(alice, stablecoins), ErrCallerNotRiskOrPoolAdmin)
	expectError(t, h.pool.SetAssetEModeCategory(admin, assetA, 3), ErrInvalidEModeCategoryAssignment)

	if err := h.pool.SetEModeCategory(admin, stablecoins); err != nil {
		t.Fatalf("category: %v", err)
	}
	if err := h.pool.SetAssetEModeCategory(admin, assetA, stablecoins.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	lowered := stablecoins
	lowered.LTV = 7_000
	lowered.LiquidationThreshold = 7_500
	lowered.LiquidationBonus = 10_100
	expectError(t, h.pool.SetEModeCategory(admin, lowered), ErrInvalidEModeCategoryParams)

	got, ok := h.pool.GetEModeCategory(stablecoins.ID)
	if !ok || got != stablecoins {
		t.Fatalf("category = %+v, %v", got, ok)
	}
}
