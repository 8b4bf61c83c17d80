package lending

import (
	"testing"

	"lendingpool/core/events"
)

func bridgeHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	h.roles.Grant("bridge", carol)
	params := defaultReserveParams()
	params.UnbackedMintCap = 100
	h.configure(assetA, params)
	return h
}

func TestMintUnbackedRespectsCap(t *testing.T) {
	h := bridgeHarness(t)
	expectError(t, h.pool.MintUnbacked(bob, assetA, units(10), alice, 0), ErrCallerNotBridge)
	expectError(t, h.pool.MintUnbacked(carol, assetB, units(10), alice, 0), ErrUnbackedMintCapExceeded)

	if err := h.pool.MintUnbacked(carol, assetA, units(50), alice, 0); err != nil {
		t.Fatalf("mint unbacked: %v", err)
	}
	expectAmount(t, "deposit", h.deposit(assetA, alice), units(50))
	data := h.reserve(assetA)
	expectAmount(t, "unbacked", &data.Unbacked, units(50))
	if !h.pool.GetUserConfiguration(alice).IsUsingAsCollateral(h.reserveID(assetA)) {
		t.Fatalf("unbacked deposit not enabled as collateral")
	}
	expectError(t, h.pool.MintUnbacked(carol, assetA, units(51), alice, 0), ErrUnbackedMintCapExceeded)
}

func TestBackUnbackedDistributesFee(t *testing.T) {
	h := bridgeHarness(t)
	if err := h.pool.MintUnbacked(carol, assetA, units(50), alice, 0); err != nil {
		t.Fatalf("mint unbacked: %v", err)
	}
	h.fund(assetA, carol, units(51))
	h.recorder.Reset()

	backed, err := h.pool.BackUnbacked(carol, assetA, units(80), units(1))
	if err != nil {
		t.Fatalf("back unbacked: %v", err)
	}
	expectAmount(t, "backed", backed, units(50))
	expectAmount(t, "deposit", h.deposit(assetA, alice), units(51))
	data := h.reserve(assetA)
	if !data.Unbacked.IsZero() {
		t.Fatalf("unbacked left: %s", data.Unbacked.Dec())
	}
	expectAmount(t, "custody", h.ledger.BalanceOf(assetA, data.DepositToken), units(51))

	backs := h.recorder.OfType(events.TypeLendingBackUnbacked)
	if len(backs) != 1 {
		t.Fatalf("expected one back event, got %d", len(backs))
	}
	_, err = h.pool.BackUnbacked(bob, assetA, units(1), nil)
	expectError(t, err, ErrCallerNotBridge)
}

func TestBridgeProtocolFeeShare(t *testing.T) {
	h := bridgeHarness(t)
	if err := h.pool.SetBridgeProtocolFee(admin, 2_000); err != nil {
		t.Fatalf("bridge fee: %v", err)
	}
	expectError(t, h.pool.SetBridgeProtocolFee(admin, PercentageFactor+1), ErrBridgeProtocolFeeInvalid)
	if err := h.pool.MintUnbacked(carol, assetA, units(50), alice, 0); err != nil {
		t.Fatalf("mint unbacked: %v", err)
	}
	h.fund(assetA, carol, units(60))
	if _, err := h.pool.BackUnbacked(carol, assetA, units(50), units(10)); err != nil {
		t.Fatalf("back unbacked: %v", err)
	}
	expectAmount(t, "deposit", h.deposit(assetA, alice), units(58))
	if err := h.pool.MintToTreasury(h.pool.GetReservesList()); err != nil {
		t.Fatalf("mint to treasury: %v", err)
	}
	expectAmount(t, "treasury deposit", h.deposit(assetA, treasury), units(2))
}
