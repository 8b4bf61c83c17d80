package lending

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendingpool/native/bank"
)

func TestArithmeticOverflowRollsBack(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, uint256.NewInt(1))
	h.fund(assetA, alice, MaxAmount())
	before := h.reserve(assetA)
	h.recorder.Reset()

	expectError(t, h.pool.Supply(alice, assetA, MaxAmount(), alice, 0), ErrMathOverflow)
	after := h.reserve(assetA)
	expectAmount(t, "virtual balance", &after.VirtualUnderlyingBalance, &before.VirtualUnderlyingBalance)
	expectAmount(t, "wallet", h.ledger.BalanceOf(assetA, alice), MaxAmount())
	if len(h.recorder.Events()) != 0 {
		t.Fatalf("overflowing operation emitted events")
	}
}

func TestTransactRollsBackEveryOperation(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(1000))
	h.supply(bob, assetB, units(1000))
	h.recorder.Reset()

	err := h.pool.Transact(func() error {
		if err := h.pool.Borrow(bob, assetA, units(100), VariableRate, 0, bob); err != nil {
			return err
		}
		_, err := h.pool.Withdraw(bob, assetB, MaxAmount(), bob)
		return err
	})
	expectError(t, err, ErrHealthFactorBelowThreshold)
	if !h.debt(assetA, bob).IsZero() {
		t.Fatalf("borrow survived the rolled back transaction")
	}
	if !h.ledger.BalanceOf(assetA, bob).IsZero() {
		t.Fatalf("borrowed funds survived the rolled back transaction")
	}
	expectAmount(t, "collateral", h.deposit(assetB, bob), units(1000))
	if len(h.recorder.Events()) != 0 {
		t.Fatalf("rolled back transaction emitted %d events", len(h.recorder.Events()))
	}
}

func TestFailedTransferLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	h.recorder.Reset()
	expectError(t, h.pool.Supply(alice, assetA, units(5), alice, 0), bank.ErrInsufficientBalance)
	if !h.deposit(assetA, alice).IsZero() {
		t.Fatalf("deposit minted without funds")
	}
	if r := h.reserve(assetA); !r.VirtualUnderlyingBalance.IsZero() {
		t.Fatalf("virtual balance moved without funds")
	}
	if len(h.recorder.Events()) != 0 {
		t.Fatalf("failed supply emitted events")
	}
}

func TestConfigurationChangesRequireRoles(t *testing.T) {
	h := newHarness(t)
	expectError(t, h.pool.SetReserveConfiguration(alice, assetA, defaultReserveParams()), ErrCallerNotRiskOrPoolAdmin)
	expectError(t, h.pool.SetReserveFreeze(guardian, assetA, true), ErrCallerNotRiskOrPoolAdmin)
	expectError(t, h.pool.SetReservePause(alice, assetA, true, 0), ErrCallerNotPoolOrEmergencyAdmin)
	expectError(t, h.pool.SetReserveActive(guardian, assetA, false), ErrCallerNotPoolAdmin)
	expectError(t, h.pool.SetTreasury(alice, alice), ErrCallerNotPoolAdmin)
	expectError(t, h.pool.InitReserve(alice, ReserveInput{Asset: common.HexToAddress("0x99"), Decimals: 6, Strategy: defaultStrategy()}), ErrCallerNotPoolAdmin)
}
