package lending

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"lendingpool/core/events"
	fp "lendingpool/native/lending/fixedpoint"
)

func TestBorrowAfterElapsedTime(t *testing.T) {
	h := newHarness(t)
	h.setPrice(assetA, usd(100))
	h.setPrice(assetB, usd(10))
	h.supply(alice, assetA, units(1000))
	h.supply(bob, assetB, units(2000))
	h.advance(1000)
	h.recorder.Reset()

	if err := h.pool.Borrow(bob, assetA, units(100), VariableRate, 7, bob); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	borrows := h.recorder.OfType(events.TypeLendingBorrow)
	if len(borrows) != 1 {
		t.Fatalf("expected one borrow event, got %d", len(borrows))
	}
	evt := borrows[0].(events.LendingBorrow)
	if evt.ReferralCode != 7 || evt.OnBehalfOf != bob {
		t.Fatalf("unexpected borrow event: %+v", evt)
	}
	scaled, err := h.pool.ScaledDebtBalance(assetA, bob)
	if err != nil {
		t.Fatalf("scaled debt: %v", err)
	}
	expectAmount(t, "scaled debt", scaled, units(100))

	data := h.reserve(assetA)
	expectAmount(t, "variable borrow index", &data.VariableBorrowIndex, fp.Ray())
	if data.CurrentVariableBorrowRate.IsZero() || data.CurrentLiquidityRate.IsZero() {
		t.Fatalf("rates not refreshed after borrow")
	}
	expectAmount(t, "available liquidity", data.AvailableLiquidity, units(900))
	expectAmount(t, "borrowed funds", h.ledger.BalanceOf(assetA, bob), units(100))
	if !h.pool.GetUserConfiguration(bob).IsBorrowing(data.ID) {
		t.Fatalf("borrowing flag not set")
	}
	if hf := h.account(bob).HealthFactor; hf.Lt(HealthFactorLiquidationThreshold()) {
		t.Fatalf("health factor %s below one after borrow", hf)
	}
}

func TestSupplyEnablesCollateralOnFirstDeposit(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(10))
	id := h.reserveID(assetA)
	if !h.pool.GetUserConfiguration(alice).IsUsingAsCollateral(id) {
		t.Fatalf("first deposit should enable collateral")
	}
	if got := len(h.recorder.OfType(events.TypeLendingCollateralEnabled)); got != 1 {
		t.Fatalf("expected one collateral enabled event, got %d", got)
	}
	h.recorder.Reset()
	h.supply(alice, assetA, units(5))
	if got := len(h.recorder.OfType(events.TypeLendingCollateralEnabled)); got != 0 {
		t.Fatalf("second deposit re-enabled collateral")
	}
	expectAmount(t, "deposit", h.deposit(assetA, alice), units(15))
	reserve := h.reserve(assetA)
	expectAmount(t, "custody", h.ledger.BalanceOf(assetA, reserve.DepositToken), units(15))
}

func TestSupplyOnBehalfCreditsBeneficiary(t *testing.T) {
	h := newHarness(t)
	h.fund(assetA, alice, units(10))
	if err := h.pool.Supply(alice, assetA, units(10), carol, 0); err != nil {
		t.Fatalf("supply: %v", err)
	}
	expectAmount(t, "carol deposit", h.deposit(assetA, carol), units(10))
	if !h.deposit(assetA, alice).IsZero() {
		t.Fatalf("supplier credited instead of beneficiary")
	}
}

func TestWithdrawMaxClearsCollateral(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(1000))
	withdrawn, err := h.pool.Withdraw(alice, assetA, MaxAmount(), alice)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	expectAmount(t, "withdrawn", withdrawn, units(1000))
	expectAmount(t, "wallet", h.ledger.BalanceOf(assetA, alice), units(1000))
	if h.pool.GetUserConfiguration(alice).IsUsingAsCollateral(h.reserveID(assetA)) {
		t.Fatalf("collateral flag should be cleared after full withdrawal")
	}
	if got := len(h.recorder.OfType(events.TypeLendingCollateralDisabled)); got != 1 {
		t.Fatalf("expected collateral disabled event, got %d", got)
	}
}

func TestWithdrawRejectedWhenHealthFactorDrops(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(1000))
	h.supply(bob, assetB, units(1000))
	h.borrow(bob, assetA, units(700))
	h.recorder.Reset()

	_, err := h.pool.Withdraw(bob, assetB, units(200), bob)
	expectError(t, err, ErrHealthFactorBelowThreshold)
	expectAmount(t, "deposit after rejected withdraw", h.deposit(assetB, bob), units(1000))
	if len(h.recorder.Events()) != 0 {
		t.Fatalf("rejected withdraw emitted events")
	}

	if _, err := h.pool.Withdraw(bob, assetB, units(100), bob); err != nil {
		t.Fatalf("withdraw within health: %v", err)
	}
	if hf := h.account(bob).HealthFactor; hf.Lt(HealthFactorLiquidationThreshold()) {
		t.Fatalf("health factor %s below one after withdraw", hf)
	}
}

func TestRepayMaxClearsBorrowing(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(1000))
	h.supply(bob, assetB, units(1000))
	h.borrow(bob, assetA, units(100))
	h.advance(365 * 24 * 60 * 60)

	owed := h.debt(assetA, bob)
	if !owed.Gt(units(100)) {
		t.Fatalf("debt did not accrue: %s", owed)
	}
	h.fund(assetA, bob, units(10))
	repaid, err := h.pool.Repay(bob, assetA, MaxAmount(), VariableRate, bob)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	expectAmount(t, "repaid", repaid, owed)
	if !h.debt(assetA, bob).IsZero() {
		t.Fatalf("debt remains after full repay")
	}
	if h.pool.GetUserConfiguration(bob).IsBorrowing(h.reserveID(assetA)) {
		t.Fatalf("borrowing flag not cleared")
	}
}

func TestRepayOnBehalfRequiresExplicitAmount(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(1000))
	h.supply(bob, assetB, units(1000))
	h.borrow(bob, assetA, units(100))
	h.fund(assetA, carol, units(40))

	_, err := h.pool.Repay(carol, assetA, MaxAmount(), VariableRate, bob)
	expectError(t, err, ErrNoExplicitAmountToRepayOnBehalf)

	repaid, err := h.pool.Repay(carol, assetA, units(40), VariableRate, bob)
	if err != nil {
		t.Fatalf("repay on behalf: %v", err)
	}
	expectAmount(t, "repaid", repaid, units(40))
	expectAmount(t, "remaining debt", h.debt(assetA, bob), units(60))
	if !h.ledger.BalanceOf(assetA, carol).IsZero() {
		t.Fatalf("repayer funds not pulled")
	}
}

func TestRepayWithDepositTokens(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(1000))
	h.supply(bob, assetB, units(1000))
	h.borrow(bob, assetA, units(100))
	h.supply(bob, assetA, units(50))
	idA := h.reserveID(assetA)
	if !h.pool.GetUserConfiguration(bob).IsUsingAsCollateral(idA) {
		t.Fatalf("second collateral should be enabled")
	}

	repaid, err := h.pool.RepayWithATokens(bob, assetA, MaxAmount(), VariableRate)
	if err != nil {
		t.Fatalf("repay with deposit tokens: %v", err)
	}
	expectAmount(t, "repaid", repaid, units(50))
	expectAmount(t, "remaining debt", h.debt(assetA, bob), units(50))
	if !h.deposit(assetA, bob).IsZero() {
		t.Fatalf("deposit tokens not burned")
	}
	if h.pool.GetUserConfiguration(bob).IsUsingAsCollateral(idA) {
		t.Fatalf("collateral flag should clear when deposit reaches zero")
	}

	_, err = h.pool.RepayWithATokens(bob, assetA, units(1), VariableRate)
	expectError(t, err, ErrInsufficientDepositBalance)
}

func TestInterestAccruesToSuppliersAndTreasury(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(1000))
	h.supply(bob, assetB, units(1000))
	h.borrow(bob, assetA, units(500))

	before := h.reserve(assetA)
	h.advance(365 * 24 * 60 * 60)
	after := h.reserve(assetA)
	if !after.AccruedLiquidityIndex.Gt(before.AccruedLiquidityIndex) {
		t.Fatalf("liquidity index did not grow")
	}
	if !after.AccruedVariableBorrowIndex.Gt(before.AccruedVariableBorrowIndex) {
		t.Fatalf("borrow index did not grow")
	}
	if !h.deposit(assetA, alice).Gt(units(1000)) {
		t.Fatalf("supplier earned nothing")
	}

	// Any operation on the reserve books the reserve factor share.
	h.supply(carol, assetA, units(1))
	stored := h.reserve(assetA)
	if stored.AccruedToTreasury.IsZero() {
		t.Fatalf("treasury share not accrued")
	}
	if err := h.pool.MintToTreasury([]common.Address{assetA, assetC}); err != nil {
		t.Fatalf("mint to treasury: %v", err)
	}
	if h.deposit(assetA, treasury).IsZero() {
		t.Fatalf("treasury received no deposit tokens")
	}
	if r := h.reserve(assetA); !r.AccruedToTreasury.IsZero() {
		t.Fatalf("accrued treasury share not reset")
	}
	if got := len(h.recorder.OfType(events.TypeLendingMintedToTreasury)); got != 1 {
		t.Fatalf("expected one minted to treasury event, got %d", got)
	}
}

func TestIndexesAreMonotonic(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(1000))
	h.supply(bob, assetB, units(1000))
	prevLiquidity := fp.Ray()
	prevBorrow := fp.Ray()
	for i := 0; i < 6; i++ {
		switch i % 3 {
		case 0:
			h.borrow(bob, assetA, units(50))
		case 1:
			h.fund(assetA, bob, units(20))
			if _, err := h.pool.Repay(bob, assetA, units(20), VariableRate, bob); err != nil {
				t.Fatalf("repay: %v", err)
			}
		case 2:
			if _, err := h.pool.Withdraw(alice, assetA, units(10), alice); err != nil {
				t.Fatalf("withdraw: %v", err)
			}
		}
		h.advance(30 * 24 * 60 * 60)
		data := h.reserve(assetA)
		if data.AccruedLiquidityIndex.Lt(prevLiquidity) || data.AccruedVariableBorrowIndex.Lt(prevBorrow) {
			t.Fatalf("index decreased at step %d", i)
		}
		prevLiquidity = data.AccruedLiquidityIndex
		prevBorrow = data.AccruedVariableBorrowIndex
	}
}

func TestTransferDepositTokens(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(100))
	idA := h.reserveID(assetA)

	if err := h.pool.TransferDepositTokens(alice, assetA, alice, carol, units(100)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	expectAmount(t, "carol deposit", h.deposit(assetA, carol), units(100))
	if h.pool.GetUserConfiguration(alice).IsUsingAsCollateral(idA) {
		t.Fatalf("sender collateral flag should clear after moving whole balance")
	}
	if !h.pool.GetUserConfiguration(carol).IsUsingAsCollateral(idA) {
		t.Fatalf("receiver collateral should be enabled on first receipt")
	}
}

func TestTransferDepositTokensOnlyFromCaller(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(100))
	h.recorder.Reset()

	expectError(t, h.pool.TransferDepositTokens(carol, assetA, alice, carol, units(100)), ErrSignerAndOnBehalfOfNotSame)
	expectError(t, h.pool.TransferDepositTokens(admin, assetA, alice, bob, units(1)), ErrSignerAndOnBehalfOfNotSame)
	expectAmount(t, "alice deposit", h.deposit(assetA, alice), units(100))
	if !h.deposit(assetA, carol).IsZero() || !h.deposit(assetA, bob).IsZero() {
		t.Fatalf("transfer by a third party moved tokens")
	}
	if len(h.recorder.Events()) != 0 {
		t.Fatalf("rejected transfers emitted events")
	}
}

func TestTransferDepositTokensChecksSenderHealth(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(1000))
	h.supply(bob, assetB, units(1000))
	h.borrow(bob, assetA, units(700))
	err := h.pool.TransferDepositTokens(bob, assetB, bob, carol, units(500))
	expectError(t, err, ErrHealthFactorBelowThreshold)
	if !h.deposit(assetB, carol).IsZero() {
		t.Fatalf("rejected transfer moved tokens")
	}
}

func TestBorrowOnBehalfConsumesDelegation(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(1000))
	h.supply(bob, assetB, units(1000))

	err := h.pool.Borrow(carol, assetA, units(10), VariableRate, 0, bob)
	expectError(t, err, ErrInsufficientBorrowAllowance)

	if err := h.pool.ApproveDelegation(bob, assetA, carol, units(25)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := h.pool.Borrow(carol, assetA, units(10), VariableRate, 0, bob); err != nil {
		t.Fatalf("delegated borrow: %v", err)
	}
	expectAmount(t, "bob debt", h.debt(assetA, bob), units(10))
	expectAmount(t, "carol wallet", h.ledger.BalanceOf(assetA, carol), units(10))
	allowance, _ := h.pool.BorrowAllowance(assetA, bob, carol)
	expectAmount(t, "remaining allowance", allowance, units(15))
}
