package lending

import (
	"testing"

	"github.com/holiman/uint256"

	"lendingpool/core/events"
	fp "lendingpool/native/lending/fixedpoint"
)

// underwater leaves bob with 1000 B of collateral against 700 A of debt at a
// health factor of 0.9.
func underwater(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	h.supply(alice, assetA, units(1000))
	h.supply(bob, assetB, units(1000))
	h.borrow(bob, assetA, units(700))
	h.setPrice(assetB, uint256.NewInt(78_750_000))
	expectAmount(t, "health factor", h.account(bob).HealthFactor, mustDec(t, "900000000000000000"))
	h.fund(assetA, liquidator, units(1000))
	h.recorder.Reset()
	return h
}

func TestLiquidationSeizesCollateralWithBonus(t *testing.T) {
	h := underwater(t)

	result, err := h.pool.LiquidationCall(liquidator, assetB, assetA, bob, units(500), false)
	if err != nil {
		t.Fatalf("liquidation: %v", err)
	}
	seized := mustDec(t, "666666666666666666666")
	expectAmount(t, "debt covered", result.DebtCovered, units(500))
	expectAmount(t, "collateral seized", result.CollateralSeized, seized)
	expectAmount(t, "protocol fee", result.ProtocolFee, uint256.NewInt(0))

	expectAmount(t, "remaining debt", h.debt(assetA, bob), units(200))
	expectAmount(t, "liquidator collateral", h.ledger.BalanceOf(assetB, liquidator), seized)
	expectAmount(t, "liquidator debt asset", h.ledger.BalanceOf(assetA, liquidator), units(500))
	expectAmount(t, "health factor after", h.account(bob).HealthFactor, mustDec(t, "1050000000000000000"))

	calls := h.recorder.OfType(events.TypeLendingLiquidationCall)
	if len(calls) != 1 {
		t.Fatalf("expected one liquidation event, got %d", len(calls))
	}
	call := calls[0].(events.LendingLiquidationCall)
	if call.User != bob || call.Liquidator != liquidator || call.ReceiveAToken {
		t.Fatalf("unexpected liquidation event: %+v", call)
	}
}

func TestLiquidationRejectsHealthyBorrower(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(1000))
	h.supply(bob, assetB, units(1000))
	h.borrow(bob, assetA, units(700))
	h.fund(assetA, liquidator, units(100))

	_, err := h.pool.LiquidationCall(liquidator, assetB, assetA, bob, units(100), false)
	expectError(t, err, ErrHealthFactorNotBelowThreshold)
	_, err = h.pool.LiquidationCall(liquidator, assetB, assetA, carol, units(100), false)
	expectError(t, err, ErrNoDebtToLiquidate)
	_, err = h.pool.LiquidationCall(liquidator, assetB, assetA, bob, units(0), false)
	expectError(t, err, ErrInvalidAmount)
}

func TestLiquidationRequiresBorrowedDebtAndCollateral(t *testing.T) {
	h := underwater(t)
	_, err := h.pool.LiquidationCall(liquidator, assetB, assetB, bob, units(100), false)
	expectError(t, err, ErrSpecifiedCurrencyNotBorrowedByUser)
	_, err = h.pool.LiquidationCall(liquidator, assetA, assetA, bob, units(100), false)
	expectError(t, err, ErrCollateralCannotBeLiquidated)
}

func TestLiquidationCloseFactor(t *testing.T) {
	h := newHarness(t)
	h.supply(alice, assetA, units(10_000))
	h.supply(bob, assetB, units(10_000))
	h.borrow(bob, assetA, units(7_000))
	h.setPrice(assetB, uint256.NewInt(84_875_000))
	expectAmount(t, "health factor", h.account(bob).HealthFactor, mustDec(t, "970000000000000000"))
	h.fund(assetA, liquidator, units(7_000))

	result, err := h.pool.LiquidationCall(liquidator, assetB, assetA, bob, MaxAmount(), false)
	if err != nil {
		t.Fatalf("liquidation: %v", err)
	}
	expectAmount(t, "debt covered", result.DebtCovered, units(3_500))
	expectAmount(t, "collateral seized", result.CollateralSeized, mustDec(t, "4329896907216494845361"))
	expectAmount(t, "remaining debt", h.debt(assetA, bob), units(3_500))
}

func TestLiquidationMustNotLeaveDust(t *testing.T) {
	h := underwater(t)
	_, err := h.pool.LiquidationCall(liquidator, assetB, assetA, bob, units(650), false)
	expectError(t, err, ErrMustNotLeaveDust)
	if len(h.recorder.Events()) != 0 {
		t.Fatalf("rejected liquidation emitted events")
	}
	expectAmount(t, "debt untouched", h.debt(assetA, bob), units(700))

	result, err := h.pool.LiquidationCall(liquidator, assetB, assetA, bob, MaxAmount(), false)
	if err != nil {
		t.Fatalf("full liquidation: %v", err)
	}
	expectAmount(t, "debt covered", result.DebtCovered, units(700))
	if h.pool.GetUserConfiguration(bob).IsBorrowing(h.reserveID(assetA)) {
		t.Fatalf("borrowing flag kept after full repayment")
	}
}

func TestLiquidationReceiveDepositTokens(t *testing.T) {
	h := underwater(t)
	result, err := h.pool.LiquidationCall(liquidator, assetB, assetA, bob, units(500), true)
	if err != nil {
		t.Fatalf("liquidation: %v", err)
	}
	expectAmount(t, "liquidator deposit", h.deposit(assetB, liquidator), result.CollateralSeized)
	if !h.ledger.BalanceOf(assetB, liquidator).IsZero() {
		t.Fatalf("underlying released despite receiving deposit tokens")
	}
	if !h.pool.GetUserConfiguration(liquidator).IsUsingAsCollateral(h.reserveID(assetB)) {
		t.Fatalf("received deposit tokens not enabled as collateral")
	}
}

func TestLiquidationProtocolFee(t *testing.T) {
	h := newHarness(t)
	params := defaultReserveParams()
	params.LiquidationProtocolFee = 1_000
	h.configure(assetB, params)
	h.supply(alice, assetA, units(1000))
	h.supply(bob, assetB, units(1000))
	h.borrow(bob, assetA, units(700))
	h.setPrice(assetB, uint256.NewInt(78_750_000))
	h.fund(assetA, liquidator, units(500))

	result, err := h.pool.LiquidationCall(liquidator, assetB, assetA, bob, units(500), false)
	if err != nil {
		t.Fatalf("liquidation: %v", err)
	}
	fee := mustDec(t, "3174603174603174603")
	expectAmount(t, "protocol fee", result.ProtocolFee, fee)
	expectAmount(t, "collateral to liquidator", result.CollateralSeized, mustDec(t, "663492063492063492063"))
	expectAmount(t, "treasury deposit", h.deposit(assetB, treasury), fee)
	expectAmount(t, "borrower collateral", h.deposit(assetB, bob), mustDec(t, "333333333333333333334"))
}

// TestLiquidationFullSeizureWithProtocolFee drains a collateral balance whose
// liquidity index has grown, so the collateral and fee legs round separately.
func TestLiquidationFullSeizureWithProtocolFee(t *testing.T) {
	for _, elapsed := range []uint64{86_400, 180*86_400 + 7, 365 * 86_400, 3*365*86_400 + 13} {
		for _, receiveAToken := range []bool{false, true} {
			h := newHarness(t)
			params := defaultReserveParams()
			params.LiquidationProtocolFee = 1_000
			h.configure(assetB, params)
			h.supply(alice, assetB, units(1000))
			h.supply(carol, assetA, units(5000))
			h.borrow(carol, assetB, units(600))
			h.advance(elapsed)
			if !h.reserve(assetB).AccruedLiquidityIndex.Gt(fp.Ray()) {
				t.Fatalf("elapsed %d: liquidity index did not grow", elapsed)
			}

			h.supply(alice, assetA, units(1000))
			h.supply(bob, assetB, mustDec(t, "1000000000000000000333"))
			h.borrow(bob, assetA, units(700))
			h.setPrice(assetB, uint256.NewInt(50_000_000))
			h.fund(assetA, liquidator, units(1000))
			before := h.deposit(assetB, bob)
			treasuryBefore := h.deposit(assetB, treasury)

			result, err := h.pool.LiquidationCall(liquidator, assetB, assetA, bob, MaxAmount(), receiveAToken)
			if err != nil {
				t.Fatalf("elapsed %d receive %v: liquidation: %v", elapsed, receiveAToken, err)
			}
			expectAmount(t, "seized plus fee", fp.Add(result.CollateralSeized, result.ProtocolFee), before)
			if result.ProtocolFee.IsZero() {
				t.Fatalf("elapsed %d: protocol fee not charged", elapsed)
			}
			if !h.deposit(assetB, bob).IsZero() {
				t.Fatalf("elapsed %d receive %v: borrower kept %s", elapsed, receiveAToken, h.deposit(assetB, bob).Dec())
			}
			gained := fp.Sub(h.deposit(assetB, treasury), treasuryBefore)
			diff := fp.Sub(result.ProtocolFee, fp.Min(gained, result.ProtocolFee))
			if gained.Gt(result.ProtocolFee) {
				diff = fp.Sub(gained, result.ProtocolFee)
			}
			if diff.GtUint64(1) {
				t.Fatalf("elapsed %d: treasury gained %s for fee %s", elapsed, gained.Dec(), result.ProtocolFee.Dec())
			}
			if h.pool.GetUserConfiguration(bob).IsUsingAsCollateral(h.reserveID(assetB)) {
				t.Fatalf("collateral flag kept after full seizure")
			}
		}
	}
}

func TestLiquidationGracePeriod(t *testing.T) {
	h := underwater(t)
	if err := h.pool.SetLiquidationGracePeriod(guardian, assetB, 3_600); err != nil {
		t.Fatalf("grace period: %v", err)
	}
	_, err := h.pool.LiquidationCall(liquidator, assetB, assetA, bob, units(500), false)
	expectError(t, err, ErrLiquidationGraceSentinelCheckFailed)

	expectError(t, h.pool.SetLiquidationGracePeriod(guardian, assetB, MaxGracePeriod+1), ErrInvalidGracePeriod)
	expectError(t, h.pool.SetLiquidationGracePeriod(alice, assetB, 10), ErrCallerNotPoolOrEmergencyAdmin)

	h.advance(3_600)
	if _, err := h.pool.LiquidationCall(liquidator, assetB, assetA, bob, units(100), false); err != nil {
		t.Fatalf("liquidation after grace period: %v", err)
	}
}

func TestLiquidationBlockedWhilePaused(t *testing.T) {
	h := underwater(t)
	if err := h.pool.SetReservePause(guardian, assetA, true, 0); err != nil {
		t.Fatalf("pause: %v", err)
	}
	_, err := h.pool.LiquidationCall(liquidator, assetB, assetA, bob, units(100), false)
	expectError(t, err, ErrReservePaused)
}
