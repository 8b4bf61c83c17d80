package lending

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendingpool/core/events"
	"lendingpool/native/bank"
	fp "lendingpool/native/lending/fixedpoint"
	"lendingpool/native/oracle"
)

const genesisTime uint64 = 1_700_000_000

var (
	admin      = common.HexToAddress("0xad")
	guardian   = common.HexToAddress("0xe0")
	treasury   = common.HexToAddress("0x7e")
	assetA     = common.HexToAddress("0x0a")
	assetB     = common.HexToAddress("0x0b")
	assetC     = common.HexToAddress("0x0c")
	alice      = common.HexToAddress("0xa1")
	bob        = common.HexToAddress("0xb0")
	carol      = common.HexToAddress("0xc0")
	liquidator = common.HexToAddress("0x11")
)

type harness struct {
	t        *testing.T
	pool     *Pool
	ledger   *bank.Ledger
	prices   *oracle.Static
	roles    *Roles
	recorder *events.Recorder
}

func testParams() Params {
	params := DefaultParams()
	params.Treasury = treasury
	params.MinLeftoverBase = 100 * params.BaseCurrencyUnit
	return params
}

func defaultStrategy() InterestRateStrategy {
	var s InterestRateStrategy
	s.OptimalUsageRatio.Set(rayBps(8_000))
	s.VariableRateSlope1.Set(rayBps(400))
	s.VariableRateSlope2.Set(rayBps(7_500))
	return s
}

func defaultReserveParams() ReserveParams {
	return ReserveParams{
		LTV:                  7_500,
		LiquidationThreshold: 8_000,
		LiquidationBonus:     10_500,
		ReserveFactor:        1_000,
		BorrowingEnabled:     true,
		FlashLoanEnabled:     true,
	}
}

// newHarness lists assetA and assetB at one base unit each.
func newHarness(t *testing.T) *harness {
	return newHarnessWithParams(t, testParams())
}

func newHarnessWithParams(t *testing.T, params Params) *harness {
	t.Helper()
	ledger := bank.NewLedger()
	prices := oracle.NewStatic()
	roles := &Roles{}
	roles.Grant("pool_admin", admin)
	roles.Grant("emergency_admin", guardian)
	pool := NewPool(prices, ledger, roles, params)
	recorder := &events.Recorder{}
	pool.SetEmitter(recorder)
	pool.SetTimestamp(genesisTime)
	h := &harness{t: t, pool: pool, ledger: ledger, prices: prices, roles: roles, recorder: recorder}
	h.list(assetA, 18, usd(1), defaultReserveParams())
	h.list(assetB, 18, usd(1), defaultReserveParams())
	recorder.Reset()
	return h
}

func rayBps(bps uint64) *uint256.Int {
	return fp.MulDiv(fp.Ray(), uint256.NewInt(bps), uint256.NewInt(PercentageFactor))
}

// units returns n whole tokens of an 18 decimal asset.
func units(n uint64) *uint256.Int {
	return fp.Mul(uint256.NewInt(n), fp.Pow10(18))
}

// usd returns n in the 8 decimal base currency.
func usd(n uint64) *uint256.Int {
	return uint256.NewInt(n * 100_000_000)
}

func mustDec(t *testing.T, value string) *uint256.Int {
	t.Helper()
	v, err := uint256.FromDecimal(value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return v
}

func (h *harness) list(asset common.Address, decimals uint64, price *uint256.Int, params ReserveParams) {
	h.t.Helper()
	if err := h.pool.InitReserve(admin, ReserveInput{Asset: asset, Decimals: decimals, Strategy: defaultStrategy()}); err != nil {
		h.t.Fatalf("init reserve %s: %v", asset.Hex(), err)
	}
	h.configure(asset, params)
	h.prices.SetPrice(asset, price)
}

func (h *harness) configure(asset common.Address, params ReserveParams) {
	h.t.Helper()
	if err := h.pool.SetReserveConfiguration(admin, asset, params); err != nil {
		h.t.Fatalf("configure %s: %v", asset.Hex(), err)
	}
}

func (h *harness) fund(asset, user common.Address, amount *uint256.Int) {
	h.t.Helper()
	if err := h.ledger.Mint(asset, user, amount); err != nil {
		h.t.Fatalf("mint: %v", err)
	}
	h.ledger.Commit()
}

func (h *harness) supply(user, asset common.Address, amount *uint256.Int) {
	h.t.Helper()
	h.fund(asset, user, amount)
	if err := h.pool.Supply(user, asset, amount, user, 0); err != nil {
		h.t.Fatalf("supply: %v", err)
	}
}

func (h *harness) borrow(user, asset common.Address, amount *uint256.Int) {
	h.t.Helper()
	if err := h.pool.Borrow(user, asset, amount, VariableRate, 0, user); err != nil {
		h.t.Fatalf("borrow: %v", err)
	}
}

func (h *harness) advance(seconds uint64) {
	h.pool.SetTimestamp(h.pool.Timestamp() + seconds)
}

func (h *harness) setPrice(asset common.Address, price *uint256.Int) {
	h.prices.SetPrice(asset, price)
}

func (h *harness) reserve(asset common.Address) ReserveData {
	h.t.Helper()
	data, err := h.pool.GetReserveData(asset)
	if err != nil {
		h.t.Fatalf("reserve data: %v", err)
	}
	return data
}

func (h *harness) account(user common.Address) AccountData {
	h.t.Helper()
	data, err := h.pool.GetUserAccountData(user)
	if err != nil {
		h.t.Fatalf("account data: %v", err)
	}
	return data
}

func (h *harness) deposit(asset, user common.Address) *uint256.Int {
	h.t.Helper()
	balance, err := h.pool.DepositBalance(asset, user)
	if err != nil {
		h.t.Fatalf("deposit balance: %v", err)
	}
	return balance
}

func (h *harness) debt(asset, user common.Address) *uint256.Int {
	h.t.Helper()
	balance, err := h.pool.DebtBalance(asset, user)
	if err != nil {
		h.t.Fatalf("debt balance: %v", err)
	}
	return balance
}

func (h *harness) reserveID(asset common.Address) uint16 {
	return h.reserve(asset).ID
}

func expectError(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func expectAmount(t *testing.T, label string, got, want *uint256.Int) {
	t.Helper()
	if got == nil || !got.Eq(want) {
		t.Fatalf("%s = %v, want %s", label, got, want.Dec())
	}
}
