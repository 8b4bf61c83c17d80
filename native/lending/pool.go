package lending

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendingpool/core/events"
	nativecommon "lendingpool/native/common"
	fp "lendingpool/native/lending/fixedpoint"
	"lendingpool/observability"
)

// Params are the pool-wide constants fixed at construction. Base currency
// amounts carry the oracle's decimals.
type Params struct {
	BaseCurrencyUnit               uint64
	MinBaseMaxCloseFactorThreshold uint64
	MinLeftoverBase                uint64
	Treasury                       common.Address
	FlashLoanPremiumTotal          uint64
	FlashLoanPremiumToProtocol     uint64
	BridgeProtocolFee              uint64
}

// DefaultParams returns an 8 decimal base currency with the standard close
// factor and dust thresholds.
func DefaultParams() Params {
	const unit = 100_000_000
	return Params{
		BaseCurrencyUnit:               unit,
		MinBaseMaxCloseFactorThreshold: 2_000 * unit,
		MinLeftoverBase:                1_000 * unit,
		FlashLoanPremiumTotal:          5,
		FlashLoanPremiumToProtocol:     0,
	}
}

// Pool is the lending pool state machine. A Pool is not safe for concurrent
// mutation; callers serialise writers. Every exported mutating method is
// atomic: on error no ledger change and no event is observable.
type Pool struct {
	state   *PoolState
	oracle  PriceOracle
	assets  AssetLedger
	acl     AccessControl
	emitter events.Emitter
	pauses  nativecommon.PauseView
	logger  *slog.Logger
	metrics *observability.PoolMetrics
	params  Params

	now     uint64
	depth   int
	pending []events.Event
	nonce   uint64
}

// NewPool constructs an empty pool wired to its collaborators.
func NewPool(oracle PriceOracle, assets AssetLedger, acl AccessControl, params Params) *Pool {
	defaults := DefaultParams()
	if params.BaseCurrencyUnit == 0 {
		params.BaseCurrencyUnit = defaults.BaseCurrencyUnit
	}
	state := newPoolState()
	state.settings = PoolSettings{
		Treasury:                   params.Treasury,
		FlashLoanPremiumTotal:      params.FlashLoanPremiumTotal,
		FlashLoanPremiumToProtocol: params.FlashLoanPremiumToProtocol,
		BridgeProtocolFee:          params.BridgeProtocolFee,
	}
	return &Pool{
		state:   state,
		oracle:  oracle,
		assets:  assets,
		acl:     acl,
		emitter: events.NoopEmitter{},
		logger:  slog.Default().With(slog.String("component", "lending")),
		metrics: observability.Pool(),
		params:  params,
	}
}

// SetEmitter wires the sink receiving events of successful operations.
func (p *Pool) SetEmitter(emitter events.Emitter) {
	if p == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	p.emitter = emitter
}

func (p *Pool) SetPauses(pauses nativecommon.PauseView) {
	if p == nil {
		return
	}
	p.pauses = pauses
}

func (p *Pool) SetLogger(logger *slog.Logger) {
	if p == nil || logger == nil {
		return
	}
	p.logger = logger.With(slog.String("component", "lending"))
}

// SetTimestamp records the time in seconds used for interest accrual.
func (p *Pool) SetTimestamp(ts uint64) {
	if p == nil {
		return
	}
	p.now = ts
}

// Timestamp returns the current accrual time.
func (p *Pool) Timestamp() uint64 {
	if p == nil {
		return 0
	}
	return p.now
}

// Params returns the construction parameters of the pool.
func (p *Pool) Params() Params { return p.params }

// execute runs fn atomically. Nested calls join the outermost operation so
// that Transact can roll back a whole caller transaction. The outermost call
// fails if a flash loan is still open.
func (p *Pool) execute(operation string, fn func() error) (err error) {
	start := time.Now()
	rev := p.state.snapshot()
	mark := len(p.pending)
	ledgerRev := -1
	if ledger, ok := p.assets.(journaledLedger); ok {
		ledgerRev = ledger.Snapshot()
	}
	p.depth++
	defer func() {
		p.depth--
		if r := recover(); r != nil {
			overflow, ok := r.(*fp.OverflowError)
			if !ok {
				p.rollback(rev, mark, ledgerRev)
				panic(r)
			}
			err = fmt.Errorf("%w: %s", ErrMathOverflow, overflow.Op)
		}
		if err == nil && p.depth == 0 && p.state.openReceipts() != 0 {
			err = ErrFlashLoanNotSettled
		}
		if err != nil {
			p.rollback(rev, mark, ledgerRev)
			p.metrics.Observe(operation, time.Since(start), errorCode(err))
			p.logger.Debug("lending operation rejected", "operation", operation, "error", err)
			return
		}
		p.metrics.Observe(operation, time.Since(start), "")
		if p.depth == 0 {
			p.state.commit()
			if ledger, ok := p.assets.(journaledLedger); ok {
				ledger.Commit()
			}
			p.flush()
		}
	}()
	if err := nativecommon.Guard(p.pauses, moduleName); err != nil {
		return err
	}
	return fn()
}

func (p *Pool) rollback(rev, mark, ledgerRev int) {
	p.state.revertTo(rev)
	p.pending = p.pending[:mark]
	if ledgerRev >= 0 {
		if ledger, ok := p.assets.(journaledLedger); ok {
			ledger.RevertToSnapshot(ledgerRev)
		}
	}
}

// recoverMath converts an arithmetic panic of a read-only query into an
// error.
func recoverMath(err *error) {
	if r := recover(); r != nil {
		overflow, ok := r.(*fp.OverflowError)
		if !ok {
			panic(r)
		}
		*err = fmt.Errorf("%w: %s", ErrMathOverflow, overflow.Op)
	}
}

func errorCode(err error) string {
	var lendingErr *Error
	if errors.As(err, &lendingErr) {
		return strconv.FormatUint(uint64(lendingErr.Code), 10)
	}
	if errors.Is(err, nativecommon.ErrModulePaused) {
		return "paused"
	}
	return "external"
}

func (p *Pool) emit(evt events.Event) {
	p.pending = append(p.pending, evt)
}

func (p *Pool) flush() {
	pending := p.pending
	p.pending = nil
	for _, evt := range pending {
		switch e := evt.(type) {
		case events.LendingReserveDataUpdated:
			p.metrics.SetReserveRates(e.Reserve.Hex(), e.LiquidityRate, e.VariableBorrowRate)
		case events.LendingLiquidationCall:
			p.metrics.RecordLiquidation(e.CollateralAsset.Hex(), e.DebtAsset.Hex())
		case events.LendingFlashLoan:
			p.metrics.RecordFlashLoan(e.Asset.Hex(), e.InterestRateMode)
		}
		observability.Events().RecordEvent(evt.EventType())
		p.emitter.Emit(evt)
	}
	p.logger.Debug("lending events emitted", "count", len(pending))
}

func (p *Pool) getReserve(asset common.Address) (Reserve, error) {
	r, ok := p.state.reserve(asset)
	if !ok {
		return Reserve{}, ErrAssetNotListed
	}
	return r, nil
}

// accrue brings the reserve indexes up to the pool timestamp.
func (p *Pool) accrue(r *Reserve) {
	r.accrue(p.now, p.state.scaledSupply(r.DebtToken))
}

// refreshRates must run after the debt token supply reflects the operation.
func (p *Pool) refreshRates(r *Reserve, added, taken *uint256.Int) {
	r.updateInterestRates(p.state.scaledSupply(r.DebtToken), added, taken)
	p.emit(events.LendingReserveDataUpdated{
		Reserve:             r.Asset,
		LiquidityRate:       new(uint256.Int).Set(&r.CurrentLiquidityRate),
		VariableBorrowRate:  new(uint256.Int).Set(&r.CurrentVariableBorrowRate),
		LiquidityIndex:      new(uint256.Int).Set(&r.LiquidityIndex),
		VariableBorrowIndex: new(uint256.Int).Set(&r.VariableBorrowIndex),
	})
}

func (p *Pool) assetPrice(asset common.Address) (*uint256.Int, error) {
	if p.oracle == nil {
		return nil, fmt.Errorf("lending: price oracle not configured: %w", ErrInvalidPrice)
	}
	price, err := p.oracle.AssetPrice(asset)
	if err != nil {
		p.logger.Warn("price oracle failure", "asset", asset.Hex(), "error", err)
		return nil, fmt.Errorf("lending: price for %s: %w", asset.Hex(), err)
	}
	if price == nil || price.IsZero() {
		return nil, fmt.Errorf("lending: price for %s: %w", asset.Hex(), ErrInvalidPrice)
	}
	return price, nil
}

func (p *Pool) transferAsset(asset, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() || from == to {
		return nil
	}
	if p.assets == nil {
		return errors.New("lending: asset ledger not configured")
	}
	if err := p.assets.Transfer(asset, from, to, amount); err != nil {
		p.logger.Warn("asset transfer failed", "asset", asset.Hex(), "from", from.Hex(), "to", to.Hex(), "error", err)
		return fmt.Errorf("lending: transfer %s: %w", asset.Hex(), err)
	}
	return nil
}

func zero() *uint256.Int { return new(uint256.Int) }
