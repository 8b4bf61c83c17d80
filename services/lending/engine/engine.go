package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"lendingpool/native/bank"
	nativecommon "lendingpool/native/common"
	"lendingpool/native/lending"
	"lendingpool/native/system/quotas"
	"lendingpool/storage"
)

const quotaModule = "lending"

var balancesKey = []byte("bank/balances")

// Options tune an Engine. A zero Quota disables per-account limits.
type Options struct {
	Clock  func() time.Time
	Quota  nativecommon.Quota
	Logger *slog.Logger
}

// Engine serialises access to a lending pool for the HTTP surface. Writes
// hold the lock exclusively, advance the pool clock and persist the pool and
// the underlying ledger after every successful operation.
type Engine struct {
	mu     sync.RWMutex
	pool   *lending.Pool
	ledger *bank.Ledger
	oracle lending.PriceOracle
	db     storage.Database
	quotas *quotas.Store
	quota  nativecommon.Quota
	clock  func() time.Time
	logger *slog.Logger

	lastEpoch uint64
}

// New wires an engine around pool. ledger must be the asset ledger the pool
// was constructed with.
func New(pool *lending.Pool, ledger *bank.Ledger, oracle lending.PriceOracle, db storage.Database, opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		pool:   pool,
		ledger: ledger,
		oracle: oracle,
		db:     db,
		quotas: quotas.NewStore(db),
		quota:  opts.Quota,
		clock:  clock,
		logger: logger.With(slog.String("component", "lending-engine")),
	}
}

// Restore loads the persisted pool and ledger. It reports false when the
// database holds no snapshot.
func (e *Engine) Restore() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	found, err := e.pool.LoadSnapshot(e.db)
	if err != nil || !found {
		return found, err
	}
	raw, err := e.db.Get(balancesKey)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("read balances: %w", err)
	}
	var balances []bank.Balance
	if err := rlp.DecodeBytes(raw, &balances); err != nil {
		return true, fmt.Errorf("decode balances: %w", err)
	}
	e.ledger.Import(balances)
	e.logger.Info("lending state restored", "reserves", len(e.pool.GetReservesList()), "balances", len(balances))
	return true, nil
}

// Persist writes the pool snapshot and the ledger to the database.
func (e *Engine) Persist() (common.Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persistLocked()
}

func (e *Engine) persistLocked() (common.Hash, error) {
	hash, err := e.pool.SaveSnapshot(e.db)
	if err != nil {
		return common.Hash{}, err
	}
	encoded, err := rlp.EncodeToBytes(e.ledger.Export())
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode balances: %w", err)
	}
	if err := e.db.Put(balancesKey, encoded); err != nil {
		return common.Hash{}, fmt.Errorf("store balances: %w", err)
	}
	return hash, nil
}

// advance moves the pool clock forward to the engine clock. Callers hold the
// write lock.
func (e *Engine) advance() {
	now := e.clock().Unix()
	if now > 0 && uint64(now) > e.pool.Timestamp() {
		e.pool.SetTimestamp(uint64(now))
	}
}

// checkpoint is the in-memory state a write falls back to when it cannot be
// persisted.
type checkpoint struct {
	pool     *lending.Snapshot
	balances []bank.Balance
}

func (e *Engine) checkpointLocked() (checkpoint, error) {
	snap, err := e.pool.Export()
	if err != nil {
		return checkpoint{}, err
	}
	return checkpoint{pool: snap, balances: e.ledger.Export()}, nil
}

// rollbackLocked puts the pool and ledger back to cp and rewrites it, since
// the failed persist may have stored the pool without the ledger.
func (e *Engine) rollbackLocked(cp checkpoint) error {
	if err := e.pool.Import(cp.pool); err != nil {
		return err
	}
	e.ledger.Import(cp.balances)
	_, err := e.persistLocked()
	return err
}

// write runs op under the write lock after charging the caller's quota, and
// persists the result. A write that cannot be persisted is undone in memory;
// events it emitted are not retracted.
func (e *Engine) write(ctx context.Context, operation string, caller common.Address, asset common.Address, amount *uint256.Int, op func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advance()
	if err := e.chargeQuota(caller, asset, amount); err != nil {
		return err
	}
	cp, err := e.checkpointLocked()
	if err != nil {
		e.logger.Error("checkpoint lending state", "operation", operation, "error", err)
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if err := op(); err != nil {
		e.logger.Debug("lending operation rejected", "operation", operation, "user", caller.Hex(), "error", err)
		return err
	}
	if _, err := e.persistLocked(); err != nil {
		e.logger.Error("persist lending state", "operation", operation, "error", err)
		if rbErr := e.rollbackLocked(cp); rbErr != nil {
			e.logger.Error("roll back unpersisted lending state", "operation", operation, "error", rbErr)
		}
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return nil
}

// read runs fn under the read lock with the pool clock advanced to now.
func (e *Engine) read(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.advance()
	e.mu.Unlock()

	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn()
}

func (e *Engine) chargeQuota(caller, asset common.Address, amount *uint256.Int) error {
	if !e.quota.Enabled() {
		return nil
	}
	epoch := e.quota.Epoch(int64(e.pool.Timestamp()))
	if epoch != e.lastEpoch {
		if e.lastEpoch != 0 {
			if err := e.quotas.PruneEpoch(quotaModule, e.lastEpoch); err != nil {
				e.logger.Warn("prune quota epoch", "epoch", e.lastEpoch, "error", err)
			}
		}
		e.lastEpoch = epoch
	}
	if _, err := nativecommon.Apply(e.quotas, quotaModule, epoch, caller.Bytes(), e.quota, 1, e.baseValue(asset, amount)); err != nil {
		if errors.Is(err, nativecommon.ErrQuotaRequestsExceeded) || errors.Is(err, nativecommon.ErrQuotaValueCapExceeded) {
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return nil
}

// baseValue returns amount of asset in whole base currency units. Unknown
// assets, missing quotes and whole-balance amounts count as zero.
func (e *Engine) baseValue(asset common.Address, amount *uint256.Int) uint64 {
	if amount == nil || amount.Eq(lending.MaxAmount()) || e.oracle == nil {
		return 0
	}
	data, err := e.pool.GetReserveData(asset)
	if err != nil {
		return 0
	}
	price, err := e.oracle.AssetPrice(asset)
	if err != nil {
		return 0
	}
	value, overflow := new(uint256.Int).MulOverflow(amount, price)
	if overflow {
		return ^uint64(0)
	}
	unit := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(data.Configuration.Decimals()))
	unit.Mul(unit, uint256.NewInt(e.pool.Params().BaseCurrencyUnit))
	value.Div(value, unit)
	if !value.IsUint64() {
		return ^uint64(0)
	}
	return value.Uint64()
}
