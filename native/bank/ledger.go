package bank

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidAmount       = errors.New("bank: amount required")
	ErrBalanceOverflow     = errors.New("bank: balance overflow")
)

type balanceKey struct {
	asset   common.Address
	account common.Address
}

// Balance is one non-zero holding, used to persist the ledger.
type Balance struct {
	Asset   common.Address
	Account common.Address
	Amount  uint256.Int
}

// Ledger is an in-memory multi-asset balance book. Writes are journaled so a
// caller can revert everything since a snapshot.
type Ledger struct {
	mu       sync.RWMutex
	balances map[balanceKey]uint256.Int
	journal  []func()
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[balanceKey]uint256.Int)}
}

func (l *Ledger) set(key balanceKey, value *uint256.Int) {
	prev, existed := l.balances[key]
	l.journal = append(l.journal, func() {
		if existed {
			l.balances[key] = prev
		} else {
			delete(l.balances, key)
		}
	})
	if value.IsZero() {
		delete(l.balances, key)
		return
	}
	l.balances[key] = *value
}

// BalanceOf returns the holding of account in asset.
func (l *Ledger) BalanceOf(asset, account common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v := l.balances[balanceKey{asset: asset, account: account}]
	return &v
}

// Transfer moves amount of asset between accounts.
func (l *Ledger) Transfer(asset, from, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromKey := balanceKey{asset: asset, account: from}
	fromBalance := l.balances[fromKey]
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance,
			from.Hex(), fromBalance.Dec(), asset.Hex(), amount.Dec())
	}
	if from == to || amount.IsZero() {
		return nil
	}
	toKey := balanceKey{asset: asset, account: to}
	toBalance := l.balances[toKey]
	next, overflow := new(uint256.Int).AddOverflow(&toBalance, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	l.set(fromKey, new(uint256.Int).Sub(&fromBalance, amount))
	l.set(toKey, next)
	return nil
}

// Mint credits new units of asset to account.
func (l *Ledger) Mint(asset, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := balanceKey{asset: asset, account: to}
	balance := l.balances[key]
	next, overflow := new(uint256.Int).AddOverflow(&balance, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	l.set(key, next)
	return nil
}

// Burn destroys units of asset held by account.
func (l *Ledger) Burn(asset, from common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := balanceKey{asset: asset, account: from}
	balance := l.balances[key]
	if balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	l.set(key, new(uint256.Int).Sub(&balance, amount))
	return nil
}

// Snapshot marks the current journal position.
func (l *Ledger) Snapshot() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.journal)
}

// RevertToSnapshot undoes every write made after id.
func (l *Ledger) RevertToSnapshot(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id < 0 || id > len(l.journal) {
		return
	}
	for i := len(l.journal) - 1; i >= id; i-- {
		l.journal[i]()
	}
	l.journal = l.journal[:id]
}

// Commit drops the journal.
func (l *Ledger) Commit() {
	l.mu.Lock()
	l.journal = l.journal[:0]
	l.mu.Unlock()
}

// Export lists all holdings sorted by asset then account.
func (l *Ledger) Export() []Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Balance, 0, len(l.balances))
	for key, amount := range l.balances {
		out = append(out, Balance{Asset: key.asset, Account: key.account, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].Asset[:], out[j].Asset[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(out[i].Account[:], out[j].Account[:]) < 0
	})
	return out
}

// Import replaces the ledger contents and clears the journal.
func (l *Ledger) Import(balances []Balance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = make(map[balanceKey]uint256.Int, len(balances))
	for _, b := range balances {
		if b.Amount.IsZero() {
			continue
		}
		l.balances[balanceKey{asset: b.Asset, account: b.Account}] = b.Amount
	}
	l.journal = nil
}
