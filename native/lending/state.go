package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type balanceKey struct {
	token  common.Address
	holder common.Address
}

type allowanceKey struct {
	token     common.Address
	delegator common.Address
	delegatee common.Address
}

type userRecord struct {
	Config UserConfiguration
	EMode  uint8
}

// PoolSettings holds the pool-wide parameters editable by the configurator.
type PoolSettings struct {
	Treasury                   common.Address
	FlashLoanPremiumTotal      uint64
	FlashLoanPremiumToProtocol uint64
	BridgeProtocolFee          uint64
}

// PoolState owns every ledger of the pool. All writes go through the typed
// setters below, which record an undo entry so that a failed operation can
// be rolled back to the snapshot taken at its entry.
type PoolState struct {
	reserves     map[common.Address]Reserve
	reservesList []common.Address
	users        map[common.Address]userRecord
	eModes       map[uint8]EModeCategory
	balances     map[balanceKey]uint256.Int
	supplies     map[common.Address]uint256.Int
	allowances   map[allowanceKey]uint256.Int
	receipts     map[common.Hash]FlashLoanReceipt
	settings     PoolSettings

	journal []func()
}

func newPoolState() *PoolState {
	return &PoolState{
		reserves:   make(map[common.Address]Reserve),
		users:      make(map[common.Address]userRecord),
		eModes:     make(map[uint8]EModeCategory),
		balances:   make(map[balanceKey]uint256.Int),
		supplies:   make(map[common.Address]uint256.Int),
		allowances: make(map[allowanceKey]uint256.Int),
		receipts:   make(map[common.Hash]FlashLoanReceipt),
	}
}

func (s *PoolState) snapshot() int { return len(s.journal) }

func (s *PoolState) revertTo(id int) {
	for i := len(s.journal) - 1; i >= id; i-- {
		s.journal[i]()
	}
	s.journal = s.journal[:id]
}

func (s *PoolState) commit() { s.journal = s.journal[:0] }

func setEntry[K comparable, V any](s *PoolState, m map[K]V, key K, value V, remove bool) {
	prev, existed := m[key]
	s.journal = append(s.journal, func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
	if remove {
		delete(m, key)
	} else {
		m[key] = value
	}
}

func (s *PoolState) reserve(asset common.Address) (Reserve, bool) {
	r, ok := s.reserves[asset]
	return r, ok
}

func (s *PoolState) putReserve(r Reserve) {
	setEntry(s, s.reserves, r.Asset, r, false)
}

func (s *PoolState) reserveAt(id uint16) (Reserve, bool) {
	if int(id) >= len(s.reservesList) {
		return Reserve{}, false
	}
	return s.reserve(s.reservesList[id])
}

func (s *PoolState) appendReserve(asset common.Address) uint16 {
	id := uint16(len(s.reservesList))
	s.reservesList = append(s.reservesList, asset)
	s.journal = append(s.journal, func() {
		s.reservesList = s.reservesList[:id]
	})
	return id
}

func (s *PoolState) user(addr common.Address) userRecord {
	return s.users[addr]
}

func (s *PoolState) putUser(addr common.Address, rec userRecord) {
	setEntry(s, s.users, addr, rec, rec.Config.IsEmpty() && rec.EMode == 0)
}

func (s *PoolState) eMode(id uint8) (EModeCategory, bool) {
	c, ok := s.eModes[id]
	return c, ok
}

func (s *PoolState) putEMode(c EModeCategory) {
	setEntry(s, s.eModes, c.ID, c, false)
}

func (s *PoolState) scaledBalance(token, holder common.Address) *uint256.Int {
	v := s.balances[balanceKey{token: token, holder: holder}]
	return &v
}

func (s *PoolState) setScaledBalance(token, holder common.Address, value *uint256.Int) {
	setEntry(s, s.balances, balanceKey{token: token, holder: holder}, *value, value.IsZero())
}

func (s *PoolState) scaledSupply(token common.Address) *uint256.Int {
	v := s.supplies[token]
	return &v
}

func (s *PoolState) setScaledSupply(token common.Address, value *uint256.Int) {
	setEntry(s, s.supplies, token, *value, value.IsZero())
}

func (s *PoolState) allowance(token, delegator, delegatee common.Address) *uint256.Int {
	v := s.allowances[allowanceKey{token: token, delegator: delegator, delegatee: delegatee}]
	return &v
}

func (s *PoolState) setAllowance(token, delegator, delegatee common.Address, value *uint256.Int) {
	key := allowanceKey{token: token, delegator: delegator, delegatee: delegatee}
	setEntry(s, s.allowances, key, *value, value.IsZero())
}

func (s *PoolState) receipt(id common.Hash) (FlashLoanReceipt, bool) {
	r, ok := s.receipts[id]
	return r, ok
}

func (s *PoolState) putReceipt(r FlashLoanReceipt) {
	setEntry(s, s.receipts, r.ID, r, false)
}

func (s *PoolState) deleteReceipt(id common.Hash) {
	setEntry(s, s.receipts, id, FlashLoanReceipt{}, true)
}

func (s *PoolState) openReceipts() int { return len(s.receipts) }

func (s *PoolState) setSettings(settings PoolSettings) {
	prev := s.settings
	s.journal = append(s.journal, func() { s.settings = prev })
	s.settings = settings
}
