package lending

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"lendingpool/storage"
)

const snapshotVersion uint64 = 1

var snapshotKey = []byte("lending/snapshot")

type UserSnapshot struct {
	Address common.Address
	Config  UserConfiguration
	EMode   uint8
}

type BalanceSnapshot struct {
	Token  common.Address
	Holder common.Address
	Scaled uint256.Int
}

type SupplySnapshot struct {
	Token  common.Address
	Scaled uint256.Int
}

type AllowanceSnapshot struct {
	Token     common.Address
	Delegator common.Address
	Delegatee common.Address
	Amount    uint256.Int
}

// Snapshot is the canonical serialisable form of a pool. Entries are sorted
// so that equal pools encode to equal bytes.
type Snapshot struct {
	Version    uint64
	Timestamp  uint64
	Nonce      uint64
	Settings   PoolSettings
	Reserves   []Reserve
	Users      []UserSnapshot
	EModes     []EModeCategory
	Balances   []BalanceSnapshot
	Supplies   []SupplySnapshot
	Allowances []AllowanceSnapshot
}

// Encode returns the RLP encoding of the snapshot.
func (s *Snapshot) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(s)
}

// Hash returns the keccak256 of the encoded snapshot.
func (s *Snapshot) Hash() (common.Hash, error) {
	enc, err := s.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(enc), nil
}

// DecodeSnapshot parses an encoded snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := rlp.DecodeBytes(data, &s); err != nil {
		return nil, fmt.Errorf("lending: decode snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("lending: unsupported snapshot version %d", s.Version)
	}
	return &s, nil
}

// Export captures the committed pool state. Pools with open flash loans
// cannot be exported.
func (p *Pool) Export() (*Snapshot, error) {
	if p.state.openReceipts() != 0 {
		return nil, ErrSnapshotOpenReceipts
	}
	if p.depth != 0 {
		return nil, errors.New("lending: export inside an operation")
	}
	st := p.state
	s := &Snapshot{
		Version:   snapshotVersion,
		Timestamp: p.now,
		Nonce:     p.nonce,
		Settings:  st.settings,
	}
	for _, asset := range st.reservesList {
		s.Reserves = append(s.Reserves, st.reserves[asset])
	}
	for addr, rec := range st.users {
		s.Users = append(s.Users, UserSnapshot{Address: addr, Config: rec.Config, EMode: rec.EMode})
	}
	sort.Slice(s.Users, func(i, j int) bool {
		return bytes.Compare(s.Users[i].Address[:], s.Users[j].Address[:]) < 0
	})
	for _, c := range st.eModes {
		s.EModes = append(s.EModes, c)
	}
	sort.Slice(s.EModes, func(i, j int) bool { return s.EModes[i].ID < s.EModes[j].ID })
	for key, scaled := range st.balances {
		s.Balances = append(s.Balances, BalanceSnapshot{Token: key.token, Holder: key.holder, Scaled: scaled})
	}
	sort.Slice(s.Balances, func(i, j int) bool {
		a, b := s.Balances[i], s.Balances[j]
		if c := bytes.Compare(a.Token[:], b.Token[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(a.Holder[:], b.Holder[:]) < 0
	})
	for token, scaled := range st.supplies {
		s.Supplies = append(s.Supplies, SupplySnapshot{Token: token, Scaled: scaled})
	}
	sort.Slice(s.Supplies, func(i, j int) bool {
		return bytes.Compare(s.Supplies[i].Token[:], s.Supplies[j].Token[:]) < 0
	})
	for key, amount := range st.allowances {
		s.Allowances = append(s.Allowances, AllowanceSnapshot{
			Token:     key.token,
			Delegator: key.delegator,
			Delegatee: key.delegatee,
			Amount:    amount,
		})
	}
	sort.Slice(s.Allowances, func(i, j int) bool {
		a, b := s.Allowances[i], s.Allowances[j]
		if c := bytes.Compare(a.Token[:], b.Token[:]); c != 0 {
			return c < 0
		}
		if c := bytes.Compare(a.Delegator[:], b.Delegator[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(a.Delegatee[:], b.Delegatee[:]) < 0
	})
	return s, nil
}

// Import replaces the whole pool state with s. It is not an operation: no
// events are emitted and the previous state is discarded.
func (p *Pool) Import(s *Snapshot) error {
	if s == nil {
		return errors.New("lending: nil snapshot")
	}
	if p.depth != 0 {
		return errors.New("lending: import inside an operation")
	}
	if s.Version != snapshotVersion {
		return fmt.Errorf("lending: unsupported snapshot version %d", s.Version)
	}
	if len(s.Reserves) > MaxReservesCount {
		return ErrNoMoreReservesAllowed
	}
	st := newPoolState()
	st.settings = s.Settings
	for i, r := range s.Reserves {
		if int(r.ID) != i {
			return fmt.Errorf("lending: snapshot reserve %s has id %d at position %d", r.Asset.Hex(), r.ID, i)
		}
		if _, dup := st.reserves[r.Asset]; dup {
			return ErrReserveAlreadyAdded
		}
		st.reserves[r.Asset] = r
		st.reservesList = append(st.reservesList, r.Asset)
	}
	for _, u := range s.Users {
		st.users[u.Address] = userRecord{Config: u.Config, EMode: u.EMode}
	}
	for _, c := range s.EModes {
		st.eModes[c.ID] = c
	}
	for _, b := range s.Balances {
		st.balances[balanceKey{token: b.Token, holder: b.Holder}] = b.Scaled
	}
	for _, sup := range s.Supplies {
		st.supplies[sup.Token] = sup.Scaled
	}
	for _, a := range s.Allowances {
		st.allowances[allowanceKey{token: a.Token, delegator: a.Delegator, delegatee: a.Delegatee}] = a.Amount
	}
	p.state = st
	p.now = s.Timestamp
	p.nonce = s.Nonce
	p.pending = nil
	p.logger.Info("lending snapshot imported", "reserves", len(s.Reserves), "users", len(s.Users))
	return nil
}

// SaveSnapshot exports the pool into db and returns the snapshot hash.
func (p *Pool) SaveSnapshot(db storage.Database) (common.Hash, error) {
	s, err := p.Export()
	if err != nil {
		return common.Hash{}, err
	}
	enc, err := s.Encode()
	if err != nil {
		return common.Hash{}, fmt.Errorf("lending: encode snapshot: %w", err)
	}
	if err := db.Put(snapshotKey, enc); err != nil {
		return common.Hash{}, fmt.Errorf("lending: store snapshot: %w", err)
	}
	return crypto.Keccak256Hash(enc), nil
}

// LoadSnapshot imports the snapshot stored in db. It reports false when db
// holds none.
func (p *Pool) LoadSnapshot(db storage.Database) (bool, error) {
	enc, err := db.Get(snapshotKey)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lending: read snapshot: %w", err)
	}
	s, err := DecodeSnapshot(enc)
	if err != nil {
		return false, err
	}
	if err := p.Import(s); err != nil {
		return false, err
	}
	return true, nil
}
