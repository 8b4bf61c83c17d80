package quotas

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	nativecommon "lendingpool/native/common"
	"lendingpool/storage"
)

type counterRecord struct {
	ReqCount  uint32
	ValueUsed uint64
}

// Store keeps per-address quota counters in a key-value database, indexed by
// epoch so old epochs can be pruned.
type Store struct {
	db storage.Database
}

func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func (s *Store) withDB() (storage.Database, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("quota store not initialised")
	}
	return s.db, nil
}

func (s *Store) Load(module string, epoch uint64, addr []byte) (nativecommon.QuotaNow, bool, error) {
	db, err := s.withDB()
	if err != nil {
		return nativecommon.QuotaNow{}, false, err
	}
	if len(addr) == 0 {
		return nativecommon.QuotaNow{}, false, fmt.Errorf("quota: address required")
	}
	raw, err := db.Get(counterKey(module, epoch, addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nativecommon.QuotaNow{EpochID: epoch}, false, nil
	}
	if err != nil {
		return nativecommon.QuotaNow{}, false, fmt.Errorf("quota: load counters: %w", err)
	}
	var stored counterRecord
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nativecommon.QuotaNow{}, false, fmt.Errorf("quota: decode counters: %w", err)
	}
	now := nativecommon.QuotaNow{EpochID: epoch, ReqCount: stored.ReqCount, ValueUsed: stored.ValueUsed}
	return now, true, nil
}

func (s *Store) Save(module string, epoch uint64, addr []byte, counters nativecommon.QuotaNow) error {
	db, err := s.withDB()
	if err != nil {
		return err
	}
	if len(addr) == 0 {
		return fmt.Errorf("quota: address required")
	}
	encoded, err := rlp.EncodeToBytes(counterRecord{ReqCount: counters.ReqCount, ValueUsed: counters.ValueUsed})
	if err != nil {
		return fmt.Errorf("quota: encode counters: %w", err)
	}
	if err := db.Put(counterKey(module, epoch, addr), encoded); err != nil {
		return fmt.Errorf("quota: persist counters: %w", err)
	}
	if err := s.appendIndex(db, epochIndexKey(module, epoch), addr); err != nil {
		return fmt.Errorf("quota: update epoch index: %w", err)
	}
	return nil
}

func (s *Store) loadIndex(db storage.Database, key []byte) ([][]byte, error) {
	raw, err := db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var addrs [][]byte
	if err := rlp.DecodeBytes(raw, &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

func (s *Store) appendIndex(db storage.Database, key, addr []byte) error {
	addrs, err := s.loadIndex(db, key)
	if err != nil {
		return err
	}
	for _, entry := range addrs {
		if bytes.Equal(entry, addr) {
			return nil
		}
	}
	addrs = append(addrs, append([]byte(nil), addr...))
	encoded, err := rlp.EncodeToBytes(addrs)
	if err != nil {
		return err
	}
	return db.Put(key, encoded)
}

// PruneEpoch deletes every counter recorded for module in epoch.
func (s *Store) PruneEpoch(module string, epoch uint64) error {
	db, err := s.withDB()
	if err != nil {
		return err
	}
	indexKey := epochIndexKey(module, epoch)
	addrs, err := s.loadIndex(db, indexKey)
	if err != nil {
		return fmt.Errorf("quota: load epoch index: %w", err)
	}
	for _, addr := range addrs {
		if err := db.Delete(counterKey(module, epoch, addr)); err != nil {
			return fmt.Errorf("quota: prune counter: %w", err)
		}
	}
	if err := db.Delete(indexKey); err != nil {
		return fmt.Errorf("quota: prune index: %w", err)
	}
	return nil
}
