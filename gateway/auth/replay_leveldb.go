package auth

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	tokenKeyPrefix  = "token:"
	expiryKeyPrefix = "expiry:"
)

// ErrTokenIncomplete is returned for tokens without a subject, id or expiry.
var ErrTokenIncomplete = errors.New("auth: token id, subject and expiry required")

// LevelDBReplayStore remembers the ids of spent bearer tokens until they
// expire. Entries are indexed by expiry so pruning is a prefix scan.
type LevelDBReplayStore struct {
	db *leveldb.DB
}

// NewLevelDBReplayStore opens (or creates) a LevelDB database at path.
func NewLevelDBReplayStore(path string) (*LevelDBReplayStore, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("leveldb replay store path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve leveldb replay path: %w", err)
	}
	db, err := leveldb.OpenFile(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb replay store: %w", err)
	}
	return &LevelDBReplayStore{db: db}, nil
}

// Close releases the underlying LevelDB resources.
func (s *LevelDBReplayStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Observe records the token id of subject and reports whether it was already
// spent.
func (s *LevelDBReplayStore) Observe(ctx context.Context, subject, id string, expiresAt time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("leveldb replay store not configured")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	subject = strings.TrimSpace(subject)
	id = strings.TrimSpace(id)
	if subject == "" || id == "" || expiresAt.IsZero() {
		return false, ErrTokenIncomplete
	}
	composite := compositeKey(subject, id)
	tokenKey := []byte(tokenKeyPrefix + composite)
	switch _, err := s.db.Get(tokenKey, nil); {
	case err == nil:
		return true, nil
	case !errors.Is(err, leveldb.ErrNotFound):
		return false, fmt.Errorf("load token: %w", err)
	}

	nanos := expiresAt.UTC().UnixNano()
	batch := new(leveldb.Batch)
	batch.Put(tokenKey, encodeUnixNano(nanos))
	batch.Put([]byte(expiryKey(nanos, composite)), nil)
	if err := s.db.Write(batch, nil); err != nil {
		return false, fmt.Errorf("record token: %w", err)
	}
	return false, nil
}

// Prune forgets tokens that expired before cutoff and returns how many were
// dropped.
func (s *LevelDBReplayStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("leveldb replay store not configured")
	}
	limit := []byte(expiryKey(cutoff.UTC().UnixNano(), ""))
	iter := s.db.NewIterator(&util.Range{Start: []byte(expiryKeyPrefix), Limit: limit}, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	pruned := 0
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		composite, _, ok := parseExpiryKey(iter.Key())
		if !ok {
			continue
		}
		batch.Delete(append([]byte(nil), iter.Key()...))
		batch.Delete([]byte(tokenKeyPrefix + composite))
		pruned++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("iterate token expiries: %w", err)
	}
	if batch.Len() > 0 {
		if err := s.db.Write(batch, nil); err != nil {
			return 0, fmt.Errorf("prune tokens: %w", err)
		}
	}
	return pruned, nil
}

// Run prunes expired tokens every interval until ctx is done.
func (s *LevelDBReplayStore) Run(ctx context.Context, interval time.Duration, onError func(error)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := s.Prune(ctx, now); err != nil && onError != nil && ctx.Err() == nil {
				onError(err)
			}
		}
	}
}

func expiryKey(nanos int64, composite string) string {
	return fmt.Sprintf("%s%020d:%s", expiryKeyPrefix, nanos, composite)
}

func parseExpiryKey(key []byte) (string, int64, bool) {
	parts := strings.SplitN(string(key), ":", 3)
	if len(parts) != 3 {
		return "", 0, false
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return parts[2], nanos, true
}

func encodeUnixNano(nanos int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(nanos))
	return buf
}

func compositeKey(subject, id string) string {
	return strings.ToLower(subject) + "|" + id
}
