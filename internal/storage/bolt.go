package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	bolt "go.etcd.io/bbolt"
)

// boltFileName is the database file inside KVConfig.Dir.
const boltFileName = "snapmap.db"

// BoltStore implements Store using bbolt. Every key lives in one bucket,
// and a Txn is committed as one read-write transaction.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
	logger *slog.Logger
	closed atomic.Bool
}

// NewBoltStore opens (or creates) the bolt file under cfg.Dir.
func NewBoltStore(cfg KVConfig, logger *slog.Logger) (*BoltStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("bolt: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	bucket := cfg.Bolt.Bucket
	if bucket == "" {
		bucket = DefaultBoltConfig().Bucket
	}

	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("bolt: create dir: %w", err)
	}

	path := filepath.Join(cfg.Dir, boltFileName)
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: cfg.Bolt.Timeout})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}
	db.NoSync = !cfg.SyncWrites

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: create bucket: %w", err)
	}

	logger.Info("bolt store started", "path", path, "bucket", bucket)

	return &BoltStore{db: db, bucket: []byte(bucket), logger: logger}, nil
}

// Get retrieves a value by key.
func (s *BoltStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get(key)
		if v == nil {
			return ErrKeyNotFound
		}
		value = cloneBytes(v)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

// GetMany looks up keys in one read transaction.
func (s *BoltStore) GetMany(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	out := make(map[string][]byte, len(keys))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for _, key := range keys {
			if v := b.Get(key); v != nil {
				out[string(key)] = cloneBytes(v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: get many: %w", err)
	}

	return out, nil
}

// NextAtOrAfter positions a cursor at the first key >= key.
func (s *BoltStore) NextAtOrAfter(ctx context.Context, key []byte) (Pair, bool, error) {
	if s.closed.Load() {
		return Pair{}, false, ErrClosed
	}

	var (
		pair  Pair
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		k, v := tx.Bucket(s.bucket).Cursor().Seek(key)
		if k == nil {
			return nil
		}
		pair = Pair{Key: cloneBytes(k), Value: cloneBytes(v)}
		found = true
		return nil
	})
	if err != nil {
		return Pair{}, false, fmt.Errorf("bolt: seek: %w", err)
	}

	return pair, found, nil
}

// Commit applies txn in one read-write transaction.
func (s *BoltStore) Commit(ctx context.Context, txn *Txn) error {
	if s.closed.Load() {
		return ErrClosed
	}
	ops, err := txn.seal()
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for _, op := range ops {
			var err error
			switch op.Kind {
			case OpSet:
				err = b.Put(op.Key, op.Value)
			case OpDelete:
				err = b.Delete(op.Key)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt: commit %s: %w", txn.ID(), err)
	}
	return nil
}

// Close closes the bolt file.
func (s *BoltStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("bolt: close: %w", err)
	}
	s.logger.Info("bolt store closed")
	return nil
}
