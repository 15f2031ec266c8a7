package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// PebbleStore implements Store using Pebble. A Txn is committed as one
// pebble.Batch.
type PebbleStore struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	logger    *slog.Logger
	closed    atomic.Bool
}

// NewPebbleStore opens a Pebble-backed store.
func NewPebbleStore(cfg KVConfig, logger *slog.Logger) (*PebbleStore, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("pebble: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := &pebble.Options{}
	dir := cfg.Dir
	if cfg.InMemory {
		opts.FS = vfs.NewMem()
		dir = ""
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("pebble: open db: %w", err)
	}

	writeOpts := pebble.NoSync
	if cfg.SyncWrites {
		writeOpts = pebble.Sync
	}

	logger.Info("pebble store started", "dir", cfg.Dir, "in_memory", cfg.InMemory)

	return &PebbleStore{db: db, writeOpts: writeOpts, logger: logger}, nil
}

// Get retrieves a value by key.
func (s *PebbleStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pebble: get: %w", err)
	}
	defer closer.Close()

	return cloneBytes(value), nil
}

// GetMany looks up keys against one consistent snapshot.
func (s *PebbleStore) GetMany(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	snap := s.db.NewSnapshot()
	defer snap.Close()

	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, closer, err := snap.Get(key)
		if errors.Is(err, pebble.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("pebble: get many: %w", err)
		}
		out[string(key)] = cloneBytes(value)
		closer.Close()
	}

	return out, nil
}

// NextAtOrAfter seeks to the first key >= key.
func (s *PebbleStore) NextAtOrAfter(ctx context.Context, key []byte) (Pair, bool, error) {
	if s.closed.Load() {
		return Pair{}, false, ErrClosed
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: key})
	if err != nil {
		return Pair{}, false, fmt.Errorf("pebble: new iter: %w", err)
	}
	defer iter.Close()

	if !iter.SeekGE(key) {
		return Pair{}, false, iter.Error()
	}

	return Pair{Key: cloneBytes(iter.Key()), Value: cloneBytes(iter.Value())}, true, nil
}

// Commit applies txn as a single batch.
func (s *PebbleStore) Commit(ctx context.Context, txn *Txn) error {
	if s.closed.Load() {
		return ErrClosed
	}
	ops, err := txn.seal()
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			err = batch.Set(op.Key, op.Value, nil)
		case OpDelete:
			err = batch.Delete(op.Key, nil)
		}
		if err != nil {
			return fmt.Errorf("pebble: stage %s: %w", txn.ID(), err)
		}
	}

	if err := batch.Commit(s.writeOpts); err != nil {
		return fmt.Errorf("pebble: commit %s: %w", txn.ID(), err)
	}
	return nil
}

// Close flushes and closes the database.
func (s *PebbleStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("pebble: close: %w", err)
	}
	s.logger.Info("pebble store closed")
	return nil
}
