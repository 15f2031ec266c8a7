package storage

import (
	"context"
	"sync"

	"github.com/google/btree"
)

// memoryDegree is the B-tree node degree.
const memoryDegree = 32

type memoryItem struct {
	key   string
	value []byte
}

func memoryLess(a, b memoryItem) bool {
	return a.key < b.key
}

// MemoryStore implements Store in process memory. Commits are atomic with
// respect to readers: a reader sees all of a Txn or none of it.
type MemoryStore struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[memoryItem]
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tree: btree.NewG(memoryDegree, memoryLess)}
}

// Get retrieves a value by key.
func (s *MemoryStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	item, ok := s.tree.Get(memoryItem{key: string(key)})
	if !ok {
		return nil, ErrKeyNotFound
	}
	return cloneBytes(item.value), nil
}

// GetMany looks up several keys under one read lock.
func (s *MemoryStore) GetMany(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if item, ok := s.tree.Get(memoryItem{key: string(key)}); ok {
			out[item.key] = cloneBytes(item.value)
		}
	}
	return out, nil
}

// NextAtOrAfter returns the first key >= key.
func (s *MemoryStore) NextAtOrAfter(ctx context.Context, key []byte) (Pair, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Pair{}, false, ErrClosed
	}

	var (
		pair  Pair
		found bool
	)
	s.tree.AscendGreaterOrEqual(memoryItem{key: string(key)}, func(item memoryItem) bool {
		pair = Pair{Key: []byte(item.key), Value: cloneBytes(item.value)}
		found = true
		return false
	})
	return pair, found, nil
}

// Commit applies txn under the write lock.
func (s *MemoryStore) Commit(ctx context.Context, txn *Txn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	ops, err := txn.seal()
	if err != nil {
		return err
	}

	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			s.tree.ReplaceOrInsert(memoryItem{key: string(op.Key), value: cloneBytes(op.Value)})
		case OpDelete:
			s.tree.Delete(memoryItem{key: string(op.Key)})
		}
	}
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// Close drops the contents.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.tree.Clear(false)
	return nil
}
