package snapmap

import (
	"context"
	"fmt"
	"slices"

	"github.com/yndnr/snapmapper-go/internal/storage"
	"github.com/yndnr/snapmapper-go/internal/telemetry/logger"
)

// Backend is the narrow view of the store the mapper works through.
// Reads go to committed state; writes are only buffered into the
// caller's transaction.
type Backend struct {
	store storage.Store
	log   logger.Logger
}

// NewBackend wraps store.
func NewBackend(store storage.Store, log logger.Logger) *Backend {
	if log == nil {
		log = logger.Default()
	}
	return &Backend{store: store, log: log}
}

// GetMany looks up keys. Missing keys are absent from the result.
func (b *Backend) GetMany(ctx context.Context, keys ...[]byte) (map[string][]byte, error) {
	out, err := b.store.GetMany(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get %d keys: %w", len(keys), err)
	}
	return out, nil
}

// NextAtOrAfter returns the smallest stored key >= key.
func (b *Backend) NextAtOrAfter(ctx context.Context, key []byte) (storage.Pair, bool, error) {
	pair, ok, err := b.store.NextAtOrAfter(ctx, key)
	if err != nil {
		return storage.Pair{}, false, fmt.Errorf("seek %q: %w", key, err)
	}
	return pair, ok, nil
}

// EnqueueSet buffers entries into txn in key order.
func (b *Backend) EnqueueSet(entries map[string][]byte, txn *storage.Txn) {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b.log.Debug("set key", "txn_id", txn.ID(), "key", k, "value", entries[k])
		txn.Set([]byte(k), entries[k])
	}
}

// EnqueueRemove buffers deletion of keys into txn in key order.
func (b *Backend) EnqueueRemove(keys []string, txn *storage.Txn) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	for _, k := range slices.Compact(sorted) {
		b.log.Debug("remove key", "txn_id", txn.ID(), "key", k)
		txn.Delete([]byte(k))
	}
}
