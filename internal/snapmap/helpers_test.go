package snapmap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yndnr/snapmapper-go/internal/core/domain"
	"github.com/yndnr/snapmapper-go/internal/storage"
	"github.com/yndnr/snapmapper-go/internal/telemetry/logger"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testStores() map[string]func(t *testing.T) storage.Store {
	return map[string]func(t *testing.T) storage.Store{
		"memory": func(t *testing.T) storage.Store {
			return storage.NewMemoryStore()
		},
		"badger": func(t *testing.T) storage.Store {
			cfg := storage.DefaultKVConfig("")
			cfg.InMemory = true
			cfg.SyncWrites = false
			cfg.Badger.GCInterval = "1h"
			s, err := storage.NewBadgerStore(cfg, quiet)
			require.NoError(t, err)
			return s
		},
		"pebble": func(t *testing.T) storage.Store {
			cfg := storage.DefaultKVConfig("")
			cfg.InMemory = true
			cfg.SyncWrites = false
			s, err := storage.NewPebbleStore(cfg, quiet)
			require.NoError(t, err)
			return s
		},
		"bolt": func(t *testing.T) storage.Store {
			cfg := storage.DefaultKVConfig(t.TempDir())
			cfg.SyncWrites = false
			s, err := storage.NewBoltStore(cfg, quiet)
			require.NoError(t, err)
			return s
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s storage.Store)) {
	for name, factory := range testStores() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			fn(t, s)
		})
	}
}

func newMapper(t *testing.T, s storage.Store, part domain.Partition) *Mapper {
	t.Helper()
	m, err := New(s, Config{Partition: part, Logger: logger.Discard()})
	require.NoError(t, err)
	return m
}

// ownedObjects returns n distinct objects that part owns.
func ownedObjects(t *testing.T, part domain.Partition, base string, n int) []domain.ObjectID {
	t.Helper()
	var out []domain.ObjectID
	for i := 0; len(out) < n; i++ {
		if i > 1_000_000 {
			t.Fatalf("found only %d of %d objects for %s", len(out), n, part)
		}
		oid := domain.NewObjectID(part.Pool, "", fmt.Sprintf("%s-%d", base, i)).WithShard(part.Shard)
		if part.Owns(oid) {
			out = append(out, oid)
		}
	}
	return out
}

func ownedObject(t *testing.T, part domain.Partition, base string) domain.ObjectID {
	t.Helper()
	return ownedObjects(t, part, base, 1)[0]
}

// foreignObject returns an object in part's pool that part does not own.
func foreignObject(t *testing.T, part domain.Partition, base string) domain.ObjectID {
	t.Helper()
	for i := 0; i < 1000; i++ {
		oid := domain.NewObjectID(part.Pool, "", fmt.Sprintf("%s-%d", base, i)).WithShard(part.Shard)
		if !part.Owns(oid) {
			return oid
		}
	}
	t.Fatalf("no foreign object for %s", part)
	return domain.ObjectID{}
}

func mutate(t *testing.T, s storage.Store, fn func(txn *storage.Txn) error) error {
	t.Helper()
	txn := storage.NewTxn()
	if err := fn(txn); err != nil {
		return err
	}
	require.NoError(t, s.Commit(context.Background(), txn))
	return nil
}

func mustMutate(t *testing.T, s storage.Store, fn func(txn *storage.Txn) error) {
	t.Helper()
	require.NoError(t, mutate(t, s, fn))
}

func snaps(ids ...domain.SnapID) domain.SnapSet {
	return domain.NewSnapSet(ids...)
}

func setPtr(s domain.SnapSet) *domain.SnapSet {
	return &s
}

// storeIsEmpty reports whether s holds no keys at all.
func storeIsEmpty(t *testing.T, s storage.Store) bool {
	t.Helper()
	_, ok, err := s.NextAtOrAfter(context.Background(), []byte{})
	require.NoError(t, err)
	return !ok
}
