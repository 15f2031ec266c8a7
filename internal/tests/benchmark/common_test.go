package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/yndnr/snapmapper-go/internal/core/domain"
	"github.com/yndnr/snapmapper-go/internal/snapmap"
	"github.com/yndnr/snapmapper-go/internal/storage"
	"github.com/yndnr/snapmapper-go/internal/telemetry/logger"
)

// ObjectCounts defines the index sizes for benchmarking.
var ObjectCounts = []int{1000, 10000, 50000}

// SmallObjectCounts for quick benchmarks.
var SmallObjectCounts = []int{1000, 5000}

// batchSize is the number of objects added per transaction when
// prefilling.
const batchSize = 500

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var benchPartition = domain.Partition{Pool: 1, Bits: 0, Shard: domain.NoShard}

// engines returns a fresh store per engine.
func engines() []struct {
	name string
	open func(b *testing.B) storage.Store
} {
	return []struct {
		name string
		open func(b *testing.B) storage.Store
	}{
		{"memory", func(b *testing.B) storage.Store { return storage.NewMemoryStore() }},
		{"badger", func(b *testing.B) storage.Store {
			cfg := storage.DefaultKVConfig(b.TempDir())
			cfg.SyncWrites = false
			cfg.Badger.GCInterval = "1h"
			s, err := storage.NewBadgerStore(cfg, quiet)
			if err != nil {
				b.Fatal(err)
			}
			return s
		}},
		{"pebble", func(b *testing.B) storage.Store {
			cfg := storage.DefaultKVConfig(b.TempDir())
			cfg.SyncWrites = false
			s, err := storage.NewPebbleStore(cfg, quiet)
			if err != nil {
				b.Fatal(err)
			}
			return s
		}},
		{"bolt", func(b *testing.B) storage.Store {
			cfg := storage.DefaultKVConfig(b.TempDir())
			cfg.SyncWrites = false
			s, err := storage.NewBoltStore(cfg, quiet)
			if err != nil {
				b.Fatal(err)
			}
			return s
		}},
	}
}

func newMapper(b *testing.B, store storage.Store) *snapmap.Mapper {
	m, err := snapmap.New(store, snapmap.Config{Partition: benchPartition, Logger: logger.Discard()})
	if err != nil {
		b.Fatal(err)
	}
	return m
}

func objectID(i int) domain.ObjectID {
	return domain.NewObjectID(benchPartition.Pool, "", fmt.Sprintf("rbd_data.%08x", i))
}

// snapsFor gives object i membership in one to three snapshots out of 1..8.
func snapsFor(i int) domain.SnapSet {
	first := domain.SnapID(i%8 + 1)
	switch i % 3 {
	case 0:
		return domain.NewSnapSet(first)
	case 1:
		return domain.NewSnapSet(first, first%8+1)
	default:
		return domain.NewSnapSet(first, first%8+1, (first+1)%8+1)
	}
}

// prefill adds count objects in batches and returns their ids.
func prefill(ctx context.Context, b *testing.B, store storage.Store, m *snapmap.Mapper, count int) []domain.ObjectID {
	oids := make([]domain.ObjectID, count)
	txn := storage.NewTxn()
	for i := 0; i < count; i++ {
		oids[i] = objectID(i)
		if err := m.AddObject(ctx, oids[i], snapsFor(i), txn); err != nil {
			b.Fatal(err)
		}
		if txn.Len() >= batchSize*3 || i == count-1 {
			if err := store.Commit(ctx, txn); err != nil {
				b.Fatal(err)
			}
			txn = storage.NewTxn()
		}
	}
	return oids
}
