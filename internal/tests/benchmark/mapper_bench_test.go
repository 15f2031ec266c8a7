package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/yndnr/snapmapper-go/internal/core/domain"
	"github.com/yndnr/snapmapper-go/internal/storage"
)

func BenchmarkAddObject(b *testing.B) {
	ctx := context.Background()
	for _, e := range engines() {
		b.Run(e.name, func(b *testing.B) {
			store := e.open(b)
			defer store.Close()
			m := newMapper(b, store)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				txn := storage.NewTxn()
				if err := m.AddObject(ctx, objectID(i), snapsFor(i), txn); err != nil {
					b.Fatal(err)
				}
				if err := store.Commit(ctx, txn); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkGetSnapshotSet(b *testing.B) {
	ctx := context.Background()
	for _, e := range engines() {
		for _, count := range SmallObjectCounts {
			b.Run(fmt.Sprintf("%s/objects=%d", e.name, count), func(b *testing.B) {
				store := e.open(b)
				defer store.Close()
				m := newMapper(b, store)
				oids := prefill(ctx, b, store, m, count)

				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := m.GetSnapshotSet(ctx, oids[i%count]); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkUpdateObjectSnapshots(b *testing.B) {
	ctx := context.Background()
	for _, e := range engines() {
		b.Run(e.name, func(b *testing.B) {
			store := e.open(b)
			defer store.Close()
			m := newMapper(b, store)
			count := SmallObjectCounts[0]
			oids := prefill(ctx, b, store, m, count)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				oid := oids[i%count]
				cur, err := m.GetSnapshotSet(ctx, oid)
				if err != nil {
					b.Fatal(err)
				}
				next := snapsFor(i + 1)
				if next.Equal(cur) {
					next = domain.NewSnapSet(9)
				}
				txn := storage.NewTxn()
				if err := m.UpdateObjectSnapshots(ctx, oid, next, nil, txn); err != nil {
					b.Fatal(err)
				}
				if err := store.Commit(ctx, txn); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkTrimScan measures one trim batch against an index of count
// objects, each in one to three of eight snapshots.
func BenchmarkTrimScan(b *testing.B) {
	ctx := context.Background()
	for _, e := range engines() {
		for _, count := range ObjectCounts {
			b.Run(fmt.Sprintf("%s/objects=%d", e.name, count), func(b *testing.B) {
				store := e.open(b)
				defer store.Close()
				m := newMapper(b, store)
				prefill(ctx, b, store, m, count)

				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					snap := domain.SnapID(i%8 + 1)
					if _, err := m.NextObjectsForSnapshot(ctx, snap, 64); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
