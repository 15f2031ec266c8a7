// Package tests holds end-to-end tests that run the index on real
// storage engines through the service layer.
package tests

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/yndnr/snapmapper-go/internal/config"
	"github.com/yndnr/snapmapper-go/internal/core/domain"
	"github.com/yndnr/snapmapper-go/internal/core/service"
	"github.com/yndnr/snapmapper-go/internal/snapmap"
	"github.com/yndnr/snapmapper-go/internal/storage"
	"github.com/yndnr/snapmapper-go/internal/telemetry/logger"
)

const (
	objectCount = 300
	splitBits   = 2
)

func openService(t *testing.T, engine, dir string) *service.IndexService {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Engine = engine
	cfg.Storage.Dir = dir
	cfg.Storage.SyncWrites = false
	cfg.Storage.Badger.GCInterval = "1h"
	cfg.Partition = domain.Partition{Pool: 1, Bits: splitBits, Match: 0, Shard: domain.NoShard}
	if err := config.Verify(cfg); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	svc, err := service.New(cfg, logger.Discard(), service.WithOnFatal(func(err error) {
		t.Errorf("unexpected fatal: %v", err)
	}))
	if err != nil {
		t.Fatalf("service.New() error = %v", err)
	}
	return svc
}

// partitionMappers returns one mapper per split partition of pool 1.
func partitionMappers(t *testing.T, svc *service.IndexService) []*snapmap.Mapper {
	t.Helper()
	var out []*snapmap.Mapper
	for match := uint32(0); match < 1<<splitBits; match++ {
		m, err := svc.Mapper(domain.Partition{Pool: 1, Bits: splitBits, Match: match, Shard: domain.NoShard})
		if err != nil {
			t.Fatalf("Mapper() error = %v", err)
		}
		out = append(out, m)
	}
	return out
}

func owner(mappers []*snapmap.Mapper, oid domain.ObjectID) *snapmap.Mapper {
	for _, m := range mappers {
		if m.Partition().Owns(oid) {
			return m
		}
	}
	return nil
}

func snapsOf(i int) domain.SnapSet {
	switch i % 4 {
	case 0:
		return domain.NewSnapSet(10)
	case 1:
		return domain.NewSnapSet(10, 20)
	case 2:
		return domain.NewSnapSet(20, 30)
	default:
		return domain.NewSnapSet(10, 20, 30)
	}
}

func TestIndex_Restart_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, engine := range []string{storage.EngineBadger, storage.EnginePebble, storage.EngineBolt} {
		t.Run(engine, func(t *testing.T) {
			ctx := context.Background()
			dir := filepath.Join(t.TempDir(), engine)

			// Populate every partition in one transaction.
			svc := openService(t, engine, dir)
			mappers := partitionMappers(t, svc)
			txn := svc.Begin()
			want := map[domain.ObjectID]domain.SnapSet{}
			for i := 0; i < objectCount; i++ {
				oid := domain.NewObjectID(1, "", fmt.Sprintf("obj-%04d", i))
				m := owner(mappers, oid)
				if m == nil {
					t.Fatalf("no partition owns %s", oid)
				}
				if err := m.AddObject(ctx, oid, snapsOf(i), txn); err != nil {
					t.Fatalf("AddObject(%s) error = %v", oid, err)
				}
				want[oid] = snapsOf(i)
			}
			if err := svc.Commit(ctx, txn); err != nil {
				t.Fatalf("Commit() error = %v", err)
			}
			if err := svc.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			// Reopen and verify the index survived.
			svc = openService(t, engine, dir)
			defer svc.Close()
			mappers = partitionMappers(t, svc)

			for oid, set := range want {
				got, err := owner(mappers, oid).GetSnapshotSet(ctx, oid)
				if err != nil {
					t.Fatalf("GetSnapshotSet(%s) error = %v", oid, err)
				}
				if !got.Equal(set) {
					t.Fatalf("GetSnapshotSet(%s) = %v, want %v", oid, got, set)
				}
			}

			reports, err := svc.CheckConsistency(ctx)
			if err != nil {
				t.Fatalf("CheckConsistency() error = %v", err)
			}
			total := 0
			for _, r := range reports {
				if !r.OK() {
					t.Errorf("partition %s violations: %v", r.Partition, r.Violations)
				}
				total += r.Objects
			}
			if total != objectCount {
				t.Errorf("objects across partitions = %d, want %d", total, objectCount)
			}

			// Trim snapshot 20 partition by partition in small batches.
			trimmed := 0
			for _, m := range mappers {
				trimmed += drain(ctx, t, svc, m, 20)
			}
			wantTrimmed := 0
			for _, set := range want {
				if set.Contains(20) {
					wantTrimmed++
				}
			}
			if trimmed != wantTrimmed {
				t.Errorf("trimmed %d objects, want %d", trimmed, wantTrimmed)
			}

			for oid, set := range want {
				got, err := owner(mappers, oid).GetSnapshotSet(ctx, oid)
				remaining := set.Difference(domain.NewSnapSet(20))
				if remaining.IsEmpty() {
					if !errors.Is(err, domain.ErrNotFound) {
						t.Fatalf("GetSnapshotSet(%s) error = %v, want not found", oid, err)
					}
					continue
				}
				if err != nil || !got.Equal(remaining) {
					t.Fatalf("GetSnapshotSet(%s) = %v, %v, want %v", oid, got, err, remaining)
				}
			}

			reports, err = svc.CheckConsistency(ctx)
			if err != nil {
				t.Fatalf("CheckConsistency() error = %v", err)
			}
			for _, r := range reports {
				if !r.OK() {
					t.Errorf("partition %s violations after trim: %v", r.Partition, r.Violations)
				}
			}
		})
	}
}

// drain removes snap from every object of m's partition and returns how
// many objects it touched.
func drain(ctx context.Context, t *testing.T, svc *service.IndexService, m *snapmap.Mapper, snap domain.SnapID) int {
	t.Helper()
	touched := 0
	for {
		batch, err := m.NextObjectsForSnapshot(ctx, snap, 7)
		if errors.Is(err, domain.ErrNotFound) {
			return touched
		}
		if err != nil {
			t.Fatalf("NextObjectsForSnapshot() error = %v", err)
		}

		txn := svc.Begin()
		for _, oid := range batch {
			set, err := m.GetSnapshotSet(ctx, oid)
			if err != nil {
				t.Fatalf("GetSnapshotSet(%s) error = %v", oid, err)
			}
			next := set.Difference(domain.NewSnapSet(snap))
			if err := m.UpdateObjectSnapshots(ctx, oid, next, &set, txn); err != nil {
				t.Fatalf("UpdateObjectSnapshots(%s) error = %v", oid, err)
			}
		}
		if err := svc.Commit(ctx, txn); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		touched += len(batch)
	}
}
