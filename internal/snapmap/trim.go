package snapmap

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yndnr/snapmapper-go/internal/core/domain"
)

// NextObjectsForSnapshot returns up to maxCount objects still mapped to snap,
// in key order. It returns ErrNotFound when none are left.
//
// The scan keeps no state between calls: a trimmer removes the returned
// objects (or the snap from their sets), commits, and calls again with
// the same snap until ErrNotFound.
func (m *Mapper) NextObjectsForSnapshot(ctx context.Context, snap domain.SnapID, maxCount int) (out []domain.ObjectID, err error) {
	examined := 0
	defer func() {
		m.record(opTrimScan, err)
		m.metrics.RecordTrimScan(resultLabel(err), examined, len(out))
	}()

	if maxCount < 0 {
		return nil, domain.ErrInvalidArgument.WithDetailsf("maxCount %d is negative", maxCount)
	}
	if maxCount == 0 {
		return nil, domain.ErrNotFound.WithDetailsf("snap %d: no objects requested", snap)
	}

	for _, prefix := range m.prefixes {
		if len(out) >= maxCount {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := ReverseScanPrefix(snap, m.shardPrefix, prefix)
		cursor := start
		for len(out) < maxCount {
			pair, ok, err := m.backend.NextAtOrAfter(ctx, cursor)
			if err != nil {
				return nil, err
			}
			if !ok || !bytes.HasPrefix(pair.Key, start) {
				break
			}
			examined++

			oid, err := m.checkReverseEntry(opTrimScan, pair.Key, pair.Value, snap)
			if err != nil {
				return nil, err
			}
			out = append(out, oid)

			// Smallest key strictly after this one.
			cursor = append(pair.Key, 0)
		}
	}

	if len(out) == 0 {
		return nil, domain.ErrNotFound.WithDetailsf("no objects for snap %d", snap)
	}

	m.log.Debug("trim scan", "snap", uint64(snap), "found", len(out), "examined", examined)
	return out, nil
}

// checkReverseEntry decodes a reverse entry and verifies it against the
// key it was read under and the owned partition.
func (m *Mapper) checkReverseEntry(op string, key, value []byte, snap domain.SnapID) (domain.ObjectID, error) {
	gotSnap, oid, err := DecodeReverseValue(value)
	if err != nil {
		return domain.ObjectID{}, fmt.Errorf("reverse entry %q: %w", key, err)
	}
	if gotSnap != snap {
		return domain.ObjectID{}, m.fatal(op, domain.ErrCorruptMapping.WithDetailsf(
			"reverse entry %q holds snap %d, want %d", key, gotSnap, snap))
	}
	if want := ReverseKey(gotSnap, oid); !bytes.Equal(want, key) {
		return domain.ObjectID{}, m.fatal(op, domain.ErrCorruptMapping.WithDetailsf(
			"reverse entry %q holds object %s", key, oid.String()))
	}
	if err := m.checkOwnership(op, oid); err != nil {
		return domain.ObjectID{}, err
	}
	return oid, nil
}
