package snapmap

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yndnr/snapmapper-go/internal/core/domain"
)

// Violation is one broken index entry found by CheckConsistency.
type Violation struct {
	Key     string
	Problem string
}

// ConsistencyReport is the result of CheckConsistency.
type ConsistencyReport struct {
	Partition      domain.Partition
	Objects        int
	ReverseEntries int
	Violations     []Violation
	CheckedAt      time.Time
}

// OK reports whether no violations were found.
func (r *ConsistencyReport) OK() bool {
	return len(r.Violations) == 0
}

func (r *ConsistencyReport) addf(key []byte, format string, args ...any) {
	r.Violations = append(r.Violations, Violation{Key: string(key), Problem: fmt.Sprintf(format, args...)})
}

// CheckConsistency walks both key families of the partition and reports
// every entry that breaks the pairing between them. It reads committed
// state only and must not run concurrently with commits to the partition.
//
// Violations are reported, not treated as fatal.
func (m *Mapper) CheckConsistency(ctx context.Context) (report *ConsistencyReport, err error) {
	defer func() { m.record(opCheck, err) }()

	report = &ConsistencyReport{Partition: m.part}

	if err := m.checkForward(ctx, report); err != nil {
		return nil, err
	}
	if err := m.checkReverse(ctx, report); err != nil {
		return nil, err
	}

	report.CheckedAt = time.Now()
	if report.OK() {
		m.log.Info("consistency check passed",
			"objects", report.Objects, "reverse_entries", report.ReverseEntries)
	} else {
		m.log.Warn("consistency check found violations",
			"objects", report.Objects, "reverse_entries", report.ReverseEntries,
			"violations", len(report.Violations))
	}
	return report, nil
}

// checkForward verifies every forward entry and the reverse entries it
// implies.
func (m *Mapper) checkForward(ctx context.Context, report *ConsistencyReport) error {
	for _, prefix := range m.prefixes {
		start := []byte(ForwardPrefix + m.shardPrefix + prefix)
		cursor := start
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			pair, ok, err := m.backend.NextAtOrAfter(ctx, cursor)
			if err != nil {
				return err
			}
			if !ok || !bytes.HasPrefix(pair.Key, start) {
				break
			}
			cursor = append(pair.Key, 0)
			report.Objects++

			oid, set, err := DecodeForwardValue(pair.Value)
			if err != nil {
				report.addf(pair.Key, "undecodable forward value: %v", err)
				continue
			}
			if !bytes.Equal(ForwardKey(oid), pair.Key) {
				report.addf(pair.Key, "forward value holds object %s", oid.String())
				continue
			}
			if !m.part.Owns(oid) {
				report.addf(pair.Key, "object %s outside partition %s", oid.String(), m.part.String())
			}
			if set.IsEmpty() {
				report.addf(pair.Key, "empty snap set")
				continue
			}

			keys := make([][]byte, 0, set.Len())
			for _, snap := range set {
				keys = append(keys, ReverseKey(snap, oid))
			}
			got, err := m.backend.GetMany(ctx, keys...)
			if err != nil {
				return err
			}
			for i, snap := range set {
				raw, ok := got[string(keys[i])]
				if !ok {
					report.addf(pair.Key, "snap %d has no reverse entry", snap)
					continue
				}
				gotSnap, gotOID, err := DecodeReverseValue(raw)
				if err != nil || gotSnap != snap || gotOID != oid {
					report.addf(keys[i], "reverse entry does not match forward entry of %s", oid.String())
				}
			}
		}
	}
	return nil
}

// checkReverse visits every owned reverse entry, across all snaps, and
// verifies the forward entry lists its snap. Ranges belonging to other
// partitions are skipped with a seek instead of being read.
func (m *Mapper) checkReverse(ctx context.Context, report *ConsistencyReport) error {
	cursor := []byte(ReversePrefix)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pair, ok, err := m.backend.NextAtOrAfter(ctx, cursor)
		if err != nil {
			return err
		}
		if !ok || !IsReverseKey(pair.Key) {
			return nil
		}

		snap, err := ParseReverseKey(pair.Key)
		if err != nil {
			report.addf(pair.Key, "unparsable reverse key: %v", err)
			cursor = append(pair.Key, 0)
			continue
		}

		rest := string(pair.Key[len(reverseSnapPrefix(snap)):])
		if !m.ownsObjectString(rest) {
			next := m.nextOwnedReverse(snap, rest)
			if next == nil {
				if uint64(snap) == math.MaxUint64 {
					return nil
				}
				next = []byte(reverseSnapPrefix(snap + 1))
			}
			cursor = next
			continue
		}
		cursor = append(pair.Key, 0)
		report.ReverseEntries++

		gotSnap, oid, err := DecodeReverseValue(pair.Value)
		if err != nil {
			report.addf(pair.Key, "undecodable reverse value: %v", err)
			continue
		}
		if gotSnap != snap || !bytes.Equal(ReverseKey(gotSnap, oid), pair.Key) {
			report.addf(pair.Key, "reverse value holds snap %d object %s", gotSnap, oid.String())
			continue
		}

		fkey := ForwardKey(oid)
		got, err := m.backend.GetMany(ctx, fkey)
		if err != nil {
			return err
		}
		raw, ok := got[string(fkey)]
		if !ok {
			report.addf(pair.Key, "object %s has no forward entry", oid.String())
			continue
		}
		_, set, err := DecodeForwardValue(raw)
		if err != nil {
			// Already reported by checkForward.
			continue
		}
		if !set.Contains(snap) {
			report.addf(pair.Key, "forward entry of %s lacks snap %d", oid.String(), snap)
		}
	}
}

// ownsObjectString reports whether rest, the part of a reverse key after
// the snap field, falls under one of the owned prefixes.
func (m *Mapper) ownsObjectString(rest string) bool {
	for _, p := range m.prefixes {
		if strings.HasPrefix(rest, m.shardPrefix+p) {
			return true
		}
	}
	return false
}

// nextOwnedReverse returns the first owned reverse key position of snap
// after rest, or nil if no owned range of snap follows it.
func (m *Mapper) nextOwnedReverse(snap domain.SnapID, rest string) []byte {
	for _, p := range m.prefixes {
		if candidate := m.shardPrefix + p; candidate > rest {
			return []byte(reverseSnapPrefix(snap) + candidate)
		}
	}
	return nil
}
