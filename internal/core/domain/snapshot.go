package domain

import (
	"slices"
	"strconv"
	"strings"
)

// SnapID identifies a snapshot. Snapshots are ordered numerically.
type SnapID uint64

// SnapSet is a sorted set of snapshot ids without duplicates.
//
// The zero value is the empty set. An object whose set becomes empty is
// removed from the index rather than stored with an empty set.
type SnapSet []SnapID

// NewSnapSet builds a set from ids in any order, dropping duplicates.
func NewSnapSet(ids ...SnapID) SnapSet {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return SnapSet(slices.Compact(out))
}

// Len returns the number of snapshots in the set.
func (s SnapSet) Len() int { return len(s) }

// IsEmpty reports whether the set has no members.
func (s SnapSet) IsEmpty() bool { return len(s) == 0 }

// Contains reports whether id is a member of the set.
func (s SnapSet) Contains(id SnapID) bool {
	_, ok := slices.BinarySearch(s, id)
	return ok
}

// Equal reports whether both sets hold the same members.
func (s SnapSet) Equal(other SnapSet) bool {
	return slices.Equal(s, other)
}

// Difference returns the members of s that are not in other.
func (s SnapSet) Difference(other SnapSet) SnapSet {
	var out SnapSet
	for _, id := range s {
		if !other.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// Values returns the members as plain integers, in order.
func (s SnapSet) Values() []uint64 {
	out := make([]uint64, len(s))
	for i, id := range s {
		out[i] = uint64(id)
	}
	return out
}

// SnapSetFromValues is the inverse of Values. It re-sorts and
// de-duplicates, so it accepts input in any order.
func SnapSetFromValues(values []uint64) SnapSet {
	ids := make([]SnapID, len(values))
	for i, v := range values {
		ids[i] = SnapID(v)
	}
	return NewSnapSet(ids...)
}

// String renders the set as "{5,7}".
func (s SnapSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, id := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	b.WriteByte('}')
	return b.String()
}
