package snapmap

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/yndnr/snapmapper-go/internal/core/domain"
)

const (
	// ReversePrefix marks snapshot -> object entries.
	ReversePrefix = "MAP_"
	// ForwardPrefix marks object -> snapshot set entries.
	ForwardPrefix = "OBJ_"

	snapHexWidth = 16
)

// ReverseKey returns the key of the (snap, oid) reverse entry.
func ReverseKey(snap domain.SnapID, oid domain.ObjectID) []byte {
	return []byte(reverseSnapPrefix(snap) + domain.ShardPrefix(oid.Shard) + oid.String())
}

// ForwardKey returns the key of the forward entry of oid.
func ForwardKey(oid domain.ObjectID) []byte {
	return []byte(ForwardPrefix + domain.ShardPrefix(oid.Shard) + oid.String())
}

// IsReverseKey reports whether key belongs to the reverse family.
func IsReverseKey(key []byte) bool {
	return bytes.HasPrefix(key, []byte(ReversePrefix))
}

// IsForwardKey reports whether key belongs to the forward family.
func IsForwardKey(key []byte) bool {
	return bytes.HasPrefix(key, []byte(ForwardPrefix))
}

// ReverseScanPrefix returns the common prefix of every reverse key of snap
// under shardPrefix whose object string starts with objPrefix.
func ReverseScanPrefix(snap domain.SnapID, shardPrefix, objPrefix string) []byte {
	return []byte(reverseSnapPrefix(snap) + shardPrefix + objPrefix)
}

// ParseReverseKey extracts the snapshot id from a reverse key.
func ParseReverseKey(key []byte) (domain.SnapID, error) {
	if !IsReverseKey(key) {
		return 0, domain.ErrFormat.WithDetailsf("key %q is not a reverse key", key)
	}
	rest := key[len(ReversePrefix):]
	if len(rest) < snapHexWidth+1 || rest[snapHexWidth] != '_' {
		return 0, domain.ErrFormat.WithDetailsf("reverse key %q: bad snap field", key)
	}
	snap, err := strconv.ParseUint(string(rest[:snapHexWidth]), 16, 64)
	if err != nil {
		return 0, domain.ErrFormat.WithDetailsf("reverse key %q", key).WithCause(err)
	}
	return domain.SnapID(snap), nil
}

func reverseSnapPrefix(snap domain.SnapID) string {
	return fmt.Sprintf("%s%016X_", ReversePrefix, uint64(snap))
}
