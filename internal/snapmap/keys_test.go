package snapmap

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/snapmapper-go/internal/core/domain"
)

func testOID() domain.ObjectID {
	return domain.ObjectID{
		Pool:  1,
		Name:  "foo",
		Snap:  domain.HeadSnap,
		Hash:  0x12345678,
		Shard: domain.NoShard,
	}
}

func TestReverseKey(t *testing.T) {
	oid := testOID()

	assert.Equal(t,
		"MAP_0000000000000005_0000000000000001.87654321...foo.FFFFFFFFFFFFFFFE",
		string(ReverseKey(5, oid)))
	assert.Equal(t,
		"MAP_FFFFFFFFFFFFFFFF_0000000000000001.87654321...foo.FFFFFFFFFFFFFFFE",
		string(ReverseKey(math.MaxUint64, oid)))

	sharded := oid.WithShard(2)
	assert.Equal(t,
		"MAP_00000000000000AB_.2_0000000000000001.87654321...foo.FFFFFFFFFFFFFFFE",
		string(ReverseKey(0xab, sharded)))
}

func TestForwardKey(t *testing.T) {
	oid := testOID()

	assert.Equal(t, "OBJ_0000000000000001.87654321...foo.FFFFFFFFFFFFFFFE", string(ForwardKey(oid)))
	assert.Equal(t, "OBJ_.b_0000000000000001.87654321...foo.FFFFFFFFFFFFFFFE", string(ForwardKey(oid.WithShard(11))))
}

func TestKeyFamilies(t *testing.T) {
	oid := testOID()

	assert.True(t, IsReverseKey(ReverseKey(1, oid)))
	assert.False(t, IsForwardKey(ReverseKey(1, oid)))
	assert.True(t, IsForwardKey(ForwardKey(oid)))
	assert.False(t, IsReverseKey(ForwardKey(oid)))
	assert.False(t, IsReverseKey([]byte("MAP")))
	assert.False(t, IsReverseKey(nil))
}

func TestReverseKeyOrdering(t *testing.T) {
	snapIDs := []domain.SnapID{0, 1, 9, 10, 15, 16, 255, 256, 1 << 32, 1<<63 - 1, 1 << 63, math.MaxUint64 - 1, math.MaxUint64}
	objects := []domain.ObjectID{
		testOID(),
		domain.NewObjectID(1, "", "a"),
		domain.NewObjectID(1, "ns", "zzzz"),
		domain.NewObjectID(7, "", "b").WithSnap(3),
	}

	for _, shard := range []int8{domain.NoShard, 0, 3} {
		for i := range snapIDs {
			for j := i + 1; j < len(snapIDs); j++ {
				for _, o1 := range objects {
					for _, o2 := range objects {
						k1 := ReverseKey(snapIDs[i], o1.WithShard(shard))
						k2 := ReverseKey(snapIDs[j], o2.WithShard(shard))
						require.Negative(t, bytes.Compare(k1, k2),
							"snap %d key %q should sort before snap %d key %q", snapIDs[i], k1, snapIDs[j], k2)
					}
				}
			}
		}
	}
}

func TestReverseScanPrefix(t *testing.T) {
	oid := testOID()
	part := domain.Partition{Pool: 1, Bits: 4, Match: 0x8, Shard: domain.NoShard}
	require.True(t, part.Owns(oid))

	prefixes := part.Prefixes()
	require.Len(t, prefixes, 1)

	prefix := ReverseScanPrefix(5, part.ShardPrefix(), prefixes[0])
	assert.Equal(t, "MAP_0000000000000005_0000000000000001.8", string(prefix))
	assert.True(t, bytes.HasPrefix(ReverseKey(5, oid), prefix))
	assert.False(t, bytes.HasPrefix(ReverseKey(6, oid), prefix))
}

func TestParseReverseKey(t *testing.T) {
	oid := testOID()

	for _, snap := range []domain.SnapID{0, 5, 0xabcdef, math.MaxUint64} {
		got, err := ParseReverseKey(ReverseKey(snap, oid))
		require.NoError(t, err)
		assert.Equal(t, snap, got)
	}

	tests := []struct {
		name string
		key  string
	}{
		{"forward key", string(ForwardKey(oid))},
		{"short", "MAP_0005_"},
		{"missing separator", "MAP_0000000000000005X0000"},
		{"not hex", "MAP_000000000000000G_0000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReverseKey([]byte(tt.key))
			assert.ErrorIs(t, err, domain.ErrFormat)
		})
	}
}
