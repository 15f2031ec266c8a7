package domain

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverseNibbles(t *testing.T) {
	tests := []struct {
		in, want uint32
	}{
		{0x00000000, 0x00000000},
		{0x12345678, 0x87654321},
		{0x0000000F, 0xF0000000},
		{0xABCD0001, 0x1000DCBA},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%08X", tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, ReverseNibbles(tt.in))
			assert.Equal(t, tt.in, ReverseNibbles(ReverseNibbles(tt.in)))
		})
	}
}

func TestObjectID_String(t *testing.T) {
	oid := ObjectID{Pool: 3, Name: "rbd_data.1", Snap: 0x1f, Hash: 0x12345678, Shard: NoShard}
	assert.Equal(t, "0000000000000003.87654321...rbd%udata%e1.1F", oid.String())

	negative := ObjectID{Pool: -1, Namespace: "ns", Key: "k", Name: "n", Snap: HeadSnap}
	assert.True(t, strings.HasPrefix(negative.String(), "FFFFFFFFFFFFFFFF.00000000.ns.k.n."))
}

func TestObjectID_ParseRoundTrip(t *testing.T) {
	ids := []ObjectID{
		NewObjectID(1, "", "plain"),
		NewObjectID(7, "tenant.a", "dots.and_underscores%"),
		NewObjectID(-1, "", "ctrl\x01\x7fbytes").WithSnap(42),
		NewObjectID(2, "ns", "obj").WithKey("locator"),
	}
	for _, oid := range ids {
		t.Run(oid.Name, func(t *testing.T) {
			got, err := ParseObjectID(oid.String())
			require.NoError(t, err)
			assert.Equal(t, oid, got)
		})
	}
}

func TestParseObjectID_Malformed(t *testing.T) {
	bad := []string{
		"",
		"0000000000000001.00000000.a.b.c",
		"01.00000000.a.b.c.1",
		"000000000000000Z.00000000.a.b.c.1",
		"0000000000000001.00000000.a%.b.c.1",
		"0000000000000001.00000000.a.b.c.zz",
	}
	for _, s := range bad {
		_, err := ParseObjectID(s)
		assert.ErrorIs(t, err, ErrFormat, "input %q", s)
	}
}

func TestObjectID_WithKeyRehashes(t *testing.T) {
	oid := NewObjectID(1, "", "name")
	assert.Equal(t, HashLocator("name"), oid.Hash)

	keyed := oid.WithKey("other")
	assert.Equal(t, HashLocator("other"), keyed.Hash)
	assert.Equal(t, oid.Hash, keyed.WithKey("").Hash)
}

func TestObjectID_Match(t *testing.T) {
	oid := ObjectID{Hash: 0xdeadbeef}
	assert.True(t, oid.Match(0, 0x12345678))
	assert.True(t, oid.Match(4, 0xf))
	assert.False(t, oid.Match(4, 0xe))
	assert.True(t, oid.Match(32, 0xdeadbeef))
	assert.False(t, oid.Match(32, 0xdeadbeee))
}

func TestObjectID_CompareFollowsKeyForm(t *testing.T) {
	a := ObjectID{Pool: 1, Name: "a", Hash: 0x10}
	b := ObjectID{Pool: 1, Name: "a", Hash: 0x01}
	// 0x10 reversed is 0x01000000, 0x01 reversed is 0x10000000.
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}
