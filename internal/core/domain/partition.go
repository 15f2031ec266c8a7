package domain

import (
	"fmt"
	"slices"
)

// Partition is the slice of the object space owned by one mapper.
//
// An object belongs to the partition when it lives in Pool, is the same
// Shard, and the low Bits bits of its placement hash equal those of Match.
type Partition struct {
	Pool  int64  `koanf:"pool"`
	Bits  uint32 `koanf:"bits"`
	Match uint32 `koanf:"match"`
	Shard int8   `koanf:"shard"`
}

// Validate checks the partition parameters.
func (p Partition) Validate() error {
	if p.Bits > 32 {
		return ErrInvalidArgument.WithDetailsf("partition bits %d exceeds 32", p.Bits)
	}
	if p.Shard < NoShard {
		return ErrInvalidArgument.WithDetailsf("partition shard %d is negative", p.Shard)
	}
	return nil
}

// Mask returns the hash mask selecting the partition bits.
func (p Partition) Mask() uint32 {
	return lowMask(p.Bits)
}

// Owns reports whether oid falls inside the partition.
func (p Partition) Owns(oid ObjectID) bool {
	return oid.Pool == p.Pool && oid.Shard == p.Shard && oid.Match(p.Bits, p.Match)
}

// ShardPrefix returns the discriminator inserted before object ids in keys.
func (p Partition) ShardPrefix() string {
	return ShardPrefix(p.Shard)
}

// Prefixes returns, in ascending order, the object-id prefixes that
// together cover every object the partition owns.
//
// Object ids render the hash nibble-reversed, so the low-order partition
// bits become leading hex digits. Bits is rounded up to a whole nibble and
// the bits in between are enumerated, which yields up to 8 prefixes.
func (p Partition) Prefixes() []string {
	width := p.Bits
	for width%4 != 0 {
		width++
	}

	from := []uint32{p.Match & p.Mask()}
	for i := p.Bits; i < width; i++ {
		to := make([]uint32, 0, 2*len(from))
		for _, v := range from {
			to = append(to, v, v|(1<<i))
		}
		from = to
	}

	pool := fmt.Sprintf("%016X.", uint64(p.Pool))
	out := make([]string, 0, len(from))
	for _, v := range from {
		rev := fmt.Sprintf("%08X", ReverseNibbles(v))
		out = append(out, pool+rev[:width/4])
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// String renders the partition for logs.
func (p Partition) String() string {
	return fmt.Sprintf("pool=%d bits=%d match=%#x shard=%d", p.Pool, p.Bits, p.Match, p.Shard)
}
