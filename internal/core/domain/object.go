package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"
)

const (
	// HeadSnap is the snap id of the writable head of an object.
	HeadSnap uint64 = math.MaxUint64 - 1

	// NoShard marks an object that is not a shard of an erasure-coded set.
	NoShard int8 = -1
)

// ObjectID identifies a stored object.
//
// Hash is the placement hash the object was routed by. Its low-order bits
// decide which partition owns the object, so it is carried explicitly
// rather than recomputed from the name.
type ObjectID struct {
	Pool      int64  `msgpack:"pool"`
	Namespace string `msgpack:"ns,omitempty"`
	Key       string `msgpack:"key,omitempty"`
	Name      string `msgpack:"name"`
	Snap      uint64 `msgpack:"snap"`
	Hash      uint32 `msgpack:"hash"`
	Shard     int8   `msgpack:"shard"`
}

// NewObjectID creates the head ObjectID of name in pool/namespace.
// The placement hash is MurmurHash3 of the object locator.
func NewObjectID(pool int64, namespace, name string) ObjectID {
	return ObjectID{
		Pool:      pool,
		Namespace: namespace,
		Name:      name,
		Snap:      HeadSnap,
		Hash:      HashLocator(name),
		Shard:     NoShard,
	}
}

// HashLocator computes the placement hash for an object locator.
func HashLocator(locator string) uint32 {
	return murmur3.Sum32([]byte(locator))
}

// WithSnap returns a copy of the id naming the clone at snap.
func (o ObjectID) WithSnap(snap uint64) ObjectID {
	o.Snap = snap
	return o
}

// WithShard returns a copy of the id naming the given shard.
func (o ObjectID) WithShard(shard int8) ObjectID {
	o.Shard = shard
	return o
}

// WithKey returns a copy of the id placed by locator key instead of its name.
func (o ObjectID) WithKey(key string) ObjectID {
	o.Key = key
	if key != "" {
		o.Hash = HashLocator(key)
	} else {
		o.Hash = HashLocator(o.Name)
	}
	return o
}

// ShardPrefix returns the key discriminator for shard: empty for NoShard,
// otherwise ".<shard hex>_".
func ShardPrefix(shard int8) string {
	if shard == NoShard {
		return ""
	}
	return fmt.Sprintf(".%x_", shard)
}

// ReversedHash returns the placement hash with its nibbles in reverse order.
func (o ObjectID) ReversedHash() uint32 {
	return ReverseNibbles(o.Hash)
}

// Match reports whether the low bits of the hash equal those of match.
func (o ObjectID) Match(bits, match uint32) bool {
	mask := lowMask(bits)
	return o.Hash&mask == match&mask
}

// String renders the id in its key form:
//
//	<pool %016X>.<reversed hash %08X>.<ns>.<key>.<name>.<snap %X>
//
// The text fields are escaped so that '.' only ever appears as a separator.
func (o ObjectID) String() string {
	var b strings.Builder
	b.Grow(32 + len(o.Namespace) + len(o.Key) + len(o.Name))
	fmt.Fprintf(&b, "%016X.%08X.", uint64(o.Pool), o.ReversedHash())
	appendEscaped(&b, o.Namespace)
	b.WriteByte('.')
	appendEscaped(&b, o.Key)
	b.WriteByte('.')
	appendEscaped(&b, o.Name)
	b.WriteByte('.')
	fmt.Fprintf(&b, "%X", o.Snap)
	return b.String()
}

// Compare orders ids the way their key form orders them.
func (o ObjectID) Compare(other ObjectID) int {
	return strings.Compare(o.String(), other.String())
}

// ParseObjectID parses the output of ObjectID.String. The shard is not
// part of the key form, so the result always carries NoShard.
func ParseObjectID(s string) (ObjectID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 6 {
		return ObjectID{}, ErrFormat.WithDetailsf("object id %q: want 6 fields, got %d", s, len(parts))
	}
	if len(parts[0]) != 16 || len(parts[1]) != 8 {
		return ObjectID{}, ErrFormat.WithDetailsf("object id %q: bad pool or hash width", s)
	}
	pool, err := strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return ObjectID{}, ErrFormat.WithDetailsf("object id %q: pool", s).WithCause(err)
	}
	rev, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return ObjectID{}, ErrFormat.WithDetailsf("object id %q: hash", s).WithCause(err)
	}
	snap, err := strconv.ParseUint(parts[5], 16, 64)
	if err != nil {
		return ObjectID{}, ErrFormat.WithDetailsf("object id %q: snap", s).WithCause(err)
	}

	var fields [3]string
	for i := range fields {
		fields[i], err = unescape(parts[2+i])
		if err != nil {
			return ObjectID{}, ErrFormat.WithDetailsf("object id %q", s).WithCause(err)
		}
	}

	return ObjectID{
		Pool:      int64(pool),
		Namespace: fields[0],
		Key:       fields[1],
		Name:      fields[2],
		Snap:      snap,
		Hash:      ReverseNibbles(uint32(rev)),
		Shard:     NoShard,
	}, nil
}

// ReverseNibbles reverses the order of the eight nibbles of v.
func ReverseNibbles(v uint32) uint32 {
	v = ((v & 0x0f0f0f0f) << 4) | ((v & 0xf0f0f0f0) >> 4)
	v = ((v & 0x00ff00ff) << 8) | ((v & 0xff00ff00) >> 8)
	v = ((v & 0x0000ffff) << 16) | ((v & 0xffff0000) >> 16)
	return v
}

func lowMask(bits uint32) uint32 {
	if bits >= 32 {
		return math.MaxUint32
	}
	return ^(math.MaxUint32 << bits)
}

func appendEscaped(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%':
			b.WriteString("%p")
		case c == '.':
			b.WriteString("%e")
		case c == '_':
			b.WriteString("%u")
		case c < 32 || c >= 127:
			fmt.Fprintf(b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("dangling escape in %q", s)
		}
		switch s[i+1] {
		case 'p':
			b.WriteByte('%')
			i++
		case 'e':
			b.WriteByte('.')
			i++
		case 'u':
			b.WriteByte('_')
			i++
		default:
			if i+2 >= len(s) {
				return "", fmt.Errorf("short escape in %q", s)
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("bad escape in %q: %w", s, err)
			}
			b.WriteByte(byte(v))
			i += 2
		}
	}
	return b.String(), nil
}
