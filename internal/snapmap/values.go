package snapmap

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/yndnr/snapmapper-go/internal/core/domain"
)

// Every stored value is wrapped in a versioned container:
//
//	[struct_v:1][compat_v:1][len:4 BE][msgpack payload:len][crc32c:4 BE]
//
// struct_v is the version the writer produced. compat_v is the oldest
// reader version that can still decode it. The payload is a msgpack map,
// so a newer writer may add fields that older readers skip.
const (
	valueVersion       = 1
	valueCompatVersion = 1
	valueHeaderLen     = 6
	valueTrailerLen    = 4
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

type reverseValue struct {
	Snap   uint64          `msgpack:"snap"`
	Object domain.ObjectID `msgpack:"oid"`
}

type forwardValue struct {
	Object domain.ObjectID `msgpack:"oid"`
	Snaps  []uint64        `msgpack:"snaps"`
}

// EncodeReverseValue encodes the value stored under ReverseKey(snap, oid).
func EncodeReverseValue(snap domain.SnapID, oid domain.ObjectID) ([]byte, error) {
	return encodeContainer(&reverseValue{Snap: uint64(snap), Object: oid})
}

// DecodeReverseValue is the inverse of EncodeReverseValue.
func DecodeReverseValue(data []byte) (domain.SnapID, domain.ObjectID, error) {
	var v reverseValue
	if err := decodeContainer(data, &v); err != nil {
		return 0, domain.ObjectID{}, err
	}
	return domain.SnapID(v.Snap), v.Object, nil
}

// EncodeForwardValue encodes the value stored under ForwardKey(oid).
func EncodeForwardValue(oid domain.ObjectID, snaps domain.SnapSet) ([]byte, error) {
	return encodeContainer(&forwardValue{Object: oid, Snaps: snaps.Values()})
}

// DecodeForwardValue is the inverse of EncodeForwardValue. The set is
// returned sorted and de-duplicated; emptiness is left to the caller.
func DecodeForwardValue(data []byte) (domain.ObjectID, domain.SnapSet, error) {
	var v forwardValue
	if err := decodeContainer(data, &v); err != nil {
		return domain.ObjectID{}, nil, err
	}
	return v.Object, domain.SnapSetFromValues(v.Snaps), nil
}

func encodeContainer(v any) ([]byte, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return nil, domain.ErrFormat.WithDetails("encode payload").WithCause(err)
	}

	out := make([]byte, valueHeaderLen, valueHeaderLen+len(payload)+valueTrailerLen)
	out[0] = valueVersion
	out[1] = valueCompatVersion
	binary.BigEndian.PutUint32(out[2:valueHeaderLen], uint32(len(payload)))
	out = append(out, payload...)
	out = binary.BigEndian.AppendUint32(out, crc32.Checksum(out, castagnoli))
	return out, nil
}

func decodeContainer(data []byte, v any) error {
	if len(data) < valueHeaderLen+valueTrailerLen {
		return domain.ErrFormat.WithDetailsf("value too short: %d bytes", len(data))
	}
	if compat := data[1]; compat > valueVersion {
		return domain.ErrFormat.WithDetailsf("value requires decoder v%d, have v%d", compat, valueVersion)
	}

	n := int(binary.BigEndian.Uint32(data[2:valueHeaderLen]))
	if n != len(data)-valueHeaderLen-valueTrailerLen {
		return domain.ErrFormat.WithDetailsf("payload length %d does not match value size %d", n, len(data))
	}

	body := data[:valueHeaderLen+n]
	want := binary.BigEndian.Uint32(data[valueHeaderLen+n:])
	if got := crc32.Checksum(body, castagnoli); got != want {
		return domain.ErrFormat.WithDetailsf("checksum mismatch: stored %08x, computed %08x", want, got)
	}

	r := bytes.NewReader(body[valueHeaderLen:])
	if err := msgpack.NewDecoder(r).Decode(v); err != nil {
		return domain.ErrFormat.WithDetails("decode payload").WithCause(err)
	}
	if r.Len() != 0 {
		return domain.ErrFormat.WithDetailsf("%d trailing bytes after payload", r.Len())
	}
	return nil
}
