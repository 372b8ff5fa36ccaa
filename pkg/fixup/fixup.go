package fixup

import (
	"fmt"
	"hash/crc32"

	"github.com/aretw0/crackle/pkg/model"
)

// Func adapts a checksum over bytes into a model.Fixup.
type Func struct {
	name string
	sum  func(data []byte) uint64
}

// New creates a fixup named name that checksums the referenced bytes with sum.
func New(name string, sum func(data []byte) uint64) *Func {
	return &Func{name: name, sum: sum}
}

// Name returns the fixup name.
func (f *Func) Name() string { return f.name }

// Fix concatenates the serialized references and checksums them.
func (f *Func) Fix(r model.Resolver, refs []model.ID) (model.Value, error) {
	data, err := Collect(r, refs)
	if err != nil {
		return model.Nil, err
	}
	return model.Uint(f.sum(data)), nil
}

// Collect returns the concatenated serialized bytes of refs.
func Collect(r model.Resolver, refs []model.ID) ([]byte, error) {
	var data []byte
	for _, ref := range refs {
		b, err := r.SerializedValue(ref)
		if err != nil {
			return nil, fmt.Errorf("reading '%s': %w", r.Path(ref), err)
		}
		data = append(data, b.Bytes()...)
	}
	return data, nil
}

// CRC32 returns an IEEE CRC-32 fixup.
func CRC32() *Func {
	return New("crc32", func(data []byte) uint64 {
		return uint64(crc32.ChecksumIEEE(data))
	})
}

// Internet returns the RFC 1071 Internet checksum fixup.
func Internet() *Func {
	return New("internet", InternetChecksum)
}

// Sum8 returns a fixup holding the low byte of the byte sum.
func Sum8() *Func {
	return New("sum8", func(data []byte) uint64 {
		var s uint8
		for _, c := range data {
			s += c
		}
		return uint64(s)
	})
}

// InternetChecksum computes the one's complement of the one's complement sum
// of 16 bit big-endian words. An odd trailing byte is padded with zero.
func InternetChecksum(data []byte) uint64 {
	var sum uint32
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return uint64(^uint16(sum))
}
