package bits

import (
	"bytes"
	"fmt"
)

// Bits is a bit string stored MSB-first. The zero value is an empty string.
// Values are treated as immutable once returned from a Writer.
type Bits struct {
	data []byte
	n    int
}

// FromBytes wraps a byte slice as a byte-aligned bit string.
func FromBytes(p []byte) Bits {
	buf := make([]byte, len(p))
	copy(buf, p)
	return Bits{data: buf, n: len(p) * 8}
}

// Len returns the length in bits.
func (b Bits) Len() int { return b.n }

// ByteLen returns the number of bytes needed to hold the bits.
func (b Bits) ByteLen() int { return (b.n + 7) / 8 }

// Aligned reports whether the length is a whole number of bytes.
func (b Bits) Aligned() bool { return b.n%8 == 0 }

// Bytes returns a copy of the content. A trailing partial byte is padded with zero bits.
func (b Bits) Bytes() []byte {
	out := make([]byte, b.ByteLen())
	copy(out, b.data)
	return out
}

// Equal reports whether both strings hold the same bits.
func (b Bits) Equal(o Bits) bool {
	return b.n == o.n && bytes.Equal(b.data[:b.ByteLen()], o.data[:o.ByteLen()])
}

func (b Bits) String() string {
	if b.Aligned() {
		return fmt.Sprintf("%x", b.data[:b.ByteLen()])
	}
	return fmt.Sprintf("%x/%dbits", b.data[:b.ByteLen()], b.n)
}

// Writer accumulates bits.
type Writer struct {
	data []byte
	n    int
}

// Len returns the number of bits written so far.
func (w *Writer) Len() int { return w.n }

// WriteBits appends the low width bits of v, most significant first.
func (w *Writer) WriteBits(v uint64, width int) {
	for i := width - 1; i >= 0; i-- {
		w.writeBit(byte(v>>uint(i)) & 1)
	}
}

// WriteBytes appends whole bytes.
func (w *Writer) WriteBytes(p []byte) {
	if w.n%8 == 0 {
		w.data = append(w.data[:w.n/8], p...)
		w.n += len(p) * 8
		return
	}
	for _, c := range p {
		w.WriteBits(uint64(c), 8)
	}
}

// Append appends another bit string.
func (w *Writer) Append(b Bits) {
	full := b.n / 8
	w.WriteBytes(b.data[:full])
	if rem := b.n % 8; rem > 0 {
		w.WriteBits(uint64(b.data[full]>>uint(8-rem)), rem)
	}
}

// Bits returns the accumulated bit string.
func (w *Writer) Bits() Bits {
	out := make([]byte, (w.n+7)/8)
	copy(out, w.data)
	return Bits{data: out, n: w.n}
}

func (w *Writer) writeBit(bit byte) {
	idx := w.n / 8
	if idx == len(w.data) {
		w.data = append(w.data, 0)
	}
	if bit != 0 {
		w.data[idx] |= 0x80 >> uint(w.n%8)
	}
	w.n++
}
