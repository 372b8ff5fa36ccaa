package bits

import (
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	// ErrShort is returned when the source ends before the requested bits are available.
	ErrShort = errors.New("insufficient data")
	// ErrSeek is returned when a seek targets a position that was never read.
	ErrSeek = errors.New("seek outside buffered data")
)

const chunkSize = 512

// Reader is a bit-addressable cursor over an incremental source.
//
// Bytes are pulled from the source only as far as the cursor requires and are
// kept, so the cursor can be rewound to any earlier position (transactional
// parsing). Base is the absolute bit offset of position zero, used when a
// Reader is created over a slice of a larger stream.
type Reader struct {
	src   io.Reader
	buf   []byte
	limit int // bit length when the source is exhausted, -1 while unknown
	pos   int
	base  int
	err   error
}

// NewReader creates a Reader pulling from src on demand.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src, limit: -1}
}

// NewBitsReader creates a Reader over a fully known bit string.
// base is the absolute offset of its first bit, used for error reporting.
func NewBitsReader(b Bits, base int) *Reader {
	return &Reader{buf: b.Bytes(), limit: b.Len(), base: base}
}

// Pos returns the cursor position in bits relative to the start of this reader.
func (r *Reader) Pos() int { return r.pos }

// Base returns the absolute bit offset of this reader's first bit.
func (r *Reader) Base() int { return r.base }

// Offset returns the absolute cursor position in bits.
func (r *Reader) Offset() int { return r.base + r.pos }

// Pulled returns how many bytes have been obtained from the source so far.
func (r *Reader) Pulled() int { return len(r.buf) }

// Seek moves the cursor to a previously reachable position.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.buf)*8 || (r.limit >= 0 && pos > r.limit) {
		return fmt.Errorf("%w: %d", ErrSeek, pos)
	}
	r.pos = pos
	return nil
}

// Consumed returns the bytes between the start of the reader and the cursor,
// rounded up to a whole byte.
func (r *Reader) Consumed() []byte {
	n := (r.pos + 7) / 8
	out := make([]byte, n)
	copy(out, r.buf[:n])
	return out
}

// Buffered returns every byte obtained from the source so far, whether or
// not the cursor has passed it.
func (r *Reader) Buffered() []byte {
	out := make([]byte, len(r.buf))
	copy(out, r.buf)
	return out
}

// Ensure reports whether width more bits are available after the cursor,
// pulling from the source as needed. It returns an error only for source
// failures other than end of input.
func (r *Reader) Ensure(width int) (bool, error) {
	need := r.pos + width
	for len(r.buf)*8 < need && r.limit < 0 {
		if err := r.pull(); err != nil {
			return false, err
		}
	}
	if r.limit >= 0 && need > r.limit {
		return false, nil
	}
	return len(r.buf)*8 >= need, nil
}

// ReadBits reads width (at most 64) bits as an unsigned integer, MSB first.
func (r *Reader) ReadBits(width int) (uint64, error) {
	if width < 0 || width > 64 {
		return 0, fmt.Errorf("invalid bit width %d", width)
	}
	ok, err := r.Ensure(width)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrShort
	}
	var v uint64
	for i := 0; i < width; i++ {
		p := r.pos + i
		bit := (r.buf[p/8] >> uint(7-p%8)) & 1
		v = v<<1 | uint64(bit)
	}
	r.pos += width
	return v, nil
}

// ReadBytes reads n whole bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b, err := r.ReadN(n * 8)
	if err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// ReadN reads exactly n bits.
func (r *Reader) ReadN(n int) (Bits, error) {
	if n < 0 || n > math.MaxInt-r.pos {
		return Bits{}, fmt.Errorf("invalid bit count %d", n)
	}
	ok, err := r.Ensure(n)
	if err != nil {
		return Bits{}, err
	}
	if !ok {
		return Bits{}, ErrShort
	}
	if r.pos%8 == 0 {
		start := r.pos / 8
		out := make([]byte, (n+7)/8)
		copy(out, r.buf[start:])
		if rem := n % 8; rem > 0 {
			out[len(out)-1] &= 0xff << uint(8-rem)
		}
		r.pos += n
		return Bits{data: out, n: n}, nil
	}
	var w Writer
	for n > 0 {
		width := min(n, 64)
		v, err := r.ReadBits(width)
		if err != nil {
			return Bits{}, err
		}
		w.WriteBits(v, width)
		n -= width
	}
	return w.Bits(), nil
}

// ReadRemaining reads every bit up to the end of the source.
func (r *Reader) ReadRemaining() (Bits, error) {
	for r.limit < 0 {
		if err := r.pull(); err != nil {
			return Bits{}, err
		}
	}
	return r.ReadN(r.limit - r.pos)
}

// Remaining returns the number of unread bits, pulling the source to its end.
func (r *Reader) Remaining() (int, error) {
	for r.limit < 0 {
		if err := r.pull(); err != nil {
			return 0, err
		}
	}
	return r.limit - r.pos, nil
}

// AtEnd reports whether no bits remain after the cursor.
func (r *Reader) AtEnd() (bool, error) {
	ok, err := r.Ensure(1)
	return !ok, err
}

func (r *Reader) pull() error {
	if r.err != nil {
		return r.err
	}
	chunk := make([]byte, chunkSize)
	n, err := r.src.Read(chunk)
	r.buf = append(r.buf, chunk[:n]...)
	if err == io.EOF {
		r.limit = len(r.buf) * 8
		return nil
	}
	if err != nil {
		r.err = err
		return err
	}
	return nil
}
