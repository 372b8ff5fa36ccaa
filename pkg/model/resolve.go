package model

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/aretw0/crackle/pkg/bits"
)

func (n *node) fixedWidth() bool {
	switch n.kind {
	case KindNumber:
		return true
	case KindString, KindBlob:
		return n.length >= 0
	default:
		return false
	}
}

// live returns the children that take part in serialization.
func (t *Tree) live(id ID) []ID {
	n := &t.nodes[id]
	if n.kind == KindChoice {
		if len(n.children) == 0 {
			return nil
		}
		return n.children[n.selected : n.selected+1]
	}
	return n.children
}

// TypedValue returns the element's effective value. In order of precedence:
// an external override, the fixup result, the relation measurement, the
// authored value. For containers it is the serialized content as bytes.
func (t *Tree) TypedValue(id ID) (Value, error) {
	n := &t.nodes[id]
	if n.overridden {
		return n.override, nil
	}
	if n.typedOK {
		return n.typed, nil
	}
	if n.kind.IsContainer() {
		b, err := t.SerializedValue(id)
		if err != nil {
			return Nil, err
		}
		n.typed, n.typedOK = Bytes(b.Bytes()), true
		return n.typed, nil
	}
	if n.busy {
		return Nil, &ConfigError{Path: t.Path(id), Err: fmt.Errorf("%w: value depends on itself", ErrCycle)}
	}
	n.busy = true
	defer func() { n.busy = false }()

	var (
		v   Value
		err error
	)
	switch {
	case n.fixup != nil:
		v, err = n.fixup.fixup.Fix(t, n.fixup.refs)
		if err != nil && !isModelError(err) {
			err = fmt.Errorf("fixup %s at '%s': %w", n.fixup.fixup.Name(), t.Path(id), err)
		}
	case n.rel != nil:
		v, err = t.relationValue(id)
	default:
		v = n.value
	}
	if err != nil {
		return Nil, err
	}
	n.typed, n.typedOK = v, true
	return v, nil
}

func isModelError(err error) bool {
	var ce *ConfigError
	var conv *ConversionError
	return errors.As(err, &ce) || errors.As(err, &conv)
}

func (t *Tree) relationValue(id ID) (Value, error) {
	n := &t.nodes[id]
	m, err := t.Measure(id)
	if err != nil {
		return Nil, err
	}
	field, err := n.rel.MeasureToField(m)
	if err != nil {
		return Nil, &ConversionError{Path: t.Path(id), Value: Int(m), Err: err}
	}
	if n.kind == KindString {
		return String(strconv.FormatInt(field, 10)), nil
	}
	if n.signed {
		return Int(field), nil
	}
	if field < 0 {
		return Nil, &ConversionError{Path: t.Path(id), Value: Int(field), Err: ErrOutOfRange}
	}
	return Uint(uint64(field)), nil
}

// Measure returns the current measurement of the relation governed by id:
// the target's size, its occurrence count or its offset.
func (t *Tree) Measure(id ID) (int64, error) {
	r := t.nodes[id].rel
	if r == nil {
		return 0, fmt.Errorf("%w: '%s' governs no relation", ErrUnresolved, t.Path(id))
	}
	switch r.Kind {
	case RelationCount:
		return int64(len(t.nodes[r.Target].children)), nil
	case RelationSize:
		l, err := t.Length(r.Target)
		if err != nil {
			return 0, err
		}
		if r.InBits {
			return int64(l), nil
		}
		return int64((l + 7) / 8), nil
	case RelationOffset:
		pos, err := t.Position(r.Target)
		if err != nil {
			return 0, err
		}
		if r.Anchor != NoID {
			base, err := t.Position(r.Anchor)
			if err != nil {
				return 0, err
			}
			pos -= base
		}
		if r.InBits {
			return int64(pos), nil
		}
		return int64(pos / 8), nil
	default:
		return 0, &ConfigError{Path: t.Path(id), Err: fmt.Errorf("%w: unknown relation kind", ErrInvalidDef)}
	}
}

// Length returns the serialized length of an element in bits. Fixed width
// elements report their width without resolving their value.
func (t *Tree) Length(id ID) (int, error) {
	n := &t.nodes[id]
	if len(n.transformers) == 0 && !n.serOK {
		switch {
		case n.kind == KindNumber:
			return n.bits, nil
		case n.fixedWidth():
			return n.length * 8, nil
		case n.kind.IsContainer():
			total := 0
			for _, c := range t.live(id) {
				l, err := t.Length(c)
				if err != nil {
					return 0, err
				}
				total += l
			}
			return total, nil
		}
	}
	b, err := t.SerializedValue(id)
	if err != nil {
		return 0, err
	}
	return b.Len(), nil
}

// Position returns the bit offset of an element from the start of the
// serialized root.
func (t *Tree) Position(id ID) (int, error) {
	pos := 0
	for cur := id; t.nodes[cur].parent != NoID; cur = t.nodes[cur].parent {
		parent := t.nodes[cur].parent
		if t.nodes[parent].kind == KindChoice {
			continue
		}
		for _, sib := range t.nodes[parent].children {
			if sib == cur {
				break
			}
			l, err := t.Length(sib)
			if err != nil {
				return 0, err
			}
			pos += l
		}
	}
	return pos, nil
}

// SerializedValue returns the wire form of an element. Results are cached
// until the element or something it depends on is invalidated.
func (t *Tree) SerializedValue(id ID) (bits.Bits, error) {
	n := &t.nodes[id]
	if n.serOK {
		return n.ser, nil
	}
	if n.serBusy {
		return bits.Bits{}, &ConfigError{Path: t.Path(id), Err: fmt.Errorf("%w: serialization depends on itself", ErrCycle)}
	}
	n.serBusy = true
	defer func() { n.serBusy = false }()

	var out bits.Bits
	if n.kind.IsContainer() {
		var w bits.Writer
		for _, c := range t.live(id) {
			b, err := t.SerializedValue(c)
			if err != nil {
				return bits.Bits{}, err
			}
			w.Append(b)
		}
		out = w.Bits()
	} else {
		v, err := t.TypedValue(id)
		if err != nil {
			return bits.Bits{}, err
		}
		out, err = t.encodeLeaf(id, v)
		if err != nil {
			return bits.Bits{}, err
		}
	}

	if len(n.transformers) > 0 {
		data := out.Bytes()
		for _, tr := range n.transformers {
			var err error
			data, err = tr.Encode(data)
			if err != nil {
				return bits.Bits{}, &ConversionError{Path: t.Path(id), Value: Bytes(out.Bytes()), Err: fmt.Errorf("transformer %s: %w", tr.Name(), err)}
			}
		}
		out = bits.FromBytes(data)
	}

	n.ser, n.serOK = out, true
	return out, nil
}

// Serialize returns the bytes of the whole model.
func (t *Tree) Serialize() ([]byte, error) {
	b, err := t.SerializedValue(t.root)
	if err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Encode returns the wire form v would have as the content of leaf id,
// before any transformers apply.
func (t *Tree) Encode(id ID, v Value) (bits.Bits, error) {
	if t.nodes[id].kind.IsContainer() {
		return bits.Bits{}, fmt.Errorf("%w: '%s' is a container", ErrInvalidDef, t.Path(id))
	}
	return t.encodeLeaf(id, v)
}

func (t *Tree) encodeLeaf(id ID, v Value) (bits.Bits, error) {
	n := &t.nodes[id]
	if n.kind == KindNumber {
		raw, err := EncodeNumber(v, n.bits, n.signed, n.endian)
		if err != nil {
			return bits.Bits{}, &ConversionError{Path: t.Path(id), Value: v, Err: err}
		}
		var w bits.Writer
		w.WriteBits(raw, n.bits)
		return w.Bits(), nil
	}

	data := v.AsBytes()
	switch {
	case n.length >= 0:
		if len(data) > n.length {
			return bits.Bits{}, &ConversionError{
				Path:  t.Path(id),
				Value: v,
				Err:   fmt.Errorf("%w: %d bytes exceed fixed length %d", ErrOutOfRange, len(data), n.length),
			}
		}
		for len(data) < n.length {
			data = append(data, n.pad)
		}
	case n.nullTerm:
		data = append(data, 0)
	}
	return bits.FromBytes(data), nil
}

// EncodeNumber converts v to the raw bit pattern of a number with the given
// width, signedness and byte order. Range violations wrap ErrOutOfRange.
func EncodeNumber(v Value, width int, signed bool, endian Endian) (uint64, error) {
	mask := uint64(1)<<width - 1
	if width == 64 {
		mask = ^uint64(0)
	}
	var raw uint64
	if signed {
		x, err := v.AsInt64()
		if err != nil {
			return 0, err
		}
		if width < 64 {
			lo, hi := -(int64(1) << (width - 1)), int64(1)<<(width-1)-1
			if x < lo || x > hi {
				return 0, fmt.Errorf("%w: %d outside %d..%d", ErrOutOfRange, x, lo, hi)
			}
		}
		raw = uint64(x) & mask
	} else {
		x, err := v.AsUint64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrOutOfRange, err)
		}
		if x > mask {
			return 0, fmt.Errorf("%w: %d exceeds %d bits", ErrOutOfRange, x, width)
		}
		raw = x
	}
	if endian == LittleEndian {
		raw = swapBytes(raw, width/8)
	}
	return raw, nil
}

// DecodeNumber is the inverse of EncodeNumber.
func DecodeNumber(raw uint64, width int, signed bool, endian Endian) Value {
	if endian == LittleEndian {
		raw = swapBytes(raw, width/8)
	}
	if signed {
		if width < 64 && raw&(1<<(width-1)) != 0 {
			raw |= ^uint64(0) << width
		}
		return Int(int64(raw))
	}
	return Uint(raw)
}

func swapBytes(v uint64, n int) uint64 {
	var out uint64
	for i := 0; i < n; i++ {
		out = out<<8 | v&0xff
		v >>= 8
	}
	return out
}

// Invalidate clears any override on id and discards the cached results of
// id, its ancestors and every element whose relation or fixup reads them.
// Calling it twice has the same effect as calling it once.
func (t *Tree) Invalidate(id ID) {
	n := &t.nodes[id]
	n.overridden = false
	n.override = Nil
	t.invalidate(id, map[ID]bool{})
}

func (t *Tree) invalidate(id ID, seen map[ID]bool) {
	if seen[id] {
		return
	}
	seen[id] = true
	for cur := id; cur != NoID; cur = t.nodes[cur].parent {
		n := &t.nodes[cur]
		n.typed, n.typedOK = Nil, false
		n.ser, n.serOK = bits.Bits{}, false
		for _, d := range t.dependents[cur] {
			t.invalidate(d, seen)
		}
	}
	// Any length change can move an offset target.
	for _, o := range t.offsetOwners {
		t.invalidate(o, seen)
	}
}

// SetValue replaces the authored value of an element.
func (t *Tree) SetValue(id ID, v Value) {
	t.nodes[id].value = v
	t.Invalidate(id)
}

// SetTypedValue overrides the effective value of an element, taking
// precedence over its fixup or relation. The override survives invalidation
// propagated from other elements and is cleared by Invalidate(id), SetValue
// or ClearOverride.
func (t *Tree) SetTypedValue(id ID, v Value) {
	n := &t.nodes[id]
	n.override = v
	n.overridden = true
	t.invalidate(id, map[ID]bool{})
}

// ClearOverride removes an override set with SetTypedValue.
func (t *Tree) ClearOverride(id ID) {
	if !t.nodes[id].overridden {
		return
	}
	t.Invalidate(id)
}

// IsOverridden reports whether id carries an external override.
func (t *Tree) IsOverridden(id ID) bool { return t.nodes[id].overridden }
