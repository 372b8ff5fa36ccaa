package cracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/aretw0/crackle/pkg/bits"
	"github.com/aretw0/crackle/pkg/model"
)

// DefaultMaxOccurrences caps how many occurrences a single array may crack.
const DefaultMaxOccurrences = 1 << 16

// Result describes the input used by a crack.
type Result struct {
	// Consumed is exactly the byte range the model was cracked from.
	Consumed []byte
	// Received holds every byte pulled from the source, including bytes
	// read ahead of the cursor.
	Received []byte
	// Bits is the consumed length in bits.
	Bits int
}

// Option configures a crack.
type Option func(*cracker)

// WithBestEffort tolerates unconsumed bytes inside size-bounded regions.
func WithBestEffort() Option {
	return func(c *cracker) { c.bestEffort = true }
}

// WithLogger sets the logger for crack diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *cracker) { c.logger = logger }
}

// WithMaxOccurrences limits the occurrences of any single array.
func WithMaxOccurrences(n int) Option {
	return func(c *cracker) { c.maxOccurs = n }
}

type cracker struct {
	ctx        context.Context
	tree       *model.Tree
	bestEffort bool
	maxOccurs  int
	logger     *slog.Logger

	starts map[model.ID]int
	done   map[model.ID]bool
}

// Crack parses src into tree, depth-first in declared order. Bytes are pulled
// from src only as far as the model requires.
//
// The Result is returned even on failure so callers can inspect what was
// received. Grammar mismatches are reported as *Error; failures of src itself
// are returned wrapped as they are.
func Crack(ctx context.Context, tree *model.Tree, src io.Reader, opts ...Option) (*Result, error) {
	c := &cracker{
		ctx:       ctx,
		tree:      tree,
		maxOccurs: DefaultMaxOccurrences,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		starts:    make(map[model.ID]int),
		done:      make(map[model.ID]bool),
	}
	for _, opt := range opts {
		opt(c)
	}

	rd := bits.NewReader(src)
	err := c.crack(tree.Root(), rd)
	res := &Result{Consumed: rd.Consumed(), Received: rd.Buffered(), Bits: rd.Pos()}
	if err != nil {
		c.logger.Debug("crack failed", "model", tree.Name(), "received", len(res.Received), "err", err)
		return res, err
	}
	c.logger.Debug("model cracked", "model", tree.Name(), "bytes", len(res.Consumed))
	return res, nil
}

// Bytes cracks a complete buffer.
func Bytes(ctx context.Context, tree *model.Tree, data []byte, opts ...Option) (*Result, error) {
	return Crack(ctx, tree, bytes.NewReader(data), opts...)
}

// IsFailure reports whether err is a grammar mismatch rather than a source,
// context or model configuration failure.
func IsFailure(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

func (c *cracker) crack(id model.ID, r *bits.Reader) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	if gov, rel := c.governor(id, model.RelationOffset); rel != nil {
		if err := c.seek(id, gov, rel, r); err != nil {
			return err
		}
	}
	c.starts[id] = r.Offset()

	var err error
	if gov, rel := c.governor(id, model.RelationSize); rel != nil {
		err = c.crackSized(id, gov, rel, r)
	} else {
		err = c.crackContent(id, r)
	}
	if err != nil {
		return err
	}
	c.done[id] = true
	return nil
}

// governor returns an already cracked field governing id with a relation of kind.
func (c *cracker) governor(id model.ID, kind model.RelationKind) (model.ID, *model.Relation) {
	for _, g := range c.tree.Governors(id) {
		if rel := c.tree.Relation(g); rel != nil && rel.Kind == kind && c.done[g] {
			return g, rel
		}
	}
	return model.NoID, nil
}

func (c *cracker) measure(gov model.ID, rel *model.Relation) (int64, error) {
	raw, err := c.tree.Value(gov).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("%w: '%s': %v", ErrInvalidLength, c.tree.Path(gov), err)
	}
	m, err := rel.FieldToMeasure(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: '%s': %v", ErrInvalidLength, c.tree.Path(gov), err)
	}
	if m < 0 {
		return 0, fmt.Errorf("%w: '%s' measures %d", ErrInvalidLength, c.tree.Path(gov), m)
	}
	return m, nil
}

func (c *cracker) fail(id model.ID, offset int, err error) error {
	return &Error{Path: c.tree.Path(id), Offset: offset / 8, Err: err}
}

func (c *cracker) readErr(id model.ID, offset int, err error) error {
	if errors.Is(err, bits.ErrShort) {
		return c.fail(id, offset, ErrInsufficientData)
	}
	return fmt.Errorf("reading '%s' at offset %d: %w", c.tree.Path(id), offset/8, err)
}

func (c *cracker) seek(id, gov model.ID, rel *model.Relation, r *bits.Reader) error {
	m, err := c.measure(gov, rel)
	if err != nil {
		return c.fail(id, r.Offset(), err)
	}
	target, err := toBits(m, rel, r)
	if err != nil {
		return c.fail(id, r.Offset(), fmt.Errorf("%w: '%s': %v", ErrInvalidLength, c.tree.Path(gov), err))
	}
	if rel.Anchor != model.NoID {
		base, ok := c.starts[rel.Anchor]
		if !ok {
			return c.fail(id, r.Offset(), fmt.Errorf("%w: anchor '%s' not reached", ErrInvalidLength, c.tree.Path(rel.Anchor)))
		}
		target += base
	}
	gap := target - r.Offset()
	if gap < 0 {
		return c.fail(id, r.Offset(), fmt.Errorf("%w: %d bits back", ErrBackwardSeek, -gap))
	}
	if gap > 0 {
		if _, err := r.ReadN(gap); err != nil {
			return c.readErr(id, r.Offset(), err)
		}
	}
	return nil
}

// toBits converts a measurement to bits, rejecting values that would
// overflow a stream position after r's cursor.
func toBits(m int64, rel *model.Relation, r *bits.Reader) (int, error) {
	limit := int64(math.MaxInt - r.Offset())
	if !rel.InBits {
		limit /= 8
	}
	if m > limit {
		return 0, fmt.Errorf("measurement %d out of range", m)
	}
	if rel.InBits {
		return int(m), nil
	}
	return int(m) * 8, nil
}

func (c *cracker) crackSized(id, gov model.ID, rel *model.Relation, r *bits.Reader) error {
	start := r.Offset()
	m, err := c.measure(gov, rel)
	if err != nil {
		return c.fail(id, start, err)
	}
	n, err := toBits(m, rel, r)
	if err != nil {
		return c.fail(id, start, fmt.Errorf("%w: '%s': %v", ErrInvalidLength, c.tree.Path(gov), err))
	}
	slice, err := r.ReadN(n)
	if err != nil {
		return c.readErr(id, start, err)
	}
	sub := bits.NewBitsReader(slice, start)
	if err := c.crackContent(id, sub); err != nil {
		return err
	}
	return c.checkDrained(id, sub)
}

func (c *cracker) checkDrained(id model.ID, r *bits.Reader) error {
	if c.bestEffort {
		return nil
	}
	left, err := r.Remaining()
	if err != nil {
		return err
	}
	if left > 0 {
		return c.fail(id, r.Offset(), fmt.Errorf("%w: %d bits", ErrTrailingData, left))
	}
	return nil
}

func (c *cracker) crackContent(id model.ID, r *bits.Reader) error {
	trs := c.tree.Transformers(id)
	if len(trs) == 0 {
		return c.crackPlain(id, r)
	}

	start := r.Offset()
	raw, err := r.ReadRemaining()
	if err != nil {
		return c.readErr(id, start, err)
	}
	data := raw.Bytes()
	for i := len(trs) - 1; i >= 0; i-- {
		data, err = trs[i].Decode(data)
		if err != nil {
			return c.fail(id, start, fmt.Errorf("transformer %s: %w", trs[i].Name(), err))
		}
	}
	sub := bits.NewBitsReader(bits.FromBytes(data), start)
	if err := c.crackPlain(id, sub); err != nil {
		return err
	}
	return c.checkDrained(id, sub)
}

func (c *cracker) crackPlain(id model.ID, r *bits.Reader) error {
	switch c.tree.Kind(id) {
	case model.KindBlock:
		for _, child := range c.tree.Children(id) {
			if err := c.crack(child, r); err != nil {
				return err
			}
		}
		return nil
	case model.KindChoice:
		return c.crackChoice(id, r)
	case model.KindArray:
		return c.crackArray(id, r)
	default:
		return c.crackLeaf(id, r)
	}
}

func (c *cracker) crackLeaf(id model.ID, r *bits.Reader) error {
	t := c.tree
	start := r.Offset()

	if t.IsToken(id) {
		want, err := t.Encode(id, t.Value(id))
		if err != nil {
			return err
		}
		got, err := r.ReadN(want.Len())
		if err != nil {
			return c.readErr(id, start, err)
		}
		if !got.Equal(want) {
			return c.fail(id, start, fmt.Errorf("%w: got %s, want %s", ErrTokenMismatch, got, want))
		}
		return nil
	}

	var v model.Value
	switch t.Kind(id) {
	case model.KindNumber:
		raw, err := r.ReadBits(t.Bits(id))
		if err != nil {
			return c.readErr(id, start, err)
		}
		v = model.DecodeNumber(raw, t.Bits(id), t.IsSigned(id), t.Endian(id))
	case model.KindString:
		data, err := c.readContent(id, r)
		if err != nil {
			return c.readErr(id, start, err)
		}
		v = model.String(string(data))
	case model.KindBlob:
		data, err := c.readContent(id, r)
		if err != nil {
			return c.readErr(id, start, err)
		}
		v = model.Bytes(data)
	}
	t.SetValue(id, v)
	return nil
}

func (c *cracker) readContent(id model.ID, r *bits.Reader) ([]byte, error) {
	if n := c.tree.FixedLength(id); n >= 0 {
		return r.ReadBytes(n)
	}
	if c.tree.NullTerminated(id) {
		var out []byte
		for {
			b, err := r.ReadBits(8)
			if err != nil {
				return nil, err
			}
			if b == 0 {
				return out, nil
			}
			out = append(out, byte(b))
		}
	}
	rest, err := r.ReadRemaining()
	if err != nil {
		return nil, err
	}
	return rest.Bytes(), nil
}

func (c *cracker) crackChoice(id model.ID, r *bits.Reader) error {
	start := r.Pos()
	var errs []error
	for _, cand := range c.tree.Children(id) {
		err := c.crack(cand, r)
		if err == nil {
			return c.tree.Select(id, cand)
		}
		if !IsFailure(err) {
			return err
		}
		c.logger.Debug("choice candidate rejected", "candidate", c.tree.Path(cand), "err", err)
		errs = append(errs, err)
		if err := r.Seek(start); err != nil {
			return err
		}
	}
	return c.fail(id, r.Base()+start, fmt.Errorf("%w: %w", ErrNoCandidate, errors.Join(errs...)))
}

func (c *cracker) crackArray(id model.ID, r *bits.Reader) error {
	t := c.tree
	minOccurs, maxOccurs := t.Occurs(id)

	if gov, rel := c.governor(id, model.RelationCount); rel != nil {
		m, err := c.measure(gov, rel)
		if err != nil {
			return c.fail(id, r.Offset(), err)
		}
		if m > int64(c.maxOccurs) {
			return c.fail(id, r.Offset(), fmt.Errorf("%w: %d occurrences exceed limit %d", ErrInvalidLength, m, c.maxOccurs))
		}
		if err := t.Resize(id, int(m)); err != nil {
			return err
		}
		for _, inst := range t.Children(id) {
			if err := c.crack(inst, r); err != nil {
				return err
			}
		}
		return nil
	}

	if err := t.Resize(id, 0); err != nil {
		return err
	}
	var last error
	for count := 0; maxOccurs < 0 || count < maxOccurs; count++ {
		if count >= c.maxOccurs {
			break
		}
		end, err := r.AtEnd()
		if err != nil {
			return c.readErr(id, r.Offset(), err)
		}
		if end {
			break
		}
		start := r.Pos()
		inst := t.AppendOccurrence(id)
		if err := c.crack(inst, r); err != nil {
			if !IsFailure(err) {
				return err
			}
			last = err
			if err := r.Seek(start); err != nil {
				return err
			}
			if err := t.Resize(id, count); err != nil {
				return err
			}
			break
		}
		if r.Pos() == start {
			break
		}
	}

	if n := len(t.Children(id)); n < minOccurs {
		err := fmt.Errorf("%w: %d of minimum %d", ErrOccurrences, n, minOccurs)
		if last != nil {
			err = fmt.Errorf("%w: %w", err, last)
		}
		return c.fail(id, r.Offset(), err)
	}
	return nil
}
