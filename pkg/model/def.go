package model

import "github.com/aretw0/crackle/pkg/bits"

// Kind identifies the element type.
type Kind uint8

const (
	KindBlock Kind = iota
	KindChoice
	KindArray
	KindNumber
	KindString
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindChoice:
		return "choice"
	case KindArray:
		return "array"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// IsContainer reports whether elements of this kind hold children.
func (k Kind) IsContainer() bool {
	return k == KindBlock || k == KindChoice || k == KindArray
}

// Endian selects the byte order of numbers.
type Endian uint8

const (
	BigEndian Endian = iota
	LittleEndian
)

// Resolver gives fixups read access to the tree being resolved.
type Resolver interface {
	TypedValue(id ID) (Value, error)
	SerializedValue(id ID) (bits.Bits, error)
	Path(id ID) string
}

// Fixup computes an element's value from other referenced elements.
type Fixup interface {
	Name() string
	Fix(r Resolver, refs []ID) (Value, error)
}

// Transformer is an invertible byte-stream function attached to an element.
type Transformer interface {
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// Def is the declarative definition of an element, as produced by a schema
// loader or the builder functions below. Relations and fixups refer to
// other elements by name path; Compile resolves them.
type Def struct {
	Name     string
	Kind     Kind
	Children []*Def

	Bits           int
	IsSigned       bool
	Endian         Endian
	Length         int // fixed byte length for strings and blobs, -1 when variable
	NullTerminated bool
	Pad            byte
	Default        Value
	IsToken        bool

	MinOccurs int
	MaxOccurs int // -1 for unbounded
	Initial   int

	Relation     *RelationDef
	Fixup        *FixupDef
	Transformers []Transformer
}

// RelationDef declares a relation from the defined (governing) element to Target.
type RelationDef struct {
	Kind   RelationKind
	Target string
	Anchor string
	InBits bool
	Get    Expression
	Set    Expression
}

// FixupDef declares a fixup and the paths of the elements it reads.
type FixupDef struct {
	Fixup Fixup
	Refs  []string
}

// RelationOption customizes a relation declaration.
type RelationOption func(*RelationDef)

// InBits measures sizes and offsets in bits instead of bytes.
func InBits() RelationOption {
	return func(r *RelationDef) { r.InBits = true }
}

// WithExpressions sets the get (field value to measurement) and set
// (measurement to field value) expressions.
func WithExpressions(get, set Expression) RelationOption {
	return func(r *RelationDef) {
		r.Get = get
		r.Set = set
	}
}

// RelativeTo measures an offset from the start of anchor instead of the stream start.
func RelativeTo(anchor string) RelationOption {
	return func(r *RelationDef) { r.Anchor = anchor }
}

// NewBlock declares a container whose children serialize in order.
func NewBlock(name string, children ...*Def) *Def {
	return &Def{Name: name, Kind: KindBlock, Children: children, Length: -1}
}

// NewChoice declares a container that holds exactly one of its candidates.
// The first candidate is selected until cracking or a mutator picks another.
func NewChoice(name string, candidates ...*Def) *Def {
	return &Def{Name: name, Kind: KindChoice, Children: candidates, Length: -1}
}

// NewArray declares a repeated element. The template is instantiated Initial times.
func NewArray(name string, template *Def) *Def {
	return &Def{Name: name, Kind: KindArray, Children: []*Def{template}, Length: -1, MaxOccurs: -1, Initial: 1}
}

// NewNumber declares an unsigned big-endian integer of the given bit width.
func NewNumber(name string, width int) *Def {
	return &Def{Name: name, Kind: KindNumber, Bits: width, Length: -1, Default: Uint(0)}
}

// NewString declares a variable length string.
func NewString(name string) *Def {
	return &Def{Name: name, Kind: KindString, Length: -1, Default: String("")}
}

// NewBlob declares a variable length byte sequence.
func NewBlob(name string) *Def {
	return &Def{Name: name, Kind: KindBlob, Length: -1, Default: Bytes(nil)}
}

// Value sets the authored default.
func (d *Def) Value(v any) *Def {
	d.Default = MustValue(v)
	return d
}

// Signed marks a number as two's complement.
func (d *Def) Signed() *Def {
	d.IsSigned = true
	return d
}

// Little switches a number to little-endian byte order.
func (d *Def) Little() *Def {
	d.Endian = LittleEndian
	return d
}

// Fixed sets a fixed byte length for strings and blobs.
func (d *Def) Fixed(n int) *Def {
	d.Length = n
	return d
}

// Padding sets the byte used to pad fixed length content.
func (d *Def) Padding(b byte) *Def {
	d.Pad = b
	return d
}

// Terminated marks a string as null terminated.
func (d *Def) Terminated() *Def {
	d.NullTerminated = true
	return d
}

// Token requires cracked content to equal the authored default.
func (d *Def) Token() *Def {
	d.IsToken = true
	return d
}

// Occurs bounds the number of array occurrences; max -1 is unbounded.
func (d *Def) Occurs(min, max int) *Def {
	d.MinOccurs = min
	d.MaxOccurs = max
	if d.Initial < min {
		d.Initial = min
	}
	if max >= 0 && d.Initial > max {
		d.Initial = max
	}
	return d
}

// Instances sets how many occurrences an array has before cracking or mutation.
func (d *Def) Instances(n int) *Def {
	d.Initial = n
	return d
}

// SizeOf makes the element's value the serialized size of target.
func (d *Def) SizeOf(target string, opts ...RelationOption) *Def {
	return d.relate(RelationSize, target, opts)
}

// CountOf makes the element's value the occurrence count of the target array.
func (d *Def) CountOf(target string, opts ...RelationOption) *Def {
	return d.relate(RelationCount, target, opts)
}

// OffsetOf makes the element's value the position of target.
func (d *Def) OffsetOf(target string, opts ...RelationOption) *Def {
	return d.relate(RelationOffset, target, opts)
}

// Fix attaches a fixup computed from the referenced elements.
func (d *Def) Fix(f Fixup, refs ...string) *Def {
	d.Fixup = &FixupDef{Fixup: f, Refs: refs}
	return d
}

// Transform attaches transformers; the first is innermost.
func (d *Def) Transform(ts ...Transformer) *Def {
	d.Transformers = append(d.Transformers, ts...)
	return d
}

func (d *Def) relate(kind RelationKind, target string, opts []RelationOption) *Def {
	rel := &RelationDef{Kind: kind, Target: target}
	for _, opt := range opts {
		opt(rel)
	}
	d.Relation = rel
	return d
}
