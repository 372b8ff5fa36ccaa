package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/crackle/pkg/bits"
)

// ID addresses an element inside its Tree's arena.
type ID int

// NoID is the absent element.
const NoID ID = -1

type fixupBinding struct {
	fixup Fixup
	refs  []ID
}

// node is one arena slot. Declarative fields are copied on Clone; the
// resolution caches at the end are reset.
type node struct {
	name     string
	kind     Kind
	parent   ID
	children []ID
	template ID
	selected int
	detached bool

	bits      int
	signed    bool
	endian    Endian
	length    int
	nullTerm  bool
	pad       byte
	token     bool
	minOccurs int
	maxOccurs int

	value        Value
	rel          *Relation
	fixup        *fixupBinding
	transformers []Transformer

	override   Value
	overridden bool

	typed   Value
	typedOK bool
	ser     bits.Bits
	serOK   bool
	busy    bool
	serBusy bool
}

// Tree is an element tree stored as an index-addressable arena.
//
// Relations and fixups hold IDs instead of references, so a Clone is a flat
// copy of the arena. A single Tree is not safe for concurrent use.
type Tree struct {
	nodes []node
	root  ID

	// dependents maps an element to the relation and fixup owners whose
	// measurement or computation reads it (or its subtree).
	dependents map[ID][]ID
	// governors maps a relation target to its governing fields.
	governors    map[ID][]ID
	offsetOwners []ID
}

// Compile builds a Tree from a definition, resolving every relation and
// fixup reference and rejecting dependency cycles.
func Compile(def *Def) (*Tree, error) {
	if def == nil {
		return nil, &ConfigError{Path: "", Err: fmt.Errorf("%w: nil definition", ErrInvalidDef)}
	}
	t := &Tree{}
	defs := map[ID]*Def{}
	root, err := t.build(def, NoID, defs)
	if err != nil {
		return nil, err
	}
	t.root = root

	for id, d := range defs {
		if err := t.bind(id, d); err != nil {
			return nil, err
		}
	}

	// Array occurrences are clones of the bound templates. Deeper arrays
	// come later in the arena, so walking backwards fills nested arrays
	// before their enclosing template is copied.
	for id := len(defs) - 1; id >= 0; id-- {
		if t.nodes[id].kind != KindArray || t.isTemplate(ID(id)) {
			continue
		}
		for i := 0; i < defs[ID(id)].Initial; i++ {
			t.appendInstance(ID(id))
		}
	}

	t.reindex()
	if err := t.checkCycles(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustCompile is Compile that panics on error. Intended for static models in tests and examples.
func MustCompile(def *Def) *Tree {
	t, err := Compile(def)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tree) build(d *Def, parent ID, defs map[ID]*Def) (ID, error) {
	if d.Name == "" {
		return NoID, &ConfigError{Path: t.pathOrEmpty(parent), Err: fmt.Errorf("%w: element without name", ErrInvalidDef)}
	}
	if strings.ContainsAny(d.Name, "./") {
		return NoID, &ConfigError{Path: d.Name, Err: fmt.Errorf("%w: name contains a path separator", ErrInvalidDef)}
	}
	id := ID(len(t.nodes))
	t.nodes = append(t.nodes, node{
		name:         d.Name,
		kind:         d.Kind,
		parent:       parent,
		template:     NoID,
		bits:         d.Bits,
		signed:       d.IsSigned,
		endian:       d.Endian,
		length:       d.Length,
		nullTerm:     d.NullTerminated,
		pad:          d.Pad,
		token:        d.IsToken,
		minOccurs:    d.MinOccurs,
		maxOccurs:    d.MaxOccurs,
		value:        d.Default,
		transformers: append([]Transformer(nil), d.Transformers...),
	})
	defs[id] = d

	if err := validateDef(d); err != nil {
		return NoID, &ConfigError{Path: t.Path(id), Err: err}
	}

	switch d.Kind {
	case KindArray:
		tpl, err := t.build(d.Children[0], id, defs)
		if err != nil {
			return NoID, err
		}
		t.nodes[id].template = tpl
	case KindBlock, KindChoice:
		seen := map[string]bool{}
		for _, c := range d.Children {
			if seen[c.Name] {
				return NoID, &ConfigError{Path: t.Path(id) + "." + c.Name, Err: ErrDuplicateName}
			}
			seen[c.Name] = true
			cid, err := t.build(c, id, defs)
			if err != nil {
				return NoID, err
			}
			t.nodes[id].children = append(t.nodes[id].children, cid)
		}
	}
	return id, nil
}

func validateDef(d *Def) error {
	switch d.Kind {
	case KindNumber:
		if d.Bits < 1 || d.Bits > 64 {
			return fmt.Errorf("%w: number width %d outside 1..64", ErrInvalidDef, d.Bits)
		}
		if d.Endian == LittleEndian && d.Bits%8 != 0 {
			return fmt.Errorf("%w: little endian number must be byte aligned", ErrInvalidDef)
		}
	case KindArray:
		if len(d.Children) != 1 {
			return fmt.Errorf("%w: array needs exactly one template", ErrInvalidDef)
		}
	case KindChoice:
		if len(d.Children) == 0 {
			return fmt.Errorf("%w: choice without candidates", ErrInvalidDef)
		}
	}
	if d.Kind.IsContainer() && (d.Relation != nil && d.Relation.Kind != 0) {
		return fmt.Errorf("%w: containers cannot govern relations", ErrInvalidDef)
	}
	if d.Relation != nil && d.Fixup != nil {
		return fmt.Errorf("%w: element has both a relation and a fixup", ErrInvalidDef)
	}
	return nil
}

func (t *Tree) bind(id ID, d *Def) error {
	n := &t.nodes[id]
	if r := d.Relation; r != nil {
		target, err := t.Lookup(id, r.Target)
		if err != nil {
			return &ConfigError{Path: t.Path(id), Err: err}
		}
		anchor := NoID
		if r.Anchor != "" {
			if r.Kind != RelationOffset {
				return &ConfigError{Path: t.Path(id), Err: fmt.Errorf("%w: anchor only applies to offset relations", ErrInvalidDef)}
			}
			anchor, err = t.Lookup(id, r.Anchor)
			if err != nil {
				return &ConfigError{Path: t.Path(id), Err: err}
			}
		}
		if r.Kind == RelationCount && t.nodes[target].kind != KindArray {
			return &ConfigError{Path: t.Path(id), Err: fmt.Errorf("%w: count relation target '%s' is not an array", ErrInvalidDef, t.Path(target))}
		}
		if n.kind != KindNumber && n.kind != KindString {
			return &ConfigError{Path: t.Path(id), Err: fmt.Errorf("%w: relation owner must be a number or string", ErrInvalidDef)}
		}
		n.rel = &Relation{Kind: r.Kind, Target: target, Anchor: anchor, InBits: r.InBits, Get: r.Get, Set: r.Set}
	}
	if f := d.Fixup; f != nil {
		if f.Fixup == nil {
			return &ConfigError{Path: t.Path(id), Err: fmt.Errorf("%w: nil fixup", ErrInvalidDef)}
		}
		refs := make([]ID, 0, len(f.Refs))
		for _, ref := range f.Refs {
			rid, err := t.Lookup(id, ref)
			if err != nil {
				return &ConfigError{Path: t.Path(id), Err: err}
			}
			refs = append(refs, rid)
		}
		n.fixup = &fixupBinding{fixup: f.Fixup, refs: refs}
	}
	return nil
}

// Clone returns a structural copy of the tree with fresh caches and no overrides.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		nodes: make([]node, len(t.nodes)),
		root:  t.root,
	}
	copy(c.nodes, t.nodes)
	for i := range c.nodes {
		n := &c.nodes[i]
		n.children = append([]ID(nil), n.children...)
		if n.rel != nil {
			rel := *n.rel
			n.rel = &rel
		}
		if n.fixup != nil {
			n.fixup = &fixupBinding{fixup: n.fixup.fixup, refs: append([]ID(nil), n.fixup.refs...)}
		}
		n.transformers = append([]Transformer(nil), n.transformers...)
		n.override, n.overridden = Nil, false
		n.resetCache()
	}
	c.reindex()
	return c
}

func (n *node) resetCache() {
	n.typed = Nil
	n.typedOK = false
	n.ser = bits.Bits{}
	n.serOK = false
	n.busy = false
	n.serBusy = false
}

// Root returns the root element.
func (t *Tree) Root() ID { return t.root }

// Name returns the model name, which is the root element's name.
func (t *Tree) Name() string { return t.nodes[t.root].name }

// Len returns the number of arena slots, including templates and detached elements.
func (t *Tree) Len() int { return len(t.nodes) }

// ElementName returns an element's own name.
func (t *Tree) ElementName(id ID) string { return t.nodes[id].name }

// Kind returns an element's kind.
func (t *Tree) Kind(id ID) Kind { return t.nodes[id].kind }

// Parent returns the parent element, or NoID for the root.
func (t *Tree) Parent(id ID) ID { return t.nodes[id].parent }

// Children returns the live children in declared order. For a choice these
// are its candidates; for an array, its occurrences.
func (t *Tree) Children(id ID) []ID { return append([]ID(nil), t.nodes[id].children...) }

// Template returns an array's template element.
func (t *Tree) Template(id ID) ID { return t.nodes[id].template }

// Relation returns the relation governed by id, if any.
func (t *Tree) Relation(id ID) *Relation { return t.nodes[id].rel }

// Governors returns the fields whose relations target id.
func (t *Tree) Governors(id ID) []ID { return t.governors[id] }

// Transformers returns the transformers attached to id, innermost first.
func (t *Tree) Transformers(id ID) []Transformer { return t.nodes[id].transformers }

// Value returns the authored value.
func (t *Tree) Value(id ID) Value { return t.nodes[id].value }

// IsToken reports whether the element must match its authored value when cracked.
func (t *Tree) IsToken(id ID) bool { return t.nodes[id].token }

// Bits returns a number's width.
func (t *Tree) Bits(id ID) int { return t.nodes[id].bits }

// IsSigned reports whether a number is signed.
func (t *Tree) IsSigned(id ID) bool { return t.nodes[id].signed }

// Endian returns a number's byte order.
func (t *Tree) Endian(id ID) Endian { return t.nodes[id].endian }

// FixedLength returns the fixed byte length of a string or blob, or -1.
func (t *Tree) FixedLength(id ID) int { return t.nodes[id].length }

// NullTerminated reports whether a string ends with a zero byte.
func (t *Tree) NullTerminated(id ID) bool { return t.nodes[id].nullTerm }

// Occurs returns an array's occurrence bounds.
func (t *Tree) Occurs(id ID) (int, int) { return t.nodes[id].minOccurs, t.nodes[id].maxOccurs }

// Selected returns the selected candidate of a choice.
func (t *Tree) Selected(id ID) ID {
	n := &t.nodes[id]
	if n.kind != KindChoice || len(n.children) == 0 {
		return NoID
	}
	return n.children[n.selected]
}

// Select makes candidate the active child of a choice.
func (t *Tree) Select(choice, candidate ID) error {
	n := &t.nodes[choice]
	if n.kind != KindChoice {
		return fmt.Errorf("%w: '%s' is not a choice", ErrInvalidDef, t.Path(choice))
	}
	for i, c := range n.children {
		if c == candidate {
			if n.selected != i {
				n.selected = i
				t.Invalidate(choice)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: '%s' is not a candidate of '%s'", ErrUnresolved, t.Path(candidate), t.Path(choice))
}

// Path returns the dotted name path from the root.
func (t *Tree) Path(id ID) string {
	if id == NoID {
		return ""
	}
	var parts []string
	for cur := id; cur != NoID; cur = t.nodes[cur].parent {
		parts = append(parts, t.nodes[cur].name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

func (t *Tree) pathOrEmpty(id ID) string {
	if id == NoID {
		return ""
	}
	return t.Path(id)
}

// Find resolves a dotted path starting with the root name.
func (t *Tree) Find(path string) (ID, bool) {
	segs := strings.Split(path, ".")
	if len(segs) == 0 || segs[0] != t.nodes[t.root].name {
		return NoID, false
	}
	cur := t.root
	for _, seg := range segs[1:] {
		next := t.child(cur, seg)
		if next == NoID {
			return NoID, false
		}
		cur = next
	}
	return cur, true
}

// Lookup resolves a dotted name path in the scope of from: the first
// segment is matched against from itself, then its children, then each
// ancestor and its children, nearest first.
func (t *Tree) Lookup(from ID, path string) (ID, error) {
	segs := strings.Split(path, ".")
	if path == "" {
		return NoID, fmt.Errorf("%w: empty path", ErrUnresolved)
	}
	start := NoID
	for cur := from; cur != NoID && start == NoID; cur = t.nodes[cur].parent {
		if t.nodes[cur].name == segs[0] {
			start = cur
			break
		}
		start = t.child(cur, segs[0])
	}
	if start == NoID {
		return NoID, fmt.Errorf("%w: '%s' from '%s'", ErrUnresolved, path, t.Path(from))
	}
	cur := start
	for _, seg := range segs[1:] {
		next := t.child(cur, seg)
		if next == NoID {
			return NoID, fmt.Errorf("%w: '%s' from '%s'", ErrUnresolved, path, t.Path(from))
		}
		cur = next
	}
	return cur, nil
}

func (t *Tree) child(parent ID, name string) ID {
	for _, c := range t.nodes[parent].children {
		if t.nodes[c].name == name {
			return c
		}
	}
	return NoID
}

func (t *Tree) isTemplate(id ID) bool {
	p := t.nodes[id].parent
	return p != NoID && t.nodes[p].kind == KindArray && t.nodes[p].template == id
}

// Walk visits live elements depth-first in declared order. Unselected choice
// candidates are visited too; array templates are not.
func (t *Tree) Walk(fn func(id ID) bool) {
	var visit func(id ID) bool
	visit = func(id ID) bool {
		if !fn(id) {
			return false
		}
		for _, c := range t.nodes[id].children {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	visit(t.root)
}

// Resize sets the number of occurrences of an array, cloning the template
// for new occurrences and detaching surplus ones.
func (t *Tree) Resize(array ID, count int) error {
	n := &t.nodes[array]
	if n.kind != KindArray {
		return fmt.Errorf("%w: '%s' is not an array", ErrInvalidDef, t.Path(array))
	}
	if count < 0 {
		return fmt.Errorf("%w: negative occurrence count", ErrInvalidDef)
	}
	for len(t.nodes[array].children) > count {
		kids := t.nodes[array].children
		t.nodes[kids[len(kids)-1]].detached = true
		t.nodes[array].children = kids[:len(kids)-1]
	}
	for len(t.nodes[array].children) < count {
		inst := t.appendInstance(array)
		t.register(inst)
	}
	t.Invalidate(array)
	return nil
}

// AppendOccurrence adds one occurrence to an array and returns it.
func (t *Tree) AppendOccurrence(array ID) ID {
	inst := t.appendInstance(array)
	t.register(inst)
	t.Invalidate(array)
	return inst
}

// appendInstance clones the array template subtree into new arena slots,
// remapping references internal to the subtree.
func (t *Tree) appendInstance(array ID) ID {
	tpl := t.nodes[array].template
	index := len(t.nodes[array].children)
	remap := map[ID]ID{}
	var copySubtree func(src, parent ID) ID
	copySubtree = func(src, parent ID) ID {
		id := ID(len(t.nodes))
		n := t.nodes[src]
		n.parent = parent
		n.children = nil
		n.resetCache()
		t.nodes = append(t.nodes, n)
		remap[src] = id
		if n.kind == KindArray {
			t.nodes[id].template = copySubtree(t.nodes[src].template, id)
		}
		for _, c := range t.nodes[src].children {
			cid := copySubtree(c, id)
			t.nodes[id].children = append(t.nodes[id].children, cid)
		}
		return id
	}
	inst := copySubtree(tpl, array)
	t.nodes[inst].name = t.nodes[tpl].name + "_" + strconv.Itoa(index)

	mapID := func(id ID) ID {
		if m, ok := remap[id]; ok {
			return m
		}
		return id
	}
	for _, id := range remap {
		n := &t.nodes[id]
		if n.rel != nil {
			rel := *n.rel
			rel.Target = mapID(rel.Target)
			if rel.Anchor != NoID {
				rel.Anchor = mapID(rel.Anchor)
			}
			n.rel = &rel
		}
		if n.fixup != nil {
			refs := make([]ID, len(n.fixup.refs))
			for i, r := range n.fixup.refs {
				refs[i] = mapID(r)
			}
			n.fixup = &fixupBinding{fixup: n.fixup.fixup, refs: refs}
		}
		n.transformers = append([]Transformer(nil), n.transformers...)
	}
	t.nodes[array].children = append(t.nodes[array].children, inst)
	return inst
}
