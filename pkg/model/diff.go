package model

// ChangeKind tells what a Change altered.
type ChangeKind string

const (
	ChangeValue    ChangeKind = "value"
	ChangeOverride ChangeKind = "override"
	ChangeSelect   ChangeKind = "select"
	ChangeResize   ChangeKind = "resize"
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
)

// Change is one difference between two trees of the same definition.
type Change struct {
	Path   string     `json:"path"`
	Kind   ChangeKind `json:"kind"`
	Before Value      `json:"before"`
	After  Value      `json:"after"`
}

type snapshot struct {
	value      Value
	override   Value
	overridden bool
	selected   string
	count      int
}

func (t *Tree) snapshot() (map[string]snapshot, []string) {
	out := make(map[string]snapshot, len(t.nodes))
	var order []string
	t.Walk(func(id ID) bool {
		n := &t.nodes[id]
		s := snapshot{value: n.value, override: n.override, overridden: n.overridden}
		switch n.kind {
		case KindChoice:
			if sel := t.Selected(id); sel != NoID {
				s.selected = t.nodes[sel].name
			}
		case KindArray:
			s.count = len(n.children)
		}
		p := t.Path(id)
		out[p] = s
		order = append(order, p)
		return true
	})
	return out, order
}

// Diff lists what differs between before and after, typically a pristine
// clone and the same clone after mutation. Paths follow after's declared
// order; removed elements come last.
func Diff(before, after *Tree) []Change {
	if before == nil || after == nil {
		return nil
	}
	old, oldOrder := before.snapshot()
	cur, order := after.snapshot()

	var changes []Change
	for _, p := range order {
		n := cur[p]
		o, ok := old[p]
		if !ok {
			changes = append(changes, Change{Path: p, Kind: ChangeAdded, After: n.value})
			continue
		}
		if !o.value.Equal(n.value) {
			changes = append(changes, Change{Path: p, Kind: ChangeValue, Before: o.value, After: n.value})
		}
		if n.overridden && (!o.overridden || !o.override.Equal(n.override)) {
			changes = append(changes, Change{Path: p, Kind: ChangeOverride, Before: o.override, After: n.override})
		}
		if o.selected != n.selected {
			changes = append(changes, Change{Path: p, Kind: ChangeSelect, Before: String(o.selected), After: String(n.selected)})
		}
		if o.count != n.count {
			changes = append(changes, Change{Path: p, Kind: ChangeResize, Before: Int(int64(o.count)), After: Int(int64(n.count))})
		}
	}
	for _, p := range oldOrder {
		if _, ok := cur[p]; !ok {
			changes = append(changes, Change{Path: p, Kind: ChangeRemoved, Before: old[p].value})
		}
	}
	return changes
}

// String renders the change as "path kind: before -> after".
func (c Change) String() string {
	switch c.Kind {
	case ChangeAdded:
		return c.Path + " added"
	case ChangeRemoved:
		return c.Path + " removed"
	}
	return c.Path + " " + string(c.Kind) + ": " + c.Before.String() + " -> " + c.After.String()
}
