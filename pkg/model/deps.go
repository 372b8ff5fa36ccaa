package model

import (
	"fmt"
	"slices"
	"strings"
)

// reindex rebuilds the relation and fixup back-reference indices.
func (t *Tree) reindex() {
	t.dependents = make(map[ID][]ID)
	t.governors = make(map[ID][]ID)
	t.offsetOwners = nil
	for id := range t.nodes {
		t.indexNode(ID(id))
	}
}

// register adds the back-references of a freshly instantiated subtree.
func (t *Tree) register(root ID) {
	var visit func(id ID)
	visit = func(id ID) {
		t.indexNode(id)
		n := &t.nodes[id]
		if n.template != NoID {
			visit(n.template)
		}
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(root)
}

func (t *Tree) indexNode(id ID) {
	n := &t.nodes[id]
	if r := n.rel; r != nil {
		t.dependents[r.Target] = append(t.dependents[r.Target], id)
		t.governors[r.Target] = append(t.governors[r.Target], id)
		if r.Anchor != NoID {
			t.dependents[r.Anchor] = append(t.dependents[r.Anchor], id)
		}
		if r.Kind == RelationOffset {
			t.offsetOwners = append(t.offsetOwners, id)
		}
	}
	if f := n.fixup; f != nil {
		for _, ref := range f.refs {
			t.dependents[ref] = append(t.dependents[ref], id)
		}
	}
}

// Dependency graph vertices: each element has a value aspect and a length
// aspect. Fixed-width leaves have lengths that do not depend on their value,
// which is what lets a size field sit inside the region it measures.
func valueVertex(id ID) int  { return int(id) * 2 }
func lengthVertex(id ID) int { return int(id)*2 + 1 }
func vertexID(v int) ID      { return ID(v / 2) }

func (t *Tree) dependencyGraph() [][]int {
	graph := make([][]int, len(t.nodes)*2)
	add := func(from, to int) { graph[from] = append(graph[from], to) }

	for i := range t.nodes {
		id := ID(i)
		n := &t.nodes[i]
		members := append([]ID(nil), n.children...)
		if n.template != NoID {
			members = append(members, n.template)
		}
		if n.kind.IsContainer() {
			for _, c := range members {
				add(valueVertex(id), valueVertex(c))
				if len(n.transformers) == 0 {
					add(lengthVertex(id), lengthVertex(c))
				}
			}
			if len(n.transformers) > 0 {
				add(lengthVertex(id), valueVertex(id))
			}
			continue
		}

		if len(n.transformers) > 0 || !n.fixedWidth() {
			add(lengthVertex(id), valueVertex(id))
		}
		if f := n.fixup; f != nil {
			for _, ref := range f.refs {
				add(valueVertex(id), valueVertex(ref))
			}
		}
		if r := n.rel; r != nil {
			switch r.Kind {
			case RelationSize:
				add(valueVertex(id), lengthVertex(r.Target))
			case RelationOffset:
				for _, p := range t.preceding(r.Target) {
					add(valueVertex(id), lengthVertex(p))
				}
				if r.Anchor != NoID {
					for _, p := range t.preceding(r.Anchor) {
						add(valueVertex(id), lengthVertex(p))
					}
				}
			}
		}
	}
	return graph
}

// preceding lists the elements serialized before id in document order,
// as the maximal subtrees that end before it.
func (t *Tree) preceding(id ID) []ID {
	var out []ID
	for cur := id; t.nodes[cur].parent != NoID; cur = t.nodes[cur].parent {
		parent := &t.nodes[t.nodes[cur].parent]
		if parent.kind == KindChoice {
			continue
		}
		for _, sib := range parent.children {
			if sib == cur {
				break
			}
			out = append(out, sib)
		}
	}
	return out
}

// checkCycles rejects models whose relations or fixups depend on themselves.
func (t *Tree) checkCycles() error {
	graph := t.dependencyGraph()
	for _, scc := range tarjanSCC(graph) {
		if len(scc) == 1 && !slices.Contains(graph[scc[0]], scc[0]) {
			continue
		}
		ids := make([]ID, 0, len(scc))
		for _, v := range scc {
			if id := vertexID(v); !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		slices.Sort(ids)
		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = t.Path(id)
		}
		return &ConfigError{
			Path: names[0],
			Err:  fmt.Errorf("%w: %s", ErrCycle, strings.Join(names, " -> ")),
		}
	}
	return nil
}

// tarjanSCC returns the strongly connected components of graph.
func tarjanSCC(graph [][]int) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make([]int, len(graph))
		lowlink = make([]int, len(graph))
		onStack = make([]bool, len(graph))
		sccs    [][]int
	)
	for i := range indices {
		indices[i] = -1
	}

	var strongConnect func(v int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if indices[w] < 0 {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for v := range graph {
		if indices[v] < 0 {
			strongConnect(v)
		}
	}
	return sccs
}
