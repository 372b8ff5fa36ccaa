package slurp

import (
	"strings"

	"github.com/aretw0/crackle/pkg/model"
)

// Model is a data model bound to an action of the running iteration.
type Model struct {
	State  string
	Action string
	Tree   *model.Tree
}

// Key identifies the model within its StateModel.
func (m Model) Key() string {
	return m.State + "." + m.Action + "." + m.Tree.Name()
}

// Element is one element of a bound model.
type Element struct {
	Model Model
	ID    model.ID
}

// Names returns the absolute path of the element as a name sequence.
func (e Element) Names() []string {
	return append([]string{e.Model.State, e.Model.Action}, strings.Split(e.Model.Tree.Path(e.ID), ".")...)
}

// Path returns the absolute path of the element.
func (e Element) Path() string { return JoinPath(e.Names()...) }

// Scope is the whole-model view of one iteration: every bound model, and
// which actions have already run.
type Scope struct {
	models   []Model
	executed map[string]bool
}

// NewScope creates a scope over the given models. No action has run yet.
func NewScope(models ...Model) *Scope {
	return &Scope{models: models, executed: make(map[string]bool)}
}

// Add binds another model.
func (s *Scope) Add(m Model) { s.models = append(s.models, m) }

// Models returns every bound model.
func (s *Scope) Models() []Model { return s.models }

// MarkExecuted puts the models of an action in scope.
func (s *Scope) MarkExecuted(state, action string) {
	s.executed[state+"/"+action] = true
}

// Executed reports whether the action has run in this iteration.
func (s *Scope) Executed(state, action string) bool {
	return s.executed[state+"/"+action]
}

// Select returns the elements matching sel in declared order. When
// inScope is set only models of executed actions are considered.
func (s *Scope) Select(sel Selector, inScope bool) []Element {
	var out []Element
	for _, m := range s.models {
		if inScope && !s.Executed(m.State, m.Action) {
			continue
		}
		m.Tree.Walk(func(id model.ID) bool {
			el := Element{Model: m, ID: id}
			if sel.Match(el.Names()) {
				out = append(out, el)
			}
			return true
		})
	}
	return out
}

// Resolve finds the element at an absolute path.
func (s *Scope) Resolve(path string) (Element, bool) {
	names := SplitPath(path)
	if len(names) < 3 {
		return Element{}, false
	}
	for _, m := range s.models {
		if m.State != names[0] || m.Action != names[1] || m.Tree.Name() != names[2] {
			continue
		}
		if id, ok := m.Tree.Find(strings.Join(names[2:], ".")); ok {
			return Element{Model: m, ID: id}, true
		}
	}
	return Element{}, false
}
