package runtime

import (
	"fmt"
	"maps"

	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/model"
	"github.com/aretw0/crackle/pkg/slurp"
)

// Models holds the compiled data models of a StateModel keyed by
// "<state>.<action>.<model>". One instance belongs to one iteration.
type Models map[string]*model.Tree

// ModelKey returns the key of a model definition bound to an action.
func ModelKey(state, action string, def *model.Def) string {
	return state + "." + action + "." + def.Name
}

// CompileModels compiles every model bound to the actions of sm.
func CompileModels(sm *domain.StateModel) (Models, error) {
	out := make(Models)
	for _, st := range sm.States {
		for _, a := range st.Actions {
			for _, def := range a.Models() {
				key := ModelKey(st.Name, a.Name, def)
				if _, dup := out[key]; dup {
					return nil, &domain.ConfigError{Path: key, Err: fmt.Errorf("%w: model", domain.ErrDuplicateName)}
				}
				tree, err := model.Compile(def)
				if err != nil {
					return nil, &domain.ConfigError{Path: key, Err: err}
				}
				out[key] = tree
			}
		}
	}
	return out, nil
}

// Clone returns private copies of every model for one iteration.
func (m Models) Clone() Models {
	out := make(Models, len(m))
	for k, t := range m {
		out[k] = t.Clone()
	}
	return out
}

// Keys returns the model keys in no particular order.
func (m Models) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range maps.Keys(m) {
		keys = append(keys, k)
	}
	return keys
}

func (m Models) tree(state string, a *domain.Action, def *model.Def) (*model.Tree, error) {
	key := ModelKey(state, a.Name, def)
	t, ok := m[key]
	if !ok {
		return nil, &domain.ConfigError{Path: key, Err: fmt.Errorf("%w: model not compiled", domain.ErrInvalidAction)}
	}
	return t, nil
}

// scope builds the slurp view of the iteration's models.
func (m Models) scope(sm *domain.StateModel) *slurp.Scope {
	sc := slurp.NewScope()
	for _, st := range sm.States {
		for _, a := range st.Actions {
			for _, def := range a.Models() {
				if t, ok := m[ModelKey(st.Name, a.Name, def)]; ok {
					sc.Add(slurp.Model{State: st.Name, Action: a.Name, Tree: t})
				}
			}
		}
	}
	return sc
}
