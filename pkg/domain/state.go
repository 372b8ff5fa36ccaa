package domain

// State is a named ordered list of actions.
type State struct {
	Name    string
	Actions []Action
}

// StateModel is a named collection of states with one initial state.
type StateModel struct {
	Name    string
	Initial string
	States  []State
}

// State returns the state called name.
func (sm *StateModel) State(name string) (*State, bool) {
	for i := range sm.States {
		if sm.States[i].Name == name {
			return &sm.States[i], true
		}
	}
	return nil, false
}
