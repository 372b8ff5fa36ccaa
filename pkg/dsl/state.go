package dsl

import (
	"time"

	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/model"
)

// StateBuilder provides a fluent API for appending actions to a state.
type StateBuilder struct {
	state   domain.State
	builder *Builder
}

func (s *StateBuilder) add(a domain.Action) *StateBuilder {
	s.state.Actions = append(s.state.Actions, a)
	return s
}

func (s *StateBuilder) last() *domain.Action {
	if len(s.state.Actions) == 0 {
		return nil
	}
	return &s.state.Actions[len(s.state.Actions)-1]
}

// Start starts the endpoint.
func (s *StateBuilder) Start(name string) *StateBuilder {
	return s.add(domain.Action{Name: name, Type: domain.ActionStart})
}

// Stop stops the endpoint.
func (s *StateBuilder) Stop(name string) *StateBuilder {
	return s.add(domain.Action{Name: name, Type: domain.ActionStop})
}

// Open opens the endpoint.
func (s *StateBuilder) Open(name string) *StateBuilder {
	return s.add(domain.Action{Name: name, Type: domain.ActionOpen})
}

// Close closes the endpoint.
func (s *StateBuilder) Close(name string) *StateBuilder {
	return s.add(domain.Action{Name: name, Type: domain.ActionClose})
}

// Connect connects the endpoint to its peer.
func (s *StateBuilder) Connect(name string) *StateBuilder {
	return s.add(domain.Action{Name: name, Type: domain.ActionConnect})
}

// Accept waits for a peer.
func (s *StateBuilder) Accept(name string) *StateBuilder {
	return s.add(domain.Action{Name: name, Type: domain.ActionAccept})
}

// Output serializes def and sends it.
func (s *StateBuilder) Output(name string, def *model.Def) *StateBuilder {
	return s.add(domain.Action{Name: name, Type: domain.ActionOutput, Model: def})
}

// Input cracks received data into def.
func (s *StateBuilder) Input(name string, def *model.Def) *StateBuilder {
	return s.add(domain.Action{Name: name, Type: domain.ActionInput, Model: def})
}

// Call invokes method with the given parameters.
func (s *StateBuilder) Call(name, method string, params ...domain.Param) *StateBuilder {
	return s.add(domain.Action{Name: name, Type: domain.ActionCall, Method: method, Params: params})
}

// Returns sets the model the previous call's return value is cracked into.
func (s *StateBuilder) Returns(def *model.Def) *StateBuilder {
	if a := s.last(); a != nil {
		a.Result = def
	}
	return s
}

// GetProperty stores the endpoint property into element of def. An empty
// element selects the model root.
func (s *StateBuilder) GetProperty(name, property string, def *model.Def, element string) *StateBuilder {
	return s.add(domain.Action{Name: name, Type: domain.ActionGetProperty, Property: property, Model: def, Element: element})
}

// SetProperty sends the value of element of def as the endpoint property.
func (s *StateBuilder) SetProperty(name, property string, def *model.Def, element string) *StateBuilder {
	return s.add(domain.Action{Name: name, Type: domain.ActionSetProperty, Property: property, Model: def, Element: element})
}

// Slurp copies the value selected by source onto every element selected by
// sink. Consecutive calls with the same name add bindings to one action.
func (s *StateBuilder) Slurp(name, source, sink string) *StateBuilder {
	binding := domain.SlurpBinding{Source: source, Sink: sink}
	if a := s.last(); a != nil && a.Type == domain.ActionSlurp && a.Name == name {
		a.Slurps = append(a.Slurps, binding)
		return s
	}
	return s.add(domain.Action{Name: name, Type: domain.ActionSlurp, Slurps: []domain.SlurpBinding{binding}})
}

// Go changes to the target state, skipping the rest of this one.
func (s *StateBuilder) Go(target string) *StateBuilder {
	return s.add(domain.Action{Name: "go_" + target, Type: domain.ActionChangeState, Target: target})
}

// Timeout bounds the endpoint calls of the previous action.
func (s *StateBuilder) Timeout(d time.Duration) *StateBuilder {
	if a := s.last(); a != nil {
		a.Timeout = d
	}
	return s
}

// Build returns the underlying domain.State.
// This is primarily used by the Builder, but exposed for advanced usage.
func (s *StateBuilder) Build() domain.State {
	st := s.state
	st.Actions = append([]domain.Action(nil), s.state.Actions...)
	return st
}

// In declares a parameter serialized into a call.
func In(name string, def *model.Def) domain.Param {
	return domain.Param{Name: name, Direction: domain.ParamIn, Model: def}
}

// Out declares a parameter cracked from a call.
func Out(name string, def *model.Def) domain.Param {
	return domain.Param{Name: name, Direction: domain.ParamOut, Model: def}
}

// InOut declares a parameter sent to and cracked back from a call.
func InOut(name string, def *model.Def) domain.Param {
	return domain.Param{Name: name, Direction: domain.ParamInOut, Model: def}
}
