package dsl

import (
	"fmt"

	"github.com/aretw0/crackle/internal/runtime"
	"github.com/aretw0/crackle/pkg/domain"
)

// Builder manages the state model construction.
type Builder struct {
	name    string
	initial string
	order   []string
	states  map[string]*StateBuilder
}

// New creates a new state model builder.
func New(name string) *Builder {
	return &Builder{
		name:   name,
		states: make(map[string]*StateBuilder),
	}
}

// Add creates a new state in the model. The first state added is the
// initial state unless Initial says otherwise.
// If the state already exists, it returns the existing builder.
func (b *Builder) Add(name string) *StateBuilder {
	if sb, ok := b.states[name]; ok {
		return sb
	}
	sb := &StateBuilder{
		state:   domain.State{Name: name},
		builder: b,
	}
	b.states[name] = sb
	b.order = append(b.order, name)
	if b.initial == "" {
		b.initial = name
	}
	return sb
}

// Initial sets the state the iteration starts in.
func (b *Builder) Initial(name string) *Builder {
	b.initial = name
	return b
}

// Build assembles and validates the state model.
func (b *Builder) Build() (*domain.StateModel, error) {
	sm := &domain.StateModel{
		Name:    b.name,
		Initial: b.initial,
		States:  make([]domain.State, 0, len(b.order)),
	}
	for _, name := range b.order {
		sm.States = append(sm.States, b.states[name].Build())
	}
	if err := runtime.Validate(sm); err != nil {
		return nil, fmt.Errorf("invalid state model %s: %w", b.name, err)
	}
	return sm, nil
}

// MustBuild is Build for models known to be valid, such as package-level
// fixtures. It panics on error.
func (b *Builder) MustBuild() *domain.StateModel {
	sm, err := b.Build()
	if err != nil {
		panic(err)
	}
	return sm
}
