package ports

import (
	"context"

	"github.com/aretw0/crackle/pkg/model"
)

// Mutator alters data models before an iteration executes. Models are keyed
// by "<state>.<action>.<model>" and are private to the iteration.
type Mutator interface {
	Mutate(ctx context.Context, iteration int, models map[string]*model.Tree) error
}

// MutatorFunc adapts a function to the Mutator interface.
type MutatorFunc func(ctx context.Context, iteration int, models map[string]*model.Tree) error

func (f MutatorFunc) Mutate(ctx context.Context, iteration int, models map[string]*model.Tree) error {
	return f(ctx, iteration, models)
}
