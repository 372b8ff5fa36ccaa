package runtime

import (
	"errors"
	"fmt"

	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/slurp"
)

// Validate checks a StateModel before any iteration runs. Every problem is
// reported as a *domain.ConfigError; the result joins all of them.
func Validate(sm *domain.StateModel) error {
	var errs []error
	fail := func(path string, err error) {
		errs = append(errs, &domain.ConfigError{Path: path, Err: err})
	}

	if _, ok := sm.State(sm.Initial); !ok {
		fail(sm.Name, fmt.Errorf("%w: initial state %q", domain.ErrStateNotFound, sm.Initial))
	}

	states := make(map[string]bool)
	for _, st := range sm.States {
		if states[st.Name] {
			fail(st.Name, fmt.Errorf("%w: state", domain.ErrDuplicateName))
		}
		states[st.Name] = true

		actions := make(map[string]bool)
		for _, a := range st.Actions {
			path := st.Name + "." + a.Name
			if a.Name == "" {
				fail(path, fmt.Errorf("%w: unnamed action", domain.ErrInvalidAction))
			}
			if actions[a.Name] {
				fail(path, fmt.Errorf("%w: action", domain.ErrDuplicateName))
			}
			actions[a.Name] = true
			if err := validateAction(sm, &a); err != nil {
				fail(path, err)
			}
		}
	}

	if _, err := CompileModels(sm); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validateAction(sm *domain.StateModel, a *domain.Action) error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", domain.ErrInvalidAction, a.Type)
	}
	switch a.Type {
	case domain.ActionOutput, domain.ActionInput:
		if a.Model == nil {
			return fmt.Errorf("%w: %s requires a model", domain.ErrInvalidAction, a.Type)
		}
	case domain.ActionGetProperty, domain.ActionSetProperty:
		if a.Model == nil || a.Property == "" {
			return fmt.Errorf("%w: %s requires a model and a property", domain.ErrInvalidAction, a.Type)
		}
	case domain.ActionCall:
		if a.Method == "" {
			return fmt.Errorf("%w: call requires a method", domain.ErrInvalidAction)
		}
		names := make(map[string]bool)
		for _, p := range a.Params {
			if p.Model == nil {
				return fmt.Errorf("%w: parameter %q has no model", domain.ErrInvalidAction, p.Name)
			}
			if names[p.Name] {
				return fmt.Errorf("%w: parameter %q", domain.ErrDuplicateName, p.Name)
			}
			names[p.Name] = true
		}
	case domain.ActionChangeState:
		if _, ok := sm.State(a.Target); !ok {
			return fmt.Errorf("%w: changestate target %q", domain.ErrStateNotFound, a.Target)
		}
	case domain.ActionSlurp:
		if len(a.Slurps) == 0 {
			return fmt.Errorf("%w: slurp without bindings", domain.ErrInvalidAction)
		}
		for _, b := range a.Slurps {
			if _, err := slurp.Compile(b.Source); err != nil {
				return err
			}
			if _, err := slurp.Compile(b.Sink); err != nil {
				return err
			}
		}
	}
	return nil
}
