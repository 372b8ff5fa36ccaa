package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/crackle/pkg/cracker"
	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/model"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	crackErr := &cracker.Error{Path: "m.len", Offset: 3, Err: cracker.ErrInsufficientData}
	tests := []struct {
		name  string
		err   error
		want  domain.Category
		fatal bool
	}{
		{"nil", nil, domain.CategoryNone, false},
		{"crack", fmt.Errorf("recv: %w", crackErr), domain.CategoryCrack, false},
		{"conversion", &model.ConversionError{Path: "m.len", Value: model.Uint(300), Err: model.ErrOutOfRange}, domain.CategoryConversion, false},
		{"deadline", context.DeadlineExceeded, domain.CategoryTimeout, false},
		{"timeout sentinel", fmt.Errorf("%w: nothing read", domain.ErrTimeout), domain.CategoryTimeout, false},
		{"canceled", context.Canceled, domain.CategoryCanceled, true},
		{"model config", &model.ConfigError{Path: "m", Err: model.ErrCycle}, domain.CategoryConfig, true},
		{"state config", &domain.ConfigError{Path: "s.go", Err: domain.ErrStateNotFound}, domain.CategoryConfig, true},
		{"endpoint", &domain.EndpointError{Action: "send", Op: "output", Err: errors.New("broken pipe")}, domain.CategoryEndpoint, true},
		{"unknown", errors.New("mystery"), domain.CategoryEndpoint, true},
		{"recoverable wins", &domain.RecoverableError{Category: domain.CategoryTimeout, Err: crackErr}, domain.CategoryTimeout, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.Classify(tt.err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.fatal, got.Fatal())
		})
	}
}

func TestNewFault_CarriesLocation(t *testing.T) {
	err := &domain.RecoverableError{
		State:    "session",
		Action:   "recv",
		Category: domain.CategoryCrack,
		Path:     "msg.items.item_1",
		Offset:   5,
		Err:      cracker.ErrInsufficientData,
	}

	f := domain.NewFault("run-1", 4, err)
	assert.Equal(t, "run-1", f.RunID)
	assert.Equal(t, 4, f.Iteration)
	assert.Equal(t, "session", f.State)
	assert.Equal(t, "recv", f.Action)
	assert.Equal(t, domain.CategoryCrack, f.Category)
	assert.Equal(t, "msg.items.item_1", f.Path)
	assert.Equal(t, 5, f.Offset)
	assert.Contains(t, f.Message, "offset 5")
}

func TestLifecycleHooks_Merge(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{
		OnStateEnter: func(context.Context, *domain.StateEvent) { calls = append(calls, "a") },
	}
	b := domain.LifecycleHooks{
		OnStateEnter: func(context.Context, *domain.StateEvent) { calls = append(calls, "b") },
		OnFault:      func(context.Context, *domain.Fault) { calls = append(calls, "fault") },
	}

	merged := a.Merge(b)
	merged.OnStateEnter(context.Background(), &domain.StateEvent{})
	merged.OnFault(context.Background(), &domain.Fault{})
	assert.Nil(t, merged.OnActionStart)
	assert.Equal(t, []string{"a", "b", "fault"}, calls)
}
