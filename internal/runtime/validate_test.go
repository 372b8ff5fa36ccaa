package runtime_test

import (
	"testing"

	"github.com/aretw0/crackle/internal/runtime"
	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/model"
	"github.com/aretw0/crackle/pkg/slurp"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		sm   *domain.StateModel
		want error
	}{
		{
			name: "missing initial state",
			sm:   &domain.StateModel{Initial: "nope", States: []domain.State{{Name: "s"}}},
			want: domain.ErrStateNotFound,
		},
		{
			name: "unknown changestate target",
			sm:   single(domain.Action{Name: "go", Type: domain.ActionChangeState, Target: "elsewhere"}),
			want: domain.ErrStateNotFound,
		},
		{
			name: "duplicate action",
			sm: single(
				domain.Action{Name: "x", Type: domain.ActionOpen},
				domain.Action{Name: "x", Type: domain.ActionClose},
			),
			want: domain.ErrDuplicateName,
		},
		{
			name: "duplicate state",
			sm: &domain.StateModel{Initial: "s", States: []domain.State{
				{Name: "s"}, {Name: "s"},
			}},
			want: domain.ErrDuplicateName,
		},
		{
			name: "output without model",
			sm:   single(domain.Action{Name: "send", Type: domain.ActionOutput}),
			want: domain.ErrInvalidAction,
		},
		{
			name: "unknown action type",
			sm:   single(domain.Action{Name: "x", Type: "teleport"}),
			want: domain.ErrInvalidAction,
		},
		{
			name: "malformed slurp selector",
			sm: single(domain.Action{Name: "copy", Type: domain.ActionSlurp, Slurps: []domain.SlurpBinding{
				{Source: "/a///b", Sink: "//x"},
			}}),
			want: slurp.ErrInvalidSelector,
		},
		{
			name: "model with unresolved relation",
			sm:   single(output("send", model.NewBlock("m", model.NewNumber("len", 8).SizeOf("nope")))),
			want: model.ErrUnresolved,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runtime.Validate(tt.sm)
			assert.ErrorIs(t, err, tt.want)
			var ce *domain.ConfigError
			assert.ErrorAs(t, err, &ce)
			assert.Equal(t, domain.CategoryConfig, domain.Classify(err))
		})
	}
}

func TestValidate_Valid(t *testing.T) {
	sm := &domain.StateModel{
		Initial: "login",
		States: []domain.State{
			{Name: "login", Actions: []domain.Action{
				output("hello", byteModel("m", 1)),
				{Name: "go", Type: domain.ActionChangeState, Target: "stream"},
			}},
			{Name: "stream", Actions: []domain.Action{
				{Name: "recv", Type: domain.ActionInput, Model: byteModel("m", 0)},
			}},
		},
	}
	assert.NoError(t, runtime.Validate(sm))
}
