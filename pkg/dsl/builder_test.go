package dsl

import (
	"errors"
	"testing"
	"time"

	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/model"
)

func token() *model.Def {
	return model.NewBlock("welcome",
		model.NewNumber("len", 8).SizeOf("token"),
		model.NewBlob("token"),
	)
}

func TestBuilder_SimpleFlow(t *testing.T) {
	// 1. Build the state model using DSL
	b := New("login")

	b.Add("handshake").
		Connect("connect").
		Output("hello", model.NewBlock("hello", model.NewNumber("op", 8).Value(1))).
		Input("welcome", token()).Timeout(2 * time.Second).
		Go("session")

	b.Add("session").
		Slurp("copy", "/handshake/welcome/welcome/token", "//login/token").
		Slurp("copy", "/handshake/welcome/welcome/len", "//login/len").
		Output("login", model.NewBlock("login",
			model.NewNumber("len", 8),
			model.NewBlob("token"),
		)).
		Close("bye")

	sm, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	// 2. Verify structure
	if sm.Initial != "handshake" {
		t.Errorf("Expected initial state 'handshake', got '%s'", sm.Initial)
	}
	if len(sm.States) != 2 {
		t.Fatalf("Expected 2 states, got %d", len(sm.States))
	}

	hs := sm.States[0]
	if len(hs.Actions) != 4 {
		t.Fatalf("Expected 4 handshake actions, got %d", len(hs.Actions))
	}
	if hs.Actions[2].Timeout != 2*time.Second {
		t.Errorf("Expected timeout on 'welcome', got %v", hs.Actions[2].Timeout)
	}
	if got := hs.Actions[3]; got.Type != domain.ActionChangeState || got.Target != "session" {
		t.Errorf("Expected changestate to 'session', got %+v", got)
	}

	session := sm.States[1]
	if len(session.Actions[0].Slurps) != 2 {
		t.Errorf("Expected consecutive slurps to merge, got %d bindings", len(session.Actions[0].Slurps))
	}
}

func TestBuilder_CallFlow(t *testing.T) {
	b := New("rpc")

	b.Add("main").
		Call("lookup", "Lookup", In("key", model.NewBlock("key", model.NewString("k").Value("id"))),
			Out("meta", model.NewBlock("meta", model.NewNumber("n", 8)))).
		Returns(model.NewBlock("status", model.NewNumber("code", 8)))

	sm, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	call := sm.States[0].Actions[0]
	if call.Method != "Lookup" || len(call.Params) != 2 {
		t.Fatalf("Unexpected call action %+v", call)
	}
	if call.Result == nil || call.Result.Name != "status" {
		t.Errorf("Expected result model 'status', got %+v", call.Result)
	}
	if len(call.Models()) != 3 {
		t.Errorf("Expected 3 bound models, got %d", len(call.Models()))
	}
}

func TestBuilder_RejectsInvalidModel(t *testing.T) {
	b := New("broken")
	b.Add("only").Go("missing")

	_, err := b.Build()
	if !errors.Is(err, domain.ErrStateNotFound) {
		t.Fatalf("Expected ErrStateNotFound, got %v", err)
	}
}

func TestBuilder_AddIsIdempotent(t *testing.T) {
	b := New("x")
	first := b.Add("s").Open("open")
	if b.Add("s") != first {
		t.Error("Expected Add to return the existing builder")
	}
	b.Add("s").Close("close")
	sm := b.MustBuild()
	if len(sm.States) != 1 || len(sm.States[0].Actions) != 2 {
		t.Errorf("Expected one state with two actions, got %+v", sm.States)
	}
}
