package domain

import (
	"time"

	"github.com/aretw0/crackle/pkg/model"
)

// ActionType identifies the operation an action performs.
type ActionType string

const (
	ActionOpen        ActionType = "open"
	ActionClose       ActionType = "close"
	ActionConnect     ActionType = "connect"
	ActionAccept      ActionType = "accept"
	ActionStart       ActionType = "start"
	ActionStop        ActionType = "stop"
	ActionOutput      ActionType = "output"
	ActionInput       ActionType = "input"
	ActionCall        ActionType = "call"
	ActionGetProperty ActionType = "getprop"
	ActionSetProperty ActionType = "setprop"
	ActionChangeState ActionType = "changestate"
	ActionSlurp       ActionType = "slurp"
)

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionOpen, ActionClose, ActionConnect, ActionAccept, ActionStart, ActionStop,
		ActionOutput, ActionInput, ActionCall, ActionGetProperty, ActionSetProperty,
		ActionChangeState, ActionSlurp:
		return true
	}
	return false
}

// Direction tags a call parameter.
type Direction string

const (
	ParamIn    Direction = "in"
	ParamOut   Direction = "out"
	ParamInOut Direction = "inout"
)

// Sends reports whether the parameter is serialized into the call.
func (d Direction) Sends() bool { return d == ParamIn || d == ParamInOut }

// Receives reports whether the parameter is cracked from the call's returned data.
func (d Direction) Receives() bool { return d == ParamOut || d == ParamInOut }

// Param is a call argument backed by a data model.
type Param struct {
	Name      string
	Direction Direction
	Model     *model.Def
}

// SlurpBinding copies the value of the single element matched by Source onto
// every element matched by Sink.
type SlurpBinding struct {
	Source string
	Sink   string
}

// Action is one step of a State.
type Action struct {
	Name string
	Type ActionType

	// Model is the data exchanged by Output, Input, GetProperty and SetProperty.
	Model *model.Def
	// Element is the dotted path inside Model read or written by property
	// actions. Empty selects the model root.
	Element string

	Method string
	Params []Param
	Result *model.Def

	Property string
	Target   string
	Slurps   []SlurpBinding

	// Timeout bounds the endpoint calls of this action. Zero uses the engine default.
	Timeout time.Duration
}

// Models returns the data models bound to the action in path order: the
// action model, the call parameters, then the call result.
func (a *Action) Models() []*model.Def {
	var out []*model.Def
	if a.Model != nil {
		out = append(out, a.Model)
	}
	for _, p := range a.Params {
		if p.Model != nil {
			out = append(out, p.Model)
		}
	}
	if a.Result != nil {
		out = append(out, a.Result)
	}
	return out
}
