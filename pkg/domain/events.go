package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventIterationStart EventType = "iteration_start"
	EventIterationEnd   EventType = "iteration_end"
	EventStateEnter     EventType = "state_enter"
	EventActionStart    EventType = "action_start"
	EventActionEnd      EventType = "action_end"
	EventFault          EventType = "fault"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Iteration int       `json:"iteration"`
}

// IterationEvent marks the boundaries of one pass over the state model.
type IterationEvent struct {
	EventBase
	Control bool     `json:"control,omitempty"`
	Err     error    `json:"-"`
	Outcome Category `json:"outcome,omitempty"`
}

// StateEvent is emitted when the engine enters a state.
type StateEvent struct {
	EventBase
	State string `json:"state"`
	From  string `json:"from,omitempty"`
}

// ActionEvent represents an action execution.
type ActionEvent struct {
	EventBase
	State    string        `json:"state"`
	Action   string        `json:"action"`
	Kind     ActionType    `json:"kind"`
	Sent     int           `json:"sent,omitempty"`
	Received int           `json:"received,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnIterationStart func(context.Context, *IterationEvent)
	OnIterationEnd   func(context.Context, *IterationEvent)
	OnStateEnter     func(context.Context, *StateEvent)
	OnActionStart    func(context.Context, *ActionEvent)
	OnActionEnd      func(context.Context, *ActionEvent)
	OnFault          func(context.Context, *Fault)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnIterationStart: chain(h.OnIterationStart, other.OnIterationStart),
		OnIterationEnd:   chain(h.OnIterationEnd, other.OnIterationEnd),
		OnStateEnter:     chain(h.OnStateEnter, other.OnStateEnter),
		OnActionStart:    chain(h.OnActionStart, other.OnActionStart),
		OnActionEnd:      chain(h.OnActionEnd, other.OnActionEnd),
		OnFault:          chain(h.OnFault, other.OnFault),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
