package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/crackle/pkg/cracker"
	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/model"
	"github.com/aretw0/crackle/pkg/ports"
	"github.com/aretw0/crackle/pkg/slurp"
)

// exchange is what an action moved over the endpoint.
type exchange struct {
	sent     []byte
	received []byte
}

func (e *Engine) dispatch(ctx context.Context, st *domain.State, a *domain.Action, it Iteration, scope *slurp.Scope, report *Report) Outcome {
	start := time.Now()
	if e.hooks.OnActionStart != nil {
		e.hooks.OnActionStart(ctx, &domain.ActionEvent{
			EventBase: e.event(domain.EventActionStart, it),
			State:     st.Name,
			Action:    a.Name,
			Kind:      a.Type,
		})
	}

	actx, cancel := context.WithTimeout(ctx, e.actionTimeout(a))
	var ex exchange
	out := e.execute(actx, st.Name, a, it, scope, &ex)
	cancel()

	if err := out.Err(); err != nil {
		out = Fail(e.scoped(ctx, st.Name, a.Name, err))
	} else {
		scope.MarkExecuted(st.Name, a.Name)
	}

	rec := domain.ActionRecord{
		Iteration: it.Number,
		State:     st.Name,
		Action:    a.Name,
		Type:      a.Type,
		Outcome:   out.String(),
		Sent:      ex.sent,
		Received:  ex.received,
		Duration:  time.Since(start),
	}
	if err := out.Err(); err != nil {
		rec.Error = err.Error()
	}
	report.Records = append(report.Records, rec)

	e.logger.Debug("action executed",
		"iteration", it.Number,
		"state", st.Name,
		"action", a.Name,
		"type", a.Type,
		"outcome", rec.Outcome,
		"sent", len(ex.sent),
		"received", len(ex.received))

	if e.hooks.OnActionEnd != nil {
		e.hooks.OnActionEnd(ctx, &domain.ActionEvent{
			EventBase: e.event(domain.EventActionEnd, it),
			State:     st.Name,
			Action:    a.Name,
			Kind:      a.Type,
			Sent:      len(ex.sent),
			Received:  len(ex.received),
			Duration:  rec.Duration,
			Err:       out.Err(),
		})
	}
	return out
}

// scoped attaches state and action to element-level failures. Fatal
// categories pass through unchanged.
func (e *Engine) scoped(ctx context.Context, state, action string, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return ctx.Err()
	}
	var re *domain.RecoverableError
	if errors.As(err, &re) {
		re.State, re.Action = state, action
		return re
	}
	if errors.Is(err, domain.ErrUnsupported) {
		return &domain.ConfigError{Path: state + "." + action, Err: err}
	}
	cat := domain.Classify(err)
	if cat.Fatal() {
		return err
	}
	path, offset := domain.Location(err)
	return &domain.RecoverableError{State: state, Action: action, Category: cat, Path: path, Offset: offset, Err: err}
}

func (e *Engine) execute(ctx context.Context, state string, a *domain.Action, it Iteration, scope *slurp.Scope, ex *exchange) Outcome {
	ep := e.endpoint
	switch a.Type {
	case domain.ActionStart:
		return e.lifecycle(a, "start", ep.Start(ctx))
	case domain.ActionStop:
		return e.lifecycle(a, "stop", ep.Stop(ctx))
	case domain.ActionOpen:
		return e.lifecycle(a, "open", ep.Open(ctx))
	case domain.ActionClose:
		return e.lifecycle(a, "close", ep.Close(ctx))
	case domain.ActionConnect:
		return e.lifecycle(a, "connect", ep.Connect(ctx))
	case domain.ActionAccept:
		return e.lifecycle(a, "accept", ep.Accept(ctx))
	case domain.ActionOutput:
		return e.output(ctx, state, a, it.Models, ex)
	case domain.ActionInput:
		return e.input(ctx, state, a, it.Models, ex)
	case domain.ActionCall:
		return e.call(ctx, state, a, it.Models, ex)
	case domain.ActionGetProperty:
		return e.getProperty(ctx, state, a, it.Models)
	case domain.ActionSetProperty:
		return e.setProperty(ctx, state, a, it.Models)
	case domain.ActionChangeState:
		if a.Target == "" {
			return Fail(&domain.ConfigError{Path: state + "." + a.Name, Err: fmt.Errorf("%w: changestate without target", domain.ErrInvalidAction)})
		}
		return ChangeTo(a.Target)
	case domain.ActionSlurp:
		strategy := slurp.StrategyFor(it.Recording, e.cache, e.logger)
		for i, b := range a.Slurps {
			binding := slurp.Binding{Key: fmt.Sprintf("%s.%s[%d]", state, a.Name, i), Source: b.Source, Sink: b.Sink}
			if err := strategy.Apply(ctx, scope, binding); err != nil {
				return Fail(err)
			}
		}
		return Continue()
	default:
		return Fail(&domain.ConfigError{Path: state + "." + a.Name, Err: fmt.Errorf("%w: unknown type %q", domain.ErrInvalidAction, a.Type)})
	}
}

// endpointFailure classifies an error returned by the endpoint itself. An
// operation the endpoint does not provide is a configuration error of the
// action, completed by scoped.
func endpointFailure(a *domain.Action, op string, err error) error {
	if errors.Is(err, domain.ErrUnsupported) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrTimeout) {
		return &domain.RecoverableError{Action: a.Name, Category: domain.CategoryTimeout, Offset: -1, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &domain.EndpointError{Action: a.Name, Op: op, Err: err}
}

func (e *Engine) lifecycle(a *domain.Action, op string, err error) Outcome {
	if err != nil {
		return Fail(endpointFailure(a, op, err))
	}
	return Continue()
}

func (e *Engine) output(ctx context.Context, state string, a *domain.Action, models Models, ex *exchange) Outcome {
	tree, err := models.tree(state, a, a.Model)
	if err != nil {
		return Fail(err)
	}
	data, err := tree.Serialize()
	if err != nil {
		return Fail(err)
	}
	ex.sent = data
	if err := e.endpoint.Output(ctx, data); err != nil {
		return Fail(endpointFailure(a, "output", err))
	}
	return Continue()
}

func (e *Engine) input(ctx context.Context, state string, a *domain.Action, models Models, ex *exchange) Outcome {
	tree, err := models.tree(state, a, a.Model)
	if err != nil {
		return Fail(err)
	}
	rc, err := e.endpoint.Input(ctx)
	if err != nil {
		return Fail(endpointFailure(a, "input", err))
	}
	defer rc.Close()

	res, err := cracker.Crack(ctx, tree, rc, e.crackOpts...)
	ex.received = res.Consumed
	if err != nil {
		return Fail(crackFailure(a, "input", res, err))
	}
	if u, ok := rc.(ports.Unreader); ok && len(res.Received) > len(res.Consumed) {
		u.Unread(res.Received[len(res.Consumed):])
	}
	return Continue()
}

// crackFailure turns a crack error into a recoverable failure. A crack that
// received no bytes at all is a timeout, not a grammar mismatch.
func crackFailure(a *domain.Action, op string, res *cracker.Result, err error) error {
	if cracker.IsFailure(err) {
		if len(res.Received) == 0 {
			return &domain.RecoverableError{
				Action:   a.Name,
				Category: domain.CategoryTimeout,
				Offset:   0,
				Err:      fmt.Errorf("%w: no data received", domain.ErrTimeout),
			}
		}
		return err
	}
	var conv *model.ConversionError
	if errors.As(err, &conv) || domain.Classify(err) == domain.CategoryConfig {
		return err
	}
	// Failure of the stream itself.
	return endpointFailure(a, op, err)
}

func (e *Engine) call(ctx context.Context, state string, a *domain.Action, models Models, ex *exchange) Outcome {
	if a.Method == "" {
		return Fail(&domain.ConfigError{Path: state + "." + a.Name, Err: fmt.Errorf("%w: call without method", domain.ErrInvalidAction)})
	}
	args := make([]ports.CallArg, 0, len(a.Params))
	for _, p := range a.Params {
		arg := ports.CallArg{Name: p.Name, Direction: p.Direction}
		if p.Direction.Sends() {
			tree, err := models.tree(state, a, p.Model)
			if err != nil {
				return Fail(err)
			}
			data, err := tree.Serialize()
			if err != nil {
				return Fail(err)
			}
			arg.Data = data
			ex.sent = append(ex.sent, data...)
		}
		args = append(args, arg)
	}

	res, err := e.endpoint.Call(ctx, a.Method, args)
	if err != nil {
		return Fail(endpointFailure(a, "call", err))
	}
	if res == nil {
		res = &ports.CallResult{}
	}

	for _, p := range a.Params {
		if !p.Direction.Receives() {
			continue
		}
		tree, err := models.tree(state, a, p.Model)
		if err != nil {
			return Fail(err)
		}
		if err := e.crackReturned(ctx, a, tree, res.Out[p.Name], ex); err != nil {
			return Fail(err)
		}
	}
	if a.Result != nil {
		tree, err := models.tree(state, a, a.Result)
		if err != nil {
			return Fail(err)
		}
		if !res.HasValue {
			return Fail(&domain.RecoverableError{
				Action:   a.Name,
				Category: domain.CategoryCrack,
				Path:     tree.Name(),
				Err:      fmt.Errorf("call %s returned no value", a.Method),
			})
		}
		if err := e.crackReturned(ctx, a, tree, res.Value, ex); err != nil {
			return Fail(err)
		}
	}
	return Continue()
}

func (e *Engine) crackReturned(ctx context.Context, a *domain.Action, tree *model.Tree, data []byte, ex *exchange) error {
	res, err := cracker.Bytes(ctx, tree, data, e.crackOpts...)
	ex.received = append(ex.received, res.Consumed...)
	if err != nil {
		return crackFailure(a, "call", res, err)
	}
	return nil
}

// element resolves the element a property action reads or writes.
func element(tree *model.Tree, state string, a *domain.Action) (model.ID, error) {
	if a.Element == "" {
		return tree.Root(), nil
	}
	id, ok := tree.Find(tree.Name() + "." + a.Element)
	if !ok {
		return model.NoID, &domain.ConfigError{
			Path: state + "." + a.Name,
			Err:  fmt.Errorf("%w: element %s not found in %s", domain.ErrInvalidAction, a.Element, tree.Name()),
		}
	}
	return id, nil
}

func (e *Engine) getProperty(ctx context.Context, state string, a *domain.Action, models Models) Outcome {
	tree, err := models.tree(state, a, a.Model)
	if err != nil {
		return Fail(err)
	}
	id, err := element(tree, state, a)
	if err != nil {
		return Fail(err)
	}
	v, err := e.endpoint.GetProperty(ctx, a.Property)
	if err != nil {
		return Fail(endpointFailure(a, "getprop", err))
	}
	tree.SetValue(id, v)
	return Continue()
}

func (e *Engine) setProperty(ctx context.Context, state string, a *domain.Action, models Models) Outcome {
	tree, err := models.tree(state, a, a.Model)
	if err != nil {
		return Fail(err)
	}
	id, err := element(tree, state, a)
	if err != nil {
		return Fail(err)
	}
	v, err := tree.TypedValue(id)
	if err != nil {
		return Fail(err)
	}
	if err := e.endpoint.SetProperty(ctx, a.Property, v); err != nil {
		return Fail(endpointFailure(a, "setprop", err))
	}
	return Continue()
}
