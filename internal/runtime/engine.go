package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/crackle/pkg/adapters/memory"
	"github.com/aretw0/crackle/pkg/cracker"
	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/ports"
)

// DefaultActionTimeout bounds endpoint calls of actions without their own timeout.
const DefaultActionTimeout = 5 * time.Second

// Engine executes a StateModel against an endpoint, one iteration at a time.
type Engine struct {
	endpoint   ports.Endpoint
	cache      ports.SlurpCache
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	timeout    time.Duration
	crackOpts  []cracker.Option
	bestEffort bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) { e.hooks = hooks }
}

// WithDefaultTimeout sets the timeout of actions that declare none.
func WithDefaultTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithBestEffort tolerates trailing bytes in size-bounded regions when cracking.
func WithBestEffort() EngineOption {
	return func(e *Engine) { e.bestEffort = true }
}

// WithSlurpCache sets the cache holding slurp recordings for the run.
func WithSlurpCache(cache ports.SlurpCache) EngineOption {
	return func(e *Engine) { e.cache = cache }
}

// WithCrackerOptions passes extra options to every crack.
func WithCrackerOptions(opts ...cracker.Option) EngineOption {
	return func(e *Engine) { e.crackOpts = append(e.crackOpts, opts...) }
}

// NewEngine creates an engine driving endpoint.
func NewEngine(endpoint ports.Endpoint, opts ...EngineOption) *Engine {
	e := &Engine{
		endpoint: endpoint,
		cache:    memory.NewSlurpCache(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:  DefaultActionTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bestEffort {
		e.crackOpts = append(e.crackOpts, cracker.WithBestEffort())
	}
	e.crackOpts = append(e.crackOpts, cracker.WithLogger(e.logger))
	return e
}

// Iteration is one pass over a StateModel.
type Iteration struct {
	RunID     string
	Number    int
	Recording bool
	Models    Models
}

// Report is the trace of an iteration.
type Report struct {
	Records []domain.ActionRecord
}

// Executed returns "state.action" for every executed action, in order.
func (r *Report) Executed() []string {
	out := make([]string, 0, len(r.Records))
	for _, rec := range r.Records {
		out = append(out, rec.State+"."+rec.Action)
	}
	return out
}

// Run executes one iteration, starting at the initial state's first action.
// The returned error ends the iteration; domain.Classify tells whether it
// also ends the run. The report is returned in every case.
func (e *Engine) Run(ctx context.Context, sm *domain.StateModel, it Iteration) (*Report, error) {
	report := &Report{}
	scope := it.Models.scope(sm)
	logger := e.logger.With("iteration", it.Number)

	state, from := sm.Initial, ""
	for {
		st, ok := sm.State(state)
		if !ok {
			return report, &domain.ConfigError{Path: from, Err: fmt.Errorf("%w: %s", domain.ErrStateNotFound, state)}
		}
		logger.Debug("entering state", "state", st.Name, "from", from)
		if e.hooks.OnStateEnter != nil {
			e.hooks.OnStateEnter(ctx, &domain.StateEvent{
				EventBase: e.event(domain.EventStateEnter, it),
				State:     st.Name,
				From:      from,
			})
		}

		next := ""
		for i := range st.Actions {
			// Cooperative abort point.
			if err := ctx.Err(); err != nil {
				return report, err
			}
			out := e.dispatch(ctx, st, &st.Actions[i], it, scope, report)
			if target, ok := out.Target(); ok {
				next = target
				break
			}
			if err := out.Err(); err != nil {
				return report, err
			}
		}
		if next == "" {
			return report, nil
		}
		state, from = next, st.Name
	}
}

func (e *Engine) event(t domain.EventType, it Iteration) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now(),
		Type:      t,
		RunID:     it.RunID,
		Iteration: it.Number,
	}
}

func (e *Engine) actionTimeout(a *domain.Action) time.Duration {
	if a.Timeout > 0 {
		return a.Timeout
	}
	return e.timeout
}
